package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"screwdiag/adapters/api"
	"screwdiag/internal/config"
	"screwdiag/internal/container"
	"screwdiag/internal/ops"
)

func main() {
	// .env is optional; real deployments configure through the environment
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	ctx := context.Background()
	c, err := container.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup error: %v", err)
	}
	defer c.Close()

	opsServer := ops.NewServer(c.Engine, c.Logger)
	go func() {
		if err := opsServer.ListenAndServe(":" + cfg.Server.OpsPort); err != nil {
			c.Logger.Error("ops server stopped: %v", err)
		}
	}()

	service := api.NewService(c.Engine, cfg.Server, c.Logger)
	if err := service.Run(":" + cfg.Server.APIPort); err != nil {
		log.Fatalf("api server stopped: %v", err)
	}
}
