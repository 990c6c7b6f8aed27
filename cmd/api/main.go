package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"screwdiag/adapters/api"
	"screwdiag/internal/config"
	"screwdiag/internal/container"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	c, err := container.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("startup error: %v", err)
	}
	defer c.Close()

	service := api.NewService(c.Engine, cfg.Server, c.Logger)
	if err := service.Run(":" + cfg.Server.APIPort); err != nil {
		log.Fatalf("api server stopped: %v", err)
	}
}
