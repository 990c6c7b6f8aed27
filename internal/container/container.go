// Package container wires configuration, persistence, and the engine into
// a ready application graph for the entry points.
package container

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"screwdiag/adapters/filestore"
	"screwdiag/adapters/postgres"
	"screwdiag/internal"
	"screwdiag/internal/config"
	"screwdiag/internal/engine"
	"screwdiag/internal/errors"
	"screwdiag/ports"
)

// Container holds the constructed application graph
type Container struct {
	Config *config.Config
	Logger *internal.Logger
	Store  ports.ModelStore
	Engine *engine.Engine

	db *sqlx.DB
}

// New builds the full graph from validated configuration
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger := internal.NewDefaultLogger()

	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	store, err := c.buildStore(ctx)
	if err != nil {
		return nil, err
	}
	c.Store = store

	eng, err := engine.New(cfg, store, logger)
	if err != nil {
		return nil, err
	}
	c.Engine = eng
	return c, nil
}

func (c *Container) buildStore(ctx context.Context) (ports.ModelStore, error) {
	switch c.Config.Store.Backend {
	case "file":
		return filestore.NewStore(c.Config.Store.ModelsDir, c.Logger)
	case "postgres":
		db, err := sqlx.ConnectContext(ctx, "postgres", c.Config.Store.DatabaseURL)
		if err != nil {
			return nil, errors.PersistenceError("failed to connect to postgres", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		c.db = db
		return postgres.NewModelStore(db), nil
	default:
		return nil, errors.ConfigInvalid("unknown store backend " + c.Config.Store.Backend)
	}
}

// Close releases any resources the container owns
func (c *Container) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
