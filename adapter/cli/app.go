package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vibeos/vibecore/internal/pipeline"
	"github.com/vibeos/vibecore/internal/planning/infrastructure/persistence"
	"github.com/vibeos/vibecore/internal/shared/infrastructure/database"
	_ "github.com/vibeos/vibecore/internal/shared/infrastructure/database/postgres"
	_ "github.com/vibeos/vibecore/internal/shared/infrastructure/database/sqlite"
	"github.com/vibeos/vibecore/internal/timeutil"
	"github.com/vibeos/vibecore/pkg/config"
)

// App bundles the long-lived pieces every command needs: configuration,
// the task store connection, and the pipeline driver built on them.
type App struct {
	Config    *config.Config
	Tasks     *persistence.TaskStore
	Converter *timeutil.Converter
	Driver    *pipeline.Driver
	Logger    *slog.Logger

	conn database.Connection
}

// NewApp opens the task store, ensures its schema, and wires the driver.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := database.NewConnection(ctx, database.ConfigFromURL(cfg.TaskDBURL))
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}

	tasks := persistence.NewTaskStore(conn)
	if err := tasks.EnsureSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("prepare task store schema: %w", err)
	}

	converter := timeutil.NewConverter(cfg.UTCOffset)

	return &App{
		Config:    cfg,
		Tasks:     tasks,
		Converter: converter,
		Driver:    pipeline.New(cfg, tasks, converter, logger),
		Logger:    logger,
		conn:      conn,
	}, nil
}

// Close releases the task store connection.
func (a *App) Close() error {
	if a.conn == nil {
		return nil
	}
	return a.conn.Close()
}

// newApp builds an App for a cobra command, loading config from the
// environment.
func newApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewApp(ctx, cfg, logger)
}
