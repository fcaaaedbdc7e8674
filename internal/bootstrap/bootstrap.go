// Package bootstrap turns configuration into the adapters shared by the server and the CLI.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bryanwahyu/webtaxon/internal/config"
	"github.com/bryanwahyu/webtaxon/internal/domain/classification"
	"github.com/bryanwahyu/webtaxon/internal/infra/ai/gemini"
	"github.com/bryanwahyu/webtaxon/internal/infra/ai/heuristic"
	"github.com/bryanwahyu/webtaxon/internal/infra/ai/openai"
	"github.com/bryanwahyu/webtaxon/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/webtaxon/internal/infra/db/mysql"
	"github.com/bryanwahyu/webtaxon/internal/infra/db/postgres"
	"github.com/bryanwahyu/webtaxon/internal/infra/db/sqlite"
	"github.com/bryanwahyu/webtaxon/internal/infra/db/sqlstore"
)

// History is a repository that can also report connectivity.
type History interface {
	classification.HistoryRepository
	Ping(ctx context.Context) error
}

// OpenHistory connects the configured history store. The returned close func is never nil.
func OpenHistory(ctx context.Context, cfg *config.Config) (History, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Database.Driver {
	case "memory":
		return memory.NewHistoryRepository(), noop, nil

	case "sqlite":
		db, repo, err := sqlite.Open(ctx, cfg.Database.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("sqlite open: %w", err)
		}
		return repo, db.Close, nil

	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, noop, fmt.Errorf("mysql connect: %w", err)
		}
		return ensure(ctx, db, mysqlp.NewHistoryRepository(db))

	case "postgres":
		dsn := postgres.DSN(cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
			cfg.Database.Password, cfg.Database.Name, cfg.Database.SSLMode)
		db, err := postgres.Connect(ctx, dsn)
		if err != nil {
			return nil, noop, fmt.Errorf("postgres connect: %w", err)
		}
		return ensure(ctx, db, postgres.NewHistoryRepository(db))

	default:
		return nil, noop, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func ensure(ctx context.Context, db *sql.DB, repo *sqlstore.HistoryRepository) (History, func() error, error) {
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, func() error { return nil }, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, db.Close, nil
}

// NewOracle builds the configured generation client.
func NewOracle(ctx context.Context, cfg *config.Config) (classification.Oracle, error) {
	switch cfg.AI.Provider {
	case "openai":
		if cfg.AI.BaseURL != "" {
			return openai.NewClientWithBaseURL(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model), nil
		}
		return openai.NewClient(cfg.AI.APIKey, cfg.AI.Model), nil
	case "gemini":
		c, err := gemini.NewClient(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "heuristic", "":
		return heuristic.New(), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.AI.Provider)
	}
}
