package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/webtaxon/internal/config"
	"github.com/bryanwahyu/webtaxon/internal/domain/classification"
	"github.com/bryanwahyu/webtaxon/internal/infra/ai/heuristic"
	"github.com/bryanwahyu/webtaxon/internal/infra/ai/openai"
	"github.com/bryanwahyu/webtaxon/internal/infra/db/memory"
)

func TestOpenHistoryMemory(t *testing.T) {
	cfg := config.Default()
	repo, closeFn, err := OpenHistory(context.Background(), cfg)
	require.NoError(t, err)
	require.IsType(t, &memory.HistoryRepository{}, repo)
	require.NoError(t, closeFn())
}

func TestOpenHistorySQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "history.db")

	repo, closeFn, err := OpenHistory(ctx, cfg)
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.Save(ctx, &classification.HistoryEntry{
		ID:        "a",
		URL:       "https://a.example",
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}))
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestOpenHistoryUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = "cassandra"
	_, closeFn, err := OpenHistory(context.Background(), cfg)
	require.Error(t, err)
	require.NotNil(t, closeFn)
}

func TestNewOracle(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()

	o, err := NewOracle(ctx, cfg)
	require.NoError(t, err)
	require.IsType(t, &heuristic.Oracle{}, o)

	cfg.AI.Provider = "openai"
	cfg.AI.APIKey = "sk-test"
	cfg.AI.BaseURL = "http://127.0.0.1:1/v1"
	o, err = NewOracle(ctx, cfg)
	require.NoError(t, err)
	require.IsType(t, &openai.Client{}, o)

	cfg.AI.Provider = "gemini"
	cfg.AI.APIKey = ""
	_, err = NewOracle(ctx, cfg)
	require.Error(t, err)

	cfg.AI.Provider = "markov"
	_, err = NewOracle(ctx, cfg)
	require.Error(t, err)
}
