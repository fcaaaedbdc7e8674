package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"AI_PROVIDER", "AI_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "DATABASE_DRIVER",
		"DATABASE_PASSWORD", "MINIO_SECRET_KEY", "LOG_LEVEL", "KAFKA_BROKERS", "ELASTICSEARCH_ADDR", "PORT"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "memory", cfg.Database.Driver)
	require.Equal(t, "heuristic", cfg.AI.Provider)
	require.Equal(t, 10000, cfg.Fetch.MaxChars)
	require.Equal(t, 15*time.Second, cfg.Fetch.Timeout)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeFile(t, `
server:
  port: 9090
database:
  driver: postgres
  host: db
  port: 5432
  user: taxon
  name: webtaxon
ai:
  provider: openai
  model: gpt-4o-mini
  timeout: 30s
fetch:
  maxChars: 500
kafka:
  topic: events
`)
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_PASSWORD", "s3cret")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "sk-test", cfg.AI.APIKey)
	require.Equal(t, 30*time.Second, cfg.AI.Timeout)
	require.Equal(t, "s3cret", cfg.Database.Password)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, 500, cfg.Fetch.MaxChars)
	// untouched keys keep defaults
	require.Equal(t, 4, cfg.Batch.Concurrency)
}

func TestLoadProviderFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("AI_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, "gemini", cfg.AI.Provider)
	require.Equal(t, "g-key", cfg.AI.APIKey)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"unknown driver":   "database:\n  driver: oracle\n",
		"mysql needs host": "database:\n  driver: mysql\n",
		"openai needs key": "ai:\n  provider: openai\n",
		"bad provider":     "ai:\n  provider: magic\n",
		"bad port":         "server:\n  port: 70000\n",
		"bad max chars":    "fetch:\n  maxChars: -1\n",
		"write too short":  "server:\n  writeTimeout: 30s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load(writeFile(t, "server: [oops"))
	require.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	cfg := Default()
	cfg.Database.User, cfg.Database.Password = "u", "p"
	cfg.Database.Host, cfg.Database.Port, cfg.Database.Name = "db", 3306, "taxon"
	require.Equal(t, "u:p@tcp(db:3306)/taxon?charset=utf8mb4", cfg.MySQLDSN())
}

func TestReadDefersValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg, err := Read(writeFile(t, "ai:\n  provider: magic\n"))
	require.NoError(t, err)
	require.Error(t, cfg.Validate())

	cfg.UseProvider("openai")
	require.Equal(t, "sk-from-env", cfg.AI.APIKey)
	require.NoError(t, cfg.Validate())
}

func TestBatchTimeoutFitsWriteTimeout(t *testing.T) {
	cfg := Default()
	require.Equal(t, 81*time.Second, cfg.BatchTimeout())
	require.Less(t, cfg.BatchTimeout(), cfg.Server.WriteTimeout)

	cfg.Server.WriteTimeout = 0
	require.Zero(t, cfg.BatchTimeout())
}
