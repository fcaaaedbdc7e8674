package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"readTimeout"`
		WriteTimeout time.Duration `yaml:"writeTimeout"`
	} `yaml:"server"`

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`

	Database struct {
		// Driver is one of mysql, postgres, sqlite, memory.
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
		// Path is the sqlite file.
		Path string `yaml:"path"`
	} `yaml:"database"`

	AI struct {
		// Provider is one of openai, gemini, heuristic.
		Provider string        `yaml:"provider"`
		Model    string        `yaml:"model"`
		APIKey   string        `yaml:"apiKey"`
		BaseURL  string        `yaml:"baseURL"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"ai"`

	Fetch struct {
		Timeout      time.Duration `yaml:"timeout"`
		MaxBodyBytes int64         `yaml:"maxBodyBytes"`
		UserAgent    string        `yaml:"userAgent"`
		MaxChars     int           `yaml:"maxChars"`
		AllowPrivate bool          `yaml:"allowPrivate"`
	} `yaml:"fetch"`

	Batch struct {
		Concurrency int `yaml:"concurrency"`
		MaxURLs     int `yaml:"maxURLs"`
	} `yaml:"batch"`

	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rateLimit"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`

	Minio struct {
		Endpoint   string        `yaml:"endpoint"`
		AccessKey  string        `yaml:"accessKey"`
		SecretKey  string        `yaml:"secretKey"`
		BucketName string        `yaml:"bucketName"`
		Region     string        `yaml:"region"`
		UseSSL     bool          `yaml:"useSSL"`
		PresignTTL time.Duration `yaml:"presignTTL"`
		Prefix     string        `yaml:"prefix"`
	} `yaml:"minio"`

	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`

	Elasticsearch struct {
		Addr  string `yaml:"addr"`
		Index string `yaml:"index"`
	} `yaml:"elasticsearch"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 90 * time.Second
	c.Log.Level = "info"
	c.Database.Driver = "memory"
	c.Database.Path = "webtaxon.db"
	c.AI.Provider = "heuristic"
	c.AI.Timeout = 60 * time.Second
	c.Fetch.Timeout = 15 * time.Second
	c.Fetch.MaxBodyBytes = 5 << 20
	c.Fetch.MaxChars = 10000
	c.Batch.Concurrency = 4
	c.Batch.MaxURLs = 50
	c.RateLimit.RPS = 5
	c.RateLimit.Burst = 10
	c.CORS.AllowedOrigins = []string{"*"}
	c.Minio.Region = "us-east-1"
	c.Minio.Prefix = "snapshots/"
	c.Kafka.Topic = "classifications"
	c.Elasticsearch.Index = "classifications"
	return &c
}

// Load is Read followed by Validate.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads .env (if any), then the YAML file at path on top of the defaults,
// then applies environment overrides. A missing file is not an error.
func Read(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.AI.Provider, "AI_PROVIDER")
	setString(&c.AI.APIKey, "AI_API_KEY")
	c.applyProviderKey()
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.Password, "DATABASE_PASSWORD")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Log.Level, "LOG_LEVEL")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitAndTrim(v)
	}
	setString(&c.Elasticsearch.Addr, "ELASTICSEARCH_ADDR")
	if v, err := strconv.Atoi(os.Getenv("PORT")); err == nil && v > 0 {
		c.Server.Port = v
	}
}

// UseProvider switches the oracle provider and picks up that provider's key from the environment.
func (c *Config) UseProvider(provider string) {
	c.AI.Provider = provider
	c.applyProviderKey()
}

func (c *Config) applyProviderKey() {
	switch c.AI.Provider {
	case "openai":
		setString(&c.AI.APIKey, "OPENAI_API_KEY")
	case "gemini":
		setString(&c.AI.APIKey, "GEMINI_API_KEY")
	}
}

// Validate checks the values the server cannot start without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	switch c.Database.Driver {
	case "mysql", "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required for %s", c.Database.Driver)
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	switch c.AI.Provider {
	case "openai", "gemini":
		if c.AI.APIKey == "" {
			return fmt.Errorf("ai.apiKey is required for provider %s", c.AI.Provider)
		}
	case "heuristic":
	default:
		return fmt.Errorf("unknown ai.provider %q", c.AI.Provider)
	}
	if c.Fetch.MaxChars <= 0 {
		return fmt.Errorf("fetch.maxChars must be positive")
	}
	if c.Batch.Concurrency <= 0 {
		return fmt.Errorf("batch.concurrency must be positive")
	}
	if c.Batch.MaxURLs <= 0 {
		return fmt.Errorf("batch.maxURLs must be positive")
	}
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout < c.Fetch.Timeout+c.AI.Timeout {
		return fmt.Errorf("server.writeTimeout (%s) must cover fetch.timeout + ai.timeout (%s)",
			c.Server.WriteTimeout, c.Fetch.Timeout+c.AI.Timeout)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when brokers are set")
	}
	return nil
}

// BatchTimeout is the time a batch request may spend classifying. It leaves a tenth of
// the write timeout to encode and send the response. Zero means unbounded.
func (c *Config) BatchTimeout() time.Duration {
	if c.Server.WriteTimeout <= 0 {
		return 0
	}
	return c.Server.WriteTimeout - c.Server.WriteTimeout/10
}

// MySQLDSN builds the go-sql-driver DSN.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
