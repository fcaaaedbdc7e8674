package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bryanwahyu/webtaxon/internal/application"
	appclassify "github.com/bryanwahyu/webtaxon/internal/application/classify"
	apptaxonomy "github.com/bryanwahyu/webtaxon/internal/application/taxonomy"
	"github.com/bryanwahyu/webtaxon/internal/bootstrap"
	"github.com/bryanwahyu/webtaxon/internal/config"
	"github.com/bryanwahyu/webtaxon/internal/domain/classification"
	"github.com/bryanwahyu/webtaxon/internal/infra/events/kafka"
	"github.com/bryanwahyu/webtaxon/internal/infra/httpserver"
	"github.com/bryanwahyu/webtaxon/internal/infra/search/elasticsearch"
	minioStore "github.com/bryanwahyu/webtaxon/internal/infra/storage"
	"github.com/bryanwahyu/webtaxon/internal/infra/web"
	"github.com/bryanwahyu/webtaxon/internal/logging"
	"github.com/bryanwahyu/webtaxon/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// history store
	history, closeHistory, err := bootstrap.OpenHistory(ctx, cfg)
	if err != nil {
		logger.Fatal("history store init", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer closeHistory()
	checkers := map[string]middleware.HealthChecker{
		"database": middleware.PingChecker{Target: history},
	}

	// oracle
	oracle, err := bootstrap.NewOracle(ctx, cfg)
	if err != nil {
		logger.Fatal("oracle init", zap.String("provider", cfg.AI.Provider), zap.Error(err))
	}

	svc := &appclassify.Service{
		Fetcher: web.NewFetcher(web.FetcherOptions{
			Timeout:      cfg.Fetch.Timeout,
			MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
			UserAgent:    cfg.Fetch.UserAgent,
			BlockPrivate: !cfg.Fetch.AllowPrivate,
		}),
		Extractor:        web.NewExtractor(),
		Oracle:           oracle,
		History:          history,
		Clock:            application.SystemClock{},
		Logger:           logger,
		MaxChars:         cfg.Fetch.MaxChars,
		OracleTimeout:    cfg.AI.Timeout,
		BatchConcurrency: cfg.Batch.Concurrency,
	}
	taxSvc := &apptaxonomy.Service{
		History: history,
		Clock:   application.SystemClock{},
		Prefix:  cfg.Minio.Prefix,
	}

	// optional: snapshot storage
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			logger.Fatal("minio init", zap.Error(err))
		}
		store.PresignTTL = cfg.Minio.PresignTTL
		taxSvc.Snapshots = store
		checkers["storage"] = middleware.PingChecker{Target: store}
	}

	// optional: event stream
	if len(cfg.Kafka.Brokers) > 0 {
		pub := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer pub.Close()
		svc.Events = pub
	}

	// optional: search
	var search classification.SearchIndex
	if cfg.Elasticsearch.Addr != "" {
		es, err := elasticsearch.New(cfg.Elasticsearch.Addr, cfg.Elasticsearch.Index, logger)
		if err != nil {
			logger.Fatal("elasticsearch init", zap.Error(err))
		}
		svc.Search = es
		search = es
		checkers["search"] = middleware.PingChecker{Target: es}
	}

	// init router
	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(svc, taxSvc, search, middleware.NewMetrics(), logger, httpserver.Options{
		AllowPrivate:   cfg.Fetch.AllowPrivate,
		MaxBatchURLs:   cfg.Batch.MaxURLs,
		BatchTimeout:   cfg.BatchTimeout(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimiter:    middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		HealthCheckers: checkers,
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		logger.Info("server listening",
			zap.String("addr", addr),
			zap.String("database", cfg.Database.Driver),
			zap.String("oracle", cfg.AI.Provider))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
