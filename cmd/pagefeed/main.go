// Package main wires together the page ingest service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pubsubclient "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jmallory/pagefeed/internal/api"
	"github.com/jmallory/pagefeed/internal/auth"
	rediscache "github.com/jmallory/pagefeed/internal/cache/redis"
	"github.com/jmallory/pagefeed/internal/clock/system"
	"github.com/jmallory/pagefeed/internal/config"
	"github.com/jmallory/pagefeed/internal/dispatcher"
	"github.com/jmallory/pagefeed/internal/extract"
	"github.com/jmallory/pagefeed/internal/feed"
	autofetcher "github.com/jmallory/pagefeed/internal/fetcher/auto"
	headlessfetcher "github.com/jmallory/pagefeed/internal/fetcher/headless"
	staticfetcher "github.com/jmallory/pagefeed/internal/fetcher/static"
	"github.com/jmallory/pagefeed/internal/id/uuid"
	"github.com/jmallory/pagefeed/internal/logging"
	"github.com/jmallory/pagefeed/internal/metrics"
	"github.com/jmallory/pagefeed/internal/pipeline"
	"github.com/jmallory/pagefeed/internal/policy/blocklist"
	"github.com/jmallory/pagefeed/internal/policy/ratelimit"
	memorypublisher "github.com/jmallory/pagefeed/internal/publisher/memory"
	pubsubpublisher "github.com/jmallory/pagefeed/internal/publisher/pubsub"
	queuememory "github.com/jmallory/pagefeed/internal/queue/memory"
	"github.com/jmallory/pagefeed/internal/storage/gcs"
	localstorage "github.com/jmallory/pagefeed/internal/storage/local"
	memorystorage "github.com/jmallory/pagefeed/internal/storage/memory"
	"github.com/jmallory/pagefeed/internal/storage/postgres"
	"github.com/jmallory/pagefeed/internal/sweeper"
	"github.com/jmallory/pagefeed/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	idGen := uuid.New()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if closeErr := rdb.Close(); closeErr != nil {
			logger.Warn("redis close failed", zap.Error(closeErr))
		}
	}()
	cache := rediscache.NewPostCache(rdb, logger.Named("cache"))
	sessionTable := rediscache.NewSessionTable(rdb)

	dbPool, err := postgres.NewPool(ctx, postgres.PostStoreConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        int32(cfg.DB.MaxConns),
		MinConns:        int32(cfg.DB.MinConns),
		MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeMin) * time.Minute,
	})
	if err != nil {
		logger.Fatal("postgres init failed", zap.Error(err))
	}
	defer dbPool.Close()
	postStore, err := postgres.NewPostStoreWithPool(dbPool)
	if err != nil {
		logger.Fatal("post store init failed", zap.Error(err))
	}
	principalStore, err := postgres.NewPrincipalStore(dbPool)
	if err != nil {
		logger.Fatal("principal store init failed", zap.Error(err))
	}

	sessions, err := auth.NewService(auth.Config{
		Secret:   []byte(cfg.Auth.JWTSecret),
		TokenTTL: cfg.TokenTTL(),
	}, principalStore, sessionTable, clock, idGen, logger.Named("auth"))
	if err != nil {
		logger.Fatal("auth init failed", zap.Error(err))
	}

	fetcher, fetcherCleanup, err := buildFetcher(cfg, logger)
	if err != nil {
		logger.Fatal("fetcher init failed", zap.Error(err))
	}
	defer fetcherCleanup()

	blobStore, err := buildBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}
	publisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}

	pipe := pipeline.New(
		fetcher,
		extract.New(idGen),
		postStore,
		cache,
		blobStore,
		publisher,
		clock,
		pipeline.Config{
			CacheTTL:        cfg.CacheTTL(),
			BlobPrefix:      cfg.Storage.Prefix,
			Topic:           cfg.PubSub.TopicName,
			ContentType:     cfg.Storage.ContentType,
			DefaultMaxPosts: cfg.Crawler.DefaultMaxPosts,
		},
		logger.Named("pipeline"),
	)

	jobStore := memorystorage.NewJobStore()
	queue := queuememory.NewQueue(cfg.Crawler.QueueDepth)

	var workers []*worker.Worker
	for i := 0; i < cfg.Crawler.Concurrency; i++ {
		workers = append(workers, worker.New(
			queue,
			jobStore,
			pipe,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	admission := ratelimit.New(ratelimit.Config{
		SubmitsPerMinute: cfg.RateLimit.SubmitsPerMinute,
		Burst:            cfg.RateLimit.Burst,
	})

	sweep := sweeper.New(cache, sweeper.Config{
		Interval:  cfg.SweepInterval(),
		BatchSize: int64(cfg.Cache.SweepBatchSize),
	}, logger.Named("sweeper"))

	apiServer := api.NewServer(
		pipe,
		dispatch,
		jobStore,
		postStore,
		cache,
		sessions,
		admission,
		blocklist.New(cfg.Crawler.BlockedHosts),
		idGen,
		clock,
		cfg,
		logger.Named("api"),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", cfg.Crawler.Concurrency))
		dispatch.Run(ctx)
	}()
	go func() {
		logger.Info("cache sweeper started")
		sweep.Run(ctx)
	}()
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	logger.Info("shutdown complete")
}

func buildFetcher(cfg config.Config, logger *zap.Logger) (feed.Fetcher, func(), error) {
	noCleanup := func() {}
	static := staticfetcher.New(staticfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: cfg.Crawler.RespectRobotsText,
		Timeout:       time.Duration(cfg.Crawler.FetchTimeoutSec) * time.Second,
	})
	switch cfg.Crawler.Fetcher {
	case "headless", "auto":
		f, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Crawler.HeadlessParallel,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: time.Duration(cfg.Crawler.NavTimeoutSec) * time.Second,
			ScrollCount:       cfg.Crawler.ScrollCount,
		})
		if err != nil {
			return nil, noCleanup, err
		}
		if cfg.Crawler.Fetcher == "auto" {
			return autofetcher.New(static, f, autofetcher.Config{}, logger.Named("fetcher")), f.Close, nil
		}
		return f, f.Close, nil
	case "noop":
		logger.Warn("noop fetcher selected, crawls will fail")
		return headlessfetcher.NewNoop(), noCleanup, nil
	default:
		return static, noCleanup, nil
	}
}

func buildBlobStore(ctx context.Context, cfg config.Config) (feed.BlobStore, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
	case "local":
		return localstorage.New(localstorage.Config{BaseDir: cfg.Storage.LocalDir})
	default:
		return memorystorage.NewBlobStore(), nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (feed.Publisher, error) {
	if cfg.PubSub.Provider != "pubsub" {
		return memorypublisher.New(), nil
	}
	client, err := pubsubclient.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	return pubsubpublisher.New(client), nil
}
