package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iago/ponto-whatsapp-back/internal/config"
	"github.com/iago/ponto-whatsapp-back/internal/contacts"
	"github.com/iago/ponto-whatsapp-back/internal/delivery"
	"github.com/iago/ponto-whatsapp-back/internal/dispatch"
	httpserver "github.com/iago/ponto-whatsapp-back/internal/http"
	"github.com/iago/ponto-whatsapp-back/internal/http/handlers"
	"github.com/iago/ponto-whatsapp-back/internal/queue"
	"github.com/iago/ponto-whatsapp-back/internal/repository"
	"github.com/iago/ponto-whatsapp-back/internal/worker"
)

func main() {
	logger := log.New(os.Stdout, "[ponto-back] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, storeCloser := setupStores(ctx, cfg, logger)
	defer storeCloser()

	producer, consumer, queueCloser := setupQueue(ctx, cfg, logger)
	defer queueCloser()

	directory := setupDirectory(cfg, logger)
	sender := setupSender(cfg, logger)

	coordinator := dispatch.NewCoordinator(
		directory,
		sender,
		stores.reports,
		stores.history,
		cfg.DispatchConcurrency,
		logger,
	)

	api := handlers.NewAPI(handlers.APIConfig{
		Jobs:      stores.jobs,
		Reports:   stores.reports,
		History:   stores.history,
		Producer:  producer,
		UploadDir: cfg.UploadDir,
		Logger:    logger,
	})

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      cfg.AuthToken,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	processor := worker.NewProcessor(consumer, stores.jobs, stores.reports, coordinator, logger)
	go processor.StartPool(ctx, cfg.WorkerPoolSize)
	logger.Printf("worker pool started size=%d dispatch_concurrency=%d", cfg.WorkerPoolSize, cfg.DispatchConcurrency)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

type stores struct {
	jobs    repository.JobsRepository
	reports repository.ReportsRepository
	history repository.HistoryRepository
}

func setupStores(ctx context.Context, cfg config.Config, logger *log.Logger) (stores, func()) {
	ttl := time.Duration(cfg.TaskTTLHours) * time.Hour
	memory := stores{
		jobs:    repository.NewMemoryJobsRepository(ttl),
		reports: repository.NewMemoryReportsRepository(),
		history: repository.NewMemoryHistoryRepository(),
	}

	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory stores")
		return memory, func() {}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres pool, fallback to memory: %v", err)
		return memory, func() {}
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Printf("failed to reach postgres, fallback to memory: %v", err)
		pool.Close()
		return memory, func() {}
	}
	if err := repository.EnsureSchema(ctx, pool); err != nil {
		logger.Printf("failed to ensure schema, fallback to memory: %v", err)
		pool.Close()
		return memory, func() {}
	}

	logger.Printf("postgres stores initialized")
	return stores{
		jobs:    repository.NewPostgresJobsRepository(pool),
		reports: repository.NewPostgresReportsRepository(pool),
		history: repository.NewPostgresHistoryRepository(pool, cfg.HistoryBatchSize, logger),
	}, pool.Close
}

func setupQueue(ctx context.Context, cfg config.Config, logger *log.Logger) (queue.Producer, queue.Consumer, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using local queue fallback")
		local := queue.NewLocalQueue(512, 3, logger)
		return local, local, func() {}
	}

	streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		Stream:      cfg.RedisStream,
		DLQStream:   cfg.RedisDLQ,
		Group:       cfg.RedisGroup,
		Consumer:    cfg.RedisConsumer,
		MaxAttempts: 3,
	})
	if err != nil {
		logger.Printf("failed to initialize redis streams queue, fallback to local: %v", err)
		local := queue.NewLocalQueue(512, 3, logger)
		return local, local, func() {}
	}

	logger.Printf("redis streams queue initialized stream=%s group=%s", cfg.RedisStream, cfg.RedisGroup)
	return streams, streams, func() {
		_ = streams.Close()
	}
}

func setupDirectory(cfg config.Config, logger *log.Logger) contacts.Directory {
	directory, err := contacts.LoadFileDirectory(cfg.ContactsFile)
	if err != nil {
		logger.Printf("failed to load contacts file %s, no teams will resolve: %v", cfg.ContactsFile, err)
		return contacts.NewStaticDirectory(nil)
	}
	return directory
}

func setupSender(cfg config.Config, logger *log.Logger) delivery.Sender {
	if cfg.EvolutionURL == "" || cfg.EvolutionInstance == "" {
		logger.Printf("evolution gateway not configured, using dry-run sender")
		return delivery.NewLogSender(logger)
	}

	client, err := delivery.NewEvolutionClient(delivery.EvolutionClientConfig{
		BaseURL:   cfg.EvolutionURL,
		Instance:  cfg.EvolutionInstance,
		Token:     cfg.EvolutionToken,
		Timeout:   time.Duration(cfg.EvolutionTimeoutMS) * time.Millisecond,
		Logger:    logger,
		PacingMin: time.Duration(cfg.SendPacingMinMS) * time.Millisecond,
		PacingMax: time.Duration(cfg.SendPacingMaxMS) * time.Millisecond,
	})
	if err != nil {
		logger.Printf("failed to initialize evolution client, using dry-run sender: %v", err)
		return delivery.NewLogSender(logger)
	}
	return client
}
