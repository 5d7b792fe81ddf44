package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/beanbank/internal/adapter/http"
	"github.com/iho/beanbank/internal/adapter/http/handler"
	"github.com/iho/beanbank/internal/adapter/http/middleware"
	"github.com/iho/beanbank/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/beanbank/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/beanbank/internal/adapter/repository/redis"
	"github.com/iho/beanbank/internal/adapter/repository/sqlite"
	"github.com/iho/beanbank/internal/adapter/ws"
	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/infrastructure/config"
	"github.com/iho/beanbank/internal/infrastructure/eventpublisher"
	"github.com/iho/beanbank/internal/infrastructure/logger"
	"github.com/iho/beanbank/internal/infrastructure/metrics"
	"github.com/iho/beanbank/internal/infrastructure/postgres"
	"github.com/iho/beanbank/internal/infrastructure/redis"
	"github.com/iho/beanbank/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}

// backend is the selected state store plus what it drags along.
type backend struct {
	store   usecase.StateStore
	journal eventpublisher.Sink
	close   func()
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
		defer cancel()
		pool, err := postgres.NewPool(connectCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		log.Info().Msg("connected to postgres")
		return &backend{
			store:   postgresRepo.NewStore(pool, log),
			journal: postgresRepo.NewEventJournal(pool),
			close:   pool.Close,
		}, nil

	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite store")
		return &backend{
			store: store,
			close: func() { _ = store.Close() },
		}, nil

	default:
		log.Warn().Msg("using in-memory store, state is lost on restart")
		return &backend{store: memory.NewStore(), close: func() {}}, nil
	}
}

func seedAccounts(cfg *config.Config) []*domain.Account {
	if !cfg.SeedAccounts {
		return nil
	}
	return usecase.DefaultSeedAccounts()
}

func newRateLimiter(cfg *config.Config, m *metrics.Metrics) *middleware.RateLimiter {
	if cfg.RateLimitRPS <= 0 {
		return nil
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = int(cfg.RateLimitRPS) + 1
	}
	return middleware.NewRateLimiter(cfg.RateLimitRPS, burst).WithMetrics(m)
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	m := metrics.New()

	be, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	hub := ws.NewHub(log, m)
	defer hub.Close()

	sinks := []eventpublisher.Sink{eventpublisher.NewLogSink(log)}
	if be.journal != nil {
		sinks = append(sinks, be.journal)
	}

	checks := map[string]handler.Check{}

	// Redis is optional. With it, the hub listens on the shared channel so
	// every instance sees every change; without it the feed drives the hub.
	var (
		idempotency usecase.IdempotencyStore
		bus         *redisRepo.ChangeBus
	)
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer client.Close()

		idempotency = redisRepo.NewIdempotencyStore(client, m)
		bus = redisRepo.NewChangeBus(client, cfg.RedisChannel, m, log)
		sinks = append(sinks, bus)
		checks["redis"] = func(ctx context.Context) error { return redis.Ping(ctx, client) }
	} else {
		sinks = append(sinks, hub)
	}

	feed := eventpublisher.NewFeed(eventpublisher.Config{
		Sinks:      sinks,
		Logger:     log,
		Metrics:    m,
		BufferSize: cfg.FeedBufferSize,
	})

	bank := usecase.NewBank(usecase.BankConfig{
		Store:             be.store,
		Publisher:         feed,
		IDGen:             postgresRepo.NewULIDGenerator(),
		Metrics:           m,
		Logger:            log,
		PriceHistoryLimit: cfg.PriceHistoryLimit,
		Seed:              seedAccounts(cfg),
	})
	if err := bank.Load(ctx); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	checks["store"] = bank.Ready

	rateLimiter := newRateLimiter(cfg, m)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:   handler.NewAccountHandler(bank),
		LedgerHandler:    handler.NewLedgerHandler(bank),
		MarketHandler:    handler.NewMarketHandler(bank),
		BetHandler:       handler.NewBetHandler(bank),
		DareHandler:      handler.NewDareHandler(bank),
		HealthHandler:    handler.NewHealthHandler(checks),
		WSHandler:        hub.HandleWS,
		MetricsHandler:   promhttp.Handler(),
		IdempotencyStore: idempotency,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		RateLimiter:      rateLimiter,
		Logger:           log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := feed.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if bus != nil {
		events, err := bus.Subscribe(gctx)
		if err != nil {
			return fmt.Errorf("subscribe to changes: %w", err)
		}
		g.Go(func() error {
			hub.Forward(gctx, events)
			return nil
		})
	}

	if rateLimiter != nil {
		g.Go(func() error {
			rateLimiter.StartCleanup(gctx, time.Minute)
			return nil
		})
	}

	g.Go(func() error {
		log.Info().
			Str("port", cfg.HTTPPort).
			Str("store", cfg.StoreDriver).
			Bool("redis", cfg.RedisURL != "").
			Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
