package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/beanbank/internal/adapter/http/handler"
	"github.com/iho/beanbank/internal/adapter/http/middleware"
	"github.com/iho/beanbank/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler *handler.AccountHandler
	LedgerHandler  *handler.LedgerHandler
	MarketHandler  *handler.MarketHandler
	BetHandler     *handler.BetHandler
	DareHandler    *handler.DareHandler
	HealthHandler  *handler.HealthHandler

	// WSHandler serves the change feed on /ws when set.
	WSHandler http.HandlerFunc
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}
	if cfg.WSHandler != nil {
		r.Get("/ws", cfg.WSHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger)
			r.Use(idempotencyMiddleware.Wrap)
		}

		r.Get("/state", cfg.LedgerHandler.State)
		r.Get("/leaderboard", cfg.AccountHandler.Leaderboard)

		// Accounts
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", cfg.AccountHandler.Create)
			r.Get("/", cfg.AccountHandler.List)
			r.Put("/", cfg.AccountHandler.Replace)
			r.Get("/{id}", cfg.AccountHandler.Get)
			r.Get("/{id}/transactions", cfg.AccountHandler.Transactions)
			r.Post("/{id}/mint", cfg.AccountHandler.Mint)
		})

		// Ledger
		r.Post("/transfers", cfg.LedgerHandler.Transfer)
		r.Get("/transactions", cfg.LedgerHandler.Transactions)
		r.Get("/ledger/consistency", cfg.LedgerHandler.Consistency)

		// Market
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", cfg.MarketHandler.Submit)
			r.Get("/", cfg.MarketHandler.List)
			r.Delete("/{id}", cfg.MarketHandler.Cancel)
		})
		r.Get("/market/book", cfg.MarketHandler.Book)
		r.Get("/market/history", cfg.MarketHandler.History)

		// Bets
		r.Route("/bets", func(r chi.Router) {
			r.Post("/", cfg.BetHandler.Create)
			r.Get("/", cfg.BetHandler.List)
			r.Get("/{id}", cfg.BetHandler.Get)
			r.Post("/{id}/wagers", cfg.BetHandler.Wager)
			r.Post("/{id}/resolve", cfg.BetHandler.Resolve)
		})

		// Dares
		r.Route("/dares", func(r chi.Router) {
			r.Post("/", cfg.DareHandler.Create)
			r.Get("/", cfg.DareHandler.List)
			r.Get("/{id}", cfg.DareHandler.Get)
			r.Post("/{id}/pledges", cfg.DareHandler.Pledge)
			r.Post("/{id}/resolve", cfg.DareHandler.Resolve)
		})
	})

	return r
}
