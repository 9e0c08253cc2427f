package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stakehouse/stakehouse/internal/domain"
	"github.com/stakehouse/stakehouse/internal/server/handler"
	"github.com/stakehouse/stakehouse/internal/server/middleware"
	"github.com/stakehouse/stakehouse/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port               int
	CORSOrigins        []string
	AdminPasswordHash  string // bcrypt; if empty, admin routes are open
	RateLimitPerMinute int    // per client IP; 0 disables rate limiting
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Wallets  *handler.WalletHandler
	Events   *handler.EventHandler
	Bets     *handler.BetHandler
	Parlays  *handler.ParlayHandler
	Matches  *handler.MatchHandler
	Archives *handler.ArchiveHandler // optional, admin-only; nil without blob storage
	Metrics  http.Handler            // optional, served on /metrics
}

// Server is the HTTP + WebSocket API server for the settlement engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, rate limiting, identity) and
// attaches the WebSocket hub. The rate limiter may be nil.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	admin := middleware.AdminAuth(cfg.AdminPasswordHash)

	// Health check and metrics (no auth required).
	mux.HandleFunc("GET /healthz", handlers.Health.HealthCheck)
	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}

	// User and wallet endpoints.
	mux.HandleFunc("POST /api/users", handlers.Wallets.CreateUser)
	mux.HandleFunc("GET /api/wallet", handlers.Wallets.GetWallet)
	mux.HandleFunc("GET /api/leaderboard", handlers.Wallets.Leaderboard)

	// Event endpoints. Lifecycle transitions are admin-only.
	mux.HandleFunc("GET /api/events", handlers.Events.ListOpenEvents)
	mux.Handle("POST /api/admin/events", admin(http.HandlerFunc(handlers.Events.CreateEvent)))
	mux.Handle("POST /api/admin/events/{id}/lock", admin(http.HandlerFunc(handlers.Events.LockEvent)))
	mux.Handle("POST /api/admin/events/{id}/resolve", admin(http.HandlerFunc(handlers.Events.ResolveEvent)))
	mux.Handle("POST /api/admin/transfer", admin(http.HandlerFunc(handlers.Wallets.Transfer)))

	// Archived settlement snapshots and reconcile reports, when blob
	// storage is configured.
	if handlers.Archives != nil {
		mux.Handle("GET /api/admin/archives", admin(http.HandlerFunc(handlers.Archives.ListArchives)))
		mux.Handle("GET /api/admin/archives/{path...}", admin(http.HandlerFunc(handlers.Archives.GetArchive)))
	}

	// Bet endpoints.
	mux.HandleFunc("POST /api/bets", handlers.Bets.PlaceBet)
	mux.HandleFunc("GET /api/bets", handlers.Bets.ListBets)
	mux.HandleFunc("GET /api/bets/{id}", handlers.Bets.GetBet)

	// Parlay endpoints.
	mux.HandleFunc("POST /api/parlays", handlers.Parlays.CreateParlay)
	mux.HandleFunc("GET /api/parlays/wagers", handlers.Parlays.ListWagers)
	mux.HandleFunc("GET /api/parlays/{id}", handlers.Parlays.GetParlay)
	mux.HandleFunc("POST /api/parlays/{id}/wagers", handlers.Parlays.PlaceWager)

	// Match endpoints.
	mux.HandleFunc("POST /api/matches", handlers.Matches.CreateMatch)
	mux.HandleFunc("GET /api/matches", handlers.Matches.ListMatches)
	mux.HandleFunc("GET /api/matches/{id}", handlers.Matches.GetMatch)
	mux.HandleFunc("POST /api/matches/{id}/join", handlers.Matches.JoinMatch)
	mux.HandleFunc("POST /api/matches/{id}/cancel", handlers.Matches.CancelMatch)
	mux.HandleFunc("POST /api/matches/{id}/moves", handlers.Matches.MakeMove)
	mux.HandleFunc("POST /api/matches/{id}/claim-timeout", handlers.Matches.ClaimTimeout)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Identity()(h)

	if limiter != nil && cfg.RateLimitPerMinute > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimitPerMinute, time.Minute)(h)
	}

	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
