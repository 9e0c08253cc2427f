package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stakehouse/stakehouse/internal/reconcile"
	"github.com/stakehouse/stakehouse/internal/server"
	"github.com/stakehouse/stakehouse/internal/server/handler"
	"github.com/stakehouse/stakehouse/internal/server/ws"
	"github.com/stakehouse/stakehouse/internal/service"
)

// ServeMode builds the service layer and runs the HTTP + WebSocket API until
// the context is cancelled. Dev mode takes the same path with an in-memory
// store and no redis or s3 wired.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	retries := a.cfg.Engine.MaxTxRetries

	ledgerSvc := service.NewLedgerService(
		deps.Store, deps.Leaderboard, deps.Metrics, a.logger,
		service.LedgerConfig{
			SignupGrantCents: a.cfg.Engine.SignupGrantCents,
			MaxTxRetries:     retries,
		},
	)
	parlaySvc := service.NewParlayService(
		deps.Store, deps.SignalBus, deps.Notifier, deps.Leaderboard,
		deps.Metrics, a.logger,
		service.ParlayConfig{MaxTxRetries: retries},
	)
	bettingSvc := service.NewBettingService(
		deps.Store, parlaySvc, deps.SignalBus, deps.Notifier,
		deps.Leaderboard, deps.LockManager, deps.Metrics, a.logger,
		service.BettingConfig{
			MaxBetsPerEvent: a.cfg.Engine.MaxBetsPerEvent,
			MaxTxRetries:    retries,
		},
	)
	matchSvc := service.NewMatchService(
		deps.Store, deps.SignalBus, deps.Notifier, deps.Leaderboard,
		deps.Metrics, a.logger,
		service.MatchConfig{
			TurnTimer:    a.cfg.Engine.TurnTimer.Duration,
			MaxTxRetries: retries,
		},
	)

	// WebSocket hub only runs when the signal bus is wired.
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Wallets: handler.NewWalletHandler(ledgerSvc, a.logger),
		Events:  handler.NewEventHandler(bettingSvc, a.logger),
		Bets:    handler.NewBetHandler(bettingSvc, a.logger),
		Parlays: handler.NewParlayHandler(parlaySvc, a.logger),
		Matches: handler.NewMatchHandler(matchSvc, a.logger),
		Metrics: deps.MetricsHandler,
	}
	if deps.BlobReader != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:               a.cfg.Server.Port,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		AdminPasswordHash:  a.cfg.Server.AdminPasswordHash,
		RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
	}, handlers, deps.RateLimiter, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ReconcileMode runs the balance reconciliation batch job once and exits.
// The process fails when any wallet drifted so schedulers surface the run as
// a failed job.
func (a *App) ReconcileMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting reconcile mode")

	var archiver reconcile.ReportArchiver
	if deps.Archiver != nil {
		archiver = deps.Archiver
	}

	rec := reconcile.New(deps.Store, archiver, a.logger, reconcile.Config{
		SignupGrantCents: a.cfg.Engine.SignupGrantCents,
		Workers:          a.cfg.Reconcile.Workers,
		PageSize:         a.cfg.Reconcile.PageSize,
	})

	report, err := rec.Run(ctx)
	if err != nil {
		return fmt.Errorf("app: reconcile: %w", err)
	}

	if !report.Clean() {
		return fmt.Errorf("app: reconcile: %d wallet(s) drifted", len(report.Drifts))
	}

	a.logger.InfoContext(ctx, "reconcile clean",
		slog.Int("users_checked", report.UsersChecked),
	)
	return nil
}
