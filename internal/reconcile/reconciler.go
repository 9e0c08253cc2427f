// Package reconcile rebuilds every user's expected wallet from the recorded
// history (signup grant, stakes, payouts, administrative transfers) and
// reports any drift against the stored balances. It is strictly read-only:
// findings are logged and archived, never auto-corrected.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// ReportArchiver persists a finished report. Satisfied by the S3 archiver.
type ReportArchiver interface {
	ArchiveReport(ctx context.Context, name string, report any) (string, error)
}

// Config holds the reconciler's tunables.
type Config struct {
	// SignupGrantCents must match the grant the ledger applies at user
	// creation, otherwise every user drifts by the difference.
	SignupGrantCents int64
	// Workers bounds the per-user replay concurrency.
	Workers int
	// PageSize bounds each store list call.
	PageSize int
}

// Drift is one user whose stored wallet disagrees with the replayed history.
type Drift struct {
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	Balance         int64  `json:"balance"`
	ExpectedBalance int64  `json:"expected_balance"`
	Locked          int64  `json:"locked_balance"`
	ExpectedLocked  int64  `json:"expected_locked_balance"`
}

// Report is the outcome of one reconcile run.
type Report struct {
	UsersChecked int     `json:"users_checked"`
	Drifts       []Drift `json:"drifts"`
	TotalBalance int64   `json:"total_balance"`
	TotalLocked  int64   `json:"total_locked"`
	ArchivePath  string  `json:"archive_path,omitempty"`
}

// Clean reports whether no drift was found.
func (r *Report) Clean() bool {
	return len(r.Drifts) == 0
}

// Reconciler replays wallet history against the store.
type Reconciler struct {
	store    domain.Store
	archiver ReportArchiver
	logger   *slog.Logger
	cfg      Config
}

// New creates a Reconciler. The archiver may be nil, in which case the
// report is only logged.
func New(store domain.Store, archiver ReportArchiver, logger *slog.Logger, cfg Config) *Reconciler {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	return &Reconciler{
		store:    store,
		archiver: archiver,
		logger:   logger.With(slog.String("component", "reconciler")),
		cfg:      cfg,
	}
}

// Run replays every user's history and returns the drift report.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	users, err := r.listAllUsers(ctx)
	if err != nil {
		return Report{}, err
	}
	transfers, err := r.transferDeltas(ctx)
	if err != nil {
		return Report{}, err
	}

	var (
		mu     sync.Mutex
		report Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for _, u := range users {
		g.Go(func() error {
			expBalance, expLocked, err := r.replayUser(gctx, u.ID)
			if err != nil {
				return err
			}
			expBalance += transfers[u.ID]

			mu.Lock()
			defer mu.Unlock()
			report.UsersChecked++
			report.TotalBalance += u.Balance
			report.TotalLocked += u.LockedBalance
			if u.Balance != expBalance || u.LockedBalance != expLocked {
				report.Drifts = append(report.Drifts, Drift{
					UserID:          u.ID,
					Username:        u.Username,
					Balance:         u.Balance,
					ExpectedBalance: expBalance,
					Locked:          u.LockedBalance,
					ExpectedLocked:  expLocked,
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	sort.Slice(report.Drifts, func(i, j int) bool {
		return report.Drifts[i].UserID < report.Drifts[j].UserID
	})

	for _, d := range report.Drifts {
		r.logger.WarnContext(ctx, "reconcile: wallet drift",
			slog.String("user_id", d.UserID),
			slog.Int64("balance", d.Balance),
			slog.Int64("expected_balance", d.ExpectedBalance),
			slog.Int64("locked", d.Locked),
			slog.Int64("expected_locked", d.ExpectedLocked),
		)
	}

	if r.archiver != nil {
		path, err := r.archiver.ArchiveReport(ctx, "reconcile", report)
		if err != nil {
			r.logger.ErrorContext(ctx, "reconcile: archive failed", slog.String("error", err.Error()))
		} else {
			report.ArchivePath = path
		}
	}

	r.logger.InfoContext(ctx, "reconcile: run finished",
		slog.Int("users_checked", report.UsersChecked),
		slog.Int("drifts", len(report.Drifts)),
		slog.Int64("total_balance", report.TotalBalance),
		slog.Int64("total_locked", report.TotalLocked),
	)
	return report, nil
}

// replayUser folds one user's bets, parlay wagers, and matches into the
// expected spendable and escrowed balances, starting from the signup grant.
func (r *Reconciler) replayUser(ctx context.Context, userID string) (balance, locked int64, err error) {
	balance = r.cfg.SignupGrantCents

	bets, err := r.listAllBets(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	for _, b := range bets {
		balance -= b.Amount
		switch b.Status {
		case domain.BetStatusWon:
			balance += b.PotentialPayout
		case domain.BetStatusVoided:
			balance += b.Amount
		}
	}

	wagers, err := r.listAllWagers(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	for _, w := range wagers {
		balance -= w.Amount
		switch w.Status {
		case domain.WagerStatusWon:
			balance += w.PotentialPayout
		case domain.WagerStatusVoided:
			balance += w.Amount
		}
	}

	matches, err := r.listAllMatches(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	for _, m := range matches {
		switch m.Status {
		case domain.MatchStatusOpen:
			if m.CreatorID == userID {
				balance -= m.Wager
				locked += m.Wager
			}
		case domain.MatchStatusActive:
			if m.IsParticipant(userID) {
				balance -= m.Wager
				locked += m.Wager
			}
		case domain.MatchStatusCompleted:
			if !m.IsParticipant(userID) {
				continue
			}
			balance -= m.Wager
			switch {
			case m.WinnerID == userID:
				balance += m.Pot
			case m.WinnerID == "":
				// Draw: stake came back.
				balance += m.Wager
			}
		case domain.MatchStatusCancelled:
			// Escrow was released in full; net zero.
		}
	}

	return balance, locked, nil
}

// transferDeltas folds administrative transfers out of the audit log into
// per-user balance deltas.
func (r *Reconciler) transferDeltas(ctx context.Context) (map[string]int64, error) {
	deltas := make(map[string]int64)
	for offset := 0; ; offset += r.cfg.PageSize {
		entries, err := r.store.Audit().List(ctx, domain.ListOpts{Limit: r.cfg.PageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("reconcile: list audit: %w", err)
		}
		for _, e := range entries {
			if e.Event != "ledger_transfer" {
				continue
			}
			from, _ := e.Detail["from"].(string)
			to, _ := e.Detail["to"].(string)
			recovered := detailInt64(e.Detail["recovered"])
			deltas[from] -= recovered
			deltas[to] += recovered
		}
		if len(entries) < r.cfg.PageSize {
			return deltas, nil
		}
	}
}

// detailInt64 reads a numeric audit detail that may have gone through a JSON
// roundtrip.
func detailInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func (r *Reconciler) listAllUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	for offset := 0; ; offset += r.cfg.PageSize {
		page, err := r.store.Users().List(ctx, domain.ListOpts{Limit: r.cfg.PageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("reconcile: list users: %w", err)
		}
		users = append(users, page...)
		if len(page) < r.cfg.PageSize {
			return users, nil
		}
	}
}

func (r *Reconciler) listAllBets(ctx context.Context, userID string) ([]domain.Bet, error) {
	var bets []domain.Bet
	for offset := 0; ; offset += r.cfg.PageSize {
		page, err := r.store.Bets().ListByUser(ctx, userID, domain.ListOpts{Limit: r.cfg.PageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("reconcile: list bets for %s: %w", userID, err)
		}
		bets = append(bets, page...)
		if len(page) < r.cfg.PageSize {
			return bets, nil
		}
	}
}

func (r *Reconciler) listAllWagers(ctx context.Context, userID string) ([]domain.ParlayWager, error) {
	var wagers []domain.ParlayWager
	for offset := 0; ; offset += r.cfg.PageSize {
		page, err := r.store.ParlayWagers().ListByUser(ctx, userID, domain.ListOpts{Limit: r.cfg.PageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("reconcile: list wagers for %s: %w", userID, err)
		}
		wagers = append(wagers, page...)
		if len(page) < r.cfg.PageSize {
			return wagers, nil
		}
	}
}

func (r *Reconciler) listAllMatches(ctx context.Context, userID string) ([]domain.Match, error) {
	var matches []domain.Match
	for offset := 0; ; offset += r.cfg.PageSize {
		page, err := r.store.Matches().ListByUser(ctx, userID, domain.ListOpts{Limit: r.cfg.PageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("reconcile: list matches for %s: %w", userID, err)
		}
		matches = append(matches, page...)
		if len(page) < r.cfg.PageSize {
			return matches, nil
		}
	}
}
