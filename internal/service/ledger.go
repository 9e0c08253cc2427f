// Package service implements the engine's operations: ledger movements,
// bet placement and settlement, parlay aggregation, and the wagered match
// state machine. Every state-changing operation runs as one bounded-retry
// optimistic transaction against the store; side channels (signal bus,
// notifier, leaderboard, metrics) fire only after a successful commit.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stakehouse/stakehouse/internal/domain"
	"github.com/stakehouse/stakehouse/internal/observability"
)

// Ledger applies the primitive wallet movements inside a caller-provided
// transaction scope. Each helper reads the user, applies the delta, and
// stages the CAS write; the enclosing Atomic makes the whole operation
// all-or-nothing. The returned User reflects the staged state.
type Ledger struct{}

// Lock escrows amount from userID's spendable balance.
func (Ledger) Lock(ctx context.Context, tx domain.Store, userID string, amount int64) (domain.User, error) {
	return mutateWallet(ctx, tx, userID, func(u *domain.User) error {
		return u.Lock(amount)
	})
}

// Unlock removes amount from escrow without crediting it (forfeiture).
func (Ledger) Unlock(ctx context.Context, tx domain.Store, userID string, amount int64) (domain.User, error) {
	return mutateWallet(ctx, tx, userID, func(u *domain.User) error {
		u.Unlock(amount)
		return nil
	})
}

// ReleaseToBalance returns escrowed funds to the spendable balance.
func (Ledger) ReleaseToBalance(ctx context.Context, tx domain.Store, userID string, amount int64) (domain.User, error) {
	return mutateWallet(ctx, tx, userID, func(u *domain.User) error {
		u.ReleaseToBalance(amount)
		return nil
	})
}

// SettleWin clears the escrowed stake and credits the payout (pot included).
func (Ledger) SettleWin(ctx context.Context, tx domain.Store, userID string, stake, payout int64) (domain.User, error) {
	return mutateWallet(ctx, tx, userID, func(u *domain.User) error {
		u.SettleWin(stake, payout)
		return nil
	})
}

// Credit adds amount to the spendable balance.
func (Ledger) Credit(ctx context.Context, tx domain.Store, userID string, amount int64) (domain.User, error) {
	return mutateWallet(ctx, tx, userID, func(u *domain.User) error {
		u.Credit(amount)
		return nil
	})
}

// Debit removes amount from the spendable balance, failing on insufficient
// funds.
func (Ledger) Debit(ctx context.Context, tx domain.Store, userID string, amount int64) (domain.User, error) {
	return mutateWallet(ctx, tx, userID, func(u *domain.User) error {
		return u.Debit(amount)
	})
}

func mutateWallet(ctx context.Context, tx domain.Store, userID string, fn func(u *domain.User) error) (domain.User, error) {
	u, err := tx.Users().GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("ledger: get user %s: %w", userID, err)
	}
	if err := fn(&u); err != nil {
		return domain.User{}, err
	}
	if err := tx.Users().Update(ctx, u); err != nil {
		return domain.User{}, fmt.Errorf("ledger: update user %s: %w", userID, err)
	}
	u.Version++
	return u, nil
}

// TransferResult reports an administrative transfer, including partial
// recovery when the debtor's balance was short of the requested amount.
type TransferResult struct {
	From      domain.User
	To        domain.User
	Requested int64
	Recovered int64
	Shortfall int64
}

// LedgerConfig holds the ledger service's tunables.
type LedgerConfig struct {
	// SignupGrantCents is the spendable balance a freshly created user starts
	// with.
	SignupGrantCents int64
	MaxTxRetries     int
}

// LedgerService exposes the standalone wallet operations: user creation,
// balance reads, administrative transfer/clawback, and the net-worth
// leaderboard.
type LedgerService struct {
	store       domain.Store
	ledger      Ledger
	leaderboard domain.LeaderboardCache
	metrics     *observability.Metrics
	logger      *slog.Logger
	cfg         LedgerConfig
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(
	store domain.Store,
	leaderboard domain.LeaderboardCache,
	metrics *observability.Metrics,
	logger *slog.Logger,
	cfg LedgerConfig,
) *LedgerService {
	return &LedgerService{
		store:       store,
		leaderboard: leaderboard,
		metrics:     metrics,
		logger:      logger.With(slog.String("component", "ledger_service")),
		cfg:         cfg,
	}
}

// CreateUser registers a new user with the configured signup grant.
func (s *LedgerService) CreateUser(ctx context.Context, username string) (domain.User, error) {
	if username == "" {
		return domain.User{}, fmt.Errorf("%w: username required", domain.ErrValidation)
	}

	u := domain.User{
		ID:        uuid.NewString(),
		Username:  username,
		Balance:   s.cfg.SignupGrantCents,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Users().Create(ctx, u); err != nil {
		return domain.User{}, fmt.Errorf("ledger_service: create user: %w", err)
	}

	s.publishNetWorth(ctx, u)
	s.logger.InfoContext(ctx, "ledger_service: user created",
		slog.String("user_id", u.ID),
		slog.String("username", username),
	)
	return u, nil
}

// GetUser returns the user with its current wallet state.
func (s *LedgerService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("ledger_service: get user %s: %w", userID, err)
	}
	return u, nil
}

// Transfer moves amount between two users' spendable balances as one atomic
// operation. Administrative recovery is deliberately partial: when the
// debtor's balance is below amount the transfer still succeeds, takes what
// is there, and reports the shortfall for the caller to escalate.
func (s *LedgerService) Transfer(ctx context.Context, fromID, toID string, amount int64) (TransferResult, error) {
	if amount <= 0 {
		return TransferResult{}, fmt.Errorf("%w: transfer amount must be positive", domain.ErrValidation)
	}
	if fromID == toID {
		return TransferResult{}, fmt.Errorf("%w: transfer to self", domain.ErrValidation)
	}

	var (
		result TransferResult
		from   domain.User
		to     domain.User
	)
	err := withRetry(ctx, s.cfg.MaxTxRetries, s.metrics, func(ctx context.Context) error {
		return s.store.Atomic(ctx, func(ctx context.Context, tx domain.Store) error {
			var err error
			from, err = tx.Users().GetByID(ctx, fromID)
			if err != nil {
				return fmt.Errorf("ledger_service: get debtor %s: %w", fromID, err)
			}

			recovered := amount
			if from.Balance < amount {
				recovered = from.Balance
			}

			if recovered > 0 {
				if err := from.Debit(recovered); err != nil {
					return err
				}
				if err := tx.Users().Update(ctx, from); err != nil {
					return fmt.Errorf("ledger_service: update debtor: %w", err)
				}
				if to, err = s.ledger.Credit(ctx, tx, toID, recovered); err != nil {
					return err
				}
			} else if to, err = tx.Users().GetByID(ctx, toID); err != nil {
				return fmt.Errorf("ledger_service: get recipient %s: %w", toID, err)
			}

			result = TransferResult{
				From:      from,
				To:        to,
				Requested: amount,
				Recovered: recovered,
				Shortfall: amount - recovered,
			}
			return tx.Audit().Log(ctx, "ledger_transfer", map[string]any{
				"from":      fromID,
				"to":        toID,
				"requested": amount,
				"recovered": recovered,
			})
		})
	})
	if err != nil {
		return TransferResult{}, err
	}

	s.publishNetWorth(ctx, from, to)
	s.logger.InfoContext(ctx, "ledger_service: transfer applied",
		slog.String("from", fromID),
		slog.String("to", toID),
		slog.Int64("requested", result.Requested),
		slog.Int64("recovered", result.Recovered),
		slog.Int64("shortfall", result.Shortfall),
	)
	return result, nil
}

// Leaderboard returns the top n users by net worth from the cache.
func (s *LedgerService) Leaderboard(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if s.leaderboard == nil {
		return nil, nil
	}
	entries, err := s.leaderboard.Top(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("ledger_service: leaderboard: %w", err)
	}
	return entries, nil
}

// Rank returns the user's 1-based leaderboard position, or 0 when the user
// has no score yet or no cache is configured.
func (s *LedgerService) Rank(ctx context.Context, userID string) (int64, error) {
	if s.leaderboard == nil {
		return 0, nil
	}
	rank, err := s.leaderboard.Rank(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("ledger_service: rank: %w", err)
	}
	return rank, nil
}

// publishNetWorth pushes updated net-worth scores to the leaderboard cache.
// Cache failures are logged, never surfaced: the wallet is the source of
// truth.
func (s *LedgerService) publishNetWorth(ctx context.Context, users ...domain.User) {
	if s.leaderboard == nil {
		return
	}
	for _, u := range users {
		if err := s.leaderboard.SetNetWorth(ctx, u.ID, u.NetWorth()); err != nil {
			s.logger.WarnContext(ctx, "ledger_service: leaderboard update failed",
				slog.String("user_id", u.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
