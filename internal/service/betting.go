package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stakehouse/stakehouse/internal/domain"
	"github.com/stakehouse/stakehouse/internal/notify"
	"github.com/stakehouse/stakehouse/internal/observability"
)

// BettingConfig holds the betting service's tunables.
type BettingConfig struct {
	// MaxBetsPerEvent caps a user's bets on one event, counting the bet
	// being placed.
	MaxBetsPerEvent int
	MaxTxRetries    int
}

// BettingService handles event lifecycle, single-bet placement, and the
// settlement sweep that resolves an event's bets and triggers parlay
// recomputation.
type BettingService struct {
	store       domain.Store
	ledger      Ledger
	parlays     *ParlayService
	bus         domain.SignalBus
	notifier    *notify.Notifier
	leaderboard domain.LeaderboardCache
	locks       domain.LockManager
	metrics     *observability.Metrics
	logger      *slog.Logger
	cfg         BettingConfig
}

// NewBettingService creates a BettingService with all required dependencies.
// The parlay service receives settlement triggers from ResolveEvent.
func NewBettingService(
	store domain.Store,
	parlays *ParlayService,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	leaderboard domain.LeaderboardCache,
	locks domain.LockManager,
	metrics *observability.Metrics,
	logger *slog.Logger,
	cfg BettingConfig,
) *BettingService {
	if cfg.MaxBetsPerEvent <= 0 {
		cfg.MaxBetsPerEvent = 3
	}
	return &BettingService{
		store:       store,
		parlays:     parlays,
		bus:         bus,
		notifier:    notifier,
		leaderboard: leaderboard,
		locks:       locks,
		metrics:     metrics,
		logger:      logger.With(slog.String("component", "betting_service")),
		cfg:         cfg,
	}
}

// CreateEvent registers a new open event. Invoked by the admin authority;
// the request layer enforces the admin role before calling.
func (s *BettingService) CreateEvent(ctx context.Context, title string, outcomes []domain.Outcome, deadline time.Time) (domain.Event, error) {
	if title == "" {
		return domain.Event{}, fmt.Errorf("%w: title required", domain.ErrValidation)
	}
	if len(outcomes) < 2 {
		return domain.Event{}, fmt.Errorf("%w: event needs at least 2 outcomes", domain.ErrValidation)
	}
	seen := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		if o.ID == "" || o.ID == domain.VoidOutcomeID {
			return domain.Event{}, fmt.Errorf("%w: invalid outcome id %q", domain.ErrValidation, o.ID)
		}
		if seen[o.ID] {
			return domain.Event{}, fmt.Errorf("%w: duplicate outcome id %q", domain.ErrValidation, o.ID)
		}
		seen[o.ID] = true
		if o.Odds < 1.0 {
			return domain.Event{}, fmt.Errorf("%w: outcome %q odds %.4f below 1.0", domain.ErrValidation, o.ID, o.Odds)
		}
	}
	if !deadline.After(time.Now()) {
		return domain.Event{}, fmt.Errorf("%w: deadline must be in the future", domain.ErrValidation)
	}

	ev := domain.Event{
		ID:        uuid.NewString(),
		Title:     title,
		Status:    domain.EventStatusOpen,
		Outcomes:  outcomes,
		Deadline:  deadline,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Events().Create(ctx, ev); err != nil {
		return domain.Event{}, fmt.Errorf("betting_service: create event: %w", err)
	}

	publishChange(ctx, s.bus, s.logger, ChannelEvents, "event_created", ev.ID, ev)
	s.logger.InfoContext(ctx, "betting_service: event created",
		slog.String("event_id", ev.ID),
		slog.String("title", title),
	)
	return ev, nil
}

// LockEvent transitions an open event to locked (betting cutoff). Locked
// events accept no bets but can still be settled or voided.
func (s *BettingService) LockEvent(ctx context.Context, eventID string) (domain.Event, error) {
	var ev domain.Event
	err := withRetry(ctx, s.cfg.MaxTxRetries, s.metrics, func(ctx context.Context) error {
		return s.store.Atomic(ctx, func(ctx context.Context, tx domain.Store) error {
			var err error
			ev, err = tx.Events().GetByID(ctx, eventID)
			if err != nil {
				return fmt.Errorf("betting_service: get event %s: %w", eventID, err)
			}
			if ev.Status != domain.EventStatusOpen {
				return domain.ErrAlreadySettled
			}
			ev.Status = domain.EventStatusLocked
			return tx.Events().Update(ctx, ev)
		})
	})
	if err != nil {
		return domain.Event{}, err
	}
	ev.Version++

	publishChange(ctx, s.bus, s.logger, ChannelEvents, "event_locked", ev.ID, ev)
	return ev, nil
}

// ListOpenEvents returns events still accepting bets.
func (s *BettingService) ListOpenEvents(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	events, err := s.store.Events().ListOpen(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("betting_service: list open events: %w", err)
	}
	return events, nil
}

// GetBet returns a single bet.
func (s *BettingService) GetBet(ctx context.Context, betID string) (domain.Bet, error) {
	b, err := s.store.Bets().GetByID(ctx, betID)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("betting_service: get bet %s: %w", betID, err)
	}
	return b, nil
}

// ListUserBets returns a user's bets.
func (s *BettingService) ListUserBets(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bet, error) {
	bets, err := s.store.Bets().ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("betting_service: list bets for %s: %w", userID, err)
	}
	return bets, nil
}

// PlaceBet stakes amount on an event outcome. The stake is debited from the
// spendable balance immediately; single bets do not use the match escrow
// path and are only refunded if the event is voided.
func (s *BettingService) PlaceBet(ctx context.Context, userID, eventID, outcomeID string, amount int64) (domain.Bet, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOp("place_bet", time.Since(started).Seconds()) }()

	if amount <= 0 {
		return domain.Bet{}, fmt.Errorf("%w: bet amount must be positive", domain.ErrValidation)
	}

	var (
		bet  domain.Bet
		user domain.User
	)
	err := withRetry(ctx, s.cfg.MaxTxRetries, s.metrics, func(ctx context.Context) error {
		return s.store.Atomic(ctx, func(ctx context.Context, tx domain.Store) error {
			ev, err := tx.Events().GetByID(ctx, eventID)
			if err != nil {
				return fmt.Errorf("betting_service: get event %s: %w", eventID, err)
			}
			if !ev.AcceptsBets(time.Now()) {
				return fmt.Errorf("%w: event %s is not accepting bets", domain.ErrValidation, eventID)
			}
			outcome, ok := ev.Outcome(outcomeID)
			if !ok {
				return fmt.Errorf("%w: event %s has no outcome %q", domain.ErrValidation, eventID, outcomeID)
			}

			existing, err := tx.Bets().CountByUserEvent(ctx, userID, eventID)
			if err != nil {
				return fmt.Errorf("betting_service: count bets: %w", err)
			}
			if existing+1 > s.cfg.MaxBetsPerEvent {
				return fmt.Errorf("%w: at most %d bets per event", domain.ErrValidation, s.cfg.MaxBetsPerEvent)
			}

			if user, err = s.ledger.Debit(ctx, tx, userID, amount); err != nil {
				return err
			}

			bet = domain.Bet{
				ID:              uuid.NewString(),
				UserID:          userID,
				EventID:         eventID,
				OutcomeID:       outcomeID,
				Amount:          amount,
				Odds:            outcome.Odds,
				PotentialPayout: domain.MulCents(amount, outcome.Odds),
				Status:          domain.BetStatusPending,
				CreatedAt:       time.Now().UTC(),
			}
			if err := tx.Bets().Create(ctx, bet); err != nil {
				return fmt.Errorf("betting_service: create bet: %w", err)
			}
			return tx.Audit().Log(ctx, "bet_placed", map[string]any{
				"bet_id":   bet.ID,
				"user_id":  userID,
				"event_id": eventID,
				"amount":   amount,
				"odds":     outcome.Odds,
			})
		})
	})
	if err != nil {
		return domain.Bet{}, err
	}

	s.metrics.IncBetsPlaced()
	s.publishNetWorth(ctx, user)
	publishChange(ctx, s.bus, s.logger, ChannelBets, "bet_placed", bet.ID, bet)
	s.logger.InfoContext(ctx, "betting_service: bet placed",
		slog.String("bet_id", bet.ID),
		slog.String("user_id", userID),
		slog.String("event_id", eventID),
		slog.Int64("amount", amount),
		slog.Float64("odds", bet.Odds),
	)
	return bet, nil
}

// ResolveEvent settles an event to winnerOutcomeID (or domain.VoidOutcomeID)
// and sweeps its pending bets and parlay wagers. The event transition is one
// atomic operation; each bet in the sweep settles in its own transaction
// guarded by a terminal-state check, so an interrupted sweep resumes safely
// and never double-pays.
func (s *BettingService) ResolveEvent(ctx context.Context, eventID, winnerOutcomeID string) (domain.Event, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOp("resolve_event", time.Since(started).Seconds()) }()

	// Best-effort single-flight: concurrent resolvers waste retries, so take
	// a short advisory lock when a lock manager is wired. Correctness comes
	// from the CAS transition below, not from this lock.
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "resolve_event:"+eventID, 30*time.Second)
		if err == nil {
			defer unlock()
		} else if !errors.Is(err, domain.ErrLockHeld) {
			s.logger.WarnContext(ctx, "betting_service: settlement lock unavailable",
				slog.String("event_id", eventID),
				slog.String("error", err.Error()),
			)
		}
	}

	var (
		ev      domain.Event
		resumed bool
	)
	err := withRetry(ctx, s.cfg.MaxTxRetries, s.metrics, func(ctx context.Context) error {
		return s.store.Atomic(ctx, func(ctx context.Context, tx domain.Store) error {
			var err error
			ev, err = tx.Events().GetByID(ctx, eventID)
			if err != nil {
				return fmt.Errorf("betting_service: get event %s: %w", eventID, err)
			}
			if !ev.Resolvable() {
				// A prior resolution may have committed the transition and
				// then died mid-sweep. Retrying with the same winner skips
				// the transition and resumes the sweep; the per-bet terminal
				// checks keep that safe. A different winner is a conflict.
				if ev.WinnerOutcomeID == winnerOutcomeID {
					resumed = true
					return nil
				}
				return domain.ErrAlreadySettled
			}

			if winnerOutcomeID == domain.VoidOutcomeID {
				ev.Status = domain.EventStatusVoided
			} else {
				if _, ok := ev.Outcome(winnerOutcomeID); !ok {
					return fmt.Errorf("%w: event %s has no outcome %q", domain.ErrValidation, eventID, winnerOutcomeID)
				}
				ev.Status = domain.EventStatusSettled
			}
			ev.WinnerOutcomeID = winnerOutcomeID
			ev.ResolutionTime = time.Now().UTC()
			if err := tx.Events().Update(ctx, ev); err != nil {
				return err
			}
			return tx.Audit().Log(ctx, "event_resolved", map[string]any{
				"event_id": eventID,
				"winner":   winnerOutcomeID,
			})
		})
	})
	if err != nil {
		return domain.Event{}, err
	}
	if !resumed {
		ev.Version++
		s.metrics.IncEventsResolved(string(ev.Status))
	}

	sweepErr := s.sweepBets(ctx, ev)

	// Parlay legs referencing this event recompute regardless of how the
	// single-bet sweep fared; their own idempotence guards apply.
	if s.parlays != nil {
		if err := s.parlays.OnEventResolved(ctx, eventID); err != nil && sweepErr == nil {
			sweepErr = err
		}
	}

	publishChange(ctx, s.bus, s.logger, ChannelEvents, "event_resolved", ev.ID, ev)
	s.logger.InfoContext(ctx, "betting_service: event resolved",
		slog.String("event_id", eventID),
		slog.String("winner", winnerOutcomeID),
	)
	return ev, sweepErr
}

// sweepBets settles every still-pending bet on a resolved event. Each bet is
// its own bounded-retry transaction; a bet that reached a terminal state
// since listing is skipped.
func (s *BettingService) sweepBets(ctx context.Context, ev domain.Event) error {
	pending, err := s.store.Bets().ListPendingByEvent(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("betting_service: list pending bets for %s: %w", ev.ID, err)
	}

	var firstErr error
	for _, stale := range pending {
		settled, user, err := s.settleBet(ctx, stale.ID, ev)
		if err != nil {
			s.logger.ErrorContext(ctx, "betting_service: bet settlement failed",
				slog.String("bet_id", stale.ID),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if settled.Status == domain.BetStatusPending {
			// Another sweep got there first.
			continue
		}

		s.metrics.IncBetsSettled(string(settled.Status))
		s.publishNetWorth(ctx, user)
		publishChange(ctx, s.bus, s.logger, ChannelBets, "bet_settled", settled.ID, settled)
		s.notifyBet(ctx, settled)
	}
	return firstErr
}

// settleBet resolves one bet against the settled event inside its own
// transaction. It returns the bet unchanged when a concurrent sweep already
// settled it.
func (s *BettingService) settleBet(ctx context.Context, betID string, ev domain.Event) (domain.Bet, domain.User, error) {
	var (
		bet  domain.Bet
		user domain.User
	)
	err := withRetry(ctx, s.cfg.MaxTxRetries, s.metrics, func(ctx context.Context) error {
		return s.store.Atomic(ctx, func(ctx context.Context, tx domain.Store) error {
			var err error
			bet, err = tx.Bets().GetByID(ctx, betID)
			if err != nil {
				return fmt.Errorf("betting_service: get bet %s: %w", betID, err)
			}
			if bet.Terminal() {
				return nil
			}

			switch {
			case ev.Status == domain.EventStatusVoided || ev.WinnerOutcomeID == domain.VoidOutcomeID:
				// Stake was a direct debit, so the refund is a direct credit.
				bet.Status = domain.BetStatusVoided
				if user, err = s.ledger.Credit(ctx, tx, bet.UserID, bet.Amount); err != nil {
					return err
				}
			case bet.OutcomeID == ev.WinnerOutcomeID:
				bet.Status = domain.BetStatusWon
				if user, err = s.ledger.Credit(ctx, tx, bet.UserID, bet.PotentialPayout); err != nil {
					return err
				}
				s.metrics.AddPayoutCents(bet.PotentialPayout)
			default:
				// Stake already left the balance at placement; a loss needs
				// no ledger action.
				bet.Status = domain.BetStatusLost
			}

			now := time.Now().UTC()
			bet.SettledAt = &now
			if err := tx.Bets().Update(ctx, bet); err != nil {
				return err
			}
			bet.Version++
			return nil
		})
	})
	return bet, user, err
}

func (s *BettingService) notifyBet(ctx context.Context, bet domain.Bet) {
	if s.notifier == nil {
		return
	}
	var event, title, msg string
	switch bet.Status {
	case domain.BetStatusWon:
		event, title = "bet_won", "Bet won"
		msg = fmt.Sprintf("user %s won %s on event %s", bet.UserID, domain.FormatCents(bet.PotentialPayout), bet.EventID)
	case domain.BetStatusLost:
		event, title = "bet_lost", "Bet lost"
		msg = fmt.Sprintf("user %s lost %s on event %s", bet.UserID, domain.FormatCents(bet.Amount), bet.EventID)
	case domain.BetStatusVoided:
		event, title = "bet_voided", "Bet refunded"
		msg = fmt.Sprintf("user %s was refunded %s on voided event %s", bet.UserID, domain.FormatCents(bet.Amount), bet.EventID)
	default:
		return
	}
	if err := s.notifier.Notify(ctx, event, title, msg); err != nil {
		s.logger.WarnContext(ctx, "betting_service: notify failed",
			slog.String("bet_id", bet.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *BettingService) publishNetWorth(ctx context.Context, u domain.User) {
	if s.leaderboard == nil || u.ID == "" {
		return
	}
	if err := s.leaderboard.SetNetWorth(ctx, u.ID, u.NetWorth()); err != nil {
		s.logger.WarnContext(ctx, "betting_service: leaderboard update failed",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
	}
}
