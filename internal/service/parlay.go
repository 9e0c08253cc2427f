package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stakehouse/stakehouse/internal/domain"
	"github.com/stakehouse/stakehouse/internal/notify"
	"github.com/stakehouse/stakehouse/internal/observability"
)

// ParlayConfig holds the parlay service's tunables.
type ParlayConfig struct {
	MaxTxRetries int
}

// ParlayService manages shared multi-leg tickets and the wagers staked on
// them. Parlay status is never stored; it is derived from the legs' event
// states each time a wager settles.
type ParlayService struct {
	store       domain.Store
	ledger      Ledger
	bus         domain.SignalBus
	notifier    *notify.Notifier
	leaderboard domain.LeaderboardCache
	metrics     *observability.Metrics
	logger      *slog.Logger
	cfg         ParlayConfig
}

// NewParlayService creates a ParlayService.
func NewParlayService(
	store domain.Store,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	leaderboard domain.LeaderboardCache,
	metrics *observability.Metrics,
	logger *slog.Logger,
	cfg ParlayConfig,
) *ParlayService {
	return &ParlayService{
		store:       store,
		bus:         bus,
		notifier:    notifier,
		leaderboard: leaderboard,
		metrics:     metrics,
		logger:      logger.With(slog.String("component", "parlay_service")),
		cfg:         cfg,
	}
}

// ParlayPick is a creation-time leg selection. Odds are resolved from the
// event's current outcome odds inside the creation transaction.
type ParlayPick struct {
	EventID   string
	OutcomeID string
}

// CreateParlay builds a parlay from the given picks and stakes the creator's
// initial wager on it in the same transaction. Every picked event must still
// be accepting bets; the leg odds are snapshotted as of this moment.
func (s *ParlayService) CreateParlay(ctx context.Context, creatorID, title string, picks []ParlayPick, stake int64) (domain.Parlay, domain.ParlayWager, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOp("create_parlay", time.Since(started).Seconds()) }()

	if stake <= 0 {
		return domain.Parlay{}, domain.ParlayWager{}, fmt.Errorf("%w: stake must be positive", domain.ErrValidation)
	}

	var (
		parlay domain.Parlay
		wager  domain.ParlayWager
		user   domain.User
	)
	err := withRetry(ctx, s.cfg.MaxTxRetries, s.metrics, func(ctx context.Context) error {
		return s.store.Atomic(ctx, func(ctx context.Context, tx domain.Store) error {
			legs := make([]domain.ParlayLeg, 0, len(picks))
			now := time.Now()
			for _, pick := range picks {
				ev, err := tx.Events().GetByID(ctx, pick.EventID)
				if err != nil {
					return fmt.Errorf("parlay_service: get event %s: %w", pick.EventID, err)
				}
				if !ev.AcceptsBets(now) {
					return fmt.Errorf("%w: event %s is not accepting bets", domain.ErrValidation, pick.EventID)
				}
				outcome, ok := ev.Outcome(pick.OutcomeID)
				if !ok {
					return fmt.Errorf("%w: event %s has no outcome %q", domain.ErrValidation, pick.EventID, pick.OutcomeID)
				}
				legs = append(legs, domain.ParlayLeg{
					EventID:   pick.EventID,
					OutcomeID: pick.OutcomeID,
					Odds:      outcome.Odds,
				})
			}
			if err := domain.ValidateParlayLegs(legs); err != nil {
				return err
			}

			base, bonus, final := domain.ComputeParlayMultiplier(legs)
			parlay = domain.Parlay{
				ID:              uuid.NewString(),
				CreatorID:       creatorID,
				Title:           title,
				Legs:            legs,
				BaseMultiplier:  base,
				BonusRate:       bonus,
				FinalMultiplier: final,
				CreatedAt:       time.Now().UTC(),
			}
			if err := tx.Parlays().Create(ctx, parlay); err != nil {
				return fmt.Errorf("parlay_service: create parlay: %w", err)
			}

			var err error
			wager, user, err = s.stakeWager(ctx, tx, parlay, creatorID, stake)
			return err
		})
	})
	if err != nil {
		return domain.Parlay{}, domain.ParlayWager{}, err
	}

	s.metrics.IncParlaysCreated()
	s.publishNetWorth(ctx, user)
	publishChange(ctx, s.bus, s.logger, ChannelParlays, "parlay_created", parlay.ID, parlay)
	s.logger.InfoContext(ctx, "parlay_service: parlay created",
		slog.String("parlay_id", parlay.ID),
		slog.String("creator_id", creatorID),
		slog.Int("legs", len(parlay.Legs)),
		slog.Float64("multiplier", parlay.FinalMultiplier),
	)
	return parlay, wager, nil
}

// PlaceWager stakes a wager on an existing parlay (tailing). The parlay must
// still be fully open: every leg's event accepting bets.
func (s *ParlayService) PlaceWager(ctx context.Context, userID, parlayID string, stake int64) (domain.ParlayWager, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOp("place_parlay_wager", time.Since(started).Seconds()) }()

	if stake <= 0 {
		return domain.ParlayWager{}, fmt.Errorf("%w: stake must be positive", domain.ErrValidation)
	}

	var (
		wager domain.ParlayWager
		user  domain.User
	)
	err := withRetry(ctx, s.cfg.MaxTxRetries, s.metrics, func(ctx context.Context) error {
		return s.store.Atomic(ctx, func(ctx context.Context, tx domain.Store) error {
			parlay, err := tx.Parlays().GetByID(ctx, parlayID)
			if err != nil {
				return fmt.Errorf("parlay_service: get parlay %s: %w", parlayID, err)
			}
			now := time.Now()
			for _, leg := range parlay.Legs {
				ev, err := tx.Events().GetByID(ctx, leg.EventID)
				if err != nil {
					return fmt.Errorf("parlay_service: get event %s: %w", leg.EventID, err)
				}
				if !ev.AcceptsBets(now) {
					return fmt.Errorf("%w: parlay leg event %s is no longer accepting bets", domain.ErrValidation, leg.EventID)
				}
			}
			wager, user, err = s.stakeWager(ctx, tx, parlay, userID, stake)
			return err
		})
	})
	if err != nil {
		return domain.ParlayWager{}, err
	}

	s.publishNetWorth(ctx, user)
	publishChange(ctx, s.bus, s.logger, ChannelParlays, "wager_placed", wager.ID, wager)
	s.logger.InfoContext(ctx, "parlay_service: wager placed",
		slog.String("wager_id", wager.ID),
		slog.String("parlay_id", parlayID),
		slog.String("user_id", userID),
		slog.Int64("amount", stake),
	)
	return wager, nil
}

// stakeWager debits the stake and creates the wager record inside the
// caller's transaction.
func (s *ParlayService) stakeWager(ctx context.Context, tx domain.Store, parlay domain.Parlay, userID string, stake int64) (domain.ParlayWager, domain.User, error) {
	user, err := s.ledger.Debit(ctx, tx, userID, stake)
	if err != nil {
		return domain.ParlayWager{}, domain.User{}, err
	}
	wager := domain.ParlayWager{
		ID:              uuid.NewString(),
		ParlayID:        parlay.ID,
		UserID:          userID,
		Amount:          stake,
		PotentialPayout: domain.MulCents(stake, parlay.FinalMultiplier),
		Status:          domain.WagerStatusPending,
		CreatedAt:       time.Now().UTC(),
	}
	if err := tx.ParlayWagers().Create(ctx, wager); err != nil {
		return domain.ParlayWager{}, domain.User{}, fmt.Errorf("parlay_service: create wager: %w", err)
	}
	if err := tx.Audit().Log(ctx, "parlay_wager_placed", map[string]any{
		"wager_id":  wager.ID,
		"parlay_id": parlay.ID,
		"user_id":   userID,
		"amount":    stake,
	}); err != nil {
		return domain.ParlayWager{}, domain.User{}, err
	}
	return wager, user, nil
}

// GetParlay returns a parlay together with the live derived state of each leg.
func (s *ParlayService) GetParlay(ctx context.Context, parlayID string) (domain.Parlay, []domain.LegState, error) {
	parlay, err := s.store.Parlays().GetByID(ctx, parlayID)
	if err != nil {
		return domain.Parlay{}, nil, fmt.Errorf("parlay_service: get parlay %s: %w", parlayID, err)
	}
	states, err := s.legStates(ctx, s.store, parlay)
	if err != nil {
		return domain.Parlay{}, nil, err
	}
	return parlay, states, nil
}

// ListUserWagers returns a user's parlay wagers.
func (s *ParlayService) ListUserWagers(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.ParlayWager, error) {
	wagers, err := s.store.ParlayWagers().ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("parlay_service: list wagers for %s: %w", userID, err)
	}
	return wagers, nil
}

// OnEventResolved recomputes every parlay with a leg on the resolved event
// and settles the pending wagers whose aggregate outcome is now terminal.
// Each wager settles in its own transaction with the leg states re-derived
// inside it, so a partially-applied sweep resumes cleanly.
func (s *ParlayService) OnEventResolved(ctx context.Context, eventID string) error {
	parlays, err := s.store.Parlays().ListByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("parlay_service: list parlays for event %s: %w", eventID, err)
	}

	var firstErr error
	for _, parlay := range parlays {
		pending, err := s.store.ParlayWagers().ListPendingByParlay(ctx, parlay.ID)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("parlay_service: list pending wagers for %s: %w", parlay.ID, err)
			}
			continue
		}
		for _, stale := range pending {
			settled, user, err := s.settleWager(ctx, stale.ID, parlay)
			if err != nil {
				s.logger.ErrorContext(ctx, "parlay_service: wager settlement failed",
					slog.String("wager_id", stale.ID),
					slog.String("error", err.Error()),
				)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if settled.Status == domain.WagerStatusPending {
				// Legs still outstanding or another sweep already settled it.
				continue
			}

			s.metrics.IncWagersSettled(string(settled.Status))
			s.publishNetWorth(ctx, user)
			publishChange(ctx, s.bus, s.logger, ChannelParlays, "wager_settled", settled.ID, settled)
			s.notifyWager(ctx, parlay, settled)
		}
	}
	return firstErr
}

// settleWager derives the parlay's aggregate state inside one transaction
// and applies the terminal transition if the parlay has decided. Wagers
// already terminal are returned unchanged.
func (s *ParlayService) settleWager(ctx context.Context, wagerID string, parlay domain.Parlay) (domain.ParlayWager, domain.User, error) {
	var (
		wager domain.ParlayWager
		user  domain.User
	)
	err := withRetry(ctx, s.cfg.MaxTxRetries, s.metrics, func(ctx context.Context) error {
		return s.store.Atomic(ctx, func(ctx context.Context, tx domain.Store) error {
			var err error
			wager, err = tx.ParlayWagers().GetByID(ctx, wagerID)
			if err != nil {
				return fmt.Errorf("parlay_service: get wager %s: %w", wagerID, err)
			}
			if wager.Terminal() {
				return nil
			}

			states, err := s.legStates(ctx, tx, parlay)
			if err != nil {
				return err
			}
			status := domain.AggregateLegs(states)
			if status == domain.WagerStatusPending {
				return nil
			}

			switch status {
			case domain.WagerStatusLost:
				// Stake already left the balance at placement.
			case domain.WagerStatusVoided:
				// One leg voided without a loss: full refund, even when other
				// legs are still pending.
				if user, err = s.ledger.Credit(ctx, tx, wager.UserID, wager.Amount); err != nil {
					return err
				}
			case domain.WagerStatusWon:
				payout := domain.MulCents(wager.Amount, parlay.FinalMultiplier)
				if user, err = s.ledger.Credit(ctx, tx, wager.UserID, payout); err != nil {
					return err
				}
				s.metrics.AddPayoutCents(payout)
			}

			wager.Status = status
			now := time.Now().UTC()
			wager.SettledAt = &now
			if err := tx.ParlayWagers().Update(ctx, wager); err != nil {
				return err
			}
			wager.Version++
			return nil
		})
	})
	return wager, user, err
}

// legStates derives the current state of every leg from its event.
func (s *ParlayService) legStates(ctx context.Context, store domain.Store, parlay domain.Parlay) ([]domain.LegState, error) {
	states := make([]domain.LegState, 0, len(parlay.Legs))
	for _, leg := range parlay.Legs {
		ev, err := store.Events().GetByID(ctx, leg.EventID)
		if err != nil {
			return nil, fmt.Errorf("parlay_service: get event %s: %w", leg.EventID, err)
		}
		states = append(states, domain.DeriveLegState(leg, &ev))
	}
	return states, nil
}

func (s *ParlayService) notifyWager(ctx context.Context, parlay domain.Parlay, wager domain.ParlayWager) {
	if s.notifier == nil || wager.Status != domain.WagerStatusWon {
		return
	}
	payout := domain.MulCents(wager.Amount, parlay.FinalMultiplier)
	msg := fmt.Sprintf("user %s hit a %d-leg parlay for %s", wager.UserID, len(parlay.Legs), domain.FormatCents(payout))
	if err := s.notifier.Notify(ctx, "parlay_hit", "Parlay hit", msg); err != nil {
		s.logger.WarnContext(ctx, "parlay_service: notify failed",
			slog.String("wager_id", wager.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ParlayService) publishNetWorth(ctx context.Context, u domain.User) {
	if s.leaderboard == nil || u.ID == "" {
		return
	}
	if err := s.leaderboard.SetNetWorth(ctx, u.ID, u.NetWorth()); err != nil {
		s.logger.WarnContext(ctx, "parlay_service: leaderboard update failed",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
	}
}
