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

// MatchConfig holds the match service's tunables.
type MatchConfig struct {
	// TurnTimer is the per-move deadline after which the opponent may claim
	// a timeout win.
	TurnTimer    time.Duration
	MaxTxRetries int
}

// MatchService runs the wagered duel lifecycle: open challenges, escrowed
// joins, move application with round and match resolution, and lazy timeout
// arbitration. The board state machine lives in domain; this layer binds it
// to the ledger so every terminal transition and its wallet effects commit
// in one transaction.
type MatchService struct {
	store       domain.Store
	ledger      Ledger
	bus         domain.SignalBus
	notifier    *notify.Notifier
	leaderboard domain.LeaderboardCache
	metrics     *observability.Metrics
	logger      *slog.Logger
	rng         domain.Rand
	now         func() time.Time
	cfg         MatchConfig
}

// NewMatchService creates a MatchService with the default clock and RNG.
func NewMatchService(
	store domain.Store,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	leaderboard domain.LeaderboardCache,
	metrics *observability.Metrics,
	logger *slog.Logger,
	cfg MatchConfig,
) *MatchService {
	if cfg.TurnTimer <= 0 {
		cfg.TurnTimer = 2 * time.Minute
	}
	return &MatchService{
		store:       store,
		bus:         bus,
		notifier:    notifier,
		leaderboard: leaderboard,
		metrics:     metrics,
		logger:      logger.With(slog.String("component", "match_service")),
		rng:         domain.NewRand(),
		now:         time.Now,
		cfg:         cfg,
	}
}

// WithClock replaces the service clock. Used by tests to drive timeouts.
func (s *MatchService) WithClock(now func() time.Time) *MatchService {
	s.now = now
	return s
}

// WithRand replaces the RNG used for symbol and first-turn draws.
func (s *MatchService) WithRand(rng domain.Rand) *MatchService {
	s.rng = rng
	return s
}

// CreateMatch opens a challenge and escrows the creator's stake. When
// privateOpponent is set only that user may join.
func (s *MatchService) CreateMatch(ctx context.Context, creatorID string, wager int64, matchType int, privateOpponent string) (domain.Match, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOp("create_match", time.Since(started).Seconds()) }()

	if wager <= 0 {
		return domain.Match{}, fmt.Errorf("%w: wager must be positive", domain.ErrValidation)
	}
	if err := domain.ValidateMatchType(matchType); err != nil {
		return domain.Match{}, err
	}
	if privateOpponent == creatorID {
		return domain.Match{}, fmt.Errorf("%w: cannot challenge yourself", domain.ErrValidation)
	}

	var (
		match domain.Match
		user  domain.User
	)
	err := withRetry(ctx, s.cfg.MaxTxRetries, s.metrics, func(ctx context.Context) error {
		return s.store.Atomic(ctx, func(ctx context.Context, tx domain.Store) error {
			var err error
			if user, err = s.ledger.Lock(ctx, tx, creatorID, wager); err != nil {
				return err
			}
			match = domain.Match{
				ID:              uuid.NewString(),
				CreatorID:       creatorID,
				PrivateOpponent: privateOpponent,
				Wager:           wager,
				Pot:             wager,
				Status:          domain.MatchStatusOpen,
				Players:         map[string]*domain.MatchPlayer{creatorID: {}},
				MatchType:       matchType,
				Board:           domain.NewBoard(),
				CreatedAt:       s.now().UTC(),
			}
			if err := tx.Matches().Create(ctx, match); err != nil {
				return fmt.Errorf("match_service: create match: %w", err)
			}
			return tx.Audit().Log(ctx, "match_created", map[string]any{
				"match_id":   match.ID,
				"creator_id": creatorID,
				"wager":      wager,
				"match_type": matchType,
			})
		})
	})
	if err != nil {
		return domain.Match{}, err
	}

	s.metrics.IncMatchesCreated()
	s.publishNetWorth(ctx, user)
	publishChange(ctx, s.bus, s.logger, ChannelMatches, "match_created", match.ID, match)
	if privateOpponent != "" {
		s.notify(ctx, "challenged", "Challenge issued",
			fmt.Sprintf("user %s challenged %s for %s", creatorID, privateOpponent, domain.FormatCents(wager)))
	}
	s.logger.InfoContext(ctx, "match_service: match created",
		slog.String("match_id", match.ID),
		slog.String("creator_id", creatorID),
		slog.Int64("wager", wager),
		slog.Int("match_type", matchType),
	)
	return match, nil
}

// JoinMatch escrows the joiner's stake and activates the match: symbols and
// the opening turn are drawn, the pot doubles, and the turn clock starts.
// Concurrent joiners race on the match version; exactly one wins and the
// rest surface ErrAlreadyStarted.
func (s *MatchService) JoinMatch(ctx context.Context, matchID, userID string) (domain.Match, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOp("join_match", time.Since(started).Seconds()) }()

	var (
		match domain.Match
		user  domain.User
	)
	err := withRetry(ctx, s.cfg.MaxTxRetries, s.metrics, func(ctx context.Context) error {
		return s.store.Atomic(ctx, func(ctx context.Context, tx domain.Store) error {
			var err error
			match, err = tx.Matches().GetByID(ctx, matchID)
			if err != nil {
				return fmt.Errorf("match_service: get match %s: %w", matchID, err)
			}
			// A version conflict alone does not decide the race: the joiner's
			// wallet row races too. Each retry re-reads the match, so a seat
			// that was actually taken fails here, not on the CAS.
			if match.Status != domain.MatchStatusOpen {
				return domain.ErrAlreadyStarted
			}
			if userID == match.CreatorID {
				return fmt.Errorf("%w: cannot join your own match", domain.ErrValidation)
			}
			if match.PrivateOpponent != "" && match.PrivateOpponent != userID {
				return domain.ErrNotParticipant
			}

			if user, err = s.ledger.Lock(ctx, tx, userID, match.Wager); err != nil {
				return err
			}

			symbols := []string{domain.SymbolX, domain.SymbolO}
			creatorSymbol := symbols[s.rng.IntN(2)]
			joinerSymbol := symbols[0]
			if creatorSymbol == symbols[0] {
				joinerSymbol = symbols[1]
			}
			match.Players[match.CreatorID].Symbol = creatorSymbol
			match.Players[userID] = &domain.MatchPlayer{Symbol: joinerSymbol}

			opener := match.CreatorID
			if s.rng.IntN(2) == 1 {
				opener = userID
			}
			match.Status = domain.MatchStatusActive
			match.Pot = match.Wager * 2
			match.Round = 1
			match.StartingPlayer = opener
			match.CurrentTurn = opener
			match.LastMoveAt = s.now().UTC()

			if err := tx.Matches().Update(ctx, match); err != nil {
				return err
			}
			match.Version++
			return tx.Audit().Log(ctx, "match_joined", map[string]any{
				"match_id": matchID,
				"user_id":  userID,
			})
		})
	})
	if err != nil {
		return domain.Match{}, err
	}

	s.publishNetWorth(ctx, user)
	publishChange(ctx, s.bus, s.logger, ChannelMatches, "match_started", match.ID, match)
	s.logger.InfoContext(ctx, "match_service: match started",
		slog.String("match_id", matchID),
		slog.String("joiner_id", userID),
		slog.Int64("pot", match.Pot),
	)
	return match, nil
}

// CancelMatch withdraws an open challenge and releases the creator's escrow.
// Only the creator can cancel, and only before anyone joins.
func (s *MatchService) CancelMatch(ctx context.Context, matchID, userID string) (domain.Match, error) {
	var (
		match domain.Match
		user  domain.User
	)
	err := withRetry(ctx, s.cfg.MaxTxRetries, s.metrics, func(ctx context.Context) error {
		return s.store.Atomic(ctx, func(ctx context.Context, tx domain.Store) error {
			var err error
			match, err = tx.Matches().GetByID(ctx, matchID)
			if err != nil {
				return fmt.Errorf("match_service: get match %s: %w", matchID, err)
			}
			if match.CreatorID != userID {
				return domain.ErrNotParticipant
			}
			if match.Status != domain.MatchStatusOpen {
				return domain.ErrAlreadyStarted
			}

			if user, err = s.ledger.ReleaseToBalance(ctx, tx, userID, match.Wager); err != nil {
				return err
			}
			match.Status = domain.MatchStatusCancelled
			now := s.now().UTC()
			match.CompletedAt = &now
			if err := tx.Matches().Update(ctx, match); err != nil {
				return err
			}
			match.Version++
			return tx.Audit().Log(ctx, "match_cancelled", map[string]any{
				"match_id": matchID,
			})
		})
	})
	if err != nil {
		return domain.Match{}, err
	}

	s.publishNetWorth(ctx, user)
	publishChange(ctx, s.bus, s.logger, ChannelMatches, "match_cancelled", match.ID, match)
	return match, nil
}

// MakeMove applies one move for userID. When the move ends the match the
// wallet effects commit in the same transaction: the winner takes the whole
// pot, a drawn single-round match refunds both stakes.
func (s *MatchService) MakeMove(ctx context.Context, matchID, userID string, cell int) (domain.Match, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOp("make_move", time.Since(started).Seconds()) }()

	var (
		match  domain.Match
		effect domain.MoveEffect
	)
	err := withRetry(ctx, s.cfg.MaxTxRetries, s.metrics, func(ctx context.Context) error {
		return s.store.Atomic(ctx, func(ctx context.Context, tx domain.Store) error {
			var err error
			match, err = tx.Matches().GetByID(ctx, matchID)
			if err != nil {
				return fmt.Errorf("match_service: get match %s: %w", matchID, err)
			}
			if effect, err = match.ApplyMove(userID, cell, s.now().UTC()); err != nil {
				return err
			}

			if effect == domain.MoveMatchWon || effect == domain.MoveMatchDrawn {
				if err := s.settleCompleted(ctx, tx, &match); err != nil {
					return err
				}
			}

			if err := tx.Matches().Update(ctx, match); err != nil {
				return err
			}
			match.Version++
			return nil
		})
	})
	if err != nil {
		return domain.Match{}, err
	}

	publishChange(ctx, s.bus, s.logger, ChannelMatches, "match_move", match.ID, match)
	if match.Status == domain.MatchStatusCompleted {
		s.afterCompletion(ctx, match)
	}
	return match, nil
}

// ClaimTimeout completes the match in favor of the claimant when the side to
// move has exceeded the per-move timer. Timeouts are evaluated lazily; there
// is no background scheduler, so the win only lands when a player claims it.
func (s *MatchService) ClaimTimeout(ctx context.Context, matchID, userID string) (domain.Match, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOp("claim_timeout", time.Since(started).Seconds()) }()

	var match domain.Match
	err := withRetry(ctx, s.cfg.MaxTxRetries, s.metrics, func(ctx context.Context) error {
		return s.store.Atomic(ctx, func(ctx context.Context, tx domain.Store) error {
			var err error
			match, err = tx.Matches().GetByID(ctx, matchID)
			if err != nil {
				return fmt.Errorf("match_service: get match %s: %w", matchID, err)
			}
			if err := match.ClaimTimeout(userID, s.cfg.TurnTimer, s.now().UTC()); err != nil {
				return err
			}
			if err := s.settleCompleted(ctx, tx, &match); err != nil {
				return err
			}
			if err := tx.Matches().Update(ctx, match); err != nil {
				return err
			}
			match.Version++
			return tx.Audit().Log(ctx, "match_timeout_claimed", map[string]any{
				"match_id":   matchID,
				"claimed_by": userID,
			})
		})
	})
	if err != nil {
		return domain.Match{}, err
	}

	publishChange(ctx, s.bus, s.logger, ChannelMatches, "match_timeout", match.ID, match)
	s.afterCompletion(ctx, match)
	return match, nil
}

// GetMatch returns a single match.
func (s *MatchService) GetMatch(ctx context.Context, matchID string) (domain.Match, error) {
	m, err := s.store.Matches().GetByID(ctx, matchID)
	if err != nil {
		return domain.Match{}, fmt.Errorf("match_service: get match %s: %w", matchID, err)
	}
	return m, nil
}

// ListOpenMatches returns joinable challenges.
func (s *MatchService) ListOpenMatches(ctx context.Context, opts domain.ListOpts) ([]domain.Match, error) {
	matches, err := s.store.Matches().ListOpen(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("match_service: list open matches: %w", err)
	}
	return matches, nil
}

// ListUserMatches returns a user's matches.
func (s *MatchService) ListUserMatches(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Match, error) {
	matches, err := s.store.Matches().ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("match_service: list matches for %s: %w", userID, err)
	}
	return matches, nil
}

// settleCompleted applies the wallet effects of a just-completed match inside
// the caller's transaction. Win and timeout pay the whole pot to the winner
// and forfeit the loser's escrow; a draw releases both stakes.
func (s *MatchService) settleCompleted(ctx context.Context, tx domain.Store, match *domain.Match) error {
	if match.WinnerID != "" {
		loserID := match.Opponent(match.WinnerID)
		if _, err := s.ledger.SettleWin(ctx, tx, match.WinnerID, match.Wager, match.Pot); err != nil {
			return err
		}
		if _, err := s.ledger.Unlock(ctx, tx, loserID, match.Wager); err != nil {
			return err
		}
		s.metrics.AddPayoutCents(match.Pot)
	} else {
		for userID := range match.Players {
			if _, err := s.ledger.ReleaseToBalance(ctx, tx, userID, match.Wager); err != nil {
				return err
			}
		}
	}
	return tx.Audit().Log(ctx, "match_settled", map[string]any{
		"match_id":  match.ID,
		"result":    string(match.Result),
		"winner_id": match.WinnerID,
		"pot":       match.Pot,
	})
}

// afterCompletion fires the post-commit side channels for a finished match.
func (s *MatchService) afterCompletion(ctx context.Context, match domain.Match) {
	s.metrics.IncMatchesCompleted(string(match.Result))
	for userID := range match.Players {
		u, err := s.store.Users().GetByID(ctx, userID)
		if err != nil {
			s.logger.WarnContext(ctx, "match_service: post-settlement read failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.publishNetWorth(ctx, u)
	}

	var msg string
	if match.WinnerID != "" {
		msg = fmt.Sprintf("user %s won match %s (%s) for %s", match.WinnerID, match.ID, match.Result, domain.FormatCents(match.Pot))
	} else {
		msg = fmt.Sprintf("match %s ended in a draw, stakes returned", match.ID)
	}
	s.notify(ctx, "match_over", "Match over", msg)

	s.logger.InfoContext(ctx, "match_service: match completed",
		slog.String("match_id", match.ID),
		slog.String("result", string(match.Result)),
		slog.String("winner_id", match.WinnerID),
		slog.Int64("pot", match.Pot),
	)
}

func (s *MatchService) notify(ctx context.Context, event, title, msg string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, msg); err != nil {
		s.logger.WarnContext(ctx, "match_service: notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MatchService) publishNetWorth(ctx context.Context, u domain.User) {
	if s.leaderboard == nil || u.ID == "" {
		return
	}
	if err := s.leaderboard.SetNetWorth(ctx, u.ID, u.NetWorth()); err != nil {
		s.logger.WarnContext(ctx, "match_service: leaderboard update failed",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
	}
}
