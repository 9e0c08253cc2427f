package domain

import (
	"fmt"
	"time"
)

// MatchStatus is the lifecycle state of a wagered duel. Completed and
// cancelled are terminal; no edge re-enters them.
type MatchStatus string

const (
	MatchStatusOpen      MatchStatus = "open"
	MatchStatusActive    MatchStatus = "active"
	MatchStatusCompleted MatchStatus = "completed"
	MatchStatusCancelled MatchStatus = "cancelled"
)

// MatchResult records how a completed match ended.
type MatchResult string

const (
	MatchResultWin     MatchResult = "win"
	MatchResultDraw    MatchResult = "draw"
	MatchResultTimeout MatchResult = "timeout"
)

// MatchPlayer is one side of a match: the symbol drawn at join time and the
// rounds won so far in a best-of-N format.
type MatchPlayer struct {
	Symbol    string `json:"symbol"`
	RoundWins int    `json:"round_wins"`
}

// Match is a two-player wagered duel. Both stakes are escrowed into the pot;
// the winner takes the whole pot, a drawn single-round match refunds both.
type Match struct {
	ID              string
	CreatorID       string
	PrivateOpponent string // when set, only this user may join
	Wager           int64  // cents, escrowed per player
	Pot             int64  // cents, sum of escrowed stakes
	Status          MatchStatus
	Players         map[string]*MatchPlayer // userID -> side
	CurrentTurn     string                  // userID to move
	StartingPlayer  string                  // userID who opened the current round
	LastMoveAt      time.Time
	MatchType       int // best-of-N, N odd
	Board           Board
	Round           int
	Result          MatchResult
	WinnerID        string
	Version         int64
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

// WinsNeeded is the round-win threshold for a best-of-N match.
func (m *Match) WinsNeeded() int {
	return m.MatchType/2 + 1
}

// Opponent returns the other participant's ID, or "" when userID is not a
// participant.
func (m *Match) Opponent(userID string) string {
	for id := range m.Players {
		if id != userID {
			return id
		}
	}
	return ""
}

// IsParticipant reports whether userID is one of the match's players.
func (m *Match) IsParticipant(userID string) bool {
	_, ok := m.Players[userID]
	return ok
}

// PlayerBySymbol returns the user ID holding the given symbol.
func (m *Match) PlayerBySymbol(symbol string) string {
	for id, p := range m.Players {
		if p.Symbol == symbol {
			return id
		}
	}
	return ""
}

// TurnDeadline is the instant after which the side to move has forfeited,
// given the configured per-move timer. Evaluated lazily at claim time; there
// is no background scheduler pushing timeouts forward.
func (m *Match) TurnDeadline(turnTimer time.Duration) time.Time {
	return m.LastMoveAt.Add(turnTimer)
}

// Terminal reports whether the match has reached a terminal state.
func (m *Match) Terminal() bool {
	return m.Status == MatchStatusCompleted || m.Status == MatchStatusCancelled
}

// ValidateMatchType rejects non-positive and even best-of-N values; the
// format assumes odd N so a winner always exists once the threshold is hit.
func ValidateMatchType(n int) error {
	if n <= 0 || n%2 == 0 {
		return fmt.Errorf("%w: matchType must be a positive odd number, got %d", ErrValidation, n)
	}
	return nil
}

// MoveEffect is the classified consequence of applying one move.
type MoveEffect int

const (
	// MoveTurnPassed: no round resolution, turn swaps to the opponent.
	MoveTurnPassed MoveEffect = iota
	// MoveRoundWon: the mover took the round but the match continues.
	MoveRoundWon
	// MoveMatchWon: the mover's round win reached the best-of-N threshold.
	MoveMatchWon
	// MoveRoundDrawn: drawn round in a multi-round match; round replays.
	MoveRoundDrawn
	// MoveMatchDrawn: drawn round in a single-round match; stakes refund.
	MoveMatchDrawn
)

// ApplyMove validates and applies one move for userID at cell, classifies the
// round outcome, and advances the in-memory match state accordingly. Wallet
// effects are the caller's responsibility; this mutates match state only.
func (m *Match) ApplyMove(userID string, cell int, now time.Time) (MoveEffect, error) {
	if m.Status != MatchStatusActive {
		return 0, ErrIllegalMove
	}
	player, ok := m.Players[userID]
	if !ok {
		return 0, ErrNotParticipant
	}
	if m.CurrentTurn != userID {
		return 0, ErrNotYourTurn
	}
	if err := m.Board.Apply(cell, player.Symbol); err != nil {
		return 0, err
	}

	outcome, winnerSymbol := m.Board.Evaluate()
	switch outcome {
	case RoundWon:
		winnerID := m.PlayerBySymbol(winnerSymbol)
		m.Players[winnerID].RoundWins++
		if m.Players[winnerID].RoundWins >= m.WinsNeeded() {
			m.complete(MatchResultWin, winnerID, now)
			return MoveMatchWon, nil
		}
		m.nextRound(now)
		return MoveRoundWon, nil

	case RoundDrawn:
		if m.MatchType == 1 {
			m.complete(MatchResultDraw, "", now)
			return MoveMatchDrawn, nil
		}
		m.nextRound(now)
		return MoveRoundDrawn, nil

	default:
		m.CurrentTurn = m.Opponent(userID)
		m.LastMoveAt = now
		return MoveTurnPassed, nil
	}
}

// ClaimTimeout validates a timeout claim by userID at time now: only the
// player not to move may claim, and only after the per-move deadline. On
// success the match completes with result timeout in the claimant's favor.
func (m *Match) ClaimTimeout(userID string, turnTimer time.Duration, now time.Time) error {
	if m.Status != MatchStatusActive {
		return ErrIllegalMove
	}
	if !m.IsParticipant(userID) {
		return ErrNotParticipant
	}
	if m.CurrentTurn == userID {
		// The side to move cannot claim its own lateness.
		return ErrNotYourTurn
	}
	if now.Before(m.TurnDeadline(turnTimer)) {
		return ErrTimeoutNotReached
	}
	m.complete(MatchResultTimeout, userID, now)
	return nil
}

// nextRound resets the board for the next round, alternating the opening
// player so neither side opens twice in a row.
func (m *Match) nextRound(now time.Time) {
	m.Board = NewBoard()
	m.Round++
	m.StartingPlayer = m.Opponent(m.StartingPlayer)
	m.CurrentTurn = m.StartingPlayer
	m.LastMoveAt = now
}

func (m *Match) complete(result MatchResult, winnerID string, now time.Time) {
	m.Status = MatchStatusCompleted
	m.Result = result
	m.WinnerID = winnerID
	completedAt := now
	m.CompletedAt = &completedAt
}
