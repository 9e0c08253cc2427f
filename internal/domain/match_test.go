package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stakehouse/stakehouse/internal/domain"
)

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// activeMatch returns a best-of-N match between alice (X, to move) and bob (O).
func activeMatch(matchType int) *domain.Match {
	return &domain.Match{
		ID:        "m1",
		CreatorID: "alice",
		Wager:     500,
		Pot:       1000,
		Status:    domain.MatchStatusActive,
		Players: map[string]*domain.MatchPlayer{
			"alice": {Symbol: domain.SymbolX},
			"bob":   {Symbol: domain.SymbolO},
		},
		CurrentTurn:    "alice",
		StartingPlayer: "alice",
		LastMoveAt:     t0,
		MatchType:      matchType,
		Round:          1,
	}
}

// playRound drives the given cell sequence alternating from the current turn.
func playRound(t *testing.T, m *domain.Match, cells []int) domain.MoveEffect {
	t.Helper()
	var effect domain.MoveEffect
	for i, cell := range cells {
		var err error
		effect, err = m.ApplyMove(m.CurrentTurn, cell, t0.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("move %d at cell %d: %v", i, cell, err)
		}
	}
	return effect
}

func TestBoard_WinnerAndDraw(t *testing.T) {
	var b domain.Board
	for _, cell := range []int{0, 1, 2} {
		if err := b.Apply(cell, domain.SymbolX); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	if w := b.Winner(); w != domain.SymbolX {
		t.Errorf("winner: got %q, want X", w)
	}

	// X O X / X O O / O X X has no line.
	drawn := domain.Board{"X", "O", "X", "X", "O", "O", "O", "X", "X"}
	outcome, _ := drawn.Evaluate()
	if outcome != domain.RoundDrawn {
		t.Errorf("outcome: got %v, want RoundDrawn", outcome)
	}
}

func TestBoard_RejectsFilledCell(t *testing.T) {
	var b domain.Board
	if err := b.Apply(4, domain.SymbolX); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := b.Apply(4, domain.SymbolO); !errors.Is(err, domain.ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if err := b.Apply(9, domain.SymbolO); !errors.Is(err, domain.ErrIllegalMove) {
		t.Fatalf("out-of-range cell: expected ErrIllegalMove, got %v", err)
	}
}

func TestMatch_WinsNeeded(t *testing.T) {
	cases := map[int]int{1: 1, 3: 2, 5: 3, 7: 4}
	for matchType, want := range cases {
		m := domain.Match{MatchType: matchType}
		if got := m.WinsNeeded(); got != want {
			t.Errorf("best-of-%d: got %d, want %d", matchType, got, want)
		}
	}
}

func TestValidateMatchType(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		if err := domain.ValidateMatchType(n); err != nil {
			t.Errorf("matchType %d: unexpected error %v", n, err)
		}
	}
	for _, n := range []int{0, 2, 4, -3} {
		if err := domain.ValidateMatchType(n); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("matchType %d: expected ErrValidation, got %v", n, err)
		}
	}
}

func TestApplyMove_TurnEnforcement(t *testing.T) {
	m := activeMatch(1)

	if _, err := m.ApplyMove("bob", 0, t0); !errors.Is(err, domain.ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if _, err := m.ApplyMove("carol", 0, t0); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestApplyMove_RejectedWhenNotActive(t *testing.T) {
	m := activeMatch(1)
	m.Status = domain.MatchStatusCompleted
	if _, err := m.ApplyMove("alice", 0, t0); !errors.Is(err, domain.ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
}

func TestApplyMove_PassesTurn(t *testing.T) {
	m := activeMatch(3)
	now := t0.Add(time.Minute)

	effect, err := m.ApplyMove("alice", 4, now)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if effect != domain.MoveTurnPassed {
		t.Errorf("effect: got %v, want MoveTurnPassed", effect)
	}
	if m.CurrentTurn != "bob" {
		t.Errorf("turn: got %q, want bob", m.CurrentTurn)
	}
	if !m.LastMoveAt.Equal(now) {
		t.Errorf("lastMoveAt not updated")
	}
}

func TestApplyMove_SingleRoundWinCompletesMatch(t *testing.T) {
	m := activeMatch(1)

	// alice: 0,1,2 — bob: 3,4.
	effect := playRound(t, m, []int{0, 3, 1, 4, 2})

	if effect != domain.MoveMatchWon {
		t.Fatalf("effect: got %v, want MoveMatchWon", effect)
	}
	if m.Status != domain.MatchStatusCompleted || m.Result != domain.MatchResultWin {
		t.Errorf("status/result: got %v/%v", m.Status, m.Result)
	}
	if m.WinnerID != "alice" {
		t.Errorf("winner: got %q, want alice", m.WinnerID)
	}
}

func TestApplyMove_BestOfThreeBoundary(t *testing.T) {
	m := activeMatch(3)

	// Round 1: alice wins. Match continues at 1-0.
	if effect := playRound(t, m, []int{0, 3, 1, 4, 2}); effect != domain.MoveRoundWon {
		t.Fatalf("round 1 effect: got %v, want MoveRoundWon", effect)
	}
	if m.Status != domain.MatchStatusActive {
		t.Fatalf("match ended early at 1-0")
	}
	if m.Round != 2 {
		t.Errorf("round: got %d, want 2", m.Round)
	}
	// The opening player alternates between rounds.
	if m.CurrentTurn != "bob" {
		t.Errorf("round 2 opener: got %q, want bob", m.CurrentTurn)
	}

	// Round 2: bob evens the score to 1-1. Still active.
	if effect := playRound(t, m, []int{0, 3, 1, 4, 2}); effect != domain.MoveRoundWon {
		t.Fatalf("round 2 effect: got %v", effect)
	}
	if m.Status != domain.MatchStatusActive {
		t.Fatalf("match ended at 1-1")
	}
	if m.Players["alice"].RoundWins != 1 || m.Players["bob"].RoundWins != 1 {
		t.Fatalf("score: got %d-%d, want 1-1",
			m.Players["alice"].RoundWins, m.Players["bob"].RoundWins)
	}

	// Round 3: alice reaches 2 round wins and takes the match.
	if effect := playRound(t, m, []int{0, 3, 1, 4, 2}); effect != domain.MoveMatchWon {
		t.Fatalf("round 3 effect: got %v, want MoveMatchWon", effect)
	}
	if m.WinnerID != "alice" {
		t.Errorf("winner: got %q, want alice", m.WinnerID)
	}
}

func TestApplyMove_DrawReplaysRoundInMultiRound(t *testing.T) {
	m := activeMatch(3)

	// Full board, no line: X at 0,1,5,6,8 — O at 2,3,4,7.
	effect := playRound(t, m, []int{0, 2, 1, 3, 5, 4, 6, 7, 8})

	if effect != domain.MoveRoundDrawn {
		t.Fatalf("effect: got %v, want MoveRoundDrawn", effect)
	}
	if m.Status != domain.MatchStatusActive {
		t.Fatalf("drawn round must not end a best-of-3 match")
	}
	if m.Players["alice"].RoundWins != 0 || m.Players["bob"].RoundWins != 0 {
		t.Errorf("draw must not change the score")
	}
	if m.Round != 2 {
		t.Errorf("round: got %d, want 2", m.Round)
	}
	for _, cell := range m.Board {
		if cell != "" {
			t.Fatalf("board not reset after draw")
		}
	}
}

func TestApplyMove_DrawEndsSingleRoundMatch(t *testing.T) {
	m := activeMatch(1)

	effect := playRound(t, m, []int{0, 2, 1, 3, 5, 4, 6, 7, 8})

	if effect != domain.MoveMatchDrawn {
		t.Fatalf("effect: got %v, want MoveMatchDrawn", effect)
	}
	if m.Status != domain.MatchStatusCompleted || m.Result != domain.MatchResultDraw {
		t.Errorf("status/result: got %v/%v", m.Status, m.Result)
	}
	if m.WinnerID != "" {
		t.Errorf("draw must not set a winner, got %q", m.WinnerID)
	}
}

func TestClaimTimeout_Exclusivity(t *testing.T) {
	const timer = 2 * time.Minute
	m := activeMatch(3)
	late := t0.Add(timer + time.Second)

	// The side to move cannot claim its own lateness.
	if err := m.ClaimTimeout("alice", timer, late); !errors.Is(err, domain.ErrNotYourTurn) {
		t.Fatalf("mover claim: expected ErrNotYourTurn, got %v", err)
	}

	// The opponent cannot claim before the deadline.
	if err := m.ClaimTimeout("bob", timer, t0.Add(time.Minute)); !errors.Is(err, domain.ErrTimeoutNotReached) {
		t.Fatalf("early claim: expected ErrTimeoutNotReached, got %v", err)
	}

	// Outsiders cannot claim at all.
	if err := m.ClaimTimeout("carol", timer, late); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("outsider claim: expected ErrNotParticipant, got %v", err)
	}

	// The opponent claims after the deadline.
	if err := m.ClaimTimeout("bob", timer, late); err != nil {
		t.Fatalf("valid claim failed: %v", err)
	}
	if m.Status != domain.MatchStatusCompleted || m.Result != domain.MatchResultTimeout {
		t.Errorf("status/result: got %v/%v", m.Status, m.Result)
	}
	if m.WinnerID != "bob" {
		t.Errorf("winner: got %q, want bob", m.WinnerID)
	}
}
