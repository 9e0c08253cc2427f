package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// startMatch creates and joins a best-of-N match with a deterministic draw:
// the creator holds X and opens.
func startMatch(t *testing.T, f *fixture, creatorID, joinerID string, wager int64, matchType int) domain.Match {
	t.Helper()
	ctx := context.Background()
	f.matches.WithRand(zeroRand{})
	m, err := f.matches.CreateMatch(ctx, creatorID, wager, matchType, "")
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	m, err = f.matches.JoinMatch(ctx, m.ID, joinerID)
	if err != nil {
		t.Fatalf("JoinMatch: %v", err)
	}
	return m
}

// playRound plays out the current round with the given cell sequence,
// alternating from whoever is to move.
func playRound(t *testing.T, f *fixture, matchID string, cells []int) domain.Match {
	t.Helper()
	ctx := context.Background()
	var m domain.Match
	for _, cell := range cells {
		cur, err := f.matches.GetMatch(ctx, matchID)
		if err != nil {
			t.Fatalf("GetMatch: %v", err)
		}
		m, err = f.matches.MakeMove(ctx, matchID, cur.CurrentTurn, cell)
		if err != nil {
			t.Fatalf("MakeMove cell %d: %v", cell, err)
		}
	}
	return m
}

func TestCreateMatchEscrowsStake(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	m, err := f.matches.CreateMatch(ctx, alice.ID, 10_000, 3, "")
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	if m.Pot != 10_000 || m.Status != domain.MatchStatusOpen {
		t.Fatalf("match = %+v, want open with pot 10000", m)
	}

	u := f.balance(t, alice.ID)
	if u.Balance != 90_000 || u.LockedBalance != 10_000 {
		t.Fatalf("wallet = %d/%d, want 90000/10000", u.Balance, u.LockedBalance)
	}
}

func TestCreateMatchValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	if _, err := f.matches.CreateMatch(ctx, alice.ID, 0, 3, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("zero wager err = %v, want ErrValidation", err)
	}
	if _, err := f.matches.CreateMatch(ctx, alice.ID, 1_000, 4, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("even matchType err = %v, want ErrValidation", err)
	}
	if _, err := f.matches.CreateMatch(ctx, alice.ID, 1_000, 3, alice.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("self-challenge err = %v, want ErrValidation", err)
	}
	if _, err := f.matches.CreateMatch(ctx, alice.ID, 1_000_000, 3, ""); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("over-balance wager err = %v, want ErrInsufficientFunds", err)
	}
}

func TestCancelMatchReleasesEscrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	m, err := f.matches.CreateMatch(ctx, alice.ID, 10_000, 3, "")
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	if _, err := f.matches.CancelMatch(ctx, m.ID, bob.ID); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("outsider cancel err = %v, want ErrNotParticipant", err)
	}
	if _, err := f.matches.CancelMatch(ctx, m.ID, alice.ID); err != nil {
		t.Fatalf("CancelMatch: %v", err)
	}

	u := f.balance(t, alice.ID)
	if u.Balance != 100_000 || u.LockedBalance != 0 {
		t.Fatalf("wallet after cancel = %d/%d, want 100000/0", u.Balance, u.LockedBalance)
	}
	if _, err := f.matches.JoinMatch(ctx, m.ID, bob.ID); !errors.Is(err, domain.ErrAlreadyStarted) {
		t.Fatalf("join after cancel err = %v, want ErrAlreadyStarted", err)
	}
}

func TestJoinMatchActivates(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	m := startMatch(t, f, alice.ID, bob.ID, 10_000, 3)
	if m.Status != domain.MatchStatusActive || m.Pot != 20_000 || m.Round != 1 {
		t.Fatalf("match = %+v, want active round 1 pot 20000", m)
	}
	if m.Players[alice.ID].Symbol == m.Players[bob.ID].Symbol {
		t.Fatalf("both players drew %q", m.Players[alice.ID].Symbol)
	}
	if m.CurrentTurn != m.StartingPlayer {
		t.Fatalf("current turn %s != starting player %s", m.CurrentTurn, m.StartingPlayer)
	}

	for _, id := range []string{alice.ID, bob.ID} {
		u := f.balance(t, id)
		if u.Balance != 90_000 || u.LockedBalance != 10_000 {
			t.Fatalf("wallet %s = %d/%d, want 90000/10000", id, u.Balance, u.LockedBalance)
		}
	}
}

func TestJoinMatchGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")

	m, err := f.matches.CreateMatch(ctx, alice.ID, 10_000, 3, bob.ID)
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}

	if _, err := f.matches.JoinMatch(ctx, m.ID, alice.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("self-join err = %v, want ErrValidation", err)
	}
	if _, err := f.matches.JoinMatch(ctx, m.ID, carol.ID); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("uninvited join err = %v, want ErrNotParticipant", err)
	}
	if _, err := f.matches.JoinMatch(ctx, m.ID, bob.ID); err != nil {
		t.Fatalf("invited join: %v", err)
	}
	if _, err := f.matches.JoinMatch(ctx, m.ID, carol.ID); !errors.Is(err, domain.ErrAlreadyStarted) {
		t.Fatalf("join after start err = %v, want ErrAlreadyStarted", err)
	}
	if got := f.balance(t, carol.ID); got.Balance != 100_000 || got.LockedBalance != 0 {
		t.Fatalf("failed joins moved money: %d/%d", got.Balance, got.LockedBalance)
	}
}

func TestJoinMatchRaceSeatsExactlyOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")

	m, err := f.matches.CreateMatch(ctx, alice.ID, 10_000, 3, "")
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, joiner := range []string{bob.ID, carol.ID} {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := f.matches.JoinMatch(ctx, m.ID, userID)
			errs <- err
		}(joiner)
	}
	wg.Wait()
	close(errs)

	var seated, refused int
	for err := range errs {
		switch {
		case err == nil:
			seated++
		case errors.Is(err, domain.ErrAlreadyStarted):
			refused++
		default:
			t.Fatalf("JoinMatch err = %v, want nil or ErrAlreadyStarted", err)
		}
	}
	if seated != 1 || refused != 1 {
		t.Fatalf("seated = %d, refused = %d, want exactly one of each", seated, refused)
	}

	got, err := f.matches.GetMatch(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMatch: %v", err)
	}
	if got.Status != domain.MatchStatusActive || got.Pot != 20_000 {
		t.Fatalf("match = %s pot %d, want active pot 20000", got.Status, got.Pot)
	}

	var escrowed int
	for _, userID := range []string{bob.ID, carol.ID} {
		u := f.balance(t, userID)
		switch {
		case u.Balance == 90_000 && u.LockedBalance == 10_000:
			escrowed++
		case u.Balance == 100_000 && u.LockedBalance == 0:
		default:
			t.Fatalf("wallet = %d/%d, want 90000/10000 or 100000/0", u.Balance, u.LockedBalance)
		}
	}
	if escrowed != 1 {
		t.Fatalf("escrowed wallets = %d, want exactly the seated joiner", escrowed)
	}
}

func TestSingleRoundMatchPaysWinner(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	m := startMatch(t, f, alice.ID, bob.ID, 10_000, 1)
	// Opener takes the top row: X at 0, O at 3, X at 1, O at 4, X at 2.
	m = playRound(t, f, m.ID, []int{0, 3, 1, 4, 2})

	if m.Status != domain.MatchStatusCompleted || m.Result != domain.MatchResultWin {
		t.Fatalf("match = %+v, want completed win", m)
	}
	if m.WinnerID != alice.ID {
		t.Fatalf("winner = %s, want opener %s", m.WinnerID, alice.ID)
	}

	winner := f.balance(t, alice.ID)
	loser := f.balance(t, bob.ID)
	if winner.Balance != 110_000 || winner.LockedBalance != 0 {
		t.Fatalf("winner wallet = %d/%d, want 110000/0", winner.Balance, winner.LockedBalance)
	}
	if loser.Balance != 90_000 || loser.LockedBalance != 0 {
		t.Fatalf("loser wallet = %d/%d, want 90000/0", loser.Balance, loser.LockedBalance)
	}
	if total := winner.Balance + loser.Balance; total != 200_000 {
		t.Fatalf("money not conserved: total %d", total)
	}
}

func TestSingleRoundDrawRefundsBoth(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	m := startMatch(t, f, alice.ID, bob.ID, 10_000, 1)
	// Full board, no line: X 0,2,3,5,7 / O 1,4,6,8 with alternation.
	m = playRound(t, f, m.ID, []int{0, 1, 2, 4, 3, 6, 5, 8, 7})

	if m.Status != domain.MatchStatusCompleted || m.Result != domain.MatchResultDraw || m.WinnerID != "" {
		t.Fatalf("match = %+v, want completed draw with no winner", m)
	}
	for _, id := range []string{alice.ID, bob.ID} {
		u := f.balance(t, id)
		if u.Balance != 100_000 || u.LockedBalance != 0 {
			t.Fatalf("wallet %s = %d/%d, want full refund", id, u.Balance, u.LockedBalance)
		}
	}
}

func TestBestOfThreeAlternatesOpener(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	m := startMatch(t, f, alice.ID, bob.ID, 10_000, 3)

	// Round 1: alice opens and wins the top row.
	m = playRound(t, f, m.ID, []int{0, 3, 1, 4, 2})
	if m.Status != domain.MatchStatusActive || m.Round != 2 {
		t.Fatalf("after round 1: %+v, want active round 2", m)
	}
	if m.StartingPlayer != bob.ID || m.CurrentTurn != bob.ID {
		t.Fatalf("round 2 opener = %s, want %s", m.StartingPlayer, bob.ID)
	}

	// Round 2: bob opens and wins; one round each.
	m = playRound(t, f, m.ID, []int{0, 3, 1, 4, 2})
	if m.Status != domain.MatchStatusActive || m.Round != 3 {
		t.Fatalf("after round 2: %+v, want active round 3", m)
	}
	if m.Players[alice.ID].RoundWins != 1 || m.Players[bob.ID].RoundWins != 1 {
		t.Fatalf("round wins = %d/%d, want 1/1", m.Players[alice.ID].RoundWins, m.Players[bob.ID].RoundWins)
	}
	if m.StartingPlayer != alice.ID {
		t.Fatalf("round 3 opener = %s, want %s", m.StartingPlayer, alice.ID)
	}

	// Round 3: alice takes the match.
	m = playRound(t, f, m.ID, []int{0, 3, 1, 4, 2})
	if m.Status != domain.MatchStatusCompleted || m.WinnerID != alice.ID {
		t.Fatalf("final = %+v, want alice winning", m)
	}
	if got := f.balance(t, alice.ID).Balance; got != 110_000 {
		t.Fatalf("winner balance = %d, want 110000", got)
	}
}

func TestDrawnRoundReplaysInBestOfThree(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	m := startMatch(t, f, alice.ID, bob.ID, 10_000, 3)
	m = playRound(t, f, m.ID, []int{0, 1, 2, 4, 3, 6, 5, 8, 7})

	if m.Status != domain.MatchStatusActive || m.Round != 2 {
		t.Fatalf("after drawn round: %+v, want active round 2", m)
	}
	if m.Players[alice.ID].RoundWins != 0 || m.Players[bob.ID].RoundWins != 0 {
		t.Fatalf("drawn round scored a win: %+v", m.Players)
	}
}

func TestMoveGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")

	m := startMatch(t, f, alice.ID, bob.ID, 10_000, 3)

	if _, err := f.matches.MakeMove(ctx, m.ID, carol.ID, 0); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("outsider move err = %v, want ErrNotParticipant", err)
	}
	if _, err := f.matches.MakeMove(ctx, m.ID, bob.ID, 0); !errors.Is(err, domain.ErrNotYourTurn) {
		t.Fatalf("out-of-turn move err = %v, want ErrNotYourTurn", err)
	}
	if _, err := f.matches.MakeMove(ctx, m.ID, alice.ID, 9); !errors.Is(err, domain.ErrIllegalMove) {
		t.Fatalf("out-of-range cell err = %v, want ErrIllegalMove", err)
	}
	if _, err := f.matches.MakeMove(ctx, m.ID, alice.ID, 4); err != nil {
		t.Fatalf("legal move: %v", err)
	}
	if _, err := f.matches.MakeMove(ctx, m.ID, bob.ID, 4); !errors.Is(err, domain.ErrIllegalMove) {
		t.Fatalf("occupied cell err = %v, want ErrIllegalMove", err)
	}
}

func TestClaimTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	clk := &fakeClock{t: time.Now()}
	f.matches.WithClock(clk.Now)
	m := startMatch(t, f, alice.ID, bob.ID, 10_000, 3)

	// Turn timer is one minute; nothing to claim before it lapses.
	if _, err := f.matches.ClaimTimeout(ctx, m.ID, bob.ID); !errors.Is(err, domain.ErrTimeoutNotReached) {
		t.Fatalf("early claim err = %v, want ErrTimeoutNotReached", err)
	}

	clk.Advance(2 * time.Minute)
	if _, err := f.matches.ClaimTimeout(ctx, m.ID, alice.ID); !errors.Is(err, domain.ErrNotYourTurn) {
		t.Fatalf("mover's own claim err = %v, want ErrNotYourTurn", err)
	}

	m, err := f.matches.ClaimTimeout(ctx, m.ID, bob.ID)
	if err != nil {
		t.Fatalf("ClaimTimeout: %v", err)
	}
	if m.Result != domain.MatchResultTimeout || m.WinnerID != bob.ID {
		t.Fatalf("match = %+v, want timeout win for bob", m)
	}

	winner := f.balance(t, bob.ID)
	loser := f.balance(t, alice.ID)
	if winner.Balance != 110_000 || winner.LockedBalance != 0 {
		t.Fatalf("claimant wallet = %d/%d, want 110000/0", winner.Balance, winner.LockedBalance)
	}
	if loser.Balance != 90_000 || loser.LockedBalance != 0 {
		t.Fatalf("forfeiter wallet = %d/%d, want 90000/0", loser.Balance, loser.LockedBalance)
	}

	// The match is terminal; neither moves nor second claims land.
	if _, err := f.matches.ClaimTimeout(ctx, m.ID, bob.ID); !errors.Is(err, domain.ErrIllegalMove) {
		t.Fatalf("claim on completed match err = %v, want ErrIllegalMove", err)
	}
}

func TestMoveResetsTurnClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	clk := &fakeClock{t: time.Now()}
	f.matches.WithClock(clk.Now)
	m := startMatch(t, f, alice.ID, bob.ID, 10_000, 3)

	clk.Advance(50 * time.Second)
	if _, err := f.matches.MakeMove(ctx, m.ID, alice.ID, 4); err != nil {
		t.Fatalf("MakeMove: %v", err)
	}

	// 70s since activation but only 20s since the last move.
	clk.Advance(20 * time.Second)
	if _, err := f.matches.ClaimTimeout(ctx, m.ID, alice.ID); !errors.Is(err, domain.ErrTimeoutNotReached) {
		t.Fatalf("claim err = %v, want ErrTimeoutNotReached", err)
	}
}
