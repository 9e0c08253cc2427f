package domain_test

import (
	"errors"
	"testing"

	"github.com/stakehouse/stakehouse/internal/domain"
)

func TestWallet_LockMovesFunds(t *testing.T) {
	u := domain.User{Balance: 1000}

	if err := u.Lock(400); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if u.Balance != 600 {
		t.Errorf("balance: got %d, want 600", u.Balance)
	}
	if u.LockedBalance != 400 {
		t.Errorf("locked: got %d, want 400", u.LockedBalance)
	}
}

func TestWallet_LockInsufficientFunds(t *testing.T) {
	u := domain.User{Balance: 100}

	err := u.Lock(400)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	// A failed lock must leave the wallet untouched.
	if u.Balance != 100 || u.LockedBalance != 0 {
		t.Errorf("wallet mutated on failed lock: balance=%d locked=%d", u.Balance, u.LockedBalance)
	}
}

func TestWallet_LockRejectsNonPositive(t *testing.T) {
	u := domain.User{Balance: 100}
	for _, amount := range []int64{0, -50} {
		if err := u.Lock(amount); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("Lock(%d): expected ErrValidation, got %v", amount, err)
		}
	}
}

func TestWallet_UnlockClampsAtZero(t *testing.T) {
	u := domain.User{Balance: 0, LockedBalance: 300}

	u.Unlock(500)
	if u.LockedBalance != 0 {
		t.Errorf("locked: got %d, want 0", u.LockedBalance)
	}
	if u.Balance != 0 {
		t.Errorf("unlock must not credit balance, got %d", u.Balance)
	}
}

func TestWallet_ReleaseToBalance(t *testing.T) {
	u := domain.User{Balance: 100, LockedBalance: 300}

	u.ReleaseToBalance(300)
	if u.Balance != 400 || u.LockedBalance != 0 {
		t.Errorf("got balance=%d locked=%d, want 400/0", u.Balance, u.LockedBalance)
	}
}

func TestWallet_ReleaseClampsToLocked(t *testing.T) {
	u := domain.User{Balance: 100, LockedBalance: 200}

	// Releasing more than is locked must not mint money.
	u.ReleaseToBalance(500)
	if u.Balance != 300 || u.LockedBalance != 0 {
		t.Errorf("got balance=%d locked=%d, want 300/0", u.Balance, u.LockedBalance)
	}
}

func TestWallet_SettleWinPaysPot(t *testing.T) {
	// Winner of a 500-cent match: stake cleared from escrow, full pot credited.
	u := domain.User{Balance: 0, LockedBalance: 500}

	u.SettleWin(500, 1000)
	if u.Balance != 1000 {
		t.Errorf("balance: got %d, want 1000", u.Balance)
	}
	if u.LockedBalance != 0 {
		t.Errorf("locked: got %d, want 0", u.LockedBalance)
	}
}

func TestWallet_DebitInsufficientFunds(t *testing.T) {
	u := domain.User{Balance: 99}
	if err := u.Debit(100); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestWallet_NetWorth(t *testing.T) {
	u := domain.User{Balance: 250, LockedBalance: 750}
	if u.NetWorth() != 1000 {
		t.Errorf("net worth: got %d, want 1000", u.NetWorth())
	}
}

func TestMulCents_RoundsHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		amount int64
		mult   float64
		want   int64
	}{
		{1000, 9.9275, 9928}, // $10 at the 3-leg sample multiplier
		{1000, 1.90, 1900},
		{333, 1.5, 500}, // 499.5 rounds up
		{100, 1.0, 100},
	}
	for _, c := range cases {
		if got := domain.MulCents(c.amount, c.mult); got != c.want {
			t.Errorf("MulCents(%d, %v): got %d, want %d", c.amount, c.mult, got, c.want)
		}
	}
}

func TestFormatCents(t *testing.T) {
	if got := domain.FormatCents(9928); got != "$99.28" {
		t.Errorf("got %q, want $99.28", got)
	}
	if got := domain.FormatCents(-105); got != "-$1.05" {
		t.Errorf("got %q, want -$1.05", got)
	}
}
