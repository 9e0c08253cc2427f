package domain

import (
	"fmt"
	"time"
)

// User is a participant with a two-part wallet. Balance is spendable;
// LockedBalance holds funds escrowed against open matches. Both are cents and
// never go negative: an operation that would breach that fails instead.
type User struct {
	ID            string
	Username      string
	Balance       int64
	LockedBalance int64
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NetWorth is the ranking value: spendable plus escrowed funds.
func (u *User) NetWorth() int64 {
	return u.Balance + u.LockedBalance
}

// Lock moves amount from Balance into LockedBalance. It fails with
// ErrInsufficientFunds when the spendable balance cannot cover the amount.
func (u *User) Lock(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: lock amount must be positive", ErrValidation)
	}
	if u.Balance < amount {
		return ErrInsufficientFunds
	}
	u.Balance -= amount
	u.LockedBalance += amount
	return nil
}

// Unlock removes amount from LockedBalance without crediting it anywhere.
// The locked balance is clamped at zero so a defect elsewhere cannot drive
// the wallet negative.
func (u *User) Unlock(amount int64) {
	u.LockedBalance -= amount
	if u.LockedBalance < 0 {
		u.LockedBalance = 0
	}
}

// ReleaseToBalance returns escrowed funds to the spendable balance, used on
// refund and cancel paths. The locked side is clamped at zero.
func (u *User) ReleaseToBalance(amount int64) {
	if amount > u.LockedBalance {
		amount = u.LockedBalance
	}
	u.LockedBalance -= amount
	u.Balance += amount
}

// SettleWin clears the escrowed stake and credits the payout. The payout
// already includes the winner's own stake when the whole pot is paid out, so
// callers must not add it again.
func (u *User) SettleWin(stake, payout int64) {
	u.Unlock(stake)
	u.Balance += payout
}

// Credit adds amount to the spendable balance.
func (u *User) Credit(amount int64) {
	u.Balance += amount
}

// Debit removes amount from the spendable balance, failing with
// ErrInsufficientFunds rather than going negative. Single bets and parlay
// wagers use this path directly; they do not escrow.
func (u *User) Debit(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: debit amount must be positive", ErrValidation)
	}
	if u.Balance < amount {
		return ErrInsufficientFunds
	}
	u.Balance -= amount
	return nil
}
