package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadySettled    = errors.New("event already settled")
	ErrAlreadyStarted    = errors.New("match already started")
	ErrIllegalMove       = errors.New("illegal move")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrTimeoutNotReached = errors.New("turn deadline has not passed")
	ErrNotParticipant    = errors.New("not a participant")
	ErrValidation        = errors.New("validation failed")
	ErrVersionConflict   = errors.New("record changed since read")
	ErrConflict          = errors.New("too much contention, retries exhausted")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrLockHeld          = errors.New("lock already held")
)
