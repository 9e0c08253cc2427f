package domain

import "math/rand/v2"

// Rand is the randomness source used for symbol assignment and first-turn
// selection at match join time. It is injectable so tests can supply a
// deterministic sequence instead of relying on the global generator.
type Rand interface {
	// IntN returns a uniform random int in [0, n).
	IntN(n int) int
}

type stdRand struct{}

func (stdRand) IntN(n int) int { return rand.IntN(n) }

// NewRand returns a Rand backed by math/rand/v2's global generator.
func NewRand() Rand { return stdRand{} }
