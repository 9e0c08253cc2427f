package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/stakehouse/stakehouse/internal/domain"
	"github.com/stakehouse/stakehouse/internal/observability"
)

// DefaultMaxTxRetries bounds the optimistic-transaction retry loop when no
// explicit limit is configured.
const DefaultMaxTxRetries = 5

// withRetry runs op until it succeeds or fails with anything other than a
// version conflict. Conflicts are retried up to attempts times; exhaustion
// surfaces domain.ErrConflict so the caller can decide to retry the whole
// operation. The loop never sleeps: conflicting writers have already
// committed, so an immediate re-read observes fresh state.
func withRetry(ctx context.Context, attempts int, metrics *observability.Metrics, op func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = DefaultMaxTxRetries
	}

	var err error
	for i := 0; i < attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = op(ctx)
		if err == nil || !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
		metrics.IncTxRetries()
	}

	metrics.IncTxConflicts()
	return fmt.Errorf("%w (after %d attempts): %v", domain.ErrConflict, attempts, err)
}
