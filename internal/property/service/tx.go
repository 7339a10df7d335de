package service

import (
	"context"
	"time"

	dErrors "propreg/pkg/domain-errors"
)

// StoreTx is the transactional boundary around store mutations. Stores
// already make each call atomic; the boundary adds the deadline and the
// cancellation check.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// defaultTxTimeout is the maximum duration for a registry transaction.
const defaultTxTimeout = 5 * time.Second

type boundedTx struct {
	store   Store
	timeout time.Duration
}

// NewBoundedTx returns a StoreTx that applies timeout (or the default when
// zero) to contexts without a deadline.
func NewBoundedTx(store Store, timeout time.Duration) StoreTx {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &boundedTx{store: store, timeout: timeout}
}

func (t *boundedTx) RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	if err := fn(ctx, t.store); err != nil {
		if ctx.Err() != nil {
			if _, ok := dErrors.As(err); !ok {
				return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: deadline exceeded")
			}
		}
		return err
	}
	return nil
}
