package tx

import (
	"context"
	"sync"
)

// Runner executes fn atomically with respect to other Runner calls.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// LockingRunner serializes callers with a mutex. It backs the in-memory
// stores, whose own locks make each step atomic; the runner makes the
// validate-then-mutate sequence atomic as a whole.
type LockingRunner struct {
	mu sync.Mutex
}

func NewLockingRunner() *LockingRunner {
	return &LockingRunner{}
}

type lockHeldKey struct{}

func (r *LockingRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Nested calls reuse the held lock.
	if held, _ := ctx.Value(lockHeldKey{}).(*LockingRunner); held == r {
		return fn(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(context.WithValue(ctx, lockHeldKey{}, r))
}
