package limiters

import (
	"context"
	"errors"
	"fmt"
)

// LockoutConfig holds configuration for the failed-login lockout policy.
type LockoutConfig struct {
	// MaxFailedLogins is the admission threshold.
	MaxFailedLogins int
}

var (
	// ErrLocked reports that the account's failure counter has reached
	// the threshold. Internal signal only: callers surface it as a
	// generic invalid-credentials denial.
	ErrLocked = errors.New("failed login threshold reached")
	// ErrLockoutUnavailable indicates the counter backend is unreachable.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// FailedLoginStore persists the per-account failure counter. Unknown
// identifiers are no-ops: FailedLogins returns 0 and Increment does
// nothing, so lockout state never reveals account existence. Increments
// must be atomic read-modify-writes at the storage boundary.
type FailedLoginStore interface {
	FailedLogins(ctx context.Context, email string) (int, error)
	IncrementFailedLogins(ctx context.Context, email string) error
	ResetFailedLogins(ctx context.Context, email string) error
}

// Lockout gates login admission on the persistent failure counter. The
// counter has no time-based decay: it is cleared exclusively by
// RecordSuccess after a completed authentication.
type Lockout struct {
	store  FailedLoginStore
	config LockoutConfig
}

// NewLockout creates the policy over the given counter store.
func NewLockout(store FailedLoginStore, cfg LockoutConfig) *Lockout {
	return &Lockout{store: store, config: cfg}
}

// Admit reports whether a login attempt for the identifier may proceed.
// Returns ErrLocked at or above the threshold.
func (l *Lockout) Admit(ctx context.Context, email string) error {
	count, err := l.store.FailedLogins(ctx, email)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if count >= l.config.MaxFailedLogins {
		return ErrLocked
	}
	return nil
}

// RecordFailure increments the counter for the identifier. This is the
// only way the counter increases.
func (l *Lockout) RecordFailure(ctx context.Context, email string) error {
	if err := l.store.IncrementFailedLogins(ctx, email); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// RecordSuccess resets the counter to zero after a completed
// authentication.
func (l *Lockout) RecordSuccess(ctx context.Context, email string) error {
	if err := l.store.ResetFailedLogins(ctx, email); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}
