package authflow

import "errors"

var (
	// ErrInvalidCredentials is the generic login failure. Wrong secrets,
	// unknown identifiers and locked accounts all surface as this error so
	// callers cannot distinguish between them.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoPendingChallenge is returned when a second-factor code arrives
	// with no outstanding pending marker. Recoverable: callers should route
	// back to the start of login.
	ErrNoPendingChallenge = errors.New("no pending second-factor challenge")
	// ErrReplayedCode is returned when a (user, code) pair has already been
	// consumed inside its validity window. User-facing handling is identical
	// to a wrong code.
	ErrReplayedCode = errors.New("second-factor code already used")
	// ErrIdentityNotLinked is returned by UnlinkIdentity when the
	// authenticated account has no external identity to remove.
	ErrIdentityNotLinked = errors.New("no linked external identity")
	// ErrNotAuthenticated is returned by operations that require an
	// established session (unlink, logout) when none exists.
	ErrNotAuthenticated = errors.New("no authenticated session")
	// ErrCleanupFailed wraps storage failures during forced trial-account
	// cleanup. The logout request is aborted; no partial cleanup is left
	// behind.
	ErrCleanupFailed = errors.New("trial account cleanup failed")
	// ErrProviderFlowFailed wraps failures reported by the external OAuth
	// provider flow.
	ErrProviderFlowFailed = errors.New("oauth provider flow failed")
	// ErrSessionUnavailable indicates the session backend is unreachable.
	ErrSessionUnavailable = errors.New("session backend unavailable")
	// ErrReplayStoreUnavailable indicates the replay denylist backend is
	// unreachable. Fail closed: the code is not accepted.
	ErrReplayStoreUnavailable = errors.New("replay denylist backend unavailable")
	// ErrEngineNotReady is returned when the engine is used before Build
	// completed or with missing collaborators.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// errAccountLocked marks lockout denials internally. It is never returned
// to callers: the lockout gate reports ErrInvalidCredentials so that a
// locked account is indistinguishable from a wrong password.
var errAccountLocked = errors.New("account locked")
