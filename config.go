package authflow

import (
	"errors"
	"strings"
	"time"
)

// Config carries every tunable of the engine. Configure once, pass to the
// Builder, treat as immutable afterwards.
type Config struct {
	Lockout      LockoutConfig
	SecondFactor SecondFactorConfig
	Session      SessionConfig
	Site         SiteConfig
	Paths        PathConfig
	OAuth        OAuthConfig
	Audit        AuditConfig
	Metrics      MetricsConfig

	// DisabledLinkAccounts is a reserved extension point for attaching an
	// additional account to an existing login. The behavior is
	// intentionally not implemented; Validate rejects enabling it.
	DisabledLinkAccounts bool
}

// LockoutConfig governs failed-login throttling.
type LockoutConfig struct {
	// MaxFailedLogins is the admission threshold. Once an account's
	// counter reaches it, every attempt is denied with the generic
	// invalid-credentials message until a successful authentication
	// resets the counter.
	MaxFailedLogins int
	// DecayWindow is a documented extension: when > 0, storage
	// implementations may age out the counter after this duration.
	// 0 (the default) means lockout is lifted only by a success.
	DecayWindow time.Duration
}

// SecondFactorConfig governs the one-time-code challenge step.
type SecondFactorConfig struct {
	// CodeTTL bounds both the code validity window and the replay
	// denylist entry lifetime. Entries expire passively; they are never
	// deleted explicitly.
	CodeTTL time.Duration
	// PendingMarkerTTL bounds the read-once pending-user marker. An
	// abandoned challenge simply expires with it.
	PendingMarkerTTL time.Duration
}

// SessionConfig governs the Redis-backed session store.
type SessionConfig struct {
	RedisPrefix string
	Lifetime    time.Duration
}

// SiteConfig describes the hosted deployment shape used by the
// pre-login host guard.
type SiteConfig struct {
	// Hosted enables the canonical-host redirect; self-hosted
	// deployments leave it off.
	Hosted bool
	// CanonicalLoginHost is the host logins must happen on so that OAuth
	// redirect URIs stay stable, e.g. "app.example.com".
	CanonicalLoginHost string
	// TenantSubdomainPrefix marks recognised tenant hosts that are
	// exempt from the canonical redirect.
	TenantSubdomainPrefix string
	// SkipHostCheck disables the guard entirely (test environments).
	SkipHostCheck bool
}

// PathConfig holds the redirect targets the orchestrator emits.
type PathConfig struct {
	Landing       string
	Login         string
	Setup         string
	Challenge     string
	Settings      string
	OAuthCallback string
}

// OAuthConfig configures the signed state parameter protecting the
// provider handshake.
type OAuthConfig struct {
	StateSecret []byte
	StateTTL    time.Duration
}

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit non-blocking; dropped events are counted.
	DropIfFull bool
}

// MetricsConfig configures the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Lockout: LockoutConfig{
			MaxFailedLogins: 5,
		},
		SecondFactor: SecondFactorConfig{
			CodeTTL:          4 * time.Minute,
			PendingMarkerTTL: 10 * time.Minute,
		},
		Session: SessionConfig{
			RedisPrefix: "af",
			Lifetime:    12 * time.Hour,
		},
		Paths: PathConfig{
			Landing:       "/dashboard",
			Login:         "/login",
			Setup:         "/setup",
			Challenge:     "/validate_two_factor",
			Settings:      "/settings/user_details",
			OAuthCallback: "/auth",
		},
		OAuth: OAuthConfig{
			StateTTL: 5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultConfig returns the engine defaults. Deployments override fields
// before building; tests shrink TTLs and thresholds the same way.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.OAuth.StateSecret = cloneBytes(cfg.OAuth.StateSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks the configuration for values the engine cannot run
// with.
func (c Config) Validate() error {
	if c.Lockout.MaxFailedLogins <= 0 {
		return errors.New("Lockout.MaxFailedLogins must be positive")
	}
	if c.Lockout.DecayWindow < 0 {
		return errors.New("Lockout.DecayWindow must not be negative")
	}
	if c.SecondFactor.CodeTTL <= 0 {
		return errors.New("SecondFactor.CodeTTL must be positive")
	}
	if c.SecondFactor.PendingMarkerTTL <= 0 {
		return errors.New("SecondFactor.PendingMarkerTTL must be positive")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("Session.Lifetime must be positive")
	}
	if c.Site.Hosted && !c.Site.SkipHostCheck && c.Site.CanonicalLoginHost == "" {
		return errors.New("Site.CanonicalLoginHost required for hosted deployments")
	}
	for _, p := range []string{
		c.Paths.Landing, c.Paths.Login, c.Paths.Setup,
		c.Paths.Challenge, c.Paths.Settings, c.Paths.OAuthCallback,
	} {
		if p == "" || !strings.HasPrefix(p, "/") {
			return errors.New("Paths entries must be absolute paths")
		}
	}
	if c.DisabledLinkAccounts {
		return errors.New("account linking is a disabled extension point")
	}
	return nil
}
