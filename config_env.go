package authflow

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig mirrors the tunable subset of Config as raw environment
// values. Zero values fall back to the defaults.
type envConfig struct {
	MaxFailedLogins  int           `env:"AUTHFLOW_MAX_FAILED_LOGINS"`
	LockoutDecay     time.Duration `env:"AUTHFLOW_LOCKOUT_DECAY"`
	CodeTTL          time.Duration `env:"AUTHFLOW_2FA_CODE_TTL"`
	PendingMarkerTTL time.Duration `env:"AUTHFLOW_2FA_PENDING_TTL"`
	SessionPrefix    string        `env:"AUTHFLOW_SESSION_PREFIX"`
	SessionLifetime  time.Duration `env:"AUTHFLOW_SESSION_LIFETIME"`
	Hosted           bool          `env:"AUTHFLOW_HOSTED"`
	CanonicalHost    string        `env:"AUTHFLOW_CANONICAL_LOGIN_HOST"`
	SubdomainPrefix  string        `env:"AUTHFLOW_TENANT_SUBDOMAIN_PREFIX"`
	SkipHostCheck    bool          `env:"AUTHFLOW_SKIP_HOST_CHECK"`
	OAuthStateSecret string        `env:"AUTHFLOW_OAUTH_STATE_SECRET"`
	OAuthStateTTL    time.Duration `env:"AUTHFLOW_OAUTH_STATE_TTL"`
	AuditEnabled     *bool         `env:"AUTHFLOW_AUDIT_ENABLED"`
	MetricsEnabled   *bool         `env:"AUTHFLOW_METRICS_ENABLED"`
}

// ConfigFromEnv builds a Config from AUTHFLOW_* environment variables on
// top of the defaults. The result is validated.
func ConfigFromEnv() (Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := defaultConfig()
	if raw.MaxFailedLogins > 0 {
		cfg.Lockout.MaxFailedLogins = raw.MaxFailedLogins
	}
	if raw.LockoutDecay > 0 {
		cfg.Lockout.DecayWindow = raw.LockoutDecay
	}
	if raw.CodeTTL > 0 {
		cfg.SecondFactor.CodeTTL = raw.CodeTTL
	}
	if raw.PendingMarkerTTL > 0 {
		cfg.SecondFactor.PendingMarkerTTL = raw.PendingMarkerTTL
	}
	if raw.SessionPrefix != "" {
		cfg.Session.RedisPrefix = raw.SessionPrefix
	}
	if raw.SessionLifetime > 0 {
		cfg.Session.Lifetime = raw.SessionLifetime
	}
	cfg.Site.Hosted = raw.Hosted
	if raw.CanonicalHost != "" {
		cfg.Site.CanonicalLoginHost = raw.CanonicalHost
	}
	if raw.SubdomainPrefix != "" {
		cfg.Site.TenantSubdomainPrefix = raw.SubdomainPrefix
	}
	cfg.Site.SkipHostCheck = raw.SkipHostCheck
	if raw.OAuthStateSecret != "" {
		cfg.OAuth.StateSecret = []byte(raw.OAuthStateSecret)
	}
	if raw.OAuthStateTTL > 0 {
		cfg.OAuth.StateTTL = raw.OAuthStateTTL
	}
	if raw.AuditEnabled != nil {
		cfg.Audit.Enabled = *raw.AuditEnabled
	}
	if raw.MetricsEnabled != nil {
		cfg.Metrics.Enabled = *raw.MetricsEnabled
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
