package authflow

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/ledgermint/authflow/catalog"
	"github.com/ledgermint/authflow/internal/limiters"
	"github.com/ledgermint/authflow/internal/stores"
	"github.com/ledgermint/authflow/session"
	"github.com/ledgermint/authflow/statetoken"
)

// Builder assembles an Engine. Zero-value collaborators fall back to
// safe defaults where one exists; credential storage and Redis do not
// have defaults and must be provided.
type Builder struct {
	config Config
	redis  *redis.Client

	credentials CredentialStore
	accounts    AccountRepository
	oauth       OAuthFlow
	verifier    SecondFactorVerifier
	catalog     MessageCatalog
	events      EventSink
	auditSink   AuditSink

	built bool
}

// New returns a Builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing sessions, pending markers and the
// replay denylist.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the user and account persistence collaborator.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithAccountRepository sets the collaborator performing identity
// unlinking and trial-account cleanup.
func (b *Builder) WithAccountRepository(repo AccountRepository) *Builder {
	b.accounts = repo
	return b
}

// WithOAuthFlow enables external provider login.
func (b *Builder) WithOAuthFlow(flow OAuthFlow) *Builder {
	b.oauth = flow
	return b
}

// WithSecondFactorVerifier sets the code verifier. Without one the
// engine accepts any non-empty code and relies on the replay denylist.
func (b *Builder) WithSecondFactorVerifier(v SecondFactorVerifier) *Builder {
	b.verifier = v
	return b
}

// WithMessageCatalog replaces the built-in English messages.
func (b *Builder) WithMessageCatalog(mc MessageCatalog) *Builder {
	b.catalog = mc
	return b
}

// WithEventSink sets the destination for UserLoggedIn events.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.events = sink
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, constructs the Redis-backed stores
// and returns a ready Engine. A Builder can build once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cfg,
		credentials: b.credentials,
		accounts:    b.accounts,
		oauth:       b.oauth,
		verifier:    b.verifier,
	}

	engine.sessions = session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.Lifetime)
	engine.replays = stores.NewReplayDenylist(b.redis)
	engine.lockout = limiters.NewLockout(b.credentials, limiters.LockoutConfig{
		MaxFailedLogins: cfg.Lockout.MaxFailedLogins,
	})
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	if b.oauth != nil {
		if len(cfg.OAuth.StateSecret) == 0 {
			return nil, errors.New("OAuth.StateSecret required when an OAuth flow is configured")
		}
		sm, err := statetoken.NewManager(statetoken.Config{
			Secret: cfg.OAuth.StateSecret,
			TTL:    cfg.OAuth.StateTTL,
		})
		if err != nil {
			return nil, err
		}
		engine.stateTokens = sm
	}

	engine.catalog = b.catalog
	if engine.catalog == nil {
		engine.catalog = catalog.Default().Base()
	}

	engine.events = b.events
	if engine.events == nil {
		engine.events = NoOpEventSink{}
	}

	b.built = true

	return engine, nil
}
