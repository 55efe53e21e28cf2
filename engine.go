package authflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgermint/authflow/internal/limiters"
	"github.com/ledgermint/authflow/internal/stores"
	"github.com/ledgermint/authflow/session"
	"github.com/ledgermint/authflow/statetoken"
)

// Session fields. The pending marker key matches the legacy session
// layout so mixed deployments can drain in place.
const (
	sessionKeyAuthUser    = "auth:user_id"
	sessionKeyPendingUser = "2fa:user:id"
	sessionKeyOAuthNonce  = "oauth:state_nonce"
)

const (
	msgKeyInvalidCredentials = "invalid_credentials"
	msgKeyUpdatedSettings    = "updated_settings"

	fallbackInvalidCredentials = "These credentials do not match our records."
)

// Engine orchestrates login, second-factor challenges, provider entry,
// identity unlinking and logout. Safe for concurrent use; construct it
// through the Builder and treat it as immutable afterwards.
type Engine struct {
	config      Config
	sessions    *session.Store
	replays     *stores.ReplayDenylist
	lockout     *limiters.Lockout
	stateTokens *statetoken.Manager
	audit       *auditDispatcher
	metrics     *Metrics

	credentials CredentialStore
	accounts    AccountRepository
	oauth       OAuthFlow
	verifier    SecondFactorVerifier
	catalog     MessageCatalog
	events      EventSink
}

// Close drains the audit dispatcher. The engine must not be used after
// Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counter values.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.sessions == nil || e.credentials == nil {
		return ErrEngineNotReady
	}
	return nil
}

// message resolves a catalog key, falling back to the built-in text for
// the keys the engine emits itself.
func (e *Engine) message(key string) string {
	if e.catalog != nil && e.catalog.Has(key) {
		return e.catalog.Translate(key)
	}
	if key == msgKeyInvalidCredentials {
		return fallbackInvalidCredentials
	}
	return key
}

// AuthenticatedUserID returns the user id bound to the session, or
// ErrNotAuthenticated when the session holds no authenticated user.
func (e *Engine) AuthenticatedUserID(ctx context.Context, sessionID string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	userID, err := e.sessions.Get(ctx, sessionID, sessionKeyAuthUser)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return "", ErrNotAuthenticated
		}
		return "", fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	return userID, nil
}

// BeginLogin evaluates the pre-login guards. A nil Response means no
// guard fired and the caller should present the login form. Guards, in
// order: an already-authenticated session short-circuits to the landing
// page; an empty user table redirects to initial setup; on hosted
// deployments a request arriving off the canonical login host is
// redirected there so provider redirect URIs stay stable, unless the
// host is a recognised tenant subdomain.
func (e *Engine) BeginLogin(ctx context.Context, sessionID string) (*Response, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	if _, err := e.AuthenticatedUserID(ctx, sessionID); err == nil {
		return redirectTo(e.config.Paths.Landing), nil
	} else if !errors.Is(err, ErrNotAuthenticated) {
		return nil, err
	}

	count, err := e.credentials.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return redirectTo(e.config.Paths.Setup), nil
	}

	if loc := e.canonicalHostRedirect(ctx); loc != "" {
		return redirectTo(loc), nil
	}

	return nil, nil
}

func (e *Engine) canonicalHostRedirect(ctx context.Context) string {
	site := e.config.Site
	if !site.Hosted || site.SkipHostCheck {
		return ""
	}

	host := requestHostFromContext(ctx)
	if host == site.CanonicalLoginHost {
		return ""
	}
	if site.TenantSubdomainPrefix != "" && strings.HasPrefix(host, site.TenantSubdomainPrefix) {
		return ""
	}
	return "https://" + site.CanonicalLoginHost + e.config.Paths.Login
}

// admit maps the lockout gate onto the internal locked signal. Locked
// accounts surface exactly like wrong passwords further up.
func (e *Engine) admit(ctx context.Context, email string) error {
	err := e.lockout.Admit(ctx, email)
	if err == nil {
		return nil
	}
	if errors.Is(err, limiters.ErrLocked) {
		return errAccountLocked
	}
	return err
}

// finishAuthentication is the shared tail of every verified login. With
// a second factor enrolled it parks the user behind the read-once
// pending marker and redirects to the challenge view; otherwise it
// establishes the session, resets the lockout counter and publishes
// UserLoggedIn.
func (e *Engine) finishAuthentication(
	ctx context.Context,
	sessionID string,
	user *User,
	method string,
) (*Response, error) {
	account, err := e.credentials.AccountForUser(ctx, user)
	if err != nil {
		return nil, err
	}

	if user.SecondFactorEnrolled() && method != methodSecondFactor {
		// No authenticated session may exist while the challenge is
		// outstanding.
		if err := e.sessions.Delete(ctx, sessionID, sessionKeyAuthUser); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
		}
		if err := e.sessions.Put(
			ctx, sessionID, sessionKeyPendingUser, user.ID,
			e.config.SecondFactor.PendingMarkerTTL,
		); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
		}

		e.metricInc(MetricChallengeIssued)
		e.emitAudit(ctx, auditEventChallengeIssued, true, user.ID, account.ID, sessionID, nil, nil)

		return &Response{
			Kind:       RespondRedirect,
			Location:   e.config.Paths.Challenge + "/" + account.AccountKey,
			AccountKey: account.AccountKey,
		}, nil
	}

	if err := e.sessions.Put(ctx, sessionID, sessionKeyAuthUser, user.ID, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	if err := e.lockout.RecordSuccess(ctx, user.Email); err != nil {
		// The login itself succeeded; losing the counter reset is not
		// worth failing it over.
		log.Printf("authflow: failed-login counter reset for %s: %v", user.ID, err)
	}

	e.events.Publish(ctx, UserLoggedIn{
		EventID:    uuid.NewString(),
		UserID:     user.ID,
		AccountID:  account.ID,
		Method:     method,
		OccurredAt: time.Now(),
	})

	location := intendedPathFromContext(ctx)
	if location == "" {
		location = e.config.Paths.Landing
	}
	return redirectTo(location), nil
}

const (
	methodPassword     = "password"
	methodOAuth        = "oauth"
	methodSecondFactor = "second_factor"
)
