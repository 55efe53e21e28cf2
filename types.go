package authflow

import (
	"context"
	"time"
)

// User is an individual login identity. A User belongs to exactly one
// Account; the presence of SecondFactorSecret is the sole trigger for the
// challenge step after primary credential success.
type User struct {
	ID                 string
	AccountID          string
	Email              string
	SecondFactorSecret string
	OAuthProvider      string
	OAuthUserID        string
}

// SecondFactorEnrolled reports whether the user must complete a
// one-time-code challenge after primary credentials succeed.
func (u *User) SecondFactorEnrolled() bool {
	return u != nil && u.SecondFactorSecret != ""
}

// Account is the billing/ownership entity one or more Users belong to.
// Registered distinguishes a converted account from a disposable trial
// account; only unregistered accounts are ever eligible for forced
// cleanup on logout.
type Account struct {
	ID         string
	AccountKey string
	CompanyID  string
	Registered bool
}

// VerifiedIdentity is the outcome of a completed external provider flow.
// The orchestrator only consumes the assertion that the provider verified
// this identity; the handshake itself is a collaborator concern.
type VerifiedIdentity struct {
	Provider string
	Subject  string
	Email    string
}

// CredentialStore is the persistence collaborator for users and accounts.
// Implementations must keep the failed-login counter updates atomic
// (read-modify-write serialized at the storage boundary).
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, userID string) (*User, error)
	FindByOAuth(ctx context.Context, provider, subject string) (*User, error)
	VerifyPassword(ctx context.Context, user *User, secret string) (bool, error)
	CountUsers(ctx context.Context) (int, error)
	AccountForUser(ctx context.Context, user *User) (*Account, error)

	// Failed-login counter, owned by the account the identifier resolves
	// to. FailedLogins and IncrementFailedLogins are no-ops for unknown
	// identifiers so that lockout state never reveals account existence.
	FailedLogins(ctx context.Context, email string) (int, error)
	IncrementFailedLogins(ctx context.Context, email string) error
	ResetFailedLogins(ctx context.Context, email string) error
}

// AccountRepository performs identity unlinking and the destructive
// trial-account cleanup. UnlinkOAuthUser detaches one user's external
// identity; UnlinkOAuth detaches every identity on the account and is
// reserved for the cleanup sequence. Transact must give the callback a
// repository whose operations commit or roll back as one unit; the
// cleanup sequence (unlink, conditional company delete, account delete)
// runs inside it.
type AccountRepository interface {
	UnlinkOAuthUser(ctx context.Context, userID string) error
	UnlinkOAuth(ctx context.Context, accountID string) error
	CompanyShared(ctx context.Context, account *Account) (bool, error)
	ForceDeleteCompany(ctx context.Context, companyID string) error
	ForceDeleteAccount(ctx context.Context, accountID string) error
	Transact(ctx context.Context, fn func(AccountRepository) error) error
}

// OAuthFlow abstracts the third-party provider handshake. Begin returns
// the provider authorization URL; Complete exchanges the callback for a
// verified identity. hasCode=false on the engine side never reaches
// Complete.
type OAuthFlow interface {
	Begin(ctx context.Context, provider, state string) (redirectURL string, err error)
	Complete(ctx context.Context, provider string) (*VerifiedIdentity, error)
}

// SecondFactorVerifier checks a submitted one-time code against the
// user's enrolled secret. Nil is a valid configuration: the engine then
// accepts any non-empty code and relies solely on the replay denylist,
// matching deployments where code validation happens upstream.
type SecondFactorVerifier interface {
	Verify(ctx context.Context, user *User, code string) (bool, error)
}

// MessageCatalog resolves localized message keys. Failures here must
// never block login or logout; a missing key is not an error.
type MessageCatalog interface {
	Has(key string) bool
	Translate(key string) string
}

// UserLoggedIn is published exactly once per completed authentication —
// after the second factor when one is enrolled, never on a mere
// credential check.
type UserLoggedIn struct {
	EventID    string
	UserID     string
	AccountID  string
	Method     string // "password", "oauth" or "second_factor"
	OccurredAt time.Time
}

// EventSink receives domain events from the engine.
type EventSink interface {
	Publish(ctx context.Context, event UserLoggedIn)
}

// NoOpEventSink discards all events.
type NoOpEventSink struct{}

// Publish implements EventSink.
func (NoOpEventSink) Publish(context.Context, UserLoggedIn) {}

// ChannelEventSink delivers events into a buffered channel, mainly for
// tests and for callers bridging to their own bus.
type ChannelEventSink struct {
	events chan UserLoggedIn
}

// NewChannelEventSink creates a ChannelEventSink with the given buffer.
func NewChannelEventSink(buffer int) *ChannelEventSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelEventSink{events: make(chan UserLoggedIn, buffer)}
}

// Publish implements EventSink. It drops the event if the buffer is full
// rather than blocking a login.
func (s *ChannelEventSink) Publish(_ context.Context, event UserLoggedIn) {
	select {
	case s.events <- event:
	default:
	}
}

// Events exposes the receiving side of the sink.
func (s *ChannelEventSink) Events() <-chan UserLoggedIn {
	return s.events
}

// ResponseKind discriminates the transport-agnostic outcomes of engine
// operations.
type ResponseKind uint8

const (
	// RespondRedirect sends the caller to Response.Location.
	RespondRedirect ResponseKind = iota
	// RespondChallenge renders the second-factor challenge view.
	RespondChallenge
	// RespondDenied rejects the request with Response.Message.
	RespondDenied
)

// Response is the request-level contract of every exposed operation:
// redirect-to-path, rendered-challenge-view, or denied-with-message.
type Response struct {
	Kind     ResponseKind
	Location string
	// AccountKey parameterizes the challenge view route.
	AccountKey string
	// Message carries the user-facing denial text or a flash message
	// accompanying a redirect. Always generic; internal state is never
	// disclosed.
	Message string
}

func redirectTo(path string) *Response {
	return &Response{Kind: RespondRedirect, Location: path}
}

func redirectWithMessage(path, message string) *Response {
	return &Response{Kind: RespondRedirect, Location: path, Message: message}
}

func deniedWith(message string) *Response {
	return &Response{Kind: RespondDenied, Message: message}
}
