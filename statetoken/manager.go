package statetoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalid reports a state token that failed signature or claim
	// validation, including expiry.
	ErrInvalid = errors.New("invalid state token")
	// ErrProviderMismatch reports a valid token presented on a callback
	// for a different provider than it was issued for.
	ErrProviderMismatch = errors.New("state token provider mismatch")
)

// Config configures the state token manager.
type Config struct {
	Secret []byte
	TTL    time.Duration
}

// Manager issues and verifies HS256-signed state tokens.
type Manager struct {
	config Config
}

type stateClaims struct {
	Provider string `json:"prv"`
	Nonce    string `json:"nce"`
	jwt.RegisteredClaims
}

// NewManager validates the configuration and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 16 {
		return nil, errors.New("state secret must be at least 16 bytes")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	return &Manager{config: cfg}, nil
}

// Issue creates a state token bound to the provider and nonce.
func (m *Manager) Issue(provider, nonce string, now time.Time) (string, error) {
	if provider == "" || nonce == "" {
		return "", errors.New("provider and nonce are required")
	}

	claims := stateClaims{
		Provider: provider,
		Nonce:    nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.config.Secret)
}

// Verify parses the token and checks it was issued for the given
// provider. Returns the nonce on success.
func (m *Manager) Verify(tokenStr, provider string) (string, error) {
	claims := &stateClaims{}
	token, err := jwt.ParseWithClaims(
		tokenStr,
		claims,
		func(*jwt.Token) (interface{}, error) { return m.config.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalid
	}
	if claims.Provider != provider {
		return "", ErrProviderMismatch
	}
	return claims.Nonce, nil
}
