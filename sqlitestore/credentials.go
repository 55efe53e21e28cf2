package sqlitestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ledgermint/authflow"
)

const userColumns = "id, account_id, email, second_factor_secret, oauth_provider, oauth_user_id"

func scanUser(row interface{ Scan(...any) error }) (*authflow.User, error) {
	var u authflow.User
	err := row.Scan(&u.ID, &u.AccountID, &u.Email, &u.SecondFactorSecret, &u.OAuthProvider, &u.OAuthUserID)
	if err != nil {
		if scanNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// FindByEmail returns the user for the email, or nil when none exists.
func (s *Store) FindByEmail(ctx context.Context, email string) (*authflow.User, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
	return scanUser(row)
}

// FindByID returns the user for the id, or nil when none exists.
func (s *Store) FindByID(ctx context.Context, userID string) (*authflow.User, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", userID)
	return scanUser(row)
}

// FindByOAuth returns the user linked to the provider identity, or nil.
func (s *Store) FindByOAuth(ctx context.Context, provider, subject string) (*authflow.User, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE oauth_provider = ? AND oauth_user_id = ?",
		provider, subject,
	)
	return scanUser(row)
}

// VerifyPassword compares the submitted secret against the stored
// bcrypt hash. A mismatch is not an error.
func (s *Store) VerifyPassword(ctx context.Context, user *authflow.User, secret string) (bool, error) {
	if user == nil {
		return false, nil
	}

	var hash string
	err := s.q.QueryRowContext(ctx, "SELECT password_hash FROM users WHERE id = ?", user.ID).Scan(&hash)
	if err != nil {
		if scanNotFound(err) {
			return false, nil
		}
		return false, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CountUsers reports the total number of user records.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// AccountForUser loads the account owning the user.
func (s *Store) AccountForUser(ctx context.Context, user *authflow.User) (*authflow.Account, error) {
	if user == nil {
		return nil, errors.New("nil user")
	}

	var a authflow.Account
	var registered int
	err := s.q.QueryRowContext(ctx,
		"SELECT id, account_key, company_id, registered FROM accounts WHERE id = ?",
		user.AccountID,
	).Scan(&a.ID, &a.AccountKey, &a.CompanyID, &registered)
	if err != nil {
		if scanNotFound(err) {
			return nil, fmt.Errorf("account %s not found", user.AccountID)
		}
		return nil, err
	}
	a.Registered = registered != 0
	return &a, nil
}

// FailedLogins reads the counter for the account the email resolves to.
// Unknown emails read as zero, as does a counter past its decay window.
func (s *Store) FailedLogins(ctx context.Context, email string) (int, error) {
	var count int
	var lastFailed int64
	err := s.q.QueryRowContext(ctx,
		`SELECT a.failed_logins, a.last_failed_at
		 FROM accounts a JOIN users u ON u.account_id = a.id
		 WHERE u.email = ?`,
		email,
	).Scan(&count, &lastFailed)
	if err != nil {
		if scanNotFound(err) {
			return 0, nil
		}
		return 0, err
	}

	if s.opts.DecayWindow > 0 && lastFailed > 0 {
		if s.now().Sub(time.Unix(lastFailed, 0)) > s.opts.DecayWindow {
			return 0, nil
		}
	}
	return count, nil
}

// IncrementFailedLogins bumps the counter in a single UPDATE. Unknown
// emails are a no-op.
func (s *Store) IncrementFailedLogins(ctx context.Context, email string) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE accounts
		 SET failed_logins = failed_logins + 1, last_failed_at = ?
		 WHERE id = (SELECT account_id FROM users WHERE email = ?)`,
		s.now().Unix(), email,
	)
	return err
}

// ResetFailedLogins clears the counter. Unknown emails are a no-op.
func (s *Store) ResetFailedLogins(ctx context.Context, email string) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE accounts
		 SET failed_logins = 0, last_failed_at = 0
		 WHERE id = (SELECT account_id FROM users WHERE email = ?)`,
		email,
	)
	return err
}
