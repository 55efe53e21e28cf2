package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/ledgermint/authflow"
)

// UnlinkOAuthUser clears the external identity from a single user.
func (s *Store) UnlinkOAuthUser(ctx context.Context, userID string) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE users SET oauth_provider = '', oauth_user_id = '' WHERE id = ?",
		userID,
	)
	return err
}

// UnlinkOAuth clears the external identity from every user of the
// account. Part of the trial-account purge; user-initiated unlinking
// goes through UnlinkOAuthUser.
func (s *Store) UnlinkOAuth(ctx context.Context, accountID string) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE users SET oauth_provider = '', oauth_user_id = '' WHERE account_id = ?",
		accountID,
	)
	return err
}

// CompanyShared reports whether another account references the same
// company.
func (s *Store) CompanyShared(ctx context.Context, account *authflow.Account) (bool, error) {
	if account == nil || account.CompanyID == "" {
		return false, nil
	}

	var n int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM accounts WHERE company_id = ? AND id != ?",
		account.CompanyID, account.ID,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ForceDeleteCompany removes the company row permanently.
func (s *Store) ForceDeleteCompany(ctx context.Context, companyID string) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM companies WHERE id = ?", companyID)
	return err
}

// ForceDeleteAccount removes the account row permanently; users cascade
// with it.
func (s *Store) ForceDeleteAccount(ctx context.Context, accountID string) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", accountID)
	return err
}

// Transact runs fn against a store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise, so
// a multi-step cleanup either lands whole or not at all.
func (s *Store) Transact(ctx context.Context, fn func(authflow.AccountRepository) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	bound := &Store{db: s.db, q: tx, opts: s.opts, now: s.now}
	if err := fn(bound); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Seeding helpers, used by deployments bootstrapping a database and by
// tests.

// CreateCompany inserts a company row.
func (s *Store) CreateCompany(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO companies (id, created_at) VALUES (?, ?)",
		id, s.now().Unix(),
	)
	return err
}

// CreateAccount inserts an account row.
func (s *Store) CreateAccount(ctx context.Context, account *authflow.Account) error {
	registered := 0
	if account.Registered {
		registered = 1
	}
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO accounts (id, account_key, company_id, registered, created_at) VALUES (?, ?, ?, ?, ?)",
		account.ID, account.AccountKey, account.CompanyID, registered, s.now().Unix(),
	)
	return err
}

// CreateUser inserts a user row with a bcrypt hash of password.
func (s *Store) CreateUser(ctx context.Context, user *authflow.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO users (id, account_id, email, password_hash, second_factor_secret, oauth_provider, oauth_user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.AccountID, user.Email, string(hash),
		user.SecondFactorSecret, user.OAuthProvider, user.OAuthUserID, s.now().Unix(),
	)
	return err
}

// LinkOAuth attaches an external identity to the user.
func (s *Store) LinkOAuth(ctx context.Context, userID, provider, subject string) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE users SET oauth_provider = ?, oauth_user_id = ? WHERE id = ?",
		provider, subject, userID,
	)
	return err
}
