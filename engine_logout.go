package authflow

import (
	"context"
	"fmt"
)

// Logout ends the authenticated session. When force is set and the
// account is an unregistered trial, its remnants are purged first:
// any linked identity is detached, the company is irrecoverably deleted
// unless another account shares it, then the account itself is deleted.
// The three steps run in one storage transaction; a failure aborts the
// logout with ErrCleanupFailed and leaves nothing half-deleted. The
// registered guard is absolute: a registered account is never cleaned
// up, force flag or not.
//
// An unregistered trial without the force flag is not logged out at
// all: the caller is sent back to the landing page with the session
// intact, so the trial can be resumed or explicitly discarded.
//
// A non-empty reason selects a localized farewell message when the
// catalog defines "<reason>_logout"; unknown reasons are silently
// ignored.
func (e *Engine) Logout(ctx context.Context, sessionID string, force bool, reason string) (*Response, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	userID, err := e.AuthenticatedUserID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	user, err := e.credentials.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	cleaned := false
	if user != nil {
		account, err := e.credentials.AccountForUser(ctx, user)
		if err != nil {
			return nil, err
		}
		if account != nil && !account.Registered {
			if !force {
				// A trial is never logged out implicitly; the session
				// stays live.
				return redirectTo(e.config.Paths.Landing), nil
			}
			if e.accounts != nil {
				if err := e.purgeTrialAccount(ctx, account); err != nil {
					e.metricInc(MetricCleanupFailure)
					e.emitAudit(ctx, auditEventCleanupFailure, false, user.ID, account.ID, sessionID, err, nil)
					return nil, fmt.Errorf("%w: %v", ErrCleanupFailed, err)
				}
				cleaned = true
				e.metricInc(MetricForcedCleanup)
				e.emitAudit(ctx, auditEventForcedCleanup, true, user.ID, account.ID, sessionID, nil, nil)
			}
		}
	}

	if err := e.sessions.Flush(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, userID, "", sessionID, nil, func() map[string]string {
		meta := map[string]string{"forced_cleanup": boolString(cleaned)}
		if reason != "" {
			meta["reason"] = reason
		}
		return meta
	})

	if reason != "" {
		key := reason + "_logout"
		if e.catalog != nil && e.catalog.Has(key) {
			return redirectWithMessage(e.config.Paths.Login, e.catalog.Translate(key)), nil
		}
	}
	return redirectTo(e.config.Paths.Login), nil
}

// purgeTrialAccount runs the destructive cleanup sequence inside one
// repository transaction. Caller has already verified the account is
// unregistered.
func (e *Engine) purgeTrialAccount(ctx context.Context, account *Account) error {
	return e.accounts.Transact(ctx, func(repo AccountRepository) error {
		if err := repo.UnlinkOAuth(ctx, account.ID); err != nil {
			return err
		}

		if account.CompanyID != "" {
			shared, err := repo.CompanyShared(ctx, account)
			if err != nil {
				return err
			}
			if !shared {
				if err := repo.ForceDeleteCompany(ctx, account.CompanyID); err != nil {
					return err
				}
			}
		}

		return repo.ForceDeleteAccount(ctx, account.ID)
	})
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
