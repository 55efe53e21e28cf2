package authflow

import (
	"context"
	"errors"
	"time"
)

// CompleteLogin runs the credential check behind the lockout gate.
// Wrong secrets, unknown identifiers and locked accounts all yield the
// same denial response and ErrInvalidCredentials; on success it either
// establishes the session or redirects to the second-factor challenge.
func (e *Engine) CompleteLogin(ctx context.Context, sessionID, email, password string) (*Response, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()

	if err := e.admit(ctx, email); err != nil {
		if errors.Is(err, errAccountLocked) {
			e.metricInc(MetricLockoutDenied)
			e.emitAudit(ctx, auditEventLockoutDenied, false, "", "", sessionID, ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"identifier": email}
			})
			return deniedWith(e.message(msgKeyInvalidCredentials)), ErrInvalidCredentials
		}
		return nil, err
	}

	user, err := e.credentials.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	verified := false
	if user != nil && password != "" {
		verified, err = e.credentials.VerifyPassword(ctx, user, password)
		if err != nil {
			return nil, err
		}
	}

	if !verified {
		// Counts against the identifier whether or not it resolved; the
		// store no-ops for unknown ones.
		if err := e.lockout.RecordFailure(ctx, email); err != nil {
			return nil, err
		}

		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, userIDOrEmpty(user), "", sessionID, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"identifier": email}
		})
		return deniedWith(e.message(msgKeyInvalidCredentials)), ErrInvalidCredentials
	}

	resp, err := e.finishAuthentication(ctx, sessionID, user, methodPassword)
	if err != nil {
		return nil, err
	}

	if !user.SecondFactorEnrolled() {
		e.metricInc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, user.AccountID, sessionID, nil, nil)
	}

	if e.metrics != nil {
		e.metrics.Observe(MetricLoginLatency, time.Since(start))
	}
	return resp, nil
}

func userIDOrEmpty(u *User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
