package authflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgermint/authflow/session"
)

// BeginSecondFactorChallenge renders the challenge view for a login
// parked behind the pending marker. The marker is only peeked here;
// reloading the view does not consume it. Without a pending login the
// caller is routed back to the start of login.
func (e *Engine) BeginSecondFactorChallenge(ctx context.Context, sessionID string) (*Response, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	userID, err := e.sessions.Get(ctx, sessionID, sessionKeyPendingUser)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return redirectTo(e.config.Paths.Login), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	user, err := e.credentials.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return redirectTo(e.config.Paths.Login), nil
	}

	account, err := e.credentials.AccountForUser(ctx, user)
	if err != nil {
		return nil, err
	}

	return &Response{Kind: RespondChallenge, AccountKey: account.AccountKey}, nil
}

// CompleteSecondFactorChallenge consumes the pending marker and checks
// the submitted code. The denylist insertion doubles as the atomic
// first-use check: a (user, code) pair accepted once is rejected for
// the rest of its validity window, with the same user-facing message as
// a wrong code. A submission with no pending marker routes back to
// login and reports ErrNoPendingChallenge.
func (e *Engine) CompleteSecondFactorChallenge(ctx context.Context, sessionID, code string) (*Response, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	userID, err := e.sessions.Pull(ctx, sessionID, sessionKeyPendingUser)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			e.metricInc(MetricChallengeOrphaned)
			e.emitAudit(ctx, auditEventChallengeOrphaned, false, "", "", sessionID, ErrNoPendingChallenge, nil)
			return redirectTo(e.config.Paths.Login), ErrNoPendingChallenge
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	if code == "" {
		e.metricInc(MetricChallengeFailure)
		e.emitAudit(ctx, auditEventChallengeFailure, false, userID, "", sessionID, ErrInvalidCredentials, nil)
		return deniedWith(e.message(msgKeyInvalidCredentials)), ErrInvalidCredentials
	}

	firstUse, err := e.replays.InsertIfAbsent(ctx, userID, code, e.config.SecondFactor.CodeTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReplayStoreUnavailable, err)
	}
	if !firstUse {
		e.metricInc(MetricChallengeReplay)
		e.emitAudit(ctx, auditEventChallengeReplay, false, userID, "", sessionID, ErrReplayedCode, nil)
		return deniedWith(e.message(msgKeyInvalidCredentials)), ErrReplayedCode
	}

	user, err := e.credentials.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return redirectTo(e.config.Paths.Login), ErrNoPendingChallenge
	}

	if e.verifier != nil {
		ok, err := e.verifier.Verify(ctx, user, code)
		if err != nil {
			return nil, err
		}
		if !ok {
			e.metricInc(MetricChallengeFailure)
			e.emitAudit(ctx, auditEventChallengeFailure, false, user.ID, user.AccountID, sessionID, ErrInvalidCredentials, nil)
			return deniedWith(e.message(msgKeyInvalidCredentials)), ErrInvalidCredentials
		}
	}

	resp, err := e.finishAuthentication(ctx, sessionID, user, methodSecondFactor)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricChallengeSuccess)
	e.emitAudit(ctx, auditEventChallengeSuccess, true, user.ID, user.AccountID, sessionID, nil, nil)
	return resp, nil
}
