package authflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ledgermint/authflow/internal"
	"github.com/ledgermint/authflow/session"
)

// BeginOAuthLogin is the external provider entry point. With hasCode
// false it starts the handshake: a signed state token bound to the
// provider is issued, its nonce parked in the session, and the caller
// redirected to the provider. With hasCode true it verifies the
// returned state, completes the flow and logs the verified identity in
// through the same tail as a password login, including the
// second-factor handoff. An identity with no linked user is denied;
// accounts are never linked implicitly.
func (e *Engine) BeginOAuthLogin(ctx context.Context, sessionID, provider string, hasCode bool, state string) (*Response, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.oauth == nil || e.stateTokens == nil {
		return nil, ErrEngineNotReady
	}

	if !hasCode {
		return e.beginProviderHandshake(ctx, sessionID, provider)
	}

	nonce, err := e.stateTokens.Verify(state, provider)
	if err != nil {
		e.metricInc(MetricOAuthFailure)
		e.emitAudit(ctx, auditEventOAuthFailure, false, "", "", sessionID, err, providerMeta(provider))
		return deniedWith(e.message(msgKeyInvalidCredentials)), ErrProviderFlowFailed
	}

	parked, err := e.sessions.Pull(ctx, sessionID, sessionKeyOAuthNonce)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	if parked != nonce {
		e.metricInc(MetricOAuthFailure)
		e.emitAudit(ctx, auditEventOAuthFailure, false, "", "", sessionID, ErrProviderFlowFailed, providerMeta(provider))
		return deniedWith(e.message(msgKeyInvalidCredentials)), ErrProviderFlowFailed
	}

	identity, err := e.oauth.Complete(ctx, provider)
	if err != nil {
		e.metricInc(MetricOAuthFailure)
		e.emitAudit(ctx, auditEventOAuthFailure, false, "", "", sessionID, err, providerMeta(provider))
		return nil, fmt.Errorf("%w: %v", ErrProviderFlowFailed, err)
	}

	user, err := e.credentials.FindByOAuth(ctx, provider, identity.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		e.metricInc(MetricOAuthFailure)
		e.emitAudit(ctx, auditEventOAuthFailure, false, "", "", sessionID, ErrInvalidCredentials, providerMeta(provider))
		return deniedWith(e.message(msgKeyInvalidCredentials)), ErrInvalidCredentials
	}

	resp, err := e.finishAuthentication(ctx, sessionID, user, methodOAuth)
	if err != nil {
		return nil, err
	}

	if !user.SecondFactorEnrolled() {
		e.metricInc(MetricOAuthSuccess)
		e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, user.AccountID, sessionID, nil, providerMeta(provider))
	}
	return resp, nil
}

func (e *Engine) beginProviderHandshake(ctx context.Context, sessionID, provider string) (*Response, error) {
	nonce, err := internal.NewStateNonce()
	if err != nil {
		return nil, err
	}

	if err := e.sessions.Put(
		ctx, sessionID, sessionKeyOAuthNonce, nonce,
		e.config.OAuth.StateTTL,
	); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	token, err := e.stateTokens.Issue(provider, nonce, time.Now())
	if err != nil {
		return nil, err
	}

	redirectURL, err := e.oauth.Begin(ctx, provider, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFlowFailed, err)
	}

	e.metricInc(MetricOAuthBegin)
	e.emitAudit(ctx, auditEventOAuthBegin, true, "", "", sessionID, nil, providerMeta(provider))
	return redirectTo(redirectURL), nil
}

func providerMeta(provider string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"provider": provider}
	}
}
