package authflow

import "context"

// UnlinkIdentity removes the association between the authenticated
// user's account and its linked external identity, then routes back to
// the settings view with a confirmation message. The account itself is
// untouched. Requires an authenticated session and a linked identity.
//
// The reverse operation, attaching an additional account to an existing
// login, is deliberately not offered; see Config.DisabledLinkAccounts.
func (e *Engine) UnlinkIdentity(ctx context.Context, sessionID string) (*Response, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	userID, err := e.AuthenticatedUserID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	user, err := e.credentials.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	if user.OAuthProvider == "" {
		return nil, ErrIdentityNotLinked
	}

	account, err := e.credentials.AccountForUser(ctx, user)
	if err != nil {
		return nil, err
	}

	// Scoped to the caller: sibling users on the account keep their own
	// linked identities.
	if err := e.accounts.UnlinkOAuthUser(ctx, user.ID); err != nil {
		return nil, err
	}

	e.metricInc(MetricIdentityUnlinked)
	e.emitAudit(ctx, auditEventIdentityUnlinked, true, user.ID, account.ID, sessionID, nil, providerMeta(user.OAuthProvider))

	message := ""
	if e.catalog != nil && e.catalog.Has(msgKeyUpdatedSettings) {
		message = e.catalog.Translate(msgKeyUpdatedSettings)
	}
	return redirectWithMessage(e.config.Paths.Settings, message), nil
}
