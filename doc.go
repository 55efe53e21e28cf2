// Package authflow is a transport-agnostic login orchestration engine.
//
// It coordinates primary credential checks behind a failed-login lockout
// gate, a one-time-code second factor with replay prevention, external
// provider (OAuth) entry, identity unlinking and logout with optional
// destructive trial-account cleanup. Sessions, one-time markers and the
// replay denylist live in Redis; users, accounts and the lockout counter
// live in caller-provided stores.
//
// Construct an Engine through the Builder:
//
//	engine, err := authflow.New().
//		WithRedis(client).
//		WithCredentialStore(store).
//		WithAccountRepository(repo).
//		Build()
//
// Every operation returns a *Response describing what the caller should
// do next (redirect, render the challenge view, or show a denial
// message). A sentinel error may accompany a denial response so callers
// can branch programmatically; the response alone is always sufficient
// to answer the request.
package authflow
