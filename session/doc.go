// Package session implements the server-side request session used by the
// login orchestrator: small string values scoped to an opaque session ID,
// stored in Redis with the session's lifetime.
//
// Pull is the read-once primitive the pending second-factor marker relies
// on: the value is deleted atomically with the read and cannot be
// observed twice.
package session
