// Package stores contains the Redis-backed one-time stores used by the
// login engine.
package stores
