// Package sqlitestore implements authflow.CredentialStore and
// authflow.AccountRepository on an embedded SQLite database with bcrypt
// password hashes. It is the reference storage backend; deployments
// with an existing user database implement the interfaces directly.
package sqlitestore
