// Package statetoken signs and verifies the OAuth state parameter used
// by the provider handshake. The token binds the provider name and a
// random nonce under a short TTL so callbacks cannot be forged or
// replayed across providers.
package statetoken
