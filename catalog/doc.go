// Package catalog resolves localized message keys for the login engine.
// Lookups are cheap and never fail: a missing key reports false from Has
// and callers skip the message. Translations are registered per locale
// and matched with golang.org/x/text language matching.
package catalog
