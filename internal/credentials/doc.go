// Package credentials resolves and validates Anthropic API credentials.
//
// # Resolution Chain
//
// CheckStatus walks a fixed chain and reports the first source that yields
// usable credentials:
//
//  1. OS keychain: the probe matrix from the keychain package is walked in
//     priority order. The first usable secret is validated against the
//     Anthropic API; on success it is cached in the database and the status
//     source is "keychain".
//  2. Database: if the keychain yields nothing usable, a previously stored
//     credential row is trusted as-is (no re-validation) and the source is
//     "database".
//  3. None: the status is unauthenticated with source "none".
//
// A validation transport error never aborts the chain; it is logged and the
// database fallback is tried.
//
// # Keychain Secret Formats
//
// Two secret formats are accepted:
//
//   - JSON: {"api_key": "...", "email": "...", "subscription_tier": "..."}
//   - Raw key: a bare string starting with "sk-ant-"
//
// Anything else is skipped and probing continues.
//
// # Validation
//
// AnthropicValidator issues a minimal one-token request to the Messages API.
// A 2xx response means the key is valid, 401 means it is invalid, and any
// other outcome is an error: a network failure or server error must never be
// reported as an invalid key.
//
// # Manual Key Entry
//
// SubmitKey validates first and persists only on success:
//
//	err := resolver.SubmitKey(ctx, "sk-ant-...", "user@example.com")
//	if errors.Is(err, credentials.ErrInvalidKey) { ... }
package credentials
