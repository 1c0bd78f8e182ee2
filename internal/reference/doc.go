// Package reference manages opaque model references: URL-safe encoding,
// AES-GCM encryption for storage at rest, and HMAC-signed tokens carrying an
// expiration. The manager holds only immutable key material and is safe for
// concurrent use.
package reference
