// Package identity turns email addresses into storage-safe keys.
package identity

import "strings"

// SafeEmail rewrites an email address into a form usable as a record key:
// every "." and then every "@" is replaced with "-". The rewrite is
// idempotent, so applying it to an already-safe key is a no-op. Keys built
// this way must never be fed back through any other normalization, since
// the original address is not recoverable.
func SafeEmail(email string) string {
	safe := strings.ReplaceAll(email, ".", "-")
	return strings.ReplaceAll(safe, "@", "-")
}

// DisplayName joins first and last name the way directory entries store it.
func DisplayName(firstName, lastName string) string {
	return firstName + " " + lastName
}
