// Package identity resolves authenticated identities against the
// entity store.
//
// Local accounts authenticate by email and a bcrypt password hash.
// Third-party accounts are trusted once the identity provider has
// authenticated them: the resolver extracts attributes from the
// provider's claims, provisions an account on first sight (locked, so
// externally-managed fields cannot be edited by hand), and updates the
// stored record only when the claims actually drift. Every resolution
// recomputes the user's effective permission set from its roles; the
// derived set is never persisted.
//
// User deletion emits a notification, in-process and over Redis
// pub/sub, so session-holding collaborators can invalidate live
// sessions for the deleted ids.
package identity
