// Package store provides the entity store the authorization core is built on.
//
// # Overview
//
// Every persistent collaborator of the core (users, roles, settings, groups,
// plugin schema versions) is reached through the same filter-based CRUD
// surface: Find, FindOne, Insert, Update, Delete. The core never sees SQL,
// connection pools, or retry policy; backend failures propagate to callers
// unchanged, wrapped in *store.Error.
//
// # Backends
//
// Memory: in-process store for tests and single-node development. Supports
// declared unique indexes so provisioning races behave like production.
//
//	s := store.NewMemory(store.WithUniqueIndex("users", "origin", "originId"))
//
// Postgres: a single JSONB documents table, so new collections need no
// migrations. The (origin, originId) uniqueness index on users is created by
// Migrate and is the required safety net for concurrent third-party logins.
//
//	db, _ := sql.Open("postgres", url)
//	s := store.NewPostgres(db, log)
//	err := s.Migrate(ctx)
//
// # Filter semantics
//
// Filters are exact-match on scalar fields. A []string filter value matches
// when the record's scalar field equals any element, which is how role
// records are fetched by id set in one call.
package store
