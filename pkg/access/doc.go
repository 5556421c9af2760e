// Package access composes per-plugin permission declarations into one
// permission tree and decides grant or deny for incoming requests.
//
// # Overview
//
// Composition runs once, after plugin discovery, and produces two
// immutable structures: the permission tree (nested groups of capability
// leaves, presented to administrative callers as-is) and the flat
// web-service scope list. The decision engine then answers
// "may this identity perform this method on this path" for every
// request, read-only and lock-free.
//
// # Composition
//
// For every non-content entity a plugin declares, three permission
// leaves (add/update/delete) and four scope leaves (plus get) are
// synthesized against the plugin's mount path. Hand-written declarations
// are appended with their leaf ids prefixed by the owning plugin's name,
// idempotently. The user-manageable groups resource contributes
// per-record leaves resolved at composition time. Leaves left outside
// any group are relocated into the "Others" catch-all, and groups
// sharing a label are merged in encounter order. Duplicate leaf ids
// after prefixing fail composition with *ConflictError.
//
// # Decision procedure
//
// Matching accumulates every leaf whose "<verb> <pattern>" entry matches
// the request; the set is an OR, never an AND. Routes with no matching
// leaf are granted to any authenticated identity: the model is
// deny-by-exception. The super administrator and non-locked self-profile
// updates bypass the intersection check.
package access
