package access

import (
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Authorization outcomes, distinguished so the HTTP collaborator can map
// them to the correct status code.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Decision is the outcome of one authorization check.
type Decision int

const (
	Grant Decision = iota
	DenyUnauthorized
	DenyForbidden
)

// Result carries a decision and the evidence behind it.
type Result struct {
	Decision Decision
	Reason   string
	Matched  []string // leaf ids whose patterns matched the request
}

// Granted reports whether the request may proceed.
func (r Result) Granted() bool { return r.Decision == Grant }

// Err maps a deny decision onto its sentinel error, or nil for grants.
func (r Result) Err() error {
	switch r.Decision {
	case DenyUnauthorized:
		return ErrUnauthorized
	case DenyForbidden:
		return ErrForbidden
	}
	return nil
}

// Request is the method/path pair under decision.
type Request struct {
	Method string
	Path   string
}

// Identity is the requesting principal with its resolved permission set.
type Identity struct {
	ID          string
	Permissions []string
	Locked      bool
}

// updateVerb is the verb treated as a profile update for the
// self-service exemption.
const updateVerb = "post"

// profilePrefix roots the self-service exemption at the user profile
// resource. Ids appearing as the final segment of unrelated routes must
// not trigger it.
const profilePrefix = "/users/"

const matchCacheSize = 4096

// Engine decides grant or deny for one composed permission tree. It is a
// pure function of (tree, request, identity) and safe for concurrent use
// from arbitrarily many requests; the tree must never be mutated after
// construction. Recomposition produces a new Engine rather than updating
// one in place.
type Engine struct {
	tree         *Tree
	superAdminID string
	matches      *lru.Cache[string, []string]
}

// NewEngine builds an engine over an immutable tree. superAdminID names
// the distinguished identity that bypasses permission checks entirely.
func NewEngine(tree *Tree, superAdminID string) *Engine {
	// The tree is fixed for the engine's lifetime, so match results are
	// cacheable by request alone.
	cache, _ := lru.New[string, []string](matchCacheSize)
	return &Engine{
		tree:         tree,
		superAdminID: superAdminID,
		matches:      cache,
	}
}

// Tree returns the engine's permission tree.
func (e *Engine) Tree() *Tree { return e.tree }

// Authorize runs the decision procedure:
//
//  1. No authenticated identity: deny unauthorized.
//  2. Collect every leaf whose pattern matches the request (OR set).
//  3. Zero matches: grant. Routes nobody bothered to protect stay open;
//     the model is deny-by-exception, not deny-by-default.
//  4. Super administrator: grant unconditionally.
//  5. The requester updating their own profile resource with a
//     non-locked account: grant unconditionally.
//  6. Otherwise grant iff the matched set intersects the identity's
//     resolved permission set.
func (e *Engine) Authorize(req Request, ident *Identity) Result {
	if ident == nil || ident.ID == "" {
		return Result{Decision: DenyUnauthorized, Reason: "no authenticated identity"}
	}

	matched := e.match(req.Method, req.Path)
	if len(matched) == 0 {
		return Result{Decision: Grant, Reason: "no permission protects this route"}
	}

	if ident.ID == e.superAdminID {
		return Result{Decision: Grant, Reason: "super administrator", Matched: matched}
	}

	if e.isSelfProfileUpdate(req, ident) {
		return Result{Decision: Grant, Reason: "self-service profile update", Matched: matched}
	}

	for _, id := range matched {
		for _, held := range ident.Permissions {
			if id == held {
				return Result{
					Decision: Grant,
					Reason:   fmt.Sprintf("granted by permission %q", id),
					Matched:  matched,
				}
			}
		}
	}

	return Result{
		Decision: DenyForbidden,
		Reason:   "none of the required permissions are held",
		Matched:  matched,
	}
}

func (e *Engine) match(method, path string) []string {
	key := strings.ToLower(method) + " " + path
	if cached, ok := e.matches.Get(key); ok {
		return cached
	}
	matched := e.tree.Match(method, path)
	e.matches.Add(key, matched)
	return matched
}

// isSelfProfileUpdate reports whether the request is the identity
// updating its own profile resource: the path is the user resource
// addressed by the identity's own id, the verb is the update verb, and
// the account is not locked (locked accounts are externally managed and
// must not self-edit).
func (e *Engine) isSelfProfileUpdate(req Request, ident *Identity) bool {
	if ident.Locked {
		return false
	}
	if !strings.EqualFold(req.Method, updateVerb) {
		return false
	}
	path := strings.TrimSuffix(req.Path, "/")
	return path == profilePrefix+ident.ID
}
