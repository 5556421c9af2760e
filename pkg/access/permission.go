package access

import "strings"

// Permission is one node of the composed permission tree: either a leaf
// (an atomic grantable capability protecting one or more method+path
// patterns) or a group (a labeled collection used purely for display).
// The JSON shape is the wire contract with administrative callers:
// groups serialize as {label, permissions}, leaves as
// {id, name, description, paths}.
type Permission struct {
	// Leaf fields.
	ID          string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Paths       []string `json:"paths,omitempty" yaml:"paths,omitempty"`

	// Group fields.
	Label       string        `json:"label,omitempty" yaml:"label,omitempty"`
	Permissions []*Permission `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

// IsGroup reports whether the node is a group rather than a leaf.
func (p *Permission) IsGroup() bool {
	return p.Label != ""
}

// Scope is a web-service capability leaf. Scopes form a flat list; there
// is no grouping on the programmatic surface.
type Scope struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Paths       []string `json:"paths" yaml:"paths"`
}

// Tree is the composed permission tree. After composition it contains
// only groups at the top level; it is immutable and shared read-only by
// every concurrently handled request.
type Tree struct {
	Groups []*Permission `json:"permissions"`
}

// Match walks the tree depth-first and returns the ids of every leaf
// with at least one path pattern matching the request. A request may be
// satisfiable by any one of several permissions, so all matches are
// accumulated.
func (t *Tree) Match(method, path string) []string {
	var matched []string
	for _, g := range t.Groups {
		matched = appendMatches(matched, g, method, path)
	}
	return matched
}

func appendMatches(matched []string, node *Permission, method, path string) []string {
	if node.IsGroup() {
		for _, child := range node.Permissions {
			matched = appendMatches(matched, child, method, path)
		}
		return matched
	}
	for _, pattern := range node.Paths {
		if MatchPattern(pattern, method, path) {
			matched = append(matched, node.ID)
			break
		}
	}
	return matched
}

// LeafIDs returns every leaf id in the tree, in depth-first order.
func (t *Tree) LeafIDs() []string {
	var ids []string
	for _, g := range t.Groups {
		ids = appendLeafIDs(ids, g)
	}
	return ids
}

func appendLeafIDs(ids []string, node *Permission) []string {
	if node.IsGroup() {
		for _, child := range node.Permissions {
			ids = appendLeafIDs(ids, child)
		}
		return ids
	}
	return append(ids, node.ID)
}

// clonePermission deep-copies a node. Composition rebuilds trees rather
// than mutating caller-owned declarations in place.
func clonePermission(p *Permission) *Permission {
	out := &Permission{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Label:       p.Label,
	}
	if p.Paths != nil {
		out.Paths = append([]string(nil), p.Paths...)
	}
	for _, child := range p.Permissions {
		out.Permissions = append(out.Permissions, clonePermission(child))
	}
	return out
}

// prefixIDs rebuilds a node with every leaf id prefixed by
// "<plugin>-" unless it already carries that prefix. The rewrite is
// idempotent and recurses through nested groups.
func prefixIDs(p *Permission, plugin string) *Permission {
	out := clonePermission(p)
	applyPrefix(out, plugin+"-")
	return out
}

func applyPrefix(p *Permission, prefix string) {
	if p.IsGroup() {
		for _, child := range p.Permissions {
			applyPrefix(child, prefix)
		}
		return
	}
	if !strings.HasPrefix(p.ID, prefix) {
		p.ID = prefix + p.ID
	}
}
