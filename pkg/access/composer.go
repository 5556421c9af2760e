package access

import (
	"context"
	"fmt"
	"strings"
)

// EntityKind distinguishes plain CRUD entities from content-bearing
// entities. Content entities use a coarser content-level access model
// and are excluded from permission synthesis.
type EntityKind string

const (
	EntityKindPlain   EntityKind = "plain"
	EntityKindContent EntityKind = "content"
)

// EntityDecl is one entity type declared by a plugin.
type EntityDecl struct {
	Name string
	Kind EntityKind
}

// Contribution is everything one plugin feeds into composition.
type Contribution struct {
	Plugin      string
	MountPath   string
	Entities    []EntityDecl
	Permissions []*Permission
	Scopes      []*Scope
}

// GroupRecord is one record of the user-manageable groups resource.
// Group-resource permissions are resolved at composition time, not
// statically declared by any plugin.
type GroupRecord struct {
	ID   string
	Name string
}

// GroupSource supplies the current group records during composition.
type GroupSource interface {
	Groups(ctx context.Context) ([]GroupRecord, error)
}

// GroupSourceFunc adapts a function to the GroupSource interface.
type GroupSourceFunc func(ctx context.Context) ([]GroupRecord, error)

// Groups implements GroupSource.
func (f GroupSourceFunc) Groups(ctx context.Context) ([]GroupRecord, error) {
	return f(ctx)
}

// ConflictError reports a duplicate capability id surviving plugin-name
// prefixing. Composition fails fast rather than letting one plugin's
// grant silently widen another's.
type ConflictError struct {
	ID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("composition conflict: duplicate capability id %q", e.ID)
}

// OthersLabel is the catch-all group that receives every leaf not placed
// inside a declared group.
const OthersLabel = "Others"

// groupsGroupLabel collects the dynamic group-resource leaves.
const groupsGroupLabel = "CORE.PERMISSIONS.GROUP_GROUPS"

type entityOp struct {
	op   string
	verb string
}

var permissionOps = []entityOp{
	{op: "add", verb: "put"},
	{op: "update", verb: "post"},
	{op: "delete", verb: "delete"},
}

var scopeOps = []entityOp{
	{op: "get", verb: "get"},
	{op: "add", verb: "put"},
	{op: "update", verb: "post"},
	{op: "delete", verb: "delete"},
}

// Compose builds the unified permission tree and web-service scope list
// from every plugin's contribution plus the dynamic group records. The
// result is deterministic given the same contribution ordering, and the
// returned structures share no memory with the inputs.
//
// Composition order: entity-derived permissions, entity-derived scopes,
// explicit declarations (leaf ids prefixed with the owning plugin's name
// when not already), dynamic group-resource permissions, then orphan
// relocation into the catch-all group and label-based group merging.
func Compose(ctx context.Context, contribs []Contribution, groups GroupSource) (*Tree, []*Scope, error) {
	var nodes []*Permission
	var scopes []*Scope

	for _, c := range contribs {
		for _, entity := range c.Entities {
			if entity.Kind == EntityKindContent {
				continue
			}
			nodes = append(nodes, entityPermissionGroup(c, entity))
		}
		for _, entity := range c.Entities {
			if entity.Kind == EntityKindContent {
				continue
			}
			scopes = append(scopes, entityScopes(c, entity)...)
		}
		for _, decl := range c.Permissions {
			nodes = append(nodes, prefixIDs(decl, c.Plugin))
		}
		for _, decl := range c.Scopes {
			scopes = append(scopes, prefixScopeID(decl, c.Plugin))
		}
	}

	if groups != nil {
		records, err := groups.Groups(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to fetch group records: %w", err)
		}
		if len(records) > 0 {
			nodes = append(nodes, groupResourcePermissions(records))
		}
	}

	tree := assemble(nodes)

	if err := checkConflicts(tree, scopes); err != nil {
		return nil, nil, err
	}

	return tree, scopes, nil
}

// entityPermissionGroup synthesizes the add/update/delete permission
// group for one plugin entity.
func entityPermissionGroup(c Contribution, entity EntityDecl) *Permission {
	lower := strings.ToLower(entity.Name)
	group := &Permission{
		Label: fmt.Sprintf("%s.PERMISSIONS.GROUP_%s",
			strings.ToUpper(c.Plugin), strings.ToUpper(entity.Name)),
	}
	for _, op := range permissionOps {
		group.Permissions = append(group.Permissions, &Permission{
			ID:          fmt.Sprintf("%s-%s-%s", c.Plugin, op.op, lower),
			Name:        fmt.Sprintf("%s %s", op.op, lower),
			Description: fmt.Sprintf("Can %s %s records.", op.op, lower),
			Paths:       []string{entityPath(op.verb, c.MountPath, lower)},
		})
	}
	return group
}

// entityScopes synthesizes the flat web-service scope leaves for one
// plugin entity, including read access.
func entityScopes(c Contribution, entity EntityDecl) []*Scope {
	lower := strings.ToLower(entity.Name)
	out := make([]*Scope, 0, len(scopeOps))
	for _, op := range scopeOps {
		out = append(out, &Scope{
			ID:          fmt.Sprintf("%s-%s-%s", c.Plugin, op.op, lower),
			Name:        fmt.Sprintf("%s %s", op.op, lower),
			Description: fmt.Sprintf("Web-service %s access to %s.", op.op, lower),
			Paths:       []string{entityPath(op.verb, c.MountPath, lower)},
		})
	}
	return out
}

func entityPath(verb, mount, entityLower string) string {
	mount = strings.TrimSuffix(mount, "/")
	return fmt.Sprintf("%s %s/%s*", verb, mount, entityLower)
}

// groupResourcePermissions synthesizes get/update/delete leaves for each
// existing group record. Ids and paths are keyed on the record id, the
// value the groups CRUD routes address; the name is a display field and
// is neither unique nor stable.
func groupResourcePermissions(records []GroupRecord) *Permission {
	group := &Permission{Label: groupsGroupLabel}
	ops := []entityOp{
		{op: "get", verb: "get"},
		{op: "update", verb: "post"},
		{op: "delete", verb: "delete"},
	}
	for _, rec := range records {
		for _, op := range ops {
			group.Permissions = append(group.Permissions, &Permission{
				ID:          fmt.Sprintf("group-%s-%s", op.op, rec.ID),
				Name:        fmt.Sprintf("%s group %s", op.op, rec.Name),
				Description: fmt.Sprintf("Can %s the %s group.", op.op, rec.Name),
				Paths:       []string{fmt.Sprintf("%s /groups/%s*", op.verb, rec.ID)},
			})
		}
	}
	return group
}

func prefixScopeID(s *Scope, plugin string) *Scope {
	out := &Scope{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Paths:       append([]string(nil), s.Paths...),
	}
	if !strings.HasPrefix(out.ID, plugin+"-") {
		out.ID = plugin + "-" + out.ID
	}
	return out
}

// assemble relocates top-level leaves into the catch-all group and
// merges groups sharing a label: the first-seen group is kept, later
// matches have their children concatenated onto it in encounter order.
func assemble(nodes []*Permission) *Tree {
	byLabel := make(map[string]*Permission)
	var ordered []*Permission
	var orphans []*Permission

	merge := func(node *Permission) {
		if existing, ok := byLabel[node.Label]; ok {
			existing.Permissions = append(existing.Permissions, node.Permissions...)
			return
		}
		byLabel[node.Label] = node
		ordered = append(ordered, node)
	}

	for _, node := range nodes {
		if node.IsGroup() {
			merge(node)
			continue
		}
		orphans = append(orphans, node)
	}

	if len(orphans) > 0 {
		merge(&Permission{Label: OthersLabel, Permissions: orphans})
	}

	return &Tree{Groups: ordered}
}

// checkConflicts rejects duplicate leaf and scope ids. The automatic
// prefixing makes collisions across plugins impossible unless two
// plugins literally declare pre-prefixed colliding ids, which is a
// declaration bug worth failing the boot for.
func checkConflicts(tree *Tree, scopes []*Scope) error {
	seen := make(map[string]struct{})
	for _, id := range tree.LeafIDs() {
		if _, dup := seen[id]; dup {
			return &ConflictError{ID: id}
		}
		seen[id] = struct{}{}
	}

	seenScopes := make(map[string]struct{})
	for _, s := range scopes {
		if _, dup := seenScopes[s.ID]; dup {
			return &ConflictError{ID: s.ID}
		}
		seenScopes[s.ID] = struct{}{}
	}
	return nil
}
