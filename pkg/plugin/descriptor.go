package plugin

import (
	"sort"

	"github.com/plugboard/plugboard/pkg/access"
)

// Entity is one entity type registered by a plugin: the controller
// module that handles it and its kind, which decides whether CRUD
// permissions are synthesized for it.
type Entity struct {
	Controller string            `yaml:"controller"`
	Kind       access.EntityKind `yaml:"kind"`
}

// RouteEntry is one route table row, carried through the descriptor for
// the routing collaborator.
type RouteEntry struct {
	Path    string `yaml:"path"`
	Handler string `yaml:"handler"`
}

// Routes holds a plugin's declared route tables.
type Routes struct {
	Public     []RouteEntry `yaml:"public,omitempty"`
	Private    []RouteEntry `yaml:"private,omitempty"`
	WebService []RouteEntry `yaml:"webService,omitempty"`
}

// MenuItem is a UI navigation contribution, passed through untouched.
type MenuItem struct {
	Label    string     `yaml:"label"`
	Path     string     `yaml:"path"`
	Children []MenuItem `yaml:"children,omitempty"`
}

// Migration is one schema migration script shipped by a plugin.
type Migration struct {
	Version string
	Path    string
}

// Descriptor is the normalized representation of one discovered
// extension. Created once per extension at boot and immutable
// thereafter; the process-wide registry owns the full list.
type Descriptor struct {
	Name      string
	MountPath string
	Version   string
	Dir       string

	Entities            map[string]Entity
	DeclaredPermissions []*access.Permission
	WebServiceScopes    []*access.Scope

	Routes          Routes
	Menu            []MenuItem
	ViewsFolders    []string
	ImageProcessing map[string]string

	AssetsDir string
	I18nDir   string

	// PendingMigrations are the scripts newer than the last schema
	// version applied for this plugin, in ascending version order. The
	// migration runner executes them after composition.
	PendingMigrations []Migration
}

// Contribution converts the descriptor into the composer's input.
// Entities are emitted in name order so composition stays deterministic
// regardless of map iteration.
func (d *Descriptor) Contribution() access.Contribution {
	names := make([]string, 0, len(d.Entities))
	for name := range d.Entities {
		names = append(names, name)
	}
	sort.Strings(names)

	entities := make([]access.EntityDecl, 0, len(names))
	for _, name := range names {
		kind := d.Entities[name].Kind
		if kind == "" {
			kind = access.EntityKindPlain
		}
		entities = append(entities, access.EntityDecl{Name: name, Kind: kind})
	}

	return access.Contribution{
		Plugin:      d.Name,
		MountPath:   d.MountPath,
		Entities:    entities,
		Permissions: d.DeclaredPermissions,
		Scopes:      d.WebServiceScopes,
	}
}

// Contributions maps a descriptor list into composer inputs, preserving
// order.
func Contributions(descriptors []*Descriptor) []access.Contribution {
	out := make([]access.Contribution, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, d.Contribution())
	}
	return out
}
