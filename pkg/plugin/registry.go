package plugin

import (
	"sync/atomic"

	"github.com/plugboard/plugboard/pkg/access"
)

// Snapshot is one composed view of the plugin world: the descriptor
// list, the permission tree, its decision engine, and the web-service
// scopes. Snapshots are immutable; recomposition produces a whole new
// one.
type Snapshot struct {
	Descriptors []*Descriptor
	Tree        *access.Tree
	Scopes      []*access.Scope
	Engine      *access.Engine
}

// Registry holds the current snapshot behind an atomic pointer. Reads
// are lock-free and safe from every concurrently handled request; Swap
// is the only mutation and replaces the whole snapshot at once.
type Registry struct {
	current atomic.Pointer[Snapshot]
}

// NewRegistry creates a registry holding the given initial snapshot.
func NewRegistry(initial *Snapshot) *Registry {
	r := &Registry{}
	r.current.Store(initial)
	return r
}

// Current returns the active snapshot.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Swap atomically installs a new snapshot, e.g. after a plugin
// hot-reload or a permission-affecting migration.
func (r *Registry) Swap(next *Snapshot) {
	r.current.Store(next)
}

// Descriptor returns the named descriptor from the active snapshot, or
// nil if no such plugin is loaded.
func (r *Registry) Descriptor(name string) *Descriptor {
	for _, d := range r.Current().Descriptors {
		if d.Name == name {
			return d
		}
	}
	return nil
}
