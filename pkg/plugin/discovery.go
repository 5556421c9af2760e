package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/plugboard/plugboard/pkg/observability"
	"github.com/plugboard/plugboard/pkg/store"
)

// ErrDiscovery means the root extension directory could not be
// enumerated. Unlike per-plugin failures this is fatal to boot.
var ErrDiscovery = errors.New("plugin discovery failed")

const (
	// DefaultScopeDir is the conventional sub-directory extensions live
	// under, both at the root and inside extensions that bundle nested
	// extensions.
	DefaultScopeDir = "plugins"

	// VersionFile holds an extension's package version.
	VersionFile = "VERSION"

	// AssetsDir and I18nDir are the probe targets for static assets and
	// translations.
	AssetsDir = "assets"
	I18nDir   = "i18n"
)

// Discovery walks an extension tree and loads each recognized extension
// into a Descriptor. It runs once at boot, before the host serves
// requests, and is not re-entrant.
type Discovery struct {
	scopeDir string
	store    store.Store
	log      *logrus.Logger
	metrics  *observability.Metrics
}

// NewDiscovery creates a discovery instance. The store is consulted for
// last-applied schema versions and may be nil, in which case every
// shipped migration counts as pending.
func NewDiscovery(st store.Store, log *logrus.Logger) *Discovery {
	if log == nil {
		log = logrus.New()
	}
	return &Discovery{
		scopeDir: DefaultScopeDir,
		store:    st,
		log:      log,
	}
}

// SetScopeDir overrides the conventional extension sub-directory name.
func (d *Discovery) SetScopeDir(name string) {
	d.scopeDir = name
}

// SetMetrics attaches load-skip accounting. May be nil.
func (d *Discovery) SetMetrics(m *observability.Metrics) {
	d.metrics = m
}

func (d *Discovery) countSkip() {
	if d.metrics != nil {
		d.metrics.PluginLoadSkips.Inc()
	}
}

// candidate is one extension directory found during the walk, before
// deduplication and loading.
type candidate struct {
	name     string
	dir      string
	segments []string // path segments with scope directories stripped
}

// Discover enumerates, deduplicates, and loads every extension under
// root. A missing or unreadable root aborts with ErrDiscovery; any
// individual extension that fails to load is skipped and logged so the
// host still starts with whatever loaded successfully.
func (d *Discovery) Discover(ctx context.Context, root string) ([]*Descriptor, error) {
	candidates, err := d.collect(filepath.Join(root, d.scopeDir), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}

	survivors := dedupe(candidates)

	var descriptors []*Descriptor
	for _, c := range survivors {
		desc, err := d.load(ctx, c)
		if err != nil {
			d.log.Warnf("Skipping extension %s: %v", c.dir, err)
			d.countSkip()
			continue
		}
		if desc == nil {
			continue // not a recognized extension
		}
		descriptors = append(descriptors, desc)
		d.log.Infof("Loaded extension: %s v%s (mount: %s)", desc.Name, desc.Version, desc.MountPath)
	}

	return descriptors, nil
}

// collect recursively gathers candidate directories. Each extension may
// bundle further extensions under its own scope directory, at arbitrary
// depth. Only the root scope directory is fatal when unreadable; a
// broken nested scope skips that subtree so its siblings still load.
func (d *Discovery) collect(scopeDir string, parentSegments []string) ([]candidate, error) {
	entries, err := os.ReadDir(scopeDir)
	if err != nil {
		if len(parentSegments) == 0 {
			return nil, err
		}
		if !os.IsNotExist(err) {
			d.log.Warnf("Skipping nested extension scope %s: %v", scopeDir, err)
			d.countSkip()
		}
		return nil, nil
	}

	var out []candidate
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		segments := append(append([]string(nil), parentSegments...), entry.Name())
		dir := filepath.Join(scopeDir, entry.Name())
		out = append(out, candidate{
			name:     entry.Name(),
			dir:      dir,
			segments: segments,
		})

		nested, err := d.collect(filepath.Join(dir, d.scopeDir), segments)
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}
	return out, nil
}

// dedupe keeps, for every extension name, only the occurrence with the
// shortest path. A transitively-bundled extension that is also present
// directly loses to the direct copy.
func dedupe(candidates []candidate) []candidate {
	best := make(map[string]int) // name -> index into kept
	var kept []candidate

	for _, c := range candidates {
		idx, seen := best[c.name]
		if !seen {
			best[c.name] = len(kept)
			kept = append(kept, c)
			continue
		}
		if len(c.segments) < len(kept[idx].segments) {
			kept[idx] = c
		}
	}
	return kept
}

// load builds a Descriptor for one candidate. It returns (nil, nil) for
// directories that are not recognized extensions, and an error for
// extensions whose metadata is present but malformed.
func (d *Discovery) load(ctx context.Context, c candidate) (*Descriptor, error) {
	if _, err := os.Stat(filepath.Join(c.dir, ManifestFile)); err != nil {
		if os.IsNotExist(err) {
			d.log.Debugf("Not a recognized extension, skipping: %s", c.dir)
			return nil, nil
		}
		return nil, err
	}

	desc := &Descriptor{Dir: c.dir}

	// The metadata probes are mutually independent; run them as a
	// fan-out and join before touching the descriptor further. A
	// failing probe does not cancel its siblings.
	var g errgroup.Group

	var manifest *Manifest
	g.Go(func() error {
		m, err := LoadManifestFromDir(c.dir)
		if err != nil {
			return err
		}
		if verrs := ValidateManifest(m); len(verrs) > 0 {
			return fmt.Errorf("manifest validation failed: %v", verrs)
		}
		manifest = m
		return nil
	})

	g.Go(func() error {
		version, err := readVersionFile(c.dir)
		if err != nil {
			return err
		}
		desc.Version = version
		return nil
	})

	g.Go(func() error {
		if info, err := os.Stat(filepath.Join(c.dir, AssetsDir)); err == nil && info.IsDir() {
			desc.AssetsDir = filepath.Join(c.dir, AssetsDir)
		}
		return nil
	})

	g.Go(func() error {
		if info, err := os.Stat(filepath.Join(c.dir, I18nDir)); err == nil && info.IsDir() {
			desc.I18nDir = filepath.Join(c.dir, I18nDir)
		}
		return nil
	})

	var scripts []Migration
	g.Go(func() error {
		s, err := readMigrations(c.dir)
		if err != nil {
			return err
		}
		scripts = s
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	desc.Name = manifest.Name
	if desc.Name == "" {
		desc.Name = c.name
	}
	desc.MountPath = manifest.Mount
	if desc.MountPath == "" {
		desc.MountPath = "/" + strings.Join(c.segments, "/")
	}
	desc.Entities = manifest.Entities
	desc.DeclaredPermissions = manifest.Permissions
	desc.WebServiceScopes = manifest.WebServiceScopes
	desc.Routes = manifest.Routes
	desc.Menu = manifest.Menu
	desc.ViewsFolders = manifest.ViewsFolders
	desc.ImageProcessing = manifest.ImageProcessing

	pending, err := pendingMigrations(ctx, d.store, desc.Name, scripts)
	if err != nil {
		return nil, err
	}
	desc.PendingMigrations = pending

	return desc, nil
}

// readVersionFile reads the package version; a missing file is
// non-fatal, a malformed one aborts loading of this extension.
func readVersionFile(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, VersionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	version := strings.TrimSpace(string(data))
	if !isValidSemver(version) {
		return "", fmt.Errorf("invalid version %q", version)
	}
	return version, nil
}
