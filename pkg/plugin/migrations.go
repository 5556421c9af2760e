package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/plugboard/plugboard/pkg/store"
)

// MigrationsDir is the directory inside an extension that holds its
// schema migration scripts, named "<semver>_<description>.sql".
const MigrationsDir = "migrations"

// schemaCollection tracks the last-applied migration version per plugin.
const schemaCollection = "plugin_schema"

// initialSchemaVersion is assumed for plugins never seen before.
const initialSchemaVersion = "0.0.0"

// readMigrations lists the migration scripts shipped in a plugin
// directory, sorted ascending by version. A missing migrations
// directory is not an error; a script with an unparseable version is.
func readMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(filepath.Join(dir, MigrationsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, _, _ := strings.Cut(strings.TrimSuffix(entry.Name(), ".sql"), "_")
		if !isValidSemver(version) {
			return nil, fmt.Errorf("migration %s: invalid version %q", entry.Name(), version)
		}
		out = append(out, Migration{
			Version: version,
			Path:    filepath.Join(dir, MigrationsDir, entry.Name()),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return compareSemver(out[i].Version, out[j].Version) < 0
	})
	return out, nil
}

// pendingMigrations returns the scripts newer than the plugin's
// last-applied schema version, as tracked in the system collection.
func pendingMigrations(ctx context.Context, st store.Store, pluginName string, scripts []Migration) ([]Migration, error) {
	lastApplied := initialSchemaVersion
	if st != nil {
		rec, err := st.FindOne(ctx, schemaCollection, store.Filter{"plugin": pluginName})
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if err == nil {
			if v := rec.GetString("version"); v != "" {
				lastApplied = v
			}
		}
	}

	var pending []Migration
	for _, m := range scripts {
		if compareSemver(m.Version, lastApplied) > 0 {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// compareSemver orders two semantic versions by their numeric
// major.minor.patch components. Pre-release and build metadata are
// ignored; migration scripts do not use them.
func compareSemver(a, b string) int {
	av := semverParts(a)
	bv := semverParts(b)
	for i := 0; i < 3; i++ {
		if av[i] != bv[i] {
			if av[i] < bv[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// semverParts extracts the numeric components; anything unparseable
// ranks as 0.0.0.
func semverParts(v string) [3]int {
	m := semverRegex.FindStringSubmatch(v)
	if m == nil {
		return [3]int{}
	}
	var out [3]int
	for i := 0; i < 3; i++ {
		out[i], _ = strconv.Atoi(m[i+1])
	}
	return out
}
