package plugin

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugboard/plugboard/pkg/observability"
	"github.com/plugboard/plugboard/pkg/store"
)

func TestRecomposer_Run(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writePlugin(t, root, &Manifest{
		Name:  "core",
		Mount: "/",
		Entities: map[string]Entity{
			"applications": {Controller: "controllers/applications"},
		},
	}, "core")

	st := store.NewMemory()
	_, err := st.Insert(ctx, groupsCollection, []store.Record{
		{"id": "g1", "name": "editors"},
	})
	require.NoError(t, err)

	registry := NewRegistry(&Snapshot{})
	rc := NewRecomposer(NewDiscovery(st, nil), st, registry, root, "admin", nil)
	require.NoError(t, rc.Run(ctx))

	snap := registry.Current()
	require.NotNil(t, snap.Tree)
	require.NotNil(t, snap.Engine)
	assert.Len(t, snap.Descriptors, 1)

	var labels []string
	for _, g := range snap.Tree.Groups {
		labels = append(labels, g.Label)
	}
	assert.Contains(t, labels, "CORE.PERMISSIONS.GROUP_APPLICATIONS")
	assert.Contains(t, labels, "CORE.PERMISSIONS.GROUP_GROUPS")
}

func TestRecomposer_KeepsOldSnapshotOnFailure(t *testing.T) {
	ctx := context.Background()
	first := &Snapshot{Descriptors: []*Descriptor{{Name: "keep"}}}
	registry := NewRegistry(first)

	rc := NewRecomposer(NewDiscovery(nil, nil), nil, registry, "/does/not/exist", "admin", nil)
	require.Error(t, rc.Run(ctx))
	assert.Same(t, first, registry.Current())
}

func TestRecomposer_RecordsCompositionMetrics(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writePlugin(t, root, &Manifest{
		Name:  "core",
		Mount: "/",
		Entities: map[string]Entity{
			"applications": {Controller: "controllers/applications"},
		},
	}, "core")

	metrics := observability.NewMetrics()

	registry := NewRegistry(&Snapshot{})
	rc := NewRecomposer(NewDiscovery(nil, nil), nil, registry, root, "admin", nil)
	rc.SetMetrics(metrics)
	require.NoError(t, rc.Run(ctx))

	failing := NewRecomposer(NewDiscovery(nil, nil), nil, registry, "/does/not/exist", "admin", nil)
	failing.SetMetrics(metrics)
	require.Error(t, failing.Run(ctx))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `plugboard_compositions_total{outcome="success"} 1`)
	assert.Contains(t, body, `plugboard_compositions_total{outcome="error"} 1`)
	// The gauge reflects the installed snapshot, untouched by the
	// failed cycle.
	assert.Contains(t, body, "plugboard_plugins_loaded 1")
	assert.Contains(t, body, "plugboard_composition_duration_seconds_count 2")
}
