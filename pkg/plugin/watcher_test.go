package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string) (chan struct{}, context.CancelFunc) {
	t.Helper()

	reloads := make(chan struct{}, 16)
	w := NewWatcher(root, 20*time.Millisecond, func(ctx context.Context) {
		reloads <- struct{}{}
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()

	// Let Run install its watches before mutating the tree.
	time.Sleep(150 * time.Millisecond)
	return reloads, cancel
}

func awaitReload(t *testing.T, reloads chan struct{}, what string) {
	t.Helper()
	select {
	case <-reloads:
	case <-time.After(3 * time.Second):
		t.Fatalf("%s never triggered a reload", what)
	}
}

func TestWatcher_ReloadsOnManifestEdit(t *testing.T) {
	root := t.TempDir()
	dir := writePlugin(t, root, &Manifest{Name: "core"}, "core")

	reloads, cancel := startWatcher(t, root)
	defer cancel()

	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte("name: core\nmount: /core\n"), 0644))
	awaitReload(t, reloads, "editing a plugin manifest")
}

func TestWatcher_WatchesNewPluginDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, DefaultScopeDir), 0755))

	reloads, cancel := startWatcher(t, root)
	defer cancel()

	newDir := filepath.Join(root, DefaultScopeDir, "fresh")
	require.NoError(t, os.MkdirAll(newDir, 0755))
	awaitReload(t, reloads, "creating a plugin directory")

	// The new directory must have picked up its own watch.
	time.Sleep(150 * time.Millisecond)
	for len(reloads) > 0 {
		<-reloads
	}
	require.NoError(t, os.WriteFile(filepath.Join(newDir, ManifestFile), []byte("name: fresh\n"), 0644))
	awaitReload(t, reloads, "writing inside a newly created plugin directory")
}
