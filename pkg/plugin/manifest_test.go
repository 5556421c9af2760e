package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugboard/plugboard/pkg/access"
)

func TestManifestRoundTrip(t *testing.T) {
	manifest := &Manifest{
		Name:  "publish",
		Mount: "/publish",
		Entities: map[string]Entity{
			"videos":   {Controller: "controllers/videos"},
			"comments": {Controller: "controllers/comments", Kind: access.EntityKindContent},
		},
		Permissions: []*access.Permission{
			{
				Label: "PUBLISH.PERMISSIONS.GROUP_MODERATION",
				Permissions: []*access.Permission{
					{ID: "moderate", Description: "Moderate comments", Paths: []string{"post /publish/moderate*"}},
				},
			},
		},
		WebServiceScopes: []*access.Scope{
			{ID: "videos-read", Name: "Read videos", Paths: []string{"get /publish/videos*"}},
		},
	}

	path := filepath.Join(t.TempDir(), ManifestFile)
	require.NoError(t, SaveManifest(manifest, path))

	loaded, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, manifest, loaded)
	assert.Empty(t, ValidateManifest(loaded))
}

func TestLoadManifest_Missing(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), ManifestFile))
	assert.Error(t, err)
}

func TestLoadManifest_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestFile)
	require.NoError(t, os.WriteFile(path, []byte(":\n  - ["), 0644))

	_, err := LoadManifest(path)
	assert.Error(t, err)
}

func TestValidateManifest(t *testing.T) {
	tests := []struct {
		name     string
		manifest *Manifest
		fields   []string
	}{
		{
			name:     "empty manifest is valid",
			manifest: &Manifest{},
		},
		{
			name:     "relative mount",
			manifest: &Manifest{Mount: "publish"},
			fields:   []string{"mount"},
		},
		{
			name: "unknown entity kind",
			manifest: &Manifest{Entities: map[string]Entity{
				"videos": {Controller: "c", Kind: "weird"},
			}},
			fields: []string{"entities.videos"},
		},
		{
			name: "entity without controller",
			manifest: &Manifest{Entities: map[string]Entity{
				"videos": {},
			}},
			fields: []string{"entities.videos"},
		},
		{
			name: "node that is both group and leaf",
			manifest: &Manifest{Permissions: []*access.Permission{
				{Label: "X", ID: "x", Paths: []string{"get /x"}},
			}},
			fields: []string{"permissions[0]"},
		},
		{
			name: "leaf without id or paths",
			manifest: &Manifest{Permissions: []*access.Permission{
				{Description: "dangling"},
			}},
			fields: []string{"permissions[0]", "permissions[0]"},
		},
		{
			name: "invalid nested leaf",
			manifest: &Manifest{Permissions: []*access.Permission{
				{Label: "G", Permissions: []*access.Permission{
					{ID: "ok", Paths: nil},
				}},
			}},
			fields: []string{"permissions[0].permissions[0]"},
		},
		{
			name: "scope without id or paths",
			manifest: &Manifest{WebServiceScopes: []*access.Scope{
				{Name: "nameless"},
			}},
			fields: []string{"webServiceScopes[0]", "webServiceScopes[0]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verrs := ValidateManifest(tt.manifest)
			require.Len(t, verrs, len(tt.fields))
			for i, field := range tt.fields {
				assert.Equal(t, field, verrs[i].Field)
			}
		})
	}
}
