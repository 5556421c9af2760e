package access

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noGroups(ctx context.Context) ([]GroupRecord, error) { return nil, nil }

func findGroup(t *testing.T, tree *Tree, label string) *Permission {
	t.Helper()
	for _, g := range tree.Groups {
		if g.Label == label {
			return g
		}
	}
	t.Fatalf("group %q not found in tree", label)
	return nil
}

func leafIDs(group *Permission) []string {
	var ids []string
	for _, p := range group.Permissions {
		if !p.IsGroup() {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func TestCompose_EntityDerivedPermissions(t *testing.T) {
	contribs := []Contribution{
		{
			Plugin:   "core",
			Entities: []EntityDecl{{Name: "applications", Kind: EntityKindPlain}},
		},
		{
			Plugin:    "publish",
			MountPath: "/publish",
			Entities:  []EntityDecl{{Name: "videos", Kind: EntityKindPlain}},
		},
	}

	tree, scopes, err := Compose(context.Background(), contribs, GroupSourceFunc(noGroups))
	require.NoError(t, err)

	apps := findGroup(t, tree, "CORE.PERMISSIONS.GROUP_APPLICATIONS")
	require.Len(t, apps.Permissions, 3)
	assert.Equal(t, []string{"core-add-applications", "core-update-applications", "core-delete-applications"}, leafIDs(apps))
	assert.Equal(t, []string{"put /applications*"}, apps.Permissions[0].Paths)
	assert.Equal(t, []string{"post /applications*"}, apps.Permissions[1].Paths)
	assert.Equal(t, []string{"delete /applications*"}, apps.Permissions[2].Paths)

	videos := findGroup(t, tree, "PUBLISH.PERMISSIONS.GROUP_VIDEOS")
	assert.Equal(t, []string{"publish-add-videos", "publish-update-videos", "publish-delete-videos"}, leafIDs(videos))
	assert.Equal(t, []string{"put /publish/videos*"}, videos.Permissions[0].Paths)

	// Scopes are flat and include read access.
	var scopeIDs []string
	for _, s := range scopes {
		scopeIDs = append(scopeIDs, s.ID)
	}
	assert.Contains(t, scopeIDs, "core-get-applications")
	assert.Contains(t, scopeIDs, "publish-get-videos")
	assert.Len(t, scopes, 8)

	for _, s := range scopes {
		if s.ID == "publish-get-videos" {
			assert.Equal(t, []string{"get /publish/videos*"}, s.Paths)
		}
	}
}

func TestCompose_ContentEntitiesExcluded(t *testing.T) {
	contribs := []Contribution{
		{
			Plugin: "blog",
			Entities: []EntityDecl{
				{Name: "articles", Kind: EntityKindContent},
				{Name: "tags", Kind: EntityKindPlain},
			},
		},
	}

	tree, scopes, err := Compose(context.Background(), contribs, GroupSourceFunc(noGroups))
	require.NoError(t, err)

	assert.Len(t, tree.Groups, 1)
	assert.Equal(t, "BLOG.PERMISSIONS.GROUP_TAGS", tree.Groups[0].Label)
	assert.Len(t, scopes, 4)
}

func TestCompose_Idempotent(t *testing.T) {
	contribs := []Contribution{
		{
			Plugin:    "publish",
			MountPath: "/publish",
			Entities:  []EntityDecl{{Name: "videos", Kind: EntityKindPlain}},
			Permissions: []*Permission{
				{
					Label: "PUBLISH.PERMISSIONS.GROUP_EXTRA",
					Permissions: []*Permission{
						{ID: "feature", Name: "feature", Paths: []string{"post /publish/feature*"}},
					},
				},
			},
		},
	}

	first, firstScopes, err := Compose(context.Background(), contribs, GroupSourceFunc(noGroups))
	require.NoError(t, err)
	second, secondScopes, err := Compose(context.Background(), contribs, GroupSourceFunc(noGroups))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstScopes, secondScopes)

	// Inputs are not mutated: the declared leaf keeps its unprefixed id.
	assert.Equal(t, "feature", contribs[0].Permissions[0].Permissions[0].ID)
}

func TestCompose_OrphanRelocation(t *testing.T) {
	contribs := []Contribution{
		{
			Plugin:   "x",
			Entities: []EntityDecl{{Name: "widgets", Kind: EntityKindPlain}},
			Permissions: []*Permission{
				{ID: "x-1", Name: "loose", Paths: []string{"post /x/loose*"}},
				{
					Label: "X.PERMISSIONS.GROUP_CUSTOM",
					Permissions: []*Permission{
						{ID: "x-2", Paths: []string{"post /x/custom*"}},
					},
				},
			},
		},
	}

	tree, _, err := Compose(context.Background(), contribs, GroupSourceFunc(noGroups))
	require.NoError(t, err)

	// Entity group + declared group + catch-all. No top-level leaves.
	require.Len(t, tree.Groups, 3)
	for _, g := range tree.Groups {
		assert.True(t, g.IsGroup())
	}

	others := findGroup(t, tree, OthersLabel)
	assert.Equal(t, []string{"x-1"}, leafIDs(others))
}

func TestCompose_LabelMerge(t *testing.T) {
	contribs := []Contribution{
		{
			Plugin: "one",
			Permissions: []*Permission{
				{
					Label: "CORE.PERMISSIONS.GROUP_FOO",
					Permissions: []*Permission{
						{ID: "a", Paths: []string{"post /one/a*"}},
					},
				},
			},
		},
		{
			Plugin: "two",
			Permissions: []*Permission{
				{
					Label: "CORE.PERMISSIONS.GROUP_FOO",
					Permissions: []*Permission{
						{ID: "b", Paths: []string{"post /two/b*"}},
					},
				},
			},
		},
	}

	tree, _, err := Compose(context.Background(), contribs, GroupSourceFunc(noGroups))
	require.NoError(t, err)

	require.Len(t, tree.Groups, 1)
	foo := tree.Groups[0]
	assert.Equal(t, "CORE.PERMISSIONS.GROUP_FOO", foo.Label)
	assert.Equal(t, []string{"one-a", "two-b"}, leafIDs(foo))
}

func TestCompose_PrefixingIsIdempotent(t *testing.T) {
	contribs := []Contribution{
		{
			Plugin: "publish",
			Permissions: []*Permission{
				{
					Label: "PUBLISH.PERMISSIONS.GROUP_MIXED",
					Permissions: []*Permission{
						{ID: "publish-already", Paths: []string{"post /a*"}},
						{ID: "fresh", Paths: []string{"post /b*"}},
						{
							Label: "NESTED",
							Permissions: []*Permission{
								{ID: "deep", Paths: []string{"post /c*"}},
							},
						},
					},
				},
			},
		},
	}

	tree, _, err := Compose(context.Background(), contribs, GroupSourceFunc(noGroups))
	require.NoError(t, err)

	assert.Equal(t, []string{"publish-already", "publish-fresh", "publish-deep"}, tree.LeafIDs())
}

func TestCompose_DynamicGroupPermissions(t *testing.T) {
	source := GroupSourceFunc(func(ctx context.Context) ([]GroupRecord, error) {
		return []GroupRecord{{ID: "g1", Name: "Editors"}}, nil
	})

	tree, _, err := Compose(context.Background(), nil, source)
	require.NoError(t, err)

	groups := findGroup(t, tree, "CORE.PERMISSIONS.GROUP_GROUPS")
	assert.Equal(t, []string{"group-get-g1", "group-update-g1", "group-delete-g1"}, leafIDs(groups))
	assert.Equal(t, []string{"get /groups/g1*"}, groups.Permissions[0].Paths)
	assert.Equal(t, "get group Editors", groups.Permissions[0].Name)
}

func TestCompose_GroupNamesMayCollide(t *testing.T) {
	// Names are display-only and not unique; composition keys the
	// synthesized leaves on the record id and must not conflict.
	source := GroupSourceFunc(func(ctx context.Context) ([]GroupRecord, error) {
		return []GroupRecord{{ID: "g1", Name: "Editors"}, {ID: "g2", Name: "editors"}}, nil
	})

	tree, _, err := Compose(context.Background(), nil, source)
	require.NoError(t, err)

	groups := findGroup(t, tree, "CORE.PERMISSIONS.GROUP_GROUPS")
	assert.Equal(t, []string{
		"group-get-g1", "group-update-g1", "group-delete-g1",
		"group-get-g2", "group-update-g2", "group-delete-g2",
	}, leafIDs(groups))
}

func TestCompose_GroupSourceErrorPropagates(t *testing.T) {
	source := GroupSourceFunc(func(ctx context.Context) ([]GroupRecord, error) {
		return nil, fmt.Errorf("store unavailable")
	})

	_, _, err := Compose(context.Background(), nil, source)
	assert.Error(t, err)
}

func TestCompose_DuplicateLeafIDFails(t *testing.T) {
	// Two plugins literally declaring pre-prefixed colliding ids.
	contribs := []Contribution{
		{
			Plugin: "alpha",
			Permissions: []*Permission{
				{Label: "G1", Permissions: []*Permission{
					{ID: "alpha-shared", Paths: []string{"post /a*"}},
				}},
			},
		},
		{
			Plugin: "beta",
			Permissions: []*Permission{
				{Label: "G2", Permissions: []*Permission{
					{ID: "alpha-shared", Paths: []string{"post /b*"}},
				}},
			},
		},
	}

	_, _, err := Compose(context.Background(), contribs, GroupSourceFunc(noGroups))
	require.Error(t, err)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "alpha-shared", conflict.ID)
}

func TestCompose_OthersMergesWithDeclaredGroup(t *testing.T) {
	contribs := []Contribution{
		{
			Plugin: "x",
			Permissions: []*Permission{
				{Label: OthersLabel, Permissions: []*Permission{
					{ID: "declared", Paths: []string{"post /d*"}},
				}},
				{ID: "loose", Paths: []string{"post /l*"}},
			},
		},
	}

	tree, _, err := Compose(context.Background(), contribs, GroupSourceFunc(noGroups))
	require.NoError(t, err)

	require.Len(t, tree.Groups, 1)
	assert.Equal(t, []string{"x-declared", "x-loose"}, leafIDs(tree.Groups[0]))
}
