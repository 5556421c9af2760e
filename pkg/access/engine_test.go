package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const superAdminID = "admin"

func testTree() *Tree {
	return &Tree{Groups: []*Permission{
		{
			Label: "PUBLISH.PERMISSIONS.GROUP_VIDEOS",
			Permissions: []*Permission{
				{ID: "publish-add-videos", Paths: []string{"put /publish/videos*"}},
				{ID: "publish-update-videos", Paths: []string{"post /publish/videos*"}},
				{ID: "publish-delete-videos", Paths: []string{"delete /publish/videos*"}},
			},
		},
		{
			Label: "CORE.PERMISSIONS.GROUP_USERS",
			Permissions: []*Permission{
				{ID: "core-update-user", Paths: []string{"post /users*"}},
			},
		},
	}}
}

func TestEngine_UnauthenticatedDenied(t *testing.T) {
	engine := NewEngine(testTree(), superAdminID)

	result := engine.Authorize(Request{Method: "GET", Path: "/"}, nil)
	assert.Equal(t, DenyUnauthorized, result.Decision)
	assert.ErrorIs(t, result.Err(), ErrUnauthorized)

	result = engine.Authorize(Request{Method: "GET", Path: "/"}, &Identity{})
	assert.Equal(t, DenyUnauthorized, result.Decision)
}

func TestEngine_DefaultAllowOnUnprotectedRoute(t *testing.T) {
	engine := NewEngine(testTree(), superAdminID)

	ident := &Identity{ID: "u1"} // empty permission set
	result := engine.Authorize(Request{Method: "GET", Path: "/totally/unprotected"}, ident)

	assert.True(t, result.Granted())
	assert.Empty(t, result.Matched)
	assert.NoError(t, result.Err())
}

func TestEngine_SuperAdminBypass(t *testing.T) {
	engine := NewEngine(testTree(), superAdminID)

	ident := &Identity{ID: superAdminID}
	requests := []Request{
		{Method: "PUT", Path: "/publish/videos/1"},
		{Method: "DELETE", Path: "/publish/videos/1"},
		{Method: "POST", Path: "/users/someone-else"},
	}
	for _, req := range requests {
		result := engine.Authorize(req, ident)
		assert.True(t, result.Granted(), "expected grant for %s %s", req.Method, req.Path)
	}
}

func TestEngine_SelfProfileExemption(t *testing.T) {
	engine := NewEngine(testTree(), superAdminID)

	ident := &Identity{ID: "u42"}
	result := engine.Authorize(Request{Method: "POST", Path: "/users/u42"}, ident)
	assert.True(t, result.Granted())

	result = engine.Authorize(Request{Method: "POST", Path: "/users/u42/"}, ident)
	assert.True(t, result.Granted())

	// A different user's profile stays protected.
	result = engine.Authorize(Request{Method: "POST", Path: "/users/u99"}, ident)
	assert.Equal(t, DenyForbidden, result.Decision)

	// Locked accounts get no self-service exemption.
	locked := &Identity{ID: "u42", Locked: true}
	result = engine.Authorize(Request{Method: "POST", Path: "/users/u42"}, locked)
	assert.Equal(t, DenyForbidden, result.Decision)

	// The exemption is update-verb only.
	result = engine.Authorize(Request{Method: "DELETE", Path: "/publish/videos/u42"}, ident)
	assert.Equal(t, DenyForbidden, result.Decision)
}

func TestEngine_SelfExemptionLimitedToProfileResource(t *testing.T) {
	engine := NewEngine(testTree(), superAdminID)

	// The requester's id ending some unrelated route must not grant it.
	ident := &Identity{ID: "u42"}
	result := engine.Authorize(Request{Method: "POST", Path: "/publish/videos/u42"}, ident)
	assert.Equal(t, DenyForbidden, result.Decision)
	assert.Equal(t, []string{"publish-update-videos"}, result.Matched)

	// Sub-resources of the profile are not the profile either.
	result = engine.Authorize(Request{Method: "POST", Path: "/users/u42/tokens"}, ident)
	assert.Equal(t, DenyForbidden, result.Decision)
}

func TestEngine_IntersectionGrant(t *testing.T) {
	engine := NewEngine(testTree(), superAdminID)

	ident := &Identity{ID: "u1", Permissions: []string{"publish-update-videos"}}

	result := engine.Authorize(Request{Method: "POST", Path: "/publish/videos/9"}, ident)
	assert.True(t, result.Granted())
	assert.Equal(t, []string{"publish-update-videos"}, result.Matched)

	result = engine.Authorize(Request{Method: "DELETE", Path: "/publish/videos/9"}, ident)
	assert.Equal(t, DenyForbidden, result.Decision)
	assert.ErrorIs(t, result.Err(), ErrForbidden)
	assert.Equal(t, []string{"publish-delete-videos"}, result.Matched)
}

func TestEngine_AnyMatchedPermissionSuffices(t *testing.T) {
	tree := &Tree{Groups: []*Permission{
		{Label: "G", Permissions: []*Permission{
			{ID: "broad", Paths: []string{"get /files*"}},
			{ID: "narrow", Paths: []string{"get /files/secret*"}},
		}},
	}}
	engine := NewEngine(tree, superAdminID)

	// Holding either of the overlapping permissions grants the request.
	result := engine.Authorize(Request{Method: "GET", Path: "/files/secret/1"},
		&Identity{ID: "u1", Permissions: []string{"broad"}})
	assert.True(t, result.Granted())

	result = engine.Authorize(Request{Method: "GET", Path: "/files/secret/1"},
		&Identity{ID: "u2", Permissions: []string{"narrow"}})
	assert.True(t, result.Granted())
}

func TestEngine_MatchCacheIsStable(t *testing.T) {
	engine := NewEngine(testTree(), superAdminID)
	ident := &Identity{ID: "u1", Permissions: []string{"publish-add-videos"}}

	req := Request{Method: "PUT", Path: "/publish/videos/1"}
	first := engine.Authorize(req, ident)
	second := engine.Authorize(req, ident)

	assert.Equal(t, first, second)
	assert.True(t, second.Granted())
}
