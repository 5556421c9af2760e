package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.Insert(ctx, "roles", []Record{
		{"id": "r1", "name": "editor"},
		{"id": "r2", "name": "viewer"},
	})
	require.NoError(t, err)

	records, err := s.Find(ctx, "roles", Filter{"name": "editor"}, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r1", records[0].GetString("id"))
}

func TestMemory_FindOne_NotFound(t *testing.T) {
	s := NewMemory()

	_, err := s.FindOne(context.Background(), "users", Filter{"email": "nobody@example.com"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_FilterInSemantics(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.Insert(ctx, "roles", []Record{
		{"id": "r1"},
		{"id": "r2"},
		{"id": "r3"},
	})
	require.NoError(t, err)

	records, err := s.Find(ctx, "roles", Filter{"id": []string{"r1", "r3"}}, nil)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestMemory_Update(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.Insert(ctx, "users", []Record{
		{"id": "u1", "email": "old@example.com", "origin": "local"},
	})
	require.NoError(t, err)

	count, err := s.Update(ctx, "users", Filter{"id": "u1"}, Record{"email": "new@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	rec, err := s.FindOne(ctx, "users", Filter{"id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", rec.GetString("email"))
	assert.Equal(t, "local", rec.GetString("origin"))
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.Insert(ctx, "users", []Record{
		{"id": "u1"}, {"id": "u2"},
	})
	require.NoError(t, err)

	count, err := s.Delete(ctx, "users", Filter{"id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	remaining, err := s.Find(ctx, "users", Filter{}, nil)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestMemory_UniqueIndex(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(WithUniqueIndex("users", "origin", "originId"))

	_, err := s.Insert(ctx, "users", []Record{
		{"id": "u1", "origin": "oidc-corp", "originId": "ext-1"},
	})
	require.NoError(t, err)

	_, err = s.Insert(ctx, "users", []Record{
		{"id": "u2", "origin": "oidc-corp", "originId": "ext-1"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUniqueViolation))

	// Same external id under a different origin is fine.
	_, err = s.Insert(ctx, "users", []Record{
		{"id": "u3", "origin": "saml-corp", "originId": "ext-1"},
	})
	assert.NoError(t, err)

	// Records with an empty indexed field never collide: local
	// accounts all carry an empty originId.
	for _, id := range []string{"u4", "u5"} {
		_, err = s.Insert(ctx, "users", []Record{
			{"id": id, "origin": "local", "originId": ""},
		})
		assert.NoError(t, err)
	}
}

func TestMemory_SortAndPaginate(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.Insert(ctx, "groups", []Record{
		{"id": "g2", "name": "beta"},
		{"id": "g3", "name": "gamma"},
		{"id": "g1", "name": "alpha"},
	})
	require.NoError(t, err)

	records, err := s.Find(ctx, "groups", Filter{}, &Options{SortBy: "name", Limit: 2})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].GetString("name"))
	assert.Equal(t, "beta", records[1].GetString("name"))

	records, err = s.Find(ctx, "groups", Filter{}, &Options{SortBy: "name", SortDesc: true, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "beta", records[0].GetString("name"))
}

func TestMemory_FindReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.Insert(ctx, "users", []Record{{"id": "u1", "name": "original"}})
	require.NoError(t, err)

	rec, err := s.FindOne(ctx, "users", Filter{"id": "u1"})
	require.NoError(t, err)
	rec["name"] = "mutated"

	fresh, err := s.FindOne(ctx, "users", Filter{"id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, "original", fresh.GetString("name"))
}

func TestRecord_GetStringSlice(t *testing.T) {
	rec := Record{
		"native": []string{"a", "b"},
		"json":   []interface{}{"a", "b"},
		"scalar": "a",
	}

	assert.Equal(t, []string{"a", "b"}, rec.GetStringSlice("native"))
	assert.Equal(t, []string{"a", "b"}, rec.GetStringSlice("json"))
	assert.Nil(t, rec.GetStringSlice("scalar"))
	assert.Nil(t, rec.GetStringSlice("missing"))
}
