package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db, nil), mock
}

func TestPostgres_Find(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"doc"}).
		AddRow([]byte(`{"id":"u1","email":"a@example.com"}`))
	mock.ExpectQuery(`SELECT doc FROM entities WHERE collection = \$1 AND doc->>\$2 = \$3`).
		WithArgs("users", "email", "a@example.com").
		WillReturnRows(rows)

	records, err := s.Find(context.Background(), "users", Filter{"email": "a@example.com"}, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "u1", records[0].GetString("id"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindOne_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT doc FROM entities`).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	_, err := s.FindOne(context.Background(), "users", Filter{"id": "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_Update(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE entities SET doc = doc \|\| \$1 WHERE collection = \$2 AND doc->>\$3 = \$4`).
		WithArgs([]byte(`{"email":"new@example.com"}`), "users", "id", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	count, err := s.Update(context.Background(), "users", Filter{"id": "u1"}, Record{"email": "new@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Delete(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM entities WHERE collection = \$1 AND doc->>\$2 = \$3`).
		WithArgs("users", "id", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	count, err := s.Delete(context.Background(), "users", Filter{"id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPostgres_Insert_UniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO entities`).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := s.Insert(context.Background(), "users", []Record{
		{"id": "u1", "origin": "oidc-corp", "originId": "ext-1"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUniqueViolation))

	var storeErr *Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "insert", storeErr.Op)
	assert.Equal(t, "users", storeErr.Collection)
}

func TestPostgres_FilterInUsesArray(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"doc"}).
		AddRow([]byte(`{"id":"r1"}`)).
		AddRow([]byte(`{"id":"r2"}`))
	mock.ExpectQuery(`SELECT doc FROM entities WHERE collection = \$1 AND doc->>\$2 = ANY\(\$3\)`).
		WithArgs("roles", "id", pq.Array([]string{"r1", "r2"})).
		WillReturnRows(rows)

	records, err := s.Find(context.Background(), "roles", Filter{"id": []string{"r1", "r2"}}, nil)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
