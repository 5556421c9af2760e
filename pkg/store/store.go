package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by FindOne when no record matches the filter.
var ErrNotFound = errors.New("record not found")

// Record is a single stored document. Field values are the JSON scalar
// types plus []string for list-valued fields.
type Record map[string]interface{}

// Filter selects records by exact field match. A []string value matches
// when the record's scalar field equals any element ("IN" semantics).
type Filter map[string]interface{}

// Options controls sorting and pagination of Find results.
type Options struct {
	SortBy   string
	SortDesc bool
	Limit    int // 0 means no limit
	Offset   int
}

// Store is the entity store the authorization core reads and writes.
// The backing implementation is opaque to callers; all access goes
// through filter-based CRUD.
type Store interface {
	// Find returns all records in a collection matching the filter.
	Find(ctx context.Context, collection string, filter Filter, opts *Options) ([]Record, error)

	// FindOne returns the first record matching the filter, or ErrNotFound.
	FindOne(ctx context.Context, collection string, filter Filter) (Record, error)

	// Insert adds records to a collection and returns them as stored.
	Insert(ctx context.Context, collection string, records []Record) ([]Record, error)

	// Update applies the patch to every record matching the filter and
	// returns the number of records changed.
	Update(ctx context.Context, collection string, filter Filter, patch Record) (int, error)

	// Delete removes every record matching the filter and returns the
	// number of records removed.
	Delete(ctx context.Context, collection string, filter Filter) (int, error)
}

// Error wraps a backend failure with the operation and collection that
// produced it. Callers receive these unchanged; there is no retry logic
// in this layer.
type Error struct {
	Op         string
	Collection string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrUniqueViolation is returned by Insert when a record would violate a
// uniqueness constraint, such as the (origin, originId) index on users.
var ErrUniqueViolation = errors.New("unique constraint violation")

// GetString returns a string field from a record, or "" if absent or of
// another type.
func (r Record) GetString(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// GetBool returns a boolean field from a record, defaulting to false.
func (r Record) GetBool(key string) bool {
	if v, ok := r[key].(bool); ok {
		return v
	}
	return false
}

// GetStringSlice returns a list-valued field from a record. Both []string
// and []interface{} representations are accepted so records round-trip
// through JSON backends.
func (r Record) GetStringSlice(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
