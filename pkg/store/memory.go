package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Store used in tests and single-node
// development setups. All methods are safe for concurrent use.
type Memory struct {
	mu          sync.RWMutex
	collections map[string][]Record
	unique      map[string][][]string // collection -> list of unique key tuples
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithUniqueIndex declares a uniqueness constraint over the given fields
// of a collection, enforced on Insert. The identity resolver relies on a
// (origin, originId) index on the users collection to make concurrent
// first-login provisioning safe.
func WithUniqueIndex(collection string, fields ...string) MemoryOption {
	return func(m *Memory) {
		m.unique[collection] = append(m.unique[collection], fields)
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		collections: make(map[string][]Record),
		unique:      make(map[string][][]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Find returns all records matching the filter.
func (m *Memory) Find(ctx context.Context, collection string, filter Filter, opts *Options) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, rec := range m.collections[collection] {
		if matches(rec, filter) {
			out = append(out, cloneRecord(rec))
		}
	}

	if opts != nil {
		if opts.SortBy != "" {
			sortRecords(out, opts.SortBy, opts.SortDesc)
		}
		out = paginate(out, opts.Offset, opts.Limit)
	}

	return out, nil
}

// FindOne returns the first matching record or ErrNotFound.
func (m *Memory) FindOne(ctx context.Context, collection string, filter Filter) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.collections[collection] {
		if matches(rec, filter) {
			return cloneRecord(rec), nil
		}
	}
	return nil, ErrNotFound
}

// Insert adds records, enforcing any declared unique indexes.
func (m *Memory) Insert(ctx context.Context, collection string, records []Record) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		for _, fields := range m.unique[collection] {
			if err := m.checkUnique(collection, rec, fields); err != nil {
				return nil, err
			}
		}
	}

	out := make([]Record, 0, len(records))
	for _, rec := range records {
		stored := cloneRecord(rec)
		m.collections[collection] = append(m.collections[collection], stored)
		out = append(out, cloneRecord(stored))
	}
	return out, nil
}

// Update patches every matching record in place.
func (m *Memory) Update(ctx context.Context, collection string, filter Filter, patch Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, rec := range m.collections[collection] {
		if matches(rec, filter) {
			for k, v := range patch {
				rec[k] = v
			}
			count++
		}
	}
	return count, nil
}

// Delete removes every matching record.
func (m *Memory) Delete(ctx context.Context, collection string, filter Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.collections[collection][:0]
	count := 0
	for _, rec := range m.collections[collection] {
		if matches(rec, filter) {
			count++
			continue
		}
		kept = append(kept, rec)
	}
	m.collections[collection] = kept
	return count, nil
}

func (m *Memory) checkUnique(collection string, candidate Record, fields []string) error {
	filter := Filter{}
	for _, f := range fields {
		v, ok := candidate[f]
		// Absent or empty indexed fields do not participate in the
		// constraint, mirroring a partial index.
		if !ok || v == nil || v == "" {
			return nil
		}
		filter[f] = v
	}
	for _, rec := range m.collections[collection] {
		if matches(rec, filter) {
			return &Error{
				Op:         "insert",
				Collection: collection,
				Err:        fmt.Errorf("%w on %v", ErrUniqueViolation, fields),
			}
		}
	}
	return nil
}

// matches reports whether a record satisfies the filter. []string filter
// values carry IN semantics over the record's scalar field.
func matches(rec Record, filter Filter) bool {
	for key, want := range filter {
		got, ok := rec[key]
		if !ok {
			return false
		}
		switch w := want.(type) {
		case []string:
			s, ok := got.(string)
			if !ok {
				return false
			}
			found := false
			for _, candidate := range w {
				if s == candidate {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if got != want {
				return false
			}
		}
	}
	return true
}

func sortRecords(records []Record, field string, desc bool) {
	sort.SliceStable(records, func(i, j int) bool {
		a := records[i].GetString(field)
		b := records[j].GetString(field)
		if desc {
			return a > b
		}
		return a < b
	})
}

func paginate(records []Record, offset, limit int) []Record {
	if offset >= len(records) {
		return nil
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}

func cloneRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		if s, ok := v.([]string); ok {
			v = append([]string(nil), s...)
		}
		out[k] = v
	}
	return out
}
