package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Postgres is a Store backed by a single JSONB documents table. Each
// record lives in the `entities` table keyed by collection name, so new
// collections need no migrations.
type Postgres struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewPostgres wraps an open database handle. Callers own the handle's
// lifecycle; Migrate must run once before first use.
func NewPostgres(db *sql.DB, log *logrus.Logger) *Postgres {
	if log == nil {
		log = logrus.New()
	}
	return &Postgres{db: db, log: log}
}

// Migrate creates the documents table and the uniqueness index that
// backs concurrent third-party provisioning: two simultaneous first
// logins for the same (origin, originId) cannot both insert.
func (p *Postgres) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			seq        BIGSERIAL PRIMARY KEY,
			collection TEXT NOT NULL,
			doc        JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_collection ON entities (collection)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_doc ON entities USING GIN (doc)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_user_origin
			ON entities (collection, (doc->>'origin'), (doc->>'originId'))
			WHERE collection = 'users' AND doc->>'originId' <> ''`,
	}

	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return &Error{Op: "migrate", Collection: "entities", Err: err}
		}
	}
	return nil
}

// Find returns all records in a collection matching the filter.
func (p *Postgres) Find(ctx context.Context, collection string, filter Filter, opts *Options) ([]Record, error) {
	query, args, err := p.buildSelect(collection, filter, opts)
	if err != nil {
		return nil, &Error{Op: "find", Collection: collection, Err: err}
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &Error{Op: "find", Collection: collection, Err: err}
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, &Error{Op: "find", Collection: collection, Err: err}
		}
		var rec Record
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, &Error{Op: "find", Collection: collection, Err: err}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "find", Collection: collection, Err: err}
	}
	return out, nil
}

// FindOne returns the first matching record or ErrNotFound.
func (p *Postgres) FindOne(ctx context.Context, collection string, filter Filter) (Record, error) {
	records, err := p.Find(ctx, collection, filter, &Options{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// Insert adds records to a collection.
func (p *Postgres) Insert(ctx context.Context, collection string, records []Record) ([]Record, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &Error{Op: "insert", Collection: collection, Err: err}
	}
	defer tx.Rollback()

	for _, rec := range records {
		doc, err := json.Marshal(rec)
		if err != nil {
			return nil, &Error{Op: "insert", Collection: collection, Err: err}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entities (collection, doc) VALUES ($1, $2)`,
			collection, doc,
		); err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return nil, &Error{Op: "insert", Collection: collection, Err: ErrUniqueViolation}
			}
			return nil, &Error{Op: "insert", Collection: collection, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &Error{Op: "insert", Collection: collection, Err: err}
	}
	return records, nil
}

// Update merges the patch into every matching document.
func (p *Postgres) Update(ctx context.Context, collection string, filter Filter, patch Record) (int, error) {
	patchDoc, err := json.Marshal(patch)
	if err != nil {
		return 0, &Error{Op: "update", Collection: collection, Err: err}
	}

	where, args := p.buildWhere(collection, filter, 2)
	query := `UPDATE entities SET doc = doc || $1 WHERE ` + where
	args = append([]interface{}{patchDoc}, args...)

	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &Error{Op: "update", Collection: collection, Err: err}
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, &Error{Op: "update", Collection: collection, Err: err}
	}
	return int(count), nil
}

// Delete removes every matching document.
func (p *Postgres) Delete(ctx context.Context, collection string, filter Filter) (int, error) {
	where, args := p.buildWhere(collection, filter, 1)
	query := `DELETE FROM entities WHERE ` + where

	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &Error{Op: "delete", Collection: collection, Err: err}
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, &Error{Op: "delete", Collection: collection, Err: err}
	}
	return int(count), nil
}

func (p *Postgres) buildSelect(collection string, filter Filter, opts *Options) (string, []interface{}, error) {
	where, args := p.buildWhere(collection, filter, 1)
	query := `SELECT doc FROM entities WHERE ` + where

	if opts != nil {
		if opts.SortBy != "" {
			direction := "ASC"
			if opts.SortDesc {
				direction = "DESC"
			}
			args = append(args, opts.SortBy)
			query += fmt.Sprintf(" ORDER BY doc->>$%d %s", len(args), direction)
		} else {
			query += " ORDER BY seq"
		}
		if opts.Limit > 0 {
			args = append(args, opts.Limit)
			query += fmt.Sprintf(" LIMIT $%d", len(args))
		}
		if opts.Offset > 0 {
			args = append(args, opts.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	} else {
		query += " ORDER BY seq"
	}

	return query, args, nil
}

// buildWhere renders the filter as JSONB field predicates. []string values
// become IN-style membership tests over the scalar field.
func (p *Postgres) buildWhere(collection string, filter Filter, startIndex int) (string, []interface{}) {
	clauses := []string{fmt.Sprintf("collection = $%d", startIndex)}
	args := []interface{}{collection}
	next := startIndex + 1

	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	// Stable clause order keeps queries testable with sqlmock.
	sort.Strings(keys)

	for _, key := range keys {
		switch v := filter[key].(type) {
		case []string:
			clauses = append(clauses, fmt.Sprintf("doc->>$%d = ANY($%d)", next, next+1))
			args = append(args, key, pq.Array(v))
			next += 2
		case bool:
			clauses = append(clauses, fmt.Sprintf("(doc->$%d)::boolean = $%d", next, next+1))
			args = append(args, key, v)
			next += 2
		default:
			clauses = append(clauses, fmt.Sprintf("doc->>$%d = $%d", next, next+1))
			args = append(args, key, fmt.Sprintf("%v", v))
			next += 2
		}
	}

	return strings.Join(clauses, " AND "), args
}
