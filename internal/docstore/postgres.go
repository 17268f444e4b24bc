package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT        NOT NULL,
		key        TEXT        NOT NULL,
		data       JSONB       NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, key)
	);
	CREATE INDEX IF NOT EXISTS documents_data_idx ON documents USING GIN (data jsonb_path_ops);
`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores documents in a single JSONB table.
type Postgres struct {
	pool *pgxpool.Pool
	pgOps
}

var _ Store = (*Postgres)(nil)

// NewPostgres wraps a connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, pgOps: pgOps{q: pool}}
}

// Migrate creates the documents table when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate documents table: %w", err)
	}
	return nil
}

// Close closes the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// RunTransaction runs fn inside BEGIN/COMMIT. Reads made through the
// transaction take a transaction-scoped advisory lock on the key (or query
// scope) they touch, which also covers keys that do not exist yet.
func (p *Postgres) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx DB) error) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(ctx, pgOps{q: tx, lock: true})
	})
}

type pgOps struct {
	q    querier
	lock bool
}

func (o pgOps) acquire(ctx context.Context, scope string) error {
	if !o.lock {
		return nil
	}
	if _, err := o.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, scope); err != nil {
		return fmt.Errorf("failed to lock %s: %w", scope, err)
	}
	return nil
}

func (o pgOps) Get(ctx context.Context, collection, key string) (*Document, error) {
	if err := o.acquire(ctx, collection+"/"+key); err != nil {
		return nil, err
	}
	query := `
		SELECT collection, key, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND key = $2
	`
	var d Document
	err := o.q.QueryRow(ctx, query, collection, key).Scan(
		&d.Collection, &d.Key, &d.Data, &d.CreateTime, &d.UpdateTime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, key, err)
	}
	return &d, nil
}

func (o pgOps) List(ctx context.Context, collection string) ([]*Document, error) {
	if err := o.acquire(ctx, collection); err != nil {
		return nil, err
	}
	query := `
		SELECT collection, key, data, created_at, updated_at
		FROM documents
		WHERE collection = $1
		ORDER BY key
	`
	return o.collect(ctx, query, collection)
}

func (o pgOps) Query(ctx context.Context, collection, field string, value any) ([]*Document, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode query value: %w", err)
	}
	if err := o.acquire(ctx, collection+"?"+field+"="+string(raw)); err != nil {
		return nil, err
	}
	query := `
		SELECT collection, key, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND data -> $2::text = $3::jsonb
		ORDER BY key
	`
	return o.collect(ctx, query, collection, field, string(raw))
}

func (o pgOps) collect(ctx context.Context, query string, args ...any) ([]*Document, error) {
	rows, err := o.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.Collection, &d.Key, &d.Data, &d.CreateTime, &d.UpdateTime); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

func (o pgOps) Set(ctx context.Context, collection, key string, data any) error {
	raw, err := encode(data)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	query := `
		INSERT INTO documents (collection, key, data, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, now(), now())
		ON CONFLICT (collection, key)
		DO UPDATE SET data = EXCLUDED.data, created_at = now(), updated_at = now()
	`
	if _, err := o.q.Exec(ctx, query, collection, key, string(raw)); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", collection, key, err)
	}
	return nil
}

func (o pgOps) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	query := `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND key = $2
	`
	result, err := o.q.Exec(ctx, query, collection, key, string(raw))
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, key, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (o pgOps) Delete(ctx context.Context, collection, key string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND key = $2`
	if _, err := o.q.Exec(ctx, query, collection, key); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, key, err)
	}
	return nil
}
