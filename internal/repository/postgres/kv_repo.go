package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/repository"
)

// KVRepo implements repository.KV on the kv table.
type KVRepo struct {
	db  *DB
	now func() time.Time
}

var _ repository.KV = (*KVRepo)(nil)

// NewKVRepo constructs a KV repository.
func NewKVRepo(db *DB) *KVRepo { return &KVRepo{db: db, now: time.Now} }

// Get selects the value stored under key.
func (r *KVRepo) Get(ctx context.Context, key string) ([]byte, error) {
	const q = `SELECT value FROM kv WHERE key=$1`
	var v string
	if err := r.db.Pool.QueryRow(ctx, q, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return []byte(v), nil
}

// Put upserts the value in a single statement.
func (r *KVRepo) Put(ctx context.Context, key string, value []byte) error {
	const q = `
INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at`
	_, err := r.db.Pool.Exec(ctx, q, key, string(value), r.now().UTC().UnixMilli())
	return err
}

// Delete removes the row for key.
func (r *KVRepo) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM kv WHERE key=$1`
	_, err := r.db.Pool.Exec(ctx, q, key)
	return err
}
