package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inamate/compositor/internal/document"
	"github.com/inamate/compositor/internal/typeid"
)

const schema = `
CREATE TABLE IF NOT EXISTS compositions (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	owner_id   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS snapshots (
	id             TEXT PRIMARY KEY,
	composition_id TEXT NOT NULL REFERENCES compositions(id) ON DELETE CASCADE,
	version        INTEGER NOT NULL,
	document       JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (composition_id, version)
);

CREATE INDEX IF NOT EXISTS compositions_owner_idx ON compositions (owner_id, updated_at DESC);
`

// NewPool connects to Postgres and verifies the connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PgStore stores compositions in Postgres. Each snapshot holds the whole
// composition as JSONB.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

var _ Store = (*PgStore)(nil)

// Migrate creates the tables when they do not exist.
func (s *PgStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PgStore) Create(ctx context.Context, rec Record, comp *document.Composition) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO compositions (id, name, owner_id) VALUES ($1, $2, $3)`,
			rec.ID, rec.Name, rec.OwnerID)
		if err != nil {
			return fmt.Errorf("insert composition: %w", err)
		}
		_, err = appendSnapshot(ctx, tx, comp)
		return err
	})
}

func (s *PgStore) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, owner_id, created_at, updated_at FROM compositions WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.Name, &rec.OwnerID, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get composition: %w", err)
	}
	return rec, nil
}

func (s *PgStore) List(ctx context.Context, ownerID string) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, owner_id, created_at, updated_at FROM compositions
		 WHERE owner_id = $1 ORDER BY updated_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list compositions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.OwnerID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan composition: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PgStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM compositions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete composition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) Latest(ctx context.Context, id string) (*document.Composition, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM snapshots WHERE composition_id = $1 ORDER BY version DESC LIMIT 1`, id,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	var comp document.Composition
	if err := json.Unmarshal(doc, &comp); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &comp, nil
}

func (s *PgStore) Save(ctx context.Context, comp *document.Composition) (Snapshot, error) {
	var snap Snapshot
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO compositions (id, name) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET updated_at = now()`,
			comp.ID, comp.Name)
		if err != nil {
			return fmt.Errorf("touch composition: %w", err)
		}
		snap, err = appendSnapshot(ctx, tx, comp)
		return err
	})
	return snap, err
}

func appendSnapshot(ctx context.Context, tx pgx.Tx, comp *document.Composition) (Snapshot, error) {
	doc, err := json.Marshal(comp)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode composition: %w", err)
	}
	snap := Snapshot{ID: typeid.NewSnapshotID(), CompositionID: comp.ID}
	err = tx.QueryRow(ctx,
		`INSERT INTO snapshots (id, composition_id, version, document)
		 SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3 FROM snapshots WHERE composition_id = $2
		 RETURNING version, created_at`,
		snap.ID, comp.ID, doc,
	).Scan(&snap.Version, &snap.CreatedAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	return snap, nil
}

func (s *PgStore) History(ctx context.Context, id string, limit int) ([]Snapshot, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, composition_id, version, created_at FROM snapshots
		 WHERE composition_id = $1 ORDER BY version DESC LIMIT $2`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.CompositionID, &snap.Version, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
