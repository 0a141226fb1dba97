package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// snapshotID is the primary key of the single row holding the catalog document.
const snapshotID = 1

// DBTX is the subset of pgxpool.Pool used by PgMedium.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgMedium persists the catalog as one JSONB document in postgres.
// Each save is a single upsert statement, so it is atomic.
type PgMedium struct {
	db          DBTX
	description string
}

var _ Medium = (*PgMedium)(nil)

// NewPgMedium returns a medium using db. description is used in logs and must not carry credentials.
func NewPgMedium(db DBTX, description string) *PgMedium {
	return &PgMedium{db: db, description: description}
}

func (m *PgMedium) Describe() string {
	return "postgres:" + m.description
}

func (m *PgMedium) Load(ctx context.Context) ([]Product, error) {
	var document []byte
	err := m.db.QueryRow(ctx, `SELECT document FROM catalog_snapshot WHERE id = $1`, snapshotID).Scan(&document)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMediumEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog snapshot: %w", err)
	}
	products, err := decodeCollection(document)
	if err == nil || errors.Is(err, ErrMediumEmpty) {
		return products, err
	}
	quarantine, qErr := m.quarantine(ctx)
	if qErr != nil {
		return nil, fmt.Errorf("failed to set aside unreadable catalog snapshot: %w", errors.Join(err, qErr))
	}
	return nil, &CorruptionError{Quarantine: quarantine, Err: err}
}

func (m *PgMedium) Save(ctx context.Context, products []Product) error {
	data, err := encodeCollection(products)
	if err != nil {
		return err
	}
	_, err = m.db.Exec(ctx, `
		INSERT INTO catalog_snapshot (id, document, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`,
		snapshotID, string(data))
	if err != nil {
		return fmt.Errorf("failed to save catalog snapshot: %w", err)
	}
	return nil
}

// quarantine copies the current document into catalog_snapshot_quarantine and returns its row reference.
func (m *PgMedium) quarantine(ctx context.Context) (string, error) {
	var id int64
	err := m.db.QueryRow(ctx, `
		INSERT INTO catalog_snapshot_quarantine (document)
		SELECT document FROM catalog_snapshot WHERE id = $1
		RETURNING id`, snapshotID).Scan(&id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("catalog_snapshot_quarantine/%d", id), nil
}
