package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ledgersync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Save(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO outbox (id, recipient, envelope, attempts, enqueued_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET attempts = excluded.attempts
	`
	_, err := r.db.ExecContext(ctx, query, rec.ID, rec.Recipient, rec.Envelope, rec.Attempts, rec.EnqueuedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save outbox record %s: %w", rec.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]Record, error) {
	query := `SELECT id, recipient, envelope, attempts, enqueued_at FROM outbox ORDER BY enqueued_at, rowid`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select outbox: %w", err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		var rec Record
		var at int64
		if err := rows.Scan(&rec.ID, &rec.Recipient, &rec.Envelope, &rec.Attempts, &at); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		rec.EnqueuedAt = time.UnixMilli(at).UTC()
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox rows: %w", err)
	}

	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete outbox record %s: %w", id, err)
	}
	return nil
}
