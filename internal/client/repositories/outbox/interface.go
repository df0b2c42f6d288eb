package outbox

import (
	"context"
	"time"
)

type Record struct {
	ID         string
	Recipient  string
	Envelope   []byte
	Attempts   int
	EnqueuedAt time.Time
}

type Repository interface {
	// Save inserts the record or updates the attempt count of an existing one.
	Save(ctx context.Context, r Record) error

	// ListPending returns all records in enqueue order.
	ListPending(ctx context.Context) ([]Record, error)

	// Delete removes the record. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
}
