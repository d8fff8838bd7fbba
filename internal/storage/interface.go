package storage

import (
	"context"
	"time"

	"codeberg.org/mutker/aqimon/internal/reading"
)

// ReadingStore persists readings. Every call is a single atomic unit, so
// the poll loop, the purge loop and API queries may share one store.
type ReadingStore interface {
	// Append writes one reading.
	Append(ctx context.Context, r reading.Reading) error

	// Query returns the readings inside w in ascending timestamp order.
	Query(ctx context.Context, w reading.Window) ([]reading.Reading, error)

	// DeleteBefore removes readings strictly older than cutoff and returns
	// how many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Latest returns the most recent reading. ok is false when the store is
	// empty.
	Latest(ctx context.Context) (r reading.Reading, ok bool, err error)

	Count(ctx context.Context) (int64, error)

	Close() error
}
