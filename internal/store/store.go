package store

import (
	"context"
	"time"

	"auctionhouse/internal/auction"
)

// Store is the engine's only persistence dependency: durable keyed
// storage for auction records with an optimistic compare-and-swap commit.
// The CAS is what keeps commits safe across service instances that do
// not share the engine's in-process lock.
type Store interface {
	// Create inserts a new record at version 0. A duplicate id is an
	// auction.ErrConflict.
	Create(ctx context.Context, rec *auction.Record) error

	// Get returns an independent copy of the record, or
	// auction.ErrNotFound.
	Get(ctx context.Context, id string) (*auction.Record, error)

	// CompareAndSwap persists rec if the stored version still equals
	// rec.Version, then bumps rec.Version. A lost race is an
	// auction.ErrConflict; callers retry with a fresh read.
	CompareAndSwap(ctx context.Context, rec *auction.Record) error

	// List returns records ordered by ends_at descending, optionally
	// filtered by status.
	List(ctx context.Context, status auction.Status, limit, offset int) ([]auction.Record, error)

	// ListOpenExpired returns the ids of every OPEN auction whose
	// ends_at has passed. Feeds the expiry sweep.
	ListOpenExpired(ctx context.Context, now time.Time) ([]string, error)
}
