package engine

import (
	"context"
	"sync"
)

// lockTable hands out one exclusion per auction id. The exclusion is a
// buffered channel used as a binary semaphore so a waiter can give up
// when its context expires; unrelated auctions never contend.
//
// Entries are never removed: one channel per auction that ever saw
// traffic is cheap, and removal would race with late waiters.
type lockTable struct {
	locks sync.Map // auctionID -> chan struct{}
}

// acquire blocks until the auction's exclusion is free or ctx is done.
// On success the returned release func must be called exactly once;
// abandoning the wait leaves no state behind.
func (t *lockTable) acquire(ctx context.Context, auctionID string) (release func(), err error) {
	v, _ := t.locks.LoadOrStore(auctionID, make(chan struct{}, 1))
	sem := v.(chan struct{})

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
