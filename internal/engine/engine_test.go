package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auctionhouse/internal/auction"
	"auctionhouse/internal/clock"
	"auctionhouse/internal/outbox"
	"auctionhouse/internal/store"
	"auctionhouse/internal/store/memstore"
)

var t0 = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type testEnv struct {
	eng  IAuctionEngine
	st   *memstore.Store
	clk  *clock.Manual
	sink *outbox.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		st:   memstore.New(),
		clk:  clock.NewManual(t0),
		sink: &outbox.Memory{},
	}
	env.eng = NewAuctionEngine(env.st, env.sink, env.clk, time.Second)
	return env
}

func (e *testEnv) createForward(t *testing.T, id string) *auction.Record {
	t.Helper()
	rec, err := e.eng.CreateAuction(context.Background(), auction.NewRecordParams{
		ID:            id,
		SellerID:      "seller-1",
		Item:          "clock",
		Type:          auction.Forward,
		StartingPrice: dec("100"),
		EndsAt:        e.clk.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	return rec
}

func (e *testEnv) createDutch(t *testing.T, id string) *auction.Record {
	t.Helper()
	rec, err := e.eng.CreateAuction(context.Background(), auction.NewRecordParams{
		ID:               id,
		SellerID:         "seller-1",
		Item:             "lamp",
		Type:             auction.Dutch,
		StartingPrice:    dec("100"),
		MinPrice:         dec("40"),
		DecreaseAmount:   dec("10"),
		DecreaseInterval: 60,
		EndsAt:           e.clk.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	return rec
}

func TestPlaceBidForwardFlow(t *testing.T) {
	env := newTestEnv(t)
	env.createForward(t, "a1")
	ctx := context.Background()

	// Equal to starting price: rejected.
	_, err := env.eng.PlaceBid(ctx, "a1", "alice", dec("100"))
	assert.ErrorIs(t, err, auction.ErrBidTooLow)

	// Strictly higher: accepted.
	out, err := env.eng.PlaceBid(ctx, "a1", "alice", dec("150"))
	require.NoError(t, err)
	assert.Equal(t, BidAccepted, out.Result)
	assert.True(t, out.Price.Equal(dec("150")))

	// Below the new high bid: rejected.
	_, err = env.eng.PlaceBid(ctx, "a1", "bob", dec("120"))
	assert.ErrorIs(t, err, auction.ErrBidTooLow)

	rec, err := env.st.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, auction.Open, rec.Status)
	assert.Equal(t, "alice", rec.HighestBidderID)
	assert.True(t, rec.CurrentPrice.Equal(dec("150")))

	events := env.sink.Events()
	require.Len(t, events, 1)
	accepted, ok := events[0].(outbox.BidAccepted)
	require.True(t, ok)
	assert.Equal(t, "alice", accepted.BidderID)
	assert.True(t, accepted.Amount.Equal(dec("150")))
}

func TestPlaceBidForwardMonotonic(t *testing.T) {
	env := newTestEnv(t)
	env.createForward(t, "a1")
	ctx := context.Background()

	amounts := []string{"101", "110", "250", "251"}
	prev := decimal.Zero
	for _, a := range amounts {
		out, err := env.eng.PlaceBid(ctx, "a1", "alice", dec(a))
		require.NoError(t, err)
		require.True(t, out.Price.GreaterThan(prev), "accepted prices must strictly increase")
		prev = out.Price

		// Re-bidding the same amount always loses.
		_, err = env.eng.PlaceBid(ctx, "a1", "bob", dec(a))
		assert.ErrorIs(t, err, auction.ErrBidTooLow)
	}
}

func TestPlaceBidDutchBuyNow(t *testing.T) {
	env := newTestEnv(t)
	env.createDutch(t, "d1")
	ctx := context.Background()

	// 185 s in: three decay steps, price 70.
	env.clk.Advance(185 * time.Second)

	out, err := env.eng.PlaceBid(ctx, "d1", "alice", decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, BidWon, out.Result)
	assert.True(t, out.Price.Equal(dec("70")), "got %s", out.Price)

	rec, err := env.st.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, auction.Closed, rec.Status)
	assert.Equal(t, auction.CloseDutchPurchased, rec.CloseReason)
	assert.Equal(t, "alice", rec.HighestBidderID)
	assert.True(t, rec.CurrentPrice.Equal(dec("70")))

	// Anyone after the purchase is rejected.
	_, err = env.eng.PlaceBid(ctx, "d1", "bob", decimal.Zero)
	assert.ErrorIs(t, err, auction.ErrAuctionClosed)

	events := env.sink.Events()
	require.Len(t, events, 1)
	closedEv, ok := events[0].(outbox.AuctionClosed)
	require.True(t, ok)
	assert.Equal(t, "alice", closedEv.WinnerID)
	assert.True(t, closedEv.FinalPrice.Equal(dec("70")))
}

func TestPlaceBidDutchAtFloorStillBuyable(t *testing.T) {
	env := newTestEnv(t)
	env.createDutch(t, "d1")

	// Way past the decay floor but before ends_at.
	env.clk.Advance(30 * time.Minute)

	out, err := env.eng.PlaceBid(context.Background(), "d1", "alice", decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, BidWon, out.Result)
	assert.True(t, out.Price.Equal(dec("40")), "floor purchase at min price")
}

func TestPlaceBidDutchConcurrent(t *testing.T) {
	env := newTestEnv(t)
	env.createDutch(t, "d1")
	env.clk.Advance(90 * time.Second)

	const buyers = 16
	var wg sync.WaitGroup
	results := make(chan error, buyers)
	wg.Add(buyers)
	for i := 0; i < buyers; i++ {
		go func() {
			defer wg.Done()
			_, err := env.eng.PlaceBid(context.Background(), "d1", "buyer", decimal.Zero)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	won, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			won++
		default:
			require.ErrorIs(t, err, auction.ErrAuctionClosed)
			rejected++
		}
	}
	assert.Equal(t, 1, won, "exactly one buyer wins")
	assert.Equal(t, buyers-1, rejected)

	rec, err := env.st.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, auction.Closed, rec.Status)
	assert.Equal(t, auction.CloseDutchPurchased, rec.CloseReason)
	require.Len(t, env.sink.Events(), 1, "one AuctionClosed for one winning transition")
}

func TestPlaceBidUnknownAuction(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.eng.PlaceBid(context.Background(), "missing", "alice", dec("10"))
	assert.ErrorIs(t, err, auction.ErrNotFound)
}

func TestGetAuctionViewLazyExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.createForward(t, "a1")
	ctx := context.Background()

	env.clk.Advance(2 * time.Hour) // past ends_at, no sweep has run

	v, err := env.eng.GetAuctionView(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, auction.Closed, v.Status)
	assert.Equal(t, auction.CloseExpired, v.CloseReason)
	assert.Empty(t, v.HighestBidderID)
	assert.Zero(t, v.TimeRemaining)

	// The view is a projection; the stored record is untouched until the
	// sweep commits the transition.
	rec, err := env.st.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, auction.Open, rec.Status)
}

func TestGetAuctionViewOpen(t *testing.T) {
	env := newTestEnv(t)
	env.createDutch(t, "d1")
	env.clk.Advance(185 * time.Second)

	v, err := env.eng.GetAuctionView(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, auction.Open, v.Status)
	assert.True(t, v.CurrentPrice.Equal(dec("70")))
	assert.Equal(t, int64(3415), v.TimeRemaining) // 3600 - 185
}

func TestSweepExpirations(t *testing.T) {
	env := newTestEnv(t)
	env.createForward(t, "with-bids")
	env.createForward(t, "no-bids")
	ctx := context.Background()

	_, err := env.eng.PlaceBid(ctx, "with-bids", "alice", dec("150"))
	require.NoError(t, err)

	env.clk.Advance(2 * time.Hour)

	closed, err := env.eng.SweepExpirations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, closed)

	rec, err := env.st.Get(ctx, "with-bids")
	require.NoError(t, err)
	assert.Equal(t, auction.Closed, rec.Status)
	assert.Equal(t, auction.CloseForwardWon, rec.CloseReason)
	assert.Equal(t, "alice", rec.HighestBidderID, "highest bidder wins at expiry")

	rec, err = env.st.Get(ctx, "no-bids")
	require.NoError(t, err)
	assert.Equal(t, auction.Closed, rec.Status)
	assert.Equal(t, auction.CloseExpired, rec.CloseReason)
	assert.Empty(t, rec.HighestBidderID, "no winner without bids")

	// Second sweep is a no-op, not an error.
	firstState, _ := env.st.Get(ctx, "with-bids")
	closed, err = env.eng.SweepExpirations(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)
	secondState, _ := env.st.Get(ctx, "with-bids")
	assert.Equal(t, firstState, secondState)
}

func TestSweepFreezesDutchPriceAtExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.createDutch(t, "d1")
	ctx := context.Background()

	env.clk.Advance(2 * time.Hour)

	_, err := env.eng.SweepExpirations(ctx)
	require.NoError(t, err)

	rec, err := env.st.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, auction.Closed, rec.Status)
	assert.Equal(t, auction.CloseExpired, rec.CloseReason)
	assert.Empty(t, rec.HighestBidderID)
	assert.True(t, rec.CurrentPrice.Equal(dec("40")), "price frozen at the expiry-instant value")
}

// flakyStore injects failures at the commit point.
type flakyStore struct {
	store.Store
	mu     sync.Mutex
	casErr error
}

func (f *flakyStore) CompareAndSwap(ctx context.Context, rec *auction.Record) error {
	f.mu.Lock()
	err := f.casErr
	f.casErr = nil
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.CompareAndSwap(ctx, rec)
}

func TestPlaceBidStoreFailureIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	env.createForward(t, "a1")
	ctx := context.Background()

	flaky := &flakyStore{Store: env.st, casErr: auction.ErrStoreUnavailable}
	eng := NewAuctionEngine(flaky, env.sink, env.clk, time.Second)

	_, err := eng.PlaceBid(ctx, "a1", "alice", dec("150"))
	assert.ErrorIs(t, err, auction.ErrStoreUnavailable)

	// Nothing committed, nothing emitted.
	rec, err := env.st.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, auction.Open, rec.Status)
	assert.Empty(t, rec.HighestBidderID)
	assert.True(t, rec.CurrentPrice.Equal(dec("100")))
	assert.Empty(t, env.sink.Events())

	// A retry against the recovered store succeeds.
	out, err := eng.PlaceBid(ctx, "a1", "alice", dec("150"))
	require.NoError(t, err)
	assert.Equal(t, BidAccepted, out.Result)
}

func TestPlaceBidConflictIsRetryable(t *testing.T) {
	env := newTestEnv(t)
	env.createForward(t, "a1")
	ctx := context.Background()

	flaky := &flakyStore{Store: env.st, casErr: auction.ErrConflict}
	eng := NewAuctionEngine(flaky, env.sink, env.clk, time.Second)

	_, err := eng.PlaceBid(ctx, "a1", "alice", dec("150"))
	assert.ErrorIs(t, err, auction.ErrConflict)

	out, err := eng.PlaceBid(ctx, "a1", "alice", dec("150"))
	require.NoError(t, err)
	assert.Equal(t, BidAccepted, out.Result)
}

func TestPlaceBidLockWaitBounded(t *testing.T) {
	env := newTestEnv(t)
	env.createForward(t, "a1")

	eng := NewAuctionEngine(env.st, env.sink, env.clk, 50*time.Millisecond).(*auctionEngine)

	// Hold the exclusion so the bid has to wait it out.
	release, err := eng.locks.acquire(context.Background(), "a1")
	require.NoError(t, err)
	defer release()

	start := time.Now()
	_, err = eng.PlaceBid(context.Background(), "a1", "alice", dec("150"))
	assert.ErrorIs(t, err, auction.ErrConflict)
	assert.Less(t, time.Since(start), time.Second, "bounded wait, never hangs")
}

func TestIndependentAuctionsDoNotSerialize(t *testing.T) {
	env := newTestEnv(t)
	env.createForward(t, "a1")
	env.createForward(t, "a2")

	eng := NewAuctionEngine(env.st, env.sink, env.clk, 200*time.Millisecond).(*auctionEngine)

	// a1's exclusion is held; a2 must still make progress.
	release, err := eng.locks.acquire(context.Background(), "a1")
	require.NoError(t, err)
	defer release()

	out, err := eng.PlaceBid(context.Background(), "a2", "alice", dec("150"))
	require.NoError(t, err)
	assert.Equal(t, BidAccepted, out.Result)
}
