package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"auctionhouse/internal/auction"
	"auctionhouse/internal/clock"
	"auctionhouse/internal/outbox"
	"auctionhouse/internal/store"
)

// BidResult distinguishes a forward bid that became the new high bid
// from a dutch purchase that closed the auction.
type BidResult string

const (
	BidAccepted BidResult = "ACCEPTED"
	BidWon      BidResult = "WON"
)

// BidOutcome is the successful half of PlaceBid; rejections travel as
// sentinel errors from the auction package.
type BidOutcome struct {
	AuctionID string          `json:"auction_id"`
	Result    BidResult       `json:"result"`
	Price     decimal.Decimal `json:"price"`
}

type IAuctionEngine interface {
	CreateAuction(ctx context.Context, p auction.NewRecordParams) (*auction.Record, error)
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (*BidOutcome, error)
	GetAuctionView(ctx context.Context, auctionID string) (*View, error)
	ListAuctions(ctx context.Context, status auction.Status, limit, offset int) ([]View, error)
	SweepExpirations(ctx context.Context) (int, error)
}

type auctionEngine struct {
	store    store.Store
	sink     outbox.Sink
	clk      clock.Clock
	locks    lockTable
	lockWait time.Duration
}

var _ IAuctionEngine = (*auctionEngine)(nil)

// NewAuctionEngine wires the engine to its collaborators. lockWait bounds
// how long a single call may wait for a contended auction; zero means the
// caller's context is the only bound.
func NewAuctionEngine(st store.Store, sink outbox.Sink, clk clock.Clock, lockWait time.Duration) IAuctionEngine {
	return &auctionEngine{
		store:    st,
		sink:     sink,
		clk:      clk,
		lockWait: lockWait,
	}
}

// CreateAuction inserts a new OPEN record as one atomic write. The record
// is the single source of truth; catalogue listings are projections of
// it, never a second writable copy.
func (e *auctionEngine) CreateAuction(ctx context.Context, p auction.NewRecordParams) (*auction.Record, error) {
	rec, err := auction.NewRecord(p, e.clk.Now())
	if err != nil {
		return nil, err
	}
	if err := e.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	zap.L().Info("auction_created",
		zap.String("id", rec.ID),
		zap.String("type", string(rec.Type)),
		zap.Time("ends_at", rec.EndsAt))
	return rec, nil
}

// PlaceBid runs the full read-decide-write cycle under the per-auction
// exclusion. The commit (store CAS) is the authoritative point: of two
// simultaneous dutch buyers both may pass validation against a stale
// read, but only the first commit wins; the loser re-enters, sees the
// closed record, and is rejected.
func (e *auctionEngine) PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (*BidOutcome, error) {
	release, err := e.lock(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := e.load(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	// One instant for pricing, validation and commit.
	now := e.clk.Now()
	price, _ := auction.CurrentPrice(rec, now)

	bid := auction.Bid{AuctionID: auctionID, BidderID: bidderID, Amount: amount}
	if err := auction.ValidateBid(rec, bid, price, now); err != nil {
		return nil, err
	}

	if rec.Type == auction.Dutch {
		// Unconditional buy-now at the decayed price; first commit wins.
		rec.HighestBidderID = bidderID
		rec.CurrentPrice = price
		rec.Status = auction.Closed
		rec.CloseReason = auction.CloseDutchPurchased
		if err := e.store.CompareAndSwap(ctx, rec); err != nil {
			return nil, err
		}
		e.sink.Emit(ctx, outbox.NewAuctionClosed(rec, now))
		return &BidOutcome{AuctionID: auctionID, Result: BidWon, Price: price}, nil
	}

	rec.HighestBidderID = bidderID
	rec.CurrentPrice = amount
	if err := e.store.CompareAndSwap(ctx, rec); err != nil {
		return nil, err
	}
	e.sink.Emit(ctx, outbox.NewBidAccepted(rec, bidderID, amount, now))
	return &BidOutcome{AuctionID: auctionID, Result: BidAccepted, Price: amount}, nil
}

// GetAuctionView is the read path: no exclusion, one consistent instant,
// lazy expiry applied in the snapshot.
func (e *auctionEngine) GetAuctionView(ctx context.Context, auctionID string) (*View, error) {
	rec, err := e.load(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	v := newView(rec, e.clk.Now())
	return &v, nil
}

func (e *auctionEngine) ListAuctions(ctx context.Context, status auction.Status, limit, offset int) ([]View, error) {
	recs, err := e.store.List(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}
	now := e.clk.Now()
	views := make([]View, 0, len(recs))
	for i := range recs {
		views = append(views, newView(&recs[i], now))
	}
	return views, nil
}

// SweepExpirations closes every OPEN auction past its ends_at, one
// exclusion at a time, never holding two auction locks at once. It is
// idempotent: an auction closed by a concurrent bid or a previous sweep
// is skipped, not an error. Returns how many auctions it closed.
func (e *auctionEngine) SweepExpirations(ctx context.Context) (int, error) {
	now := e.clk.Now()
	ids, err := e.store.ListOpenExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, id := range ids {
		ok, err := e.closeExpired(ctx, id, now)
		if err != nil {
			zap.L().Warn("sweep_close_failed", zap.String("id", id), zap.Error(err))
			continue
		}
		if ok {
			closed++
		}
	}
	if closed > 0 {
		zap.L().Info("sweep_done", zap.Int("closed", closed))
	}
	return closed, nil
}

func (e *auctionEngine) closeExpired(ctx context.Context, auctionID string, now time.Time) (bool, error) {
	release, err := e.lock(ctx, auctionID)
	if err != nil {
		return false, err
	}
	defer release()

	rec, err := e.load(ctx, auctionID)
	if err != nil {
		if errors.Is(err, auction.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if rec.IsClosed() || !rec.ExpiredAt(now) {
		return false, nil // already handled, or listing raced a fresher record
	}

	rec.Status = auction.Closed
	rec.CloseReason = auction.CloseExpired
	if rec.Type == auction.Dutch {
		// Freeze the price at the expiry instant; no winner without a
		// purchase.
		rec.CurrentPrice, _ = auction.CurrentPrice(rec, rec.EndsAt)
	} else if rec.HighestBidderID != "" {
		// The standing highest bidder wins at expiry.
		rec.CloseReason = auction.CloseForwardWon
	}
	if err := e.store.CompareAndSwap(ctx, rec); err != nil {
		return false, err
	}
	e.sink.Emit(ctx, outbox.NewAuctionClosed(rec, now))
	return true, nil
}

// lock acquires the per-auction exclusion with a bounded wait. Giving up
// is clean: the waiter owns nothing until acquire succeeds.
func (e *auctionEngine) lock(ctx context.Context, auctionID string) (func(), error) {
	if e.lockWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.lockWait)
		defer cancel()
	}
	release, err := e.locks.acquire(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("%w: auction busy: %v", auction.ErrConflict, err)
	}
	return release, nil
}

// load fetches and sanity-checks one record. Invariant violations fail
// the operation; they are never repaired in place.
func (e *auctionEngine) load(ctx context.Context, auctionID string) (*auction.Record, error) {
	rec, err := e.store.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		zap.L().Error("corrupt_auction_record", zap.String("id", auctionID), zap.Error(err))
		return nil, err
	}
	return rec, nil
}
