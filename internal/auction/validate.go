package auction

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bid is a candidate bid as submitted by a caller whose identity was
// already verified upstream.
type Bid struct {
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// ValidateBid decides admissibility of bid against the record and the
// price computed for the same now. It mutates nothing; acceptance is a
// recommendation only. The engine re-checks at commit time under the
// per-auction exclusion, because the record may have moved between a
// stale read and the commit.
func ValidateBid(rec *Record, bid Bid, currentPrice decimal.Decimal, now time.Time) error {
	if rec.IsClosed() {
		return ErrAuctionClosed
	}
	if rec.ExpiredAt(now) {
		// Lazy expiry: the status flag may lag the clock.
		return ErrAuctionExpired
	}
	if rec.Type == Dutch {
		// Any request is an unconditional buy-now at currentPrice; the
		// submitted amount is ignored by convention.
		return nil
	}
	if !bid.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	// Strictly greater: a bid equal to the current price is rejected so
	// outbidding is always deliberate.
	if !bid.Amount.GreaterThan(currentPrice) {
		return ErrBidTooLow
	}
	return nil
}
