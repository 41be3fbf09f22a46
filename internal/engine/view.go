package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/auction"
)

// View is a read-only snapshot of one auction at a given instant. It
// applies lazy expiry: an OPEN record past its ends_at is reported as
// CLOSED/EXPIRED even before a sweep persists the transition, so readers
// never see "open" with no time left.
type View struct {
	ID              string              `json:"id"`
	SellerID        string              `json:"seller_id"`
	Item            string              `json:"item"`
	Type            auction.Type        `json:"auction_type"`
	Status          auction.Status      `json:"status"`
	CloseReason     auction.CloseReason `json:"close_reason,omitempty"`
	CurrentPrice    decimal.Decimal     `json:"current_price"`
	AtFloor         bool                `json:"at_floor,omitempty"`
	HighestBidderID string              `json:"highest_bidder,omitempty"`
	EndsAt          time.Time           `json:"ends_at"`
	TimeRemaining   int64               `json:"time_remaining_seconds"`
}

func newView(rec *auction.Record, now time.Time) View {
	v := View{
		ID:              rec.ID,
		SellerID:        rec.SellerID,
		Item:            rec.Item,
		Type:            rec.Type,
		Status:          rec.Status,
		CloseReason:     rec.CloseReason,
		HighestBidderID: rec.HighestBidderID,
		EndsAt:          rec.EndsAt,
	}

	priceAt := now
	if rec.Status == auction.Open && rec.ExpiredAt(now) {
		// Lazy expiry: report the would-be closed state. The price is
		// frozen at the expiry instant, exactly as the sweep will
		// persist it.
		v.Status = auction.Closed
		v.CloseReason = auction.CloseExpired
		if rec.Type == auction.Forward && rec.HighestBidderID != "" {
			v.CloseReason = auction.CloseForwardWon
		}
		priceAt = rec.EndsAt
	}

	v.CurrentPrice, v.AtFloor = auction.CurrentPrice(rec, priceAt)

	if remaining := rec.EndsAt.Sub(now); remaining > 0 && v.Status == auction.Open {
		v.TimeRemaining = int64(remaining / time.Second)
	}
	return v
}
