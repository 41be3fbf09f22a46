package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"auctionhouse/internal/auction"
)

// Event is an engine-emitted fact. Delivery guarantees belong to the
// sink, not the engine; a lost event never un-wins an auction.
type Event interface {
	Kind() string
	Auction() string
}

// BidAccepted is emitted when a FORWARD bid becomes the new high bid.
type BidAccepted struct {
	EventID   string          `json:"event_id"`
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	PlacedAt  time.Time       `json:"placed_at"`
}

func (BidAccepted) Kind() string      { return "bid_accepted" }
func (e BidAccepted) Auction() string { return e.AuctionID }

// AuctionClosed is emitted on every OPEN -> CLOSED transition. Payment
// handoff and receipt generation react to it downstream; WinnerID is
// empty for a FORWARD auction that expired without bids.
type AuctionClosed struct {
	EventID    string              `json:"event_id"`
	AuctionID  string              `json:"auction_id"`
	Reason     auction.CloseReason `json:"reason"`
	WinnerID   string              `json:"winner_id,omitempty"`
	FinalPrice decimal.Decimal     `json:"final_price"`
	ClosedAt   time.Time           `json:"closed_at"`
}

func (AuctionClosed) Kind() string      { return "auction_closed" }
func (e AuctionClosed) Auction() string { return e.AuctionID }

func NewBidAccepted(rec *auction.Record, bidder string, amount decimal.Decimal, now time.Time) BidAccepted {
	return BidAccepted{
		EventID:   uuid.NewString(),
		AuctionID: rec.ID,
		BidderID:  bidder,
		Amount:    amount,
		PlacedAt:  now,
	}
}

func NewAuctionClosed(rec *auction.Record, now time.Time) AuctionClosed {
	return AuctionClosed{
		EventID:    uuid.NewString(),
		AuctionID:  rec.ID,
		Reason:     rec.CloseReason,
		WinnerID:   rec.HighestBidderID,
		FinalPrice: rec.CurrentPrice,
		ClosedAt:   now,
	}
}

// Sink receives engine events, fire-and-forget.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// Discard drops every event. Used when no downstream consumer is wired.
type Discard struct{}

func (Discard) Emit(context.Context, Event) {}

// Memory collects events in order, for tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Emit(_ context.Context, ev Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
}

func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
