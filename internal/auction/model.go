package auction

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	Forward Type = "FORWARD"
	Dutch   Type = "DUTCH"
)

type Status string

const (
	Open   Status = "OPEN"
	Closed Status = "CLOSED"
)

// CloseReason is set exactly once, when Status flips to CLOSED.
type CloseReason string

const (
	CloseExpired        CloseReason = "EXPIRED"
	CloseDutchPurchased CloseReason = "DUTCH_PURCHASED"
	CloseForwardWon     CloseReason = "FORWARD_WON"
)

// Record is the sole mutable auction entity. Only the engine mutates it,
// always under the per-auction exclusion; everyone else gets copies.
type Record struct {
	ID       string `json:"id"`
	SellerID string `json:"seller_id"`
	Item     string `json:"item"`

	Type          Type            `json:"auction_type"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	// CurrentPrice caches the highest accepted bid (FORWARD) or the
	// purchase price (DUTCH, once closed). While a DUTCH auction is open
	// the authoritative price comes from CurrentPrice(rec, now).
	CurrentPrice decimal.Decimal `json:"current_price"`

	// DUTCH decay parameters; zero-valued for FORWARD.
	MinPrice         decimal.Decimal `json:"min_price"`
	DecreaseAmount   decimal.Decimal `json:"decrease_amount"`
	DecreaseInterval int64           `json:"decrease_interval_seconds"`

	CreatedAt time.Time `json:"created_at"`
	EndsAt    time.Time `json:"ends_at"`

	HighestBidderID string      `json:"highest_bidder,omitempty"`
	Status          Status      `json:"status"`
	CloseReason     CloseReason `json:"close_reason,omitempty"`

	// Version backs the store's compare-and-swap; bumped on every commit.
	Version int64 `json:"version"`
}

// NewRecordParams carries everything the seller-facing collaborator fixes
// at creation time. All fields are immutable afterwards.
type NewRecordParams struct {
	ID               string
	SellerID         string
	Item             string
	Type             Type
	StartingPrice    decimal.Decimal
	MinPrice         decimal.Decimal
	DecreaseAmount   decimal.Decimal
	DecreaseInterval int64
	EndsAt           time.Time
}

// NewRecord builds an OPEN record, rejecting parameter combinations that
// could never satisfy the record invariants.
func NewRecord(p NewRecordParams, now time.Time) (*Record, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidParams)
	}
	if p.Type != Forward && p.Type != Dutch {
		return nil, fmt.Errorf("%w: unknown auction type %q", ErrInvalidParams, p.Type)
	}
	if !p.StartingPrice.IsPositive() {
		return nil, fmt.Errorf("%w: starting price must be positive", ErrInvalidParams)
	}
	if !p.EndsAt.After(now) {
		return nil, fmt.Errorf("%w: ends_at must be in the future", ErrInvalidParams)
	}
	if p.Type == Dutch {
		if !p.DecreaseAmount.IsPositive() {
			return nil, fmt.Errorf("%w: decrease amount must be positive", ErrInvalidParams)
		}
		if p.DecreaseInterval <= 0 {
			return nil, fmt.Errorf("%w: decrease interval must be positive", ErrInvalidParams)
		}
		if p.MinPrice.IsNegative() || !p.MinPrice.LessThan(p.StartingPrice) {
			return nil, fmt.Errorf("%w: min price must be in [0, starting price)", ErrInvalidParams)
		}
	}

	rec := &Record{
		ID:            p.ID,
		SellerID:      p.SellerID,
		Item:          p.Item,
		Type:          p.Type,
		StartingPrice: p.StartingPrice,
		CurrentPrice:  p.StartingPrice,
		CreatedAt:     now,
		EndsAt:        p.EndsAt,
		Status:        Open,
	}
	if p.Type == Dutch {
		rec.MinPrice = p.MinPrice
		rec.DecreaseAmount = p.DecreaseAmount
		rec.DecreaseInterval = p.DecreaseInterval
	}
	return rec, nil
}

// Validate checks the record invariants. It is run on every load; a
// violation means the stored row is corrupt and the operation must fail
// rather than repair anything silently.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty id", ErrCorruptRecord)
	}
	if r.Type != Forward && r.Type != Dutch {
		return fmt.Errorf("%w: unknown type %q", ErrCorruptRecord, r.Type)
	}
	if !r.EndsAt.After(r.CreatedAt) {
		return fmt.Errorf("%w: ends_at before created_at", ErrCorruptRecord)
	}
	if r.Type == Dutch {
		if !r.DecreaseAmount.IsPositive() || r.DecreaseInterval <= 0 {
			return fmt.Errorf("%w: non-positive dutch decay parameters", ErrCorruptRecord)
		}
		if !r.MinPrice.LessThan(r.StartingPrice) {
			return fmt.Errorf("%w: min price not below starting price", ErrCorruptRecord)
		}
	}
	switch r.Status {
	case Open:
		if r.CloseReason != "" {
			return fmt.Errorf("%w: open auction carries close reason", ErrCorruptRecord)
		}
	case Closed:
		switch r.CloseReason {
		case CloseExpired:
			// FORWARD may expire with zero bids and no winner.
		case CloseDutchPurchased, CloseForwardWon:
			if r.HighestBidderID == "" {
				return fmt.Errorf("%w: closed as won without a winner", ErrCorruptRecord)
			}
		default:
			return fmt.Errorf("%w: closed without close reason", ErrCorruptRecord)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrCorruptRecord, r.Status)
	}
	if r.Type == Forward && r.CurrentPrice.LessThan(r.StartingPrice) {
		return fmt.Errorf("%w: forward price below starting price", ErrCorruptRecord)
	}
	return nil
}

// Clone returns an independent copy. decimal.Decimal is immutable, so a
// shallow copy is enough.
func (r *Record) Clone() *Record {
	cp := *r
	return &cp
}

func (r *Record) IsClosed() bool { return r.Status == Closed }

// ExpiredAt reports lazy expiry: true once now has reached EndsAt even if
// no sweep persisted the transition yet.
func (r *Record) ExpiredAt(now time.Time) bool {
	return !now.Before(r.EndsAt)
}
