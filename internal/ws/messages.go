package ws

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "auctions/bid"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// BidRequest is the body for "auctions/bid". Amount is ignored for DUTCH
// buy-now requests, same as the REST surface.
type BidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// BidOutcomeBody acknowledges an accepted bid or a dutch win.
type BidOutcomeBody struct {
	Result string          `json:"result"`
	Price  decimal.Decimal `json:"price"`
}

// ErrorBody is returned for failures.
type ErrorBody struct {
	Error string `json:"error"`
}
