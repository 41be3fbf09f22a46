package auctionhandler

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateAuctionBody struct {
	SellerID      string          `json:"seller_id"      binding:"required" example:"seller123"`
	Item          string          `json:"item"           binding:"required" example:"antique clock"`
	AuctionType   string          `json:"auction_type"   binding:"required,oneof=FORWARD DUTCH" example:"FORWARD"`
	StartingPrice decimal.Decimal `json:"starting_price" binding:"required" example:"100"`
	EndsAt        time.Time       `json:"ends_at"        binding:"required" example:"2025-07-27T16:05:05Z"`

	// DUTCH only.
	MinPrice                decimal.Decimal `json:"min_price"                 example:"40"`
	DecreaseAmount          decimal.Decimal `json:"decrease_amount"           example:"10"`
	DecreaseIntervalSeconds int64           `json:"decrease_interval_seconds" example:"60"`
} // @name CreateAuctionRequest

type PlaceBidBody struct {
	BidderID string `json:"bidder_id" binding:"required" example:"user123"`
	// Amount is required for FORWARD bids and ignored for DUTCH buy-now
	// requests.
	Amount decimal.Decimal `json:"amount" example:"150"`
} // @name PlaceBidRequest

type BidOutcomeResponse struct {
	AuctionID string          `json:"auction_id"`
	Result    string          `json:"result" example:"ACCEPTED"`
	Price     decimal.Decimal `json:"price"`
} // @name BidOutcomeResponse

type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
} // @name ErrorResponse

type ListAuctionsQuery struct {
	Status string `form:"status"  binding:"omitempty,oneof=OPEN CLOSED"`
	Limit  int    `form:"limit,default=10"  binding:"gte=0,lte=100"`
	Offset int    `form:"offset,default=0"  binding:"gte=0"`
} // @name ListAuctionsQuery
