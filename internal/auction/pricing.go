package auction

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrentPrice computes the economically current price of an auction at
// now. It is pure: two processes calling it with the same record and the
// same instant always agree, which is what makes concurrent DUTCH buy-now
// requests arbitrable at the commit point.
//
// For FORWARD auctions the price is the highest accepted bid, or the
// starting price if nobody has bid; time plays no role. For DUTCH
// auctions the price steps down from the starting price by DecreaseAmount
// every DecreaseInterval seconds, clamped at MinPrice.
//
// atFloor is true only for a DUTCH auction whose decay has bottomed out.
// Buying at the floor stays allowed until EndsAt; the engine never closes
// an auction just because the floor was reached.
func CurrentPrice(rec *Record, now time.Time) (price decimal.Decimal, atFloor bool) {
	switch rec.Type {
	case Dutch:
		if rec.IsClosed() {
			// Purchase price was frozen at close time.
			return rec.CurrentPrice, false
		}
		elapsed := now.Sub(rec.CreatedAt)
		if elapsed < 0 {
			elapsed = 0
		}
		steps := int64(elapsed/time.Second) / rec.DecreaseInterval
		price = rec.StartingPrice.Sub(rec.DecreaseAmount.Mul(decimal.NewFromInt(steps)))
		if !price.GreaterThan(rec.MinPrice) {
			return rec.MinPrice, true
		}
		return price, false
	default: // Forward
		if rec.HighestBidderID == "" {
			return rec.StartingPrice, false
		}
		return rec.CurrentPrice, false
	}
}
