package auction

import "errors"

// Business rejections. These are terminal answers to a single request and
// must never be retried by callers.
var (
	ErrNotFound       = errors.New("auction not found")
	ErrAuctionClosed  = errors.New("auction closed")
	ErrAuctionExpired = errors.New("auction expired")
	ErrBidTooLow      = errors.New("bid must be higher than current price")
	ErrInvalidAmount  = errors.New("bid amount must be positive")
	ErrInvalidParams  = errors.New("invalid auction parameters")
)

// Infrastructure errors. ErrConflict is retryable with a fresh read;
// ErrStoreUnavailable is retryable after backoff.
var (
	ErrConflict         = errors.New("auction record changed concurrently")
	ErrStoreUnavailable = errors.New("auction store unavailable")
	ErrCorruptRecord    = errors.New("auction record violates invariants")
)
