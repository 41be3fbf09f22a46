package archiver

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"auctionhouse/internal/outbox/redisoutbox"
)

// Run tails the outbox stream and persists the full bid history. The
// engine itself only keeps the current high bid on the record; everything
// downstream (receipts, payment handoff, audit) reads from here.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	go func() {
		lastID := "0-0"
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			// block up to 2 s for new entries
			res, err := rdc.XRead(ctx, &redis.XReadArgs{
				Streams: []string{redisoutbox.Stream, lastID},
				Count:   100,
				Block:   2000 * time.Millisecond,
			}).Result()
			if err != nil && err != redis.Nil {
				zap.L().Warn("archiver.xread", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if len(res) == 0 {
				continue
			}
			entries := res[0].Messages
			if err := persist(ctx, db, entries); err != nil {
				zap.L().Warn("archiver.persist", zap.Error(err))
			}
			lastID = entries[len(entries)-1].ID
		}
	}()
}

const schema = `
CREATE TABLE IF NOT EXISTS bids (
    event_id   TEXT PRIMARY KEY,
    auction_id TEXT NOT NULL,
    bidder_id  TEXT NOT NULL,
    amount     NUMERIC NOT NULL,
    placed_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS auction_closures (
    event_id   TEXT PRIMARY KEY,
    auction_id TEXT NOT NULL,
    reason     TEXT NOT NULL,
    winner_id  TEXT NOT NULL DEFAULT '',
    final_price NUMERIC NOT NULL,
    closed_at  TIMESTAMPTZ NOT NULL
);`

// EnsureSchema creates the history tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

// bidEvent mirrors outbox.BidAccepted / outbox.AuctionClosed payloads;
// amounts stay strings so Postgres NUMERIC receives them unrounded.
type bidEvent struct {
	EventID    string `json:"event_id"`
	AuctionID  string `json:"auction_id"`
	BidderID   string `json:"bidder_id"`
	Amount     string `json:"amount"`
	PlacedAt   string `json:"placed_at"`
	Reason     string `json:"reason"`
	WinnerID   string `json:"winner_id"`
	FinalPrice string `json:"final_price"`
	ClosedAt   string `json:"closed_at"`
}

func persist(ctx context.Context, db *sql.DB, msgs []redis.XMessage) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	const insBid = `INSERT INTO bids (event_id, auction_id, bidder_id, amount, placed_at)
	                VALUES ($1, $2, $3, $4, $5)
	                ON CONFLICT DO NOTHING`
	const insClose = `INSERT INTO auction_closures (event_id, auction_id, reason, winner_id, final_price, closed_at)
	                  VALUES ($1, $2, $3, $4, $5, $6)
	                  ON CONFLICT DO NOTHING`

	for _, m := range msgs {
		kind, _ := m.Values["kind"].(string)
		payload, _ := m.Values["payload"].(string)

		var ev bidEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			zap.L().Warn("archiver.decode", zap.String("kind", kind), zap.Error(err))
			continue
		}

		switch kind {
		case "bid_accepted":
			_, err = tx.ExecContext(ctx, insBid,
				ev.EventID, ev.AuctionID, ev.BidderID, ev.Amount, ev.PlacedAt)
		case "auction_closed":
			_, err = tx.ExecContext(ctx, insClose,
				ev.EventID, ev.AuctionID, ev.Reason, ev.WinnerID, ev.FinalPrice, ev.ClosedAt)
		default:
			continue
		}
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
