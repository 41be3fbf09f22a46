package redisoutbox

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"auctionhouse/internal/outbox"
)

const (
	channelPrefix = "auc:"
	channelSuffix = ":events"

	// Stream carrying every event for durable consumers (payment handoff,
	// receipts, archival).
	Stream = "auction_events"
)

// Publisher fans engine events out through Redis: one Pub/Sub message per
// auction channel for live listeners (websocket rooms on any instance),
// one stream entry for durable consumers.
type Publisher struct {
	rdc *redis.Client
}

var _ outbox.Sink = (*Publisher)(nil)

func NewPublisher(rdc *redis.Client) *Publisher {
	return &Publisher{rdc: rdc}
}

// Emit is fire-and-forget: publish failures are logged and swallowed. A
// committed bid must never be rolled back because a notification failed.
func (p *Publisher) Emit(ctx context.Context, ev outbox.Event) {
	payload, err := envelope(ev)
	if err != nil {
		zap.L().Error("outbox.marshal", zap.String("kind", ev.Kind()), zap.Error(err))
		return
	}

	channel := channelPrefix + ev.Auction() + channelSuffix
	if err := p.rdc.Publish(ctx, channel, payload).Err(); err != nil {
		zap.L().Warn("outbox.publish", zap.String("channel", channel), zap.Error(err))
	}

	err = p.rdc.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream,
		Values: map[string]interface{}{
			"kind":    ev.Kind(),
			"auction": ev.Auction(),
			"payload": string(payload),
		},
	}).Err()
	if err != nil {
		zap.L().Warn("outbox.xadd", zap.String("stream", Stream), zap.Error(err))
	}
}

// envelope flattens the event into {"event":"<kind>", ...fields} so that
// the websocket layer can wrap it without re-parsing typed structs.
func envelope(ev outbox.Event) ([]byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["event"] = ev.Kind()
	return json.Marshal(m)
}
