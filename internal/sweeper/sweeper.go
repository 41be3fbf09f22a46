package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"auctionhouse/internal/engine"
)

// Run starts the periodic expiry sweep in the background. Clients already
// see expired auctions as closed through lazy views; the sweep is what
// persists the transition and emits the AuctionClosed event.
func Run(ctx context.Context, eng engine.IAuctionEngine, every time.Duration) {
	tk := time.NewTicker(every)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				if _, err := eng.SweepExpirations(ctx); err != nil {
					zap.L().Warn("sweep_failed", zap.Error(err))
				}
			}
		}
	}()
}
