package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"auctionhouse/internal/archiver"
	"auctionhouse/internal/clock"
	"auctionhouse/internal/config"
	"auctionhouse/internal/database/db_client"
	"auctionhouse/internal/engine"
	"auctionhouse/internal/http/http_server"
	"auctionhouse/internal/outbox/redisoutbox"
	"auctionhouse/internal/redis/redis_client"
	"auctionhouse/internal/store/pgstore"
	"auctionhouse/internal/sweeper"
	"auctionhouse/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis (event fan-out + durable outbox stream)
	redisClient, err = redis_client.NewRedisClient(cfg.RedisEventsHost, int(cfg.RedisEventsPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	// 4. Postgres: the authoritative auction record store
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	recordStore := pgstore.New(pgDb)
	if err := recordStore.EnsureSchema(ctx); err != nil {
		Log.Fatal("pg-schema", zap.Error(err))
	}
	if err := archiver.EnsureSchema(ctx, pgDb); err != nil {
		Log.Fatal("pg-schema", zap.Error(err))
	}

	// 5. The auction engine: one clock, CAS store, redis outbox
	eng := engine.NewAuctionEngine(
		recordStore,
		redisoutbox.NewPublisher(redisClient),
		clock.System(),
		time.Duration(cfg.LockWaitMillis)*time.Millisecond,
	)

	// 6. Background: expiry sweep + bid history archiver
	sweeper.Run(ctx, eng, time.Duration(cfg.SweepIntervalSeconds)*time.Second)
	archiver.Run(ctx, redisClient, pgDb)

	// 7. WebSockets hub fed by the outbox channels
	hub := ws.NewHub()
	wsSrv := ws.NewWsServer(hub, redisClient, eng)

	// 8. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, eng)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
