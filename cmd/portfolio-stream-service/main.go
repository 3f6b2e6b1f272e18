package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/polybets/polybet-ledger/internal/portfolio-stream/ws"
	"github.com/polybets/polybet-ledger/internal/shared/cache"
	"github.com/polybets/polybet-ledger/internal/shared/config"
	"github.com/polybets/polybet-ledger/internal/shared/logger"
	"github.com/polybets/polybet-ledger/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	// Redis: canal Pub/Sub onde o ledger publica os updates de betslip
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("redis connected")

	hub := ws.NewHub(func(r *http.Request) bool { return true })
	ws.StartRedisSubscriber(context.Background(), redisClient, cfg.RedisPubSubChannel, hub)

	// ==== servidor público: só o endpoint WS
	appMux := http.NewServeMux()
	appMux.HandleFunc("/ws", hub.HandleWS)

	// ==== metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))

	addr := ":" + cfg.HTTPPort
	log.Info("portfolio-stream-service listening", zap.String("addr", addr), zap.String("paths", "/ws"))
	if err := http.ListenAndServe(addr, appMux); err != nil && err != http.ErrServerClosed {
		log.Fatal("ws server failed", zap.Error(err))
	}
}
