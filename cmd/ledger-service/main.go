package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/polybets/polybet-ledger/internal/ledger-service/core"
	lhttp "github.com/polybets/polybet-ledger/internal/ledger-service/http"
	"github.com/polybets/polybet-ledger/internal/ledger-service/marketplace"
	kpub "github.com/polybets/polybet-ledger/internal/ledger-service/producer"
	"github.com/polybets/polybet-ledger/internal/ledger-service/pubsub"
	"github.com/polybets/polybet-ledger/internal/ledger-service/repo"
	"github.com/polybets/polybet-ledger/internal/shared/cache"
	"github.com/polybets/polybet-ledger/internal/shared/config"
	"github.com/polybets/polybet-ledger/internal/shared/db"
	"github.com/polybets/polybet-ledger/internal/shared/kafka"
	"github.com/polybets/polybet-ledger/internal/shared/logger"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	ctx := context.Background()

	// Postgres: journal de auditoria + fonte do estado no boot
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	journal := repo.NewPostgres(pg)
	if err := journal.EnsureSchema(ctx); err != nil {
		log.Fatal("pg schema", zap.Error(err))
	}

	// Redis: broadcast de updates pro portfolio-stream
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	bcast := pubsub.NewRedisBroadcaster(rdb, cfg.RedisPubSubChannel)

	// Kafka writers: betslip_created (pro executor) e betslip_settled
	createdWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSlipCreated)
	defer createdWriter.Close()
	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSlipSettled)
	defer settledWriter.Close()
	publ := kpub.NewKafkaPublisher(createdWriter, settledWriter)

	// deps
	dir := marketplace.Default()
	engine := core.NewEngine(dir, cfg.ExecutorToken, journal)

	// Reidrata o estado em memória a partir do journal
	slips, legs, balances, err := journal.LoadState(ctx)
	if err != nil {
		log.Fatal("pg load state", zap.Error(err))
	}
	engine.Restore(slips, legs, balances)
	log.Info("state restored",
		zap.Int("betslips", len(slips)),
		zap.Int("proxied_bets", len(legs)),
		zap.Int("identities", len(balances)),
	)

	// HTTP público
	api := lhttp.NewServer(log, engine, dir, publ, bcast)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pg.PingContext(r.Context()); err != nil {
			http.Error(w, "pg", http.StatusServiceUnavailable)
			return
		}
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() {
		addr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("metrics/health", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, metricsMux)
	}()

	log.Info("ledger-service listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
