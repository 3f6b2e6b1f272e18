package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/polybets/polybet-ledger/internal/bet-executor/adapter"
	adapterdto "github.com/polybets/polybet-ledger/internal/bet-executor/adapter/dto"
	"github.com/polybets/polybet-ledger/internal/bet-executor/executor"
	"github.com/polybets/polybet-ledger/internal/bet-executor/ledger"
	ledgerdto "github.com/polybets/polybet-ledger/internal/ledger-service/dto"
	"github.com/polybets/polybet-ledger/internal/shared/config"
	"github.com/polybets/polybet-ledger/internal/shared/kafka"
	"github.com/polybets/polybet-ledger/internal/shared/logger"
	ev "github.com/polybets/polybet-ledger/pkg/contracts/events"
)

// Métricas do worker
var (
	slipsProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "executor_betslips_processed_total",
		Help: "Eventos betslip_created processados",
	})
	legsExecutedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "executor_legs_executed_total",
		Help: "Pernas executadas no adapter, por resultado",
	}, []string{"result"})
	dlqTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "executor_dlq_total",
		Help: "Eventos enviados pra DLQ",
	})
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(slipsProcessedTotal, legsExecutedTotal, dlqTotal)

	// Kafka consumer: eventos betslip_created emitidos pelo ledger
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetSlipCreated, "bet-executor")
	defer reader.Close()

	var dlqWriter *kafkago.Writer
	if cfg.TopicBetSlipCreatedDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSlipCreatedDLQ)
		defer dlqWriter.Close()
	}

	adapterCli := adapter.New(cfg.AdapterBaseURL)
	ledgerCli := ledger.New(cfg.LedgerBaseURL, cfg.ExecutorToken)

	// Servidor HTTP para métricas Prometheus e healthcheck
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		addr := ":" + cfg.MetricsPort
		log.Info("metrics/health", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, mux)
	}()

	log.Info("bet-executor-worker started",
		zap.String("consume", cfg.TopicBetSlipCreated),
		zap.String("adapter", cfg.AdapterBaseURL),
		zap.String("ledger", cfg.LedgerBaseURL),
	)

	ctx := context.Background()

	// Loop principal: consome betslip_created, executa as pernas no
	// adapter e grava os resultados de volta no ledger
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		var created ev.BetSlipCreated
		if jerr := json.Unmarshal(msg.Value, &created); jerr != nil {
			log.Error("unmarshal betslip_created", zap.Error(jerr))
			continue
		}

		if err := processOne(ctx, log, adapterCli, ledgerCli, dlqWriter, &created); err != nil {
			log.Error("process betslip", zap.String("betslip_id", created.BetSlipID), zap.Error(err))
			time.Sleep(500 * time.Millisecond)
			continue
		}
		slipsProcessedTotal.Inc()
	}
}

// processOne executa o fluxo de um betslip:
// 1. Marca o slip como processing no ledger
// 2. Divide o colateral entre as pernas conforme a estratégia
// 3. Compra shares no adapter, perna a perna
// 4. Grava cada perna no ledger (placed ou failed com reembolso)
func processOne(
	ctx context.Context,
	log *zap.Logger,
	adapterCli *adapter.Client,
	ledgerCli *ledger.Client,
	dlqWriter *kafkago.Writer,
	created *ev.BetSlipCreated,
) error {
	if len(created.Legs) == 0 {
		return fmt.Errorf("betslip %s sem pernas", created.BetSlipID)
	}

	if err := ledgerCli.UpdateSlipStatus(ctx, created.BetSlipID, "processing"); err != nil {
		// Retry de consumo: o slip pode já estar processing; segue em frente
		log.Warn("update status", zap.String("betslip_id", created.BetSlipID), zap.Error(err))
	}

	parts := executor.SplitCollateral(created.Strategy, created.TotalCollateralAmount, len(created.Legs))
	if parts == nil {
		return fmt.Errorf("betslip %s com colateral inválido", created.BetSlipID)
	}

	for i, leg := range created.Legs {
		// id determinístico: retry do mesmo evento dá DuplicateLeg no
		// ledger em vez de perna duplicada
		legID := fmt.Sprintf("%s-leg-%d", created.BetSlipID, i+1)

		minShares := minimumShares(ctx, adapterCli, leg.MarketplaceID, leg.MarketID, parts[i])

		buy, err := buyWithRetry(ctx, adapterCli, adapterdto.BuySharesRequest{
			MarketplaceID:    leg.MarketplaceID,
			MarketID:         leg.MarketID,
			OptionIndex:      0,
			CollateralAmount: parts[i],
			MinimumShares:    minShares,
		})
		if err != nil {
			// Adapter fora do ar: DLQ e desiste do evento inteiro
			if dlqWriter != nil {
				payload, _ := json.Marshal(created)
				_ = kafka.WriteJSON(ctx, dlqWriter, created.BetSlipID, payload)
				dlqTotal.Inc()
			}
			return err
		}

		rec := ledgerdto.RecordLegRequest{
			ID:                       legID,
			MarketplaceID:            leg.MarketplaceID,
			MarketID:                 leg.MarketID,
			OptionIndex:              0,
			MinimumShares:            minShares,
			BlockTimestamp:           buy.BlockTimestamp,
			OriginalCollateralAmount: parts[i],
		}
		if buy.Status == "filled" {
			rec.Outcome = "placed"
			rec.SharesBought = buy.SharesBought
			legsExecutedTotal.WithLabelValues("filled").Inc()
		} else {
			// Compra rejeitada: o colateral volta inteiro como reembolso
			rec.Outcome = "failed"
			rec.FailureReason = buy.Reason
			rec.FinalCollateralAmount = parts[i]
			legsExecutedTotal.WithLabelValues("rejected").Inc()
		}

		if _, err := ledgerCli.RecordLegPlaced(ctx, created.BetSlipID, rec); err != nil {
			// 409 em retry (DuplicateLeg) é esperado; o resto é problema
			log.Warn("record leg", zap.String("leg_id", legID), zap.Error(err))
		}
	}

	return nil
}

// minimumShares calcula o piso de shares aceitável a partir do preço
// corrente (5% de tolerância). Sem preço, compra a mercado.
func minimumShares(ctx context.Context, adapterCli *adapter.Client, marketplaceID, marketID string, collateral int64) int64 {
	prices, err := adapterCli.GetPrices(ctx, marketplaceID, marketID)
	if err != nil || len(prices.Prices) == 0 || prices.Prices[0] <= 0 {
		return 0
	}
	return collateral / prices.Prices[0] * 95 / 100
}

func buyWithRetry(ctx context.Context, cli *adapter.Client, req adapterdto.BuySharesRequest) (*adapterdto.BuySharesResponse, error) {
	resp, err := cli.BuyShares(ctx, req)
	if err == nil {
		return resp, nil
	}
	const retries = 3
	for i := 0; i < retries; i++ {
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
		if resp, err = cli.BuyShares(ctx, req); err == nil {
			return resp, nil
		}
	}
	return nil, err
}
