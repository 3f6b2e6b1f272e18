package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"go.uber.org/zap"

	"github.com/polybets/polybet-ledger/internal/shared/config"
	"github.com/polybets/polybet-ledger/internal/shared/logger"
)

func rp(to string) *httputil.ReverseProxy {
	u, _ := url.Parse(to)
	return httputil.NewSingleHostReverseProxy(u)
}

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// targets
	ledgerURL := os.Getenv("LEDGER_URL")
	if ledgerURL == "" {
		ledgerURL = "http://localhost:8084"
	}
	streamURL := os.Getenv("STREAM_URL")
	if streamURL == "" {
		streamURL = "http://localhost:8085"
	}
	adapterURL := os.Getenv("ADAPTER_URL")
	if adapterURL == "" {
		adapterURL = "http://localhost:8081"
	}
	ledger := rp(ledgerURL)
	stream := rp(streamURL)
	adapter := rp(adapterURL)

	mux := http.NewServeMux()

	// ledger (ex.: /api/ledger/v1/bets -> ledger-service)
	mux.Handle("/api/ledger/", http.StripPrefix("/api/ledger", ledger))

	// stream de portfólio (ex.: /api/stream/ws -> portfolio-stream-service)
	mux.Handle("/api/stream/", http.StripPrefix("/api/stream", stream))

	// adapter simulado (ex.: /api/adapter/adapter/prices -> adapter-simulator)
	mux.Handle("/api/adapter/", http.StripPrefix("/api/adapter", adapter))

	addr := ":" + cfg.HTTPPort
	log.Info("api-gateway listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, withCORS(mux)); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Auth-Token, X-Executor-Token")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
