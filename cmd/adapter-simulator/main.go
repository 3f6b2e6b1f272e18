package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	adapterdto "github.com/polybets/polybet-ledger/internal/bet-executor/adapter/dto"
	"github.com/polybets/polybet-ledger/internal/shared/config"
	"github.com/polybets/polybet-ledger/internal/shared/logger"
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	// Métricas Prometheus do simulador
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "adapter_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	buyOrdersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adapter_buy_orders_total",
		Help: "Ordens de compra recebidas, por resultado",
	}, []string{"result"})
	sellOrdersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adapter_sell_orders_total",
		Help: "Ordens de venda recebidas",
	})
)

// market simula um mercado binário com preço por opção em micro-USDC.
// A soma dos preços fica perto de 1 USDC, como num mercado de previsão.
type market struct {
	ID     string
	Prices []int64
}

// book guarda os mercados simulados atrás de um mutex e aplica um
// random walk nos preços a cada tick.
type book struct {
	mu      sync.RWMutex
	markets map[string]*market
}

func newBook() *book {
	b := &book{markets: make(map[string]*market)}
	// Catálogo fixo: os mercados usados nos cenários locais
	for _, id := range []string{"MKT_001", "MKT_002", "MKT_003", "MKT_004"} {
		yes := int64(300000 + rand.Intn(400000)) // 0.30 a 0.70 USDC
		b.markets[id] = &market{ID: id, Prices: []int64{yes, 1000000 - yes}}
	}
	return b
}

func (b *book) get(id string) *market {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.markets[id]
}

// ensure devolve o mercado, criando na hora se for desconhecido: o
// simulador aceita qualquer market_id pra facilitar testes manuais.
func (b *book) ensure(id string) *market {
	if m := b.get(id); m != nil {
		return m
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.markets[id]; ok {
		return m
	}
	yes := int64(300000 + rand.Intn(400000))
	m := &market{ID: id, Prices: []int64{yes, 1000000 - yes}}
	b.markets[id] = m
	return m
}

// drift aplica um passo de random walk em todos os preços
func (b *book) drift() []adapterdto.PricesResponse {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]adapterdto.PricesResponse, 0, len(b.markets))
	for _, m := range b.markets {
		step := int64(rand.Intn(20000)) - 10000
		yes := m.Prices[0] + step
		if yes < 50000 {
			yes = 50000
		}
		if yes > 950000 {
			yes = 950000
		}
		m.Prices[0] = yes
		m.Prices[1] = 1000000 - yes
		out = append(out, adapterdto.PricesResponse{MarketID: m.ID, Prices: append([]int64(nil), m.Prices...)})
	}
	return out
}

type server struct {
	log  *zap.Logger
	book *book
}

func (s *server) buyHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req adapterdto.BuySharesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.CollateralAmount <= 0 {
		http.Error(w, "collateral_amount must be positive", http.StatusBadRequest)
		return
	}

	m := s.book.ensure(req.MarketID)
	price := m.Prices[0]
	if req.OptionIndex >= 0 && req.OptionIndex < len(m.Prices) {
		price = m.Prices[req.OptionIndex]
	}

	resp := adapterdto.BuySharesResponse{
		Status:         "filled",
		SharesBought:   req.CollateralAmount / price,
		BlockTimestamp: time.Now().Unix(),
	}
	switch {
	case rand.Intn(100) >= 90: // 10% de rejeição pra exercitar o caminho failed
		resp = adapterdto.BuySharesResponse{Status: "rejected", Reason: "insufficient_liquidity_mock"}
	case resp.SharesBought < req.MinimumShares:
		resp = adapterdto.BuySharesResponse{Status: "rejected", Reason: "slippage_exceeded"}
	}
	buyOrdersTotal.WithLabelValues(resp.Status).Inc()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *server) sellHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req adapterdto.SellSharesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Shares <= 0 {
		http.Error(w, "shares must be positive", http.StatusBadRequest)
		return
	}

	m := s.book.ensure(req.MarketID)
	price := m.Prices[0]
	if req.OptionIndex >= 0 && req.OptionIndex < len(m.Prices) {
		price = m.Prices[req.OptionIndex]
	}
	sellOrdersTotal.Inc()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(adapterdto.SellSharesResponse{
		Status:    "filled",
		SaleValue: req.Shares * price,
	})
}

func (s *server) pricesHandler(w http.ResponseWriter, r *http.Request) {
	marketID := r.URL.Query().Get("market_id")
	if marketID == "" {
		http.Error(w, "market_id required", http.StatusBadRequest)
		return
	}
	m := s.book.ensure(marketID)

	s.book.mu.RLock()
	resp := adapterdto.PricesResponse{MarketID: m.ID, Prices: append([]int64(nil), m.Prices...)}
	s.book.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type clientConn struct {
	id   string
	conn *websocket.Conn
}

type hub struct {
	mu      sync.RWMutex
	clients map[string]*clientConn
	log     *zap.Logger
}

func newHub(log *zap.Logger) *hub {
	return &hub{clients: make(map[string]*clientConn), log: log}
}

func (h *hub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	wsConnections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", c.id))
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		wsConnections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

func (h *hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, _ := json.Marshal(v)
	for id, c := range h.clients {
		c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.conn.Close()
		}
	}
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	rand.Seed(time.Now().UnixNano())

	prometheus.MustRegister(wsConnections, buyOrdersTotal, sellOrdersTotal)

	h := newHub(log)
	s := &server{log: log, book: newBook()}

	// Random walk de preços a cada 3 segundos, com broadcast pros
	// clientes WS conectados
	go func() {
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			for _, upd := range s.book.drift() {
				h.broadcast(upd)
			}
		}
	}()

	// ==== MUX PÚBLICO: /ws e /adapter/*
	appMux := http.NewServeMux()
	appMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		id := fmt.Sprintf("%d", time.Now().UnixNano())
		c := &clientConn{id: id, conn: conn}
		h.add(c)

		go func() {
			defer func() {
				h.remove(id)
				_ = conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
	appMux.HandleFunc("/adapter/buy-shares", s.buyHandler)
	appMux.HandleFunc("/adapter/sell-shares", s.sellHandler)
	appMux.HandleFunc("/adapter/prices", s.pricesHandler)

	// ==== MUX DE MÉTRICAS
	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsMux.Handle("/metrics", promhttp.Handler())

	go func() {
		metricsAddr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("adapter simulator (metrics) running", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
			log.Fatal("metrics server error", zap.Error(err))
		}
	}()

	publicAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("adapter simulator (public) running",
		zap.String("addr", publicAddr),
		zap.String("paths", "/ws,/adapter/buy-shares,/adapter/sell-shares,/adapter/prices"),
	)
	if err := http.ListenAndServe(publicAddr, appMux); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}
