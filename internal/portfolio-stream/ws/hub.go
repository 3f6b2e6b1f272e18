package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/polybets/polybet-ledger/internal/ledger-service/pubsub"
)

// Hub gerencia conexões WebSocket do stream de portfólio.
// subs: mapeia identidade para o conjunto de conexões dela. Uma conexão
// só recebe updates da identidade com que autenticou no upgrade; não
// existe subscribe em identidade alheia.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*websocket.Conn]struct{}
}

func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*websocket.Conn]struct{}),
	}
}

// identityFrom extrai o token de identidade do upgrade. Browsers não
// mandam header custom no handshake WS, então aceita ?token= também.
func identityFrom(r *http.Request) string {
	if tok := r.Header.Get("X-Auth-Token"); tok != "" {
		return tok
	}
	return r.URL.Query().Get("token")
}

// HandleWS gerencia o ciclo de vida de uma conexão: autentica, registra
// sob a identidade e responde pings até desconectar.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity == "" {
		http.Error(w, "auth token required", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	h.mu.Lock()
	if _, ok := h.subs[identity]; !ok {
		h.subs[identity] = make(map[*websocket.Conn]struct{})
	}
	h.subs[identity][conn] = struct{}{}
	h.mu.Unlock()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Type == "ping" {
			_ = conn.WriteJSON(map[string]string{"type": "pong"})
		}
	}

	h.mu.Lock()
	if set, ok := h.subs[identity]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.subs, identity)
		}
	}
	h.mu.Unlock()
}

// Broadcast entrega um update às conexões da identidade dona do slip.
// A identidade sai do payload antes do envio.
func (h *Hub) Broadcast(upd pubsub.SlipUpdate) {
	h.mu.RLock()
	conns := h.subs[upd.Identity]
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	b, _ := json.Marshal(SlipEvent{
		BetSlipID:       upd.BetSlipID,
		Status:          upd.Status,
		CreditedAmount:  upd.CreditedAmount,
		FinalCollateral: upd.FinalCollateral,
		Balance:         upd.Balance,
	})
	for c := range conns {
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}
