package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/polybets/polybet-ledger/internal/ledger-service/core"
	"github.com/polybets/polybet-ledger/internal/ledger-service/dto"
	"github.com/polybets/polybet-ledger/internal/ledger-service/marketplace"
	"github.com/polybets/polybet-ledger/internal/ledger-service/pubsub"
	"github.com/polybets/polybet-ledger/pkg/contracts/events"
)

const (
	testExecutor = "test-executor-token"
	testUser     = "user-token-abc"
	usdc         = int64(1_000_000)
)

// fakePublisher captura os eventos Kafka emitidos pelo servidor.
type fakePublisher struct {
	created []events.BetSlipCreated
	settled []events.BetSlipSettled
}

func (p *fakePublisher) PublishBetSlipCreated(_ context.Context, e events.BetSlipCreated) error {
	p.created = append(p.created, e)
	return nil
}

func (p *fakePublisher) PublishBetSlipSettled(_ context.Context, e events.BetSlipSettled) error {
	p.settled = append(p.settled, e)
	return nil
}

type fakeBroadcaster struct {
	updates []pubsub.SlipUpdate
}

func (b *fakeBroadcaster) BroadcastSlipUpdate(_ context.Context, u pubsub.SlipUpdate) error {
	b.updates = append(b.updates, u)
	return nil
}

func newTestServer() (*Server, *fakePublisher, *fakeBroadcaster) {
	dir := marketplace.Default()
	engine := core.NewEngine(dir, testExecutor, nil)
	publ := &fakePublisher{}
	bcast := &fakeBroadcaster{}
	return NewServer(zap.NewNop(), engine, dir, publ, bcast), publ, bcast
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Auth-Token", token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doExecutor(t *testing.T, h http.Handler, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Executor-Token", token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func placeBetReq(legs int) dto.PlaceBetRequest {
	req := dto.PlaceBetRequest{
		Strategy:              "maximize_shares",
		TotalCollateralAmount: int64(legs) * 50 * usdc,
	}
	for i := 0; i < legs; i++ {
		req.Legs = append(req.Legs, dto.LegSpecRequest{
			MarketplaceID: fmt.Sprintf("%d", i+1),
			MarketID:      fmt.Sprintf("MKT_00%d", i+1),
		})
	}
	return req
}

func TestPlaceBetEndpoint(t *testing.T) {
	s, publ, _ := newTestServer()
	r := s.Router()

	// sem token de identidade
	rec := doJSON(t, r, http.MethodPost, "/v1/bets", "", placeBetReq(2))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// estratégia desconhecida
	bad := placeBetReq(2)
	bad.Strategy = "yolo"
	rec = doJSON(t, r, http.MethodPost, "/v1/bets", testUser, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// marketplace fora do diretório
	bad = placeBetReq(1)
	bad.Legs[0].MarketplaceID = "99"
	rec = doJSON(t, r, http.MethodPost, "/v1/bets", testUser, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/v1/bets", testUser, placeBetReq(2))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp dto.PlaceBetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.BetSlipID)
	assert.Equal(t, "created", resp.Status)

	// o evento pro executor sai sem identidade do dono
	require.Len(t, publ.created, 1)
	assert.Equal(t, resp.BetSlipID, publ.created[0].BetSlipID)
	assert.Equal(t, 100*usdc, publ.created[0].TotalCollateralAmount)
	assert.Len(t, publ.created[0].Legs, 2)

	// o slip aparece na listagem ativa do dono
	rec = doJSON(t, r, http.MethodGet, "/v1/portfolio/active", testUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list dto.BetslipListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, []string{resp.BetSlipID}, list.BetSlipIDs)
}

func TestMarketplaceEndpoints(t *testing.T) {
	s, _, _ := newTestServer()
	r := s.Router()

	rec := doJSON(t, r, http.MethodGet, "/v1/marketplaces", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []core.Marketplace
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 4)

	rec = doJSON(t, r, http.MethodGet, "/v1/marketplaces/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var m core.Marketplace
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "Slaughterhouse Predictions", m.Name)

	rec = doJSON(t, r, http.MethodGet, "/v1/marketplaces/99", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExecutorAuth(t *testing.T) {
	s, _, _ := newTestServer()
	r := s.Router()

	rec := doJSON(t, r, http.MethodPost, "/v1/bets", testUser, placeBetReq(1))
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp dto.PlaceBetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = doExecutor(t, r, "/v1/executor/bets/"+resp.BetSlipID+"/status", "wrong",
		dto.UpdateStatusRequest{Status: "processing"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doExecutor(t, r, "/v1/executor/bets/"+resp.BetSlipID+"/status", testExecutor,
		dto.UpdateStatusRequest{Status: "processing"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

// Fluxo completo: place -> record 2 pernas -> fecha as duas. Verifica
// mapeamento de status HTTP, broadcasts e o evento settled no final.
func TestFullSettlementFlow(t *testing.T) {
	s, publ, bcast := newTestServer()
	r := s.Router()

	rec := doJSON(t, r, http.MethodPost, "/v1/bets", testUser, placeBetReq(2))
	require.Equal(t, http.StatusCreated, rec.Code)
	var placed dto.PlaceBetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &placed))

	legsPath := "/v1/executor/bets/" + placed.BetSlipID + "/legs"
	for i := 1; i <= 2; i++ {
		rec = doExecutor(t, r, legsPath, testExecutor, dto.RecordLegRequest{
			ID:                       fmt.Sprintf("%s-leg-%d", placed.BetSlipID, i),
			MarketplaceID:            fmt.Sprintf("%d", i),
			MarketID:                 fmt.Sprintf("MKT_00%d", i),
			OriginalCollateralAmount: 50 * usdc,
			SharesBought:             100,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	// retry da mesma perna: conflito, não duplicação
	rec = doExecutor(t, r, legsPath, testExecutor, dto.RecordLegRequest{
		ID:                       placed.BetSlipID + "-leg-1",
		MarketplaceID:            "1",
		MarketID:                 "MKT_001",
		OriginalCollateralAmount: 50 * usdc,
		SharesBought:             100,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doExecutor(t, r, "/v1/executor/legs/"+placed.BetSlipID+"-leg-1/closed", testExecutor,
		dto.RecordClosedRequest{Outcome: "won", FinalAmount: 100 * usdc})
	require.Equal(t, http.StatusOK, rec.Code)
	var res dto.RecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "partially_closed", res.Status)
	assert.Equal(t, 100*usdc, res.CreditedAmount)
	assert.Empty(t, publ.settled)

	rec = doExecutor(t, r, "/v1/executor/legs/"+placed.BetSlipID+"-leg-2/closed", testExecutor,
		dto.RecordClosedRequest{Outcome: "lost", FinalAmount: 0})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "closed", res.Status)
	assert.Equal(t, 100*usdc, res.FinalCollateral)

	// fechar de novo é conflito
	rec = doExecutor(t, r, "/v1/executor/legs/"+placed.BetSlipID+"-leg-2/closed", testExecutor,
		dto.RecordClosedRequest{Outcome: "lost", FinalAmount: 0})
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Len(t, publ.settled, 1)
	assert.Equal(t, placed.BetSlipID, publ.settled[0].BetSlipID)
	assert.Equal(t, 100*usdc, publ.settled[0].FinalCollateral)
	assert.Equal(t, 2, publ.settled[0].LegCount)

	// broadcasts roteados pela identidade do dono
	require.NotEmpty(t, bcast.updates)
	for _, u := range bcast.updates {
		assert.Equal(t, testUser, u.Identity)
		assert.Equal(t, placed.BetSlipID, u.BetSlipID)
	}

	// saldo e saque
	rec = doJSON(t, r, http.MethodGet, "/v1/balance", testUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bal dto.BalanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bal))
	assert.Equal(t, 100*usdc, bal.Balance)

	rec = doJSON(t, r, http.MethodPost, "/v1/balance/withdraw", testUser, dto.WithdrawRequest{Amount: 150 * usdc})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/v1/balance/withdraw", testUser, dto.WithdrawRequest{Amount: 100 * usdc})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bal))
	assert.Zero(t, bal.Balance)
}

func TestSellEndpoints(t *testing.T) {
	s, _, _ := newTestServer()
	r := s.Router()

	rec := doJSON(t, r, http.MethodPost, "/v1/bets", testUser, placeBetReq(1))
	require.Equal(t, http.StatusCreated, rec.Code)
	var placed dto.PlaceBetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &placed))

	legID := placed.BetSlipID + "-leg-1"
	rec = doExecutor(t, r, "/v1/executor/bets/"+placed.BetSlipID+"/legs", testExecutor, dto.RecordLegRequest{
		ID:                       legID,
		MarketplaceID:            "1",
		MarketID:                 "MKT_001",
		OriginalCollateralAmount: 50 * usdc,
		SharesBought:             100,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doExecutor(t, r, "/v1/executor/legs/"+legID+"/sold", testExecutor,
		dto.RecordSoldRequest{SharesSold: 40, SaleValue: 20 * usdc})
	require.Equal(t, http.StatusOK, rec.Code)

	// over-sell: 40 vendidas, vender mais 61 passa das 100 compradas
	rec = doExecutor(t, r, "/v1/executor/legs/"+legID+"/sold", testExecutor,
		dto.RecordSoldRequest{SharesSold: 61, SaleValue: 30 * usdc})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doExecutor(t, r, "/v1/executor/legs/"+legID+"/sold", testExecutor,
		dto.RecordSoldRequest{SharesSold: 60, SaleValue: 30 * usdc})
	require.Equal(t, http.StatusOK, rec.Code)

	// perna vendida por inteiro
	rec = doJSON(t, r, http.MethodGet, "/v1/proxied-bets/"+legID, testUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var leg core.ProxiedBet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &leg))
	assert.Equal(t, core.OutcomeSold, leg.Outcome)
	assert.Equal(t, 50*usdc, leg.FinalCollateralAmount)

	rec = doJSON(t, r, http.MethodGet, "/v1/proxied-bets/nope", testUser, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
