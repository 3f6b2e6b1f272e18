package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/polybets/polybet-ledger/internal/ledger-service/core"
	"github.com/polybets/polybet-ledger/internal/ledger-service/dto"
	"github.com/polybets/polybet-ledger/internal/ledger-service/marketplace"
	"github.com/polybets/polybet-ledger/internal/ledger-service/pubsub"
	"github.com/polybets/polybet-ledger/pkg/contracts/events"
)

// Publisher emite os eventos Kafka do ciclo de vida do betslip.
type Publisher interface {
	PublishBetSlipCreated(context.Context, events.BetSlipCreated) error
	PublishBetSlipSettled(context.Context, events.BetSlipSettled) error
}

// Broadcaster repassa atualizações de slip pro stream de portfólio.
type Broadcaster interface {
	BroadcastSlipUpdate(context.Context, pubsub.SlipUpdate) error
}

// Server expõe a API do ledger: operações do usuário (identidade via
// token opaco) e os mutadores record* restritos ao executor.
type Server struct {
	log    *zap.Logger
	engine *core.Engine
	dir    *marketplace.Directory
	publ   Publisher
	bcast  Broadcaster
}

func NewServer(log *zap.Logger, engine *core.Engine, dir *marketplace.Directory, publ Publisher, bcast Broadcaster) *Server {
	return &Server{log: log, engine: engine, dir: dir, publ: publ, bcast: bcast}
}

// Router retorna o roteador HTTP com as rotas da API do ledger.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Post("/bets", s.placeBet)
		r.Get("/bets/{id}", s.getBetSlip)
		r.Get("/proxied-bets/{id}", s.getProxiedBet)
		r.Get("/marketplaces", s.listMarketplaces)
		r.Get("/marketplaces/{id}", s.getMarketplace)
		r.Get("/portfolio/active", s.activeBetslips)
		r.Get("/portfolio/closed", s.closedBetslips)
		r.Get("/balance", s.getBalance)
		r.Post("/balance/withdraw", s.withdraw)

		r.Route("/executor", func(r chi.Router) {
			r.Post("/bets/{slipId}/status", s.updateSlipStatus)
			r.Post("/bets/{slipId}/legs", s.recordLegPlaced)
			r.Post("/legs/{legId}/closed", s.recordLegClosed)
			r.Post("/legs/{legId}/sold", s.recordLegSold)
		})
	})
	return r
}

// identityFrom extrai o token de identidade autenticada do chamador.
// O token é opaco por design: o ledger nunca vê o endereço real.
func identityFrom(r *http.Request) string {
	if tok := r.Header.Get("X-Auth-Token"); tok != "" {
		return tok
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// executorFrom extrai o token do executor; o engine compara com o
// token autorizado configurado.
func executorFrom(r *http.Request) string {
	return r.Header.Get("X-Executor-Token")
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity == "" {
		writeError(w, http.StatusUnauthorized, "auth token required")
		return
	}
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	strategy, err := core.ParseStrategy(req.Strategy)
	if err != nil {
		s.fail(w, err)
		return
	}
	specs := make([]core.LegSpec, 0, len(req.Legs))
	for _, l := range req.Legs {
		if l.MarketplaceID == "" || l.MarketID == "" {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		specs = append(specs, core.LegSpec{MarketplaceID: l.MarketplaceID, MarketID: l.MarketID})
	}

	slip, err := s.engine.PlaceBet(r.Context(), identity, strategy, req.Privacy, req.TotalCollateralAmount, specs)
	if err != nil {
		s.fail(w, err)
		return
	}
	betsPlacedTotal.Inc()

	// evento pro executor; sem identidade do dono, por design
	if s.publ != nil {
		evLegs := make([]events.LegSpec, 0, len(slip.LegSpecs))
		for _, sp := range slip.LegSpecs {
			evLegs = append(evLegs, events.LegSpec{MarketplaceID: sp.MarketplaceID, MarketID: sp.MarketID})
		}
		if err := s.publ.PublishBetSlipCreated(r.Context(), events.BetSlipCreated{
			BetSlipID:             slip.ID,
			Strategy:              string(slip.Strategy),
			TotalCollateralAmount: slip.TotalCollateralAmount,
			Legs:                  evLegs,
		}); err != nil {
			s.log.Warn("publish betslip_created", zap.String("betslip_id", slip.ID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{BetSlipID: slip.ID, Status: string(slip.Status)})
}

func (s *Server) getBetSlip(w http.ResponseWriter, r *http.Request) {
	slip, err := s.engine.GetBetSlip(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slip)
}

func (s *Server) getProxiedBet(w http.ResponseWriter, r *http.Request) {
	leg, err := s.engine.GetProxiedBet(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leg)
}

func (s *Server) listMarketplaces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dir.List())
}

func (s *Server) getMarketplace(w http.ResponseWriter, r *http.Request) {
	m, ok := s.dir.Resolve(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) activeBetslips(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity == "" {
		writeError(w, http.StatusUnauthorized, "auth token required")
		return
	}
	writeJSON(w, http.StatusOK, dto.BetslipListResponse{BetSlipIDs: s.engine.ActiveBetslips(identity)})
}

func (s *Server) closedBetslips(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity == "" {
		writeError(w, http.StatusUnauthorized, "auth token required")
		return
	}
	writeJSON(w, http.StatusOK, dto.BetslipListResponse{BetSlipIDs: s.engine.ClosedBetslips(identity)})
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity == "" {
		writeError(w, http.StatusUnauthorized, "auth token required")
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{Balance: s.engine.Balance(identity)})
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity == "" {
		writeError(w, http.StatusUnauthorized, "auth token required")
		return
	}
	var req dto.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	balance, err := s.engine.Withdraw(r.Context(), identity, req.Amount)
	if err != nil {
		s.fail(w, err)
		return
	}
	withdrawalsTotal.Inc()
	writeJSON(w, http.StatusOK, dto.BalanceResponse{Balance: balance})
}

func (s *Server) updateSlipStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	err := s.engine.UpdateSlipStatus(r.Context(), executorFrom(r), chi.URLParam(r, "slipId"), core.SlipStatus(req.Status))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: req.Status})
}

func (s *Server) recordLegPlaced(w http.ResponseWriter, r *http.Request) {
	var req dto.RecordLegRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	outcome := core.OutcomePlaced
	if req.Outcome != "" {
		var err error
		if outcome, err = core.ParseOutcome(req.Outcome); err != nil {
			s.fail(w, err)
			return
		}
	}
	upd, err := s.engine.RecordProxiedBetPlaced(r.Context(), executorFrom(r), chi.URLParam(r, "slipId"), core.ProxiedBet{
		ID:                       req.ID,
		MarketplaceID:            req.MarketplaceID,
		MarketID:                 req.MarketID,
		OptionIndex:              req.OptionIndex,
		MinimumShares:            req.MinimumShares,
		BlockTimestamp:           req.BlockTimestamp,
		OriginalCollateralAmount: req.OriginalCollateralAmount,
		FinalCollateralAmount:    req.FinalCollateralAmount,
		SharesBought:             req.SharesBought,
		Outcome:                  outcome,
		FailureReason:            req.FailureReason,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	legsRecordedTotal.Inc()
	if outcome == core.OutcomeFailed {
		legsResolvedTotal.WithLabelValues(string(core.OutcomeFailed)).Inc()
	}
	s.publishUpdate(r.Context(), upd)
	writeJSON(w, http.StatusCreated, recordResponse(upd))
}

func (s *Server) recordLegClosed(w http.ResponseWriter, r *http.Request) {
	var req dto.RecordClosedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	outcome, err := core.ParseOutcome(req.Outcome)
	if err != nil {
		s.fail(w, err)
		return
	}
	upd, err := s.engine.RecordProxiedBetClosed(r.Context(), executorFrom(r), chi.URLParam(r, "legId"), outcome, req.FinalAmount, req.FailureReason)
	if err != nil {
		s.fail(w, err)
		return
	}
	legsResolvedTotal.WithLabelValues(string(outcome)).Inc()
	s.publishUpdate(r.Context(), upd)
	writeJSON(w, http.StatusOK, recordResponse(upd))
}

func (s *Server) recordLegSold(w http.ResponseWriter, r *http.Request) {
	var req dto.RecordSoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	legID := chi.URLParam(r, "legId")
	upd, err := s.engine.RecordProxiedBetSold(r.Context(), executorFrom(r), legID, req.SharesSold, req.SaleValue)
	if err != nil {
		s.fail(w, err)
		return
	}
	if leg, err := s.engine.GetProxiedBet(legID); err == nil && leg.Outcome == core.OutcomeSold {
		legsResolvedTotal.WithLabelValues(string(core.OutcomeSold)).Inc()
	}
	s.publishUpdate(r.Context(), upd)
	writeJSON(w, http.StatusOK, recordResponse(upd))
}

// publishUpdate propaga o efeito de uma mutação: broadcast Redis pro
// stream de portfólio e, no fechamento do slip, o evento settled.
func (s *Server) publishUpdate(ctx context.Context, upd core.Update) {
	if upd.CreditedAmount > 0 {
		creditedMicrosTotal.Add(float64(upd.CreditedAmount))
	}
	if s.bcast != nil && (upd.StatusChanged || upd.CreditedAmount > 0) {
		if err := s.bcast.BroadcastSlipUpdate(ctx, pubsub.SlipUpdate{
			Identity:        upd.OwnerIdentity,
			BetSlipID:       upd.SlipID,
			Status:          string(upd.Status),
			CreditedAmount:  upd.CreditedAmount,
			FinalCollateral: upd.FinalCollateral,
			Balance:         upd.Balance,
		}); err != nil {
			s.log.Warn("broadcast slip update", zap.String("betslip_id", upd.SlipID), zap.Error(err))
		}
	}
	if upd.Closed {
		slipsClosedTotal.Inc()
		if s.publ != nil {
			legCount := 0
			if slip, err := s.engine.GetBetSlip(upd.SlipID); err == nil {
				legCount = len(slip.LegIDs)
			}
			if err := s.publ.PublishBetSlipSettled(ctx, events.BetSlipSettled{
				BetSlipID:       upd.SlipID,
				FinalCollateral: upd.FinalCollateral,
				LegCount:        legCount,
			}); err != nil {
				s.log.Warn("publish betslip_settled", zap.String("betslip_id", upd.SlipID), zap.Error(err))
			}
		}
	}
}

func recordResponse(upd core.Update) dto.RecordResponse {
	resp := dto.RecordResponse{
		BetSlipID:      upd.SlipID,
		Status:         string(upd.Status),
		CreditedAmount: upd.CreditedAmount,
	}
	if upd.Closed {
		resp.FinalCollateral = upd.FinalCollateral
	}
	return resp
}

// fail converte a taxonomia de erros do core em status HTTP.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrUnauthorizedCaller):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrUnknownSlip):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrDuplicateLeg),
		errors.Is(err, core.ErrAlreadyResolved),
		errors.Is(err, core.ErrOverSell),
		errors.Is(err, core.ErrInsufficientBalance),
		errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrSplitMismatch):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrEmptySplit),
		errors.Is(err, core.ErrInvalidMarketplace),
		errors.Is(err, core.ErrUnknownStrategy),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidLeg):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("ledger operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
