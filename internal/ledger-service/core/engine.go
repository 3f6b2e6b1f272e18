package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Journal persiste cada operação aplicada (trilha de auditoria).
// Falha no journal aborta a operação antes do estado ser publicado,
// então memória e auditoria nunca divergem.
type Journal interface {
	Append(ctx context.Context, ch Changeset) error
}

// Changeset é o efeito completo de uma operação: o estado novo dos
// registros tocados e os lançamentos de saldo gerados. Registros não
// presentes não foram alterados.
type Changeset struct {
	Slip    *BetSlip
	Leg     *ProxiedBet
	Entries []BalanceEntry
}

// Update resume o resultado de uma mutação para os publicadores
// (Kafka/Redis) e para as métricas.
type Update struct {
	SlipID          string
	OwnerIdentity   string
	Status          SlipStatus
	StatusChanged   bool
	Closed          bool
	FinalCollateral int64
	CreditedAmount  int64 // creditado por esta operação
	Balance         int64 // saldo do dono após a operação
}

// Engine é a máquina de estados determinística do ledger: stores
// chaveados por id (slips, pernas, saldos) atrás de um único mutex.
// Nenhuma operação observa estado parcial de outra; o contrato com o
// executor é idempotência (DuplicateLeg/AlreadyResolved em retries),
// não controle de concorrência.
type Engine struct {
	mu       sync.Mutex
	resolver MarketplaceResolver
	executor string // token opaco do executor autorizado
	journal  Journal

	slips      map[string]*BetSlip
	legs       map[string]*ProxiedBet
	balances   map[string]int64
	ownerSlips map[string][]string // ids em ordem de criação

	now   func() time.Time
	newID func() string
}

func NewEngine(resolver MarketplaceResolver, executorToken string, journal Journal) *Engine {
	return &Engine{
		resolver:   resolver,
		executor:   executorToken,
		journal:    journal,
		slips:      make(map[string]*BetSlip),
		legs:       make(map[string]*ProxiedBet),
		balances:   make(map[string]int64),
		ownerSlips: make(map[string][]string),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// PlaceBet abre um betslip: reserva len(specs) pernas e o colateral
// total. Não cria ProxiedBets; essas chegam depois, conforme o
// executor confirma cada fill.
func (e *Engine) PlaceBet(ctx context.Context, owner string, strategy Strategy, private bool, totalCollateral int64, specs []LegSpec) (BetSlip, error) {
	if owner == "" {
		return BetSlip{}, ErrUnauthorizedCaller
	}
	if totalCollateral <= 0 {
		return BetSlip{}, ErrInvalidAmount
	}
	if len(specs) == 0 {
		return BetSlip{}, ErrEmptySplit
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, sp := range specs {
		if _, ok := e.resolver.Resolve(sp.MarketplaceID); !ok {
			return BetSlip{}, fmt.Errorf("%w: %s", ErrInvalidMarketplace, sp.MarketplaceID)
		}
	}

	slip := &BetSlip{
		ID:                    e.newID(),
		OwnerIdentity:         owner,
		Strategy:              strategy,
		Private:               private,
		TotalCollateralAmount: totalCollateral,
		ExpectedLegs:          len(specs),
		LegSpecs:              append([]LegSpec(nil), specs...),
		Status:                SlipCreated,
		CreatedAt:             e.now(),
	}

	if err := e.commit(ctx, Changeset{Slip: slip}); err != nil {
		return BetSlip{}, err
	}
	e.ownerSlips[owner] = append(e.ownerSlips[owner], slip.ID)

	return *e.cloneSlip(slip), nil
}

// UpdateSlipStatus é a sinalização do executor de que assumiu o slip
// (created -> processing). Toda outra mudança de status é derivada
// pelo reconciler e não pode ser forçada por fora.
func (e *Engine) UpdateSlipStatus(ctx context.Context, caller, slipID string, status SlipStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.executor {
		return ErrUnauthorizedCaller
	}
	slip, ok := e.slips[slipID]
	if !ok {
		return ErrUnknownSlip
	}
	if status != SlipProcessing {
		return ErrInvalidTransition
	}
	if slip.Status == SlipProcessing {
		return nil // retry do executor, já aplicado
	}
	if slip.Status != SlipCreated {
		return ErrInvalidTransition
	}

	s := e.cloneSlip(slip)
	s.Status = SlipProcessing
	return e.commit(ctx, Changeset{Slip: s})
}

// RecordProxiedBetPlaced insere uma perna confirmada (ou falhada na
// colocação) pelo executor. Valida a reserva feita no placeBet: o par
// marketplace/market tem que constar nos LegSpecs ainda não usados, e
// a soma dos colaterais originais não pode estourar o total do slip —
// a última perna precisa fechar a soma exata.
func (e *Engine) RecordProxiedBetPlaced(ctx context.Context, caller, slipID string, leg ProxiedBet) (Update, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.executor {
		return Update{}, ErrUnauthorizedCaller
	}
	slip, ok := e.slips[slipID]
	if !ok {
		return Update{}, ErrUnknownSlip
	}
	if leg.ID == "" {
		return Update{}, ErrInvalidLeg
	}
	if _, dup := e.legs[leg.ID]; dup {
		return Update{}, ErrDuplicateLeg
	}
	if _, ok := e.resolver.Resolve(leg.MarketplaceID); !ok {
		return Update{}, fmt.Errorf("%w: %s", ErrInvalidMarketplace, leg.MarketplaceID)
	}

	switch leg.Outcome {
	case "", OutcomeNone:
		leg.Outcome = OutcomePlaced
	case OutcomePlaced, OutcomeFailed:
	default:
		return Update{}, ErrInvalidTransition
	}
	if leg.OriginalCollateralAmount <= 0 {
		return Update{}, ErrInvalidAmount
	}
	if leg.SharesSold != 0 || leg.SharesBought < 0 || leg.MinimumShares < 0 {
		return Update{}, ErrInvalidLeg
	}
	if leg.Outcome == OutcomePlaced {
		// ainda não resolvida: valor final e motivo de falha zerados
		leg.FinalCollateralAmount = 0
		leg.FailureReason = ""
	} else if leg.FinalCollateralAmount < 0 {
		return Update{}, ErrInvalidAmount
	}

	if len(slip.LegIDs) >= slip.ExpectedLegs {
		return Update{}, ErrSplitMismatch
	}

	// reserva multiset: (marketplace, market) precisa constar nos specs
	avail := 0
	for _, sp := range slip.LegSpecs {
		if sp.MarketplaceID == leg.MarketplaceID && sp.MarketID == leg.MarketID {
			avail++
		}
	}
	used := 0
	sum := leg.OriginalCollateralAmount
	for _, lid := range slip.LegIDs {
		prior := e.legs[lid]
		sum += prior.OriginalCollateralAmount
		if prior.MarketplaceID == leg.MarketplaceID && prior.MarketID == leg.MarketID {
			used++
		}
	}
	if used >= avail {
		return Update{}, ErrSplitMismatch
	}
	if sum > slip.TotalCollateralAmount {
		return Update{}, ErrSplitMismatch
	}
	if len(slip.LegIDs)+1 == slip.ExpectedLegs && sum != slip.TotalCollateralAmount {
		return Update{}, ErrSplitMismatch
	}

	leg.BetSlipID = slipID
	leg.Credited = false
	if leg.BlockTimestamp == 0 {
		leg.BlockTimestamp = e.now().Unix()
	}

	s := e.cloneSlip(slip)
	s.LegIDs = append(s.LegIDs, leg.ID)

	upd, entries := e.reconcile(s, &leg)
	if err := e.commit(ctx, Changeset{Slip: s, Leg: &leg, Entries: entries}); err != nil {
		return Update{}, err
	}
	return upd, nil
}

// RecordProxiedBetClosed leva uma perna não-terminal a um outcome
// terminal e grava o valor final reportado pelo executor. O reason só
// é persistido em fechamentos failed.
func (e *Engine) RecordProxiedBetClosed(ctx context.Context, caller, legID string, outcome Outcome, finalAmount int64, reason string) (Update, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.executor {
		return Update{}, ErrUnauthorizedCaller
	}
	stored, ok := e.legs[legID]
	if !ok {
		return Update{}, ErrNotFound
	}
	if stored.Outcome.Terminal() {
		return Update{}, ErrAlreadyResolved
	}
	switch outcome {
	case OutcomeWon, OutcomeLost, OutcomeDraw, OutcomeVoid, OutcomeFailed:
	default:
		return Update{}, ErrInvalidTransition
	}
	if !stored.Outcome.CanTransition(outcome) {
		return Update{}, ErrInvalidTransition
	}
	if finalAmount < 0 {
		return Update{}, ErrInvalidAmount
	}

	l := *stored
	l.Outcome = outcome
	l.FinalCollateralAmount = finalAmount
	if outcome == OutcomeFailed {
		l.FailureReason = reason
	}

	s := e.cloneSlip(e.slips[stored.BetSlipID])
	upd, entries := e.reconcile(s, &l)
	if err := e.commit(ctx, Changeset{Slip: s, Leg: &l, Entries: entries}); err != nil {
		return Update{}, err
	}
	return upd, nil
}

// RecordProxiedBetSold registra uma venda parcial ou total de shares.
// A rejeição de over-sell é atômica: nada muda na perna. Quando a
// venda zera a posição, a perna vira sold (terminal) e o reconciler
// credita o acumulado.
func (e *Engine) RecordProxiedBetSold(ctx context.Context, caller, legID string, shares, saleValue int64) (Update, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.executor {
		return Update{}, ErrUnauthorizedCaller
	}
	stored, ok := e.legs[legID]
	if !ok {
		return Update{}, ErrNotFound
	}
	if stored.Outcome.Terminal() {
		return Update{}, ErrAlreadyResolved
	}
	if stored.Outcome != OutcomePlaced {
		return Update{}, ErrInvalidTransition
	}
	if shares <= 0 || saleValue < 0 {
		return Update{}, ErrInvalidAmount
	}
	if stored.SharesSold+shares > stored.SharesBought {
		return Update{}, ErrOverSell
	}

	l := *stored
	l.SharesSold += shares
	l.FinalCollateralAmount += saleValue
	if l.SharesSold == l.SharesBought {
		l.Outcome = OutcomeSold
	}

	s := e.cloneSlip(e.slips[stored.BetSlipID])
	upd, entries := e.reconcile(s, &l)
	if err := e.commit(ctx, Changeset{Slip: s, Leg: &l, Entries: entries}); err != nil {
		return Update{}, err
	}
	return upd, nil
}

// Withdraw debita saldo sacável do dono.
func (e *Engine) Withdraw(ctx context.Context, owner string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	bal := e.balances[owner]
	if bal < amount {
		return 0, ErrInsufficientBalance
	}
	entry := BalanceEntry{
		ID:        e.newID(),
		Identity:  owner,
		Kind:      "DEBIT",
		Amount:    amount,
		Reference: "withdraw",
		Balance:   bal - amount,
		CreatedAt: e.now(),
	}
	if err := e.commit(ctx, Changeset{Entries: []BalanceEntry{entry}}); err != nil {
		return 0, err
	}
	return entry.Balance, nil
}

// GetBetSlip retorna uma cópia do slip.
func (e *Engine) GetBetSlip(id string) (BetSlip, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	slip, ok := e.slips[id]
	if !ok {
		return BetSlip{}, ErrNotFound
	}
	return *e.cloneSlip(slip), nil
}

// GetProxiedBet retorna uma cópia da perna.
func (e *Engine) GetProxiedBet(id string) (ProxiedBet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	leg, ok := e.legs[id]
	if !ok {
		return ProxiedBet{}, ErrNotFound
	}
	return *leg, nil
}

// ActiveBetslips lista, em ordem de criação, os slips do dono que
// ainda não fecharam.
func (e *Engine) ActiveBetslips(owner string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, id := range e.ownerSlips[owner] {
		if e.slips[id].Status != SlipClosed {
			out = append(out, id)
		}
	}
	return out
}

// ClosedBetslips lista, em ordem de criação, os slips fechados do dono.
func (e *Engine) ClosedBetslips(owner string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, id := range e.ownerSlips[owner] {
		if e.slips[id].Status == SlipClosed {
			out = append(out, id)
		}
	}
	return out
}

// Balance retorna o saldo sacável da identidade.
func (e *Engine) Balance(owner string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[owner]
}

// Restore recarrega o estado a partir do journal (boot do serviço).
// legs precisa vir na ordem de gravação; LegIDs é reconstruído dela.
func (e *Engine) Restore(slips []BetSlip, legs []ProxiedBet, balances map[string]int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.slips = make(map[string]*BetSlip, len(slips))
	e.legs = make(map[string]*ProxiedBet, len(legs))
	e.balances = make(map[string]int64, len(balances))
	e.ownerSlips = make(map[string][]string)

	for i := range slips {
		s := slips[i]
		s.LegIDs = nil
		e.slips[s.ID] = &s
	}
	for i := range legs {
		l := legs[i]
		e.legs[l.ID] = &l
		if slip, ok := e.slips[l.BetSlipID]; ok {
			slip.LegIDs = append(slip.LegIDs, l.ID)
		}
	}

	ordered := make([]*BetSlip, 0, len(slips))
	for _, s := range e.slips {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})
	for _, s := range ordered {
		e.ownerSlips[s.OwnerIdentity] = append(e.ownerSlips[s.OwnerIdentity], s.ID)
	}

	for id, bal := range balances {
		e.balances[id] = bal
	}
}

// commit grava o changeset no journal e só então publica o estado novo
// nos stores. Se o journal falhar, nada muda.
func (e *Engine) commit(ctx context.Context, ch Changeset) error {
	if e.journal != nil {
		if err := e.journal.Append(ctx, ch); err != nil {
			return fmt.Errorf("journal append: %w", err)
		}
	}
	if ch.Slip != nil {
		e.slips[ch.Slip.ID] = ch.Slip
	}
	if ch.Leg != nil {
		e.legs[ch.Leg.ID] = ch.Leg
	}
	for _, en := range ch.Entries {
		e.balances[en.Identity] = en.Balance
	}
	return nil
}

func (e *Engine) cloneSlip(s *BetSlip) *BetSlip {
	c := *s
	c.LegSpecs = append([]LegSpec(nil), s.LegSpecs...)
	c.LegIDs = append([]string(nil), s.LegIDs...)
	return &c
}
