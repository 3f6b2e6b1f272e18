package core

import "time"

// Valores monetários são int64 em micro-USDC (6 casas decimais),
// o mesmo fixed-point do token de colateral original.

// Strategy define a política de divisão do betslip entre marketplaces.
// O ledger trata a estratégia como parâmetro opaco: quem decide o split
// é o executor, antes de reportar as pernas.
type Strategy string

const (
	StrategyMaximizeShares  Strategy = "maximize_shares"
	StrategyMaximizePrivacy Strategy = "maximize_privacy"
)

// ParseStrategy valida a estratégia recebida na API.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyMaximizeShares, StrategyMaximizePrivacy:
		return Strategy(s), nil
	}
	return "", ErrUnknownStrategy
}

// ChainFamily identifica a família de chain de um marketplace.
type ChainFamily string

const (
	ChainFamilyEVM ChainFamily = "evm"
	ChainFamilySVM ChainFamily = "svm"
)

// PricingStrategy identifica o mecanismo de precificação do venue.
type PricingStrategy string

const (
	PricingOrderbook PricingStrategy = "orderbook"
	PricingAMM       PricingStrategy = "amm"
	PricingLMSR      PricingStrategy = "lmsr"
)

// Marketplace é uma entrada imutável do diretório de venues.
// Nenhum betslip é dono de um marketplace; pernas referenciam por id.
type Marketplace struct {
	ID              string          `json:"id"`
	WarpRouterID    int64           `json:"warp_router_id"`
	ChainID         int64           `json:"chain_id"`
	ChainFamily     ChainFamily     `json:"chain_family"`
	Name            string          `json:"name"`
	ProxyAddress    string          `json:"proxy_address"`
	PricingStrategy PricingStrategy `json:"pricing_strategy"`
}

// MarketplaceResolver resolve um marketplaceId do diretório.
type MarketplaceResolver interface {
	Resolve(id string) (*Marketplace, bool)
}

// Outcome é o estado de resolução de uma ProxiedBet.
// A ordem segue o enum do registro original.
type Outcome string

const (
	OutcomeNone   Outcome = "none"
	OutcomePlaced Outcome = "placed"
	OutcomeFailed Outcome = "failed"
	OutcomeSold   Outcome = "sold"
	OutcomeWon    Outcome = "won"
	OutcomeLost   Outcome = "lost"
	OutcomeDraw   Outcome = "draw"
	OutcomeVoid   Outcome = "void"
)

// ParseOutcome valida um outcome recebido na API.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(s) {
	case OutcomeNone, OutcomePlaced, OutcomeFailed, OutcomeSold,
		OutcomeWon, OutcomeLost, OutcomeDraw, OutcomeVoid:
		return Outcome(s), nil
	}
	return "", ErrInvalidTransition
}

// Terminal indica se o outcome encerra a perna. Uma perna terminal
// nunca muda de estado novamente.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeFailed, OutcomeSold, OutcomeWon, OutcomeLost, OutcomeDraw, OutcomeVoid:
		return true
	}
	return false
}

// Tabela exaustiva de transições válidas. Qualquer transição fora
// da tabela é rejeitada com ErrInvalidTransition.
var outcomeTransitions = map[Outcome][]Outcome{
	OutcomeNone:   {OutcomePlaced, OutcomeFailed},
	OutcomePlaced: {OutcomeSold, OutcomeWon, OutcomeLost, OutcomeDraw, OutcomeVoid},
}

// CanTransition verifica a tabela de transições.
func (o Outcome) CanTransition(to Outcome) bool {
	for _, allowed := range outcomeTransitions[o] {
		if to == allowed {
			return true
		}
	}
	return false
}

// SlipStatus é o estado agregado de um betslip, derivado das pernas
// pelo reconciler (com exceção de created->processing, sinalizado
// pelo executor ao assumir o slip).
type SlipStatus string

const (
	SlipCreated         SlipStatus = "created"
	SlipProcessing      SlipStatus = "processing"
	SlipPlaced          SlipStatus = "placed"
	SlipPartiallyClosed SlipStatus = "partially_closed"
	SlipClosed          SlipStatus = "closed"
)

// LegSpec é a reserva de uma perna feita no placeBet: qual mercado,
// em qual marketplace. O executor confirma cada reserva depois, via
// recordProxiedBetPlaced.
type LegSpec struct {
	MarketplaceID string `json:"marketplace_id"`
	MarketID      string `json:"market_id"`
}

// BetSlip é a intenção de aposta de um usuário, dividida em até
// ExpectedLegs pernas independentes. O slip é dono das suas pernas
// (LegIDs, em ordem de gravação); pernas nunca migram entre slips.
type BetSlip struct {
	ID                    string     `json:"id"`
	OwnerIdentity         string     `json:"-"` // token opaco, nunca serializado para fora
	Strategy              Strategy   `json:"strategy"`
	Private               bool       `json:"private"`
	TotalCollateralAmount int64      `json:"total_collateral_amount"`
	FinalCollateral       int64      `json:"final_collateral"`
	ExpectedLegs          int        `json:"expected_legs"`
	LegSpecs              []LegSpec  `json:"leg_specs"`
	LegIDs                []string   `json:"leg_ids"`
	Status                SlipStatus `json:"status"`
	CreatedAt             time.Time  `json:"created_at"`
}

// ProxiedBet é o registro de uma perna: a fração do betslip executada
// em um marketplace específico. Back-reference pro slip via BetSlipID.
type ProxiedBet struct {
	ID                       string  `json:"id"`
	BetSlipID                string  `json:"betslip_id"`
	MarketplaceID            string  `json:"marketplace_id"`
	MarketID                 string  `json:"market_id"`
	OptionIndex              int     `json:"option_index"`
	MinimumShares            int64   `json:"minimum_shares"`
	BlockTimestamp           int64   `json:"block_timestamp"`
	OriginalCollateralAmount int64   `json:"original_collateral_amount"`
	FinalCollateralAmount    int64   `json:"final_collateral_amount"`
	SharesBought             int64   `json:"shares_bought"`
	SharesSold               int64   `json:"shares_sold"`
	Outcome                  Outcome `json:"outcome"`
	FailureReason            string  `json:"failure_reason,omitempty"`

	// Credited marca que o valor final da perna já foi creditado ao dono.
	// Garante crédito único mesmo com reconciliações repetidas.
	Credited bool `json:"credited"`
}

// BalanceEntry é um lançamento imutável no razão de saldos.
type BalanceEntry struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	Kind      string    `json:"kind"` // "CREDIT" | "DEBIT"
	Amount    int64     `json:"amount"`
	Reference string    `json:"reference"` // legID, "withdraw", ...
	Balance   int64     `json:"balance"`   // saldo após o lançamento
	CreatedAt time.Time `json:"created_at"`
}
