package events

// LegSpec identifica o mercado alvo de uma perna do betslip.
type LegSpec struct {
	MarketplaceID string `json:"marketplace_id"`
	MarketID      string `json:"market_id"`
}

// Evento publicado no tópico "betslip_created" quando um placeBet é aceito.
// Não carrega a identidade do dono: o executor opera apenas com o betSlipId.
type BetSlipCreated struct {
	BetSlipID             string    `json:"betslip_id"`
	Strategy              string    `json:"strategy"` // "maximize_shares" | "maximize_privacy"
	TotalCollateralAmount int64     `json:"total_collateral_amount"` // micro-USDC
	Legs                  []LegSpec `json:"legs"`
	TsUnixMs              int64     `json:"ts_unix_ms"`
}
