package dto

// LegSpecRequest identifica o mercado alvo de uma perna no placeBet.
type LegSpecRequest struct {
	MarketplaceID string `json:"marketplace_id"`
	MarketID      string `json:"market_id"`
}

type PlaceBetRequest struct {
	Strategy              string           `json:"strategy"` // "maximize_shares" | "maximize_privacy"
	TotalCollateralAmount int64            `json:"total_collateral_amount"` // micro-USDC
	Privacy               bool             `json:"privacy"`
	Legs                  []LegSpecRequest `json:"legs"`
}

// RecordLegRequest é o payload do executor confirmando uma perna.
// O id vem do executor (idempotência de retry: repetir dá DuplicateLeg).
type RecordLegRequest struct {
	ID                       string `json:"id"`
	MarketplaceID            string `json:"marketplace_id"`
	MarketID                 string `json:"market_id"`
	OptionIndex              int    `json:"option_index"`
	MinimumShares            int64  `json:"minimum_shares"`
	BlockTimestamp           int64  `json:"block_timestamp"`
	OriginalCollateralAmount int64  `json:"original_collateral_amount"`
	SharesBought             int64  `json:"shares_bought"`
	Outcome                  string `json:"outcome,omitempty"` // "placed" (default) | "failed"
	FinalCollateralAmount    int64  `json:"final_collateral_amount,omitempty"` // reembolso quando failed
	FailureReason            string `json:"failure_reason,omitempty"`
}

type RecordClosedRequest struct {
	Outcome       string `json:"outcome"` // won | lost | draw | void | failed
	FinalAmount   int64  `json:"final_amount"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type RecordSoldRequest struct {
	SharesSold int64 `json:"shares_sold"`
	SaleValue  int64 `json:"sale_value"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"` // apenas "processing"
}

type WithdrawRequest struct {
	Amount int64 `json:"amount"`
}
