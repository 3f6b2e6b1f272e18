package dto

type PlaceBetResponse struct {
	BetSlipID string `json:"betslip_id"`
	Status    string `json:"status"` // "created"
}

// RecordResponse devolve ao executor o efeito agregado da gravação.
type RecordResponse struct {
	BetSlipID       string `json:"betslip_id"`
	Status          string `json:"status"`
	CreditedAmount  int64  `json:"credited_amount"`
	FinalCollateral int64  `json:"final_collateral,omitempty"`
}

type BetslipListResponse struct {
	BetSlipIDs []string `json:"betslip_ids"`
}

type BalanceResponse struct {
	Balance int64 `json:"balance"` // micro-USDC
}

type StatusResponse struct {
	Status string `json:"status"`
}
