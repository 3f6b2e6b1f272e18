package events

import "time"

// Evento emitido pelo ledger-service quando todas as pernas de um betslip
// atingem outcome terminal e o slip é fechado.
type BetSlipSettled struct {
	BetSlipID       string    `json:"betslip_id"`
	FinalCollateral int64     `json:"final_collateral"` // micro-USDC
	LegCount        int       `json:"leg_count"`
	Ts              time.Time `json:"ts"`
}
