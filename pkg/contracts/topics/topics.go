package topics

const (
	// BetSlips
	BetSlipCreated = "betslip_created"
	BetSlipSettled = "betslip_settled"

	// DLQs
	BetSlipCreatedDLQ = "betslip_created_dlq"
)
