package ws

// ClientMsg é a mensagem recebida do cliente WebSocket.
// Type: ping (assinatura é implícita: a conexão recebe só os updates
// da identidade autenticada no upgrade)
type ClientMsg struct {
	Type string `json:"type"`
}

// SlipEvent é o payload entregue ao cliente. Não carrega a identidade:
// o roteamento já aconteceu no hub.
type SlipEvent struct {
	BetSlipID       string `json:"betslip_id"`
	Status          string `json:"status"`
	CreditedAmount  int64  `json:"credited_amount,omitempty"`
	FinalCollateral int64  `json:"final_collateral,omitempty"`
	Balance         int64  `json:"balance"`
}
