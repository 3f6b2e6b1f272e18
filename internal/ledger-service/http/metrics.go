package http

import "github.com/prometheus/client_golang/prometheus"

// Métricas Prometheus do ledger (expostas no servidor de /metrics)
var (
	betsPlacedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_bets_placed_total",
		Help: "Betslips aceitos pelo placeBet",
	})
	legsRecordedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_legs_recorded_total",
		Help: "ProxiedBets gravadas pelo executor",
	})
	legsResolvedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_legs_resolved_total",
		Help: "Pernas que atingiram outcome terminal, por outcome",
	}, []string{"outcome"})
	slipsClosedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_betslips_closed_total",
		Help: "Betslips fechados (todas as pernas terminais)",
	})
	creditedMicrosTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_credited_micros_total",
		Help: "Total creditado aos donos em micro-USDC",
	})
	withdrawalsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_withdrawals_total",
		Help: "Saques efetivados",
	})
)

func init() {
	prometheus.MustRegister(
		betsPlacedTotal,
		legsRecordedTotal,
		legsResolvedTotal,
		slipsClosedTotal,
		creditedMicrosTotal,
		withdrawalsTotal,
	)
}
