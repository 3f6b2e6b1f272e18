package executor

import "math/rand"

const (
	StrategyMaximizeShares  = "maximize_shares"
	StrategyMaximizePrivacy = "maximize_privacy"
)

// SplitCollateral divide o colateral total entre n pernas. A soma das
// partes é sempre exatamente o total; o ledger rejeita qualquer split
// que não feche.
//
// maximize_shares: partes iguais, resto na última perna.
// maximize_privacy: partes irregulares (jitter de até 25% sobre a média)
// para dificultar correlação entre pernas do mesmo slip.
func SplitCollateral(strategy string, total int64, n int) []int64 {
	if n <= 0 || total < int64(n) {
		// não dá pra deixar todas as pernas com colateral positivo
		return nil
	}
	parts := make([]int64, n)
	base := total / int64(n)

	if strategy == StrategyMaximizePrivacy && n > 1 && base > 4 {
		var sum int64
		for i := 0; i < n-1; i++ {
			jitter := rand.Int63n(base/2+1) - base/4
			parts[i] = base + jitter
			sum += parts[i]
		}
		last := total - sum
		if last > 0 {
			parts[n-1] = last
			return parts
		}
		// jitter estourou o total; cai pro split uniforme
	}

	var sum int64
	for i := 0; i < n-1; i++ {
		parts[i] = base
		sum += base
	}
	parts[n-1] = total - sum
	return parts
}
