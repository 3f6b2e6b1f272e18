package core

// reconcile roda com o lock, depois de toda mutação de perna, sobre as
// cópias ainda não publicadas (slip e changed). Deriva o status do slip
// e credita o valor final de uma perna recém-terminal.
//
// O pagamento é por perna, não por slip: o dono recebe o valor da perna
// no momento em que ela resolve, sem esperar as irmãs. O slip só fecha
// quando todas as pernas reservadas foram gravadas e são terminais; aí
// FinalCollateral consolida a soma dos valores finais.
func (e *Engine) reconcile(slip *BetSlip, changed *ProxiedBet) (Update, []BalanceEntry) {
	prev := slip.Status

	legOf := func(id string) *ProxiedBet {
		if changed != nil && id == changed.ID {
			return changed
		}
		return e.legs[id]
	}

	recorded := len(slip.LegIDs)
	terminal := 0
	var final int64
	for _, id := range slip.LegIDs {
		l := legOf(id)
		if l.Outcome.Terminal() {
			terminal++
		}
		final += l.FinalCollateralAmount
	}

	switch {
	case recorded > 0 && recorded == slip.ExpectedLegs && terminal == recorded:
		slip.Status = SlipClosed
		slip.FinalCollateral = final
	case terminal > 0:
		slip.Status = SlipPartiallyClosed
	case recorded > 0:
		slip.Status = SlipPlaced
	}

	// crédito único por perna: o marcador Credited blinda contra
	// reconciliações repetidas (replay de evento, retry do executor)
	var entries []BalanceEntry
	var credited int64
	balance := e.balances[slip.OwnerIdentity]
	if changed != nil && changed.Outcome.Terminal() && !changed.Credited {
		changed.Credited = true
		credited = changed.FinalCollateralAmount
		if credited > 0 {
			balance += credited
			entries = append(entries, BalanceEntry{
				ID:        e.newID(),
				Identity:  slip.OwnerIdentity,
				Kind:      "CREDIT",
				Amount:    credited,
				Reference: changed.ID,
				Balance:   balance,
				CreatedAt: e.now(),
			})
		}
	}

	return Update{
		SlipID:          slip.ID,
		OwnerIdentity:   slip.OwnerIdentity,
		Status:          slip.Status,
		StatusChanged:   slip.Status != prev,
		Closed:          slip.Status == SlipClosed,
		FinalCollateral: slip.FinalCollateral,
		CreditedAmount:  credited,
		Balance:         balance,
	}, entries
}
