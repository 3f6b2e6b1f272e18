package core

import "errors"

// Falhas locais e síncronas de uma única operação. Nenhuma deixa
// escrita parcial: ou a operação aplica tudo, ou nada.
var (
	ErrInvalidMarketplace  = errors.New("invalid marketplace")
	ErrEmptySplit          = errors.New("empty split")
	ErrDuplicateLeg        = errors.New("duplicate leg")
	ErrUnknownSlip         = errors.New("unknown betslip")
	ErrUnauthorizedCaller  = errors.New("unauthorized caller")
	ErrAlreadyResolved     = errors.New("leg already resolved")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrOverSell            = errors.New("cannot sell more shares than bought")
	ErrInsufficientBalance = errors.New("insufficient balance")

	// Complementares à taxonomia do contrato original
	ErrNotFound        = errors.New("not found")
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidLeg      = errors.New("invalid leg record")
	ErrSplitMismatch   = errors.New("split does not match reserved legs")
)
