package domain

import "errors"

var (
	// Ledger errors
	ErrInvalidAmount     = errors.New("amount must be a positive integer")
	ErrUnknownAccount    = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSameAccount       = errors.New("cannot transfer to same account")
	ErrInvalidAccounts   = errors.New("invalid account set")
	ErrUnbalancedPosting = errors.New("posting legs do not balance")

	// Settlement errors
	ErrUnknownOrder  = errors.New("order not found")
	ErrInvalidOrder  = errors.New("invalid order")
	ErrUnknownBet    = errors.New("bet not found")
	ErrUnknownOption = errors.New("bet option not found")
	ErrUnknownDare   = errors.New("dare not found")
	ErrInvalidBet    = errors.New("invalid bet")
	ErrInvalidDare   = errors.New("invalid dare")
	ErrInvalidState  = errors.New("invalid state for operation")

	// Store errors
	ErrConcurrencyConflict = errors.New("concurrent modification detected")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrUnknownAccount, "UnknownAccount"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrSameAccount, "SameAccount"},
	{ErrInvalidAccounts, "InvalidAccounts"},
	{ErrUnbalancedPosting, "UnbalancedPosting"},
	{ErrUnknownOrder, "UnknownOrder"},
	{ErrInvalidOrder, "InvalidOrder"},
	{ErrUnknownBet, "UnknownBet"},
	{ErrUnknownOption, "UnknownOption"},
	{ErrUnknownDare, "UnknownDare"},
	{ErrInvalidBet, "InvalidBet"},
	{ErrInvalidDare, "InvalidDare"},
	{ErrInvalidState, "InvalidState"},
	{ErrConcurrencyConflict, "ConcurrencyConflict"},
}

// ErrorKind returns the stable kind name of a domain error, or "Internal".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Internal"
}
