package dto

import (
	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/usecase"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// AccountsResponse lists accounts with the collection version to pass back
// on a bulk replacement.
type AccountsResponse struct {
	Users   []*domain.Account `json:"users"`
	Version int64             `json:"version"`
}

// TransactionsResponse lists transactions newest first.
type TransactionsResponse struct {
	Transactions []*domain.Transaction `json:"transactions"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

// OrdersResponse lists resting orders.
type OrdersResponse struct {
	Orders []*domain.Order `json:"orders"`
}

// OrderBookResponse is aggregated book depth.
type OrderBookResponse struct {
	Bids []domain.BookLevel `json:"bids"`
	Asks []domain.BookLevel `json:"asks"`
}

// PriceHistoryResponse lists trade prices oldest first.
type PriceHistoryResponse struct {
	History []domain.PricePoint `json:"history"`
}

// BetsResponse lists bets newest first.
type BetsResponse struct {
	Bets []*BetResponse `json:"bets"`
}

// BetsFromDomain converts bets to responses.
func BetsFromDomain(bets []*domain.Bet) []*BetResponse {
	out := make([]*BetResponse, len(bets))
	for i, b := range bets {
		out[i] = BetFromDomain(b)
	}
	return out
}

// DaresResponse lists dares newest first.
type DaresResponse struct {
	Dares []*domain.Dare `json:"dares"`
}

// BetResponse is a bet with its derived totals.
type BetResponse struct {
	*domain.Bet
	Pool       int64            `json:"pool"`
	OptionPool map[string]int64 `json:"optionPool"`
}

// BetFromDomain converts a bet to a response.
func BetFromDomain(b *domain.Bet) *BetResponse {
	pools := make(map[string]int64, len(b.Options))
	for _, o := range b.Options {
		pools[o.ID] = b.PoolFor(o.ID)
	}
	return &BetResponse{Bet: b, Pool: b.Pot(), OptionPool: pools}
}

// ConsistencyResponse wraps the ledger consistency report.
type ConsistencyResponse struct {
	usecase.ConsistencyReport
	Treasury usecase.Treasury `json:"treasury"`
}
