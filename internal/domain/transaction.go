package domain

import (
	"fmt"
	"time"
)

// Transaction categories.
const (
	CategoryTrade    = "Investment"
	CategoryWinnings = "Winnings"
	CategoryReward   = "Reward"
	CategoryEscrow   = "Escrow"
	CategoryRefund   = "Refund"
	CategoryMint     = "Mint"
)

// Transaction is the immutable record of one balance movement. Entries
// carry the per-account legs; they sum to zero per token.
type Transaction struct {
	ID        string     `json:"id"`
	From      AccountRef `json:"fromUserId"`
	To        AccountRef `json:"toUserId"`
	Token     Token      `json:"token"`
	Amount    int64      `json:"amount"`
	Memo      string     `json:"description"`
	Category  string     `json:"category,omitempty"`
	Entries   []Entry    `json:"entries,omitempty"`
	CreatedAt time.Time  `json:"timestamp"`
}

// Touches reports whether the transaction moved funds of accountID.
func (t *Transaction) Touches(accountID string) bool {
	if t.From.ID == accountID || t.To.ID == accountID {
		return true
	}
	for _, e := range t.Entries {
		if e.Account.ID == accountID {
			return true
		}
	}
	return false
}

// Entry is one signed leg of a transaction.
type Entry struct {
	Account         AccountRef `json:"account"`
	Token           Token      `json:"token"`
	Amount          int64      `json:"amount"`
	PreviousBalance int64      `json:"previousBalance"`
	CurrentBalance  int64      `json:"currentBalance"`
}

// Leg is a requested balance change inside a posting.
type Leg struct {
	Account AccountRef
	Token   Token
	Delta   int64
}

// Posting is an atomic multi-leg movement recorded as a single transaction.
// From, To, Token and Amount form the headline shown in the log.
type Posting struct {
	From     AccountRef
	To       AccountRef
	Token    Token
	Amount   int64
	Memo     string
	Category string
	Legs     []Leg
}

// TransferPosting builds the two-leg posting for a plain transfer.
func TransferPosting(from, to AccountRef, token Token, amount int64, memo, category string) Posting {
	return Posting{
		From:     from,
		To:       to,
		Token:    token,
		Amount:   amount,
		Memo:     memo,
		Category: category,
		Legs: []Leg{
			{Account: from, Token: token, Delta: -amount},
			{Account: to, Token: token, Delta: amount},
		},
	}
}

// Validate checks the structural rules of a posting: known tokens,
// non-zero legs and per-token balance including SYSTEM legs.
func (p *Posting) Validate() error {
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if len(p.Legs) == 0 {
		return fmt.Errorf("%w: no legs", ErrUnbalancedPosting)
	}

	sums := make(map[Token]int64, 2)
	for _, l := range p.Legs {
		if !l.Token.Valid() {
			return fmt.Errorf("%w: unknown token %q", ErrUnbalancedPosting, l.Token)
		}
		if l.Account.IsZero() {
			return fmt.Errorf("%w: empty account reference", ErrUnknownAccount)
		}
		sums[l.Token] += l.Delta
	}
	for token, sum := range sums {
		if sum != 0 {
			return fmt.Errorf("%w: %s legs sum to %d", ErrUnbalancedPosting, token, sum)
		}
	}
	return nil
}
