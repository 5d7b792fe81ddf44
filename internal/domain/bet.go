package domain

import (
	"fmt"
	"strings"
	"time"
)

type BetStatus string

const (
	BetStatusOpen     BetStatus = "OPEN"
	BetStatusResolved BetStatus = "RESOLVED"
)

// BetOption is one outcome a bettor may back.
type BetOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Wager is a stake on one option of a bet.
type Wager struct {
	OwnerID   string    `json:"userId"`
	OptionID  string    `json:"optionId"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"timestamp"`
}

// Bet is a pari-mutuel pool. Stakes are held by SYSTEM until resolution;
// Residual keeps the rounding dust that stays in escrow after payout.
type Bet struct {
	ID              string      `json:"id"`
	CreatorID       string      `json:"creatorId"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	Status          BetStatus   `json:"status"`
	Options         []BetOption `json:"options"`
	Wagers          []Wager     `json:"wagers"`
	WinningOptionID string      `json:"winningOptionId,omitempty"`
	Residual        int64       `json:"residual"`
	CreatedAt       time.Time   `json:"createdAt"`
	ResolvedAt      *time.Time  `json:"resolvedAt,omitempty"`
}

// NewBetOptions assigns ids opt_1..n to the option texts.
func NewBetOptions(texts []string) ([]BetOption, error) {
	if len(texts) < 2 {
		return nil, fmt.Errorf("%w: a bet needs at least two options", ErrInvalidBet)
	}
	opts := make([]BetOption, 0, len(texts))
	for i, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, fmt.Errorf("%w: option %d is empty", ErrInvalidBet, i+1)
		}
		opts = append(opts, BetOption{ID: fmt.Sprintf("opt_%d", i+1), Text: t})
	}
	return opts, nil
}

// Option returns the option with id.
func (b *Bet) Option(id string) (BetOption, bool) {
	for _, o := range b.Options {
		if o.ID == id {
			return o, true
		}
	}
	return BetOption{}, false
}

// Pot returns the total staked on the bet.
func (b *Bet) Pot() int64 {
	var total int64
	for _, w := range b.Wagers {
		total += w.Amount
	}
	return total
}

// PoolFor returns the total staked on option id.
func (b *Bet) PoolFor(optionID string) int64 {
	var total int64
	for _, w := range b.Wagers {
		if w.OptionID == optionID {
			total += w.Amount
		}
	}
	return total
}

// Payout is one winner's share of a resolved pot.
type Payout struct {
	OwnerID string `json:"userId"`
	Amount  int64  `json:"amount"`
}

// Payouts computes floor(stake * pot / winnerPool) per winning wager in wager
// order and the residual left undistributed. Zero shares are omitted. With no
// winning stake the whole pot is residual.
func (b *Bet) Payouts(optionID string) ([]Payout, int64) {
	pot := b.Pot()
	pool := b.PoolFor(optionID)
	if pool == 0 {
		return nil, pot
	}

	var (
		payouts []Payout
		paid    int64
	)
	for _, w := range b.Wagers {
		if w.OptionID != optionID {
			continue
		}
		share := mulDiv(w.Amount, pot, pool)
		if share <= 0 {
			continue
		}
		payouts = append(payouts, Payout{OwnerID: w.OwnerID, Amount: share})
		paid += share
	}
	return payouts, pot - paid
}

// Clone returns a deep copy of the bet.
func (b *Bet) Clone() *Bet {
	c := *b
	c.Options = append([]BetOption(nil), b.Options...)
	c.Wagers = append([]Wager(nil), b.Wagers...)
	if b.ResolvedAt != nil {
		t := *b.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}
