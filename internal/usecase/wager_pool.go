package usecase

import (
	"fmt"
	"strings"

	"github.com/iho/beanbank/internal/domain"
)

// WagerPool runs pari-mutuel bets. Stakes are escrowed with SYSTEM until
// the bet resolves. Not safe for concurrent use.
type WagerPool struct {
	ledger *Ledger
	bets   []*domain.Bet
	index  map[string]*domain.Bet

	idGen IDGenerator
	clock Clock
}

// NewWagerPool creates a WagerPool settling through ledger.
func NewWagerPool(ledger *Ledger, idGen IDGenerator, clock Clock) *WagerPool {
	return &WagerPool{
		ledger: ledger,
		index:  make(map[string]*domain.Bet),
		idGen:  idGen,
		clock:  clock,
	}
}

// CreateBetInput represents input for creating a bet.
type CreateBetInput struct {
	CreatorID   string
	Title       string
	Description string
	Options     []string
}

// CreateBet opens a bet with options opt_1..n.
func (p *WagerPool) CreateBet(input CreateBetInput) (*domain.Bet, error) {
	if !p.ledger.Exists(input.CreatorID) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAccount, input.CreatorID)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidBet)
	}
	opts, err := domain.NewBetOptions(input.Options)
	if err != nil {
		return nil, err
	}

	bet := &domain.Bet{
		ID:          p.idGen.Generate(),
		CreatorID:   input.CreatorID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      domain.BetStatusOpen,
		Options:     opts,
		Wagers:      []domain.Wager{},
		CreatedAt:   p.clock.Now(),
	}
	p.bets = append(p.bets, bet)
	p.index[bet.ID] = bet

	return bet.Clone(), nil
}

// PlaceWagerInput represents input for placing a wager.
type PlaceWagerInput struct {
	BettorID string
	BetID    string
	OptionID string
	Amount   int64
}

// PlaceWager escrows the stake and records the wager.
func (p *WagerPool) PlaceWager(input PlaceWagerInput) (*domain.Bet, *domain.Transaction, error) {
	bet, ok := p.index[input.BetID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrUnknownBet, input.BetID)
	}
	if bet.Status != domain.BetStatusOpen {
		return nil, nil, fmt.Errorf("%w: bet %s is %s", domain.ErrInvalidState, bet.ID, bet.Status)
	}
	opt, ok := bet.Option(input.OptionID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrUnknownOption, input.OptionID)
	}
	if input.Amount <= 0 {
		return nil, nil, domain.ErrInvalidAmount
	}

	memo := fmt.Sprintf("Wager on %q - %s", bet.Title, opt.Text)
	tx, err := p.ledger.Transfer(domain.UserRef(input.BettorID), domain.System, domain.TokenBean, input.Amount, memo, domain.CategoryEscrow)
	if err != nil {
		return nil, nil, err
	}

	bet.Wagers = append(bet.Wagers, domain.Wager{
		OwnerID:   input.BettorID,
		OptionID:  opt.ID,
		Amount:    input.Amount,
		CreatedAt: tx.CreatedAt,
	})

	return bet.Clone(), tx, nil
}

// ResolveBetResult describes a resolution's payouts.
type ResolveBetResult struct {
	Bet          *domain.Bet           `json:"bet"`
	Payouts      []domain.Payout       `json:"payouts"`
	Transactions []*domain.Transaction `json:"transactions"`
	Residual     int64                 `json:"residual"`
}

// ResolveBet pays the pot to the winning option pro rata, rounding each
// share down. The undistributed residual stays escrowed and is recorded on
// the bet.
func (p *WagerPool) ResolveBet(betID, optionID string) (*ResolveBetResult, error) {
	bet, ok := p.index[betID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownBet, betID)
	}
	if bet.Status != domain.BetStatusOpen {
		return nil, fmt.Errorf("%w: bet %s is %s", domain.ErrInvalidState, bet.ID, bet.Status)
	}
	if _, ok := bet.Option(optionID); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownOption, optionID)
	}

	payouts, residual := bet.Payouts(optionID)
	for _, po := range payouts {
		if !p.ledger.Exists(po.OwnerID) {
			return nil, fmt.Errorf("%w: winner %s", domain.ErrUnknownAccount, po.OwnerID)
		}
	}

	result := &ResolveBetResult{Payouts: payouts, Residual: residual, Transactions: []*domain.Transaction{}}
	memo := fmt.Sprintf("Win: %q Payout", bet.Title)
	for _, po := range payouts {
		tx, err := p.ledger.Transfer(domain.System, domain.UserRef(po.OwnerID), domain.TokenBean, po.Amount, memo, domain.CategoryWinnings)
		if err != nil {
			// unreachable once winners are validated: SYSTEM is never short
			return nil, err
		}
		result.Transactions = append(result.Transactions, tx)
	}

	now := p.clock.Now()
	bet.Status = domain.BetStatusResolved
	bet.WinningOptionID = optionID
	bet.Residual = residual
	bet.ResolvedAt = &now

	result.Bet = bet.Clone()
	return result, nil
}

// Bet returns a copy of the bet with id.
func (p *WagerPool) Bet(id string) (*domain.Bet, error) {
	bet, ok := p.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownBet, id)
	}
	return bet.Clone(), nil
}

// Bets returns copies of all bets, newest first.
func (p *WagerPool) Bets() []*domain.Bet {
	out := make([]*domain.Bet, 0, len(p.bets))
	for i := len(p.bets) - 1; i >= 0; i-- {
		out = append(out, p.bets[i].Clone())
	}
	return out
}

// Escrowed returns open pots plus resolution residuals.
func (p *WagerPool) Escrowed() int64 {
	var total int64
	for _, b := range p.bets {
		if b.Status == domain.BetStatusOpen {
			total += b.Pot()
		}
		total += b.Residual
	}
	return total
}

// Residual returns the rounding dust kept from all resolved bets.
func (p *WagerPool) Residual() int64 {
	var total int64
	for _, b := range p.bets {
		total += b.Residual
	}
	return total
}

// References reports whether accountID holds a wager on an open bet.
func (p *WagerPool) References(accountID string) bool {
	for _, b := range p.bets {
		if b.Status != domain.BetStatusOpen {
			continue
		}
		for _, w := range b.Wagers {
			if w.OwnerID == accountID {
				return true
			}
		}
	}
	return false
}

func (p *WagerPool) snapshot() []*domain.Bet {
	out := make([]*domain.Bet, 0, len(p.bets))
	for _, b := range p.bets {
		out = append(out, b.Clone())
	}
	return out
}

func (p *WagerPool) restore(bets []*domain.Bet) {
	p.bets = p.bets[:0]
	p.index = make(map[string]*domain.Bet, len(bets))
	for _, b := range bets {
		c := b.Clone()
		p.bets = append(p.bets, c)
		p.index[c.ID] = c
	}
}
