package usecase

import (
	"fmt"
	"strings"

	"github.com/iho/beanbank/internal/domain"
)

// DareEscrow collects pledges into a bounty and releases it in full to the
// dare's target. Not safe for concurrent use.
type DareEscrow struct {
	ledger *Ledger
	dares  []*domain.Dare
	index  map[string]*domain.Dare

	idGen IDGenerator
	clock Clock
}

// NewDareEscrow creates a DareEscrow settling through ledger.
func NewDareEscrow(ledger *Ledger, idGen IDGenerator, clock Clock) *DareEscrow {
	return &DareEscrow{
		ledger: ledger,
		index:  make(map[string]*domain.Dare),
		idGen:  idGen,
		clock:  clock,
	}
}

// CreateDareInput represents input for creating a dare.
type CreateDareInput struct {
	CreatorID   string
	TargetID    string
	Description string
}

// CreateDare opens an ACTIVE dare with an empty bounty.
func (e *DareEscrow) CreateDare(input CreateDareInput) (*domain.Dare, error) {
	for _, id := range []string{input.CreatorID, input.TargetID} {
		if !e.ledger.Exists(id) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAccount, id)
		}
	}
	desc := strings.TrimSpace(input.Description)
	if desc == "" {
		return nil, fmt.Errorf("%w: description is required", domain.ErrInvalidDare)
	}

	dare := &domain.Dare{
		ID:          e.idGen.Generate(),
		CreatorID:   input.CreatorID,
		TargetID:    input.TargetID,
		Description: desc,
		Pledges:     []domain.Pledge{},
		Status:      domain.DareStatusActive,
		CreatedAt:   e.clock.Now(),
	}
	e.dares = append(e.dares, dare)
	e.index[dare.ID] = dare

	return dare.Clone(), nil
}

// Pledge escrows amount from owner and adds it to the bounty.
func (e *DareEscrow) Pledge(dareID, ownerID string, amount int64) (*domain.Dare, *domain.Transaction, error) {
	dare, ok := e.index[dareID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrUnknownDare, dareID)
	}
	if dare.Status != domain.DareStatusActive {
		return nil, nil, fmt.Errorf("%w: dare %s is %s", domain.ErrInvalidState, dare.ID, dare.Status)
	}
	if amount <= 0 {
		return nil, nil, domain.ErrInvalidAmount
	}

	memo := fmt.Sprintf("Pledge for Dare: %s", dare.Description)
	tx, err := e.ledger.Transfer(domain.UserRef(ownerID), domain.System, domain.TokenBean, amount, memo, domain.CategoryEscrow)
	if err != nil {
		return nil, nil, err
	}

	dare.Pledges = append(dare.Pledges, domain.Pledge{OwnerID: ownerID, Amount: amount, CreatedAt: tx.CreatedAt})
	dare.Bounty += amount

	return dare.Clone(), tx, nil
}

// ResolveDare pays the whole bounty to the target and completes the dare.
func (e *DareEscrow) ResolveDare(dareID, proof string) (*domain.Dare, *domain.Transaction, error) {
	dare, ok := e.index[dareID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrUnknownDare, dareID)
	}
	if dare.Status != domain.DareStatusActive {
		return nil, nil, fmt.Errorf("%w: dare %s is %s", domain.ErrInvalidState, dare.ID, dare.Status)
	}

	var tx *domain.Transaction
	if dare.Bounty > 0 {
		memo := fmt.Sprintf("Dare Bounty: %s", dare.Description)
		var err error
		tx, err = e.ledger.Transfer(domain.System, domain.UserRef(dare.TargetID), domain.TokenBean, dare.Bounty, memo, domain.CategoryReward)
		if err != nil {
			return nil, nil, err
		}
	}

	now := e.clock.Now()
	dare.Status = domain.DareStatusCompleted
	dare.CompletedAt = &now
	if proof = strings.TrimSpace(proof); proof != "" {
		dare.Proof = proof
	}

	return dare.Clone(), tx, nil
}

// Dare returns a copy of the dare with id.
func (e *DareEscrow) Dare(id string) (*domain.Dare, error) {
	dare, ok := e.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownDare, id)
	}
	return dare.Clone(), nil
}

// Dares returns copies of all dares, newest first.
func (e *DareEscrow) Dares() []*domain.Dare {
	out := make([]*domain.Dare, 0, len(e.dares))
	for i := len(e.dares) - 1; i >= 0; i-- {
		out = append(out, e.dares[i].Clone())
	}
	return out
}

// Escrowed returns the bounties of active dares.
func (e *DareEscrow) Escrowed() int64 {
	var total int64
	for _, d := range e.dares {
		if d.Status == domain.DareStatusActive {
			total += d.Bounty
		}
	}
	return total
}

// References reports whether accountID takes part in an active dare.
func (e *DareEscrow) References(accountID string) bool {
	for _, d := range e.dares {
		if d.Status == domain.DareStatusActive && d.References(accountID) {
			return true
		}
	}
	return false
}

func (e *DareEscrow) snapshot() []*domain.Dare {
	out := make([]*domain.Dare, 0, len(e.dares))
	for _, d := range e.dares {
		out = append(out, d.Clone())
	}
	return out
}

func (e *DareEscrow) restore(dares []*domain.Dare) {
	e.dares = e.dares[:0]
	e.index = make(map[string]*domain.Dare, len(dares))
	for _, d := range dares {
		c := d.Clone()
		e.dares = append(e.dares, c)
		e.index[c.ID] = c
	}
}
