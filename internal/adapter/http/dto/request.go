package dto

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/usecase"
)

// OpenAccountRequest represents a request to open an account.
type OpenAccountRequest struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Section  string `json:"section,omitempty"`
	IsAdmin  bool   `json:"isAdmin,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *OpenAccountRequest) ToUseCaseInput() usecase.OpenAccountInput {
	return usecase.OpenAccountInput{
		ID:       r.ID,
		Username: r.Username,
		Section:  r.Section,
		IsAdmin:  r.IsAdmin,
	}
}

// AccountItem is one account in a bulk replacement.
type AccountItem struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Section   string          `json:"section,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	BeanCoins decimal.Decimal `json:"beanCoinBalance"`
	IsAdmin   bool            `json:"isAdmin,omitempty"`
}

// ReplaceAccountsRequest replaces the whole account set.
type ReplaceAccountsRequest struct {
	Users           []AccountItem `json:"users"`
	ExpectedVersion int64         `json:"expectedVersion,omitempty"`
}

// ToDomain converts the request to accounts. Balances may be zero.
func (r *ReplaceAccountsRequest) ToDomain() ([]*domain.Account, error) {
	out := make([]*domain.Account, 0, len(r.Users))
	for i, u := range r.Users {
		beans, err := balanceFromDecimal(u.Balance)
		if err != nil {
			return nil, fmt.Errorf("users[%d].balance: %w", i, err)
		}
		coins, err := balanceFromDecimal(u.BeanCoins)
		if err != nil {
			return nil, fmt.Errorf("users[%d].beanCoinBalance: %w", i, err)
		}
		out = append(out, &domain.Account{
			ID:        u.ID,
			Username:  u.Username,
			Section:   u.Section,
			Beans:     beans,
			BeanCoins: coins,
			IsAdmin:   u.IsAdmin,
		})
	}
	return out, nil
}

// TransferRequest represents a request to move funds between users.
type TransferRequest struct {
	FromUserID  string          `json:"fromUserId"`
	ToUserID    string          `json:"toUserId"`
	Token       domain.Token    `json:"token,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *TransferRequest) ToUseCaseInput() (usecase.TransferInput, error) {
	amount, err := domain.AmountFromDecimal(r.Amount)
	if err != nil {
		return usecase.TransferInput{}, err
	}
	return usecase.TransferInput{
		FromAccountID: r.FromUserID,
		ToAccountID:   r.ToUserID,
		Token:         normalizeToken(r.Token),
		Amount:        amount,
		Memo:          r.Description,
		Category:      r.Category,
	}, nil
}

// MintRequest represents a request to issue new units to an account.
type MintRequest struct {
	Token       domain.Token    `json:"token,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *MintRequest) ToUseCaseInput(accountID string) (usecase.MintInput, error) {
	amount, err := domain.AmountFromDecimal(r.Amount)
	if err != nil {
		return usecase.MintInput{}, err
	}
	return usecase.MintInput{
		AccountID: accountID,
		Token:     normalizeToken(r.Token),
		Amount:    amount,
		Memo:      r.Description,
	}, nil
}

// SubmitOrderRequest represents a BeanCoin order. Price is ignored for
// market orders.
type SubmitOrderRequest struct {
	UserID string           `json:"userId"`
	Side   domain.OrderSide `json:"side"`
	Type   domain.OrderKind `json:"type"`
	Amount decimal.Decimal  `json:"amount"`
	Price  *decimal.Decimal `json:"price,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *SubmitOrderRequest) ToUseCaseInput() (usecase.SubmitOrderInput, error) {
	amount, err := domain.AmountFromDecimal(r.Amount)
	if err != nil {
		return usecase.SubmitOrderInput{}, err
	}
	input := usecase.SubmitOrderInput{
		OwnerID: r.UserID,
		Side:    domain.OrderSide(strings.ToUpper(string(r.Side))),
		Kind:    domain.OrderKind(strings.ToUpper(string(r.Type))),
		Amount:  amount,
	}
	if input.Kind == "" {
		input.Kind = domain.KindLimit
	}
	if input.Kind == domain.KindLimit {
		if r.Price == nil {
			return usecase.SubmitOrderInput{}, fmt.Errorf("%w: limit orders need a price", domain.ErrInvalidAmount)
		}
		if input.Price, err = domain.AmountFromDecimal(*r.Price); err != nil {
			return usecase.SubmitOrderInput{}, err
		}
	}
	return input, nil
}

// CreateBetRequest represents a request to open a bet.
type CreateBetRequest struct {
	CreatorID   string   `json:"creatorId"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Options     []string `json:"options"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateBetRequest) ToUseCaseInput() usecase.CreateBetInput {
	return usecase.CreateBetInput{
		CreatorID:   r.CreatorID,
		Title:       r.Title,
		Description: r.Description,
		Options:     r.Options,
	}
}

// PlaceWagerRequest stakes on a bet option.
type PlaceWagerRequest struct {
	UserID   string          `json:"userId"`
	OptionID string          `json:"optionId"`
	Amount   decimal.Decimal `json:"amount"`
}

// ToUseCaseInput converts to use case input.
func (r *PlaceWagerRequest) ToUseCaseInput(betID string) (usecase.PlaceWagerInput, error) {
	amount, err := domain.AmountFromDecimal(r.Amount)
	if err != nil {
		return usecase.PlaceWagerInput{}, err
	}
	return usecase.PlaceWagerInput{
		BettorID: r.UserID,
		BetID:    betID,
		OptionID: r.OptionID,
		Amount:   amount,
	}, nil
}

// ResolveBetRequest names the winning option.
type ResolveBetRequest struct {
	OptionID string `json:"optionId"`
}

// CreateDareRequest represents a request to open a dare.
type CreateDareRequest struct {
	CreatorID   string `json:"creatorId"`
	TargetID    string `json:"targetId"`
	Description string `json:"description"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateDareRequest) ToUseCaseInput() usecase.CreateDareInput {
	return usecase.CreateDareInput{
		CreatorID:   r.CreatorID,
		TargetID:    r.TargetID,
		Description: r.Description,
	}
}

// PledgeRequest adds to a dare bounty.
type PledgeRequest struct {
	UserID string          `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
}

// ParseAmount returns the pledge in whole Beans.
func (r *PledgeRequest) ParseAmount() (int64, error) {
	return domain.AmountFromDecimal(r.Amount)
}

// ResolveDareRequest completes a dare with optional proof.
type ResolveDareRequest struct {
	Proof string `json:"proof,omitempty"`
}

func normalizeToken(t domain.Token) domain.Token {
	return domain.Token(strings.ToUpper(strings.TrimSpace(string(t))))
}

func balanceFromDecimal(d decimal.Decimal) (int64, error) {
	if d.IsZero() {
		return 0, nil
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: balance cannot be negative", domain.ErrInvalidAccounts)
	}
	return domain.AmountFromDecimal(d)
}
