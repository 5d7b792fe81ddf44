package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/beanbank/internal/adapter/http/dto"
	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/usecase"
)

// AccountService defines the behavior needed by AccountHandler.
type AccountService interface {
	OpenAccount(ctx context.Context, input usecase.OpenAccountInput) (*domain.Account, error)
	Account(id string) (*domain.Account, error)
	Accounts() ([]*domain.Account, int64)
	ReplaceAccounts(ctx context.Context, accounts []*domain.Account, expectedVersion int64) ([]*domain.Account, int64, error)
	Mint(ctx context.Context, input usecase.MintInput) (*domain.Transaction, error)
	Transactions(filter usecase.TransactionFilter) ([]*domain.Transaction, error)
	Leaderboard(limit int) []*domain.Account
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	accounts AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Create opens a new account.
// POST /api/v1/accounts
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.OpenAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.accounts.OpenAccount(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// Get retrieves an account by ID.
// GET /api/v1/accounts/{id}
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.Account(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// List lists all accounts with the collection version.
// GET /api/v1/accounts
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, version := h.accounts.Accounts()
	writeJSON(w, http.StatusOK, dto.AccountsResponse{Users: accounts, Version: version})
}

// Replace reconciles the account set with the request body.
// PUT /api/v1/accounts
func (h *AccountHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req dto.ReplaceAccountsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	accounts, err := req.ToDomain()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out, version, err := h.accounts.ReplaceAccounts(r.Context(), accounts, req.ExpectedVersion)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountsResponse{Users: out, Version: version})
}

// Mint issues new units to an account.
// POST /api/v1/accounts/{id}/mint
func (h *AccountHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req dto.MintRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	input, err := req.ToUseCaseInput(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	tx, err := h.accounts.Mint(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tx)
}

// Transactions lists the transactions touching one account.
// GET /api/v1/accounts/{id}/transactions
func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	limit, offset := domain.ValidatePagination(parseIntQuery(r, "limit", 50), parseIntQuery(r, "offset", 0))

	txs, err := h.accounts.Transactions(usecase.TransactionFilter{
		AccountID: chi.URLParam(r, "id"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionsResponse{Transactions: txs, Limit: limit, Offset: offset})
}

// Leaderboard ranks accounts by Bean balance.
// GET /api/v1/leaderboard
func (h *AccountHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 10)
	writeJSON(w, http.StatusOK, dto.AccountsResponse{Users: h.accounts.Leaderboard(limit)})
}
