package handler

import (
	"context"
	"net/http"

	"github.com/iho/beanbank/internal/adapter/http/dto"
	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/usecase"
)

// LedgerService defines the behavior needed by LedgerHandler.
type LedgerService interface {
	Transfer(ctx context.Context, input usecase.TransferInput) (*domain.Transaction, error)
	Transactions(filter usecase.TransactionFilter) ([]*domain.Transaction, error)
	CheckConsistency() usecase.ConsistencyReport
	Treasury() usecase.Treasury
	State(txLimit int) usecase.StateSnapshot
}

// LedgerHandler handles transfers, the transaction log and state snapshots.
type LedgerHandler struct {
	ledger LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// Transfer moves funds between two users.
// POST /api/v1/transfers
func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	tx, err := h.ledger.Transfer(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tx)
}

// Transactions lists the whole log newest first.
// GET /api/v1/transactions
func (h *LedgerHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	limit, offset := domain.ValidatePagination(parseIntQuery(r, "limit", 50), parseIntQuery(r, "offset", 0))

	txs, err := h.ledger.Transactions(usecase.TransactionFilter{
		AccountID: r.URL.Query().Get("account"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionsResponse{Transactions: txs, Limit: limit, Offset: offset})
}

// Consistency runs the conservation check. An inconsistent ledger answers
// 500 with the report.
// GET /api/v1/ledger/consistency
func (h *LedgerHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	report := h.ledger.CheckConsistency()
	status := http.StatusOK
	if !report.Consistent {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, dto.ConsistencyResponse{ConsistencyReport: report, Treasury: h.ledger.Treasury()})
}

// State returns a snapshot of the whole core.
// GET /api/v1/state
func (h *LedgerHandler) State(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "transactions", 100)
	if limit <= 0 {
		limit = 100
	}
	writeJSON(w, http.StatusOK, h.ledger.State(limit))
}
