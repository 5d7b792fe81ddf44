package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/beanbank/internal/adapter/http/dto"
	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/usecase"
)

// BetService defines the behavior needed by BetHandler.
type BetService interface {
	CreateBet(ctx context.Context, input usecase.CreateBetInput) (*domain.Bet, error)
	PlaceWager(ctx context.Context, input usecase.PlaceWagerInput) (*domain.Bet, error)
	ResolveBet(ctx context.Context, betID, optionID string) (*usecase.ResolveBetResult, error)
	Bet(id string) (*domain.Bet, error)
	Bets() []*domain.Bet
}

// BetHandler handles wager pool requests.
type BetHandler struct {
	bets BetService
}

// NewBetHandler creates a new BetHandler.
func NewBetHandler(bets BetService) *BetHandler {
	return &BetHandler{bets: bets}
}

// Create opens a bet.
// POST /api/v1/bets
func (h *BetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	bet, err := h.bets.CreateBet(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.BetFromDomain(bet))
}

// List lists bets newest first.
// GET /api/v1/bets
func (h *BetHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.BetsResponse{Bets: dto.BetsFromDomain(h.bets.Bets())})
}

// Get returns one bet.
// GET /api/v1/bets/{id}
func (h *BetHandler) Get(w http.ResponseWriter, r *http.Request) {
	bet, err := h.bets.Bet(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BetFromDomain(bet))
}

// Wager stakes on an option.
// POST /api/v1/bets/{id}/wagers
func (h *BetHandler) Wager(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceWagerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	input, err := req.ToUseCaseInput(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	bet, err := h.bets.PlaceWager(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.BetFromDomain(bet))
}

// Resolve pays out a bet.
// POST /api/v1/bets/{id}/resolve
func (h *BetHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req dto.ResolveBetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.bets.ResolveBet(r.Context(), chi.URLParam(r, "id"), req.OptionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
