package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/beanbank/internal/adapter/http/dto"
	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/usecase"
)

// DareService defines the behavior needed by DareHandler.
type DareService interface {
	CreateDare(ctx context.Context, input usecase.CreateDareInput) (*domain.Dare, error)
	Pledge(ctx context.Context, dareID, ownerID string, amount int64) (*domain.Dare, error)
	ResolveDare(ctx context.Context, dareID, proof string) (*domain.Dare, error)
	Dare(id string) (*domain.Dare, error)
	Dares() []*domain.Dare
}

// DareHandler handles dare escrow requests.
type DareHandler struct {
	dares DareService
}

// NewDareHandler creates a new DareHandler.
func NewDareHandler(dares DareService) *DareHandler {
	return &DareHandler{dares: dares}
}

// Create opens a dare.
// POST /api/v1/dares
func (h *DareHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateDareRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dare, err := h.dares.CreateDare(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dare)
}

// List lists dares newest first.
// GET /api/v1/dares
func (h *DareHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.DaresResponse{Dares: h.dares.Dares()})
}

// Get returns one dare.
// GET /api/v1/dares/{id}
func (h *DareHandler) Get(w http.ResponseWriter, r *http.Request) {
	dare, err := h.dares.Dare(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dare)
}

// Pledge adds to the bounty.
// POST /api/v1/dares/{id}/pledges
func (h *DareHandler) Pledge(w http.ResponseWriter, r *http.Request) {
	var req dto.PledgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := req.ParseAmount()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dare, err := h.dares.Pledge(r.Context(), chi.URLParam(r, "id"), req.UserID, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dare)
}

// Resolve releases the bounty to the target.
// POST /api/v1/dares/{id}/resolve
func (h *DareHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req dto.ResolveDareRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	dare, err := h.dares.ResolveDare(r.Context(), chi.URLParam(r, "id"), req.Proof)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dare)
}
