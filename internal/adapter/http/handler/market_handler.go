package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/beanbank/internal/adapter/http/dto"
	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/usecase"
)

// MarketService defines the behavior needed by MarketHandler.
type MarketService interface {
	SubmitOrder(ctx context.Context, input usecase.SubmitOrderInput) (*usecase.SubmitResult, error)
	CancelOrder(ctx context.Context, orderID string) (*usecase.CancelResult, error)
	Orders(ownerID string) []*domain.Order
	OrderBook(depth int) (bids, asks []domain.BookLevel)
	PriceHistory() []domain.PricePoint
}

// MarketHandler handles BeanCoin order requests.
type MarketHandler struct {
	market MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(market MarketService) *MarketHandler {
	return &MarketHandler{market: market}
}

// Submit places an order.
// POST /api/v1/orders
func (h *MarketHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	res, err := h.market.SubmitOrder(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// Cancel removes a resting order and refunds its escrow.
// DELETE /api/v1/orders/{id}
func (h *MarketHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	res, err := h.market.CancelOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// List lists resting orders, optionally filtered by ?user=.
// GET /api/v1/orders
func (h *MarketHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.OrdersResponse{Orders: h.market.Orders(r.URL.Query().Get("user"))})
}

// Book returns aggregated depth per price level.
// GET /api/v1/market/book
func (h *MarketHandler) Book(w http.ResponseWriter, r *http.Request) {
	bids, asks := h.market.OrderBook(parseIntQuery(r, "depth", 10))
	writeJSON(w, http.StatusOK, dto.OrderBookResponse{Bids: bids, Asks: asks})
}

// History returns recent trade prices.
// GET /api/v1/market/history
func (h *MarketHandler) History(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.PriceHistoryResponse{History: h.market.PriceHistory()})
}
