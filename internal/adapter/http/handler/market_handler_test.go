package handler

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/beanbank/internal/adapter/http/dto"
	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/usecase"
)

func limitOrder(user string, side domain.OrderSide, amount, price int64) dto.SubmitOrderRequest {
	p := decimal.NewFromInt(price)
	return dto.SubmitOrderRequest{UserID: user, Side: side, Type: domain.KindLimit, Amount: decimal.NewFromInt(amount), Price: &p}
}

func TestMarketHandler_SubmitMatchAndBook(t *testing.T) {
	h := NewMarketHandler(newTestBank(t))

	rec := serve(t, http.MethodPost, "/orders", "/orders", limitOrder("u2", domain.SideSell, 10, 5), h.Submit)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ask usecase.SubmitResult
	decodeBody(t, rec, &ask)
	assert.Equal(t, domain.OrderStatusOpen, ask.Status)

	rec = serve(t, http.MethodGet, "/market/book", "/market/book", nil, h.Book)
	var book dto.OrderBookResponse
	decodeBody(t, rec, &book)
	require.Len(t, book.Asks, 1)
	assert.Equal(t, int64(5), book.Asks[0].Price)
	assert.Equal(t, int64(10), book.Asks[0].Amount)

	rec = serve(t, http.MethodPost, "/orders", "/orders", limitOrder("u1", domain.SideBuy, 4, 6), h.Submit)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var bid usecase.SubmitResult
	decodeBody(t, rec, &bid)
	assert.Equal(t, domain.OrderStatusFilled, bid.Status)
	require.Len(t, bid.Trades, 1)
	assert.Equal(t, int64(5), bid.Trades[0].Price)

	rec = serve(t, http.MethodGet, "/market/history", "/market/history", nil, h.History)
	var hist dto.PriceHistoryResponse
	decodeBody(t, rec, &hist)
	require.Len(t, hist.History, 1)

	rec = serve(t, http.MethodGet, "/orders", "/orders?user=u2", nil, h.List)
	var orders dto.OrdersResponse
	decodeBody(t, rec, &orders)
	require.Len(t, orders.Orders, 1)
	assert.Equal(t, int64(4), orders.Orders[0].Filled)
}

func TestMarketHandler_Cancel(t *testing.T) {
	h := NewMarketHandler(newTestBank(t))

	rec := serve(t, http.MethodPost, "/orders", "/orders", limitOrder("u1", domain.SideBuy, 3, 10), h.Submit)
	require.Equal(t, http.StatusCreated, rec.Code)
	var res usecase.SubmitResult
	decodeBody(t, rec, &res)

	rec = serve(t, http.MethodDelete, "/orders/{id}", "/orders/"+res.OrderID, nil, h.Cancel)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cancelled usecase.CancelResult
	decodeBody(t, rec, &cancelled)
	assert.Equal(t, int64(30), cancelled.Refund)

	rec = serve(t, http.MethodDelete, "/orders/{id}", "/orders/"+res.OrderID, nil, h.Cancel)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UnknownOrder", errorKind(t, rec))
}

func TestMarketHandler_SubmitRejections(t *testing.T) {
	h := NewMarketHandler(newTestBank(t))

	noPrice := dto.SubmitOrderRequest{UserID: "u1", Side: domain.SideBuy, Type: domain.KindLimit, Amount: decimal.NewFromInt(1)}
	rec := serve(t, http.MethodPost, "/orders", "/orders", noPrice, h.Submit)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, http.MethodPost, "/orders", "/orders", limitOrder("u3", domain.SideBuy, 10, 11), h.Submit)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	badSide := limitOrder("u1", "HOLD", 1, 1)
	rec = serve(t, http.MethodPost, "/orders", "/orders", badSide, h.Submit)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidOrder", errorKind(t, rec))
}
