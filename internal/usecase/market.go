package usecase

import (
	"fmt"
	"time"

	"github.com/iho/beanbank/internal/domain"
)

// DefaultPriceHistoryLimit is how many price points the market keeps.
const DefaultPriceHistoryLimit = 100

// Result messages.
const (
	MsgOrderFilled          = "Order Filled"
	MsgOrderPlaced          = "Order Placed"
	MsgOrderPartiallyFilled = "Order Partially Filled"
	MsgOrderNotFilled       = "Order Not Filled"
)

// Market is the continuous double auction for BeanCoin priced in Beans.
// Resting orders keep their funds escrowed with SYSTEM. Not safe for
// concurrent use.
type Market struct {
	ledger       *Ledger
	book         *domain.OrderBook
	seq          int64
	history      []domain.PricePoint
	historyLimit int

	idGen IDGenerator
	clock Clock
}

// NewMarket creates a Market settling through ledger.
func NewMarket(ledger *Ledger, idGen IDGenerator, clock Clock, historyLimit int) *Market {
	if historyLimit <= 0 {
		historyLimit = DefaultPriceHistoryLimit
	}
	return &Market{
		ledger:       ledger,
		book:         domain.NewOrderBook(),
		historyLimit: historyLimit,
		idGen:        idGen,
		clock:        clock,
	}
}

// SubmitOrderInput represents input for submitting an order.
type SubmitOrderInput struct {
	OwnerID string
	Side    domain.OrderSide
	Kind    domain.OrderKind
	Amount  int64
	Price   int64
}

// SubmitResult describes what happened to a submitted order.
type SubmitResult struct {
	OrderID   string             `json:"orderId"`
	Status    domain.OrderStatus `json:"status"`
	Filled    int64              `json:"filled"`
	Remaining int64              `json:"remaining"`
	Message   string             `json:"message"`
	Trades    []domain.Trade     `json:"trades"`
	// Err is set when matching stopped on a failed settlement. Matches
	// before it stay committed.
	Err error `json:"-"`
}

// Submit validates, escrows and matches an order. Limit remainders rest in
// the book; market remainders are discarded.
func (m *Market) Submit(input SubmitOrderInput) (*SubmitResult, error) {
	o := &domain.Order{
		OwnerID: input.OwnerID,
		Side:    input.Side,
		Kind:    input.Kind,
		Amount:  input.Amount,
		Price:   input.Price,
	}
	if o.Kind == domain.KindMarket {
		o.Price = 0
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if !m.ledger.Exists(o.OwnerID) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAccount, o.OwnerID)
	}

	// 1. Lock funds
	if o.Kind == domain.KindLimit {
		if o.Amount > domain.MaxAmount || o.Price > domain.MaxAmount/o.Amount {
			return nil, fmt.Errorf("%w: order value exceeds maximum", domain.ErrInvalidAmount)
		}
		token, locked := o.Locked()
		memo := fmt.Sprintf("Order Escrow: %s %d BC @ %d", o.Side, o.Amount, o.Price)
		if _, err := m.ledger.Transfer(domain.UserRef(o.OwnerID), domain.System, token, locked, memo, domain.CategoryEscrow); err != nil {
			return nil, err
		}
	} else {
		spent := domain.TokenBean
		if o.Side == domain.SideSell {
			spent = domain.TokenBeanCoin
		}
		if m.ledger.Balance(o.OwnerID, spent) < 1 {
			return nil, fmt.Errorf("%w: no %s available for market order", domain.ErrInsufficientFunds, spent)
		}
	}

	m.seq++
	o.Seq = m.seq
	o.ID = m.idGen.Generate()
	o.CreatedAt = m.clock.Now()

	// 2. Match against the opposite side, best price then earliest order
	result := &SubmitResult{OrderID: o.ID, Trades: []domain.Trade{}}
	for o.Remaining() > 0 {
		maker := m.book.Best(o.Side.Opposite())
		if maker == nil || !crosses(o, maker.Price) {
			break
		}

		price := maker.Price
		qty := min(o.Remaining(), maker.Remaining())
		if o.Kind == domain.KindMarket {
			qty = min(qty, m.affordable(o, price))
			if qty == 0 {
				break
			}
		}

		tx, err := m.ledger.Post(tradePosting(o, maker, qty, price))
		if err != nil {
			result.Err = err
			break
		}

		o.Filled += qty
		m.book.ApplyFill(maker.ID, qty)
		m.recordPrice(price, tx.CreatedAt)
		result.Trades = append(result.Trades, domain.Trade{
			TransactionID: tx.ID,
			MakerOrderID:  maker.ID,
			MakerID:       maker.OwnerID,
			TakerID:       o.OwnerID,
			TakerSide:     o.Side,
			Price:         price,
			Amount:        qty,
			ExecutedAt:    tx.CreatedAt,
		})
	}

	// 3. Rest or discard the remainder
	result.Filled = o.Filled
	result.Remaining = o.Remaining()
	switch {
	case o.Remaining() == 0:
		result.Status = domain.OrderStatusFilled
		result.Message = MsgOrderFilled
	case o.Kind == domain.KindLimit:
		m.book.Add(o)
		result.Status = o.Status()
		result.Message = MsgOrderPlaced
		if o.Filled > 0 {
			result.Message = MsgOrderPartiallyFilled
		}
	case o.Filled > 0:
		result.Status = domain.OrderStatusPartiallyFilled
		result.Message = MsgOrderPartiallyFilled
	default:
		result.Status = domain.OrderStatusCancelled
		result.Message = MsgOrderNotFilled
	}

	return result, nil
}

// CancelResult describes a cancelled order and its refund.
type CancelResult struct {
	Order  *domain.Order      `json:"order"`
	Status domain.OrderStatus `json:"status"`
	Token  domain.Token       `json:"token"`
	Refund int64              `json:"refund"`
}

// Cancel removes a resting order and returns its unfilled escrow to the
// owner. Orders no longer in the book fail with ErrUnknownOrder.
func (m *Market) Cancel(orderID string) (*CancelResult, error) {
	o, ok := m.book.Get(orderID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownOrder, orderID)
	}

	token, refund := o.Locked()
	if refund > 0 {
		memo := fmt.Sprintf("Order Cancelled: %s %d BC @ %d", o.Side, o.Remaining(), o.Price)
		if _, err := m.ledger.Transfer(domain.System, domain.UserRef(o.OwnerID), token, refund, memo, domain.CategoryRefund); err != nil {
			return nil, err
		}
	}
	m.book.Remove(orderID)

	return &CancelResult{
		Order:  o.Clone(),
		Status: domain.OrderStatusCancelled,
		Token:  token,
		Refund: refund,
	}, nil
}

// Depth returns the aggregated book, best levels first.
func (m *Market) Depth(depth int) (bids, asks []domain.BookLevel) {
	return m.book.Snapshot(depth)
}

// Orders returns copies of resting orders, optionally for one owner.
func (m *Market) Orders(ownerID string) []*domain.Order {
	out := []*domain.Order{}
	for _, o := range m.book.Orders() {
		if ownerID != "" && o.OwnerID != ownerID {
			continue
		}
		out = append(out, o.Clone())
	}
	return out
}

// Order returns a copy of a resting order.
func (m *Market) Order(id string) (*domain.Order, error) {
	o, ok := m.book.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownOrder, id)
	}
	return o.Clone(), nil
}

// History returns the recorded trade prices, oldest first.
func (m *Market) History() []domain.PricePoint {
	return append([]domain.PricePoint{}, m.history...)
}

// LastPrice returns the most recent trade price.
func (m *Market) LastPrice() (int64, bool) {
	if len(m.history) == 0 {
		return 0, false
	}
	return m.history[len(m.history)-1].Price, true
}

// Escrowed returns what resting orders hold with SYSTEM per token.
func (m *Market) Escrowed() map[domain.Token]int64 {
	out := make(map[domain.Token]int64, 2)
	for _, o := range m.book.Orders() {
		token, locked := o.Locked()
		out[token] += locked
	}
	return out
}

// References reports whether accountID owns a resting order.
func (m *Market) References(accountID string) bool {
	for _, o := range m.book.Orders() {
		if o.OwnerID == accountID {
			return true
		}
	}
	return false
}

func (m *Market) recordPrice(price int64, at time.Time) {
	m.history = append(m.history, domain.PricePoint{Price: price, Timestamp: at})
	if over := len(m.history) - m.historyLimit; over > 0 {
		m.history = append(m.history[:0], m.history[over:]...)
	}
}

// affordable caps a market order's next match at what the taker can pay.
func (m *Market) affordable(o *domain.Order, price int64) int64 {
	if o.Side == domain.SideBuy {
		return m.ledger.Balance(o.OwnerID, domain.TokenBean) / price
	}
	return m.ledger.Balance(o.OwnerID, domain.TokenBeanCoin)
}

func crosses(taker *domain.Order, makerPrice int64) bool {
	if taker.Kind == domain.KindMarket {
		return true
	}
	if taker.Side == domain.SideBuy {
		return makerPrice <= taker.Price
	}
	return makerPrice >= taker.Price
}

// tradePosting builds the settlement of one match at the maker's price.
// Escrowed sides are paid out of SYSTEM; a market taker pays directly.
// A limit buyer locked at its own limit gets the price improvement back.
func tradePosting(taker, maker *domain.Order, qty, price int64) domain.Posting {
	cost := qty * price
	buyer, seller := taker.OwnerID, maker.OwnerID
	if taker.Side == domain.SideSell {
		buyer, seller = maker.OwnerID, taker.OwnerID
	}

	p := domain.Posting{
		From:     domain.UserRef(buyer),
		To:       domain.UserRef(seller),
		Token:    domain.TokenBean,
		Amount:   cost,
		Memo:     fmt.Sprintf("Market Trade: %d BC @ %d", qty, price),
		Category: domain.CategoryTrade,
	}

	// Bean leg: buyer pays seller
	switch {
	case taker.Side == domain.SideSell:
		// maker bid was escrowed at its own price, which is the trade price
		p.Legs = append(p.Legs,
			domain.Leg{Account: domain.System, Token: domain.TokenBean, Delta: -cost},
			domain.Leg{Account: domain.UserRef(seller), Token: domain.TokenBean, Delta: cost},
		)
	case taker.Kind == domain.KindLimit:
		locked := qty * taker.Price
		p.Legs = append(p.Legs,
			domain.Leg{Account: domain.System, Token: domain.TokenBean, Delta: -locked},
			domain.Leg{Account: domain.UserRef(seller), Token: domain.TokenBean, Delta: cost},
		)
		if refund := locked - cost; refund > 0 {
			p.Legs = append(p.Legs, domain.Leg{Account: domain.UserRef(buyer), Token: domain.TokenBean, Delta: refund})
		}
	default:
		p.Legs = append(p.Legs,
			domain.Leg{Account: domain.UserRef(buyer), Token: domain.TokenBean, Delta: -cost},
			domain.Leg{Account: domain.UserRef(seller), Token: domain.TokenBean, Delta: cost},
		)
	}

	// BeanCoin leg: seller delivers to buyer
	if taker.Side == domain.SideBuy || taker.Kind == domain.KindLimit {
		p.Legs = append(p.Legs,
			domain.Leg{Account: domain.System, Token: domain.TokenBeanCoin, Delta: -qty},
			domain.Leg{Account: domain.UserRef(buyer), Token: domain.TokenBeanCoin, Delta: qty},
		)
	} else {
		p.Legs = append(p.Legs,
			domain.Leg{Account: domain.UserRef(seller), Token: domain.TokenBeanCoin, Delta: -qty},
			domain.Leg{Account: domain.UserRef(buyer), Token: domain.TokenBeanCoin, Delta: qty},
		)
	}

	return p
}

// marketSnapshot is the persisted form of the market.
type marketSnapshot struct {
	Orders  []*domain.Order
	Seq     int64
	History []domain.PricePoint
}

func (m *Market) snapshot() marketSnapshot {
	return marketSnapshot{
		Orders:  m.Orders(""),
		Seq:     m.seq,
		History: m.History(),
	}
}

func (m *Market) restore(s marketSnapshot) {
	m.book = domain.NewOrderBook()
	for _, o := range s.Orders {
		m.book.Add(o.Clone())
		if o.Seq > s.Seq {
			s.Seq = o.Seq
		}
	}
	m.seq = s.Seq
	m.history = append([]domain.PricePoint(nil), s.History...)
	if over := len(m.history) - m.historyLimit; over > 0 {
		m.history = m.history[over:]
	}
}
