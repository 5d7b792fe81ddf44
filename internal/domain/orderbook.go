package domain

import "sort"

// PriceLevel is a price with its FIFO queue of resting orders.
type PriceLevel struct {
	Price  int64
	Orders []*Order
}

// TotalQty sums the unfilled amount resting at the level.
func (l *PriceLevel) TotalQty() int64 {
	var t int64
	for _, o := range l.Orders {
		t += o.Remaining()
	}
	return t
}

// BookLevel is one aggregated row of a depth snapshot.
type BookLevel struct {
	Price  int64 `json:"price"`
	Amount int64 `json:"amount"`
	Orders int   `json:"orders"`
}

// OrderBook is the in-memory resting book for BeanCoin. Bids are kept
// best (highest) first, asks best (lowest) first; each level is FIFO by Seq.
type OrderBook struct {
	bids      map[int64]*PriceLevel
	asks      map[int64]*PriceLevel
	bidPrices []int64
	askPrices []int64
	index     map[string]*Order
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids:  make(map[int64]*PriceLevel),
		asks:  make(map[int64]*PriceLevel),
		index: make(map[string]*Order),
	}
}

// ── Queries ──────────────────────────────────────────

func (b *OrderBook) Size() int { return len(b.index) }

// Get returns the resting order with id, if any.
func (b *OrderBook) Get(id string) (*Order, bool) {
	o, ok := b.index[id]
	return o, ok
}

// BestBid returns the highest bid price.
func (b *OrderBook) BestBid() (int64, bool) {
	if len(b.bidPrices) == 0 {
		return 0, false
	}
	return b.bidPrices[0], true
}

// BestAsk returns the lowest ask price.
func (b *OrderBook) BestAsk() (int64, bool) {
	if len(b.askPrices) == 0 {
		return 0, false
	}
	return b.askPrices[0], true
}

// Best returns the first order in priority order on side, or nil.
func (b *OrderBook) Best(side OrderSide) *Order {
	levels, prices := b.side(side)
	if len(prices) == 0 {
		return nil
	}
	return levels[prices[0]].Orders[0]
}

// Orders returns resting orders of both sides in priority order, bids first.
func (b *OrderBook) Orders() []*Order {
	out := make([]*Order, 0, len(b.index))
	for _, p := range b.bidPrices {
		out = append(out, b.bids[p].Orders...)
	}
	for _, p := range b.askPrices {
		out = append(out, b.asks[p].Orders...)
	}
	return out
}

// Snapshot aggregates the top depth levels of each side. depth <= 0 means all.
func (b *OrderBook) Snapshot(depth int) (bids, asks []BookLevel) {
	bids = snapshotSide(b.bids, b.bidPrices, depth)
	asks = snapshotSide(b.asks, b.askPrices, depth)
	return
}

func snapshotSide(levels map[int64]*PriceLevel, prices []int64, depth int) []BookLevel {
	out := []BookLevel{}
	for i, p := range prices {
		if depth > 0 && i >= depth {
			break
		}
		l := levels[p]
		out = append(out, BookLevel{Price: p, Amount: l.TotalQty(), Orders: len(l.Orders)})
	}
	return out
}

// ── Add / Remove ─────────────────────────────────────

// Add rests o at the tail of its price level. Duplicate ids are ignored.
func (b *OrderBook) Add(o *Order) {
	if _, exists := b.index[o.ID]; exists {
		return
	}
	b.index[o.ID] = o
	if o.Side == SideBuy {
		b.addToSide(b.bids, &b.bidPrices, o, false)
	} else {
		b.addToSide(b.asks, &b.askPrices, o, true)
	}
}

// Remove takes the order out of the book and returns it, or nil if absent.
func (b *OrderBook) Remove(id string) *Order {
	o, ok := b.index[id]
	if !ok {
		return nil
	}
	delete(b.index, id)
	if o.Side == SideBuy {
		b.removeFromSide(b.bids, &b.bidPrices, o)
	} else {
		b.removeFromSide(b.asks, &b.askPrices, o)
	}
	return o
}

// ApplyFill adds qty to the order's filled counter and drops it from the
// book once fully filled. Returns the remaining amount.
func (b *OrderBook) ApplyFill(id string, qty int64) int64 {
	o := b.index[id]
	if o == nil {
		return 0
	}
	o.Filled += qty
	if o.Remaining() <= 0 {
		b.Remove(id)
		return 0
	}
	return o.Remaining()
}

// ── Internals ────────────────────────────────────────

func (b *OrderBook) side(s OrderSide) (map[int64]*PriceLevel, []int64) {
	if s == SideBuy {
		return b.bids, b.bidPrices
	}
	return b.asks, b.askPrices
}

func (b *OrderBook) addToSide(m map[int64]*PriceLevel, prices *[]int64, o *Order, asc bool) {
	level, ok := m[o.Price]
	if !ok {
		level = &PriceLevel{Price: o.Price}
		m[o.Price] = level
		*prices = append(*prices, o.Price)
		sort.Slice(*prices, func(i, j int) bool {
			if asc {
				return (*prices)[i] < (*prices)[j]
			}
			return (*prices)[i] > (*prices)[j]
		})
	}
	// Restored orders may arrive out of sequence.
	i := sort.Search(len(level.Orders), func(i int) bool { return level.Orders[i].Seq > o.Seq })
	level.Orders = append(level.Orders, nil)
	copy(level.Orders[i+1:], level.Orders[i:])
	level.Orders[i] = o
}

func (b *OrderBook) removeFromSide(m map[int64]*PriceLevel, prices *[]int64, o *Order) {
	level, ok := m[o.Price]
	if !ok {
		return
	}
	for i, e := range level.Orders {
		if e.ID == o.ID {
			level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
			break
		}
	}
	if len(level.Orders) == 0 {
		delete(m, o.Price)
		for i, p := range *prices {
			if p == o.Price {
				*prices = append((*prices)[:i], (*prices)[i+1:]...)
				break
			}
		}
	}
}
