package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/infrastructure/metrics"
)

// Bank is the single writer over all core state. Every command runs to
// completion under one lock, is committed to the store, and is then
// announced on the change feed. Queries take the read lock.
type Bank struct {
	mu sync.RWMutex

	ledger *Ledger
	market *Market
	pool   *WagerPool
	dares  *DareEscrow

	store     StateStore
	publisher ChangePublisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	versions map[domain.Collection]int64
	eventSeq int64
	seed     []*domain.Account
	clock    Clock
}

// BankConfig holds Bank options.
type BankConfig struct {
	Store             StateStore
	Publisher         ChangePublisher
	IDGen             IDGenerator
	Clock             Clock
	Metrics           *metrics.Metrics
	Logger            zerolog.Logger
	PriceHistoryLimit int
	// Seed is loaded into an empty store on first start.
	Seed []*domain.Account
}

// NewBank creates a Bank. Call Load before serving commands.
func NewBank(cfg BankConfig) *Bank {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}

	ledger := NewLedger(cfg.IDGen, cfg.Clock)
	return &Bank{
		ledger:    ledger,
		market:    NewMarket(ledger, cfg.IDGen, cfg.Clock, cfg.PriceHistoryLimit),
		pool:      NewWagerPool(ledger, cfg.IDGen, cfg.Clock),
		dares:     NewDareEscrow(ledger, cfg.IDGen, cfg.Clock),
		store:     cfg.Store,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With().Str("component", "bank").Logger(),
		versions:  make(map[domain.Collection]int64, len(domain.AllCollections)),
		seed:      cfg.Seed,
		clock:     cfg.Clock,
	}
}

var (
	accountCollections  = []domain.Collection{domain.CollectionAccounts, domain.CollectionMeta}
	transferCollections = []domain.Collection{domain.CollectionAccounts, domain.CollectionTransactions, domain.CollectionMeta}
	orderCollections    = []domain.Collection{domain.CollectionAccounts, domain.CollectionTransactions, domain.CollectionOrders, domain.CollectionMarketHistory, domain.CollectionMeta}
	betCollections      = []domain.Collection{domain.CollectionBets, domain.CollectionMeta}
	wagerCollections    = []domain.Collection{domain.CollectionAccounts, domain.CollectionTransactions, domain.CollectionBets, domain.CollectionMeta}
	dareCollections     = []domain.Collection{domain.CollectionDares, domain.CollectionMeta}
	pledgeCollections   = []domain.Collection{domain.CollectionAccounts, domain.CollectionTransactions, domain.CollectionDares, domain.CollectionMeta}
)

// bankMeta is the persisted form of counters that live outside the
// component collections.
type bankMeta struct {
	OrderSeq int64                  `json:"orderSeq"`
	EventSeq int64                  `json:"eventSeq"`
	Supply   map[domain.Token]int64 `json:"supply"`
}

// Load restores state from the store. An empty store is seeded and
// committed.
func (b *Bank) Load(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	empty, err := b.restore(ctx)
	if err != nil {
		return err
	}
	if !empty {
		b.observeBook()
		b.logger.Info().
			Int("accounts", len(b.ledger.order)).
			Int("transactions", b.ledger.TransactionCount()).
			Int("resting_orders", b.market.book.Size()).
			Msg("state restored")
		return nil
	}

	if len(b.seed) > 0 {
		if err := b.ledger.ReplaceAccounts(b.seed); err != nil {
			return fmt.Errorf("seed accounts: %w", err)
		}
	}
	if err := b.persist(ctx, domain.AllCollections); err != nil {
		return err
	}

	b.logger.Info().Int("accounts", len(b.seed)).Msg("store seeded")
	return nil
}

// restore replaces in-memory state with the store's. It reports whether
// the store held nothing.
func (b *Bank) restore(ctx context.Context) (bool, error) {
	if b.store == nil {
		return true, nil
	}

	payloads := make(map[domain.Collection][]byte, len(domain.AllCollections))
	versions := make(map[domain.Collection]int64, len(domain.AllCollections))
	empty := true
	for _, c := range domain.AllCollections {
		payload, version, err := b.store.Load(ctx, c)
		if err != nil {
			b.storeError("load")
			return false, fmt.Errorf("load %s: %w", c, err)
		}
		payloads[c] = payload
		versions[c] = version
		if version > 0 {
			empty = false
		}
	}
	if empty {
		b.reset()
		return true, nil
	}

	var (
		ls   ledgerSnapshot
		ms   marketSnapshot
		meta bankMeta
		bets []*domain.Bet
		dare []*domain.Dare
	)
	decoders := []struct {
		c domain.Collection
		v any
	}{
		{domain.CollectionAccounts, &ls.Accounts},
		{domain.CollectionTransactions, &ls.Transactions},
		{domain.CollectionOrders, &ms.Orders},
		{domain.CollectionMarketHistory, &ms.History},
		{domain.CollectionBets, &bets},
		{domain.CollectionDares, &dare},
		{domain.CollectionMeta, &meta},
	}
	for _, d := range decoders {
		if len(payloads[d.c]) == 0 {
			continue
		}
		if err := json.Unmarshal(payloads[d.c], d.v); err != nil {
			return false, fmt.Errorf("decode %s: %w", d.c, err)
		}
	}
	ls.Supply = meta.Supply
	ms.Seq = meta.OrderSeq

	b.ledger.restore(ls)
	b.market.restore(ms)
	b.pool.restore(bets)
	b.dares.restore(dare)
	b.eventSeq = meta.EventSeq
	b.versions = versions

	return false, nil
}

func (b *Bank) reset() {
	b.ledger.restore(ledgerSnapshot{})
	b.market.restore(marketSnapshot{})
	b.pool.restore(nil)
	b.dares.restore(nil)
	b.eventSeq = 0
	b.versions = make(map[domain.Collection]int64, len(domain.AllCollections))
}

func (b *Bank) encode(c domain.Collection) ([]byte, error) {
	switch c {
	case domain.CollectionAccounts:
		return json.Marshal(b.ledger.Accounts())
	case domain.CollectionTransactions:
		return json.Marshal(b.ledger.snapshot().Transactions)
	case domain.CollectionOrders:
		return json.Marshal(b.market.Orders(""))
	case domain.CollectionMarketHistory:
		return json.Marshal(b.market.History())
	case domain.CollectionBets:
		return json.Marshal(b.pool.snapshot())
	case domain.CollectionDares:
		return json.Marshal(b.dares.snapshot())
	case domain.CollectionMeta:
		return json.Marshal(bankMeta{
			OrderSeq: b.market.seq,
			EventSeq: b.eventSeq,
			Supply:   b.ledger.snapshot().Supply,
		})
	default:
		return nil, fmt.Errorf("unknown collection %q", c)
	}
}

// persist commits the dirty collections in one batch.
func (b *Bank) persist(ctx context.Context, dirty []domain.Collection) error {
	writes := make([]CollectionWrite, 0, len(dirty))
	for _, c := range dirty {
		payload, err := b.encode(c)
		if err != nil {
			return fmt.Errorf("encode %s: %w", c, err)
		}
		writes = append(writes, CollectionWrite{Collection: c, Payload: payload, ExpectedVersion: b.versions[c]})
	}

	if b.store == nil {
		for _, w := range writes {
			b.versions[w.Collection]++
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultCommitTimeout)
	defer cancel()

	start := time.Now()
	versions, err := b.store.CommitBatch(ctx, writes)
	if b.metrics != nil {
		b.metrics.StoreDuration.WithLabelValues("commit").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		b.storeError("commit")
		b.logger.Error().Err(err).Int("collections", len(writes)).Msg("store commit failed")
		return fmt.Errorf("commit state: %w", err)
	}

	for i, w := range writes {
		b.versions[w.Collection] = versions[i]
		if b.metrics != nil {
			b.metrics.StoreCommits.WithLabelValues(string(w.Collection)).Inc()
		}
	}
	return nil
}

// command is one state transition run by execute.
type command struct {
	name  string
	event string
	dirty []domain.Collection
	// run mutates state and returns the id of the touched aggregate.
	run func() (string, error)
	// committed, when set, runs under the lock after a successful commit.
	committed func()
}

// execute runs cmd under the write lock, commits its dirty collections and
// publishes one change event. A failed commit reloads the stored state so
// memory never runs ahead of the store.
func (b *Bank) execute(ctx context.Context, cmd command) error {
	start := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	aggregateID, err := cmd.run()
	if err == nil {
		b.eventSeq++
		if err = b.persist(ctx, cmd.dirty); err != nil {
			if _, rerr := b.restore(ctx); rerr != nil {
				b.logger.Error().Err(rerr).Msg("reload after failed commit")
			}
		}
	}
	b.observe(cmd.name, start, err)
	if err != nil {
		b.logger.Debug().Err(err).Str("command", cmd.name).Msg("command rejected")
		return err
	}

	b.logger.Debug().
		Str("command", cmd.name).
		Str("aggregate_id", aggregateID).
		Int64("seq", b.eventSeq).
		Msg("command committed")

	if cmd.committed != nil {
		cmd.committed()
	}
	if b.publisher != nil {
		b.publisher.Publish(domain.ChangeEvent{
			Seq:         b.eventSeq,
			Type:        cmd.event,
			AggregateID: aggregateID,
			Collections: cmd.dirty,
			At:          b.clock.Now(),
		})
	}
	return nil
}

func (b *Bank) observe(name string, start time.Time, err error) {
	if b.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		b.metrics.CommandErrors.WithLabelValues(name, domain.ErrorKind(err)).Inc()
	}
	b.metrics.Commands.WithLabelValues(name, outcome).Inc()
	b.metrics.CommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func (b *Bank) storeError(op string) {
	if b.metrics != nil {
		b.metrics.StoreErrors.WithLabelValues(op).Inc()
	}
}

// ── Ledger commands ──────────────────────────────────

// OpenAccount creates an account with zero balances.
func (b *Bank) OpenAccount(ctx context.Context, input OpenAccountInput) (*domain.Account, error) {
	var acc *domain.Account
	err := b.execute(ctx, command{
		name:  "open_account",
		event: domain.EventTypeAccountsChanged,
		dirty: accountCollections,
		run: func() (string, error) {
			var err error
			acc, err = b.ledger.OpenAccount(input)
			if err != nil {
				return "", err
			}
			return acc.ID, nil
		},
	})
	return acc, err
}

// TransferInput represents input for a user to user transfer.
type TransferInput struct {
	FromAccountID string
	ToAccountID   string
	Token         domain.Token
	Amount        int64
	Memo          string
	Category      string
}

// Transfer moves funds between two user accounts. SYSTEM is reachable only
// through Mint and the settlement commands.
func (b *Bank) Transfer(ctx context.Context, input TransferInput) (*domain.Transaction, error) {
	if input.FromAccountID == domain.SystemAccountID || input.ToAccountID == domain.SystemAccountID {
		return nil, fmt.Errorf("%w: SYSTEM cannot be a transfer party", domain.ErrInvalidAccounts)
	}
	if input.Token == "" {
		input.Token = domain.TokenBean
	}
	if !input.Token.Valid() {
		return nil, fmt.Errorf("%w: unknown token %q", domain.ErrInvalidAmount, input.Token)
	}
	memo := strings.TrimSpace(input.Memo)
	if memo == "" {
		memo = "Transfer"
	}
	if err := domain.ValidateMemo(memo); err != nil {
		return nil, err
	}

	var tx *domain.Transaction
	err := b.execute(ctx, command{
		name:  "transfer",
		event: domain.EventTypeTransferPosted,
		dirty: transferCollections,
		run: func() (string, error) {
			var err error
			tx, err = b.ledger.Transfer(domain.UserRef(input.FromAccountID), domain.UserRef(input.ToAccountID),
				input.Token, input.Amount, memo, input.Category)
			if err != nil {
				return "", err
			}
			return tx.ID, nil
		},
	})
	return tx, err
}

// MintInput represents input for issuing new units.
type MintInput struct {
	AccountID string
	Token     domain.Token
	Amount    int64
	Memo      string
}

// Mint issues new units from SYSTEM to an account.
func (b *Bank) Mint(ctx context.Context, input MintInput) (*domain.Transaction, error) {
	if input.Token == "" {
		input.Token = domain.TokenBean
	}
	if !input.Token.Valid() {
		return nil, fmt.Errorf("%w: unknown token %q", domain.ErrInvalidAmount, input.Token)
	}
	memo := strings.TrimSpace(input.Memo)
	if err := domain.ValidateMemo(memo); err != nil {
		return nil, err
	}

	var tx *domain.Transaction
	err := b.execute(ctx, command{
		name:  "mint",
		event: domain.EventTypeTransferPosted,
		dirty: transferCollections,
		run: func() (string, error) {
			var err error
			tx, err = b.ledger.Mint(input.AccountID, input.Token, input.Amount, memo)
			if err != nil {
				return "", err
			}
			return tx.ID, nil
		},
	})
	return tx, err
}

// ReplaceAccounts reconciles the account collection with a full
// replacement set. expectedVersion > 0 must match the stored version.
// Accounts still referenced by open settlement state cannot be removed.
func (b *Bank) ReplaceAccounts(ctx context.Context, accounts []*domain.Account, expectedVersion int64) ([]*domain.Account, int64, error) {
	var (
		out     []*domain.Account
		version int64
	)
	err := b.execute(ctx, command{
		name:  "replace_accounts",
		event: domain.EventTypeAccountsChanged,
		dirty: accountCollections,
		run: func() (string, error) {
			if expectedVersion > 0 && expectedVersion != b.versions[domain.CollectionAccounts] {
				return "", fmt.Errorf("%w: accounts at version %d, expected %d",
					domain.ErrConcurrencyConflict, b.versions[domain.CollectionAccounts], expectedVersion)
			}
			if err := domain.ValidateAccounts(accounts); err != nil {
				return "", err
			}

			keep := make(map[string]struct{}, len(accounts))
			for _, a := range accounts {
				keep[strings.TrimSpace(a.ID)] = struct{}{}
			}
			for _, id := range b.ledger.order {
				if _, ok := keep[id]; ok {
					continue
				}
				if b.market.References(id) || b.pool.References(id) || b.dares.References(id) {
					return "", fmt.Errorf("%w: account %s is referenced by open orders, bets or dares",
						domain.ErrInvalidAccounts, id)
				}
			}

			return "", b.ledger.ReplaceAccounts(accounts)
		},
		committed: func() {
			out = b.ledger.Accounts()
			version = b.versions[domain.CollectionAccounts]
		},
	})
	if err != nil {
		return nil, 0, err
	}
	return out, version, nil
}

// ── Market commands ──────────────────────────────────

// SubmitOrder escrows, matches and possibly rests an order.
func (b *Bank) SubmitOrder(ctx context.Context, input SubmitOrderInput) (*SubmitResult, error) {
	var res *SubmitResult
	err := b.execute(ctx, command{
		name:  "submit_order",
		event: domain.EventTypeOrderSubmitted,
		dirty: orderCollections,
		run: func() (string, error) {
			var err error
			res, err = b.market.Submit(input)
			if err != nil {
				return "", err
			}
			return res.OrderID, nil
		},
		committed: b.observeBook,
	})
	if err != nil {
		return nil, err
	}

	if res.Err != nil {
		b.logger.Warn().Err(res.Err).Str("order_id", res.OrderID).Msg("matching stopped on settlement failure")
	}
	b.observeTrades(res.Trades)
	return res, nil
}

func (b *Bank) observeTrades(trades []domain.Trade) {
	if b.metrics == nil || len(trades) == 0 {
		return
	}
	for _, t := range trades {
		b.metrics.Trades.Inc()
		b.metrics.TradedVolume.WithLabelValues(string(domain.TokenBeanCoin)).Add(float64(t.Amount))
		b.metrics.TradedVolume.WithLabelValues(string(domain.TokenBean)).Add(float64(t.Amount * t.Price))
	}
	b.metrics.LastPrice.Set(float64(trades[len(trades)-1].Price))
}

// observeBook publishes resting order counts. Callers hold the lock.
func (b *Bank) observeBook() {
	if b.metrics == nil {
		return
	}
	counts := map[domain.OrderSide]int{domain.SideBuy: 0, domain.SideSell: 0}
	for _, o := range b.market.book.Orders() {
		counts[o.Side]++
	}
	for side, n := range counts {
		b.metrics.RestingBook.WithLabelValues(string(side)).Set(float64(n))
	}
}

// CancelOrder removes a resting order and refunds its escrow.
func (b *Bank) CancelOrder(ctx context.Context, orderID string) (*CancelResult, error) {
	var res *CancelResult
	err := b.execute(ctx, command{
		name:  "cancel_order",
		event: domain.EventTypeOrderCancelled,
		dirty: orderCollections,
		run: func() (string, error) {
			var err error
			res, err = b.market.Cancel(orderID)
			if err != nil {
				return "", err
			}
			return orderID, nil
		},
		committed: b.observeBook,
	})
	return res, err
}

// ── Wager commands ───────────────────────────────────

// CreateBet opens a pari-mutuel bet.
func (b *Bank) CreateBet(ctx context.Context, input CreateBetInput) (*domain.Bet, error) {
	var bet *domain.Bet
	err := b.execute(ctx, command{
		name:  "create_bet",
		event: domain.EventTypeBetCreated,
		dirty: betCollections,
		run: func() (string, error) {
			var err error
			bet, err = b.pool.CreateBet(input)
			if err != nil {
				return "", err
			}
			return bet.ID, nil
		},
	})
	return bet, err
}

// PlaceWager stakes on one option of an open bet.
func (b *Bank) PlaceWager(ctx context.Context, input PlaceWagerInput) (*domain.Bet, error) {
	var bet *domain.Bet
	err := b.execute(ctx, command{
		name:  "place_wager",
		event: domain.EventTypeWagerPlaced,
		dirty: wagerCollections,
		run: func() (string, error) {
			var err error
			bet, _, err = b.pool.PlaceWager(input)
			if err != nil {
				return "", err
			}
			return bet.ID, nil
		},
	})
	return bet, err
}

// ResolveBet pays out an open bet.
func (b *Bank) ResolveBet(ctx context.Context, betID, optionID string) (*ResolveBetResult, error) {
	var res *ResolveBetResult
	err := b.execute(ctx, command{
		name:  "resolve_bet",
		event: domain.EventTypeBetResolved,
		dirty: wagerCollections,
		run: func() (string, error) {
			var err error
			res, err = b.pool.ResolveBet(betID, optionID)
			if err != nil {
				return "", err
			}
			return betID, nil
		},
	})
	if err != nil {
		return nil, err
	}

	if b.metrics != nil {
		for _, p := range res.Payouts {
			b.metrics.Payouts.WithLabelValues(domain.CategoryWinnings).Add(float64(p.Amount))
		}
		b.metrics.PayoutResidual.Add(float64(res.Residual))
	}
	return res, nil
}

// ── Dare commands ────────────────────────────────────

// CreateDare opens a dare.
func (b *Bank) CreateDare(ctx context.Context, input CreateDareInput) (*domain.Dare, error) {
	var dare *domain.Dare
	err := b.execute(ctx, command{
		name:  "create_dare",
		event: domain.EventTypeDareCreated,
		dirty: dareCollections,
		run: func() (string, error) {
			var err error
			dare, err = b.dares.CreateDare(input)
			if err != nil {
				return "", err
			}
			return dare.ID, nil
		},
	})
	return dare, err
}

// Pledge adds to a dare bounty.
func (b *Bank) Pledge(ctx context.Context, dareID, ownerID string, amount int64) (*domain.Dare, error) {
	var dare *domain.Dare
	err := b.execute(ctx, command{
		name:  "pledge",
		event: domain.EventTypePledgeAdded,
		dirty: pledgeCollections,
		run: func() (string, error) {
			var err error
			dare, _, err = b.dares.Pledge(dareID, ownerID, amount)
			if err != nil {
				return "", err
			}
			return dare.ID, nil
		},
	})
	return dare, err
}

// ResolveDare releases the bounty to the target.
func (b *Bank) ResolveDare(ctx context.Context, dareID, proof string) (*domain.Dare, error) {
	var dare *domain.Dare
	err := b.execute(ctx, command{
		name:  "resolve_dare",
		event: domain.EventTypeDareResolved,
		dirty: pledgeCollections,
		run: func() (string, error) {
			var err error
			dare, _, err = b.dares.ResolveDare(dareID, proof)
			if err != nil {
				return "", err
			}
			return dare.ID, nil
		},
	})
	if err == nil && b.metrics != nil {
		b.metrics.Payouts.WithLabelValues(domain.CategoryReward).Add(float64(dare.Bounty))
	}
	return dare, err
}

// ── Queries ──────────────────────────────────────────

// Account returns the account with id.
func (b *Bank) Account(id string) (*domain.Account, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ledger.Account(id)
}

// Accounts returns all accounts and the collection version.
func (b *Bank) Accounts() ([]*domain.Account, int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ledger.Accounts(), b.versions[domain.CollectionAccounts]
}

// Leaderboard ranks accounts by Bean balance.
func (b *Bank) Leaderboard(limit int) []*domain.Account {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ledger.Leaderboard(limit)
}

// Transactions lists the log newest first.
func (b *Bank) Transactions(filter TransactionFilter) ([]*domain.Transaction, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if filter.AccountID != "" && !b.ledger.Exists(filter.AccountID) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAccount, filter.AccountID)
	}
	return b.ledger.Transactions(filter), nil
}

// OrderBook returns aggregated depth.
func (b *Bank) OrderBook(depth int) (bids, asks []domain.BookLevel) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.market.Depth(depth)
}

// Orders returns resting orders, optionally for one owner.
func (b *Bank) Orders(ownerID string) []*domain.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.market.Orders(ownerID)
}

// PriceHistory returns the recorded trade prices, oldest first.
func (b *Bank) PriceHistory() []domain.PricePoint {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.market.History()
}

// Bet returns one bet.
func (b *Bank) Bet(id string) (*domain.Bet, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pool.Bet(id)
}

// Bets returns all bets, newest first.
func (b *Bank) Bets() []*domain.Bet {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pool.Bets()
}

// Dare returns one dare.
func (b *Bank) Dare(id string) (*domain.Dare, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dares.Dare(id)
}

// Dares returns all dares, newest first.
func (b *Bank) Dares() []*domain.Dare {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dares.Dares()
}

// Treasury summarizes what SYSTEM holds on behalf of settlement.
type Treasury struct {
	Escrowed map[domain.Token]int64 `json:"escrowed"`
	Residual int64                  `json:"residual"`
}

func (b *Bank) treasury() Treasury {
	escrowed := b.market.Escrowed()
	escrowed[domain.TokenBean] += b.pool.Escrowed() + b.dares.Escrowed()
	return Treasury{Escrowed: escrowed, Residual: b.pool.Residual()}
}

// Treasury returns the current escrow totals.
func (b *Bank) Treasury() Treasury {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.treasury()
}

// CheckConsistency runs the ledger consistency check against current
// escrow totals.
func (b *Bank) CheckConsistency() ConsistencyReport {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ledger.CheckConsistency(b.treasury().Escrowed)
}

// StateSnapshot is a consistent read of the whole core.
type StateSnapshot struct {
	Seq           int64                 `json:"seq"`
	Accounts      []*domain.Account     `json:"users"`
	Transactions  []*domain.Transaction `json:"transactions"`
	Orders        []*domain.Order       `json:"orders"`
	Bets          []*domain.Bet         `json:"bets"`
	Dares         []*domain.Dare        `json:"dares"`
	MarketHistory []domain.PricePoint   `json:"marketHistory"`
	Treasury      Treasury              `json:"treasury"`
}

// State returns a snapshot with the newest transactions first, capped at
// txLimit.
func (b *Bank) State(txLimit int) StateSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return StateSnapshot{
		Seq:           b.eventSeq,
		Accounts:      b.ledger.Accounts(),
		Transactions:  b.ledger.Transactions(TransactionFilter{Limit: txLimit}),
		Orders:        b.market.Orders(""),
		Bets:          b.pool.Bets(),
		Dares:         b.dares.Dares(),
		MarketHistory: b.market.History(),
		Treasury:      b.treasury(),
	}
}

// Ready reports whether the store answers.
func (b *Bank) Ready(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	_, _, err := b.store.Load(ctx, domain.CollectionMeta)
	return err
}
