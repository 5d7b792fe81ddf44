package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iho/beanbank/internal/domain"
)

// Ledger owns accounts and the append-only transaction log. It is the only
// component that changes balances. Ledger is not safe for concurrent use;
// Bank serializes every call.
type Ledger struct {
	accounts map[string]*domain.Account
	order    []string
	txs      []*domain.Transaction

	// supply is every unit held by accounts or escrowed by SYSTEM. It only
	// changes through minting and account reconciliation.
	supply map[domain.Token]int64
	// systemNet is SYSTEM's running signed position per token.
	systemNet map[domain.Token]int64

	idGen IDGenerator
	clock Clock
}

// NewLedger creates an empty Ledger.
func NewLedger(idGen IDGenerator, clock Clock) *Ledger {
	return &Ledger{
		accounts:  make(map[string]*domain.Account),
		supply:    make(map[domain.Token]int64, 2),
		systemNet: make(map[domain.Token]int64, 2),
		idGen:     idGen,
		clock:     clock,
	}
}

// OpenAccountInput represents input for opening an account.
type OpenAccountInput struct {
	ID       string
	Username string
	Section  string
	IsAdmin  bool
}

// OpenAccount creates an account with zero balances.
func (l *Ledger) OpenAccount(input OpenAccountInput) (*domain.Account, error) {
	if err := domain.ValidateUsername(input.Username); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = l.idGen.Generate()
	}
	if id == domain.SystemAccountID {
		return nil, fmt.Errorf("%w: id %s is reserved", domain.ErrInvalidAccounts, id)
	}
	if _, exists := l.accounts[id]; exists {
		return nil, fmt.Errorf("%w: duplicate id %s", domain.ErrInvalidAccounts, id)
	}

	now := l.clock.Now()
	acc := &domain.Account{
		ID:        id,
		Username:  strings.TrimSpace(input.Username),
		Section:   input.Section,
		IsAdmin:   input.IsAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.accounts[id] = acc
	l.order = append(l.order, id)

	return acc.Clone(), nil
}

// Transfer moves amount of token between two accounts as one transaction.
// Either side may be SYSTEM, which is never checked for sufficiency.
func (l *Ledger) Transfer(from, to domain.AccountRef, token domain.Token, amount int64, memo, category string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if err := l.checkRef(from); err != nil {
		return nil, err
	}
	if err := l.checkRef(to); err != nil {
		return nil, err
	}
	if from == to {
		return nil, domain.ErrSameAccount
	}

	return l.Post(domain.TransferPosting(from, to, token, amount, memo, category))
}

// Mint issues new units from SYSTEM to an account.
func (l *Ledger) Mint(to string, token domain.Token, amount int64, memo string) (*domain.Transaction, error) {
	if memo == "" {
		memo = fmt.Sprintf("Minted %d %s", amount, token)
	}

	tx, err := l.Transfer(domain.System, domain.UserRef(to), token, amount, memo, domain.CategoryMint)
	if err != nil {
		return nil, err
	}
	l.supply[token] += amount

	return tx, nil
}

type netKey struct {
	ref   domain.AccountRef
	token domain.Token
}

// Post applies a multi-leg posting atomically. Legs on the same account and
// token are netted; every net debit of a user account is checked before any
// balance changes.
func (l *Ledger) Post(p domain.Posting) (*domain.Transaction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	keys := make([]netKey, 0, len(p.Legs))
	nets := make(map[netKey]int64, len(p.Legs))
	for _, leg := range p.Legs {
		k := netKey{ref: leg.Account, token: leg.Token}
		if _, seen := nets[k]; !seen {
			keys = append(keys, k)
		}
		nets[k] += leg.Delta
	}

	// 1. Validate every leg before mutating
	for _, k := range keys {
		if k.ref.System {
			continue
		}
		acc, ok := l.accounts[k.ref.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAccount, k.ref.ID)
		}
		if delta := nets[k]; delta < 0 {
			if err := acc.ValidateDebit(k.token, -delta); err != nil {
				return nil, err
			}
		}
	}

	// 2. Apply
	now := l.clock.Now()
	entries := make([]domain.Entry, 0, len(keys))
	for _, k := range keys {
		delta := nets[k]
		if delta == 0 {
			continue
		}

		entry := domain.Entry{Account: k.ref, Token: k.token, Amount: delta}
		if k.ref.System {
			entry.PreviousBalance = l.systemNet[k.token]
			l.systemNet[k.token] += delta
			entry.CurrentBalance = l.systemNet[k.token]
		} else {
			acc := l.accounts[k.ref.ID]
			entry.PreviousBalance = acc.Balance(k.token)
			entry.CurrentBalance = acc.Apply(k.token, delta)
			acc.UpdatedAt = now
		}
		entries = append(entries, entry)
	}

	tx := &domain.Transaction{
		ID:        l.idGen.Generate(),
		From:      p.From,
		To:        p.To,
		Token:     p.Token,
		Amount:    p.Amount,
		Memo:      p.Memo,
		Category:  p.Category,
		Entries:   entries,
		CreatedAt: now,
	}
	l.txs = append(l.txs, tx)

	return tx, nil
}

// ReplaceAccounts swaps the account collection for a validated set.
// Reference checks against open settlement state are the caller's job.
func (l *Ledger) ReplaceAccounts(accounts []*domain.Account) error {
	if err := domain.ValidateAccounts(accounts); err != nil {
		return err
	}

	now := l.clock.Now()
	next := make(map[string]*domain.Account, len(accounts))
	order := make([]string, 0, len(accounts))
	var before, after [2]int64

	for _, acc := range l.accounts {
		before[0] += acc.Beans
		before[1] += acc.BeanCoins
	}
	for _, in := range accounts {
		acc := in.Clone()
		acc.ID = strings.TrimSpace(acc.ID)
		if prev, ok := l.accounts[acc.ID]; ok && acc.CreatedAt.IsZero() {
			acc.CreatedAt = prev.CreatedAt
		}
		if acc.CreatedAt.IsZero() {
			acc.CreatedAt = now
		}
		acc.UpdatedAt = now
		next[acc.ID] = acc
		order = append(order, acc.ID)
		after[0] += acc.Beans
		after[1] += acc.BeanCoins
	}

	l.accounts = next
	l.order = order
	l.supply[domain.TokenBean] += after[0] - before[0]
	l.supply[domain.TokenBeanCoin] += after[1] - before[1]

	return nil
}

// Account returns a copy of the account with id.
func (l *Ledger) Account(id string) (*domain.Account, error) {
	acc, ok := l.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAccount, id)
	}
	return acc.Clone(), nil
}

// Exists reports whether a user account with id exists.
func (l *Ledger) Exists(id string) bool {
	_, ok := l.accounts[id]
	return ok
}

// Balance returns the token balance of id, or 0 when unknown.
func (l *Ledger) Balance(id string, token domain.Token) int64 {
	if acc, ok := l.accounts[id]; ok {
		return acc.Balance(token)
	}
	return 0
}

// Accounts returns copies of all accounts in creation order.
func (l *Ledger) Accounts() []*domain.Account {
	out := make([]*domain.Account, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.accounts[id].Clone())
	}
	return out
}

// Leaderboard returns accounts ranked by Bean balance, richest first.
func (l *Ledger) Leaderboard(limit int) []*domain.Account {
	out := l.Accounts()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Beans > out[j].Beans
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// TransactionFilter narrows a transaction listing.
type TransactionFilter struct {
	AccountID string
	Limit     int
	Offset    int
}

// Transactions returns the log newest first.
func (l *Ledger) Transactions(filter TransactionFilter) []*domain.Transaction {
	limit, offset := domain.ValidatePagination(filter.Limit, filter.Offset)

	out := make([]*domain.Transaction, 0, limit)
	skipped := 0
	for i := len(l.txs) - 1; i >= 0 && len(out) < limit; i-- {
		tx := l.txs[i]
		if filter.AccountID != "" && !tx.Touches(filter.AccountID) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, tx)
	}
	return out
}

// TransactionCount returns the number of logged transactions.
func (l *Ledger) TransactionCount() int {
	return len(l.txs)
}

// Supply returns the units of token in existence.
func (l *Ledger) Supply(token domain.Token) int64 {
	return l.supply[token]
}

func (l *Ledger) checkRef(ref domain.AccountRef) error {
	if ref.System {
		return nil
	}
	if _, ok := l.accounts[ref.ID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownAccount, ref.ID)
	}
	return nil
}

// TokenReport is the consistency summary for one token.
type TokenReport struct {
	Token        domain.Token `json:"token"`
	UserBalances int64        `json:"userBalances"`
	Escrowed     int64        `json:"escrowed"`
	Supply       int64        `json:"supply"`
	SystemNet    int64        `json:"systemNet"`
	Minted       int64        `json:"minted"`
	EntrySum     int64        `json:"entrySum"`
}

// ConsistencyReport is the result of a ledger consistency check.
type ConsistencyReport struct {
	Consistent             bool          `json:"consistent"`
	Tokens                 []TokenReport `json:"tokens"`
	NegativeAccounts       []string      `json:"negativeAccounts,omitempty"`
	UnbalancedTransactions []string      `json:"unbalancedTransactions,omitempty"`
	Issues                 []string      `json:"issues,omitempty"`
	TransactionCount       int           `json:"transactionCount"`
}

// CheckConsistency verifies double entry across the log, non-negative
// balances, and that supply equals user balances plus escrowed holdings.
// escrowed is what the settlement components report SYSTEM holds for them.
func (l *Ledger) CheckConsistency(escrowed map[domain.Token]int64) ConsistencyReport {
	report := ConsistencyReport{Consistent: true, TransactionCount: len(l.txs)}

	systemNet := make(map[domain.Token]int64, 2)
	minted := make(map[domain.Token]int64, 2)
	entrySum := make(map[domain.Token]int64, 2)

	for _, tx := range l.txs {
		sums := make(map[domain.Token]int64, 2)
		for _, e := range tx.Entries {
			sums[e.Token] += e.Amount
			entrySum[e.Token] += e.Amount
			if e.Account.System {
				systemNet[e.Token] += e.Amount
			}
		}
		for _, s := range sums {
			if s != 0 {
				report.UnbalancedTransactions = append(report.UnbalancedTransactions, tx.ID)
				break
			}
		}
		if tx.Category == domain.CategoryMint && tx.From.System {
			minted[tx.Token] += tx.Amount
		}
	}

	balances := make(map[domain.Token]int64, 2)
	for _, id := range l.order {
		acc := l.accounts[id]
		if acc.Beans < 0 || acc.BeanCoins < 0 {
			report.NegativeAccounts = append(report.NegativeAccounts, id)
		}
		balances[domain.TokenBean] += acc.Beans
		balances[domain.TokenBeanCoin] += acc.BeanCoins
	}

	for _, token := range []domain.Token{domain.TokenBean, domain.TokenBeanCoin} {
		tr := TokenReport{
			Token:        token,
			UserBalances: balances[token],
			Escrowed:     escrowed[token],
			Supply:       l.supply[token],
			SystemNet:    systemNet[token],
			Minted:       minted[token],
			EntrySum:     entrySum[token],
		}
		report.Tokens = append(report.Tokens, tr)

		if tr.EntrySum != 0 {
			report.Issues = append(report.Issues, fmt.Sprintf("%s entries sum to %d", token, tr.EntrySum))
		}
		if tr.UserBalances+tr.Escrowed != tr.Supply {
			report.Issues = append(report.Issues, fmt.Sprintf("%s supply %d != balances %d + escrowed %d",
				token, tr.Supply, tr.UserBalances, tr.Escrowed))
		}
		if tr.SystemNet+tr.Minted != tr.Escrowed {
			report.Issues = append(report.Issues, fmt.Sprintf("%s system position %d + minted %d != escrowed %d",
				token, tr.SystemNet, tr.Minted, tr.Escrowed))
		}
	}

	if len(report.NegativeAccounts) > 0 || len(report.UnbalancedTransactions) > 0 || len(report.Issues) > 0 {
		report.Consistent = false
	}
	return report
}

// ledgerSnapshot is the persisted form of the ledger.
type ledgerSnapshot struct {
	Accounts     []*domain.Account
	Transactions []*domain.Transaction
	Supply       map[domain.Token]int64
}

func (l *Ledger) snapshot() ledgerSnapshot {
	supply := make(map[domain.Token]int64, len(l.supply))
	for k, v := range l.supply {
		supply[k] = v
	}
	return ledgerSnapshot{
		Accounts:     l.Accounts(),
		Transactions: append([]*domain.Transaction(nil), l.txs...),
		Supply:       supply,
	}
}

func (l *Ledger) restore(s ledgerSnapshot) {
	l.accounts = make(map[string]*domain.Account, len(s.Accounts))
	l.order = l.order[:0]
	for _, acc := range s.Accounts {
		l.accounts[acc.ID] = acc.Clone()
		l.order = append(l.order, acc.ID)
	}

	l.txs = append(l.txs[:0], s.Transactions...)
	l.systemNet = make(map[domain.Token]int64, 2)
	for _, tx := range l.txs {
		for _, e := range tx.Entries {
			if e.Account.System {
				l.systemNet[e.Token] += e.Amount
			}
		}
	}

	l.supply = make(map[domain.Token]int64, 2)
	for k, v := range s.Supply {
		l.supply[k] = v
	}
}
