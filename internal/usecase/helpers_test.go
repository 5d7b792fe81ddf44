package usecase_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/usecase"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDs struct{ n atomic.Int64 }

// bankIDs is shared so banks reloading one store never reuse an id.
var bankIDs = &seqIDs{}

func (g *seqIDs) Generate() string {
	return fmt.Sprintf("id-%04d", g.n.Add(1))
}

// testAccounts returns four non-admin users.
func testAccounts() []*domain.Account {
	return []*domain.Account{
		{ID: "u1", Username: "alto_ann", Beans: 1000, BeanCoins: 0},
		{ID: "u2", Username: "bass_bob", Beans: 1000, BeanCoins: 100},
		{ID: "u3", Username: "tenor_ted", Beans: 500, BeanCoins: 50},
		{ID: "u4", Username: "sop_sue", Beans: 200, BeanCoins: 0},
	}
}

func newTestLedger(t *testing.T, accounts ...*domain.Account) *usecase.Ledger {
	t.Helper()
	if len(accounts) == 0 {
		accounts = testAccounts()
	}
	l := usecase.NewLedger(&seqIDs{}, fixedClock{testNow})
	if err := l.ReplaceAccounts(accounts); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	return l
}

func newBank(store usecase.StateStore, publisher usecase.ChangePublisher, seed []*domain.Account) *usecase.Bank {
	return usecase.NewBank(usecase.BankConfig{
		Store:     store,
		Publisher: publisher,
		IDGen:     bankIDs,
		Clock:     fixedClock{testNow},
		Logger:    zerolog.Nop(),
		Seed:      seed,
	})
}

func newTestBank(t *testing.T, store usecase.StateStore) *usecase.Bank {
	t.Helper()
	b := newBank(store, nil, testAccounts())
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("load bank: %v", err)
	}
	return b
}

func balances(t *testing.T, l *usecase.Ledger, id string) (beans, coins int64) {
	t.Helper()
	return l.Balance(id, domain.TokenBean), l.Balance(id, domain.TokenBeanCoin)
}

func userTotal(accounts []*domain.Account) (beans, coins int64) {
	for _, a := range accounts {
		beans += a.Beans
		coins += a.BeanCoins
	}
	return beans, coins
}
