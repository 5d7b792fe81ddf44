package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"pgregory.net/rapid"

	"github.com/iho/beanbank/internal/adapter/repository/memory"
	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/infrastructure/metrics"
	"github.com/iho/beanbank/internal/usecase"
	"github.com/iho/beanbank/internal/usecase/mocks"
)

func TestBank_LoadSeedsEmptyStore(t *testing.T) {
	store := memory.NewStore()
	b := newTestBank(t, store)

	accounts, version := b.Accounts()
	assert.Len(t, accounts, 4)
	assert.Equal(t, int64(1), version)

	for _, c := range domain.AllCollections {
		_, v, err := store.Load(context.Background(), c)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v, "collection %s", c)
	}
	assert.True(t, b.CheckConsistency().Consistent)
}

func TestBank_RestoresFromStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	b := newTestBank(t, store)

	_, err := b.Transfer(ctx, usecase.TransferInput{FromAccountID: "u1", ToAccountID: "u4", Amount: 25})
	require.NoError(t, err)
	_, err = b.SubmitOrder(ctx, limit("u2", domain.SideSell, 10, 5))
	require.NoError(t, err)
	_, err = b.SubmitOrder(ctx, limit("u1", domain.SideBuy, 4, 5))
	require.NoError(t, err)
	bet, err := b.CreateBet(ctx, usecase.CreateBetInput{CreatorID: "u1", Title: "Encore?", Options: []string{"Yes", "No"}})
	require.NoError(t, err)
	_, err = b.PlaceWager(ctx, usecase.PlaceWagerInput{BettorID: "u3", BetID: bet.ID, OptionID: "opt_1", Amount: 30})
	require.NoError(t, err)
	dare, err := b.CreateDare(ctx, usecase.CreateDareInput{CreatorID: "u2", TargetID: "u3", Description: "Hum the anthem"})
	require.NoError(t, err)
	_, err = b.Pledge(ctx, dare.ID, "u2", 15)
	require.NoError(t, err)

	want := b.State(0)

	// seed differs on purpose: a populated store must win
	reloaded := newBank(store, nil, usecase.DefaultSeedAccounts())
	require.NoError(t, reloaded.Load(ctx))

	got := reloaded.State(0)
	assert.Equal(t, want.Seq, got.Seq)
	assert.Equal(t, want.Accounts, got.Accounts)
	assert.Equal(t, want.Orders, got.Orders)
	assert.Equal(t, want.Bets, got.Bets)
	assert.Equal(t, want.Dares, got.Dares)
	assert.Equal(t, want.MarketHistory, got.MarketHistory)
	assert.Equal(t, want.Treasury, got.Treasury)
	assert.Len(t, got.Transactions, len(want.Transactions))

	report := reloaded.CheckConsistency()
	assert.True(t, report.Consistent, "issues: %v", report.Issues)

	// the restored order sequence keeps priority stable for new orders
	res, err := reloaded.SubmitOrder(ctx, limit("u3", domain.SideSell, 1, 5))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusOpen, res.Status)
	orders := reloaded.Orders("")
	require.Len(t, orders, 2)
	assert.Equal(t, "u2", orders[0].OwnerID)
}

func TestBank_TransferRejectsSystem(t *testing.T) {
	b := newTestBank(t, nil)

	_, err := b.Transfer(context.Background(), usecase.TransferInput{FromAccountID: domain.SystemAccountID, ToAccountID: "u1", Amount: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidAccounts)

	_, err = b.Transfer(context.Background(), usecase.TransferInput{FromAccountID: "u1", ToAccountID: "u2", Token: "GOLD", Amount: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestBank_TransferDefaults(t *testing.T) {
	b := newTestBank(t, nil)

	tx, err := b.Transfer(context.Background(), usecase.TransferInput{FromAccountID: "u1", ToAccountID: "u2", Amount: 5, Memo: "  "})
	require.NoError(t, err)
	assert.Equal(t, domain.TokenBean, tx.Token)
	assert.Equal(t, "Transfer", tx.Memo)

	txs, err := b.Transactions(usecase.TransactionFilter{AccountID: "u2"})
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	_, err = b.Transactions(usecase.TransactionFilter{AccountID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrUnknownAccount)
}

func TestBank_RejectsOversizedMemo(t *testing.T) {
	b := newTestBank(t, nil)
	long := strings.Repeat("m", domain.MaxMemoLength+1)

	_, err := b.Transfer(context.Background(), usecase.TransferInput{FromAccountID: "u1", ToAccountID: "u2", Amount: 5, Memo: long})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = b.Mint(context.Background(), usecase.MintInput{AccountID: "u4", Amount: 5, Memo: long})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	tx, err := b.Transfer(context.Background(), usecase.TransferInput{FromAccountID: "u1", ToAccountID: "u2", Amount: 5, Memo: long[:domain.MaxMemoLength]})
	require.NoError(t, err)
	assert.Len(t, tx.Memo, domain.MaxMemoLength)

	acc, err := b.Account("u4")
	require.NoError(t, err)
	assert.Equal(t, int64(200), acc.Beans)
}

func TestBank_MintKeepsLedgerConsistent(t *testing.T) {
	b := newTestBank(t, nil)

	tx, err := b.Mint(context.Background(), usecase.MintInput{AccountID: "u4", Amount: 500})
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryMint, tx.Category)

	acc, err := b.Account("u4")
	require.NoError(t, err)
	assert.Equal(t, int64(700), acc.Beans)
	assert.True(t, b.CheckConsistency().Consistent)
}

func TestBank_ReplaceAccounts(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces and bumps version", func(t *testing.T) {
		b := newTestBank(t, memory.NewStore())
		_, version := b.Accounts()

		out, next, err := b.ReplaceAccounts(ctx, []*domain.Account{
			{ID: "u1", Username: "alto_ann", Beans: 10},
			{ID: "u7", Username: "newcomer", Beans: 20},
		}, version)
		require.NoError(t, err)
		assert.Len(t, out, 2)
		assert.Equal(t, version+1, next)
		assert.True(t, b.CheckConsistency().Consistent)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		b := newTestBank(t, memory.NewStore())
		_, _, err := b.ReplaceAccounts(ctx, testAccounts(), 99)
		assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	})

	t.Run("invalid batch is rejected whole", func(t *testing.T) {
		b := newTestBank(t, memory.NewStore())
		before, version := b.Accounts()

		_, _, err := b.ReplaceAccounts(ctx, []*domain.Account{
			{ID: "u1", Username: "a", Beans: 5},
			{ID: "u1", Username: "b", Beans: 5},
		}, 0)
		require.ErrorIs(t, err, domain.ErrInvalidAccounts)

		after, v := b.Accounts()
		assert.Equal(t, before, after)
		assert.Equal(t, version, v)
	})

	t.Run("accounts with open orders cannot be removed", func(t *testing.T) {
		b := newTestBank(t, memory.NewStore())
		_, err := b.SubmitOrder(ctx, limit("u3", domain.SideSell, 5, 9))
		require.NoError(t, err)

		_, _, err = b.ReplaceAccounts(ctx, []*domain.Account{{ID: "u1", Username: "alto_ann"}}, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidAccounts)
	})
}

func TestBank_PublishesOneEventPerCommand(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	publisher := mocks.NewMockChangePublisher(ctrl)
	b := newBank(memory.NewStore(), publisher, testAccounts())
	require.NoError(t, b.Load(context.Background()))

	gomock.InOrder(
		publisher.EXPECT().Publish(gomock.Any()).Do(func(e domain.ChangeEvent) {
			assert.Equal(t, int64(1), e.Seq)
			assert.Equal(t, domain.EventTypeTransferPosted, e.Type)
			assert.Contains(t, e.Collections, domain.CollectionAccounts)
		}),
		publisher.EXPECT().Publish(gomock.Any()).Do(func(e domain.ChangeEvent) {
			assert.Equal(t, int64(2), e.Seq)
			assert.Equal(t, domain.EventTypeOrderSubmitted, e.Type)
			assert.Contains(t, e.Collections, domain.CollectionOrders)
		}),
	)

	ctx := context.Background()
	_, err := b.Transfer(ctx, usecase.TransferInput{FromAccountID: "u1", ToAccountID: "u2", Amount: 1})
	require.NoError(t, err)
	_, err = b.SubmitOrder(ctx, limit("u2", domain.SideSell, 1, 5))
	require.NoError(t, err)

	// rejected commands publish nothing
	_, err = b.Transfer(ctx, usecase.TransferInput{FromAccountID: "u4", ToAccountID: "u2", Amount: 10_000})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestBank_FailedCommitRollsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mem := memory.NewStore()
	store := mocks.NewMockStateStore(ctrl)
	store.EXPECT().Load(gomock.Any(), gomock.Any()).DoAndReturn(mem.Load).AnyTimes()
	gomock.InOrder(
		store.EXPECT().CommitBatch(gomock.Any(), gomock.Any()).DoAndReturn(mem.CommitBatch),
		store.EXPECT().CommitBatch(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk full")),
		store.EXPECT().CommitBatch(gomock.Any(), gomock.Any()).DoAndReturn(mem.CommitBatch),
	)

	b := newTestBank(t, store)
	before, _ := b.Accounts()

	_, err := b.Transfer(ctx, usecase.TransferInput{FromAccountID: "u1", ToAccountID: "u2", Amount: 100})
	require.Error(t, err)

	after, _ := b.Accounts()
	assert.Equal(t, before, after, "memory must not run ahead of the store")
	assert.Zero(t, b.State(0).Seq)

	_, err = b.Transfer(ctx, usecase.TransferInput{FromAccountID: "u1", ToAccountID: "u2", Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.State(0).Seq)
}

func TestBank_Treasury(t *testing.T) {
	ctx := context.Background()
	b := newTestBank(t, nil)

	_, err := b.SubmitOrder(ctx, limit("u1", domain.SideBuy, 4, 5))
	require.NoError(t, err)
	_, err = b.SubmitOrder(ctx, limit("u2", domain.SideSell, 3, 8))
	require.NoError(t, err)
	bet, err := b.CreateBet(ctx, usecase.CreateBetInput{CreatorID: "u1", Title: "t", Options: []string{"a", "b"}})
	require.NoError(t, err)
	_, err = b.PlaceWager(ctx, usecase.PlaceWagerInput{BettorID: "u3", BetID: bet.ID, OptionID: "opt_1", Amount: 7})
	require.NoError(t, err)

	tr := b.Treasury()
	assert.Equal(t, int64(27), tr.Escrowed[domain.TokenBean])
	assert.Equal(t, int64(3), tr.Escrowed[domain.TokenBeanCoin])
	assert.Zero(t, tr.Residual)
}

// Any interleaving of commands keeps supply equal to balances plus escrow
// and every balance non-negative.
func TestBank_CommandsPreserveConsistency(t *testing.T) {
	ids := []string{"u1", "u2", "u3", "u4"}
	sides := []domain.OrderSide{domain.SideBuy, domain.SideSell}
	kinds := []domain.OrderKind{domain.KindLimit, domain.KindMarket}

	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		b := newBank(nil, nil, testAccounts())
		if err := b.Load(ctx); err != nil {
			rt.Fatalf("load: %v", err)
		}
		bet, err := b.CreateBet(ctx, usecase.CreateBetInput{CreatorID: "u1", Title: "t", Options: []string{"a", "b", "c"}})
		if err != nil {
			rt.Fatalf("create bet: %v", err)
		}
		dare, err := b.CreateDare(ctx, usecase.CreateDareInput{CreatorID: "u1", TargetID: "u2", Description: "d"})
		if err != nil {
			rt.Fatalf("create dare: %v", err)
		}

		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			who := rapid.SampledFrom(ids).Draw(rt, "who")
			switch rapid.IntRange(0, 5).Draw(rt, "op") {
			case 0:
				_, _ = b.Transfer(ctx, usecase.TransferInput{
					FromAccountID: who,
					ToAccountID:   rapid.SampledFrom(ids).Draw(rt, "to"),
					Amount:        rapid.Int64Range(1, 300).Draw(rt, "amount"),
				})
			case 1:
				_, _ = b.SubmitOrder(ctx, usecase.SubmitOrderInput{
					OwnerID: who,
					Side:    rapid.SampledFrom(sides).Draw(rt, "side"),
					Kind:    rapid.SampledFrom(kinds).Draw(rt, "kind"),
					Amount:  rapid.Int64Range(1, 30).Draw(rt, "qty"),
					Price:   rapid.Int64Range(1, 20).Draw(rt, "price"),
				})
			case 2:
				if orders := b.Orders(""); len(orders) > 0 {
					o := rapid.SampledFrom(orders).Draw(rt, "cancel")
					if _, err := b.CancelOrder(ctx, o.ID); err != nil {
						rt.Fatalf("cancel resting order: %v", err)
					}
				}
			case 3:
				_, _ = b.PlaceWager(ctx, usecase.PlaceWagerInput{
					BettorID: who,
					BetID:    bet.ID,
					OptionID: rapid.SampledFrom([]string{"opt_1", "opt_2", "opt_3"}).Draw(rt, "option"),
					Amount:   rapid.Int64Range(1, 100).Draw(rt, "stake"),
				})
			case 4:
				_, _ = b.Pledge(ctx, dare.ID, who, rapid.Int64Range(1, 100).Draw(rt, "pledge"))
			case 5:
				_, _ = b.ResolveBet(ctx, bet.ID, rapid.SampledFrom([]string{"opt_1", "opt_2", "opt_3"}).Draw(rt, "winner"))
			}

			report := b.CheckConsistency()
			if !report.Consistent {
				rt.Fatalf("step %d: issues %v negative %v unbalanced %v",
					i, report.Issues, report.NegativeAccounts, report.UnbalancedTransactions)
			}
		}

		if _, err := b.ResolveDare(ctx, dare.ID, ""); err != nil {
			rt.Fatalf("resolve dare: %v", err)
		}
		if report := b.CheckConsistency(); !report.Consistent {
			rt.Fatalf("after dare: %v", report.Issues)
		}
	})
}

func TestBank_RecordsMarketMetrics(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	b := usecase.NewBank(usecase.BankConfig{
		Store:   memory.NewStore(),
		IDGen:   bankIDs,
		Clock:   fixedClock{testNow},
		Metrics: m,
		Logger:  zerolog.Nop(),
		Seed:    testAccounts(),
	})
	require.NoError(t, b.Load(context.Background()))
	ctx := context.Background()

	_, err := b.SubmitOrder(ctx, usecase.SubmitOrderInput{OwnerID: "u2", Side: domain.SideSell, Kind: domain.KindLimit, Amount: 5, Price: 10})
	require.NoError(t, err)
	_, err = b.SubmitOrder(ctx, usecase.SubmitOrderInput{OwnerID: "u1", Side: domain.SideBuy, Kind: domain.KindLimit, Amount: 2, Price: 8})
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RestingBook.WithLabelValues("SELL")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RestingBook.WithLabelValues("BUY")))

	res, err := b.SubmitOrder(ctx, usecase.SubmitOrderInput{OwnerID: "u1", Side: domain.SideBuy, Kind: domain.KindLimit, Amount: 5, Price: 12})
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Trades))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.TradedVolume.WithLabelValues("BEANCOIN")))
	assert.Equal(t, float64(50), testutil.ToFloat64(m.TradedVolume.WithLabelValues("BEAN")))
	assert.Equal(t, float64(10), testutil.ToFloat64(m.LastPrice))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.RestingBook.WithLabelValues("SELL")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RestingBook.WithLabelValues("BUY")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.Commands.WithLabelValues("submit_order", "ok")))
}

func TestBank_ConcurrentCommands(t *testing.T) {
	const workers = 16
	ctx := context.Background()
	b := newTestBank(t, memory.NewStore())

	bet, err := b.CreateBet(ctx, usecase.CreateBetInput{CreatorID: "u1", Title: "rain", Options: []string{"yes", "no"}})
	require.NoError(t, err)
	_, err = b.PlaceWager(ctx, usecase.PlaceWagerInput{BettorID: "u2", BetID: bet.ID, OptionID: "opt_1", Amount: 100})
	require.NoError(t, err)
	_, err = b.PlaceWager(ctx, usecase.PlaceWagerInput{BettorID: "u3", BetID: bet.ID, OptionID: "opt_2", Amount: 60})
	require.NoError(t, err)

	dare, err := b.CreateDare(ctx, usecase.CreateDareInput{CreatorID: "u1", TargetID: "u4", Description: "sing"})
	require.NoError(t, err)
	_, err = b.Pledge(ctx, dare.ID, "u2", 50)
	require.NoError(t, err)

	// Sized so the market sells below cannot fill it.
	order, err := b.SubmitOrder(ctx, usecase.SubmitOrderInput{
		OwnerID: "u1", Side: domain.SideBuy, Kind: domain.KindLimit, Amount: 50, Price: 10,
	})
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		betErrs  = make(chan error, workers)
		dareErrs = make(chan error, workers)
		cancels  = make(chan error, workers)
		sells    = make(chan error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(4)
		go func() {
			defer wg.Done()
			_, err := b.ResolveBet(ctx, bet.ID, "opt_1")
			betErrs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := b.ResolveDare(ctx, dare.ID, "video")
			dareErrs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := b.CancelOrder(ctx, order.OrderID)
			cancels <- err
		}()
		seller := "u2"
		if i%2 == 1 {
			seller = "u3"
		}
		go func() {
			defer wg.Done()
			_, err := b.SubmitOrder(ctx, usecase.SubmitOrderInput{
				OwnerID: seller, Side: domain.SideSell, Kind: domain.KindMarket, Amount: 1,
			})
			sells <- err
		}()
	}
	wg.Wait()
	close(betErrs)
	close(dareErrs)
	close(cancels)
	close(sells)

	tally := func(errs <-chan error, loser error) int {
		wins := 0
		for err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, loser)
		}
		return wins
	}
	assert.Equal(t, 1, tally(betErrs, domain.ErrInvalidState), "bet resolutions")
	assert.Equal(t, 1, tally(dareErrs, domain.ErrInvalidState), "dare resolutions")
	assert.Equal(t, 1, tally(cancels, domain.ErrUnknownOrder), "order cancellations")
	for err := range sells {
		assert.NoError(t, err)
	}

	resolved, err := b.Bet(bet.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BetStatusResolved, resolved.Status)
	assert.Empty(t, b.Orders("u1"))

	report := b.CheckConsistency()
	assert.True(t, report.Consistent, "issues: %v", report.Issues)
}
