package presale

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"presale-ledger/internal/account"
	"presale-ledger/internal/domain"
	"presale-ledger/internal/storage/memory"
)

const (
	usdc = "uusdc"
	atom = "uatom"
	osmo = "uosmo"

	startTime = 1_000
	endTime   = 2_000
)

var (
	adminAddr    = mustAddr(1)
	tokenAddr    = mustAddr(2)
	aliceAddr    = mustAddr(3)
	bobAddr      = mustAddr(4)
	carolAddr    = mustAddr(5)
	contractAddr = mustAddr(6)
)

func mustAddr(b byte) string {
	s, err := account.FromBytes(bytes.Repeat([]byte{b}, account.KeyLength))
	if err != nil {
		panic(err)
	}
	return s
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// stubQuerier serves fixed balances.
type stubQuerier struct {
	bank   map[string]decimal.Decimal // denom -> balance of the sale
	tokens decimal.Decimal
}

func (q *stubQuerier) BankBalance(_ context.Context, _ string, denom string) (decimal.Decimal, error) {
	if v, ok := q.bank[denom]; ok {
		return v, nil
	}
	return decimal.Zero, nil
}

func (q *stubQuerier) TokenBalance(_ context.Context, _, _ string) (decimal.Decimal, error) {
	return q.tokens, nil
}

func scenarioMsg() InstantiateMsg {
	return InstantiateMsg{
		Admin:        adminAddr,
		TokenAddress: tokenAddr,
		AcceptedRates: []domain.Rate{
			{Denom: usdc, Rate: dec(1_000_000)},
			{Denom: atom, Rate: dec(7_000_000)},
			{Denom: osmo, Rate: dec(550_000)},
		},
		StartTime:              startTime,
		EndTime:                endTime,
		SoftCap:                dec(100_000_000_000),
		HardCap:                dec(500_000_000_000),
		MaxContributionPerUser: dec(200_000_000_000),
		TokenPrice:             dec(10_000),
	}
}

type fixture struct {
	t        *testing.T
	store    *memory.SaleStore
	querier  *stubQuerier
	contract *Contract
}

func newFixture(t *testing.T, msg InstantiateMsg) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		store:   memory.NewSaleStore(),
		querier: &stubQuerier{bank: map[string]decimal.Decimal{}, tokens: decimal.Zero},
	}
	f.contract = New(f.querier)

	ctx := context.Background()
	tx, err := f.store.Begin(ctx)
	require.NoError(t, err)
	_, err = Instantiate(ctx, tx, msg)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	return f
}

// exec runs msg and commits only on success.
func (f *fixture) exec(now uint64, sender string, funds []domain.Coin, msg ExecuteMsg) (*Response, error) {
	f.t.Helper()
	ctx := context.Background()
	tx, err := f.store.Begin(ctx)
	require.NoError(f.t, err)
	defer tx.Rollback(ctx)

	res, err := f.contract.Execute(ctx, tx, Env{Now: now, Contract: contractAddr}, Info{Sender: sender, Funds: funds}, msg)
	if err != nil {
		return nil, err
	}
	require.NoError(f.t, tx.Commit(ctx))
	return res, nil
}

func (f *fixture) buy(now uint64, sender string, coins ...domain.Coin) (*Response, error) {
	return f.exec(now, sender, coins, ExecuteMsg{Action: ActionBuy})
}

func (f *fixture) state() *domain.SaleState {
	f.t.Helper()
	ctx := context.Background()
	tx, err := f.store.Begin(ctx)
	require.NoError(f.t, err)
	defer tx.Rollback(ctx)
	st, err := QueryState(ctx, tx)
	require.NoError(f.t, err)
	return st
}

func (f *fixture) contributions(addr string) []domain.Coin {
	f.t.Helper()
	ctx := context.Background()
	tx, err := f.store.Begin(ctx)
	require.NoError(f.t, err)
	defer tx.Rollback(ctx)
	coins, err := QueryContributions(ctx, tx, addr)
	require.NoError(f.t, err)
	return coins
}
