package presale

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"presale-ledger/internal/account"
	"presale-ledger/internal/domain"
	"presale-ledger/internal/storage"
)

// Read-only views of the sale. None of them advance the lifecycle.

// QueryConfig returns the sale configuration.
func QueryConfig(ctx context.Context, tx storage.Tx) (*domain.Config, error) {
	return loadConfig(ctx, tx)
}

// QueryState returns the stored sale state.
func QueryState(ctx context.Context, tx storage.Tx) (*domain.SaleState, error) {
	return loadState(ctx, tx)
}

// QueryAcceptedRates returns the rate table ordered by denom.
func QueryAcceptedRates(ctx context.Context, tx storage.Tx) ([]domain.Rate, error) {
	rates, err := tx.ListRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	out := make([]domain.Rate, 0, len(rates))
	for _, r := range rates {
		out = append(out, *r)
	}
	return out, nil
}

// QueryIsWhitelisted reports whitelist membership of addr.
func QueryIsWhitelisted(ctx context.Context, tx storage.Tx, addr string) (bool, error) {
	if err := account.Validate(addr); err != nil {
		return false, err
	}
	ok, err := tx.IsWhitelisted(ctx, addr)
	if err != nil {
		return false, fmt.Errorf("load whitelist: %w", err)
	}
	return ok, nil
}

// QueryValuation returns the accounting-unit value contributed by addr.
func QueryValuation(ctx context.Context, tx storage.Tx, addr string) (decimal.Decimal, error) {
	if err := account.Validate(addr); err != nil {
		return decimal.Zero, err
	}
	entry, err := contribution(ctx, tx, addr)
	if err != nil {
		return decimal.Zero, err
	}
	return Valuation(ctx, tx, entry.Coins)
}

// QueryContributions returns the raw coin lines of addr, empty if none.
func QueryContributions(ctx context.Context, tx storage.Tx, addr string) ([]domain.Coin, error) {
	if err := account.Validate(addr); err != nil {
		return nil, err
	}
	entry, err := contribution(ctx, tx, addr)
	if err != nil {
		return nil, err
	}
	if entry.Coins == nil {
		return []domain.Coin{}, nil
	}
	return entry.Coins, nil
}

// QueryAllocation returns the tokens addr could claim, 0 if none.
func QueryAllocation(ctx context.Context, tx storage.Tx, addr string) (decimal.Decimal, error) {
	value, err := QueryValuation(ctx, tx, addr)
	if err != nil {
		return decimal.Zero, err
	}
	cfg, err := loadConfig(ctx, tx)
	if err != nil {
		return decimal.Zero, err
	}
	return Allocation(value, cfg.TokenPrice), nil
}
