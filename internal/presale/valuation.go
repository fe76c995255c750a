package presale

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"presale-ledger/internal/domain"
	"presale-ledger/internal/storage"
)

// RateScale is the fixed-point scale of exchange rates and token prices.
const RateScale = 1_000_000

var scale = decimal.NewFromInt(RateScale)

// floorDiv returns floor(a / b) for non-negative a and positive b.
func floorDiv(a, b decimal.Decimal) decimal.Decimal {
	q, _ := a.QuoRem(b, 0)
	return q
}

// ValueOf converts amount smallest units into accounting units.
func ValueOf(amount, rate decimal.Decimal) decimal.Decimal {
	return floorDiv(amount.Mul(rate), scale)
}

// Allocation converts a valuation into distributed tokens at price.
func Allocation(valuation, price decimal.Decimal) decimal.Decimal {
	return floorDiv(valuation.Mul(scale), price)
}

// Valuation sums the value of every coin line with its rate.
// Each line is floored on its own.
func Valuation(ctx context.Context, tx storage.Tx, coins []domain.Coin) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, c := range coins {
		rate, err := tx.GetRate(ctx, c.Denom)
		if err != nil {
			return decimal.Zero, fmt.Errorf("rate of %s: %w", c.Denom, err)
		}
		total = total.Add(ValueOf(c.Amount, rate.Rate))
	}
	return total, nil
}

// contribution returns the ledger entry of acct, or an empty one.
func contribution(ctx context.Context, tx storage.Tx, acct string) (*domain.Contribution, error) {
	entry, err := tx.GetContribution(ctx, acct)
	if errors.Is(err, storage.ErrNotFound) {
		return &domain.Contribution{Account: acct}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load contribution: %w", err)
	}
	return entry, nil
}
