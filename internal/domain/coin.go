package domain

import "github.com/shopspring/decimal"

// Coin is an amount of a fungible currency in its smallest unit.
type Coin struct {
	Denom  string          `json:"denom"`
	Amount decimal.Decimal `json:"amount"`
}

// NewCoin builds a Coin from an int64 amount.
func NewCoin(denom string, amount int64) Coin {
	return Coin{Denom: denom, Amount: decimal.NewFromInt(amount)}
}

// IsWholeAmount reports whether d is a non-negative integer.
// Every on-ledger amount must satisfy this.
func IsWholeAmount(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Truncate(0))
}

// MergeCoin adds c into coins. An existing line with the same denom is
// increased in place, otherwise c is appended. Order of first appearance
// is preserved.
func MergeCoin(coins []Coin, c Coin) []Coin {
	out := make([]Coin, len(coins), len(coins)+1)
	copy(out, coins)
	for i := range out {
		if out[i].Denom == c.Denom {
			out[i].Amount = out[i].Amount.Add(c.Amount)
			return out
		}
	}
	return append(out, c)
}

// CopyCoins returns a copy of coins.
func CopyCoins(coins []Coin) []Coin {
	if coins == nil {
		return nil
	}
	out := make([]Coin, len(coins))
	copy(out, coins)
	return out
}
