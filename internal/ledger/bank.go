package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"presale-ledger/internal/domain"
)

// MemoryBank is an in-memory Bank.
type MemoryBank struct {
	mu       sync.RWMutex
	balances map[string]map[string]decimal.Decimal // address -> denom -> amount
}

// NewMemoryBank creates an empty bank.
func NewMemoryBank() *MemoryBank {
	return &MemoryBank{
		balances: make(map[string]map[string]decimal.Decimal),
	}
}

// Mint credits coins to address out of thin air.
func (b *MemoryBank) Mint(address string, coins ...domain.Coin) error {
	for _, c := range coins {
		if !validAmount(c.Amount) {
			return fmt.Errorf("%w: %s%s", ErrInvalidAmount, c.Amount, c.Denom)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range coins {
		b.credit(address, c)
	}
	return nil
}

// Send moves coins from one account to another.
func (b *MemoryBank) Send(ctx context.Context, from, to string, coins []domain.Coin) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, c := range coins {
		if !validAmount(c.Amount) {
			return fmt.Errorf("%w: %s%s", ErrInvalidAmount, c.Amount, c.Denom)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Totals per denom so repeated lines are checked together.
	need := make(map[string]decimal.Decimal)
	for _, c := range coins {
		need[c.Denom] = need[c.Denom].Add(c.Amount)
	}
	for denom, amount := range need {
		if b.balance(from, denom).LessThan(amount) {
			return fmt.Errorf("%w: %s has %s%s, needs %s", ErrInsufficientFunds, from, b.balance(from, denom), denom, amount)
		}
	}

	for _, c := range coins {
		b.balances[from][c.Denom] = b.balance(from, c.Denom).Sub(c.Amount)
		b.credit(to, c)
	}
	return nil
}

// Balance returns the balance of address in denom.
func (b *MemoryBank) Balance(_ context.Context, address, denom string) (decimal.Decimal, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balance(address, denom), nil
}

// AllBalances returns every non-zero balance of address ordered by denom.
func (b *MemoryBank) AllBalances(address string) []domain.Coin {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []domain.Coin
	for denom, amount := range b.balances[address] {
		if amount.IsPositive() {
			out = append(out, domain.Coin{Denom: denom, Amount: amount})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Denom < out[j].Denom
	})
	return out
}

func (b *MemoryBank) balance(address, denom string) decimal.Decimal {
	if acct, ok := b.balances[address]; ok {
		if v, ok := acct[denom]; ok {
			return v
		}
	}
	return decimal.Zero
}

func (b *MemoryBank) credit(address string, c domain.Coin) {
	acct, ok := b.balances[address]
	if !ok {
		acct = make(map[string]decimal.Decimal)
		b.balances[address] = acct
	}
	acct[c.Denom] = b.balance(address, c.Denom).Add(c.Amount)
}

var _ Bank = (*MemoryBank)(nil)
