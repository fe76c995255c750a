package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryTokens is an in-memory TokenService holding any number of token
// contracts.
type MemoryTokens struct {
	mu       sync.RWMutex
	balances map[string]map[string]decimal.Decimal // token -> address -> amount
}

// NewMemoryTokens creates an empty token registry.
func NewMemoryTokens() *MemoryTokens {
	return &MemoryTokens{
		balances: make(map[string]map[string]decimal.Decimal),
	}
}

// Create registers token with an initial supply held by owner.
func (m *MemoryTokens) Create(token, owner string, supply decimal.Decimal) error {
	if !validAmount(supply) {
		return fmt.Errorf("%w: supply %s", ErrInvalidAmount, supply)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.balances[token]; exists {
		return fmt.Errorf("token %s already exists", token)
	}
	m.balances[token] = map[string]decimal.Decimal{owner: supply}
	return nil
}

// Transfer moves amount of token from one account to another.
func (m *MemoryTokens) Transfer(ctx context.Context, token, from, to string, amount decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validAmount(amount) {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	holders, ok := m.balances[token]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	if holders[from].LessThan(amount) {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientFunds, from, holders[from], amount)
	}
	holders[from] = holders[from].Sub(amount)
	holders[to] = holders[to].Add(amount)
	return nil
}

// BalanceOf returns the token balance of address.
func (m *MemoryTokens) BalanceOf(_ context.Context, token, address string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	holders, ok := m.balances[token]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	return holders[address], nil
}

var _ TokenService = (*MemoryTokens)(nil)
