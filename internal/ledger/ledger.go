// Package ledger provides the collaborators a sale settles against: a
// native multi-denom bank and a fungible token service.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"presale-ledger/internal/domain"
)

var (
	// ErrInsufficientFunds is returned when a sender cannot cover a transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned for zero, negative or fractional amounts.
	ErrInvalidAmount = errors.New("invalid transfer amount")

	// ErrUnknownToken is returned when a token contract does not exist.
	ErrUnknownToken = errors.New("unknown token contract")
)

// Bank moves native coins between accounts.
type Bank interface {
	// Send moves coins from one account to another. All or nothing.
	Send(ctx context.Context, from, to string, coins []domain.Coin) error

	// Balance returns the balance of address in denom.
	Balance(ctx context.Context, address, denom string) (decimal.Decimal, error)
}

// TokenService is a fungible token contract registry.
type TokenService interface {
	// Transfer moves amount of token from one account to another.
	Transfer(ctx context.Context, token, from, to string, amount decimal.Decimal) error

	// BalanceOf returns the token balance of address.
	BalanceOf(ctx context.Context, token, address string) (decimal.Decimal, error)
}

func validAmount(d decimal.Decimal) bool {
	return d.IsPositive() && domain.IsWholeAmount(d)
}
