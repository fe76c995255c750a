package host

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"presale-ledger/internal/domain"
	"presale-ledger/internal/presale"
	"presale-ledger/internal/storage"
)

// view runs fn in a transaction that is always rolled back.
// Queries never advance the lifecycle.
func (h *Host) view(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := h.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	return fn(tx)
}

// Config returns the sale configuration.
func (h *Host) Config(ctx context.Context) (cfg *domain.Config, err error) {
	err = h.view(ctx, func(tx storage.Tx) error {
		cfg, err = presale.QueryConfig(ctx, tx)
		return err
	})
	return cfg, err
}

// State returns the stored sale state.
func (h *Host) State(ctx context.Context) (st *domain.SaleState, err error) {
	err = h.view(ctx, func(tx storage.Tx) error {
		st, err = presale.QueryState(ctx, tx)
		return err
	})
	return st, err
}

// Rates returns the accepted rates ordered by denom.
func (h *Host) Rates(ctx context.Context) (rates []domain.Rate, err error) {
	err = h.view(ctx, func(tx storage.Tx) error {
		rates, err = presale.QueryAcceptedRates(ctx, tx)
		return err
	})
	return rates, err
}

// IsWhitelisted reports whitelist membership of addr.
func (h *Host) IsWhitelisted(ctx context.Context, addr string) (ok bool, err error) {
	err = h.view(ctx, func(tx storage.Tx) error {
		ok, err = presale.QueryIsWhitelisted(ctx, tx, addr)
		return err
	})
	return ok, err
}

// Valuation returns the accounting-unit value contributed by addr.
func (h *Host) Valuation(ctx context.Context, addr string) (v decimal.Decimal, err error) {
	err = h.view(ctx, func(tx storage.Tx) error {
		v, err = presale.QueryValuation(ctx, tx, addr)
		return err
	})
	return v, err
}

// Contributions returns the raw coin lines of addr.
func (h *Host) Contributions(ctx context.Context, addr string) (coins []domain.Coin, err error) {
	err = h.view(ctx, func(tx storage.Tx) error {
		coins, err = presale.QueryContributions(ctx, tx, addr)
		return err
	})
	return coins, err
}

// Allocation returns the tokens addr could claim.
func (h *Host) Allocation(ctx context.Context, addr string) (v decimal.Decimal, err error) {
	err = h.view(ctx, func(tx storage.Tx) error {
		v, err = presale.QueryAllocation(ctx, tx, addr)
		return err
	})
	return v, err
}

// Events returns the events of sender, or all events in [start, end] when
// sender is empty.
func (h *Host) Events(ctx context.Context, sender string, start, end int64) ([]*domain.SaleEvent, error) {
	if sender != "" {
		return h.events.GetBySender(ctx, sender)
	}
	return h.events.GetByTimeRange(ctx, start, end)
}
