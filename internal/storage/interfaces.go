package storage

import (
	"context"

	"presale-ledger/internal/domain"
)

// Store opens transactions over the persisted sale state.
// Transactions are serialized: a second Begin blocks (or waits on the
// database lock) until the first one commits or rolls back.
type Store interface {
	// Begin starts a read-write transaction.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one atomic unit of work over the sale state.
// Nothing written through a Tx is visible before Commit; Rollback discards it.
// Rollback after Commit is a no-op, so callers may always defer it.
type Tx interface {
	// GetConfig returns the sale configuration. Returns ErrNotFound before instantiation.
	GetConfig(ctx context.Context) (*domain.Config, error)

	// SaveConfig stores the sale configuration.
	SaveConfig(ctx context.Context, c *domain.Config) error

	// GetState returns the mutable sale state. Returns ErrNotFound before instantiation.
	GetState(ctx context.Context) (*domain.SaleState, error)

	// SaveState stores the mutable sale state.
	SaveState(ctx context.Context, s *domain.SaleState) error

	// GetRate returns the exchange rate of denom. Returns ErrNotFound if not accepted.
	GetRate(ctx context.Context, denom string) (*domain.Rate, error)

	// SaveRate stores an exchange rate.
	SaveRate(ctx context.Context, r *domain.Rate) error

	// ListRates returns all exchange rates ordered by denom ASC.
	ListRates(ctx context.Context) ([]*domain.Rate, error)

	// GetContribution returns the ledger entry of account. Returns ErrNotFound if none.
	GetContribution(ctx context.Context, account string) (*domain.Contribution, error)

	// SaveContribution replaces the ledger entry of c.Account.
	SaveContribution(ctx context.Context, c *domain.Contribution) error

	// DeleteContribution removes the ledger entry of account. Missing entries are ignored.
	DeleteContribution(ctx context.Context, account string) error

	// IsWhitelisted reports whether account is on the whitelist.
	IsWhitelisted(ctx context.Context, account string) (bool, error)

	// SetWhitelisted adds account to the whitelist. Idempotent.
	SetWhitelisted(ctx context.Context, account string) error

	// RemoveWhitelisted removes account from the whitelist. Idempotent.
	RemoveWhitelisted(ctx context.Context, account string) error

	// GetVersion returns the recorded contract version. Returns ErrNotFound if unset.
	GetVersion(ctx context.Context) (*domain.ContractVersion, error)

	// SaveVersion records the contract version.
	SaveVersion(ctx context.Context, v *domain.ContractVersion) error

	// Commit makes all writes visible.
	Commit(ctx context.Context) error

	// Rollback discards all writes.
	Rollback(ctx context.Context) error
}

// EventStore provides access to the append-only operation log.
type EventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.SaleEvent) error

	// GetBySender retrieves all events of a sender, ordered by sequence ASC.
	GetBySender(ctx context.Context, sender string) ([]*domain.SaleEvent, error)

	// GetByTimeRange retrieves events within [start, end] (inclusive), ordered by sequence ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.SaleEvent, error)

	// LastSequence returns the highest stored sequence, or 0 if the log is empty.
	LastSequence(ctx context.Context) (uint64, error)
}
