package memory

import (
	"context"
	"sort"
	"sync"

	"presale-ledger/internal/domain"
	"presale-ledger/internal/storage"
)

// saleData is the complete persisted state of one sale.
type saleData struct {
	config        *domain.Config
	state         *domain.SaleState
	version       *domain.ContractVersion
	rates         map[string]domain.Rate
	contributions map[string][]domain.Coin // keyed by account
	whitelist     map[string]bool
}

func newSaleData() *saleData {
	return &saleData{
		rates:         make(map[string]domain.Rate),
		contributions: make(map[string][]domain.Coin),
		whitelist:     make(map[string]bool),
	}
}

// clone deep-copies the data so a transaction can work on it in isolation.
func (d *saleData) clone() *saleData {
	out := newSaleData()
	if d.config != nil {
		cfg := copyConfig(d.config)
		out.config = &cfg
	}
	if d.state != nil {
		st := *d.state
		out.state = &st
	}
	if d.version != nil {
		v := *d.version
		out.version = &v
	}
	for k, v := range d.rates {
		out.rates[k] = v
	}
	for k, v := range d.contributions {
		out.contributions[k] = domain.CopyCoins(v)
	}
	for k, v := range d.whitelist {
		out.whitelist[k] = v
	}
	return out
}

func copyConfig(c *domain.Config) domain.Config {
	cfg := *c
	cfg.AcceptedDenoms = append([]string(nil), c.AcceptedDenoms...)
	return cfg
}

// SaleStore is an in-memory implementation of storage.Store.
// A transaction holds the store lock from Begin until Commit or Rollback.
type SaleStore struct {
	mu   sync.Mutex
	data *saleData
}

// NewSaleStore creates a new in-memory sale store.
func NewSaleStore() *SaleStore {
	return &SaleStore{
		data: newSaleData(),
	}
}

// Begin starts a transaction on a private copy of the data.
func (s *SaleStore) Begin(ctx context.Context) (storage.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &saleTx{store: s, data: s.data.clone()}, nil
}

// saleTx is a transaction over SaleStore.
type saleTx struct {
	store *SaleStore
	data  *saleData
	done  bool
}

func (t *saleTx) check() error {
	if t.done {
		return storage.ErrTxDone
	}
	return nil
}

// GetConfig returns the sale configuration.
func (t *saleTx) GetConfig(_ context.Context) (*domain.Config, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if t.data.config == nil {
		return nil, storage.ErrNotFound
	}
	cfg := copyConfig(t.data.config)
	return &cfg, nil
}

// SaveConfig stores the sale configuration.
func (t *saleTx) SaveConfig(_ context.Context, c *domain.Config) error {
	if err := t.check(); err != nil {
		return err
	}
	if c == nil {
		return storage.ErrInvalidInput
	}
	cfg := copyConfig(c)
	t.data.config = &cfg
	return nil
}

// GetState returns the mutable sale state.
func (t *saleTx) GetState(_ context.Context) (*domain.SaleState, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if t.data.state == nil {
		return nil, storage.ErrNotFound
	}
	st := *t.data.state
	return &st, nil
}

// SaveState stores the mutable sale state.
func (t *saleTx) SaveState(_ context.Context, s *domain.SaleState) error {
	if err := t.check(); err != nil {
		return err
	}
	if s == nil || !s.Status.IsValid() {
		return storage.ErrInvalidInput
	}
	st := *s
	t.data.state = &st
	return nil
}

// GetRate returns the exchange rate of denom.
func (t *saleTx) GetRate(_ context.Context, denom string) (*domain.Rate, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	r, ok := t.data.rates[denom]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

// SaveRate stores an exchange rate.
func (t *saleTx) SaveRate(_ context.Context, r *domain.Rate) error {
	if err := t.check(); err != nil {
		return err
	}
	if r == nil || r.Denom == "" {
		return storage.ErrInvalidInput
	}
	t.data.rates[r.Denom] = *r
	return nil
}

// ListRates returns all exchange rates ordered by denom ASC.
func (t *saleTx) ListRates(_ context.Context) ([]*domain.Rate, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	result := make([]*domain.Rate, 0, len(t.data.rates))
	for _, r := range t.data.rates {
		rate := r
		result = append(result, &rate)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Denom < result[j].Denom
	})

	return result, nil
}

// GetContribution returns the ledger entry of account.
func (t *saleTx) GetContribution(_ context.Context, account string) (*domain.Contribution, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	coins, ok := t.data.contributions[account]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &domain.Contribution{Account: account, Coins: domain.CopyCoins(coins)}, nil
}

// SaveContribution replaces the ledger entry of c.Account.
func (t *saleTx) SaveContribution(_ context.Context, c *domain.Contribution) error {
	if err := t.check(); err != nil {
		return err
	}
	if c == nil || c.Account == "" {
		return storage.ErrInvalidInput
	}
	t.data.contributions[c.Account] = domain.CopyCoins(c.Coins)
	return nil
}

// DeleteContribution removes the ledger entry of account.
func (t *saleTx) DeleteContribution(_ context.Context, account string) error {
	if err := t.check(); err != nil {
		return err
	}
	delete(t.data.contributions, account)
	return nil
}

// IsWhitelisted reports whether account is on the whitelist.
func (t *saleTx) IsWhitelisted(_ context.Context, account string) (bool, error) {
	if err := t.check(); err != nil {
		return false, err
	}
	return t.data.whitelist[account], nil
}

// SetWhitelisted adds account to the whitelist.
func (t *saleTx) SetWhitelisted(_ context.Context, account string) error {
	if err := t.check(); err != nil {
		return err
	}
	if account == "" {
		return storage.ErrInvalidInput
	}
	t.data.whitelist[account] = true
	return nil
}

// RemoveWhitelisted removes account from the whitelist.
func (t *saleTx) RemoveWhitelisted(_ context.Context, account string) error {
	if err := t.check(); err != nil {
		return err
	}
	delete(t.data.whitelist, account)
	return nil
}

// GetVersion returns the recorded contract version.
func (t *saleTx) GetVersion(_ context.Context) (*domain.ContractVersion, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if t.data.version == nil {
		return nil, storage.ErrNotFound
	}
	v := *t.data.version
	return &v, nil
}

// SaveVersion records the contract version.
func (t *saleTx) SaveVersion(_ context.Context, v *domain.ContractVersion) error {
	if err := t.check(); err != nil {
		return err
	}
	if v == nil {
		return storage.ErrInvalidInput
	}
	ver := *v
	t.data.version = &ver
	return nil
}

// Commit publishes the transaction's copy and releases the store.
func (t *saleTx) Commit(_ context.Context) error {
	if err := t.check(); err != nil {
		return err
	}
	t.store.data = t.data
	t.done = true
	t.store.mu.Unlock()
	return nil
}

// Rollback discards the transaction's copy and releases the store.
func (t *saleTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

// Verify interface compliance at compile time.
var (
	_ storage.Store = (*SaleStore)(nil)
	_ storage.Tx    = (*saleTx)(nil)
)
