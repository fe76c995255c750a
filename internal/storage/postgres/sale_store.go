package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"presale-ledger/internal/domain"
	"presale-ledger/internal/observability"
	"presale-ledger/internal/storage"
)

// saleLockKey is the advisory lock that serializes sale transactions.
const saleLockKey = 0x70726573616c65 // "presale"

// SaleStore implements storage.Store using PostgreSQL.
type SaleStore struct {
	pool *Pool
}

// NewSaleStore creates a new SaleStore.
func NewSaleStore(pool *Pool) *SaleStore {
	return &SaleStore{pool: pool}
}

// Compile-time interface checks.
var (
	_ storage.Store = (*SaleStore)(nil)
	_ storage.Tx    = (*saleTx)(nil)
)

// Begin starts a transaction holding the sale advisory lock until it ends.
func (s *SaleStore) Begin(ctx context.Context) (storage.Tx, error) {
	start := time.Now()
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		observability.RecordDBQuery("postgres", "begin", time.Since(start).Seconds(), err)
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(saleLockKey))
	observability.RecordDBQuery("postgres", "begin", time.Since(start).Seconds(), err)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("acquire sale lock: %w", err)
	}
	return &saleTx{tx: tx}, nil
}

// saleTx is a transaction over SaleStore.
type saleTx struct {
	tx   pgx.Tx
	done bool
}

func (t *saleTx) check() error {
	if t.done {
		return storage.ErrTxDone
	}
	return nil
}

// GetConfig returns the sale configuration.
func (t *saleTx) GetConfig(ctx context.Context) (*domain.Config, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	query := `
		SELECT admin, token_address, accepted_denoms, start_time, end_time,
			soft_cap::text, hard_cap::text, max_contribution_per_user::text, token_price::text,
			require_whitelist
		FROM sale_config
		WHERE id = 1
	`

	var (
		c                                domain.Config
		start, end                       int64
		softCap, hardCap, maxUser, price string
	)
	err := t.tx.QueryRow(ctx, query).Scan(
		&c.Admin, &c.TokenAddress, &c.AcceptedDenoms, &start, &end,
		&softCap, &hardCap, &maxUser, &price,
		&c.RequireWhitelist,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get config: %w", err)
	}

	c.StartTime = uint64(start)
	c.EndTime = uint64(end)
	if c.SoftCap, err = parseAmount(softCap); err != nil {
		return nil, err
	}
	if c.HardCap, err = parseAmount(hardCap); err != nil {
		return nil, err
	}
	if c.MaxContributionPerUser, err = parseAmount(maxUser); err != nil {
		return nil, err
	}
	if c.TokenPrice, err = parseAmount(price); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveConfig stores the sale configuration.
func (t *saleTx) SaveConfig(ctx context.Context, c *domain.Config) error {
	if err := t.check(); err != nil {
		return err
	}
	if c == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO sale_config (
			id, admin, token_address, accepted_denoms, start_time, end_time,
			soft_cap, hard_cap, max_contribution_per_user, token_price, require_whitelist
		) VALUES (1, $1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10)
		ON CONFLICT (id) DO UPDATE SET
			admin = EXCLUDED.admin,
			token_address = EXCLUDED.token_address,
			accepted_denoms = EXCLUDED.accepted_denoms,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			soft_cap = EXCLUDED.soft_cap,
			hard_cap = EXCLUDED.hard_cap,
			max_contribution_per_user = EXCLUDED.max_contribution_per_user,
			token_price = EXCLUDED.token_price,
			require_whitelist = EXCLUDED.require_whitelist,
			updated_at = now()
	`

	_, err := t.tx.Exec(ctx, query,
		c.Admin,
		c.TokenAddress,
		c.AcceptedDenoms,
		int64(c.StartTime),
		int64(c.EndTime),
		c.SoftCap.String(),
		c.HardCap.String(),
		c.MaxContributionPerUser.String(),
		c.TokenPrice.String(),
		c.RequireWhitelist,
	)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// GetState returns the mutable sale state.
func (t *saleTx) GetState(ctx context.Context) (*domain.SaleState, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	var (
		st     domain.SaleState
		raised string
		status string
	)
	err := t.tx.QueryRow(ctx, `SELECT total_raised::text, status, paused FROM sale_state WHERE id = 1`).
		Scan(&raised, &status, &st.Paused)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get state: %w", err)
	}

	st.Status = domain.SaleStatus(status)
	if st.TotalRaised, err = parseAmount(raised); err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveState stores the mutable sale state.
func (t *saleTx) SaveState(ctx context.Context, s *domain.SaleState) error {
	if err := t.check(); err != nil {
		return err
	}
	if s == nil || !s.Status.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO sale_state (id, total_raised, status, paused)
		VALUES (1, $1::numeric, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			total_raised = EXCLUDED.total_raised,
			status = EXCLUDED.status,
			paused = EXCLUDED.paused,
			updated_at = now()
	`

	if _, err := t.tx.Exec(ctx, query, s.TotalRaised.String(), string(s.Status), s.Paused); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// GetRate returns the exchange rate of denom.
func (t *saleTx) GetRate(ctx context.Context, denom string) (*domain.Rate, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	var rate string
	err := t.tx.QueryRow(ctx, `SELECT rate::text FROM exchange_rates WHERE denom = $1`, denom).Scan(&rate)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get rate: %w", err)
	}

	r := &domain.Rate{Denom: denom}
	if r.Rate, err = parseAmount(rate); err != nil {
		return nil, err
	}
	return r, nil
}

// SaveRate stores an exchange rate.
func (t *saleTx) SaveRate(ctx context.Context, r *domain.Rate) error {
	if err := t.check(); err != nil {
		return err
	}
	if r == nil || r.Denom == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO exchange_rates (denom, rate) VALUES ($1, $2::numeric)
		ON CONFLICT (denom) DO UPDATE SET rate = EXCLUDED.rate
	`
	if _, err := t.tx.Exec(ctx, query, r.Denom, r.Rate.String()); err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: rate of %s must be positive", storage.ErrInvalidInput, r.Denom)
		}
		return fmt.Errorf("save rate: %w", err)
	}
	return nil
}

// ListRates returns all exchange rates ordered by denom ASC.
func (t *saleTx) ListRates(ctx context.Context) ([]*domain.Rate, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	rows, err := t.tx.Query(ctx, `SELECT denom, rate::text FROM exchange_rates ORDER BY denom ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	defer rows.Close()

	var rates []*domain.Rate
	for rows.Next() {
		var denom, rate string
		if err := rows.Scan(&denom, &rate); err != nil {
			return nil, fmt.Errorf("scan rate row: %w", err)
		}
		amount, err := parseAmount(rate)
		if err != nil {
			return nil, err
		}
		rates = append(rates, &domain.Rate{Denom: denom, Rate: amount})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rate rows: %w", err)
	}
	return rates, nil
}

// GetContribution returns the ledger entry of account.
func (t *saleTx) GetContribution(ctx context.Context, account string) (*domain.Contribution, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	query := `
		SELECT denom, amount::text
		FROM contributions
		WHERE account = $1
		ORDER BY line_no ASC
	`

	rows, err := t.tx.Query(ctx, query, account)
	if err != nil {
		return nil, fmt.Errorf("get contribution: %w", err)
	}
	defer rows.Close()

	entry := &domain.Contribution{Account: account}
	for rows.Next() {
		var denom, amount string
		if err := rows.Scan(&denom, &amount); err != nil {
			return nil, fmt.Errorf("scan contribution row: %w", err)
		}
		d, err := parseAmount(amount)
		if err != nil {
			return nil, err
		}
		entry.Coins = append(entry.Coins, domain.Coin{Denom: denom, Amount: d})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contribution rows: %w", err)
	}
	if len(entry.Coins) == 0 {
		return nil, storage.ErrNotFound
	}
	return entry, nil
}

// SaveContribution replaces the ledger entry of c.Account.
func (t *saleTx) SaveContribution(ctx context.Context, c *domain.Contribution) error {
	if err := t.check(); err != nil {
		return err
	}
	if c == nil || c.Account == "" {
		return storage.ErrInvalidInput
	}

	if _, err := t.tx.Exec(ctx, `DELETE FROM contributions WHERE account = $1`, c.Account); err != nil {
		return fmt.Errorf("clear contribution: %w", err)
	}

	batch := &pgx.Batch{}
	for i, coin := range c.Coins {
		batch.Queue(`
			INSERT INTO contributions (account, denom, amount, line_no)
			VALUES ($1, $2, $3::numeric, $4)
		`, c.Account, coin.Denom, coin.Amount.String(), i)
	}
	if batch.Len() == 0 {
		return nil
	}

	br := t.tx.SendBatch(ctx, batch)
	for range c.Coins {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if isDuplicateKeyError(err) {
				return fmt.Errorf("%w: repeated denom in contribution", storage.ErrInvalidInput)
			}
			return fmt.Errorf("insert contribution line: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	return nil
}

// DeleteContribution removes the ledger entry of account.
func (t *saleTx) DeleteContribution(ctx context.Context, account string) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM contributions WHERE account = $1`, account); err != nil {
		return fmt.Errorf("delete contribution: %w", err)
	}
	return nil
}

// IsWhitelisted reports whether account is on the whitelist.
func (t *saleTx) IsWhitelisted(ctx context.Context, account string) (bool, error) {
	if err := t.check(); err != nil {
		return false, err
	}

	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM whitelist WHERE account = $1)`, account).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check whitelist: %w", err)
	}
	return exists, nil
}

// SetWhitelisted adds account to the whitelist.
func (t *saleTx) SetWhitelisted(ctx context.Context, account string) error {
	if err := t.check(); err != nil {
		return err
	}
	if account == "" {
		return storage.ErrInvalidInput
	}
	if _, err := t.tx.Exec(ctx, `INSERT INTO whitelist (account) VALUES ($1) ON CONFLICT DO NOTHING`, account); err != nil {
		return fmt.Errorf("add to whitelist: %w", err)
	}
	return nil
}

// RemoveWhitelisted removes account from the whitelist.
func (t *saleTx) RemoveWhitelisted(ctx context.Context, account string) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM whitelist WHERE account = $1`, account); err != nil {
		return fmt.Errorf("remove from whitelist: %w", err)
	}
	return nil
}

// GetVersion returns the recorded contract version.
func (t *saleTx) GetVersion(ctx context.Context) (*domain.ContractVersion, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	var v domain.ContractVersion
	err := t.tx.QueryRow(ctx, `SELECT contract, version FROM contract_version WHERE id = 1`).Scan(&v.Contract, &v.Version)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get version: %w", err)
	}
	return &v, nil
}

// SaveVersion records the contract version.
func (t *saleTx) SaveVersion(ctx context.Context, v *domain.ContractVersion) error {
	if err := t.check(); err != nil {
		return err
	}
	if v == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO contract_version (id, contract, version) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET contract = EXCLUDED.contract, version = EXCLUDED.version
	`
	if _, err := t.tx.Exec(ctx, query, v.Contract, v.Version); err != nil {
		return fmt.Errorf("save version: %w", err)
	}
	return nil
}

// Commit commits the transaction.
func (t *saleTx) Commit(ctx context.Context) error {
	if err := t.check(); err != nil {
		return err
	}
	t.done = true
	start := time.Now()
	err := t.tx.Commit(ctx)
	observability.RecordDBQuery("postgres", "commit", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. No-op once finished.
func (t *saleTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// parseAmount decodes a NUMERIC rendered as text.
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d, nil
}
