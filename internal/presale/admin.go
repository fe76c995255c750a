package presale

import (
	"context"
	"fmt"
	"strconv"

	"presale-ledger/internal/account"
	"presale-ledger/internal/storage"
)

// EndSale evaluates the lifecycle on behalf of the admin and reports the
// resulting status.
func (c *Contract) EndSale(ctx context.Context, tx storage.Tx, env Env, info Info) (*Response, error) {
	if _, err := authorize(ctx, tx, info.Sender); err != nil {
		return nil, err
	}
	_, st, err := AdvanceLifecycle(ctx, tx, env.Now)
	if err != nil {
		return nil, err
	}
	return newResponse("admin_end_sale").
		attr("final_status", st.Status.String()), nil
}

// AddToWhitelist marks every account as whitelisted.
func (c *Contract) AddToWhitelist(ctx context.Context, tx storage.Tx, info Info, accounts []string) (*Response, error) {
	if _, err := authorize(ctx, tx, info.Sender); err != nil {
		return nil, err
	}
	if err := validateAddresses(accounts); err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if err := tx.SetWhitelisted(ctx, a); err != nil {
			return nil, fmt.Errorf("whitelist %s: %w", a, err)
		}
	}
	return newResponse(string(ActionAddToWhitelist)).
		attr("count", strconv.Itoa(len(accounts))), nil
}

// RemoveFromWhitelist removes every account from the whitelist.
func (c *Contract) RemoveFromWhitelist(ctx context.Context, tx storage.Tx, info Info, accounts []string) (*Response, error) {
	if _, err := authorize(ctx, tx, info.Sender); err != nil {
		return nil, err
	}
	if err := validateAddresses(accounts); err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if err := tx.RemoveWhitelisted(ctx, a); err != nil {
			return nil, fmt.Errorf("unwhitelist %s: %w", a, err)
		}
	}
	return newResponse(string(ActionRemoveFromWhitelist)).
		attr("count", strconv.Itoa(len(accounts))), nil
}

// UpdateAdmin hands the admin role to newAdmin.
func (c *Contract) UpdateAdmin(ctx context.Context, tx storage.Tx, info Info, newAdmin string) (*Response, error) {
	cfg, err := authorize(ctx, tx, info.Sender)
	if err != nil {
		return nil, err
	}
	if err := account.Validate(newAdmin); err != nil {
		return nil, err
	}
	cfg.Admin = newAdmin
	if err := tx.SaveConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save config: %w", err)
	}
	return newResponse(string(ActionUpdateAdmin)).
		attr("new_admin", newAdmin), nil
}

// UpdatePause sets the paused flag. Only buys are blocked while paused.
func (c *Contract) UpdatePause(ctx context.Context, tx storage.Tx, info Info, paused bool) (*Response, error) {
	if _, err := authorize(ctx, tx, info.Sender); err != nil {
		return nil, err
	}
	st, err := loadState(ctx, tx)
	if err != nil {
		return nil, err
	}
	st.Paused = paused
	if err := tx.SaveState(ctx, st); err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}
	return newResponse(string(ActionUpdatePause)).
		attr("paused", strconv.FormatBool(paused)), nil
}
