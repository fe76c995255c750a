package presale

import (
	"context"
	"fmt"

	"presale-ledger/internal/domain"
	"presale-ledger/internal/storage"
)

// ClaimTokens pays out the sender's token allocation of a succeeded sale.
func (c *Contract) ClaimTokens(ctx context.Context, tx storage.Tx, env Env, info Info) (*Response, error) {
	cfg, st, err := AdvanceLifecycle(ctx, tx, env.Now)
	if err != nil {
		return nil, err
	}
	switch st.Status {
	case domain.StatusSucceeded:
	case domain.StatusFailed:
		return nil, ErrSoftCapNotReached
	default:
		return nil, ErrSaleStillActive
	}

	entry, err := contribution(ctx, tx, info.Sender)
	if err != nil {
		return nil, err
	}
	value, err := Valuation(ctx, tx, entry.Coins)
	if err != nil {
		return nil, err
	}
	if value.IsZero() {
		return nil, ErrNothingToClaim
	}

	amount := Allocation(value, cfg.TokenPrice)
	if err := tx.DeleteContribution(ctx, info.Sender); err != nil {
		return nil, fmt.Errorf("delete contribution: %w", err)
	}

	return newResponse(string(ActionClaimTokens)).
		attr("claimer", info.Sender).
		attr("valuation", value.String()).
		attr("token_amount", amount.String()).
		message(domain.TokenTransfer(cfg.TokenAddress, info.Sender, amount)), nil
}

// RequestRefund returns every recorded coin of the sender after a failed sale.
func (c *Contract) RequestRefund(ctx context.Context, tx storage.Tx, env Env, info Info) (*Response, error) {
	_, st, err := AdvanceLifecycle(ctx, tx, env.Now)
	if err != nil {
		return nil, err
	}
	switch st.Status {
	case domain.StatusFailed:
	case domain.StatusSucceeded:
		return nil, ErrSaleDidNotFail
	default:
		return nil, ErrSaleStillActive
	}

	entry, err := contribution(ctx, tx, info.Sender)
	if err != nil {
		return nil, err
	}
	if entry.IsEmpty() {
		return nil, ErrNothingToRefund
	}

	if err := tx.DeleteContribution(ctx, info.Sender); err != nil {
		return nil, fmt.Errorf("delete contribution: %w", err)
	}

	return newResponse(string(ActionRequestRefund)).
		attr("refunded_to", info.Sender).
		attr("coins", formatCoins(entry.Coins)).
		message(domain.BankSend(info.Sender, entry.Coins)), nil
}

// WithdrawFunds sweeps the sale's balance of every accepted denom to the admin.
func (c *Contract) WithdrawFunds(ctx context.Context, tx storage.Tx, env Env, info Info) (*Response, error) {
	if _, err := authorize(ctx, tx, info.Sender); err != nil {
		return nil, err
	}
	cfg, st, err := AdvanceLifecycle(ctx, tx, env.Now)
	if err != nil {
		return nil, err
	}
	if st.Status != domain.StatusSucceeded {
		return nil, ErrSaleNotSucceeded
	}

	var coins []domain.Coin
	for _, denom := range cfg.AcceptedDenoms {
		bal, err := c.querier.BankBalance(ctx, env.Contract, denom)
		if err != nil {
			return nil, fmt.Errorf("query balance of %s: %w", denom, err)
		}
		if bal.IsPositive() {
			coins = append(coins, domain.Coin{Denom: denom, Amount: bal})
		}
	}
	if len(coins) == 0 {
		return nil, ErrNoFundsToWithdraw
	}

	return newResponse(string(ActionWithdrawFunds)).
		attr("recipient", cfg.Admin).
		attr("coins", formatCoins(coins)).
		message(domain.BankSend(cfg.Admin, coins)), nil
}

// ReclaimUnsoldTokens returns the sale's whole token balance to the admin
// once the sale is decided.
func (c *Contract) ReclaimUnsoldTokens(ctx context.Context, tx storage.Tx, env Env, info Info) (*Response, error) {
	if _, err := authorize(ctx, tx, info.Sender); err != nil {
		return nil, err
	}
	cfg, st, err := AdvanceLifecycle(ctx, tx, env.Now)
	if err != nil {
		return nil, err
	}
	if !st.Status.IsFinal() {
		return nil, ErrSaleStillActive
	}

	bal, err := c.querier.TokenBalance(ctx, cfg.TokenAddress, env.Contract)
	if err != nil {
		return nil, fmt.Errorf("query token balance: %w", err)
	}
	if !bal.IsPositive() {
		return nil, ErrNoTokensToReclaim
	}

	return newResponse(string(ActionReclaimUnsoldTokens)).
		attr("amount_reclaimed", bal.String()).
		message(domain.TokenTransfer(cfg.TokenAddress, cfg.Admin, bal)), nil
}

// formatCoins renders coins as "100uatom,5uosmo".
func formatCoins(coins []domain.Coin) string {
	s := ""
	for i, c := range coins {
		if i > 0 {
			s += ","
		}
		s += c.Amount.String() + c.Denom
	}
	return s
}
