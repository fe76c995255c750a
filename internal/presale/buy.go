package presale

import (
	"context"
	"errors"
	"fmt"

	"presale-ledger/internal/domain"
	"presale-ledger/internal/storage"
)

// Buy records the single coin attached to the call as a contribution of
// the sender.
func (c *Contract) Buy(ctx context.Context, tx storage.Tx, env Env, info Info) (*Response, error) {
	cfg, st, err := AdvanceLifecycle(ctx, tx, env.Now)
	if err != nil {
		return nil, err
	}

	if st.Paused {
		return nil, ErrPaused
	}
	if err := checkOpen(cfg, st, env.Now); err != nil {
		return nil, err
	}

	if len(info.Funds) != 1 {
		return nil, ErrInvalidPayment
	}
	payment := info.Funds[0]
	if payment.Amount.IsZero() {
		return nil, ErrInvalidZeroAmount
	}
	if !domain.IsWholeAmount(payment.Amount) {
		return nil, ErrInvalidAmount
	}

	if !cfg.IsAccepted(payment.Denom) {
		return nil, &UnacceptedDenomError{Denom: payment.Denom}
	}
	rate, err := tx.GetRate(ctx, payment.Denom)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &UnacceptedDenomError{Denom: payment.Denom}
	}
	if err != nil {
		return nil, fmt.Errorf("load rate: %w", err)
	}

	if cfg.RequireWhitelist {
		ok, err := tx.IsWhitelisted(ctx, info.Sender)
		if err != nil {
			return nil, fmt.Errorf("load whitelist: %w", err)
		}
		if !ok {
			return nil, ErrNotWhitelisted
		}
	}

	value := ValueOf(payment.Amount, rate.Rate)

	total := st.TotalRaised.Add(value)
	if total.GreaterThan(cfg.HardCap) {
		return nil, ErrHardCapReached
	}

	entry, err := contribution(ctx, tx, info.Sender)
	if err != nil {
		return nil, err
	}
	prior, err := Valuation(ctx, tx, entry.Coins)
	if err != nil {
		return nil, err
	}
	if prior.Add(value).GreaterThan(cfg.MaxContributionPerUser) {
		return nil, ErrUserCapExceeded
	}

	entry.Coins = domain.MergeCoin(entry.Coins, payment)
	if err := tx.SaveContribution(ctx, entry); err != nil {
		return nil, fmt.Errorf("save contribution: %w", err)
	}

	st.TotalRaised = total
	if total.Equal(cfg.HardCap) {
		st.Status = domain.StatusSucceeded
	}
	if err := tx.SaveState(ctx, st); err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}

	return newResponse(string(ActionBuy)).
		attr("buyer", info.Sender).
		attr("paid_denom", payment.Denom).
		attr("paid_amount", payment.Amount.String()).
		attr("value_added", value.String()).
		attr("total_raised", total.String()), nil
}

// checkOpen fails unless the sale accepts contributions at now.
func checkOpen(cfg *domain.Config, st *domain.SaleState, now uint64) error {
	switch st.Status {
	case domain.StatusPending:
		return ErrSaleNotActive
	case domain.StatusActive:
		if now >= cfg.EndTime {
			return ErrSaleEnded
		}
		return nil
	case domain.StatusSucceeded:
		if now < cfg.EndTime {
			return ErrHardCapReached
		}
	}
	return ErrSaleEnded
}
