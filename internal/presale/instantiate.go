package presale

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"presale-ledger/internal/account"
	"presale-ledger/internal/domain"
	"presale-ledger/internal/storage"
)

// InstantiateMsg holds the parameters of a new sale.
type InstantiateMsg struct {
	Admin                  string          `json:"admin" validate:"required"`
	TokenAddress           string          `json:"token_address" validate:"required"`
	AcceptedRates          []domain.Rate   `json:"accepted_rates" validate:"dive"`
	StartTime              uint64          `json:"start_time"`
	EndTime                uint64          `json:"end_time"`
	SoftCap                decimal.Decimal `json:"soft_cap"`
	HardCap                decimal.Decimal `json:"hard_cap"`
	MaxContributionPerUser decimal.Decimal `json:"max_contribution_per_user"`
	TokenPrice             decimal.Decimal `json:"token_price"`
	RequireWhitelist       bool            `json:"require_whitelist"`
}

// Validate checks msg without touching storage.
func (msg *InstantiateMsg) Validate() error {
	if msg.StartTime >= msg.EndTime {
		return &ConfigError{Details: "start time must be before end time"}
	}
	if msg.EndTime > math.MaxInt64 {
		return &ConfigError{Details: "end time out of range"}
	}
	for _, d := range []decimal.Decimal{msg.SoftCap, msg.HardCap, msg.MaxContributionPerUser, msg.TokenPrice} {
		if !domain.IsWholeAmount(d) {
			return ErrInvalidAmount
		}
	}
	if msg.SoftCap.GreaterThan(msg.HardCap) {
		return &ConfigError{Details: "soft cap cannot be greater than hard cap"}
	}
	if msg.SoftCap.IsZero() || msg.HardCap.IsZero() || msg.MaxContributionPerUser.IsZero() || msg.TokenPrice.IsZero() {
		return ErrInvalidZeroAmount
	}
	if len(msg.AcceptedRates) == 0 {
		return &ConfigError{Details: "at least one accepted rate must be provided"}
	}
	seen := make(map[string]bool, len(msg.AcceptedRates))
	for _, r := range msg.AcceptedRates {
		if r.Denom == "" {
			return &ConfigError{Details: "rate denom must not be empty"}
		}
		if seen[r.Denom] {
			return &ConfigError{Details: fmt.Sprintf("duplicate rate for %s", r.Denom)}
		}
		seen[r.Denom] = true
		if !domain.IsWholeAmount(r.Rate) {
			return ErrInvalidAmount
		}
		if r.Rate.IsZero() {
			return ErrInvalidZeroAmount
		}
	}
	if err := account.Validate(msg.Admin); err != nil {
		return err
	}
	return account.Validate(msg.TokenAddress)
}

// Instantiate creates the sale in a fresh store.
func Instantiate(ctx context.Context, tx storage.Tx, msg InstantiateMsg) (*Response, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if _, err := tx.GetConfig(ctx); err == nil {
		return nil, ErrAlreadyInstantiated
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := tx.SaveVersion(ctx, &domain.ContractVersion{Contract: ContractName, Version: ContractVersion}); err != nil {
		return nil, fmt.Errorf("save version: %w", err)
	}

	denoms := make([]string, 0, len(msg.AcceptedRates))
	for _, r := range msg.AcceptedRates {
		rate := r
		if err := tx.SaveRate(ctx, &rate); err != nil {
			return nil, fmt.Errorf("save rate: %w", err)
		}
		denoms = append(denoms, r.Denom)
	}

	cfg := &domain.Config{
		Admin:                  msg.Admin,
		TokenAddress:           msg.TokenAddress,
		AcceptedDenoms:         denoms,
		StartTime:              msg.StartTime,
		EndTime:                msg.EndTime,
		SoftCap:                msg.SoftCap,
		HardCap:                msg.HardCap,
		MaxContributionPerUser: msg.MaxContributionPerUser,
		TokenPrice:             msg.TokenPrice,
		RequireWhitelist:       msg.RequireWhitelist,
	}
	if err := tx.SaveConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save config: %w", err)
	}

	st := &domain.SaleState{TotalRaised: decimal.Zero, Status: domain.StatusPending}
	if err := tx.SaveState(ctx, st); err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}

	return newResponse("instantiate"), nil
}
