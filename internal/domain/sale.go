package domain

import "github.com/shopspring/decimal"

// Config holds the sale parameters fixed at instantiation.
// Only Admin may change afterwards, through an explicit rotation.
type Config struct {
	Admin                  string          `json:"admin"`
	TokenAddress           string          `json:"token_address"`
	AcceptedDenoms         []string        `json:"accepted_denoms"`
	StartTime              uint64          `json:"start_time"` // unix seconds
	EndTime                uint64          `json:"end_time"`   // unix seconds
	SoftCap                decimal.Decimal `json:"soft_cap"`
	HardCap                decimal.Decimal `json:"hard_cap"`
	MaxContributionPerUser decimal.Decimal `json:"max_contribution_per_user"`
	TokenPrice             decimal.Decimal `json:"token_price"` // accounting units per whole token
	RequireWhitelist       bool            `json:"require_whitelist"`
}

// IsAccepted reports whether denom is in the accepted list.
func (c *Config) IsAccepted(denom string) bool {
	for _, d := range c.AcceptedDenoms {
		if d == denom {
			return true
		}
	}
	return false
}

// Rate is the value of 1,000,000 smallest units of Denom in accounting units.
type Rate struct {
	Denom string          `json:"denom"`
	Rate  decimal.Decimal `json:"rate"`
}

// SaleState is the mutable part of a sale.
type SaleState struct {
	TotalRaised decimal.Decimal `json:"total_raised"`
	Status      SaleStatus      `json:"status"`
	Paused      bool            `json:"paused"`
}

// Contribution is the raw ledger entry of one account.
// Coins keeps the denoms in order of first contribution.
type Contribution struct {
	Account string `json:"account"`
	Coins   []Coin `json:"coins"`
}

// IsEmpty reports whether the entry holds nothing to settle.
func (c *Contribution) IsEmpty() bool {
	return c == nil || len(c.Coins) == 0
}

// ContractVersion records which code version wrote the state.
type ContractVersion struct {
	Contract string `json:"contract"`
	Version  string `json:"version"`
}
