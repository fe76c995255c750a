// Package presale implements the sale state machine: contributions in
// several currencies, lifecycle advancement and settlement.
//
// Every handler works inside one storage.Tx supplied by the caller and
// returns a Response carrying at most one outgoing transfer. Executing that
// transfer and committing the transaction is the host's job.
package presale

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"presale-ledger/internal/account"
	"presale-ledger/internal/domain"
	"presale-ledger/internal/storage"
)

// Contract identity recorded at instantiation.
const (
	ContractName    = "presale-ledger"
	ContractVersion = "v1.0.0"
)

// Env is the host-supplied execution environment of one call.
type Env struct {
	Now      uint64 // unix seconds
	Contract string // escrow address of the sale
}

// Info identifies the caller and the funds attached to the call.
type Info struct {
	Sender string
	Funds  []domain.Coin
}

// Response is the result of a successful operation.
type Response struct {
	Attrs    []domain.Attribute
	Messages []domain.Message
}

func newResponse(action string) *Response {
	return &Response{Attrs: []domain.Attribute{{Key: "action", Value: action}}}
}

func (r *Response) attr(key, value string) *Response {
	r.Attrs = append(r.Attrs, domain.Attribute{Key: key, Value: value})
	return r
}

func (r *Response) message(m domain.Message) *Response {
	r.Messages = append(r.Messages, m)
	return r
}

// Querier reads balances held outside the sale state.
type Querier interface {
	// BankBalance returns the native balance of address in denom.
	BankBalance(ctx context.Context, address, denom string) (decimal.Decimal, error)
	// TokenBalance returns the balance of address in the token contract.
	TokenBalance(ctx context.Context, token, address string) (decimal.Decimal, error)
}

// Contract executes sale operations against a transaction.
type Contract struct {
	querier Querier
}

// New creates a Contract that reads external balances through q.
func New(q Querier) *Contract {
	return &Contract{querier: q}
}

// Action names a mutating operation.
type Action string

const (
	ActionBuy                 Action = "buy"
	ActionClaimTokens         Action = "claim_tokens"
	ActionRequestRefund       Action = "request_refund"
	ActionEndSale             Action = "end_sale"
	ActionAddToWhitelist      Action = "add_to_whitelist"
	ActionRemoveFromWhitelist Action = "remove_from_whitelist"
	ActionReclaimUnsoldTokens Action = "reclaim_unsold_tokens"
	ActionWithdrawFunds       Action = "withdraw_funds"
	ActionUpdateAdmin         Action = "update_admin"
	ActionUpdatePause         Action = "update_pause"
)

// IsValid checks if the action is known.
func (a Action) IsValid() bool {
	switch a {
	case ActionBuy, ActionClaimTokens, ActionRequestRefund, ActionEndSale,
		ActionAddToWhitelist, ActionRemoveFromWhitelist, ActionReclaimUnsoldTokens,
		ActionWithdrawFunds, ActionUpdateAdmin, ActionUpdatePause:
		return true
	}
	return false
}

// AdvancesLifecycle reports whether the action evaluates the lifecycle
// before running.
func (a Action) AdvancesLifecycle() bool {
	switch a {
	case ActionBuy, ActionClaimTokens, ActionRequestRefund, ActionEndSale,
		ActionReclaimUnsoldTokens, ActionWithdrawFunds:
		return true
	}
	return false
}

// ExecuteMsg is a mutating request. Only the fields of Action are read.
type ExecuteMsg struct {
	Action   Action   `json:"action" validate:"required"`
	Accounts []string `json:"accounts,omitempty"`  // whitelist operations
	NewAdmin string   `json:"new_admin,omitempty"` // update_admin
	Paused   bool     `json:"paused,omitempty"`    // update_pause
}

// Execute dispatches msg to its handler.
func (c *Contract) Execute(ctx context.Context, tx storage.Tx, env Env, info Info, msg ExecuteMsg) (*Response, error) {
	switch msg.Action {
	case ActionBuy:
		return c.Buy(ctx, tx, env, info)
	case ActionClaimTokens:
		return c.ClaimTokens(ctx, tx, env, info)
	case ActionRequestRefund:
		return c.RequestRefund(ctx, tx, env, info)
	case ActionEndSale:
		return c.EndSale(ctx, tx, env, info)
	case ActionAddToWhitelist:
		return c.AddToWhitelist(ctx, tx, info, msg.Accounts)
	case ActionRemoveFromWhitelist:
		return c.RemoveFromWhitelist(ctx, tx, info, msg.Accounts)
	case ActionReclaimUnsoldTokens:
		return c.ReclaimUnsoldTokens(ctx, tx, env, info)
	case ActionWithdrawFunds:
		return c.WithdrawFunds(ctx, tx, env, info)
	case ActionUpdateAdmin:
		return c.UpdateAdmin(ctx, tx, info, msg.NewAdmin)
	case ActionUpdatePause:
		return c.UpdatePause(ctx, tx, info, msg.Paused)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, msg.Action)
}

func loadConfig(ctx context.Context, tx storage.Tx) (*domain.Config, error) {
	cfg, err := tx.GetConfig(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotInstantiated
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func loadState(ctx context.Context, tx storage.Tx) (*domain.SaleState, error) {
	st, err := tx.GetState(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotInstantiated
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return st, nil
}

// authorize loads the config and checks that sender is its current admin.
func authorize(ctx context.Context, tx storage.Tx, sender string) (*domain.Config, error) {
	cfg, err := loadConfig(ctx, tx)
	if err != nil {
		return nil, err
	}
	if sender != cfg.Admin {
		return nil, ErrUnauthorized
	}
	return cfg, nil
}

func validateAddresses(addrs []string) error {
	for _, a := range addrs {
		if err := account.Validate(a); err != nil {
			return err
		}
	}
	return nil
}
