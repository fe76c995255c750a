package simulation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"presale-ledger/internal/account"
	"presale-ledger/internal/domain"
	"presale-ledger/internal/host"
	"presale-ledger/internal/ledger"
	"presale-ledger/internal/presale"
	"presale-ledger/internal/storage/memory"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Index   int                `json:"index"`
	At      int64              `json:"at"`
	Action  presale.Action     `json:"action"`
	Sender  string             `json:"sender"`
	Error   string             `json:"error,omitempty"`
	Expect  string             `json:"expect,omitempty"`
	Matched bool               `json:"matched"` // outcome agrees with Expect
	Attrs   []domain.Attribute `json:"attributes,omitempty"`
}

// Report summarizes a scenario run.
type Report struct {
	Escrow         string            `json:"escrow"`
	Steps          []StepResult      `json:"steps"`
	Mismatches     int               `json:"mismatches"`
	Config         *domain.Config    `json:"config"`
	State          *domain.SaleState `json:"state"`
	EscrowBalances []domain.Coin     `json:"escrow_balances"`
	EscrowTokens   decimal.Decimal   `json:"escrow_tokens"`
}

// Runner executes scenarios.
type Runner struct {
	logger zerolog.Logger
}

// NewRunner creates a simulation runner.
func NewRunner(logger zerolog.Logger) *Runner {
	return &Runner{logger: logger.With().Str("component", "simulation").Logger()}
}

// Run instantiates the sale at the time of the first step, then runs every
// step with the clock set to its time. Step failures are recorded, not
// returned; only setup failures abort the run.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	msg := sc.Sale.Instantiate

	escrow, err := account.DeriveSaleAddress(msg.TokenAddress, sc.EscrowLabel)
	if err != nil {
		return nil, fmt.Errorf("derive escrow address: %w", err)
	}

	bank := ledger.NewMemoryBank()
	tokens := ledger.NewMemoryTokens()
	if err := sc.Sale.Seed(bank, tokens, escrow); err != nil {
		return nil, fmt.Errorf("seed ledger: %w", err)
	}

	clock := host.NewManualClock(time.Unix(sc.Steps[0].At, 0))
	h, err := host.New(ctx, host.Options{
		Store:   memory.NewSaleStore(),
		Events:  memory.NewEventStore(),
		Bank:    bank,
		Tokens:  tokens,
		Address: escrow,
		Clock:   clock,
		Logger:  r.logger,
	})
	if err != nil {
		return nil, err
	}

	if _, err := h.Instantiate(ctx, msg.Admin, msg); err != nil {
		return nil, fmt.Errorf("instantiate: %w", err)
	}

	report := &Report{Escrow: escrow}
	for i, step := range sc.Steps {
		clock.Set(time.Unix(step.At, 0))

		ev, err := h.Execute(ctx, step.Sender, step.Funds, presale.ExecuteMsg{
			Action:   step.Action,
			Accounts: step.Accounts,
			NewAdmin: step.NewAdmin,
			Paused:   step.Paused,
		})

		res := StepResult{
			Index:  i,
			At:     step.At,
			Action: step.Action,
			Sender: step.Sender,
			Expect: step.Expect,
		}
		if err != nil {
			res.Error = err.Error()
			res.Matched = step.Expect != "" && strings.Contains(res.Error, step.Expect)
		} else {
			res.Attrs = ev.Attrs
			res.Matched = step.Expect == ""
		}
		if !res.Matched {
			report.Mismatches++
			r.logger.Warn().
				Int("step", i).
				Str("action", string(step.Action)).
				Str("error", res.Error).
				Str("expect", step.Expect).
				Msg("Step outcome differs from expectation")
		}
		report.Steps = append(report.Steps, res)
	}

	if report.Config, err = h.Config(ctx); err != nil {
		return nil, err
	}
	if report.State, err = h.State(ctx); err != nil {
		return nil, err
	}
	report.EscrowBalances = bank.AllBalances(escrow)
	if sc.Sale.TokenSupply.IsPositive() {
		if report.EscrowTokens, err = tokens.BalanceOf(ctx, msg.TokenAddress, escrow); err != nil {
			return nil, err
		}
	}

	return report, nil
}
