// Package simulation replays a scripted sequence of sale calls against
// in-memory stores and a manual clock.
package simulation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"presale-ledger/internal/config"
	"presale-ledger/internal/domain"
	"presale-ledger/internal/presale"
)

// ErrInvalidScenario wraps every scenario validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

var validate = validator.New()

// Step is one call of a scenario.
type Step struct {
	At       int64          `json:"at" validate:"gte=0"` // unix seconds
	Sender   string         `json:"sender" validate:"required"`
	Action   presale.Action `json:"action" validate:"required"`
	Funds    []domain.Coin  `json:"funds,omitempty"`
	Accounts []string       `json:"accounts,omitempty"`
	NewAdmin string         `json:"new_admin,omitempty"`
	Paused   bool           `json:"paused,omitempty"`
	Expect   string         `json:"expect,omitempty"` // expected error text, empty for success
}

// Scenario is a sale definition plus the calls made against it.
type Scenario struct {
	Sale        *config.Sale
	EscrowLabel string
	Steps       []Step
}

type scenarioFile struct {
	Sale        json.RawMessage `json:"sale" validate:"required"`
	EscrowLabel string          `json:"escrow_label"`
	Steps       []Step          `json:"steps" validate:"required,min=1,dive"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario. Steps must be ordered by time.
func ParseScenario(data []byte) (*Scenario, error) {
	var f scenarioFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}

	sale, err := config.ParseSale(f.Sale)
	if err != nil {
		return nil, err
	}

	for i := 1; i < len(f.Steps); i++ {
		if f.Steps[i].At < f.Steps[i-1].At {
			return nil, fmt.Errorf("%w: step %d at %d is before step %d at %d",
				ErrInvalidScenario, i, f.Steps[i].At, i-1, f.Steps[i-1].At)
		}
	}

	label := f.EscrowLabel
	if label == "" {
		label = "default"
	}
	return &Scenario{Sale: sale, EscrowLabel: label, Steps: f.Steps}, nil
}
