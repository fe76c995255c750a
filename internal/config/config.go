// Package config loads server settings and sale definitions.
//
// Settings come from flags whose defaults are read from the environment,
// optionally seeded from a .env file. The sale itself is described by a
// JSON file holding the instantiation parameters and the genesis balances
// of the in-memory ledger.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"presale-ledger/internal/domain"
	"presale-ledger/internal/ledger"
	"presale-ledger/internal/presale"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// Server holds the settings of cmd/server.
type Server struct {
	HTTPAddr      string `validate:"required"`
	PostgresDSN   string `validate:"required_without=UseMemory"`
	ClickhouseDSN string `validate:"required_without=UseMemory"`
	UseMemory     bool
	SaleFile      string `validate:"required"`
	EscrowLabel   string `validate:"required"`
	JWTSecret     string `validate:"required,min=16"`
	LogLevel      string `validate:"oneof=trace debug info warn error"`
}

// LoadServer parses args with defaults taken from getenv.
func LoadServer(args []string, getenv func(string) string) (*Server, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	cfg := &Server{}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", envOr(getenv, "HTTP_ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	fs.StringVar(&cfg.ClickhouseDSN, "clickhouse-dsn", getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	fs.BoolVar(&cfg.UseMemory, "use-memory", getenv("USE_MEMORY") == "true", "Use in-memory storage instead of PostgreSQL and ClickHouse")
	fs.StringVar(&cfg.SaleFile, "sale", envOr(getenv, "SALE_FILE", "sale.json"), "Sale definition JSON file")
	fs.StringVar(&cfg.EscrowLabel, "escrow-label", envOr(getenv, "ESCROW_LABEL", "default"), "Seed label of the sale escrow address")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", getenv("JWT_SECRET"), "HMAC secret for bearer tokens")
	fs.StringVar(&cfg.LogLevel, "log-level", envOr(getenv, "LOG_LEVEL", "info"), "Log level (trace, debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Level returns the parsed zerolog level.
func (s *Server) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Balance is a genesis bank balance.
type Balance struct {
	Account string        `json:"account" validate:"required"`
	Coins   []domain.Coin `json:"coins" validate:"required,min=1,dive"`
}

// Sale is the content of a sale definition file.
type Sale struct {
	Instantiate presale.InstantiateMsg `json:"instantiate"`
	TokenSupply decimal.Decimal        `json:"token_supply"`
	Genesis     []Balance              `json:"genesis" validate:"dive"`
}

// LoadSale reads and validates a sale definition.
func LoadSale(path string) (*Sale, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sale file: %w", err)
	}
	return ParseSale(data)
}

// ParseSale decodes and validates a sale definition.
func ParseSale(data []byte) (*Sale, error) {
	var sale Sale
	if err := json.Unmarshal(data, &sale); err != nil {
		return nil, fmt.Errorf("decode sale: %w", err)
	}
	if err := validate.Struct(&sale); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := sale.Instantiate.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if !domain.IsWholeAmount(sale.TokenSupply) {
		return nil, fmt.Errorf("%w: token supply must be a whole non-negative amount", ErrInvalidConfig)
	}
	for _, b := range sale.Genesis {
		for _, c := range b.Coins {
			if c.Denom == "" || !domain.IsWholeAmount(c.Amount) || c.Amount.IsZero() {
				return nil, fmt.Errorf("%w: genesis balance of %s: bad coin %s%s", ErrInvalidConfig, b.Account, c.Amount, c.Denom)
			}
		}
	}
	return &sale, nil
}

// Seed mints the genesis balances into bank and creates the sale token
// with its whole supply held by escrow.
func (s *Sale) Seed(bank *ledger.MemoryBank, tokens *ledger.MemoryTokens, escrow string) error {
	if s.TokenSupply.IsPositive() {
		if err := tokens.Create(s.Instantiate.TokenAddress, escrow, s.TokenSupply); err != nil {
			return fmt.Errorf("create token: %w", err)
		}
	}
	for _, b := range s.Genesis {
		if err := bank.Mint(b.Account, b.Coins...); err != nil {
			return fmt.Errorf("mint genesis balance of %s: %w", b.Account, err)
		}
	}
	return nil
}

// LoadEnvFile loads variables from path if it exists.
// Variables already set in the environment win.
func LoadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

func envOr(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}
