package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presale-ledger/internal/ledger"
	"presale-ledger/internal/presale"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string {
		return vars[key]
	}
}

func TestLoadServer_Defaults(t *testing.T) {
	cfg, err := LoadServer([]string{"-use-memory"}, env(map[string]string{
		"JWT_SECRET": "0123456789abcdef",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "sale.json", cfg.SaleFile)
	assert.Equal(t, "default", cfg.EscrowLabel)
	assert.True(t, cfg.UseMemory)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestLoadServer_FlagsOverrideEnv(t *testing.T) {
	cfg, err := LoadServer([]string{"-http-addr", ":9999", "-log-level", "debug"}, env(map[string]string{
		"HTTP_ADDR":      ":7000",
		"POSTGRES_DSN":   "postgres://u:p@localhost:5432/presale",
		"CLICKHOUSE_DSN": "clickhouse://localhost:9000/presale",
		"JWT_SECRET":     "0123456789abcdef",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.False(t, cfg.UseMemory)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
}

func TestLoadServer_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		vars map[string]string
	}{
		{
			name: "missing DSNs without memory mode",
			vars: map[string]string{"JWT_SECRET": "0123456789abcdef"},
		},
		{
			name: "short secret",
			args: []string{"-use-memory"},
			vars: map[string]string{"JWT_SECRET": "short"},
		},
		{
			name: "unknown log level",
			args: []string{"-use-memory", "-log-level", "loud"},
			vars: map[string]string{"JWT_SECRET": "0123456789abcdef"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadServer(tt.args, env(tt.vars))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

const saleJSON = `{
	"instantiate": {
		"admin": "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi",
		"token_address": "8qbHbw2BbbTHBW1sbeqakYXVKRQM8Ne7pLK7m6CVfeR",
		"accepted_rates": [
			{"denom": "uusdc", "rate": "1000000"},
			{"denom": "uatom", "rate": "7000000"}
		],
		"start_time": 1000,
		"end_time": 2000,
		"soft_cap": "100000000000",
		"hard_cap": "500000000000",
		"max_contribution_per_user": "200000000000",
		"token_price": "10000",
		"require_whitelist": true
	},
	"token_supply": "50000000000000",
	"genesis": [
		{
			"account": "CktRuQ2mttgRGkXJtyksdKHjUdc2C4TgDzyB98oEzy8",
			"coins": [{"denom": "uusdc", "amount": "1000000000000"}]
		}
	]
}`

func TestParseSale(t *testing.T) {
	sale, err := ParseSale([]byte(saleJSON))
	require.NoError(t, err)

	msg := sale.Instantiate
	assert.Equal(t, "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi", msg.Admin)
	require.Len(t, msg.AcceptedRates, 2)
	assert.Equal(t, "uatom", msg.AcceptedRates[1].Denom)
	assert.Equal(t, "500000000000", msg.HardCap.String())
	assert.True(t, msg.RequireWhitelist)
	assert.Equal(t, "50000000000000", sale.TokenSupply.String())
	require.Len(t, sale.Genesis, 1)
	assert.Equal(t, "1000000000000", sale.Genesis[0].Coins[0].Amount.String())
}

func TestParseSale_Rejects(t *testing.T) {
	t.Run("malformed json", func(t *testing.T) {
		_, err := ParseSale([]byte(`{`))
		assert.Error(t, err)
	})

	t.Run("missing admin", func(t *testing.T) {
		_, err := ParseSale([]byte(`{"instantiate": {"token_address": "x"}}`))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("window reversed", func(t *testing.T) {
		_, err := ParseSale([]byte(`{"instantiate": {
			"admin": "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi",
			"token_address": "8qbHbw2BbbTHBW1sbeqakYXVKRQM8Ne7pLK7m6CVfeR",
			"accepted_rates": [{"denom": "uusdc", "rate": "1000000"}],
			"start_time": 2000, "end_time": 1000,
			"soft_cap": "1", "hard_cap": "2", "max_contribution_per_user": "1", "token_price": "1"
		}}`))
		assert.ErrorIs(t, err, ErrInvalidConfig)
		var cfgErr *presale.ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("empty genesis coins", func(t *testing.T) {
		_, err := ParseSale([]byte(`{"instantiate": {
			"admin": "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi",
			"token_address": "8qbHbw2BbbTHBW1sbeqakYXVKRQM8Ne7pLK7m6CVfeR",
			"accepted_rates": [{"denom": "uusdc", "rate": "1000000"}],
			"start_time": 1000, "end_time": 2000,
			"soft_cap": "1", "hard_cap": "2", "max_contribution_per_user": "1", "token_price": "1"
		}, "genesis": [{"account": "CktRuQ2mttgRGkXJtyksdKHjUdc2C4TgDzyB98oEzy8", "coins": []}]}`))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestLoadSale_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sale.json")
	require.NoError(t, os.WriteFile(path, []byte(saleJSON), 0o644))

	sale, err := LoadSale(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), sale.Instantiate.EndTime)

	_, err = LoadSale(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nPRESALE_TEST_A=from-file\nPRESALE_TEST_B=\"quoted\"\nnot a pair\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("PRESALE_TEST_A", "from-env")
	t.Setenv("PRESALE_TEST_B", "")

	LoadEnvFile(path)

	assert.Equal(t, "from-env", os.Getenv("PRESALE_TEST_A"))
	assert.Equal(t, "quoted", os.Getenv("PRESALE_TEST_B"))
}

func TestSale_Seed(t *testing.T) {
	sale, err := ParseSale([]byte(saleJSON))
	require.NoError(t, err)

	bank := ledger.NewMemoryBank()
	tokens := ledger.NewMemoryTokens()
	escrow := "EscrowAddr"

	require.NoError(t, sale.Seed(bank, tokens, escrow))

	ctx := context.Background()
	held, err := tokens.BalanceOf(ctx, sale.Instantiate.TokenAddress, escrow)
	require.NoError(t, err)
	assert.Equal(t, "50000000000000", held.String())

	bal, err := bank.Balance(ctx, "CktRuQ2mttgRGkXJtyksdKHjUdc2C4TgDzyB98oEzy8", "uusdc")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000", bal.String())

	assert.Error(t, sale.Seed(bank, tokens, escrow), "token can only be created once")
}
