// Package main runs a sale behind the HTTP API:
// - Storage: in-memory, or PostgreSQL (sale state) + ClickHouse (event log)
// - Ledger: in-memory bank and token service seeded from the sale file
// - API: mutations, queries, /ws/events, /health, /metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"presale-ledger/internal/account"
	"presale-ledger/internal/api"
	"presale-ledger/internal/config"
	"presale-ledger/internal/domain"
	"presale-ledger/internal/host"
	"presale-ledger/internal/ledger"
	"presale-ledger/internal/presale"
	"presale-ledger/internal/storage"
	"presale-ledger/internal/storage/memory"
	"presale-ledger/internal/storage/migrations"
	chstore "presale-ledger/internal/storage/clickhouse"
	pgstore "presale-ledger/internal/storage/postgres"
)

func main() {
	config.LoadEnvFile(".env")

	cfg, err := config.LoadServer(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(cfg.Level())
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cancel, cfg); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Shutdown complete")
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Server) error {
	sale, err := config.LoadSale(cfg.SaleFile)
	if err != nil {
		return err
	}

	escrow, err := account.DeriveSaleAddress(sale.Instantiate.TokenAddress, cfg.EscrowLabel)
	if err != nil {
		return fmt.Errorf("derive escrow address: %w", err)
	}

	bank := ledger.NewMemoryBank()
	tokens := ledger.NewMemoryTokens()
	if err := sale.Seed(bank, tokens, escrow); err != nil {
		return fmt.Errorf("seed ledger: %w", err)
	}

	store, events, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer cleanup()

	hub := api.NewHub(api.DefaultHubConfig(), log.Logger)
	defer hub.Close()

	h, err := host.New(ctx, host.Options{
		Store:     store,
		Events:    events,
		Bank:      bank,
		Tokens:    tokens,
		Address:   escrow,
		Publisher: hub,
		Logger:    log.Logger.With().Str("component", "host").Logger(),
	})
	if err != nil {
		return err
	}

	_, err = h.Instantiate(ctx, sale.Instantiate.Admin, sale.Instantiate)
	switch {
	case errors.Is(err, presale.ErrAlreadyInstantiated):
		st, err := h.State(ctx)
		if err != nil {
			return fmt.Errorf("load sale state: %w", err)
		}
		log.Info().Str("status", string(st.Status)).Msg("Resuming existing sale")
		if reseededOverProgress(cfg.UseMemory, st) {
			log.Warn().
				Str("escrow", escrow).
				Str("total_raised", st.TotalRaised.String()).
				Msg("Ledger balances were re-seeded from the sale file; escrow does not hold funds contributed before the restart")
		}
	case err != nil:
		return fmt.Errorf("instantiate sale: %w", err)
	default:
		log.Info().
			Str("escrow", escrow).
			Str("token", sale.Instantiate.TokenAddress).
			Msg("Sale instantiated")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(h, hub, api.NewAuthenticator([]byte(cfg.JWTSecret)), log.Logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Received signal, initiating graceful shutdown")
	case err := <-errCh:
		cancel()
		return fmt.Errorf("http server: %w", err)
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}

// reseededOverProgress reports whether a durable sale has recorded progress
// that the freshly seeded ledger cannot back.
func reseededOverProgress(useMemory bool, st *domain.SaleState) bool {
	if useMemory {
		return false
	}
	return st.Status != domain.StatusPending || st.TotalRaised.IsPositive()
}

// createStores opens the sale store and event log.
func createStores(ctx context.Context, cfg *config.Server) (storage.Store, storage.EventStore, func(), error) {
	if cfg.UseMemory {
		log.Warn().Msg("Using in-memory storage, state is lost on exit")
		return memory.NewSaleStore(), memory.NewEventStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return pgstore.NewSaleStore(pool), chstore.NewEventStore(chConn), cleanup, nil
}
