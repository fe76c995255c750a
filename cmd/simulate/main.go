// Package main runs a sale scenario against in-memory stores and prints
// the outcome of every step and the final sale state.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"presale-ledger/internal/simulation"
)

func main() {
	scenarioPath := flag.String("scenario", "", "Scenario JSON file (required)")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	verbose := flag.Bool("v", false, "Log every operation")

	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if *scenarioPath == "" {
		log.Fatal().Msg("--scenario is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("Received signal, shutting down")
		cancel()
	}()

	sc, err := simulation.LoadScenario(*scenarioPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load scenario")
	}

	report, err := simulation.NewRunner(log.Logger).Run(ctx, sc)
	if err != nil {
		log.Fatal().Err(err).Msg("Simulation failed")
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	} else {
		printReport(report)
	}

	if report.Mismatches > 0 {
		os.Exit(1)
	}
}

func printReport(r *simulation.Report) {
	fmt.Printf("=== Steps ===\n")
	for _, s := range r.Steps {
		mark := "ok"
		if !s.Matched {
			mark = "MISMATCH"
		}
		outcome := "committed"
		if s.Error != "" {
			outcome = "rejected: " + s.Error
		}
		fmt.Printf("[%s] #%d %-22s %s %s\n",
			time.Unix(s.At, 0).UTC().Format(time.RFC3339), s.Index, s.Action, outcome, mark)
	}

	fmt.Printf("\n=== Sale ===\n")
	fmt.Printf("Escrow:        %s\n", r.Escrow)
	fmt.Printf("Status:        %s\n", r.State.Status)
	fmt.Printf("Total raised:  %s\n", r.State.TotalRaised)
	fmt.Printf("Paused:        %v\n", r.State.Paused)
	fmt.Printf("Escrow tokens: %s\n", r.EscrowTokens)
	for _, c := range r.EscrowBalances {
		fmt.Printf("Escrow coins:  %s%s\n", c.Amount, c.Denom)
	}
	fmt.Printf("Mismatches:    %d\n", r.Mismatches)
}
