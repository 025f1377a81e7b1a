// cmd/tools/backfill-runner/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"dealflow-workers/internal/backfill"
	"dealflow-workers/internal/common/config"
	"dealflow-workers/internal/common/database"
	"dealflow-workers/internal/common/logger"
)

func main() {
	dedupCmd := flag.NewFlagSet("dedup-buyers", flag.ExitOnError)
	statesCmd := flag.NewFlagSet("normalize-states", flag.ExitOnError)
	categoriesCmd := flag.NewFlagSet("standardize-categories", flag.ExitOnError)

	dedupDryRun := dedupCmd.Bool("dry-run", false, "Plan merges and print the summary without writing")
	dedupBatch := dedupCmd.Int("batch", 0, "Rows per batch (0 uses the default)")
	dedupConfig := dedupCmd.String("config", "", "Config file path (default: discovered config.yaml)")

	statesDryRun := statesCmd.Bool("dry-run", false, "Count rewrites without writing")
	statesBatch := statesCmd.Int("batch", 0, "Rows per batch (0 uses the default)")
	statesConfig := statesCmd.String("config", "", "Config file path (default: discovered config.yaml)")

	categoriesDryRun := categoriesCmd.Bool("dry-run", false, "Count rewrites without writing")
	categoriesBatch := categoriesCmd.Int("batch", 0, "Rows per batch (0 uses the default)")
	categoriesConfig := categoriesCmd.String("config", "", "Config file path (default: discovered config.yaml)")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "dedup-buyers":
		dedupCmd.Parse(os.Args[2:])
		run("dedup-buyers", *dedupConfig, backfill.Options{DryRun: *dedupDryRun, BatchSize: *dedupBatch},
			func(ctx context.Context, r *backfill.Runner, opts backfill.Options) (*backfill.Summary, error) {
				return r.DedupBuyers(ctx, opts)
			})

	case "normalize-states":
		statesCmd.Parse(os.Args[2:])
		run("normalize-states", *statesConfig, backfill.Options{DryRun: *statesDryRun, BatchSize: *statesBatch},
			func(ctx context.Context, r *backfill.Runner, opts backfill.Options) (*backfill.Summary, error) {
				return r.NormalizeStates(ctx, opts)
			})

	case "standardize-categories":
		categoriesCmd.Parse(os.Args[2:])
		run("standardize-categories", *categoriesConfig, backfill.Options{DryRun: *categoriesDryRun, BatchSize: *categoriesBatch},
			func(ctx context.Context, r *backfill.Runner, opts backfill.Options) (*backfill.Summary, error) {
				return r.StandardizeListingCategories(ctx, opts)
			})

	case "help":
		fallthrough
	default:
		help()
	}
}

func run(name, configPath string, opts backfill.Options, pass func(context.Context, *backfill.Runner, backfill.Options) (*backfill.Summary, error)) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	dbClient, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		fmt.Printf("Error connecting to PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := dbClient.Ping(ctx); err != nil {
		fmt.Printf("Error pinging PostgreSQL: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	runner := backfill.NewRunner(dbClient.GetDB(), log)

	start := time.Now()
	summary, err := pass(ctx, runner, opts)
	if err != nil {
		// A partial summary still tells the operator how far the pass got.
		if summary != nil {
			printSummary(name, opts, summary, time.Since(start))
		}
		fmt.Printf("Error running %s: %v\n", name, err)
		os.Exit(1)
	}

	printSummary(name, opts, summary, time.Since(start))
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func printSummary(name string, opts backfill.Options, summary *backfill.Summary, took time.Duration) {
	data, _ := json.MarshalIndent(summary, "", "  ")
	mode := "applied"
	if opts.DryRun {
		mode = "dry-run"
	}
	fmt.Printf("%s (%s) finished in %s\n%s\n", name, mode, took.Round(time.Millisecond), data)
}

func help() {
	fmt.Print(`
Usage: backfill-runner <command> [flags]

Commands:
  dedup-buyers            Merge duplicate buyer rows (same normalized company name within a firm)
  normalize-states        Rewrite geography values to USPS codes on buyers and listings
  standardize-categories  Fold listing categories into the canonical service vocabulary
  help                    Show this help message

Flags (all commands):
  -dry-run   Report what the pass would change without writing
  -batch     Rows per batch (0 uses the default)
  -config    Config file path (default: discovered config.yaml)

Examples:
  backfill-runner dedup-buyers -dry-run
  backfill-runner normalize-states -batch 200
  backfill-runner standardize-categories -config configs/config.staging.yaml

Each applied change writes an audit entry; re-running a pass is safe.
`)
}
