package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/fintally/fintally/internal/config"
	"github.com/fintally/fintally/internal/domain"
	"github.com/fintally/fintally/internal/importer"
	"github.com/fintally/fintally/internal/logging"
	"github.com/fintally/fintally/internal/registry"
	"github.com/fintally/fintally/internal/rules"
	"github.com/fintally/fintally/internal/scanner"
	"github.com/fintally/fintally/internal/seed"
	"github.com/fintally/fintally/internal/store"
	"github.com/fintally/fintally/internal/ui"
)

const version = "0.1.0"

var (
	// Global flags
	versionFlag = flag.Bool("version", false, "Show version")
	verbose     = flag.Bool("verbose", false, "Show detailed logs")
	configPath  = flag.String("config", "", "Config file path (YAML)")
	dbPath      = flag.String("db", "", "Database file path (overrides config)")

	// Actions
	initFlag   = flag.Bool("init", false, "Initialize the database schema and seed data")
	importFile = flag.String("import", "", "Import a single statement file")
	importDir  = flag.String("import-dir", "", "Import every recognized statement file in a directory")
	applyRules = flag.Bool("apply-rules", false, "Re-run category rules over uncategorized transactions")
	listFlag   = flag.Bool("imports", false, "Show import history")

	// Modifiers
	seedFile  = flag.String("seed-file", "", "Custom seed YAML for -init (default: built-in)")
	accountID = flag.Int64("account", 0, "Existing account id to import into (default: derive from file)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `fintally - Bank statement import and categorization

Usage:
  fintally [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Initialize the database with default categories and rules
  fintally -init

  # Import one statement
  fintally -import ~/Downloads/Chase1234_Activity.csv

  # Import everything in a directory
  fintally -import-dir ~/statements

  # Re-categorize after editing the rule table
  fintally -apply-rules

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("fintally version %s\n", version)
		os.Exit(0)
	}

	if !*initFlag && *importFile == "" && *importDir == "" && !*applyRules && !*listFlag {
		fmt.Fprintf(os.Stderr, "Error: no action given\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.Default(*verbose)
	ctx = logging.WithContext(ctx, log)

	cfgPath := configPathOrDefault()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *seedFile != "" {
		cfg.SeedFile = *seedFile
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	if *initFlag {
		if err := initDatabase(ctx, st, cfg); err != nil {
			return err
		}
		// First init also materializes the config file.
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			if err := cfg.Save(cfgPath); err != nil {
				return err
			}
			ui.Info(fmt.Sprintf("Wrote config to %s", cfgPath))
		}
	}

	if *importFile != "" {
		if err := importOne(ctx, st, log, *importFile); err != nil {
			return err
		}
	}

	if *importDir != "" {
		if err := importAll(ctx, st, log, *importDir); err != nil {
			return err
		}
	}

	if *applyRules {
		updated, err := rules.ApplyToUncategorized(ctx, st)
		if err != nil {
			return err
		}
		ui.Success(fmt.Sprintf("Recategorized %d transactions", updated))
	}

	if *listFlag {
		if err := showImports(ctx, st); err != nil {
			return err
		}
	}

	return nil
}

func configPathOrDefault() string {
	if *configPath != "" {
		return *configPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "fintally.yaml"
	}
	return home + "/.fintally/config.yaml"
}

func initDatabase(ctx context.Context, st *store.Store, cfg *config.Config) error {
	data, err := loadSeed(cfg)
	if err != nil {
		return err
	}
	seeded, err := st.Seed(ctx, data)
	if err != nil {
		return err
	}
	if seeded {
		ui.Success(fmt.Sprintf("Database initialized with seed data at %s", cfg.DatabasePath))
	} else {
		ui.Info(fmt.Sprintf("Database already initialized at %s", cfg.DatabasePath))
	}
	return nil
}

func loadSeed(cfg *config.Config) (*seed.Data, error) {
	if cfg.SeedFile != "" {
		return seed.FromFile(cfg.SeedFile)
	}
	return seed.Default()
}

func importOne(ctx context.Context, st *store.Store, log zerolog.Logger, path string) error {
	im := importer.New(registry.New(), st, log)

	summary, err := im.ImportFile(ctx, path, *accountID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownFormat) {
			ui.Error(fmt.Sprintf("No parser recognizes %s", path))
		}
		return err
	}

	printSummary(summary)
	return nil
}

func importAll(ctx context.Context, st *store.Store, log zerolog.Logger, dir string) error {
	reg := registry.New()

	ui.Header("Importing Statements")
	ui.Step(1, 2, "Scanning directory")

	files, err := scanner.Scan(dir, reg)
	if err != nil {
		return err
	}
	recognized := scanner.Recognized(files)
	ui.Success(fmt.Sprintf("Found %d statement files (%d recognized)", len(files), len(recognized)))

	if len(recognized) == 0 {
		return fmt.Errorf("no importable statement files found in %s", dir)
	}

	ui.Step(2, 2, "Importing")
	im := importer.New(reg, st, log)

	failures := 0
	for _, f := range recognized {
		summary, err := im.ImportFile(ctx, f.Path, *accountID)
		if err != nil {
			// One bad file should not stop the batch, but a canceled
			// context should.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ui.Error(fmt.Sprintf("%s: %v", f.Path, err))
			failures++
			continue
		}
		printSummary(summary)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d files failed to import", failures, len(recognized))
	}
	return nil
}

func printSummary(s *importer.Summary) {
	msg := fmt.Sprintf("%s: %d imported, %d duplicates (%s)",
		ui.BlueText(s.Filename), s.Imported, s.Duplicates, s.Status)
	switch s.Status {
	case domain.StatusSuccess:
		ui.Success(msg)
	case domain.StatusPartial:
		ui.Warning(msg)
	default:
		ui.Error(msg)
	}
	for _, e := range s.Errors {
		ui.Info(e)
	}
}

func showImports(ctx context.Context, st *store.Store) error {
	records, err := st.ListImports(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		ui.Info("No imports yet")
		return nil
	}
	for _, rec := range records {
		status := rec.Status
		if status != domain.StatusSuccess {
			status = ui.YellowText(status)
		}
		fmt.Printf("%-20s %-30s %-12s %5d %s\n",
			rec.ImportedAt.Format("2006-01-02 15:04:05"),
			rec.Filename, rec.Institution, rec.TransactionCount, status)
	}
	return nil
}
