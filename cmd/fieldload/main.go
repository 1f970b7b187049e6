package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"fieldload/adapters/catalog"
	"fieldload/adapters/postgres"
	"fieldload/app"
	"fieldload/internal/config"
	"fieldload/internal/convert"
	"fieldload/internal/diaglog"
	"fieldload/internal/errors"
	"fieldload/internal/migration"
	"fieldload/internal/report"
	"fieldload/ports"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	rootCmd := &cobra.Command{
		Use:          "fieldload",
		Short:        "Bulk-load field values from a spreadsheet into the catalog",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newLoadCmd(),
		newConvertCmd(),
		newMigrateCmd(),
		newRunsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadFlags are command-line overrides of the environment configuration
type loadFlags struct {
	workers  int
	pageSize int
	envID    string
	field    string
	report   string
	dryRun   bool
}

func newLoadCmd() *cobra.Command {
	var flags loadFlags

	cmd := &cobra.Command{
		Use:   "load [file]",
		Short: "Upsert every distinct value of a spreadsheet",
		Long: `Read a spreadsheet (xlsx or csv) with the columns valor, sigla and filtro
and create one field value per distinct row.

Connection settings come from the environment (or .env):
- USER, PASSWORD: catalog credentials
- CLIENT, MODE: tenant and environment (MODE=dev targets homologation)
- SERVER_URL: explicit server root, overrides CLIENT/MODE
- ENV_ID, METADATA_NAME: target environment and field
- EXCEL_FILE (default: data/values.xlsx)

Example: fieldload load data/states.xlsx --workers 10 --report run.html`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyLoadFlags(cfg, flags, args)
			if err := cfg.ValidateForLoad(); err != nil {
				return err
			}
			return runLoad(cmd.Context(), cfg, flags)
		},
	}

	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Concurrent requests (default: WORKERS or 10)")
	cmd.Flags().IntVar(&flags.pageSize, "page-size", 0, "Rows read per page (default: PAGE_SIZE or 1000)")
	cmd.Flags().StringVar(&flags.envID, "env-id", "", "Environment id (default: ENV_ID)")
	cmd.Flags().StringVar(&flags.field, "field", "", "Field name (default: METADATA_NAME)")
	cmd.Flags().StringVar(&flags.report, "report", "", "Write an HTML run report to this path")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Build and deduplicate requests without sending them")
	return cmd
}

// applyLoadFlags overrides cfg with every flag or argument that was given
func applyLoadFlags(cfg *config.Config, flags loadFlags, args []string) {
	if len(args) > 0 && args[0] != "" {
		cfg.Load.SourceFile = args[0]
	}
	if flags.workers > 0 {
		cfg.Load.Workers = flags.workers
	}
	if flags.pageSize > 0 {
		cfg.Load.PageSize = flags.pageSize
	}
	if flags.envID != "" {
		cfg.Load.EnvironmentID = flags.envID
	}
	if flags.field != "" {
		cfg.Load.FieldName = flags.field
	}
}

func runLoad(ctx context.Context, cfg *config.Config, flags loadFlags) error {
	logger, err := diaglog.Open(cfg.Logging.File, diaglog.ParseLevel(cfg.Logging.Level))
	if err != nil {
		return err
	}
	defer logger.Close()

	var requester ports.Requester
	if flags.dryRun {
		log.Println("Dry run: no request will be sent")
		requester = catalog.DryRun{Logger: logger}
	} else {
		requester = catalog.NewClient(catalog.ClientConfig{
			Authorization: cfg.Catalog.Authorization(),
			ContentType:   cfg.Catalog.ContentType,
			RatePerSecond: cfg.Catalog.RatePerSecond,
			Timeout:       cfg.Catalog.Timeout,
		}, nil)
	}

	runs, closeRuns := openRunRepository(cfg)
	defer closeRuns()

	svc := app.NewLoadService(requester, runs, logger)
	summary, err := svc.Load(ctx, app.LoadRequest{
		SourceFile:    cfg.Load.SourceFile,
		BaseURL:       cfg.Catalog.BaseURL(),
		EnvironmentID: cfg.Load.EnvironmentID,
		FieldName:     cfg.Load.FieldName,
		PageSize:      cfg.Load.PageSize,
		Workers:       cfg.Load.Workers,
	})
	if err != nil {
		return err
	}

	report.WriteConsole(os.Stdout, summary)
	if flags.report != "" {
		if err := report.WriteHTML(flags.report, summary); err != nil {
			log.Printf("Warning: %v", err)
		} else {
			fmt.Printf("Report written to %s\n", flags.report)
		}
	}
	fmt.Printf("Check %s for details of run %s\n", cfg.Logging.File, summary.RunID)
	return nil
}

// openRunRepository returns the postgres ledger when DATABASE_URL is set.
// A database that cannot be reached disables the ledger instead of failing
// the run.
func openRunRepository(cfg *config.Config) (ports.RunRepository, func()) {
	if cfg.Database.URL == "" {
		return postgres.NopRunRepository{}, func() {}
	}
	db, err := connectDatabase(cfg)
	if err != nil {
		log.Printf("Warning: run ledger disabled: %v", err)
		return postgres.NopRunRepository{}, func() {}
	}
	return postgres.NewRunRepository(db), func() { db.Close() }
}

func connectDatabase(cfg *config.Config) (*sqlx.DB, error) {
	if cfg.Database.URL == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	return db, nil
}

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <json-dir> <out.xlsx>",
		Short: "Build a values spreadsheet from exported component JSON files",
		Long: `Read every .json file in json-dir and write the filtro/valor pairs found
under conjunto_componente to a spreadsheet. Files that fail to decode are skipped.

Example: fieldload convert data/conjunto_componente output.xlsx`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := convert.ToSpreadsheet(args[0], args[1])
			if err != nil {
				return err
			}
			for _, skipped := range result.Skipped {
				fmt.Printf("Skipped %s: %s\n", skipped.Path, skipped.Reason)
			}
			if !result.Written {
				fmt.Println("No data found in the JSON files.")
				return nil
			}
			fmt.Printf("Wrote %d rows from %d files to %s\n", result.Rows, result.Files, args[1])
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the run ledger schema in DATABASE_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := connectDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			runner := migration.NewRunner()
			if err := runner.Run(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Printf("Run ledger schema at version %s\n", runner.Version())
			return nil
		},
	}
}

func newRunsCmd() *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent load runs from the run ledger, or show one with --id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := connectDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := app.NewLoadService(nil, postgres.NewRunRepository(db), nil)
			if runID != "" {
				run, err := svc.FindRun(cmd.Context(), runID)
				if err != nil {
					return err
				}
				fmt.Printf("Run %s (%s, env=%s field=%q, started %s)\n",
					run.RunID, run.Source, run.EnvironmentID, run.FieldName, run.StartedAt.Format(time.RFC3339))
				report.WriteConsole(os.Stdout, *run)
				return nil
			}

			runs, err := svc.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Printf("%s  %s  env=%s field=%q rows=%d sent=%d dup=%d empty=%d errors=%d (%s)\n",
					r.RunID, r.StartedAt.Format(time.RFC3339), r.EnvironmentID, r.FieldName,
					r.RowsSeen, r.UniqueSent, r.DuplicatesSkipped, r.SkippedEmpty, r.Errors, r.Source)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	cmd.Flags().StringVar(&runID, "id", "", "Show a single run")
	return cmd
}
