package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/docmigrate/internal/config"
	"github.com/roach88/docmigrate/internal/encode"
	"github.com/roach88/docmigrate/internal/migrate"
	"github.com/roach88/docmigrate/internal/pgexec"
	"github.com/roach88/docmigrate/internal/schema"
)

const dryRunBanner = "This is a dry run - no data will be inserted. Pass --go to skip the dry run!"

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	Config          string
	Schema          string
	Source          string
	PGDSN           string
	PGSchema        string
	Go              bool
	Debug           bool
	ShowCreates     bool
	ShowFirstInsert bool
	Collections     []string
	Limit           int
	ConnectTimeout  time.Duration

	// Executor replaces the PostgreSQL connection (for testing).
	// If nil, --go connects with pgexec.
	Executor migrate.Executor
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return newMigrateCommand(&MigrateOptions{RootOptions: rootOpts})
}

func newMigrateCommand(opts *MigrateOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and load documents into PostgreSQL",
		Long: `Create one PostgreSQL table per schema collection and load its documents.

Collections are processed in schema order (or --collections order). Each
collection gets CREATE TABLE IF NOT EXISTS followed by a single multi-row
INSERT, with WAL logging and triggers switched off around the load.

Runs are dry by default: every statement is generated but none is executed.
When a run fails, the collections still to be processed are printed as a
ready-made --collections value.

The connection string comes from --pg-dsn or ` + pgexec.DSNEnv + `.

Example:
  docmigrate migrate --schema schema.yaml --source ./export --show-creates
  docmigrate migrate --schema schema.json --source docs.db --go
  docmigrate migrate --config migrate.yaml --collections=posts,comments --go`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to a YAML run configuration")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "path to the schema file (.json, .yaml, .cue)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "JSON-lines export directory or SQLite document store (.db)")
	cmd.Flags().StringVar(&opts.PGDSN, "pg-dsn", "", "PostgreSQL connection string (default $"+pgexec.DSNEnv+")")
	cmd.Flags().StringVar(&opts.PGSchema, "pg-schema", "", "PostgreSQL schema to create tables in")
	cmd.Flags().BoolVar(&opts.Go, "go", false, "execute statements (disables the dry run)")
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "log every statement")
	cmd.Flags().BoolVar(&opts.ShowCreates, "show-creates", false, "print each CREATE TABLE statement")
	cmd.Flags().BoolVar(&opts.ShowFirstInsert, "show-first-insert", false, "print the first INSERT row of each collection")
	cmd.Flags().StringSliceVar(&opts.Collections, "collections", nil, "only process these collections, in this order")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum documents per collection (0 = all)")
	cmd.Flags().DurationVar(&opts.ConnectTimeout, "connect-timeout", 10*time.Second, "PostgreSQL connect timeout")

	return cmd
}

func runMigrate(opts *MigrateOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Config != "" {
		cfg, err := config.Load(opts.Config)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to load config", err, nil)
		}
		applyConfig(cmd.Flags(), opts, cfg)
	}
	if err := checkMigrateOptions(opts); err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid options", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Debug || opts.Verbose)

	catalog, err := schema.LoadFile(opts.Schema)
	if err != nil {
		return schemaLoadFailed(formatter, ExitCommandError, err)
	}
	for _, issue := range encode.Lint(catalog) {
		logger.Warn("field has no encoding rule",
			"code", issue.Code,
			"collection", issue.Collection,
			"field", issue.Field,
			"detail", issue.Message)
	}

	src, err := openSource(opts.Source)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeSourceOpen, "failed to open source", err, nil)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			logger.Error("error closing source", "error", closeErr)
		}
	}()

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping after the current collection", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	runOpts := migrate.Options{
		DryRun:          !opts.Go,
		Debug:           opts.Debug,
		ShowDDL:         opts.ShowCreates,
		ShowFirstInsert: opts.ShowFirstInsert,
		Collections:     opts.Collections,
		Limit:           opts.Limit,
	}

	var exec migrate.Executor
	if runOpts.DryRun {
		formatter.Textf(dryRunBanner)
	} else {
		var closeExec func()
		exec, closeExec, err = openExecutor(ctx, opts, logger)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeDestination, "failed to connect to destination", err, nil)
		}
		defer closeExec()
	}

	// Previews go to stdout in text mode, stderr in JSON mode.
	preview := formatter.Writer
	if formatter.JSON() {
		preview = formatter.GetErrWriter()
	}

	orch, err := migrate.New(catalog, src, exec, runOpts,
		migrate.WithLogger(logger),
		migrate.WithPreview(preview))
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to start migration", err, nil)
	}

	selected := orch.Selected()
	formatter.Textf("Found %d collections: %s", len(selected), strings.Join(selected, ", "))

	report, err := orch.Run(ctx)
	if err != nil {
		return migrationFailed(formatter, orch.RunID(), err)
	}

	if formatter.JSON() {
		return formatter.Success(report)
	}
	if report.DryRun {
		formatter.Textf("Dry run complete: %d documents in %d collections (run %s)",
			report.TotalDocuments(), len(report.Collections), report.RunID)
	} else {
		formatter.Textf("Migrated %d documents in %d collections (run %s)",
			report.TotalDocuments(), len(report.Collections), report.RunID)
	}
	return nil
}

// applyConfig fills options from cfg wherever the flag was not set on the
// command line.
func applyConfig(flags *pflag.FlagSet, opts *MigrateOptions, cfg *config.Config) {
	setString := func(name string, dst *string, v string) {
		if !flags.Changed(name) && v != "" {
			*dst = v
		}
	}
	setBool := func(name string, dst *bool, v bool) {
		if !flags.Changed(name) && v {
			*dst = v
		}
	}

	setString("schema", &opts.Schema, cfg.Schema)
	setString("source", &opts.Source, cfg.Source)
	setString("pg-dsn", &opts.PGDSN, cfg.PGDSN)
	setString("pg-schema", &opts.PGSchema, cfg.PGSchema)
	setBool("debug", &opts.Debug, cfg.Debug)
	setBool("show-creates", &opts.ShowCreates, cfg.ShowCreates)
	setBool("show-first-insert", &opts.ShowFirstInsert, cfg.ShowFirstInsert)
	if !flags.Changed("collections") && len(cfg.Collections) > 0 {
		opts.Collections = cfg.Collections
	}
	if !flags.Changed("limit") && cfg.Limit > 0 {
		opts.Limit = cfg.Limit
	}
}

func checkMigrateOptions(opts *MigrateOptions) error {
	switch {
	case opts.Schema == "":
		return errors.New("--schema is required (flag or config file)")
	case opts.Source == "":
		return errors.New("--source is required (flag or config file)")
	case opts.Limit < 0:
		return fmt.Errorf("--limit must not be negative, got %d", opts.Limit)
	}
	return nil
}

// openExecutor returns the destination executor and its cleanup.
func openExecutor(ctx context.Context, opts *MigrateOptions, logger *slog.Logger) (migrate.Executor, func(), error) {
	if opts.Executor != nil {
		return opts.Executor, func() {}, nil
	}

	dsn := opts.PGDSN
	if dsn == "" {
		dsn = os.Getenv(pgexec.DSNEnv)
	}
	pg, err := pgexec.Connect(ctx, pgexec.Config{
		DSN:            dsn,
		Schema:         opts.PGSchema,
		ConnectTimeout: opts.ConnectTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("connected to destination", "schema", opts.PGSchema)

	return pg, func() {
		if closeErr := pg.Close(context.Background()); closeErr != nil {
			logger.Error("error closing destination", "error", closeErr)
		}
	}, nil
}

// MigrationFailure is the JSON payload of a stopped run.
type MigrationFailure struct {
	RunID      string   `json:"run_id"`
	Collection string   `json:"collection,omitempty"`
	Processed  []string `json:"processed"`
	Remaining  []string `json:"remaining"`
	Resume     string   `json:"resume,omitempty"`
}

func migrationFailed(formatter *OutputFormatter, runID string, err error) error {
	runErr, ok := migrate.AsRunError(err)
	if !ok {
		return formatter.fail(ExitFailure, ErrCodeMigration, "migration failed", err, nil)
	}

	details := MigrationFailure{
		RunID:      runID,
		Collection: runErr.Collection,
		Processed:  nonNil(runErr.Processed),
		Remaining:  nonNil(runErr.Remaining),
	}
	if len(runErr.Remaining) > 0 {
		details.Resume = "--collections=" + runErr.ResumeFilter()
	}

	_ = formatter.Error(ErrCodeMigration, err.Error(), details)
	for _, line := range runErr.Summary() {
		formatter.Textf("%s", line)
	}
	return WrapExitError(ExitFailure, "migration failed", err)
}

// schemaLoadFailed reports a schema that could not be loaded. Validation
// problems are listed one per line.
func schemaLoadFailed(formatter *OutputFormatter, exitCode int, err error) error {
	var verrs schema.ValidationErrors
	if errors.As(err, &verrs) {
		_ = formatter.Error(ErrCodeSchemaInvalid, fmt.Sprintf("schema has %d problem(s)", len(verrs)), []schema.Issue(verrs))
		for _, issue := range verrs {
			formatter.Textf("  %s", issue.Error())
		}
		return WrapExitError(exitCode, "invalid schema", err)
	}
	return formatter.fail(exitCode, ErrCodeSchemaLoad, "failed to load schema", err, nil)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
