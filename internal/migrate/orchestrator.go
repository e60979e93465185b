package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/roach88/docmigrate/internal/schema"
	"github.com/roach88/docmigrate/internal/source"
	"github.com/roach88/docmigrate/internal/sqlgen"
)

// Executor runs one SQL statement against the destination.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (rowsAffected int64, err error)
}

// maxLoggedSQL bounds statement text in debug logs.
const maxLoggedSQL = 240

// Orchestrator runs one migration. It is single-use and not safe for
// concurrent use.
type Orchestrator struct {
	catalog *schema.Catalog
	gen     *sqlgen.Generator
	source  source.Source
	exec    Executor
	opts    Options

	logger  *slog.Logger
	preview io.Writer
	runID   string

	state     State
	selected  []string
	processed []string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithPreview sets where ShowDDL and ShowFirstInsert output goes.
// Default: discarded.
func WithPreview(w io.Writer) Option {
	return func(o *Orchestrator) {
		o.preview = w
	}
}

// WithRunID overrides the generated UUIDv7 run id.
func WithRunID(id string) Option {
	return func(o *Orchestrator) {
		o.runID = id
	}
}

// New creates an Orchestrator. exec may be nil only for a dry run.
//
// The collection selection is fixed here: opts.Collections with duplicates
// removed, or every catalog collection in load order.
func New(catalog *schema.Catalog, src source.Source, exec Executor, opts Options, options ...Option) (*Orchestrator, error) {
	if catalog == nil {
		return nil, errors.New("migrate: nil catalog")
	}
	if src == nil {
		return nil, errors.New("migrate: nil document source")
	}
	if exec == nil && !opts.DryRun {
		return nil, errors.New("migrate: an executor is required unless dry run is enabled")
	}

	opts.Collections = slices.Clone(opts.Collections)
	o := &Orchestrator{
		catalog: catalog,
		gen:     sqlgen.NewGenerator(catalog),
		source:  src,
		exec:    exec,
		opts:    opts,
		logger:  slog.Default(),
		preview: io.Discard,
	}
	for _, opt := range options {
		opt(o)
	}
	if o.runID == "" {
		o.runID = uuid.Must(uuid.NewV7()).String()
	}
	o.logger = o.logger.With("run_id", o.runID)

	if len(opts.Collections) > 0 {
		o.selected = dedupe(opts.Collections)
	} else {
		o.selected = catalog.CollectionNames()
	}
	return o, nil
}

// RunID returns the run's identifier.
func (o *Orchestrator) RunID() string { return o.runID }

// State returns the current lifecycle state.
func (o *Orchestrator) State() State { return o.state }

// Selected returns the collections this run processes, in order.
func (o *Orchestrator) Selected() []string { return slices.Clone(o.selected) }

// Processed returns the collections fully processed so far.
func (o *Orchestrator) Processed() []string { return slices.Clone(o.processed) }

// Remaining returns the selected collections not yet processed.
func (o *Orchestrator) Remaining() []string {
	return slices.Clone(o.selected[len(o.processed):])
}

// Run migrates the selected collections in order. Cancellation is honored
// between collections; a collection in progress runs to completion or
// failure.
//
// The report is returned even on failure. A failed run returns *RunError.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	if o.state != StateNotStarted {
		return nil, fmt.Errorf("migrate: run already %s", o.state)
	}
	o.state = StateRunning

	report := &Report{RunID: o.runID, DryRun: o.opts.DryRun}
	o.logger.Info("migration starting",
		"collections", len(o.selected),
		"dry_run", o.opts.DryRun,
		"limit", o.opts.Limit)

	for _, name := range o.selected {
		if err := ctx.Err(); err != nil {
			return report, o.fail("", err)
		}

		result, err := o.migrateCollection(ctx, name)
		if err != nil {
			return report, o.fail(name, err)
		}
		report.Collections = append(report.Collections, result)
		o.processed = append(o.processed, name)
	}

	o.state = StateCompleted
	o.logger.Info("migration complete", "collections", len(o.processed))
	return report, nil
}

func (o *Orchestrator) fail(collection string, err error) error {
	o.state = StateFailed
	runErr := &RunError{
		Collection: collection,
		Err:        err,
		Processed:  o.Processed(),
		Remaining:  o.Remaining(),
	}
	o.logger.Error("migration failed",
		"collection", collection,
		"error", err,
		"processed", len(runErr.Processed),
		"remaining", len(runErr.Remaining))
	return runErr
}

func (o *Orchestrator) migrateCollection(ctx context.Context, name string) (CollectionResult, error) {
	log := o.logger.With("collection", name)
	log.Info("migrating collection")
	result := CollectionResult{Collection: name}

	ddl, err := o.gen.CreateTable(name)
	if err != nil {
		return result, err
	}
	if o.opts.ShowDDL {
		fmt.Fprintln(o.preview, ddl)
	}
	if _, err := o.run(ctx, log, name, "create table", ddl); err != nil {
		return result, err
	}

	docs, err := o.source.Fetch(ctx, name, o.opts.Limit)
	if err != nil {
		return result, &ExternalIOError{Op: "fetch", Collection: name, Err: err}
	}
	result.Documents = len(docs)
	log.Info("found documents", "docs", len(docs))

	if len(docs) == 0 {
		log.Info("no documents, skipping insert")
		return result, nil
	}

	stmt, err := o.gen.Insert(name, docs)
	if err != nil {
		return result, err
	}
	if o.opts.ShowFirstInsert {
		fmt.Fprintln(o.preview, stmt.Header())
		fmt.Fprintln(o.preview, stmt.Row(0))
	}
	insert, err := stmt.SQL()
	if err != nil {
		return result, err
	}

	steps := []struct {
		label string
		sql   string
	}{
		{"set unlogged", sqlgen.SetUnlogged(name)},
		{"disable triggers", sqlgen.DisableTriggers(name)},
		{"insert", insert},
		{"set logged", sqlgen.SetLogged(name)},
		{"enable triggers", sqlgen.EnableTriggers(name)},
	}
	for _, step := range steps {
		n, err := o.run(ctx, log, name, step.label, step.sql)
		if err != nil {
			return result, err
		}
		if step.label == "insert" {
			result.RowsAffected = n
		}
	}

	log.Info("collection migrated", "docs", len(docs), "rows", result.RowsAffected)
	return result, nil
}

// run executes sql unless this is a dry run.
func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, collection, label, sql string) (int64, error) {
	if o.opts.DryRun {
		if o.opts.Debug {
			log.Debug("skipping statement (dry run)", "statement", label, "sql", truncate(sql), "bytes", len(sql))
		}
		return 0, nil
	}
	if o.opts.Debug {
		log.Debug("executing statement", "statement", label, "sql", truncate(sql), "bytes", len(sql))
	}

	n, err := o.exec.Exec(ctx, sql)
	if err != nil {
		return 0, &ExternalIOError{Op: "exec", Collection: collection, Statement: label, Err: err}
	}
	return n, nil
}

func truncate(sql string) string {
	if len(sql) <= maxLoggedSQL {
		return sql
	}
	return sql[:maxLoggedSQL] + "..."
}
