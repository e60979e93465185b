package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/docmigrate/internal/docstore"
	"github.com/roach88/docmigrate/internal/source"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database    string
	Collections []string
	Replace     bool
}

// ImportResult is the JSON payload of import and export.
type ImportResult struct {
	Collections []docstore.CollectionCount `json:"collections"`
	Documents   int                        `json:"documents"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <export-dir>",
		Short: "Load a JSON-lines export into a SQLite document store",
		Long: `Load <collection>.jsonl files into a SQLite document store.

The store can then be passed to migrate with --source. Documents keep their
file order. Re-importing a document id replaces its data in place.

Example:
  docmigrate import --db docs.db ./export
  docmigrate import --db docs.db ./export --collections=users --replace`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringSliceVar(&opts.Collections, "collections", nil, "only import these collections")
	cmd.Flags().BoolVar(&opts.Replace, "replace", false, "delete each collection's stored documents first")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runImport(opts *ImportOptions, dirPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	ctx := commandContext(cmd)

	dir, err := source.OpenDir(dirPath)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeSourceOpen, "failed to open export", err, nil)
	}

	names := opts.Collections
	if len(names) == 0 {
		names, err = dir.Collections()
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeSourceOpen, "failed to list export", err, nil)
		}
	}

	st, err := docstore.Open(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeImport, "failed to open database", err, nil)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	result := ImportResult{Collections: []docstore.CollectionCount{}}
	for _, name := range names {
		docs, err := dir.Fetch(ctx, name, 0)
		if err != nil {
			return formatter.fail(ExitFailure, ErrCodeImport, "failed to read "+name, err, nil)
		}
		if opts.Replace {
			n, err := st.Delete(ctx, name)
			if err != nil {
				return formatter.fail(ExitFailure, ErrCodeImport, "failed to clear "+name, err, nil)
			}
			logger.Debug("cleared collection", "collection", name, "docs", n)
		}
		if err := st.Put(ctx, name, docs); err != nil {
			return formatter.fail(ExitFailure, ErrCodeImport, "failed to import "+name, err, nil)
		}
		logger.Info("imported collection", "collection", name, "docs", len(docs))
		result.Collections = append(result.Collections, docstore.CollectionCount{Collection: name, Documents: len(docs)})
		result.Documents += len(docs)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	formatter.Textf("✓ Imported %d documents in %d collections into %s", result.Documents, len(result.Collections), opts.Database)
	return nil
}

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database    string
	Collections []string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <export-dir>",
		Short: "Write a SQLite document store out as JSON-lines files",
		Long: `Write every collection of a SQLite document store to
<export-dir>/<collection>.jsonl, in stored order. Existing files are
overwritten.

Example:
  docmigrate export --db docs.db ./export`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringSliceVar(&opts.Collections, "collections", nil, "only export these collections")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runExport(opts *ExportOptions, dirPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	ctx := commandContext(cmd)

	if _, err := os.Stat(opts.Database); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeSourceOpen, "database not found", err, nil)
	}
	st, err := docstore.Open(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeSourceOpen, "failed to open database", err, nil)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	names := opts.Collections
	if len(names) == 0 {
		counts, err := st.Collections(ctx)
		if err != nil {
			return formatter.fail(ExitFailure, ErrCodeGeneric, "failed to list collections", err, nil)
		}
		for _, c := range counts {
			names = append(names, c.Collection)
		}
	}

	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeWriteFailed, "failed to create export directory", err, nil)
	}
	dir, err := source.OpenDir(dirPath)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeWriteFailed, "failed to open export directory", err, nil)
	}

	result := ImportResult{Collections: []docstore.CollectionCount{}}
	for _, name := range names {
		docs, err := st.Fetch(ctx, name, 0)
		if err != nil {
			return formatter.fail(ExitFailure, ErrCodeGeneric, "failed to read "+name, err, nil)
		}
		if err := dir.Write(name, docs); err != nil {
			return formatter.fail(ExitFailure, ErrCodeWriteFailed, "failed to write "+name, err, nil)
		}
		logger.Info("exported collection", "collection", name, "docs", len(docs))
		result.Collections = append(result.Collections, docstore.CollectionCount{Collection: name, Documents: len(docs)})
		result.Documents += len(docs)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	formatter.Textf("✓ Exported %d documents in %d collections to %s", result.Documents, len(result.Collections), dirPath)
	return nil
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
