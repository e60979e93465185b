package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/docmigrate/internal/encode"
	"github.com/roach88/docmigrate/internal/schema"
	"github.com/roach88/docmigrate/internal/sqlgen"
)

// NewSchemaCommand creates the schema command group.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect and convert schema files",
		Long: `Work with schema files without touching any database.

Schemas may be written as JSON, YAML or CUE. Every format decodes to the
same catalog: an ordered map from collection name to field definitions.`,
	}

	cmd.AddCommand(newSchemaValidateCommand(rootOpts))
	cmd.AddCommand(newSchemaDDLCommand(rootOpts))
	cmd.AddCommand(newSchemaConvertCommand(rootOpts))

	return cmd
}

// SchemaValidation is the JSON payload of schema validate.
type SchemaValidation struct {
	Valid       bool           `json:"valid"`
	Collections []string       `json:"collections,omitempty"`
	Errors      []schema.Issue `json:"errors,omitempty"`
	Warnings    []schema.Issue `json:"warnings,omitempty"`
}

func newSchemaValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <schema-file>",
		Short: "Validate a schema file",
		Long: `Load and validate a schema file.

Structural problems (bad identifiers, duplicate or colliding columns,
malformed colType) fail validation. Fields that no encoding rule can
insert are reported as warnings.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaValidate(rootOpts, args[0], cmd)
		},
	}
}

func runSchemaValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	catalog, err := schema.LoadFile(path)
	if err != nil {
		// Validation failures = exit code 1, unreadable files = exit code 2
		var verrs schema.ValidationErrors
		if errors.As(err, &verrs) {
			return schemaLoadFailed(formatter, ExitFailure, err)
		}
		return schemaLoadFailed(formatter, ExitCommandError, err)
	}
	formatter.VerboseLog("Loaded %d collection(s) from %s", len(catalog.CollectionNames()), path)

	warnings := encode.Lint(catalog)
	if formatter.JSON() {
		return formatter.Success(SchemaValidation{
			Valid:       true,
			Collections: catalog.CollectionNames(),
			Warnings:    warnings,
		})
	}

	for _, w := range warnings {
		formatter.Textf("warning %s", w.Error())
	}
	formatter.Textf("✓ Schema valid (%d collections)", len(catalog.CollectionNames()))
	return nil
}

// DDLOptions holds flags for schema ddl.
type DDLOptions struct {
	*RootOptions
	Collections []string
}

func newSchemaDDLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DDLOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ddl <schema-file>",
		Short: "Print CREATE TABLE statements",
		Long: `Print the CREATE TABLE IF NOT EXISTS statement of every collection,
one per line, in schema order (or --collections order).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaDDL(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Collections, "collections", nil, "only these collections, in this order")

	return cmd
}

func runSchemaDDL(opts *DDLOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	catalog, err := schema.LoadFile(path)
	if err != nil {
		return schemaLoadFailed(formatter, ExitCommandError, err)
	}

	names := opts.Collections
	if len(names) == 0 {
		names = catalog.CollectionNames()
	}

	gen := sqlgen.NewGenerator(catalog)
	statements := make([]string, 0, len(names))
	for _, name := range names {
		ddl, err := gen.CreateTable(name)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to generate DDL", err, nil)
		}
		statements = append(statements, ddl)
	}

	if formatter.JSON() {
		return formatter.Success(statements)
	}
	for _, ddl := range statements {
		formatter.Textf("%s;", ddl)
	}
	return nil
}

// ConvertOptions holds flags for schema convert.
type ConvertOptions struct {
	*RootOptions
	Output string
}

func newSchemaConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert <schema-file>",
		Short: "Render a schema as canonical schema.json",
		Long: `Load a schema in any supported format, validate it, and write it as
indented JSON. Collection order is preserved.

Example:
  docmigrate schema convert schema.cue -o schema.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaConvert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func runSchemaConvert(opts *ConvertOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	catalog, err := schema.LoadFile(path)
	if err != nil {
		return schemaLoadFailed(formatter, ExitCommandError, err)
	}

	data, err := schema.MarshalIndent(catalog)
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeGeneric, "failed to render schema", err, nil)
	}

	if opts.Output == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err, nil)
	}
	formatter.VerboseLog("Wrote %s", opts.Output)
	if formatter.JSON() {
		return formatter.Success(map[string]string{"output": opts.Output})
	}
	formatter.Textf("✓ Wrote %s (%d collections)", opts.Output, len(catalog.CollectionNames()))
	return nil
}
