package migrate

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docmigrate/internal/encode"
	"github.com/roach88/docmigrate/internal/schema"
	"github.com/roach88/docmigrate/internal/source"
	"github.com/roach88/docmigrate/internal/value"
)

// recordingExecutor records statements and fails the first one containing
// failOn.
type recordingExecutor struct {
	statements []string
	failOn     string
}

func (r *recordingExecutor) Exec(_ context.Context, sql string, _ ...any) (int64, error) {
	if r.failOn != "" && strings.Contains(sql, r.failOn) {
		return 0, errors.New("relation does not exist")
	}
	r.statements = append(r.statements, sql)
	if strings.HasPrefix(sql, "INSERT") {
		return int64(strings.Count(sql, "), (") + 1), nil
	}
	return 0, nil
}

// failingSource fails Fetch for one collection.
type failingSource struct {
	source.Memory
	failOn string
}

func (f failingSource) Fetch(ctx context.Context, collection string, limit int) ([]source.Document, error) {
	if collection == f.failOn {
		return nil, errors.New("deadline exceeded talking to document store")
	}
	return f.Memory.Fetch(ctx, collection, limit)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func abcCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	text := schema.Scalar(schema.TypeText)
	c, err := schema.New([]schema.Collection{
		{Name: "a", Fields: []schema.FieldDefinition{{Source: "name", ColType: text}}},
		{Name: "b", Fields: []schema.FieldDefinition{{Source: "name", ColType: text}}},
		{Name: "c", Fields: []schema.FieldDefinition{{Source: "name", ColType: text}}},
	})
	require.NoError(t, err)
	return c
}

func abcDocs() source.Memory {
	doc := func(id string) source.Document {
		return source.Document{ID: id, Data: value.Object{"name": value.String("n-" + id)}}
	}
	return source.Memory{
		"a": {doc("a1"), doc("a2")},
		"b": {doc("b1")},
		"c": {doc("c1")},
	}
}

func execOptions() Options {
	opts := DefaultOptions()
	opts.DryRun = false
	return opts
}

func TestRun_Success(t *testing.T) {
	exec := &recordingExecutor{}
	o, err := New(abcCatalog(t), abcDocs(), exec, execOptions(), WithLogger(quietLogger()), WithRunID("run-1"))
	require.NoError(t, err)
	assert.Equal(t, StateNotStarted, o.State())

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, o.State())
	assert.Equal(t, []string{"a", "b", "c"}, o.Processed())
	assert.Empty(t, o.Remaining())
	assert.Equal(t, "run-1", report.RunID)
	assert.False(t, report.DryRun)
	assert.Equal(t, 4, report.TotalDocuments())
	require.Len(t, report.Collections, 3)
	assert.Equal(t, CollectionResult{Collection: "a", Documents: 2, RowsAffected: 2}, report.Collections[0])
}

func TestRun_StatementOrder(t *testing.T) {
	exec := &recordingExecutor{}
	c := abcCatalog(t)
	opts := execOptions()
	opts.Collections = []string{"b"}

	o, err := New(c, abcDocs(), exec, opts, WithLogger(quietLogger()))
	require.NoError(t, err)
	_, err = o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"CREATE TABLE IF NOT EXISTS b (id TEXT PRIMARY KEY, name TEXT)",
		"ALTER TABLE b SET UNLOGGED",
		"ALTER TABLE b DISABLE TRIGGER ALL",
		"INSERT INTO b (id, name) VALUES ('b1', 'n-b1')",
		"ALTER TABLE b SET LOGGED",
		"ALTER TABLE b ENABLE TRIGGER ALL",
	}, exec.statements)
}

func TestRun_FailurePartition(t *testing.T) {
	tests := []struct {
		name      string
		failOn    string
		source    source.Source
		processed []string
		remaining []string
		failed    string
	}{
		{
			name:      "insert fails in b",
			failOn:    "INSERT INTO b",
			source:    abcDocs(),
			processed: []string{"a"},
			remaining: []string{"b", "c"},
			failed:    "b",
		},
		{
			name:      "ddl fails in b",
			failOn:    "CREATE TABLE IF NOT EXISTS b",
			source:    abcDocs(),
			processed: []string{"a"},
			remaining: []string{"b", "c"},
			failed:    "b",
		},
		{
			name:      "toggle fails in c",
			failOn:    "ALTER TABLE c SET LOGGED",
			source:    abcDocs(),
			processed: []string{"a", "b"},
			remaining: []string{"c"},
			failed:    "c",
		},
		{
			name:      "fetch fails in b",
			source:    failingSource{Memory: abcDocs(), failOn: "b"},
			processed: []string{"a"},
			remaining: []string{"b", "c"},
			failed:    "b",
		},
		{
			name:      "first collection fails",
			failOn:    "CREATE TABLE IF NOT EXISTS a",
			source:    abcDocs(),
			processed: nil,
			remaining: []string{"a", "b", "c"},
			failed:    "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &recordingExecutor{failOn: tt.failOn}
			o, err := New(abcCatalog(t), tt.source, exec, execOptions(), WithLogger(quietLogger()))
			require.NoError(t, err)

			report, err := o.Run(context.Background())
			require.Error(t, err)
			require.NotNil(t, report)

			runErr, ok := AsRunError(err)
			require.True(t, ok)
			assert.Equal(t, tt.failed, runErr.Collection)
			assert.Equal(t, tt.processed, runErr.Processed)
			assert.Equal(t, tt.remaining, runErr.Remaining)
			assert.Equal(t, strings.Join(tt.remaining, ","), runErr.ResumeFilter())
			assert.True(t, IsExternalIO(err))
			assert.Equal(t, StateFailed, o.State())
			assert.Len(t, report.Collections, len(tt.processed))
		})
	}
}

func TestRun_FailureStopsBeforeNextCollection(t *testing.T) {
	exec := &recordingExecutor{failOn: "INSERT INTO b"}
	o, err := New(abcCatalog(t), abcDocs(), exec, execOptions(), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.Error(t, err)

	for _, stmt := range exec.statements {
		assert.NotContains(t, stmt, " c ", "nothing runs for c after b fails")
	}
	// b was created and toggled, but never re-enabled.
	assert.Contains(t, exec.statements, "ALTER TABLE b DISABLE TRIGGER ALL")
	assert.NotContains(t, exec.statements, "ALTER TABLE b ENABLE TRIGGER ALL")
}

func TestRun_ExecErrorDetails(t *testing.T) {
	exec := &recordingExecutor{failOn: "INSERT INTO b"}
	o, err := New(abcCatalog(t), abcDocs(), exec, execOptions(), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	var ioErr *ExternalIOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "exec", ioErr.Op)
	assert.Equal(t, "b", ioErr.Collection)
	assert.Equal(t, "insert", ioErr.Statement)
	assert.Equal(t, `migration failed at collection "b": exec b (insert): relation does not exist`, err.Error())
}

func TestRun_UnknownCollectionInFilter(t *testing.T) {
	exec := &recordingExecutor{}
	opts := execOptions()
	opts.Collections = []string{"a", "zzz", "b"}

	o, err := New(abcCatalog(t), abcDocs(), exec, opts, WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.Error(t, err)
	assert.True(t, schema.IsUnknownCollection(err))

	runErr, ok := AsRunError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, runErr.Processed)
	assert.Equal(t, []string{"zzz", "b"}, runErr.Remaining)
	for _, stmt := range exec.statements {
		assert.NotContains(t, stmt, "zzz")
	}
}

func TestRun_UnmappableFieldFailsCollection(t *testing.T) {
	c, err := schema.New([]schema.Collection{
		{Name: "orders", Fields: []schema.FieldDefinition{{Source: "qty", ColType: schema.Scalar("INTEGER")}}},
	})
	require.NoError(t, err)

	exec := &recordingExecutor{}
	o, err := New(c, source.Memory{"orders": {{ID: "o1"}}}, exec, execOptions(), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.Error(t, err)
	assert.True(t, encode.IsUnmappable(err))
	assert.Contains(t, err.Error(), "collection=orders document=o1 name=qty colType=INTEGER")

	// The table was created before the documents were encoded.
	assert.Equal(t, []string{"CREATE TABLE IF NOT EXISTS orders (id TEXT PRIMARY KEY, qty INTEGER)"}, exec.statements)
}

func TestRun_DryRun(t *testing.T) {
	var preview bytes.Buffer
	opts := DefaultOptions()
	opts.ShowDDL = true
	opts.ShowFirstInsert = true

	o, err := New(abcCatalog(t), abcDocs(), nil, opts, WithLogger(quietLogger()), WithPreview(&preview))
	require.NoError(t, err)

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, []string{"a", "b", "c"}, o.Processed())
	assert.Equal(t, int64(0), report.Collections[0].RowsAffected)

	assert.Equal(t, strings.Join([]string{
		"CREATE TABLE IF NOT EXISTS a (id TEXT PRIMARY KEY, name TEXT)",
		"INSERT INTO a (id, name) VALUES",
		"('a1', 'n-a1')",
		"CREATE TABLE IF NOT EXISTS b (id TEXT PRIMARY KEY, name TEXT)",
		"INSERT INTO b (id, name) VALUES",
		"('b1', 'n-b1')",
		"CREATE TABLE IF NOT EXISTS c (id TEXT PRIMARY KEY, name TEXT)",
		"INSERT INTO c (id, name) VALUES",
		"('c1', 'n-c1')",
	}, "\n")+"\n", preview.String())
}

func TestRun_DryRunNeverExecutes(t *testing.T) {
	exec := &recordingExecutor{}
	o, err := New(abcCatalog(t), abcDocs(), exec, DefaultOptions(), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, exec.statements)
}

func TestRun_DryRunStillEncodes(t *testing.T) {
	c, err := schema.New([]schema.Collection{
		{Name: "orders", Fields: []schema.FieldDefinition{{Source: "qty", ColType: schema.Scalar("INTEGER")}}},
	})
	require.NoError(t, err)

	o, err := New(c, source.Memory{"orders": {{ID: "o1"}}}, nil, DefaultOptions(), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	assert.True(t, encode.IsUnmappable(err))
}

func TestRun_EmptyCollectionSkipsInsert(t *testing.T) {
	exec := &recordingExecutor{}
	docs := abcDocs()
	delete(docs, "b")

	o, err := New(abcCatalog(t), docs, exec, execOptions(), WithLogger(quietLogger()))
	require.NoError(t, err)

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CollectionResult{Collection: "b"}, report.Collections[1])

	var forB []string
	for _, stmt := range exec.statements {
		if strings.Contains(stmt, " b ") {
			forB = append(forB, stmt)
		}
	}
	assert.Equal(t, []string{"CREATE TABLE IF NOT EXISTS b (id TEXT PRIMARY KEY, name TEXT)"}, forB)
}

func TestRun_Limit(t *testing.T) {
	exec := &recordingExecutor{}
	opts := execOptions()
	opts.Limit = 1
	opts.Collections = []string{"a"}

	o, err := New(abcCatalog(t), abcDocs(), exec, opts, WithLogger(quietLogger()))
	require.NoError(t, err)

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Collections[0].Documents)
	assert.Contains(t, exec.statements, "INSERT INTO a (id, name) VALUES ('a1', 'n-a1')")
}

func TestRun_FilterOrderAndDuplicates(t *testing.T) {
	opts := DefaultOptions()
	opts.Collections = []string{"c", "a", "c", ""}

	o, err := New(abcCatalog(t), abcDocs(), nil, opts, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, o.Selected())

	_, err = o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, o.Processed())
}

func TestRun_CanceledBetweenCollections(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := &cancelingExecutor{cancelAfter: "INSERT INTO a", cancel: cancel}

	o, err := New(abcCatalog(t), abcDocs(), exec, execOptions(), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = o.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	runErr, ok := AsRunError(err)
	require.True(t, ok)
	assert.Equal(t, "", runErr.Collection)
	assert.Equal(t, []string{"a"}, runErr.Processed, "collection a finished despite cancellation")
	assert.Equal(t, []string{"b", "c"}, runErr.Remaining)
	assert.Equal(t, "migration stopped: context canceled", runErr.Error())
}

type cancelingExecutor struct {
	recordingExecutor
	cancelAfter string
	cancel      context.CancelFunc
}

func (c *cancelingExecutor) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	n, err := c.recordingExecutor.Exec(ctx, sql, args...)
	if strings.Contains(sql, c.cancelAfter) {
		c.cancel()
	}
	return n, err
}

func TestRun_SingleUse(t *testing.T) {
	o, err := New(abcCatalog(t), abcDocs(), nil, DefaultOptions(), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.NoError(t, err)
	_, err = o.Run(context.Background())
	assert.ErrorContains(t, err, "already completed")
}

func TestNew_Validation(t *testing.T) {
	c := abcCatalog(t)

	_, err := New(nil, abcDocs(), nil, DefaultOptions())
	assert.Error(t, err)

	_, err = New(c, nil, nil, DefaultOptions())
	assert.Error(t, err)

	_, err = New(c, abcDocs(), nil, execOptions())
	assert.ErrorContains(t, err, "executor is required")
}

func TestNew_GeneratesRunID(t *testing.T) {
	o1, err := New(abcCatalog(t), abcDocs(), nil, DefaultOptions())
	require.NoError(t, err)
	o2, err := New(abcCatalog(t), abcDocs(), nil, DefaultOptions())
	require.NoError(t, err)

	assert.Len(t, o1.RunID(), 36)
	assert.NotEqual(t, o1.RunID(), o2.RunID())
}

func TestNew_CopiesCollections(t *testing.T) {
	opts := DefaultOptions()
	opts.Collections = []string{"a", "b"}

	o, err := New(abcCatalog(t), abcDocs(), nil, opts)
	require.NoError(t, err)

	opts.Collections[0] = "c"
	assert.Equal(t, []string{"a", "b"}, o.Selected())
}

func TestRun_DebugLogsStatements(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	opts := DefaultOptions()
	opts.Debug = true
	opts.Collections = []string{"a"}

	o, err := New(abcCatalog(t), abcDocs(), nil, opts, WithLogger(logger), WithRunID("run-7"))
	require.NoError(t, err)
	_, err = o.Run(context.Background())
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, "skipping statement (dry run)")
	assert.Contains(t, out, "run_id=run-7")
	assert.Contains(t, out, "collection=a")
	assert.Contains(t, out, "statement=insert")
}
