package docstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docmigrate/internal/source"
	"github.com/roach88/docmigrate/internal/value"
)

var _ source.Source = (*Store)(nil)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestPutFetch_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	docs := []source.Document{
		{ID: "u2", Data: value.Object{
			"name":   value.String("Ann"),
			"bornAt": value.Timestamp{Seconds: 1000, Nanos: 5},
			"team":   value.Reference{Collection: "teams", ID: "t1"},
			"tags":   value.Array{value.String("a"), value.Int(1), value.Float(2.5), value.Bool(true), value.Null{}},
		}},
		{ID: "u1", Data: value.Object{"name": value.String("Bob")}},
	}
	require.NoError(t, s.Put(ctx, "users", docs))

	got, err := s.Fetch(ctx, "users", 0)
	require.NoError(t, err)
	assert.Equal(t, docs, got, "import order is kept, not id order")
}

func TestFetch_Limit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "users", []source.Document{{ID: "a"}, {ID: "b"}, {ID: "c"}}))

	got, err := s.Fetch(ctx, "users", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestFetch_UnknownCollectionIsEmpty(t *testing.T) {
	s := createTestStore(t)

	got, err := s.Fetch(context.Background(), "nothing", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPut_ReplaceKeepsOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "users", []source.Document{
		{ID: "a", Data: value.Object{"v": value.Int(1)}},
		{ID: "b", Data: value.Object{"v": value.Int(1)}},
	}))
	require.NoError(t, s.Put(ctx, "users", []source.Document{
		{ID: "c", Data: value.Object{"v": value.Int(1)}},
		{ID: "a", Data: value.Object{"v": value.Int(2)}},
	}))

	got, err := s.Fetch(ctx, "users", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, value.Int(2), got[0].Get("v"))
}

func TestPut_CollectionsAreIndependent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "users", []source.Document{{ID: "x"}}))
	require.NoError(t, s.Put(ctx, "posts", []source.Document{{ID: "x"}, {ID: "y"}}))

	counts, err := s.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []CollectionCount{
		{Collection: "posts", Documents: 2},
		{Collection: "users", Documents: 1},
	}, counts)
}

func TestPut_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var zero float64
	err := s.Put(ctx, "users", []source.Document{
		{ID: "ok"},
		{ID: "bad", Data: value.Object{"f": value.Float(1 / zero)}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users/bad")

	got, err := s.Fetch(ctx, "users", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPut_RejectsEmptyID(t *testing.T) {
	s := createTestStore(t)
	assert.Error(t, s.Put(context.Background(), "users", []source.Document{{ID: ""}}))
	assert.Error(t, s.Put(context.Background(), "", []source.Document{{ID: "a"}}))
}

func TestDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "users", []source.Document{{ID: "a"}, {ID: "b"}}))
	n, err := s.Delete(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := s.Fetch(ctx, "users", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
