package level

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kedaikopi/kopi/lib/db"
	dbtesting "github.com/kedaikopi/kopi/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunTableTests(t, "LevelDB", func(tb testing.TB) db.Table {
		table, err := NewLevelDB(DBOptions{Path: filepath.Join(tb.TempDir(), "level")})
		if err != nil {
			tb.Fatalf("failed to open leveldb: %v", err)
		}
		return table
	})
}

func TestInMemory(t *testing.T) {
	dbtesting.RunTableTests(t, "LevelDBMem", func(tb testing.TB) db.Table {
		table, err := NewLevelDB(DBOptions{})
		if err != nil {
			tb.Fatalf("failed to open leveldb: %v", err)
		}
		return table
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunTableBenchmarks(b, "LevelDB", func(tb testing.TB) db.Table {
		table, err := NewLevelDB(DBOptions{Path: filepath.Join(tb.TempDir(), "level")})
		if err != nil {
			tb.Fatalf("failed to open leveldb: %v", err)
		}
		return table
	})
}

func TestTablesAreIsolated(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "level")

	a, err := NewLevelDB(DBOptions{Path: dir, Table: "a"})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := a.Upsert(ctx, []db.Row{{Key: "coffees:1", Value: []byte(`1`)}}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	_ = a.Close()

	// "ab" must not see rows of table "a" even though "a" is a prefix of "ab"
	ab, err := NewLevelDB(DBOptions{Path: dir, Table: "ab"})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer ab.Close()

	rows, err := ab.SelectPrefix(ctx, "")
	if err != nil {
		t.Fatalf("SelectPrefix failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Expected no rows in table ab, got %v", rows)
	}
}

func TestPersistenceFeature(t *testing.T) {
	mem, _ := NewLevelDB(DBOptions{})
	defer mem.Close()
	if mem.SupportsFeature(db.FeaturePersistent) {
		t.Errorf("Expected in-memory leveldb to not be persistent")
	}

	disk, err := NewLevelDB(DBOptions{Path: filepath.Join(t.TempDir(), "level")})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer disk.Close()
	if !disk.SupportsFeature(db.FeaturePersistent | db.FeatureAtomicBatch) {
		t.Errorf("Expected file backed leveldb to be persistent and atomic")
	}
}
