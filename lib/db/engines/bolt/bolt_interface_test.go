package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kedaikopi/kopi/lib/db"
	dbtesting "github.com/kedaikopi/kopi/lib/db/testing"
)

func newTestTable(tb testing.TB) db.Table {
	table, err := NewBoltDB(DBOptions{
		Path:   filepath.Join(tb.TempDir(), "kopi.bolt"),
		NoSync: true,
	})
	if err != nil {
		tb.Fatalf("failed to open bolt table: %v", err)
	}
	return table
}

func Test(t *testing.T) {
	dbtesting.RunTableTests(t, "BoltDB", newTestTable)
}

func Benchmark(b *testing.B) {
	dbtesting.RunTableBenchmarks(b, "BoltDB", newTestTable)
}

func TestReopenKeepsRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kopi.bolt")

	table, err := NewBoltDB(DBOptions{Path: path, Table: "shop"})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := table.Upsert(ctx, []db.Row{{Key: "coffees:1", Value: []byte(`{"name":"Kopi Susu"}`)}}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	table, err = NewBoltDB(DBOptions{Path: path, Table: "shop"})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer table.Close()

	value, found, err := table.Select(ctx, "coffees:1")
	if err != nil || !found {
		t.Fatalf("Expected row after reopen (found=%v, err=%v)", found, err)
	}
	if string(value) != `{"name":"Kopi Susu"}` {
		t.Errorf("Unexpected value after reopen: %s", value)
	}

	info := table.GetInfo()
	if info.RowCount != 1 || info.Table != "shop" {
		t.Errorf("Unexpected info: %+v", info)
	}
}

func TestTablesShareFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a, err := NewBoltDB(DBOptions{Path: filepath.Join(dir, "kopi.bolt"), Table: "a"})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := a.Upsert(ctx, []db.Row{{Key: "k", Value: []byte(`1`)}}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	_ = a.Close()

	b, err := NewBoltDB(DBOptions{Path: filepath.Join(dir, "kopi.bolt"), Table: "b"})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer b.Close()

	if _, found, _ := b.Select(ctx, "k"); found {
		t.Errorf("Expected tables in the same file to be isolated")
	}
}

func TestClosedTable(t *testing.T) {
	table := newTestTable(t)
	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := table.Close(); err != nil {
		t.Errorf("Expected second Close to be a no-op, got %v", err)
	}
	if _, _, err := table.Select(context.Background(), "k"); err != db.ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
