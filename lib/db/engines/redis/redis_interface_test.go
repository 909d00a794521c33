package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/kedaikopi/kopi/lib/db"
	dbtesting "github.com/kedaikopi/kopi/lib/db/testing"
)

func newTestTable(tb testing.TB) db.Table {
	srv := miniredis.RunT(tb)
	table, err := NewRedisDB(context.Background(), DBOptions{Addr: srv.Addr()})
	if err != nil {
		tb.Fatalf("failed to connect to miniredis: %v", err)
	}
	return table
}

func Test(t *testing.T) {
	dbtesting.RunTableTests(t, "RedisDB", newTestTable)
}

func Benchmark(b *testing.B) {
	dbtesting.RunTableBenchmarks(b, "RedisDB", newTestTable)
}

func TestRowsLiveInOneHash(t *testing.T) {
	srv := miniredis.RunT(t)
	table, err := NewRedisDB(context.Background(), DBOptions{Addr: srv.Addr(), Table: "shop"})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer table.Close()

	rows := []db.Row{
		{Key: "coffees:1", Value: []byte(`{"name":"Kopi Susu"}`)},
		{Key: "branches:1", Value: []byte(`{"name":"Kemang"}`)},
	}
	if err := table.Upsert(context.Background(), rows); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if got := srv.HGet("shop", "coffees:1"); got != `{"name":"Kopi Susu"}` {
		t.Errorf("Unexpected hash field value %q", got)
	}
	if keys, _ := srv.HKeys("shop"); len(keys) != 2 {
		t.Errorf("Expected 2 fields in hash shop, got %v", keys)
	}
	if info := table.GetInfo(); info.RowCount != 2 {
		t.Errorf("Expected RowCount 2, got %d", info.RowCount)
	}
}

func TestUnreachableServer(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	if _, err := NewRedisDB(context.Background(), DBOptions{Addr: addr}); err == nil {
		t.Errorf("Expected error when redis is unreachable")
	}
}

func TestEscapeGlob(t *testing.T) {
	cases := map[string]string{
		"coffees:": "coffees:",
		"s*[1]":    `s\*\[1\]`,
		"a?b":      `a\?b`,
		`x\y`:      `x\\y`,
		"50%_":     "50%_",
	}
	for in, want := range cases {
		if got := escapeGlob(in); got != want {
			t.Errorf("escapeGlob(%q) = %q, want %q", in, got, want)
		}
	}
}
