package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/kedaikopi/kopi/lib/db"
)

// RunTableBenchmarks runs all benchmarks for a table implementation
func RunTableBenchmarks(b *testing.B, name string, factory TableFactory) {
	b.Run("Upsert", func(b *testing.B) {
		benchmarkUpsert(b, factory(b))
	})

	b.Run("UpsertBatch", func(b *testing.B) {
		benchmarkUpsertBatch(b, factory(b))
	})

	b.Run("Select", func(b *testing.B) {
		benchmarkSelect(b, factory(b))
	})

	b.Run("SelectIn", func(b *testing.B) {
		benchmarkSelectIn(b, factory(b))
	})

	b.Run("SelectPrefix", func(b *testing.B) {
		benchmarkSelectPrefix(b, factory(b))
	})

	b.Run("Delete", func(b *testing.B) {
		benchmarkDelete(b, factory(b))
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory(b))
	})
}

const benchKeys = 1000

var benchValue = json.RawMessage(`{"id":"bench","name":"Kopi Tubruk","price":15000,"category":"hot"}`)

func benchKey(i int) string {
	return fmt.Sprintf("bench:%04d", i%benchKeys)
}

func fill(b *testing.B, table db.Table) {
	rows := make([]db.Row, benchKeys)
	for i := range rows {
		rows[i] = db.Row{Key: benchKey(i), Value: benchValue}
	}
	if err := table.Upsert(context.Background(), rows); err != nil {
		b.Fatalf("fill failed: %v", err)
	}
}

func benchmarkUpsert(b *testing.B, table db.Table) {
	defer table.Close()
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := rand.Int()
		for pb.Next() {
			_ = table.Upsert(ctx, []db.Row{{Key: benchKey(i), Value: benchValue}})
			i++
		}
	})
}

func benchmarkUpsertBatch(b *testing.B, table db.Table) {
	defer table.Close()
	ctx := context.Background()

	rows := make([]db.Row, 20)
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		for i := range rows {
			rows[i] = db.Row{Key: benchKey(n*len(rows) + i), Value: benchValue}
		}
		_ = table.Upsert(ctx, rows)
	}
}

func benchmarkSelect(b *testing.B, table db.Table) {
	defer table.Close()
	fill(b, table)
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := rand.Int()
		for pb.Next() {
			_, _, _ = table.Select(ctx, benchKey(i))
			i++
		}
	})
}

func benchmarkSelectIn(b *testing.B, table db.Table) {
	defer table.Close()
	fill(b, table)
	ctx := context.Background()

	keys := make([]string, 20)
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		for i := range keys {
			keys[i] = benchKey(n + i*37)
		}
		_, _ = table.SelectIn(ctx, keys)
	}
}

func benchmarkSelectPrefix(b *testing.B, table db.Table) {
	defer table.Close()
	fill(b, table)
	ctx := context.Background()

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		_, _ = table.SelectPrefix(ctx, fmt.Sprintf("bench:0%d", n%10))
	}
}

func benchmarkDelete(b *testing.B, table db.Table) {
	defer table.Close()
	fill(b, table)
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := rand.Int()
		for pb.Next() {
			_ = table.Delete(ctx, []string{benchKey(i)})
			i++
		}
	})
}

func benchmarkMixedUsage(b *testing.B, table db.Table) {
	defer table.Close()
	fill(b, table)
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := rand.Int()
		for pb.Next() {
			key := benchKey(i)
			switch i % 4 {
			case 0:
				_ = table.Upsert(ctx, []db.Row{{Key: key, Value: benchValue}})
			case 1, 2:
				_, _, _ = table.Select(ctx, key)
			case 3:
				_ = table.Delete(ctx, []string{key})
			}
			i++
		}
	})
}
