package kv

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kedaikopi/kopi/cmd/util"
	"github.com/kedaikopi/kopi/rpc/common"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for kopi servers",
		Long: `Runs a series of benchmarks against the configured shard and reports
latency percentiles and throughput per benchmark. Benchmarks: set, set-large,
get, mget, prefix, delete, mixed.`,
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__perf"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfOps              = 10000
	perfBatchSize        = 10
	perfSkip             = make([]string, 0)

	perfPercentiles = []float64{0.5, 0.9, 0.99}
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent clients"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 10000, util.WrapString("Number of operations per benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "batch"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of keys per mget request"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = max(viper.GetInt("large-value-size"), 1)
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfOps = max(viper.GetInt("ops"), 1)
	perfBatchSize = max(viper.GetInt("batch"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// --------------------------------------------------------------------------
// Benchmarks
// --------------------------------------------------------------------------

// benchmark is one named workload. setup runs before the clock starts,
// op runs perfOps times spread over perfNumThreads goroutines.
type benchmark struct {
	name  string
	setup func(ctx context.Context, keys []string) error
	op    func(ctx context.Context, keys []string, i int) error
}

// perfResult holds the timer of one benchmark and the wall time it took
type perfResult struct {
	name    string
	timer   metrics.Timer
	errors  int64
	elapsed time.Duration
	skipped bool
}

func (r perfResult) opsPerSec() float64 {
	if r.elapsed <= 0 {
		return 0
	}
	return float64(r.timer.Count()) / r.elapsed.Seconds()
}

var testValue = json.RawMessage(`{"name":"Espresso","price":18000}`)

func benchmarks() []benchmark {
	fill := func(ctx context.Context, keys []string) error {
		values := make([]json.RawMessage, len(keys))
		for i := range values {
			values[i] = testValue
		}
		return kvStore.MSet(ctx, keys, values)
	}

	largeValue := json.RawMessage(`"` + strings.Repeat("x", perfLargeValueSizeKB*1024) + `"`)

	return []benchmark{
		{
			name: "set",
			op: func(ctx context.Context, keys []string, i int) error {
				return kvStore.Set(ctx, keys[i%len(keys)], testValue)
			},
		},
		{
			name: "set-large",
			op: func(ctx context.Context, keys []string, i int) error {
				return kvStore.Set(ctx, keys[i%len(keys)], largeValue)
			},
		},
		{
			name:  "get",
			setup: fill,
			op: func(ctx context.Context, keys []string, i int) error {
				_, _, err := kvStore.Get(ctx, keys[i%len(keys)])
				return err
			},
		},
		{
			name:  "mget",
			setup: fill,
			op: func(ctx context.Context, keys []string, i int) error {
				batch := make([]string, perfBatchSize)
				for j := range batch {
					batch[j] = keys[(i+j)%len(keys)]
				}
				_, _, err := kvStore.MGet(ctx, batch)
				return err
			},
		},
		{
			name:  "prefix",
			setup: fill,
			op: func(ctx context.Context, _ []string, _ int) error {
				_, err := kvStore.GetByPrefix(ctx, perfKeyPrefix+"-prefix-")
				return err
			},
		},
		{
			name:  "delete",
			setup: fill,
			op: func(ctx context.Context, keys []string, i int) error {
				return kvStore.Delete(ctx, keys[i%len(keys)])
			},
		},
		{
			name:  "mixed",
			setup: fill,
			op: func(ctx context.Context, keys []string, i int) error {
				key := keys[i%len(keys)]
				switch i % 4 {
				case 0:
					return kvStore.Set(ctx, key, testValue)
				case 1:
					_, _, err := kvStore.Get(ctx, key)
					return err
				case 2:
					_, _, err := kvStore.MGet(ctx, []string{key, keys[(i+1)%len(keys)]})
					return err
				default:
					return kvStore.Delete(ctx, key)
				}
			},
		},
	}
}

func runPerf(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	config := util.GetClientConfig()

	fmt.Println("Performance testing tool for kopi servers")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d, operations per benchmark: %d\n", perfNumThreads, perfOps)
	fmt.Println()

	registry := metrics.NewRegistry()
	results := make([]perfResult, 0)

	for _, b := range benchmarks() {
		if shouldSkip(b.name) {
			results = append(results, perfResult{name: b.name, timer: metrics.NilTimer{}, skipped: true})
			printResult(results[len(results)-1])
			continue
		}

		result, err := runBenchmark(ctx, b)
		if err != nil {
			return fmt.Errorf("%s: %w", b.name, err)
		}
		_ = registry.Register(b.name, result.timer)
		results = append(results, result)
		printResult(result)
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runBenchmark prepares the keys of b, runs it and removes its keys again
func runBenchmark(ctx context.Context, b benchmark) (perfResult, error) {
	keys := getKeys(b.name)
	defer func() {
		if err := kvStore.MDelete(ctx, keys); err != nil {
			fmt.Printf("(%s) - error deleting keys: %v\n", b.name, err)
		}
	}()

	if b.setup != nil {
		if err := b.setup(ctx, keys); err != nil {
			return perfResult{}, fmt.Errorf("setup failed: %w", err)
		}
	}

	result := perfResult{name: b.name, timer: metrics.NewTimer()}
	var next atomic.Int64
	var errCount atomic.Int64
	var wg sync.WaitGroup

	start := time.Now()
	for w := 0; w < perfNumThreads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= perfOps || ctx.Err() != nil {
					return
				}
				opStart := time.Now()
				if err := b.op(ctx, keys, i); err != nil {
					if errCount.Add(1) == 1 {
						fmt.Printf("(%s) - first error: %v\n", b.name, err)
					}
					continue
				}
				result.timer.UpdateSince(opStart)
			}
		}()
	}
	wg.Wait()

	result.elapsed = time.Since(start)
	result.errors = errCount.Load()
	return result, ctx.Err()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// getKeys creates the test keys of one benchmark
func getKeys(prefix string) []string {
	keys := make([]string, perfKeySpread)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}
	return keys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(result perfResult) {
	if result.skipped {
		fmt.Printf("%-12sskipped\n", result.name)
		return
	}

	snapshot := result.timer.Snapshot()
	ps := snapshot.Percentiles(perfPercentiles)
	fmt.Printf("%-12s%8.0f ops/sec  mean=%s  p50=%s  p90=%s  p99=%s  max=%s  errors=%d\n",
		result.name,
		result.opsPerSec(),
		time.Duration(snapshot.Mean()).Round(time.Microsecond),
		time.Duration(ps[0]).Round(time.Microsecond),
		time.Duration(ps[1]).Round(time.Microsecond),
		time.Duration(ps[2]).Round(time.Microsecond),
		time.Duration(snapshot.Max()).Round(time.Microsecond),
		result.errors,
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []perfResult, config common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{
		"Test", "Ops", "Errors", "OpsPerSec", "MeanNs", "P50Ns", "P90Ns", "P99Ns", "MaxNs", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ShardID", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, result := range results {
		snapshot := result.timer.Snapshot()
		ps := snapshot.Percentiles(perfPercentiles)

		row := []string{
			result.name,
			strconv.FormatInt(snapshot.Count(), 10),
			strconv.FormatInt(result.errors, 10),
			fmt.Sprintf("%.0f", result.opsPerSec()),
			fmt.Sprintf("%.0f", snapshot.Mean()),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			fmt.Sprintf("%.0f", ps[2]),
			strconv.FormatInt(snapshot.Max(), 10),
			strconv.FormatBool(result.skipped),
			strings.Join(config.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			strconv.Itoa(config.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", result.name, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
