package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/rKV/cmd/util"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/ValentinKolb/rKV/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for rKV providers",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 1000
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

// benchmark is one entry of the perf run. prepare is called with the test
// keys before the timer starts, op is called once per iteration.
type benchmark struct {
	name    string
	prepare func(ctx context.Context, keys []string) error
	op      func(ctx context.Context, key string, i int) error
}

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("How large the value for the large tests should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(1, viper.GetInt("keys"))
	perfNumThreads = max(1, viper.GetInt("threads"))
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	fmt.Println("Performance testing tool for rKV providers")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  %-22s: %s\n", "Store", rpcStore)
	fmt.Printf("  %-22s: %d\n", "Threads", perfNumThreads)
	fmt.Printf("  %-22s: %d KB\n", "Large Value", perfLargeValueSizeKB)
	fmt.Println()
	fmt.Println("starting tests...")

	small := []byte("test")
	large := make([]byte, perfLargeValueSizeKB*1024)

	setAll := func(value []byte) func(context.Context, []string) error {
		return func(ctx context.Context, keys []string) error {
			for _, k := range keys {
				if err := rpcStore.SetBytes(ctx, k, value); err != nil {
					return err
				}
			}
			return nil
		}
	}

	// the cached store layer on top of the same client
	cached, err := store.New("perf", rpcStore, store.DefaultOptions())
	if err != nil {
		return err
	}

	benchmarks := []benchmark{
		{name: "set", op: func(ctx context.Context, key string, _ int) error {
			return rpcStore.SetBytes(ctx, key, small)
		}},
		{name: "set-large", op: func(ctx context.Context, key string, _ int) error {
			return rpcStore.SetBytes(ctx, key, large)
		}},
		{name: "get", prepare: setAll(small), op: func(ctx context.Context, key string, _ int) error {
			_, _, err := rpcStore.GetBytes(ctx, key)
			return err
		}},
		{name: "get-large", prepare: setAll(large), op: func(ctx context.Context, key string, _ int) error {
			_, _, err := rpcStore.GetBytes(ctx, key)
			return err
		}},
		{name: "get-cached", prepare: setAll(small), op: func(ctx context.Context, key string, _ int) error {
			_, _, err := store.Get[[]byte](ctx, cached, key, false, false)
			return err
		}},
		{name: "exists", prepare: setAll(small), op: func(ctx context.Context, key string, _ int) error {
			_, err := rpcStore.Exists(ctx, key)
			return err
		}},
		{name: "exists-not", op: func(ctx context.Context, key string, _ int) error {
			_, err := rpcStore.Exists(ctx, key+"-missing")
			return err
		}},
		{name: "mixed", prepare: setAll(small), op: func(ctx context.Context, key string, i int) error {
			var err error
			switch i % 4 {
			case 0:
				err = rpcStore.SetBytes(ctx, key, small)
			case 1:
				_, _, err = rpcStore.GetBytes(ctx, key)
			case 2:
				_, _, err = rpcStore.GetSize(ctx, key)
			case 3:
				_, err = rpcStore.Exists(ctx, key)
			}
			return err
		}},
	}

	results := make(map[string]testing.BenchmarkResult)
	for _, bm := range benchmarks {
		if slices.Contains(perfSkip, bm.name) {
			results[bm.name] = testing.BenchmarkResult{}
			printResult(bm.name, results[bm.name])
			continue
		}
		results[bm.name] = runBenchmark(ctx, bm)
		printResult(bm.name, results[bm.name])
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.ClientParams()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func runBenchmark(ctx context.Context, bm benchmark) testing.BenchmarkResult {
	keys := make([]string, perfKeySpread)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, bm.name, i)
	}

	return testing.Benchmark(func(b *testing.B) {
		if bm.prepare != nil {
			if err := bm.prepare(ctx, keys); err != nil {
				log.Printf("(%s) - error preparing keys: %v\n", bm.name, err)
				return
			}
		}

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				if err := bm.op(ctx, keys[counter%len(keys)], counter); err != nil {
					log.Printf("(%s) - error: %v\n", bm.name, err)
				}
				counter++
			}
		})
	})
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1)
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, params store.Params) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Addr", "Provider", "TimeoutSec", "Serializer", "BulkEndpoint",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	tests := make([]string, 0, len(results))
	for test := range results {
		tests = append(tests, test)
	}
	sort.Strings(tests)

	for _, test := range tests {
		result := results[test]

		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			params[client.ParamAddr],
			params[client.ParamProvider],
			params[client.ParamTimeout],
			params[client.ParamSerializer],
			params[client.ParamBulkEndpoint],
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
