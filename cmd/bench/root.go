package bench

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/sKV/cmd/util"
	"github.com/ValentinKolb/sKV/lib/value"
	"github.com/ValentinKolb/sKV/lib/workpool"
	"github.com/ValentinKolb/sKV/rpc/client"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/olekukonko/tablewriter"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("bench")

var (
	// BenchCmd runs the load test
	BenchCmd = &cobra.Command{
		Use:     "bench",
		Short:   "Performance testing tool for sKV servers",
		Long:    "Runs SET, GET, UPDATE and DEL phases against a temporary table. Every worker holds its own connection, every key is used exactly once per phase.",
		PreRunE: processBenchConfig,
		RunE:    run,
	}

	benchConfig = config{}
)

// phases in execution order
var phases = []string{"set", "get", "update", "del"}

type config struct {
	workers   int
	queries   int
	keyLen    int
	valueSize int
	seed      int64
	skip      map[string]bool
	csvPath   string
	logLevel  string
}

func init() {
	cobra.OnInitialize(util.InitClientConfig)
	util.SetupClientFlags(BenchCmd)

	key := "workers"
	BenchCmd.Flags().Int(key, 10, util.WrapString("Number of workers, each worker opens one connection"))
	key = "queries"
	BenchCmd.Flags().Int(key, 100_000, util.WrapString("Number of queries per phase, this is also the number of distinct keys"))
	key = "key-size"
	BenchCmd.Flags().Int(key, 8, util.WrapString("Length of the generated keys, raised automatically if too short for the requested number of keys"))
	key = "value-size"
	BenchCmd.Flags().Int(key, 64, util.WrapString("Size of the random values in bytes"))
	key = "seed"
	BenchCmd.Flags().Int64(key, 0, util.WrapString("Seed of the key generator, 0 picks a random seed"))
	key = "skip"
	BenchCmd.Flags().String(key, "", util.WrapString("Phases to skip (comma separated - e.g. update,del)"))
	key = "csv"
	BenchCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
	key = "log-level"
	BenchCmd.Flags().String(key, "warn", util.WrapString("LogLevel of the bench tool (debug, info, warn, error)"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	benchConfig = config{
		workers:   viper.GetInt("workers"),
		queries:   viper.GetInt("queries"),
		keyLen:    viper.GetInt("key-size"),
		valueSize: viper.GetInt("value-size"),
		seed:      viper.GetInt64("seed"),
		skip:      map[string]bool{},
		csvPath:   viper.GetString("csv"),
		logLevel:  viper.GetString("log-level"),
	}
	for _, s := range strings.Split(viper.GetString("skip"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			benchConfig.skip[s] = true
		}
	}

	if benchConfig.workers < 1 || benchConfig.queries < 1 || benchConfig.keyLen < 1 || benchConfig.valueSize < 0 {
		return fmt.Errorf("workers, queries and key-size must be positive")
	}
	if benchConfig.seed == 0 {
		benchConfig.seed = time.Now().UnixNano()
	}
	return nil
}

// --------------------------------------------------------------------------
// Run
// --------------------------------------------------------------------------

// result of one phase
type result struct {
	phase   string
	elapsed time.Duration
	timer   gometrics.Timer
	errors  gometrics.Counter
}

// task is one query executed by a worker
type task struct {
	action string
	key    value.Value
	value  value.Value
}

func run(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	if err := common.InitLoggers(benchConfig.logLevel); err != nil {
		return err
	}

	clientConfig, err := util.GetClientConfig()
	if err != nil {
		return err
	}

	fmt.Println("Performance testing tool for sKV servers")
	fmt.Println(clientConfig.String())
	fmt.Printf("Workers: %d, queries per phase: %d, value size: %d bytes, seed: %d\n\n",
		benchConfig.workers, benchConfig.queries, benchConfig.valueSize, benchConfig.seed)

	// the admin connection owns the temporary keyspace
	admin, err := client.New(clientConfig)
	if err != nil {
		return err
	}
	defer func() { _ = admin.Close() }()

	rng := rand.New(rand.NewSource(benchConfig.seed))
	ks := fmt.Sprintf("skvbench_%s", uniqueKeys(rng, 1, 8)[0])
	entity := ks + ":kv"
	if err := admin.CreateKeyspace(ks); err != nil {
		return fmt.Errorf("create keyspace %s: %w", ks, err)
	}
	defer func() {
		if err := admin.DropKeyspace(ks, true); err != nil {
			Logger.Errorf("failed to drop keyspace %s: %v", ks, err)
		}
	}()
	if err := admin.CreateTable(entity, "keymap(binstr,binstr)"); err != nil {
		return fmt.Errorf("create table %s: %w", entity, err)
	}

	fmt.Println("generating keys...")
	keys := uniqueKeys(rng, benchConfig.queries, benchConfig.keyLen)
	values := make([]value.Value, len(keys))
	for i := range values {
		values[i] = value.Binary(randomBytes(rng, benchConfig.valueSize))
	}

	fmt.Println("starting tests...")
	var results []result
	for _, phase := range phases {
		if benchConfig.skip[phase] {
			continue
		}
		r, err := runPhase(cmd.Context(), clientConfig, entity, phase, keys, values)
		if err != nil {
			return fmt.Errorf("phase %s: %w", phase, err)
		}
		printResult(r)
		results = append(results, r)
	}

	fmt.Println()
	renderTable(os.Stdout, results)

	if benchConfig.csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", benchConfig.csvPath)
		if err := writeResultsToCSV(benchConfig.csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}
	return nil
}

// runPhase sends one query per key through a fresh worker pool
func runPhase(ctx context.Context, clientConfig common.ClientConfig, entity, phase string, keys []string, values []value.Value) (result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	r := result{
		phase:  phase,
		timer:  gometrics.NewTimer(),
		errors: gometrics.NewCounter(),
	}
	defer r.timer.Stop()

	pool, err := workpool.New(ctx, workpool.Config[*client.Client, task]{
		Workers:   benchConfig.workers,
		QueueSize: benchConfig.workers * 4,
		Init: func(worker int) (*client.Client, error) {
			c, err := client.New(clientConfig)
			if err != nil {
				return nil, err
			}
			if err := c.Use(entity); err != nil {
				_ = c.Close()
				return nil, err
			}
			Logger.Debugf("worker %d connected", worker)
			return c, nil
		},
		OnLoop: func(c *client.Client, t task) error {
			start := time.Now()
			var args []value.Value
			if t.value.IsNull() {
				args = []value.Value{t.key}
			} else {
				args = []value.Value{t.key, t.value}
			}
			resp, err := c.Do(t.action, args...)
			if err != nil {
				// the connection is gone, nothing this worker sends will arrive
				return err
			}
			r.timer.UpdateSince(start)
			if resp.IsError() {
				r.errors.Inc(1)
				Logger.Debugf("(%s) %s: %s", phase, t.key, resp)
			}
			return nil
		},
		OnExit: func(c *client.Client) {
			_ = c.Close()
		},
	})
	if err != nil {
		return r, err
	}

	start := time.Now()
	for i, k := range keys {
		t := task{action: strings.ToUpper(phase), key: value.BinaryString(k)}
		if phase == "set" || phase == "update" {
			t.value = values[i]
		}
		if err := pool.Submit(t); err != nil {
			_ = pool.Close()
			return r, err
		}
	}
	if err := pool.Close(); err != nil {
		return r, err
	}
	r.elapsed = time.Since(start)
	return r, nil
}

// --------------------------------------------------------------------------
// Report
// --------------------------------------------------------------------------

var percentiles = []float64{0.5, 0.95, 0.99}

func (r result) row() []string {
	snap := r.timer.Snapshot()
	ps := snap.Percentiles(percentiles)
	qps := 0.0
	if r.elapsed > 0 {
		qps = float64(snap.Count()) / r.elapsed.Seconds()
	}
	return []string{
		r.phase,
		strconv.FormatInt(snap.Count(), 10),
		strconv.FormatInt(r.errors.Count(), 10),
		fmt.Sprintf("%.0f", qps),
		time.Duration(snap.Mean()).String(),
		time.Duration(ps[0]).String(),
		time.Duration(ps[1]).String(),
		time.Duration(ps[2]).String(),
		time.Duration(snap.Max()).String(),
	}
}

var header = []string{"Phase", "Queries", "Errors", "Queries/s", "Mean", "P50", "P95", "P99", "Max"}

func printResult(r result) {
	row := r.row()
	fmt.Printf("%-8s %s queries in %s (%s q/s, %s errors)\n", r.phase, row[1], r.elapsed.Round(time.Millisecond), row[3], row[2])
}

func renderTable(w io.Writer, results []result) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	for _, r := range results {
		table.Append(r.row())
	}
	table.Render()
}

func writeResultsToCSV(path string, results []result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"Timestamp"}, header...)); err != nil {
		return err
	}
	ts := time.Now().Format(time.RFC3339)
	for _, r := range results {
		if err := w.Write(append([]string{ts}, r.row()...)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
