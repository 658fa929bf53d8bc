package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"syscall"

	"github.com/c2h5oh/datasize"

	"github.com/torqspark/dedupe-massive-wordlists/internal/config"
	"github.com/torqspark/dedupe-massive-wordlists/internal/metrics"
	"github.com/torqspark/dedupe-massive-wordlists/internal/metrics/datadog"
	"github.com/torqspark/dedupe-massive-wordlists/internal/metrics/prompush"

	// register all backends with the store factory.
	// flags specify which to use but we need to build in support for all of them.
	_ "github.com/torqspark/dedupe-massive-wordlists/internal/store/all"
)

// main is the entry point for the dedupe binary. It resolves flags and
// environment fallbacks into a validated config, optionally initializes a
// metrics backend, and executes the run.
func main() {
	defs := config.Default()

	var (
		reportPath  = flag.String("output", defs.ReportPath, "duplicates report path")
		cleanedPath = flag.String("cleaned", defs.CleanedPath, "deduplicated output path")
		logPath     = flag.String("log", defs.LogPath, "run log path")
		storeKind   = flag.String("store", defs.StoreKind, "store backend (sqlite, postgres, mssql)")
		storePath   = flag.String("store-path", defs.StorePath, "sqlite database file")
		dsn         = flag.String("dsn", "", "server store connection string (required for -store postgres or mssql)")
		table       = flag.String("table", defs.Table, "store table name")
		cache       = flag.String("cache", getenv("DEDUPE_CACHE_BYTES", config.DefaultCacheBudget.String()), "store cache budget, e.g. 16GB or 512MB")
		batch       = flag.Int("batch", getenvInt("DEDUPE_BATCH_SIZE", defs.BatchSize), "lines per store batch")
		workers     = flag.Int("workers", getenvInt("DEDUPE_WORKERS", defs.Workers), "output writer count")
		stripCR     = flag.Bool("strip-cr", defs.StripCR, "treat a \\r before the newline as part of the terminator")
		keepStore   = flag.Bool("keep-store", false, "keep the store after a successful run")

		metricsBackendFlg = flag.String("metrics-backend", defs.MetricsBackend, "metrics backend (none, pushgateway, datadog)")
		pushGatewayURLFlg = flag.String("pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
		dogstatsdAddrFlg  = flag.String("dogstatsd-addr", "127.0.0.1:8125", "DogStatsD address for the datadog backend")

		validate = flag.Bool("validate", false, "validate the configuration and exit")
	)

	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	var cacheBudget datasize.ByteSize
	if err := cacheBudget.UnmarshalText([]byte(*cache)); err != nil {
		fatalf("parse -cache %q: %v", *cache, err)
	}

	cfg := defs
	cfg.InputPath = flag.Arg(0)
	cfg.ReportPath = *reportPath
	cfg.CleanedPath = *cleanedPath
	cfg.LogPath = *logPath
	cfg.StoreKind = *storeKind
	cfg.StorePath = *storePath
	cfg.DSN = *dsn
	cfg.Table = *table
	cfg.CacheBytes = int64(cacheBudget.Bytes())
	cfg.BatchSize = *batch
	cfg.Workers = *workers
	cfg.StripCR = *stripCR
	cfg.KeepStore = *keepStore
	cfg.MetricsBackend = *metricsBackendFlg
	cfg.PushgatewayURL = *pushGatewayURLFlg
	cfg.DogstatsdAddr = *dogstatsdAddrFlg

	// Validate the resolved config before any file or database is touched.
	// Errors block the run; warnings are surfaced here and again in the run log.
	issues := config.Validate(cfg)
	var warnings []string
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
			continue
		}
		warnings = append(warnings, fmt.Sprintf("%s: %s", iss.Path, iss.Message))
	}
	if hasError {
		fatalf("configuration is invalid")
	}
	if *validate {
		log.Printf("configuration is valid")
		return
	}

	initMetrics(cfg)

	// Reduce GC frequency during large one-shot runs, unless overridden by env.
	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(800)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, cfg, warnings)

	// Push whatever was recorded, on success and on failure alike.
	if ferr := metrics.Flush(); ferr != nil {
		log.Printf("metrics: flush error: %v", ferr)
	}
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}

// initMetrics installs the configured metrics backend. A backend that fails
// to initialize is downgraded to the no-op default: metrics never block a run.
func initMetrics(cfg config.Config) {
	switch cfg.MetricsBackend {
	case "pushgateway":
		// Decide Pushgateway URL: flag → env → default.
		gwURL := cfg.PushgatewayURL
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}

		job := jobName(cfg.InputPath)
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, cfg.MetricsBackend, job)
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: cfg.DogstatsdAddr})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: addr=%v, backend=%v", cfg.DogstatsdAddr, cfg.MetricsBackend)
		metrics.SetBackend(b)

	case "", "none":
		// metrics disabled; nop backend remains

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", cfg.MetricsBackend)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: dedupe [flags] <input-file>\n\nFlags:\n")
	flag.PrintDefaults()
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

// getenvInt reads an int from environment, returning def when unset/invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// getenv reads a string from environment, returning def when unset.
func getenv(k, def string) string {
	if s := os.Getenv(k); s != "" {
		return s
	}
	return def
}
