// wranglecli — adaptive preview calculation for tabular data sources.
//
// Usage:
//
//	wranglecli --preview --db data.db --query "SELECT * FROM orders"
//	wranglecli --full --csv orders.csv --xlsx out.xlsx
//
// The preview command runs the adaptive example engine: it sizes the input
// row budget from observed per-step performance and retries within a soft
// time budget until the example is large enough.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ruslano69/wrangle/pkg/cache"
	"github.com/ruslano69/wrangle/pkg/calc"
	"github.com/ruslano69/wrangle/pkg/core/table"
	"github.com/ruslano69/wrangle/pkg/export"
	"github.com/ruslano69/wrangle/pkg/source"
	"github.com/ruslano69/wrangle/pkg/step"
)

func main() {
	flags := ParseFlags()

	if *flags.Version {
		PrintVersion()
		os.Exit(0)
	}
	if *flags.Help {
		PrintHelp()
		os.Exit(0)
	}
	if *flags.CreateConfig {
		createConfigTemplate()
		return
	}

	// Pretty console log; switch to JSON in production via log.Logger = zerolog.New(os.Stderr)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if *flags.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	config := &Config{}
	if *flags.Config != "" {
		var err error
		config, err = LoadConfig(*flags.Config)
		if err != nil {
			fatal("Failed to load config: %v", err)
		}
	}

	if !*flags.Preview && !*flags.Full {
		PrintHelp()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := metricsAddr(config, flags); addr != "" {
		go serveMetrics(addr)
	}

	st, cleanup, err := buildStep(flags, config)
	if err != nil {
		fatal("Failed to build source: %v", err)
	}
	defer cleanup()

	if err := run(ctx, config, flags, st); err != nil {
		fatal("Command failed: %v", err)
	}
}

// buildStep assembles the data source step, optionally wrapped with the
// full-result cache.
func buildStep(flags *Flags, config *Config) (step.Step, func(), error) {
	cleanup := func() {}

	var st step.Step
	switch {
	case *flags.CSV != "":
		st = source.NewCSVStep(*flags.CSV)
	case *flags.DB != "" && *flags.Query != "":
		w, err := source.OpenWorkspace(*flags.DB)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() { w.Close() }
		st = w.Query(*flags.Query)
	default:
		return nil, cleanup, fmt.Errorf("no data source: use --csv or --db with --query")
	}

	if config.Cache.Enabled {
		cached, closeCache, err := wrapWithCache(st, config.Cache)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		prev := cleanup
		cleanup = func() {
			closeCache()
			prev()
		}
		st = cached
	}

	return st, cleanup, nil
}

// wrapWithCache puts the configured cache backend in front of the step.
func wrapWithCache(st step.Step, cfg CacheConfig) (step.Step, func(), error) {
	codec, err := cache.NewCodec(cfg.CompressLevel)
	if err != nil {
		return nil, nil, err
	}

	var backend cache.Cache
	closeFn := codec.Close
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		backend = cache.NewRedisCache(rdb)
		closeFn = func() {
			rdb.Close()
			codec.Close()
		}
		log.Debug().Str("addr", cfg.RedisAddr).Msg("using redis result cache")
	} else {
		backend = cache.NewMemoryCache(int64(cfg.MaxMemoryMB) * 1024 * 1024)
		log.Debug().Int("max_memory_mb", cfg.MaxMemoryMB).Msg("using in-memory result cache")
	}

	ttl := time.Duration(cfg.TTLMinutes) * time.Minute
	return cache.NewCachingStep(st, backend, codec, ttl, cache.WithLogger(log.Logger)), closeFn, nil
}

// run drives one calculation through the coordinator and writes the result.
func run(ctx context.Context, config *Config, flags *Flags, st step.Step) error {
	engineCfg := config.Engine.ToCalc()
	engineCfg.Logger = log.Logger

	coord, err := calc.New(engineCfg)
	if err != nil {
		return err
	}
	defer coord.Close()

	filters, err := ParseWhere(*flags.Where)
	if err != nil {
		return err
	}

	opts := calc.Options{Filters: filters}
	if *flags.MaxTimeMs > 0 {
		opts.MaxTime = time.Duration(*flags.MaxTimeMs) * time.Millisecond
	}

	started := time.Now()
	var handle *calc.Calculation
	if *flags.Full {
		handle, err = coord.Calculate(ctx, st, calc.FullMode(), opts)
	} else {
		handle, err = coord.CalculateExample(ctx, st, opts)
	}
	if err != nil {
		return err
	}

	env, err := handle.Wait(ctx)
	if err != nil {
		return err
	}

	log.Info().
		Int("rows", env.Raster.NumRows()).
		Int("attempts", env.Attempts).
		Bool("full", env.Full).
		Dur("elapsed", time.Since(started)).
		Msg("calculation finished")

	return writeResult(env.Raster, flags)
}

// writeResult sends the raster to the requested destination.
func writeResult(raster *table.Raster, flags *Flags) error {
	switch {
	case *flags.XLSX != "":
		if err := export.ToXLSX(raster, *flags.XLSX, *flags.Sheet); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote %d rows to %s\n", raster.NumRows(), *flags.XLSX)
	case *flags.Output != "":
		if err := export.ToCSVFile(raster, *flags.Output); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote %d rows to %s\n", raster.NumRows(), *flags.Output)
	default:
		RenderTable(os.Stdout, raster)
	}
	return nil
}

// metricsAddr resolves the metrics listen address from flag and config.
func metricsAddr(config *Config, flags *Flags) string {
	if *flags.MetricsAddr != "" {
		return *flags.MetricsAddr
	}
	if config.Metrics.Enabled {
		if config.Metrics.Addr != "" {
			return config.Metrics.Addr
		}
		return ":9090"
	}
	return ""
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info().Str("addr", addr).Msg("metrics endpoint started")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("metrics server error")
	}
}

// createConfigTemplate creates a sample configuration file
func createConfigTemplate() {
	if err := SaveConfig("config.yaml", CreateSampleConfig()); err != nil {
		fatal("Failed to save config: %v", err)
	}

	fmt.Println("✓ Created sample config: config.yaml")
	fmt.Println("Edit the file and run:")
	fmt.Println("  wranglecli --preview --db data.db --query \"SELECT * FROM t\" --config config.yaml")
}

// fatal prints error and exits
func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
