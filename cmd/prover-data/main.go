// prover-data keeps circuit inputs ready for committed rollup blocks.
// It replays every unverified commit on top of the state committed before
// it, checks the replayed root against the committed one and serves the
// result to proof generators until they release it.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/colorfulnotion/zkwitness/config"
	"github.com/colorfulnotion/zkwitness/log"
	"github.com/colorfulnotion/zkwitness/prover/pool"
	"github.com/colorfulnotion/zkwitness/storage"
	"github.com/colorfulnotion/zkwitness/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// commonFlags are shared by every subcommand.
type commonFlags struct {
	configID string
	dataPath string
	debug    string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configID, "config", "c", "dev", "Config name (dev, large) or path to a JSON/YAML file")
	cmd.Flags().StringVarP(&f.dataPath, "data-path", "d", "", "Ledger directory (overrides the config)")
	cmd.Flags().StringVar(&f.debug, "debug", "", "Log modules to enable (overrides the config)")
}

// load reads and validates the config, applies flag overrides and sets up
// logging.
func (f *commonFlags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.ReadConfig(f.configID)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("data-path") {
		cfg.DataPath = f.dataPath
	}
	if cmd.Flags().Changed("debug") {
		cfg.LogModules = f.debug
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if level == "" {
		level = "info"
	}
	if cfg.LogJSON {
		log.InitJSONLogger(level)
	} else {
		log.InitLogger(level)
	}
	log.EnableModules(cfg.LogModules)
	return cfg, nil
}

func main() {
	var rootCmd = &cobra.Command{
		Use:     "prover-data",
		Short:   "Prover data service for rollup blocks",
		Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(newRunCmd(), newBuildCmd(), newSeedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var (
		flags       commonFlags
		metricsAddr string
		otlp        string
		interval    time.Duration
		parallel    bool
	)
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Maintain the prover data pool and serve it over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if cmd.Flags().Changed("otlp") {
				cfg.OTLPEndpoint = otlp
			}
			if cmd.Flags().Changed("interval") {
				cfg.Interval = config.Duration(interval)
			}
			if cmd.Flags().Changed("parallel") {
				cfg.ParallelPrepare = parallel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}
	flags.register(runCmd)
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address serving /metrics and the prover data API")
	runCmd.Flags().StringVar(&otlp, "otlp", "", "OTLP/HTTP trace collector (host:port)")
	runCmd.Flags().DurationVar(&interval, "interval", 0, "Maintenance interval")
	runCmd.Flags().BoolVar(&parallel, "parallel", false, "Replay size classes concurrently")
	return runCmd
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, "prover-data")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Warn(log.NodeMonitoring, "tracer shutdown failed", "err", err)
		}
	}()

	store, err := storage.OpenLedgerStore(cfg.DataPath)
	if err != nil {
		return fmt.Errorf("failed to open ledger at %s: %w", cfg.DataPath, err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	limits := make(map[int]int, len(cfg.BlockChunkSizes))
	for _, size := range cfg.BlockChunkSizes {
		limits[size] = cfg.LimitFor(size)
	}
	p, err := pool.NewProversDataPool(store, pool.Options{
		BlockChunkSizes: cfg.BlockChunkSizes,
		Limit:           cfg.RefillLimit,
		Limits:          limits,
		Parallel:        cfg.ParallelPrepare,
		Metrics:         metrics,
	})
	if err != nil {
		return err
	}

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		mux.Handle("/", pool.NewHandler(p))
		srv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Crit(log.NodeMonitoring, "http server failed", "addr", cfg.MetricsAddr, "err", err)
			}
		}()
	}

	log.Info(log.NodeMonitoring, "prover data service started",
		"version", Version,
		"sizes", cfg.BlockChunkSizes,
		"interval", cfg.Interval,
		"data", cfg.DataPath,
		"http", cfg.MetricsAddr)

	runner := pool.NewRunner(p, time.Duration(cfg.Interval), nil)
	runner.Start(ctx)

	<-ctx.Done()
	runner.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}
	log.Info(log.NodeMonitoring, "prover data service stopped")
	return nil
}
