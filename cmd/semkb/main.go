// Command semkb loads RDF facts and Mangle rules, materialises the rule
// consequences and answers queries over the result.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"semkb/internal/config"
	"semkb/internal/logging"
	"semkb/internal/metrics"
)

var (
	// Global flags
	verbose     bool
	configPath  string
	metricsAddr string

	// Logger
	logger *zap.Logger

	// Per-invocation runtime, set up in PersistentPreRunE.
	rt *app
)

// app bundles what every subcommand shares.
type app struct {
	cfg       *config.Config
	sessionID string
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	audit     *logging.AuditLogger
	live      *liveStore
	server    *http.Server
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "semkb",
		Short: "semkb - RDF element store with a stratified Datalog engine",
		Long: `semkb interns RDF terms into a graph element store and materialises
the consequences of Mangle-syntax rules over the default graph.

Rules may use stratified negation and contradiction heads. Facts are read
as N-Triples or N-Quads; named graphs are stored but never reasoned over.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			teardown()
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "semkb.yaml", "Configuration file")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")

	root.AddCommand(newReasonCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newStatsCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup builds the logger, loads configuration and starts the metrics
// endpoint when one is configured.
func setup(cmd *cobra.Command, args []string) error {
	zc := zap.NewProductionConfig()
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	var err error
	logger, err = zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if verbose {
		cfg.Logging.DebugMode = true
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration %s: %w", configPath, err)
	}
	// A configured log file gets its own backend; otherwise categories share
	// the CLI logger.
	if cfg.Logging.File != "" {
		if err := logging.Initialize(cfg.Logging.ToLogging()); err != nil {
			return fmt.Errorf("failed to initialize log file: %w", err)
		}
	} else {
		logging.InitializeWithLogger(cfg.Logging.ToLogging(), logger)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	rt = &app{
		cfg:       cfg,
		sessionID: uuid.NewString(),
		registry:  reg,
		metrics:   metrics.NewMetrics(reg),
		live:      &liveStore{},
	}
	rt.audit = logging.Audit(rt.sessionID)
	if err := metrics.RegisterStore(reg, rt.live); err != nil {
		return fmt.Errorf("failed to register store metrics: %w", err)
	}

	logging.Boot("Session %s: %s", rt.sessionID, cmd.Name())
	logging.BootDebug("Configuration %s: engine %+v", configPath, cfg.Engine)

	logger.Debug("semkb starting",
		zap.String("command", cmd.Name()),
		zap.String("session", rt.sessionID),
		zap.String("config", configPath))

	if cfg.Metrics.Addr != "" {
		rt.serveMetrics()
	}
	return nil
}

func (r *app) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle(r.cfg.Metrics.Path, promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry}))
	r.server = &http.Server{
		Addr:              r.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Serving metrics", zap.String("addr", r.cfg.Metrics.Addr), zap.String("path", r.cfg.Metrics.Path))
		if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
}

func teardown() {
	if rt != nil && rt.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rt.server.Shutdown(ctx); err != nil {
			logger.Warn("Metrics server shutdown", zap.Error(err))
		}
		cancel()
	}
	if logger != nil {
		_ = logger.Sync()
	}
	logging.Sync()
}
