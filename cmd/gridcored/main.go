// Command gridcored is the resampling/power-arbitration daemon: it dials
// the microgrid RPC API, resamples every meter and battery stream on a
// wall-clock aligned timer, reconciles power proposals through Matryoshka,
// and publishes both over MQTT telemetry, all observable through
// Prometheus metrics and a bbolt-backed decision audit log.
//
// Wiring and flag/signal handling follow the teacher's cmd/autonomyd/main.go
// (PID file lifecycle, signal-driven graceful shutdown, structured startup
// logging); the domain logic it wires together is new.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/holmgren-io/microgrid-core/pkg/audit"
	"github.com/holmgren-io/microgrid-core/pkg/config"
	"github.com/holmgren-io/microgrid-core/pkg/logx"
	"github.com/holmgren-io/microgrid-core/pkg/metrics"
	"github.com/holmgren-io/microgrid-core/pkg/microgrid"
	"github.com/holmgren-io/microgrid-core/pkg/pidfile"
	"github.com/holmgren-io/microgrid-core/pkg/power"
	"github.com/holmgren-io/microgrid-core/pkg/resampler"
	"github.com/holmgren-io/microgrid-core/pkg/retry"
	"github.com/holmgren-io/microgrid-core/pkg/telemetry"
	"github.com/holmgren-io/microgrid-core/pkg/timeseries"
)

const (
	appName    = "gridcored"
	appVersion = "0.1.0"
)

var (
	configPath = flag.String("config", "/etc/gridcored/config.json", "Path to JSON configuration file")
	pidPath    = flag.String("pid-file", "/var/run/gridcored.pid", "Path to PID file")
	logLevel   = flag.String("log-level", "", "Override configured log level (debug|info|warn|error)")
	version    = flag.Bool("version", false, "Show version information")
	force      = flag.Bool("force", false, "Force start by removing a stale PID file")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}

	effectiveLevel := cfg.LogLevel
	if *logLevel != "" {
		effectiveLevel = *logLevel
	}
	logger := logx.NewLogger(effectiveLevel, appName)

	pf := pidfile.New(*pidPath)
	running, existingPID, err := pf.CheckRunning()
	if err != nil {
		logger.Error("failed to check for a running instance", "error", err)
		os.Exit(1)
	}
	if running {
		if !*force {
			fmt.Fprintf(os.Stderr, "%s is already running with PID %d; use -force to override\n", appName, existingPID)
			os.Exit(1)
		}
		logger.Warn("another instance appears to be running, forcing start", "existing_pid", existingPID)
		if err := pf.ForceRemove(); err != nil {
			logger.Error("failed to remove stale PID file", "error", err)
			os.Exit(1)
		}
	}
	if err := pf.Acquire(); err != nil {
		logger.Error("failed to create PID file", "error", err, "path", *pidPath)
		os.Exit(1)
	}
	defer func() {
		if err := pf.Release(); err != nil {
			logger.Error("failed to remove PID file", "error", err)
		}
	}()

	logger.Info("starting", "version", appVersion, "pid", os.Getpid(), "config", *configPath)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *logx.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ledger, err := audit.Open(cfg.AuditDBPath, 10000, logger.With("component", "audit"))
	if err != nil {
		return fmt.Errorf("open audit ledger: %w", err)
	}
	defer ledger.Close()

	m := metrics.New()
	if cfg.MetricsListener {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsPort); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	mgClient, err := microgrid.NewClient(ctx, cfg.MicrogridTarget, cfg.MicrogridDialTimeout(), logger.With("component", "microgrid"))
	if err != nil {
		return fmt.Errorf("dial microgrid API at %s: %w", cfg.MicrogridTarget, err)
	}
	defer mgClient.Close()

	strategy := retry.Strategy{
		BaseDelay:   time.Duration(cfg.RetryBaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.RetryMaxDelayMS) * time.Millisecond,
		Multiplier:  cfg.RetryMultiplier,
		MaxAttempts: cfg.RetryMaxAttempts,
	}
	limiter := retry.NewLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst)

	telemetryClient := telemetry.NewClient(telemetry.Config{
		Broker:      cfg.MQTTBroker,
		ClientID:    cfg.MQTTClientID,
		TopicPrefix: "gridcored",
		QoS:         byte(cfg.MQTTQoS),
		Retain:      cfg.MQTTRetained,
		Enabled:     cfg.MQTTEnabled,
	}, strategy, limiter, logger.With("component", "telemetry"))
	if err := telemetryClient.Connect(); err != nil {
		return fmt.Errorf("connect telemetry: %w", err)
	}
	defer telemetryClient.Disconnect()

	reductionFn := timeseries.Mean
	if cfg.ReductionFn == "linear_extrapolation" {
		reductionFn = timeseries.LinearExtrapolation
	}

	var alignOpt timeseries.ResamplerConfigOption
	if cfg.AlignToUTCMidnight {
		now := time.Now().UTC()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		alignOpt = timeseries.WithAlignTo(midnight)
	}

	opts := []timeseries.ResamplerConfigOption{
		timeseries.WithReductionFn(reductionFn),
		timeseries.WithBufferLens(cfg.BufferLenInit, cfg.BufferLenWarn, cfg.BufferLenMax),
	}
	if alignOpt != nil {
		opts = append(opts, alignOpt)
	}

	rsCfg, err := timeseries.NewResamplerConfig(cfg.ResamplingPeriod(), cfg.MaxDataAgeInPeriods, opts...)
	if err != nil {
		return fmt.Errorf("build resampler config: %w", err)
	}

	rs := resampler.NewResampler(rsCfg, logger.With("component", "resampler"))
	arbitrator := power.NewMatryoshka(logger.With("component", "matryoshka"))
	perf := logx.NewPerformanceLogger(logger.With("component", "performance"),
		logx.WithMetricSink(m),
		logx.WithThresholds(500*time.Millisecond, 95.0),
	)

	components, err := mgClient.Components(ctx)
	if err != nil {
		return fmt.Errorf("list components: %w", err)
	}

	for _, c := range components {
		switch c.Category {
		case microgrid.CategoryMeter:
			if err := wireMeter(ctx, mgClient, rs, telemetryClient, c.ID); err != nil {
				logger.Error("failed to wire meter", "component_id", c.ID, "error", err)
			}
		case microgrid.CategoryBattery:
			if err := wireBattery(ctx, mgClient, rs, telemetryClient, arbitrator, ledger, perf, c.ID); err != nil {
				logger.Error("failed to wire battery", "component_id", c.ID, "error", err)
			}
		}
	}

	go perf.RunSweeps(ctx, 5*time.Minute)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	errCh := make(chan error, 1)
	go func() { errCh <- resampleLoop(ctx, rs, ledger, m, perf, logger) }()

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			logger.Error("resample loop stopped", "error", err)
		}
	}

	rs.Stop()
	return nil
}

// resampleLoop drives one ResamplerScheduler pass at a time (oneShot=true
// on every call) so each pass's *ResamplingError, if any, can be recorded
// to the audit ledger without stopping the loop, per spec.md §4.6 (the
// timer remains armed after a failed pass).
func resampleLoop(ctx context.Context, rs *resampler.Resampler, ledger *audit.Ledger, m *metrics.Metrics, perf *logx.PerformanceLogger, logger *logx.Logger) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		op := perf.StartOperation(ctx, "resample_pass")
		err := rs.Resample(ctx, true)
		op.Complete(err)
		if err == nil {
			m.ResamplePassesTotal.WithLabelValues("ok").Inc()
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		m.ResamplePassesTotal.WithLabelValues("partial_failure").Inc()

		resErr, ok := err.(*resampler.ResamplingError)
		if !ok {
			logger.Error("unexpected resample loop error", "error", err)
			continue
		}
		for source, cause := range resErr.Failures {
			m.SourceErrorsTotal.WithLabelValues(source).Inc()
			recErr := ledger.RecordResamplingFailure(audit.ResamplingFailure{
				Timestamp: time.Now(),
				Source:    source,
				Cause:     cause.Error(),
			})
			if recErr != nil {
				logger.Error("failed to record resampling failure", "error", recErr)
			}
		}
	}
}
