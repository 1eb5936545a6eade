// goems -- Event Management Server: a named-FIFO session dispatcher in
// front of a shared, in-memory event catalog.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/dantte-lp/goems/internal/acceptor"
	"github.com/dantte-lp/goems/internal/catalog"
	"github.com/dantte-lp/goems/internal/config"
	"github.com/dantte-lp/goems/internal/control"
	"github.com/dantte-lp/goems/internal/dispatcher"
	emsmetrics "github.com/dantte-lp/goems/internal/metrics"
	"github.com/dantte-lp/goems/internal/queue"
	appversion "github.com/dantte-lp/goems/internal/version"
)

// shutdownTimeout bounds how long the metrics HTTP server is given to
// drain active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// rendezvousMode is the creation mode of the rendezvous FIFO, per
// spec.md §6.
const rendezvousMode = 0o640

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Parse the CLI: "server <rendezvous_pipe_path> [access_delay_us]"
	// plus an optional --config for everything the positional arguments
	// don't pin down (spec.md §6).
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(os.Stderr, "usage: goems [--config path] <rendezvous_pipe_path> [access_delay_us]")
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()))
		return 1
	}

	cfg.Server.RendezvousPath = args[0]
	if len(args) == 2 {
		us, parseErr := strconv.ParseInt(args[1], 10, 64)
		if parseErr != nil || us < 0 {
			fmt.Fprintf(os.Stderr, "invalid access_delay_us %q\n", args[1])
			return 1
		}
		cfg.Server.AccessDelay = time.Duration(us) * time.Microsecond
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		return 1
	}

	logger := newLogger(cfg.Log)
	logger.Info("goems starting",
		slog.String("version", appversion.Version),
		slog.String("rendezvous_path", cfg.Server.RendezvousPath),
		slog.Int("max_sessions", cfg.Server.MaxSessions),
		slog.Duration("access_delay", cfg.Server.AccessDelay),
		slog.String("metrics_addr", cfg.Metrics.Addr),
	)

	if err := createRendezvousFIFO(cfg.Server.RendezvousPath); err != nil {
		logger.Error("failed to create rendezvous FIFO", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if rmErr := os.Remove(cfg.Server.RendezvousPath); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warn("failed to unlink rendezvous FIFO", slog.String("error", rmErr.Error()))
		}
	}()

	reg := prometheus.NewRegistry()
	collector := emsmetrics.NewCollector(reg)

	cat := catalog.New(cfg.Server.AccessDelay)
	defer cat.Terminate()

	if err := runServer(cfg, cat, collector, reg, logger); err != nil {
		logger.Error("goems exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("goems stopped")
	return 0
}

// runServer wires the Session Queue, worker pool, Connection Acceptor,
// Signal Controller, and metrics HTTP server together and runs them
// under a single errgroup, mirroring the teacher's runServers.
func runServer(
	cfg *config.Config,
	cat catalog.Facade,
	collector *emsmetrics.Collector,
	reg *prometheus.Registry,
	logger *slog.Logger,
) error {
	q := queue.New(cfg.Server.MaxSessions)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := control.NewState()
	controller := control.NewController(state, q, logger, cancel)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return controller.Run(gCtx)
	})

	acc := acceptor.New(cfg.Server.RendezvousPath, q, state, cat, logger, collector)
	g.Go(func() error {
		return acc.Run(gCtx)
	})

	pool := dispatcher.New(q, cat, logger, collector)
	for i := range cfg.Server.MaxSessions {
		workerID := i
		g.Go(func() error {
			return pool.RunWorker(gCtx, workerID)
		})
	}

	metricsSrv := newMetricsServer(cfg.Metrics, reg)
	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr), slog.String("path", cfg.Metrics.Path))
		return listenAndServe(gCtx, metricsSrv, cfg.Metrics.Addr)
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(gCtx), shutdownTimeout)
		defer cancelShutdown()
		notifyStopping(logger)
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return runWatchdog(gCtx, logger)
	})

	notifyReady(logger)

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}
	return nil
}

// createRendezvousFIFO creates the rendezvous pipe at mode 0640 per
// spec.md §6 if it doesn't already exist, and fails startup (spec.md
// §7's ResourceError "aborts startup if during init") on any other
// error.
func createRendezvousFIFO(path string) error {
	err := unix.Mkfifo(path, rendezvousMode)
	if err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return nil
}

// loadConfig loads configuration from a file path or returns defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.Level)}
	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func listenAndServe(ctx context.Context, srv *http.Server, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// -------------------------------------------------------------------------
// Systemd Integration -- sd_notify + watchdog
// -------------------------------------------------------------------------

func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

// runWatchdog sends periodic watchdog keepalives to systemd at half the
// configured interval, exiting immediately if no watchdog is configured.
func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_sec", interval), slog.Duration("keepalive_interval", tickInterval))

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", wdErr.Error()))
			}
		}
	}
}
