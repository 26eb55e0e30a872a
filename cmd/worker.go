package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/maintenance-management/internal/notification"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start the background workers: the scheduled low-stock scan and the notification relay.`,
}

var lowStockWorkerCmd = &cobra.Command{
	Use:   "lowstock",
	Short: "Scan for materials at or below their minimum stock",
	Long:  `Run the low-stock scan on a cron schedule and queue an alert for each material that needs reordering`,
	Run: func(cmd *cobra.Command, args []string) {
		startLowStockWorker()
	},
}

var notificationWorkerCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Start the notification relay",
	Long:  `Drain the redis notification outbox and hand every message to the sender`,
	Run: func(cmd *cobra.Command, args []string) {
		startNotificationWorker()
	},
}

var (
	runOnce      bool
	scheduleSpec string
	metricsAddr  string
)

const queueGaugeInterval = 15 * time.Second

func startLowStockWorker() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	log := deps.Logger.With("worker", "lowstock")
	defer closeWorker(deps)

	if runOnce {
		scanLowStock(ctx, deps, log)
		return
	}

	spec := getStringFlag(scheduleSpec, deps.Config.Worker.LowStockSchedule)
	if spec == "" {
		log.Error("no low stock schedule configured")
		return
	}

	cronLog := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)))
	if _, err := c.AddFunc(spec, func() { scanLowStock(ctx, deps, log) }); err != nil {
		log.Error("invalid low stock schedule", "schedule", spec, "error", err)
		return
	}

	stopMetrics := serveWorkerMetrics(deps, log)
	defer stopMetrics()

	c.Start()
	log.Info("low stock worker is running. Press Ctrl+C to stop.", "schedule", spec)

	<-ctx.Done()
	log.Info("shutting down low stock worker")

	select {
	case <-c.Stop().Done():
		log.Info("low stock worker shutdown complete")
	case <-time.After(30 * time.Second):
		log.Warn("shutdown timeout reached, forcing exit")
	}
}

func scanLowStock(ctx context.Context, deps *Dependencies, log *slog.Logger) {
	start := time.Now()
	n, err := deps.Materials.NotifyLowStock(ctx)
	if err != nil {
		deps.Metrics.LowStockScan("error")
		log.Error("low stock scan failed", "error", err)
		return
	}
	if err := deps.Bus.Wait(ctx); err != nil {
		log.Warn("low stock alerts still dispatching", "error", err)
	}
	deps.Metrics.LowStockScan("ok")
	log.Info("low stock scan finished", "alerts", n, "duration_ms", time.Since(start).Milliseconds())
}

func startNotificationWorker() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	log := deps.Logger.With("worker", "notifications")
	defer closeWorker(deps)

	if deps.Outbox == nil {
		log.Error("notification relay needs redis; set redis.enabled")
		return
	}

	stopMetrics := serveWorkerMetrics(deps, log)
	defer stopMetrics()

	relay := notification.NewRelay(deps.Outbox, notification.NewLogNotifier(deps.Logger), deps.Config.Notification.PollTimeout, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(queueGaugeInterval)
		defer ticker.Stop()
		for {
			if n, err := deps.Outbox.Len(gctx); err == nil {
				deps.Metrics.QueueLength(n)
			}
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	log.Info("notification worker is running. Press Ctrl+C to stop.")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("notification worker stopped", "error", err)
		return
	}
	log.Info("notification worker shutdown complete")
}

// serveWorkerMetrics exposes the registry on --metrics-addr, if given.
func serveWorkerMetrics(deps *Dependencies, log *slog.Logger) func() {
	if metricsAddr == "" || !deps.Config.Observability.Metrics.Enabled {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle(deps.Config.Observability.Metrics.Path, deps.Metrics.Handler())
	server := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics listener failed", "error", err)
		}
	}()
	log.Info("serving worker metrics", "address", metricsAddr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func closeWorker(deps *Dependencies) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	deps.Close(ctx)
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func init() {
	lowStockWorkerCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single scan and exit")
	lowStockWorkerCmd.Flags().StringVar(&scheduleSpec, "schedule", "", "Cron schedule (overrides config)")
	workerCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on, e.g. :9091")

	workerCmd.AddCommand(lowStockWorkerCmd)
	workerCmd.AddCommand(notificationWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
