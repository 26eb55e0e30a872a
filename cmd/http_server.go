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

	"github.com/frahmantamala/maintenance-management/api"
	"github.com/frahmantamala/maintenance-management/internal"
	"github.com/frahmantamala/maintenance-management/internal/auth"
	workitemDatamodel "github.com/frahmantamala/maintenance-management/internal/core/datamodel/workitem"
	"github.com/frahmantamala/maintenance-management/internal/core/events"
	"github.com/frahmantamala/maintenance-management/internal/dashboard"
	"github.com/frahmantamala/maintenance-management/internal/material"
	materialPostgres "github.com/frahmantamala/maintenance-management/internal/material/postgres"
	"github.com/frahmantamala/maintenance-management/internal/notification"
	"github.com/frahmantamala/maintenance-management/internal/transport/rest"
	"github.com/frahmantamala/maintenance-management/internal/user"
	userPostgres "github.com/frahmantamala/maintenance-management/internal/user/postgres"
	"github.com/frahmantamala/maintenance-management/internal/workitem"
	workitemPostgres "github.com/frahmantamala/maintenance-management/internal/workitem/postgres"
	"github.com/frahmantamala/maintenance-management/pkg/logger"
	"github.com/frahmantamala/maintenance-management/pkg/observability"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config    *internal.Config
	Logger    *slog.Logger
	DB        *sqlx.DB
	Gorm      *gorm.DB
	Redis     *redis.Client
	Outbox    *notification.RedisOutbox
	Bus       *events.EventBus
	Metrics   *observability.Metrics
	Guard     *auth.Guard
	Users     *user.Service
	Auth      *auth.Service
	Tasks     *workitem.Service
	Defects   *workitem.Service
	Materials *material.Service

	shutdownTracing observability.ShutdownFunc
}

func startHTTPServer() {
	deps, err := initializeDependencies(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	log := deps.Logger

	if _, err := api.Load(context.Background()); err != nil {
		log.Error("invalid API document", "error", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	setupRoutes(router, deps)

	cfg := deps.Config.Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
		deps.Close(ctx)
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	log.Info("server stopped")
}

func setupRoutes(router chi.Router, deps *Dependencies) {
	var health *rest.HealthHandler
	if deps.Outbox != nil {
		health = rest.NewHealthHandler(deps.DB.DB, deps.Outbox)
	} else {
		health = rest.NewHealthHandler(deps.DB.DB, nil)
	}

	cache := auth.NewCallerCache(deps.Config.Security.CallerCacheSize, deps.Config.Security.CallerCacheTTL)
	cache.Subscribe(deps.Bus)

	h := rest.Handlers{
		Health:    health,
		Auth:      auth.NewHandler(deps.Auth, cache),
		RBAC:      auth.NewRBACAuthorization(deps.Guard),
		Users:     user.NewHandler(deps.Users),
		Tasks:     workitem.NewHandler(workitem.Tasks, deps.Tasks),
		Defects:   workitem.NewHandler(workitem.Defects, deps.Defects),
		Materials: material.NewHandler(deps.Materials),
		Dashboard: dashboard.NewHandler(dashboard.NewService(dashboard.NewRepository(deps.DB), deps.Logger)),
	}
	if deps.Config.Observability.Metrics.Enabled {
		h.Metrics = deps.Metrics
		h.MetricsPath = deps.Config.Observability.Metrics.Path
	}

	rest.RegisterAllRoutes(router, h)
}

// initializeDependencies builds everything the server and the workers share.
// Redis is optional; without it notifications are only logged.
func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	obs := config.Observability
	log := logger.Configure(os.Stdout, obs.Logging.Level, obs.Logging.Format)

	shutdownTracing, err := observability.InitTracing(ctx, obs.Tracing, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	metrics, err := observability.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	deps := &Dependencies{
		Config:          config,
		Logger:          log,
		DB:              db,
		Gorm:            gdb,
		Bus:             events.NewEventBus(log),
		Metrics:         metrics,
		shutdownTracing: shutdownTracing,
	}

	var notifier notification.Notifier = notification.NewLogNotifier(log)
	if config.Redis.Enabled {
		client, err := notification.NewRedisClient(ctx, config.Redis)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		deps.Redis = client
		deps.Outbox = notification.NewRedisOutbox(client, config.Notification.QueueKey)
		notifier = deps.Outbox
	}

	deps.Guard = auth.NewGuard(log, metrics)
	deps.Users = user.NewService(userPostgres.NewUserRepository(gdb), deps.Bus, log)

	sec := config.Security
	tokens := auth.NewJWTTokenGenerator(sec.AccessTokenSecret, sec.RefreshTokenSecret, sec.AccessTokenDuration, sec.RefreshTokenDuration)
	deps.Auth = auth.NewService(deps.Users, tokens, sec.BCryptCost, log)

	deps.Tasks = workitem.NewService(workitem.Tasks,
		workitemPostgres.NewWorkItemRepository(gdb, workitemDatamodel.TableTasks),
		deps.Guard, deps.Users, deps.Bus, log).WithRecorder(metrics)
	deps.Defects = workitem.NewService(workitem.Defects,
		workitemPostgres.NewWorkItemRepository(gdb, workitemDatamodel.TableDefects),
		deps.Guard, deps.Users, deps.Bus, log).WithRecorder(metrics)
	deps.Materials = material.NewService(materialPostgres.NewMaterialRepository(gdb), deps.Guard, deps.Bus, log).
		WithRecorder(metrics)

	notification.NewDispatcher(notifier, deps.Users, config.Notification.AdminEmail, log).Register(deps.Bus)

	return deps, nil
}

// Close drains pending event handlers before releasing connections.
func (d *Dependencies) Close(ctx context.Context) {
	if err := d.Bus.Wait(ctx); err != nil {
		d.Logger.Warn("event handlers still running at shutdown", "error", err)
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("redis close error", "error", err)
		}
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
	if err := d.shutdownTracing(ctx); err != nil {
		d.Logger.Error("tracer shutdown error", "error", err)
	}
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares the sqlx pool with gorm so both see the same limits.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}
