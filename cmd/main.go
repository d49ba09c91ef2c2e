// Command patternwatch serves and runs the learning-evolution pattern detector.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/patternwatch/internal/adapters/http/api"
	"github.com/okian/patternwatch/internal/adapters/http/swagger"
	"github.com/okian/patternwatch/internal/adapters/lock"
	"github.com/okian/patternwatch/internal/adapters/repository"
	service "github.com/okian/patternwatch/internal/app"
	"github.com/okian/patternwatch/internal/config"
	"github.com/okian/patternwatch/internal/detector"
	"github.com/okian/patternwatch/internal/domain/types"
	"github.com/okian/patternwatch/internal/seed"
	"github.com/okian/patternwatch/pkg/logger"
	"github.com/okian/patternwatch/pkg/metrics"
	"github.com/okian/patternwatch/pkg/tracing"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Minute
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

var version = "dev"

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// app carries what every subcommand needs after PersistentPreRunE.
type app struct {
	configPath string
	cfg        *config.Config
	log        logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "patternwatch",
		Short:        "Detect learning-evolution patterns and alert users and managers",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv(config.EnvConfigPath), "path to a YAML config file")

	root.AddCommand(
		newServeCmd(a),
		newRunCmd(a),
		newMigrateCmd(a),
		newSeedCmd(a),
	)
	return root
}

// setup loads configuration (defaults -> optional file -> env) and sets up logging.
func (a *app) setup(ctx context.Context) error {
	cfg, err := config.LoadFile(ctx, a.configPath)
	if err != nil {
		return err
	}
	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	a.cfg = cfg
	a.log = logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		a.log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}

func (a *app) openStore(ctx context.Context, autoMigrate bool) (repository.Store, error) {
	return repository.Open(ctx, a.cfg.Database.Driver, a.cfg.Database.DSN,
		repository.WithLogger(a.log.Named("gorm")),
		repository.WithAutoMigrate(autoMigrate || a.cfg.Database.AutoMigrate),
	)
}

func (a *app) setupTracing(ctx context.Context) (tracing.ShutdownFunc, error) {
	return tracing.Setup(ctx, tracing.Config{
		ServiceName: "patternwatch",
		Version:     version,
		Exporter:    a.cfg.Tracing.Exporter,
		Endpoint:    a.cfg.Tracing.Endpoint,
		Insecure:    a.cfg.Tracing.Insecure,
		SampleRatio: a.cfg.Tracing.SampleRatio,
	})
}

// newService builds the detection service. The returned cleanup closes the
// redis client when one was created.
func (a *app) newService(ctx context.Context, store repository.Store) (*service.Service, func(), error) {
	cfg := a.cfg
	cleanup := func() {}

	locker := lock.Locker(lock.NewLocal())
	if cfg.Redis.Addr != "" {
		client := lock.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		rl := lock.NewRedis(client, lock.WithKey(cfg.Redis.LockKey), lock.WithTTL(cfg.Redis.LockTTL))
		if err := rl.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, cleanup, fmt.Errorf("connect redis: %w", err)
		}
		locker = rl
		cleanup = func() { _ = client.Close() }
		a.log.Info(ctx, "using redis run lock", logger.String("addr", cfg.Redis.Addr), logger.String("key", cfg.Redis.LockKey))
	}

	detOpts := []detector.Option{
		detector.WithPasses(detector.Passes(detector.PassConfig{
			IncludeNeverPracticed: cfg.Stagnation.IncludeNeverPracticed,
			MinSamples:            cfg.Detector.MinSamples,
		})...),
		detector.WithParallelPasses(cfg.Detector.ParallelPasses),
		detector.WithMaxManagersPerAlert(cfg.Detector.MaxManagersPerAlert),
	}
	if cfg.Cooldown.Enabled {
		detOpts = append(detOpts, detector.WithCooldown(cfg.Cooldown.Window))
	}

	svc := service.New(store,
		service.WithLogger(a.log),
		service.WithLocker(locker),
		service.WithInterval(cfg.Schedule.Interval),
		service.WithRunTimeout(cfg.Detector.RunTimeout),
		service.WithDetectorOptions(detOpts...),
	)
	return svc, cleanup, nil
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the detect-patterns endpoint and run the optional schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	shutdownTracing, err := a.setupTracing(ctx)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	store, err := a.openStore(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc, cleanup, err := a.newService(ctx, store)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           newMux(ctx, svc, a.cfg, a.log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info(ctx, "starting HTTP server", logger.String("addr", a.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	a.log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	a.log.Info(ctx, "server stopped")
	return nil
}

// newMux registers the API and docs routes.
func newMux(ctx context.Context, svc *service.Service, cfg *config.Config, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc,
		api.WithLogger(log),
		api.WithAuthenticator(api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.RequiredRole)),
	).Register(ctx, mux)
	return mux
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run detection once and print the JSON result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runOnce(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (a *app) runOnce(ctx context.Context, out io.Writer) error {
	shutdownTracing, err := a.setupTracing(ctx)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	store, err := a.openStore(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc, cleanup, err := a.newService(ctx, store)
	if err != nil {
		return err
	}
	defer cleanup()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	report, err := svc.RunDetection(ctx)
	if err != nil {
		_ = enc.Encode(types.NewErrorResponse(err.Error()))
		return err
	}
	return enc.Encode(report)
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx, true)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			a.log.Info(ctx, "schema migrated", logger.String("driver", a.cfg.Database.Driver))
			return nil
		},
	}
}

func newSeedCmd(a *app) *cobra.Command {
	cfg := seed.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write synthetic fixtures that trigger every detection pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx, true)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			f := seed.Generate(cfg, time.Now().UTC())
			if err := seed.Write(ctx, store, f); err != nil {
				return err
			}
			a.log.Info(ctx, "seeded fixtures",
				logger.Int("members", len(f.Members)),
				logger.Int("events", len(f.Events)),
				logger.Int("skills", len(f.Skills)),
				logger.Int("goals", len(f.Goals)),
			)
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.Users, "users", cfg.Users, "number of users to generate")
	cmd.Flags().IntVar(&cfg.Organizations, "orgs", cfg.Organizations, "number of organizations")
	return cmd
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
