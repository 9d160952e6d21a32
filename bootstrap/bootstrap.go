// Package bootstrap wires configuration, stores, services and the HTTP
// server into a runnable application.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxbridge/voxbridge/adapters/auth"
	"github.com/voxbridge/voxbridge/adapters/clock"
	"github.com/voxbridge/voxbridge/adapters/hasher"
	"github.com/voxbridge/voxbridge/adapters/memory"
	"github.com/voxbridge/voxbridge/adapters/metrics"
	redisstore "github.com/voxbridge/voxbridge/adapters/redis"
	"github.com/voxbridge/voxbridge/adapters/remote"
	"github.com/voxbridge/voxbridge/adapters/sqlite"
	"github.com/voxbridge/voxbridge/app"
	"github.com/voxbridge/voxbridge/config"
	"github.com/voxbridge/voxbridge/ports"
	"github.com/voxbridge/voxbridge/web"
)

// App is the assembled application.
type App struct {
	Config     *config.Config
	Holder     *config.Holder
	Logger     zerolog.Logger
	HTTPServer *http.Server

	closers []io.Closer
}

// New builds the application from a loaded configuration.
func New(cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.init(); err != nil {
		a.closeAll()
		return nil, err
	}
	return a, nil
}

// NewWithHotReload builds the application and watches the config file
// for changes. Reloadable fields (log level, quota ceilings, rates)
// take effect on the next restart of the affected component; the
// holder keeps the latest snapshot available.
func NewWithHotReload(path string) (*App, error) {
	logger := newLogger(config.LoggingConfig{Level: "info", Format: "json"})

	holder, err := config.NewHolder(path, logger)
	if err != nil {
		return nil, err
	}

	a := &App{Config: holder.Get(), Holder: holder}
	if err := a.init(); err != nil {
		holder.Stop()
		a.closeAll()
		return nil, err
	}

	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable, SIGHUP reload still works")
	}
	holder.WatchSignals()

	return a, nil
}

func (a *App) init() error {
	cfg := a.Config
	a.Logger = newLogger(cfg.Logging)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}

	rlStore, usageStore, userStore, err := a.openStores()
	if err != nil {
		return err
	}

	clk := clock.System{}
	limiter := app.NewLimiterService(app.LimiterDeps{
		Store:   rlStore,
		Clock:   clk,
		Logger:  a.Logger,
		Metrics: collector,
	}, cfg.Policies())

	meter := app.NewMeterService(app.MeterDeps{
		Store:   usageStore,
		Clock:   clk,
		Logger:  a.Logger,
		Metrics: collector,
	}, cfg.Rates)

	stats := app.NewStatsService(app.StatsDeps{
		Usage:  usageStore,
		Users:  userStore,
		Clock:  clk,
		Logger: a.Logger,
	})

	accounts := app.NewAccountService(app.AccountDeps{
		Users:  userStore,
		Clock:  clk,
		Logger: a.Logger,
	})

	upstream := remote.NewUpstreamClient(remote.UpstreamConfig{
		Endpoints: cfg.Upstream.Endpoints,
		Timeout:   cfg.Upstream.Timeout,
		Headers:   cfg.Upstream.Headers,
	})

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	handler := web.NewHandler(web.Deps{
		Limiter:  limiter,
		Meter:    meter,
		Stats:    stats,
		Accounts: accounts,
		Verifier: tokens,
		Tokens:   tokens,
		Users:    userStore,
		Hasher:   hasher.New(0),
		Upstream: upstream,
		Clock:    clk,
		Logger:   a.Logger,
		Metrics:  collector,
	})

	a.HTTPServer = &http.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: handler.Router(web.RouterConfig{
			MetricsEnabled: cfg.Metrics.Enabled,
			MetricsPath:    cfg.Metrics.Path,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return nil
}

// openStores builds the three stores for the configured driver.
func (a *App) openStores() (ports.RateLimitStore, ports.UsageStore, ports.UserStore, error) {
	cfg := a.Config

	switch cfg.Store.Driver {
	case "memory":
		rl := memory.NewRateLimitStore(memory.RateLimitConfig{
			NumShards:       cfg.Store.Memory.Shards,
			CleanupInterval: cfg.Store.Memory.CleanupInterval,
		})
		a.closers = append(a.closers, rl)
		return rl, memory.NewUsageStore(), memory.NewUserStore(), nil

	case "sqlite":
		db, err := openSQLite(cfg.Store.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		a.closers = append(a.closers, db)
		return sqlite.NewRateLimitStore(db), sqlite.NewUsageStore(db), sqlite.NewUserStore(db), nil

	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, client)
		// User accounts stay in sqlite even with redis counters; the
		// account data is tiny and redis holds only hot counter state.
		db, err := openSQLite(cfg.Store.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		a.closers = append(a.closers, db)
		return redisstore.NewRateLimitStore(client), redisstore.NewUsageStore(client), sqlite.NewUserStore(db), nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM or a
// server error, then shuts down gracefully.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Str("store", a.Config.Store.Driver).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown failed")
		}
	}

	if a.Holder != nil {
		a.Holder.Stop()
	}

	a.closeAll()
	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func openSQLite(dsn string) (*sqlite.DB, error) {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}

func (a *App) closeAll() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
