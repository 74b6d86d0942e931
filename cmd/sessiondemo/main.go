// Command sessiondemo serves a small site backed by httpstate sessions. The
// session handler is picked from the environment:
//
//	STORE=memory                      (default)
//	STORE=redis   REDIS_URL=redis://localhost:6379/0
//	STORE=sqlite  SQLITE_PATH=sessions.db
//	STORE=mysql   MYSQL_DSN=user:pass@tcp(localhost:3306)/app?parseTime=true
//
// Session settings are read from SESSION_* variables, and a .env file in
// the working directory is loaded first when present.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bluescreen10/httpstate"
	"github.com/bluescreen10/httpstate/gormstore"
	"github.com/bluescreen10/httpstate/logger"
	"github.com/bluescreen10/httpstate/memstore"
	"github.com/bluescreen10/httpstate/metrics"
	"github.com/bluescreen10/httpstate/mysqlstore"
	"github.com/bluescreen10/httpstate/redisstore"
	"github.com/bluescreen10/httpstate/session"
)

type config struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"text"`
	Store           string        `env:"STORE" envDefault:"memory"`
	RedisURL        string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"sessions.db"`
	MySQLDSN        string        `env:"MYSQL_DSN"`
	CleanUpInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1m"`
	SecureCookie    bool          `env:"SECURE_COOKIE" envDefault:"false"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := env.ParseAs[config]()
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	sessCfg, err := session.ConfigFromEnv()
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := logger.New(
		logger.WithLevel(level),
		logger.WithFormat(logger.Format(cfg.LogFormat)),
		logger.WithAttr(slog.String("service", "sessiondemo")),
	)

	stop := make(chan struct{})
	defer close(stop)

	handler, closer, err := openHandler(cfg, log, stop)
	if err != nil {
		return err
	}
	defer closer.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	mgr := httpstate.NewManager(metrics.Wrap(handler, collector),
		httpstate.WithConfig(sessCfg),
		httpstate.WithLogger(log),
		httpstate.WithCookieConfig(httpstate.CookieConfig{
			Path:     "/",
			HttpOnly: true,
			Secure:   cfg.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		}),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(mgr, reg, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", cfg.Addr), slog.String("store", cfg.Store))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	return srv.Shutdown(shutdownCtx)
}

// openHandler builds the session handler selected by cfg.Store. Stores that
// expire records themselves are cleaned periodically until stop is closed.
func openHandler(cfg config, log *slog.Logger, stop <-chan struct{}) (session.Handler, io.Closer, error) {
	switch cfg.Store {
	case "memory":
		store := memstore.New()
		go store.PeriodicCleanUp(cfg.CleanUpInterval, stop)
		return store, nopCloser{}, nil

	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		return redisstore.New(rdb), rdb, nil

	case "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		store, err := gormstore.New(db, gormstore.WithLogger(log))
		if err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		go store.PeriodicCleanUp(cfg.CleanUpInterval, stop)
		return store, sqlDB, nil

	case "mysql":
		if cfg.MySQLDSN == "" {
			return nil, nil, errors.New("MYSQL_DSN is required for the mysql store")
		}
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening mysql: %w", err)
		}
		store, err := mysqlstore.New(db, mysqlstore.WithLogger(log))
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		go store.PeriodicCleanUp(cfg.CleanUpInterval, stop)
		return store, db, nil
	}

	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
