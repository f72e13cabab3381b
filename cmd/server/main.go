/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the point-of-sale books server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load POS_* environment configuration, then apply flag overrides
  2. Initialize SQLite store
  3. Seed the default chart of accounts (existing accounts are kept)
  4. Build books, transaction processor and API handler
  5. Start the HTTP server and the integrity scheduler

COMMAND-LINE FLAGS:
  -addr    HTTP listen address (default: POS_ADDR or :8080)
  -db      SQLite database path (default: POS_DB_PATH or pos.db)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (POS_SHUTDOWN_TIMEOUT)
  3. Stop the integrity scheduler
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/pos.db"

  # Run with in-memory database and JSON logs
  POS_LOG_FORMAT=json ./server -db=":memory:"

  # Charge 12% sales tax, value count losses at current cost
  POS_TAX_RATE=12 POS_ADJUSTMENT_VALUATION=current_cost ./server

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/warp/pos-engine/api"
	"github.com/warp/pos-engine/config"
	"github.com/warp/pos-engine/ledger"
	"github.com/warp/pos-engine/pos"
	"github.com/warp/pos-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Flags
	addr := flag.String("addr", cfg.Addr, "HTTP listen address")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()
	cfg.Addr, cfg.DBPath = *addr, *dbPath

	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	books := ledger.NewBooks(store, cfg.BooksOptions(logger)...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	created, err := books.Chart().Seed(ctx, ledger.DefaultChart())
	if err != nil {
		return fmt.Errorf("seed chart of accounts: %w", err)
	}
	if created > 0 {
		logger.Info("chart of accounts seeded", slog.Int("accounts", created))
	}

	proc := pos.NewProcessor(books, cfg.ProcessorOptions())
	router := api.NewRouter(api.NewHandler(proc), api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  4 * cfg.ReadTimeout,
	}

	scheduler := api.NewIntegrityScheduler(books, logger)
	scheduler.CheckInterval = cfg.IntegrityInterval
	scheduler.Enabled = cfg.IntegrityInterval > 0

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting",
			slog.String("addr", cfg.Addr),
			slog.String("db", cfg.DBPath),
			slog.String("account_mode", cfg.AccountMode),
			slog.String("tax_rate", cfg.TaxRate.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
