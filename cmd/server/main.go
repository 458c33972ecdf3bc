/*
main.go - Application entry point

PURPOSE:
  The commissiond command. Serves the commission engine over HTTP and
  offers offline helpers to quote a plan and print the rate table.

COMMANDS:
  serve    Start the HTTP server (default when no command is given)
  quote    Resolve the commission for a plan without recording it
  rates    Print the effective rate table as YAML

STARTUP SEQUENCE (serve):
  1. Load configuration (file, then COMMISSION_* environment)
  2. Build the zap logger and Prometheus registry
  3. Open the new store (SQLite) and the legacy store (SQLite, Mongo or none).
     A legacy store that cannot be opened disables the mirror instead of
     stopping startup; an unreachable Mongo server is retried per write.
  4. Load the rate table (file or built-in)
  5. Wire the API handler and router
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (shutdown_timeout)
  3. Close both stores
  4. Exit

EXAMPLES:
  # Run with defaults (./data/commissions.db, legacy ./data/legacy.db)
  ./commissiond serve

  # Run with a config file and in-memory stores
  COMMISSION_DB_PATH=":memory:" COMMISSION_LEGACY_DB_PATH=":memory:" \
    ./commissiond serve --config config.yaml

  # Quote a plan
  ./commissiond quote --plan "MyPremierPlan Elite" --coverage "Family" --add-on

SEE ALSO:
  - config/config.go: Configuration keys and environment variables
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/api"
	"github.com/Bdkelp/getmydpc-enrollment-sub008/commission"
	"github.com/Bdkelp/getmydpc-enrollment-sub008/config"
	"github.com/Bdkelp/getmydpc-enrollment-sub008/factory"
	"github.com/Bdkelp/getmydpc-enrollment-sub008/metrics"
	"github.com/Bdkelp/getmydpc-enrollment-sub008/store/mongo"
	"github.com/Bdkelp/getmydpc-enrollment-sub008/store/sqlite"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "commissiond",
		Short: "Agent commission engine",
		Long:  "Computes, records and pays out agent commissions for completed enrollments",
		RunE:  runServe,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	root.AddCommand(serveCmd(), quoteCmd(), ratesCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
}

func quoteCmd() *cobra.Command {
	var plan, coverage string
	var addOn bool

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Resolve the commission for a plan without recording it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			rates, err := loadRates(cfg)
			if err != nil {
				return err
			}

			resolver := commission.NewResolver(commission.NewNormalizer(nil, nil), rates)
			q, err := resolver.Resolve(plan, coverage, addOn)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tier:       %s\n", q.Tier.DisplayName())
			fmt.Fprintf(out, "Coverage:   %s (%s)\n", q.Coverage.DisplayName(), q.Coverage)
			fmt.Fprintf(out, "Commission: $%s\n", q.CommissionAmount.StringFixed(2))
			fmt.Fprintf(out, "Premium:    $%s\n", q.BasePremium.StringFixed(2))
			if q.AddOnApplied {
				fmt.Fprintf(out, "Add-on:     +$%s\n", rates.AddOnFee().StringFixed(2))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&plan, "plan", "", "plan name as entered at enrollment")
	cmd.Flags().StringVar(&coverage, "coverage", "", "coverage type as entered at enrollment")
	cmd.Flags().BoolVar(&addOn, "add-on", false, "enrollment includes the add-on rider")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func ratesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rates",
		Short: "Print the effective rate table as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			rates, err := loadRates(cfg)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(factory.NewRateTableFactory().ToDoc(rates))
		},
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	m := metrics.NewMetrics()

	// Initialize stores
	if err := ensureDir(cfg.Store.Path); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}
	store, err := sqlite.New(cfg.Store.Path)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.String("path", cfg.Store.Path), zap.Error(err))
	}
	defer store.Close()

	legacy, closeLegacy := openLegacy(cmd.Context(), cfg.Legacy, logger, m)
	defer closeLegacy()

	rates, err := loadRates(cfg)
	if err != nil {
		logger.Fatal("Failed to load rate table", zap.String("file", cfg.Rates.File), zap.Error(err))
	}
	logger.Info("Rate table loaded", zap.String("version", rates.Version()))

	// Initialize handler
	handler := api.NewHandler(store, legacy, rates, logger, m)
	handler.Payouts.Concurrency = cfg.Payout.Concurrency

	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Server starting", zap.Int("port", cfg.Server.Port), zap.String("legacy_driver", cfg.Legacy.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	<-done
	logger.Info("Server stopping")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
		return err
	}

	logger.Info("Server stopped")
	return nil
}

// openLegacy opens the configured legacy store. It never fails: the new
// store must serve without the legacy one, so an open error is logged,
// counted, and the mirror is disabled. The returned LegacyStore is nil
// whenever the mirror is off so the ledger skips it.
func openLegacy(ctx context.Context, cfg config.LegacyConfig, logger *zap.Logger, m *metrics.Metrics) (commission.LegacyStore, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	disabled := func(err error) (commission.LegacyStore, func()) {
		m.IncLegacyStartupFailure("open")
		logger.Warn("Legacy store unavailable, mirror disabled",
			zap.String("driver", cfg.Driver),
			zap.Error(err))
		return nil, func() {}
	}

	switch cfg.Driver {
	case config.LegacyDriverSQLite:
		if err := ensureDir(cfg.Path); err != nil {
			return disabled(err)
		}
		l, err := sqlite.NewLegacy(cfg.Path)
		if err != nil {
			return disabled(err)
		}
		return l, func() { l.Close() }

	case config.LegacyDriverMongo:
		l, err := mongo.Open(ctx, cfg.MongoURI, cfg.Database, cfg.Collection, logger, m)
		if err != nil {
			return disabled(err)
		}
		return l, func() {
			if err := l.Close(context.Background()); err != nil {
				logger.Warn("Failed to disconnect legacy store", zap.Error(err))
			}
		}

	default:
		logger.Warn("Legacy mirror disabled")
		return nil, func() {}
	}
}

func loadRates(cfg *config.Config) (*commission.RateTable, error) {
	if cfg.Rates.File == "" {
		return commission.DefaultRateTable(), nil
	}
	return factory.NewRateTableFactory().LoadFile(cfg.Rates.File)
}

func ensureDir(dbPath string) error {
	if dbPath == "" || dbPath == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(dbPath), 0o755)
}
