package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"signal-executor/internal/api"
	"signal-executor/internal/events"
	"signal-executor/internal/executor"
	"signal-executor/internal/monitor"
	"signal-executor/internal/persistence"
	"signal-executor/internal/registry"
	"signal-executor/pkg/config"
	"signal-executor/pkg/db"
	"signal-executor/pkg/exchanges/bybit"
	"signal-executor/pkg/exchanges/common"
	"signal-executor/pkg/exchanges/paper"
	"signal-executor/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var (
		accountsFile string
		port         string
		dryRun       bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and every account executor",
		Long: `Start the HTTP server, one executor per configured account and, when enabled,
the SQLite journal. Flags override the matching environment variables.

Example:
  signal-executor serve --accounts accounts.yaml --port 5000
  DRY_RUN=true signal-executor serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("accounts") {
				cfg.AccountsFile = accountsFile
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("dry-run") {
				cfg.DryRun = dryRun
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&accountsFile, "accounts", "a", "accounts.yaml", "path to the YAML account file")
	cmd.Flags().StringVarP(&port, "port", "p", "5000", "HTTP listen port")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "trade against in-memory paper accounts")
	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	log, _, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	accounts, err := config.LoadAccounts(cfg.AccountsFile, config.LoadOptions{RequireCredentials: !cfg.DryRun})
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus()
	metrics := monitor.NewMetrics("")

	var (
		database    *db.Database
		writer      *persistence.BatchWriter
		journalDone <-chan struct{}
	)
	if cfg.JournalEnabled {
		database, err = db.New(cfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := db.ApplyMigrations(database); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		writer = persistence.NewBatchWriter(database.DB, persistence.BatchOptions{
			Logger:  log,
			OnFlush: metrics.JournalFlush,
		})
		journalDone = persistence.NewJournal(writer, log).Start(ctx, bus)
		log.Infow("journal enabled", "path", cfg.DBPath)
	}

	alerts := &monitor.Monitor{
		Bus:    bus,
		Sinks:  []monitor.AlertSink{monitor.LogSink{Log: log.Named("alerts")}},
		Logger: log,
	}
	alertsDone := alerts.Start(ctx)

	reg, err := registry.FromAccounts(accounts, gatewayFactory(ctx, cfg, log, metrics),
		executor.Deps{Logger: log, Bus: bus, Metrics: metrics},
		registry.Options{Workers: cfg.FanoutWorkers, Logger: log})
	if err != nil {
		return err
	}
	reg.Start(ctx)

	venue := "bybit"
	if cfg.DryRun {
		venue = "paper"
	}
	gin.SetMode(cfg.GinMode)
	srv := api.NewServer(reg, api.Options{
		Bus:            bus,
		DB:             database,
		Metrics:        metrics,
		Logger:         log,
		JWTSecret:      cfg.JWTSecret,
		PassphraseHash: cfg.WebhookPassphraseHash,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		RequestTimeout: cfg.RequestTimeout,
		Meta:           api.SystemMeta{DryRun: cfg.DryRun, Venue: venue, Version: version},
	})

	log.Infow("signal executor starting", "accounts", reg.Len(), "venue", venue, "port", cfg.Port,
		"journal", cfg.JournalEnabled, "passphrase", cfg.WebhookPassphraseHash != "", "operator_auth", cfg.JWTSecret != "")
	runErr := srv.Run(ctx, ":"+cfg.Port)

	stop()
	reg.Stop()
	<-alertsDone
	if journalDone != nil {
		<-journalDone
		if err := writer.Close(); err != nil {
			log.Warnw("journal close failed", "error", err)
		}
	}
	log.Infow("signal executor stopped")
	return runErr
}

// gatewayFactory opens a paper account in dry-run mode and a Bybit client otherwise.
func gatewayFactory(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, metrics *monitor.Metrics) registry.GatewayFactory {
	return func(a config.Account) (common.Gateway, error) {
		acctLog := log.With("account", a.ID)
		if cfg.DryRun {
			prices := make(map[string]decimal.Decimal, len(cfg.DryRunPrices))
			for sym, p := range cfg.DryRunPrices {
				prices[sym] = decimal.NewFromFloat(p)
			}
			g := paper.New(paper.SimConfig{
				InitialBalance: decimal.NewFromFloat(cfg.DryRunInitialBalance),
				FeeRate:        decimal.NewFromFloat(cfg.DryRunFeeRate),
				SlippageBps:    cfg.DryRunSlippageBps,
				Prices:         prices,
				Logger:         acctLog,
			})
			g.Walk(ctx, cfg.DryRunWalkInterval, 0.05)
			return g, nil
		}
		if a.APIKey == "" || a.APISecret == "" {
			return nil, errors.New("api_key and api_secret are required outside dry-run mode")
		}
		c := bybit.NewClient(bybit.Config{
			APIKey:    a.APIKey,
			APISecret: a.APISecret,
			Testnet:   a.IsTestnet,
			Logger:    acctLog,
			OnCall:    metrics.GatewayCall,
		})
		c.Start(ctx)
		return c, nil
	}
}
