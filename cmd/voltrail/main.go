package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/evdnx/voltrail/config"
	"github.com/evdnx/voltrail/engine"
	"github.com/evdnx/voltrail/exchange"
	"github.com/evdnx/voltrail/logger"
	"github.com/evdnx/voltrail/metrics"
	"github.com/evdnx/voltrail/notify"
	"github.com/evdnx/voltrail/store"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the static settings file")
	once := flag.Bool("once", false, "run a single cycle and exit")
	dryRun := flag.Bool("dry-run", false, "force test mode, no live orders")
	flag.Parse()

	if err := run(*configPath, *once, *dryRun); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, once, dryRun bool) error {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		metrics.Serve(ctx, cfg.Metrics.Addr, log)
	}

	client := exchange.NewBinance(os.Getenv(cfg.Exchange.APIKeyEnv), os.Getenv(cfg.Exchange.APISecretEnv), cfg.Exchange, log)

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	journal := store.NewLogbook(st, log, cfg.Store)

	var n notify.Notifier = notify.Nop{}
	if cfg.Notify.Enabled {
		n = notify.NewSMTP(cfg.Notify.SMTPHost, cfg.Notify.SMTPPort,
			os.Getenv(cfg.Notify.UsernameEnv), os.Getenv(cfg.Notify.PasswordEnv),
			cfg.Notify.From, cfg.Notify.To)
	}

	eng := engine.New(cfg, journal, client, n, log)
	eng.DryRun = dryRun
	eng.Screener.Configure(cfg.Engine, cfg.Filter)

	if once {
		rep, err := eng.RunOnce(ctx)
		if err != nil {
			return err
		}
		log.Info("single_cycle_done", logger.String("cycle_id", rep.ID), logger.Int("buys", rep.Buys),
			logger.Int("sells", rep.Monitor.Sells))
		return nil
	}
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openStore(ctx context.Context, cfg config.StoreSettings) (store.Store, error) {
	switch cfg.Kind {
	case "file":
		return store.NewFile(cfg.FilePath), nil
	default:
		return store.NewSheets(ctx, cfg)
	}
}
