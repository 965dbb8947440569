package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"waterbill/internal/alerting"
	"waterbill/internal/billing"
	"waterbill/internal/cron"
	"waterbill/internal/notification"
	"waterbill/internal/storage"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the monthly billing batch worker",
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := storage.Open(ctx, storage.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Logger: log,
	})
	if err != nil {
		log.Error("open storage failed", zap.Error(err))
		return err
	}
	defer st.Close()

	// Replica coordination needs postgres; single-instance sqlite or memory
	// deployments run unlocked.
	var locks *storage.LockPool
	if cfg.Database.Driver == "postgres" {
		locks, err = storage.OpenLockPool(ctx, cfg.Database.DSN)
		if err != nil {
			log.Error("open lock pool failed", zap.Error(err))
			return err
		}
		defer locks.Close()
	}

	cc := openCache(cfg, log)
	defer cc.Close()

	engine := billing.NewEngine(
		storage.NewTariffFetcher(st, cc),
		billing.Options{DueDateOffsetDays: cfg.Billing.DueDateOffsetDays},
	)

	w := cron.NewWorker(cron.Config{
		Store:    st,
		Locks:    locks,
		Engine:   engine,
		Notifier: notification.NewService(*cfg),
		Alerter:  alerting.New(cfg.Alert, log),
		Interval: cfg.Worker.Interval,
		Logger:   log,
	})

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker failed", zap.Error(err))
		return err
	}
	return nil
}
