// Package cron runs the scheduled monthly billing batch. In a
// multi-instance deployment a PostgreSQL advisory lock keeps replicas from
// billing the same month twice.
package cron

import (
	"context"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"waterbill/internal/alerting"
	"waterbill/internal/billing"
	"waterbill/internal/metrics"
	"waterbill/internal/notification"
	"waterbill/internal/storage"
)

// Setting key that overrides the configured interval at runtime.
const intervalSettingKey = "billing_interval_seconds"

const jobName = "monthly_billing"

// Advisory lock key for the billing job; shared by every replica.
const lockKey int64 = 740551

type Worker struct {
	store    storage.Storage
	locks    *storage.LockPool
	engine   *billing.Engine
	notifier *notification.Service
	alerter  *alerting.Alerter
	usage    UsageSource
	interval string
	log      *zap.Logger
}

// Config wires a Worker. Locks may be nil for single-instance deployments
// (sqlite, memory); Alerter may be nil; Usage defaults to ZeroUsage.
type Config struct {
	Store    storage.Storage
	Locks    *storage.LockPool
	Engine   *billing.Engine
	Notifier *notification.Service
	Alerter  *alerting.Alerter
	Usage    UsageSource
	Interval string
	Logger   *zap.Logger
}

func NewWorker(cfg Config) *Worker {
	usage := cfg.Usage
	if usage == nil {
		usage = ZeroUsage{}
	}
	return &Worker{
		store:    cfg.Store,
		locks:    cfg.Locks,
		engine:   cfg.Engine,
		notifier: cfg.Notifier,
		alerter:  cfg.Alerter,
		usage:    usage,
		interval: cfg.Interval,
		log:      cfg.Logger,
	}
}

// Run drives the worker until ctx is cancelled. The interval setting is
// either integer seconds or a standard cron expression, and can be changed
// at runtime through the settings table.
func (w *Worker) Run(ctx context.Context) error {
	intervalSetting := w.interval
	if val, err := w.store.GetSetting(ctx, intervalSettingKey); err == nil && val != "" {
		intervalSetting = val
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	nextRun := time.Now()
	w.log.Info("billing worker starting", zap.String("interval", intervalSetting))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if val, err := w.store.GetSetting(ctx, intervalSettingKey); err == nil && val != "" && val != intervalSetting {
				w.log.Info("billing interval updated",
					zap.String("from", intervalSetting), zap.String("to", val))
				intervalSetting = val
				nextRun = nextRunTime(intervalSetting, time.Now())
			}

			if time.Now().Before(nextRun) {
				continue
			}
			nextRun = nextRunTime(intervalSetting, time.Now())

			w.runLocked(ctx)

			if w.locks != nil {
				w.locks.ReportPoolMetrics()
			}
		}
	}
}

// runLocked executes one billing run under the advisory lock (when a lock
// pool is configured) and records the job outcome.
func (w *Worker) runLocked(ctx context.Context) {
	started := time.Now()

	if w.locks != nil {
		ok, err := w.locks.AcquireAdvisoryLock(ctx, lockKey)
		if err != nil {
			w.log.Error("acquire advisory lock failed", zap.Error(err))
			metrics.UpdateJobMetrics(jobName, started, err)
			return
		}
		if !ok {
			w.log.Info("billing run held by another worker, skipping")
			return
		}
		defer func() {
			if _, err := w.locks.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
				w.log.Error("release advisory lock failed", zap.Error(err))
			}
		}()
	}

	month := BillingMonthFor(time.Now())
	result, runErr := w.RunOnce(ctx, month)

	metrics.UpdateJobMetrics(jobName, started, runErr)

	dur := time.Since(started)
	errMsg := ""
	success := 1
	if runErr != nil {
		errMsg = runErr.Error()
		success = 0
	}
	if err := w.store.UpdateScheduledJob(ctx, storage.ScheduledJob{
		Name:           jobName,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    success,
		LastError:      errMsg,
	}); err != nil {
		w.log.Error("update scheduled job failed", zap.Error(err))
	}

	w.log.Info("billing run finished",
		zap.String("month", month),
		zap.Int("billed", result.Billed),
		zap.Int("skipped", result.Skipped),
		zap.Int("missing_tariff", result.MissingTariff),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", dur),
		zap.Error(runErr))

	if err := w.alerter.SendRunAlert(ctx, alerting.RunAlert{
		JobName:       jobName,
		Month:         month,
		Billed:        result.Billed,
		Skipped:       result.Skipped,
		MissingTariff: result.MissingTariff,
		Failed:        result.Failed,
		Duration:      dur,
		Error:         errMsg,
		Timestamp:     started,
	}); err != nil {
		w.log.Error("billing alert failed", zap.Error(err))
	}
}

// BillingMonthFor returns the month a run started at t should bill: the
// previous calendar month, whose usage is complete. Anchoring on the first
// of the month avoids AddDate normalization on day 29..31.
func BillingMonthFor(t time.Time) string {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first.AddDate(0, -1, 0).Format("2006-01")
}

// nextRunTime interprets the interval setting as integer seconds first,
// then as a cron expression, falling back to hourly.
func nextRunTime(setting string, from time.Time) time.Time {
	if v, err := strconv.Atoi(setting); err == nil && v > 0 {
		return from.Add(time.Duration(v) * time.Second)
	}
	if sched, err := cron.ParseStandard(setting); err == nil {
		return sched.Next(from)
	}
	return from.Add(time.Hour)
}
