package cron

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"waterbill/internal/billing"
	"waterbill/internal/metrics"
	"waterbill/internal/storage"
	"waterbill/internal/tariff"
)

// UsageSource supplies the metered usage for a customer's billing month.
// Deployments with an external meter-reading system implement this; the
// default bills fixed charges only.
type UsageSource interface {
	UsageFor(ctx context.Context, c storage.Customer, month string) (float64, error)
}

// ZeroUsage reports no metered usage, so batch bills carry only the meter
// rental, any sewerage surcharge on zero usage, and the outstanding
// balance. Actual consumption is billed through the compute endpoint.
type ZeroUsage struct{}

func (ZeroUsage) UsageFor(ctx context.Context, c storage.Customer, month string) (float64, error) {
	return 0, nil
}

// BatchResult summarizes one billing run.
type BatchResult struct {
	Billed        int
	Skipped       int
	MissingTariff int
	Failed        int
}

// RunOnce bills every customer that does not yet have a bill for month.
// The run is idempotent: re-running the same month only touches customers
// that were missed. Per-customer failures are logged and counted; they do
// not abort the run.
func (w *Worker) RunOnce(ctx context.Context, month string) (BatchResult, error) {
	var res BatchResult

	customers, err := w.store.ListCustomers(ctx)
	if err != nil {
		return res, fmt.Errorf("cron: list customers: %w", err)
	}

	var firstErr error
	for _, c := range customers {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		existing, err := w.store.GetBillForCustomerMonth(ctx, c.ID, month)
		if err != nil {
			res.Failed++
			w.log.Error("bill lookup failed", zap.String("customer_id", c.ID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if existing != nil {
			res.Skipped++
			continue
		}

		if err := w.billCustomer(ctx, c, month, &res); err != nil {
			res.Failed++
			w.log.Error("billing customer failed",
				zap.String("customer_id", c.ID), zap.String("month", month), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return res, firstErr
}

func (w *Worker) billCustomer(ctx context.Context, c storage.Customer, month string, res *BatchResult) error {
	ctype, err := tariff.ParseCustomerType(c.CustomerType)
	if err != nil {
		return fmt.Errorf("customer %s: %w", c.ID, err)
	}
	sewer, err := tariff.ParseSewerageStatus(c.SewerageConnection)
	if err != nil {
		return fmt.Errorf("customer %s: %w", c.ID, err)
	}
	usage, err := w.usage.UsageFor(ctx, c, month)
	if err != nil {
		return fmt.Errorf("customer %s usage: %w", c.ID, err)
	}

	in := billing.ComputeInput{
		UsageM3:      usage,
		CustomerType: ctype,
		Sewerage:     sewer,
		MeterSize:    c.MeterSize,
		BillingMonth: month,
	}

	bill, diag, err := w.engine.Compute(ctx, in, c.OutstandingBalance)
	metrics.BillComputationsTotal.WithLabelValues(c.CustomerType).Inc()
	for _, p := range diag.DecodeProblems {
		metrics.DegradedComputationsTotal.WithLabelValues(p.Field).Inc()
	}
	if err != nil {
		return err
	}
	if bill == nil {
		metrics.MissingTariffTotal.WithLabelValues(c.CustomerType).Inc()
		res.MissingTariff++
		w.log.Warn("no tariff for customer",
			zap.String("customer_id", c.ID),
			zap.String("customer_type", c.CustomerType),
			zap.String("month", month))
		return nil
	}

	rec := storage.BillRecord{
		ID:                bill.ID,
		CustomerID:        c.ID,
		BillingMonth:      bill.BillingMonth,
		UsageM3:           bill.UsageM3,
		UsageCharge:       bill.UsageCharge,
		RentalCharge:      bill.RentalCharge,
		SewerageSurcharge: bill.SewerageSurcharge,
		TotalAmountDue:    bill.TotalAmountDue,
		PriorBalance:      bill.PriorBalance,
		GrandTotal:        bill.GrandTotal,
		DueDate:           bill.DueDate,
		PaymentStatus:     bill.PaymentStatus,
	}
	if err := w.store.SaveBill(ctx, rec); err != nil {
		return fmt.Errorf("save bill for %s: %w", c.ID, err)
	}

	// The grand total becomes the balance carried into next month until a
	// payment is recorded against the bill.
	c.OutstandingBalance = bill.GrandTotal
	if err := w.store.UpsertCustomer(ctx, c); err != nil {
		return fmt.Errorf("carry balance for %s: %w", c.ID, err)
	}

	if w.notifier.Enabled() && c.Email != "" {
		if err := w.notifier.SendBill(ctx, c.Email, c.Name, bill); err != nil {
			w.log.Warn("bill notification failed",
				zap.String("customer_id", c.ID), zap.Error(err))
		}
	}

	res.Billed++
	return nil
}
