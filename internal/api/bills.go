package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"waterbill/internal/billing"
	"waterbill/internal/metrics"
	"waterbill/internal/storage"
	"waterbill/internal/tariff"
)

type computeBillRequest struct {
	// When customer_id is set, customer_type, sewerage_connection,
	// meter_size, and prior_balance default from the customer record.
	CustomerID         string   `json:"customer_id" validate:"omitempty"`
	UsageM3            *float64 `json:"usage_m3" validate:"required,gte=0"`
	BillingMonth       string   `json:"billing_month" validate:"required,datetime=2006-01"`
	CustomerType       string   `json:"customer_type" validate:"required_without=CustomerID,omitempty,oneof=residential commercial institutional industrial"`
	SewerageConnection string   `json:"sewerage_connection" validate:"required_without=CustomerID,omitempty,oneof=connected not_connected"`
	MeterSize          *float64 `json:"meter_size" validate:"required_without=CustomerID,omitempty,gte=0"`
	PriorBalance       *float64 `json:"prior_balance" validate:"omitempty,gte=0"`
	Persist            bool     `json:"persist"`
}

type computeBillResponse struct {
	Bill        *billing.ComputedBill `json:"bill"`
	Diagnostics billing.Diagnostics   `json:"diagnostics"`
}

func (s *Server) handleComputeBill(w http.ResponseWriter, r *http.Request) {
	var req computeBillRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Persist && req.CustomerID == "" {
		s.error(w, r, http.StatusBadRequest, "persist requires customer_id")
		return
	}

	ctx := r.Context()
	var cust *storage.Customer
	if req.CustomerID != "" {
		var err error
		cust, err = s.store.GetCustomer(ctx, req.CustomerID)
		if err != nil {
			s.log.Error("load customer failed", zap.String("customer_id", req.CustomerID), zap.Error(err))
			s.error(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		if cust == nil {
			s.error(w, r, http.StatusNotFound, "customer not found")
			return
		}
		if req.CustomerType == "" {
			req.CustomerType = cust.CustomerType
		}
		if req.SewerageConnection == "" {
			req.SewerageConnection = cust.SewerageConnection
		}
		if req.MeterSize == nil {
			req.MeterSize = &cust.MeterSize
		}
		if req.PriorBalance == nil {
			req.PriorBalance = &cust.OutstandingBalance
		}
	}

	ctype, err := tariff.ParseCustomerType(req.CustomerType)
	if err != nil {
		s.error(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sewer, err := tariff.ParseSewerageStatus(req.SewerageConnection)
	if err != nil {
		s.error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	in := billing.ComputeInput{
		UsageM3:      *req.UsageM3,
		CustomerType: ctype,
		Sewerage:     sewer,
		MeterSize:    derefOrZero(req.MeterSize),
		BillingMonth: req.BillingMonth,
	}

	start := time.Now()
	bill, diag, err := s.engine.Compute(ctx, in, derefOrZero(req.PriorBalance))
	metrics.BillComputationsTotal.WithLabelValues(req.CustomerType).Inc()
	metrics.BillComputationDurationSeconds.WithLabelValues(req.CustomerType).Observe(time.Since(start).Seconds())
	for _, p := range diag.DecodeProblems {
		metrics.DegradedComputationsTotal.WithLabelValues(p.Field).Inc()
	}

	if err != nil {
		s.log.Error("bill computation failed",
			zap.String("customer_type", req.CustomerType),
			zap.String("billing_month", req.BillingMonth),
			zap.Error(err))
		s.error(w, r, http.StatusInternalServerError, "bill computation failed: "+err.Error())
		return
	}
	if bill == nil {
		metrics.MissingTariffTotal.WithLabelValues(req.CustomerType).Inc()
		s.error(w, r, http.StatusUnprocessableEntity,
			"no tariff configured for "+req.CustomerType+" in "+req.BillingMonth)
		return
	}

	if req.Persist {
		rec := billToRecord(bill, req.CustomerID)
		if err := s.store.SaveBill(ctx, rec); err != nil {
			s.log.Error("save bill failed", zap.String("bill_id", bill.ID), zap.Error(err))
			s.error(w, r, http.StatusInternalServerError, "bill computed but not saved")
			return
		}
		if s.notifier.Enabled() && cust != nil && cust.Email != "" {
			if err := s.notifier.SendBill(ctx, cust.Email, cust.Name, bill); err != nil {
				s.log.Warn("bill notification failed", zap.String("bill_id", bill.ID), zap.Error(err))
			}
		}
	}

	s.writeJSON(w, http.StatusOK, computeBillResponse{Bill: bill, Diagnostics: diag})
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.GetBill(r.Context(), r.PathValue("id"))
	if err != nil {
		s.log.Error("get bill failed", zap.Error(err))
		s.error(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if b == nil {
		s.error(w, r, http.StatusNotFound, "bill not found")
		return
	}
	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		s.error(w, r, http.StatusBadRequest, "month query parameter is required (YYYY-MM)")
		return
	}
	if _, err := tariff.MonthStart(month); err != nil {
		s.error(w, r, http.StatusBadRequest, err.Error())
		return
	}
	bills, err := s.store.ListBillsForMonth(r.Context(), month)
	if err != nil {
		s.log.Error("list bills failed", zap.String("month", month), zap.Error(err))
		s.error(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if bills == nil {
		bills = []storage.BillRecord{}
	}
	s.writeJSON(w, http.StatusOK, bills)
}

type paymentRequest struct {
	Status string `json:"status" validate:"required,oneof=unpaid paid partial"`
}

func (s *Server) handleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	b, err := s.store.GetBill(r.Context(), id)
	if err != nil {
		s.log.Error("get bill failed", zap.Error(err))
		s.error(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if b == nil {
		s.error(w, r, http.StatusNotFound, "bill not found")
		return
	}
	if err := s.store.UpdateBillPaymentStatus(r.Context(), id, req.Status); err != nil {
		s.log.Error("update payment status failed", zap.String("bill_id", id), zap.Error(err))
		s.error(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	// Settling a bill clears the balance it carried into the ledger.
	if req.Status == "paid" && b.PaymentStatus != "paid" && b.CustomerID != "" {
		if err := s.settleCustomerBalance(r.Context(), b.CustomerID, b.GrandTotal); err != nil {
			s.log.Warn("settle customer balance failed",
				zap.String("customer_id", b.CustomerID), zap.Error(err))
		}
	}

	b.PaymentStatus = req.Status
	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) settleCustomerBalance(ctx context.Context, customerID string, amount float64) error {
	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil || c == nil {
		return err
	}
	c.OutstandingBalance -= amount
	if c.OutstandingBalance < 0 {
		c.OutstandingBalance = 0
	}
	return s.store.UpsertCustomer(ctx, *c)
}

func billToRecord(b *billing.ComputedBill, customerID string) storage.BillRecord {
	return storage.BillRecord{
		ID:                b.ID,
		CustomerID:        customerID,
		BillingMonth:      b.BillingMonth,
		UsageM3:           b.UsageM3,
		UsageCharge:       b.UsageCharge,
		RentalCharge:      b.RentalCharge,
		SewerageSurcharge: b.SewerageSurcharge,
		TotalAmountDue:    b.TotalAmountDue,
		PriorBalance:      b.PriorBalance,
		GrandTotal:        b.GrandTotal,
		DueDate:           b.DueDate,
		PaymentStatus:     b.PaymentStatus,
		CreatedAt:         time.Now(),
	}
}

func derefOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
