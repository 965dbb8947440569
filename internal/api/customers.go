package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"waterbill/internal/storage"
)

type upsertCustomerRequest struct {
	AccountNo          string   `json:"account_no" validate:"required"`
	Name               string   `json:"name" validate:"required"`
	Email              string   `json:"email" validate:"omitempty,email"`
	CustomerType       string   `json:"customer_type" validate:"required,oneof=residential commercial institutional industrial"`
	SewerageConnection string   `json:"sewerage_connection" validate:"required,oneof=connected not_connected"`
	MeterSize          *float64 `json:"meter_size" validate:"required,gte=0"`
	OutstandingBalance float64  `json:"outstanding_balance" validate:"gte=0"`
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.store.ListCustomers(r.Context())
	if err != nil {
		s.log.Error("list customers failed", zap.Error(err))
		s.error(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if customers == nil {
		customers = []storage.Customer{}
	}
	s.writeJSON(w, http.StatusOK, customers)
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		s.log.Error("get customer failed", zap.Error(err))
		s.error(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if c == nil {
		s.error(w, r, http.StatusNotFound, "customer not found")
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

// handleUpsertCustomer serves both POST /customers (create) and
// PUT /customers/{id} (update); the path id decides which.
func (s *Server) handleUpsertCustomer(w http.ResponseWriter, r *http.Request) {
	var req upsertCustomerRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	now := time.Now()
	c := storage.Customer{
		ID:                 r.PathValue("id"),
		AccountNo:          req.AccountNo,
		Name:               req.Name,
		Email:              req.Email,
		CustomerType:       req.CustomerType,
		SewerageConnection: req.SewerageConnection,
		MeterSize:          *req.MeterSize,
		OutstandingBalance: req.OutstandingBalance,
		UpdatedAt:          now,
	}

	status := http.StatusOK
	if c.ID == "" {
		c.ID = uuid.New().String()
		c.CreatedAt = now
		status = http.StatusCreated
	} else {
		existing, err := s.store.GetCustomer(r.Context(), c.ID)
		if err != nil {
			s.log.Error("get customer failed", zap.Error(err))
			s.error(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		if existing == nil {
			s.error(w, r, http.StatusNotFound, "customer not found")
			return
		}
		c.CreatedAt = existing.CreatedAt
	}

	if err := s.store.UpsertCustomer(r.Context(), c); err != nil {
		s.log.Error("upsert customer failed", zap.String("customer_id", c.ID), zap.Error(err))
		s.error(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, status, c)
}
