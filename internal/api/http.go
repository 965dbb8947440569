package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"waterbill/internal/api/docs"
	"waterbill/internal/auth"
	"waterbill/internal/billing"
	"waterbill/internal/config"
	"waterbill/internal/metrics"
	"waterbill/internal/notification"
	"waterbill/internal/storage"
)

// Server holds the HTTP handler dependencies. Construct one with NewServer
// and mount Routes() on an http.Server.
type Server struct {
	cfg      *config.Config
	store    storage.Storage
	cache    storage.Cache
	engine   *billing.Engine
	auth     *auth.Service
	notifier *notification.Service
	validate *validator.Validate
	log      *zap.Logger
}

func NewServer(cfg *config.Config, store storage.Storage, cc storage.Cache, authSvc *auth.Service, notifier *notification.Service, log *zap.Logger) *Server {
	engine := billing.NewEngine(
		storage.NewTariffFetcher(store, cc),
		billing.Options{DueDateOffsetDays: cfg.Billing.DueDateOffsetDays},
	)
	return &Server{
		cfg:      cfg,
		store:    store,
		cache:    cc,
		engine:   engine,
		auth:     authSvc,
		notifier: notifier,
		validate: validator.New(),
		log:      log,
	}
}

// Routes builds the full mux: billing API, auth, metrics, health probes,
// and the API docs. Every request passes through the token middleware;
// individual routes declare the permission they need.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.Ping(r.Context()); err != nil {
			s.log.Warn("readiness probe failed", zap.Error(err))
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.Handle("POST /api/v1/auth/register",
		s.auth.RequirePermission("users", "write", http.HandlerFunc(s.handleRegister)))

	mux.Handle("POST /api/v1/bills/compute",
		s.auth.RequirePermission("bills", "write", http.HandlerFunc(s.handleComputeBill)))
	mux.Handle("GET /api/v1/bills",
		s.auth.RequirePermission("bills", "read", http.HandlerFunc(s.handleListBills)))
	mux.Handle("GET /api/v1/bills/{id}",
		s.auth.RequirePermission("bills", "read", http.HandlerFunc(s.handleGetBill)))
	mux.Handle("POST /api/v1/bills/{id}/payment",
		s.auth.RequirePermission("bills", "write", http.HandlerFunc(s.handleUpdatePayment)))

	mux.Handle("GET /api/v1/tariffs",
		s.auth.RequirePermission("tariffs", "read", http.HandlerFunc(s.handleListTariffs)))
	mux.Handle("GET /api/v1/tariffs/{type}/{year}",
		s.auth.RequirePermission("tariffs", "read", http.HandlerFunc(s.handleGetTariff)))
	mux.Handle("PUT /api/v1/tariffs/{type}/{year}",
		s.auth.RequirePermission("tariffs", "write", http.HandlerFunc(s.handleUpsertTariff)))
	mux.Handle("GET /api/v1/tariffs/{type}/{year}/rental-prices",
		s.auth.RequirePermission("tariffs", "read", http.HandlerFunc(s.handleRentalPrices)))

	mux.Handle("GET /api/v1/customers",
		s.auth.RequirePermission("customers", "read", http.HandlerFunc(s.handleListCustomers)))
	mux.Handle("POST /api/v1/customers",
		s.auth.RequirePermission("customers", "write", http.HandlerFunc(s.handleUpsertCustomer)))
	mux.Handle("GET /api/v1/customers/{id}",
		s.auth.RequirePermission("customers", "read", http.HandlerFunc(s.handleGetCustomer)))
	mux.Handle("PUT /api/v1/customers/{id}",
		s.auth.RequirePermission("customers", "write", http.HandlerFunc(s.handleUpsertCustomer)))

	mux.Handle("/docs/", http.StripPrefix("/docs", docs.Handler()))

	return s.auth.Middleware(mux)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response failed", zap.Error(err))
	}
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func (s *Server) error(w http.ResponseWriter, r *http.Request, status int, msg string, details ...string) {
	metrics.RequestErrorsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(status)).Inc()
	s.writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

// decodeAndValidate parses the request body into dst and runs struct
// validation, translating validator failures into field-level messages.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.error(w, r, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, fe.Field()+" failed "+fe.Tag()+" validation")
			}
			s.error(w, r, http.StatusBadRequest, "validation failed", details...)
			return false
		}
		s.error(w, r, http.StatusBadRequest, "validation failed")
		return false
	}
	return true
}
