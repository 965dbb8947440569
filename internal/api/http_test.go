package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"waterbill/internal/auth"
	"waterbill/internal/config"
	"waterbill/internal/notification"
	"waterbill/internal/storage"
)

type testEnv struct {
	handler http.Handler
	store   storage.Storage
	auth    *auth.Service
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithCache(t, nil)
}

func newTestEnvWithCache(t *testing.T, cc storage.Cache) *testEnv {
	t.Helper()

	store := storage.NewMemory()
	authSvc, err := auth.NewService(store)
	if err != nil {
		t.Fatalf("auth.NewService failed: %v", err)
	}

	cfg := &config.Config{}
	srv := NewServer(cfg, store, cc, authSvc, notification.NewService(*cfg), zap.NewNop())

	return &testEnv{handler: srv.Routes(), store: store, auth: authSvc}
}

// mapCache is an in-process storage.Cache without TTL expiry, so anything
// cached stays cached until explicitly invalidated.
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]byte{}}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.entries[key]
	return payload, ok
}

func (c *mapCache) Set(_ context.Context, key string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = payload
}

func (c *mapCache) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (e *testEnv) token(t *testing.T, role string) string {
	t.Helper()
	u, err := e.auth.Register(context.Background(), "user-"+role+"-"+fmt.Sprint(time.Now().UnixNano()), "password123", role)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	_, raw, err := e.auth.CreateToken(context.Background(), u.ID, "test", role, nil)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	return raw
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seedTariff(t *testing.T) {
	t.Helper()
	err := e.store.UpsertTariff(context.Background(), storage.TariffRecord{
		CustomerType:       "residential",
		Year:               2025,
		TierTable:          `[{"up_to":7,"rate":10},{"rate":15}]`,
		RentalPrices:       `{"1/2":50,"3/4":75}`,
		SewerSurchargeRate: 0.5,
	})
	if err != nil {
		t.Fatalf("UpsertTariff failed: %v", err)
	}
}

func TestComputeBillInline(t *testing.T) {
	env := newTestEnv(t)
	env.seedTariff(t)
	tok := env.token(t, auth.RoleClerk)

	rec := env.do(t, http.MethodPost, "/api/v1/bills/compute", tok, map[string]any{
		"usage_m3":            15,
		"billing_month":       "2025-01",
		"customer_type":       "residential",
		"sewerage_connection": "not_connected",
		"meter_size":          0.5,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	var resp computeBillResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Bill == nil {
		t.Fatal("expected a bill")
	}
	// 7*10 + 8*15 = 190 usage, 50 rental
	if resp.Bill.UsageCharge != 190 {
		t.Errorf("usage charge = %v, want 190", resp.Bill.UsageCharge)
	}
	if resp.Bill.RentalCharge != 50 {
		t.Errorf("rental charge = %v, want 50", resp.Bill.RentalCharge)
	}
	if resp.Bill.GrandTotal != 240 {
		t.Errorf("grand total = %v, want 240", resp.Bill.GrandTotal)
	}
	if resp.Diagnostics.RentalKey == nil || *resp.Diagnostics.RentalKey != "1/2" {
		t.Errorf("rental key = %v, want 1/2", resp.Diagnostics.RentalKey)
	}
}

func TestComputeBillMissingTariff(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, auth.RoleClerk)

	rec := env.do(t, http.MethodPost, "/api/v1/bills/compute", tok, map[string]any{
		"usage_m3":            10,
		"billing_month":       "2025-01",
		"customer_type":       "commercial",
		"sewerage_connection": "connected",
		"meter_size":          0.5,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestComputeBillValidation(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, auth.RoleClerk)

	cases := []map[string]any{
		{"billing_month": "2025-01", "customer_type": "residential", "sewerage_connection": "connected", "meter_size": 0.5},
		{"usage_m3": -1, "billing_month": "2025-01", "customer_type": "residential", "sewerage_connection": "connected", "meter_size": 0.5},
		{"usage_m3": 10, "billing_month": "January 2025", "customer_type": "residential", "sewerage_connection": "connected", "meter_size": 0.5},
		{"usage_m3": 10, "billing_month": "2025-01", "customer_type": "cosmic", "sewerage_connection": "connected", "meter_size": 0.5},
		{"usage_m3": 10, "billing_month": "2025-01"},
	}
	for i, body := range cases {
		rec := env.do(t, http.MethodPost, "/api/v1/bills/compute", tok, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("case %d: status = %d, want 400 (%s)", i, rec.Code, rec.Body.String())
		}
	}
}

func TestComputeBillForCustomerPersists(t *testing.T) {
	env := newTestEnv(t)
	env.seedTariff(t)
	tok := env.token(t, auth.RoleClerk)

	rec := env.do(t, http.MethodPost, "/api/v1/customers", tok, map[string]any{
		"account_no":          "ACC-001",
		"name":                "Dela Cruz",
		"customer_type":       "residential",
		"sewerage_connection": "connected",
		"meter_size":          0.5,
		"outstanding_balance": 120,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create customer: status %d: %s", rec.Code, rec.Body.String())
	}
	var cust storage.Customer
	if err := json.Unmarshal(rec.Body.Bytes(), &cust); err != nil {
		t.Fatalf("decode customer: %v", err)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/bills/compute", tok, map[string]any{
		"customer_id":   cust.ID,
		"usage_m3":      15,
		"billing_month": "2025-01",
		"persist":       true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("compute: status %d: %s", rec.Code, rec.Body.String())
	}
	var resp computeBillResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// usage 190 + rental 50 + surcharge 95, plus the carried 120
	if resp.Bill.SewerageSurcharge != 95 {
		t.Errorf("surcharge = %v, want 95", resp.Bill.SewerageSurcharge)
	}
	if resp.Bill.PriorBalance != 120 {
		t.Errorf("prior balance = %v, want 120", resp.Bill.PriorBalance)
	}
	if resp.Bill.GrandTotal != 455 {
		t.Errorf("grand total = %v, want 455", resp.Bill.GrandTotal)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/bills/"+resp.Bill.ID, tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get bill: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/bills?month=2025-01", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list bills: status %d", rec.Code)
	}
	var bills []storage.BillRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &bills); err != nil {
		t.Fatalf("decode bills: %v", err)
	}
	if len(bills) != 1 || bills[0].CustomerID != cust.ID {
		t.Errorf("unexpected bills list: %+v", bills)
	}
}

func TestUpdatePaymentStatus(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, auth.RoleClerk)

	bill := storage.BillRecord{ID: "b1", CustomerID: "c1", BillingMonth: "2025-01", GrandTotal: 100, PaymentStatus: "unpaid"}
	if err := env.store.SaveBill(context.Background(), bill); err != nil {
		t.Fatalf("SaveBill failed: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/bills/b1/payment", tok, map[string]any{"status": "paid"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	got, err := env.store.GetBill(context.Background(), "b1")
	if err != nil || got == nil {
		t.Fatalf("GetBill failed: %v %v", got, err)
	}
	if got.PaymentStatus != "paid" {
		t.Errorf("payment status = %q, want paid", got.PaymentStatus)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/bills/b1/payment", tok, map[string]any{"status": "shredded"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad status accepted: %d", rec.Code)
	}
}

func TestTariffUpsertRejectsMalformedTiers(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, auth.RoleAdmin)

	// bounds out of order
	rec := env.do(t, http.MethodPut, "/api/v1/tariffs/residential/2025", tok, map[string]any{
		"tier_table": `[{"up_to":20,"rate":10},{"up_to":7,"rate":15},{"rate":20}]`,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPut, "/api/v1/tariffs/residential/2025", tok, map[string]any{
		"tier_table":    `[{"up_to":7,"rate":10},{"rate":15}]`,
		"rental_prices": `{"1/2":50}`,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/tariffs/residential/2025", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get tariff: status %d", rec.Code)
	}
}

func TestTariffUpsertRefreshesCachedRates(t *testing.T) {
	env := newTestEnvWithCache(t, newMapCache())
	env.seedTariff(t)
	admin := env.token(t, auth.RoleAdmin)

	compute := func() float64 {
		rec := env.do(t, http.MethodPost, "/api/v1/bills/compute", admin, map[string]any{
			"usage_m3":            15,
			"billing_month":       "2025-01",
			"customer_type":       "residential",
			"sewerage_connection": "not_connected",
			"meter_size":          0.5,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("compute: status %d: %s", rec.Code, rec.Body.String())
		}
		var resp computeBillResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return resp.Bill.GrandTotal
	}

	// first computation warms the cache with the seeded rates
	if got := compute(); got != 240 {
		t.Fatalf("grand total = %v, want 240", got)
	}

	rec := env.do(t, http.MethodPut, "/api/v1/tariffs/residential/2025", admin, map[string]any{
		"tier_table":    `[{"up_to":7,"rate":20},{"rate":30}]`,
		"rental_prices": `{"1/2":50}`,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert tariff: status %d: %s", rec.Code, rec.Body.String())
	}

	// 7*20 + 8*30 = 380 usage + 50 rental; the cached old row must not win
	if got := compute(); got != 430 {
		t.Errorf("grand total after tariff update = %v, want 430", got)
	}
}

func TestRentalPricesDiagnostics(t *testing.T) {
	env := newTestEnv(t)
	env.seedTariff(t)
	tok := env.token(t, auth.RoleViewer)

	rec := env.do(t, http.MethodGet, "/api/v1/tariffs/residential/2025/rental-prices?meter_size=0.5", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp rentalPricesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != 2 || resp.Entries[0].Key != "1/2" {
		t.Errorf("unexpected entries: %+v", resp.Entries)
	}
	if resp.ResolvedKey == nil || *resp.ResolvedKey != "1/2" {
		t.Errorf("resolved key = %v, want 1/2", resp.ResolvedKey)
	}
	if resp.ResolvedPrice == nil || *resp.ResolvedPrice != 50 {
		t.Errorf("resolved price = %v, want 50", resp.ResolvedPrice)
	}
}

func TestAuthorization(t *testing.T) {
	env := newTestEnv(t)
	env.seedTariff(t)

	body := map[string]any{
		"usage_m3":            10,
		"billing_month":       "2025-01",
		"customer_type":       "residential",
		"sewerage_connection": "connected",
		"meter_size":          0.5,
	}

	// no token
	rec := env.do(t, http.MethodPost, "/api/v1/bills/compute", "", body)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status %d, want 401", rec.Code)
	}

	// viewers cannot write bills
	viewer := env.token(t, auth.RoleViewer)
	rec = env.do(t, http.MethodPost, "/api/v1/bills/compute", viewer, body)
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer: status %d, want 403", rec.Code)
	}

	// clerks cannot write tariffs
	clerk := env.token(t, auth.RoleClerk)
	rec = env.do(t, http.MethodPut, "/api/v1/tariffs/residential/2025", clerk, map[string]any{
		"tier_table": `[{"rate":10}]`,
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("clerk tariff write: status %d, want 403", rec.Code)
	}

	// viewers can read
	rec = env.do(t, http.MethodGet, "/api/v1/tariffs", viewer, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("viewer tariff read: status %d, want 200", rec.Code)
	}
}

func TestLoginIssuesWorkingToken(t *testing.T) {
	env := newTestEnv(t)
	env.seedTariff(t)

	if _, err := env.auth.Register(context.Background(), "clerk1", "password123", auth.RoleClerk); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"username": "clerk1",
		"password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Role != auth.RoleClerk {
		t.Errorf("role = %q, want clerk", resp.Role)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/customers", resp.Token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("token rejected: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"username": "clerk1",
		"password": "nope",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password: status %d, want 401", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/livez", "/readyz"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status %d, want 200", path, rec.Code)
		}
	}
}
