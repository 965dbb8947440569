package storage

import (
	"context"
	"testing"
)

func TestMemory_TariffRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	rec := TariffRecord{
		CustomerType:       "residential",
		Year:               2025,
		TierTable:          `[{"up_to":7,"rate":10},{"rate":15}]`,
		RentalPrices:       `{"1/2":50}`,
		SewerSurchargeRate: 0.75,
	}
	if err := m.UpsertTariff(ctx, rec); err != nil {
		t.Fatalf("UpsertTariff failed: %v", err)
	}

	got, err := m.GetTariff(ctx, "residential", 2025)
	if err != nil {
		t.Fatalf("GetTariff failed: %v", err)
	}
	if got == nil {
		t.Fatalf("expected a tariff record")
	}
	if got.TierTable != rec.TierTable || got.SewerSurchargeRate != 0.75 {
		t.Fatalf("tariff mismatch: %+v", got)
	}

	missing, err := m.GetTariff(ctx, "residential", 2024)
	if err != nil {
		t.Fatalf("GetTariff failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for a missing year, got %+v", missing)
	}
}

func TestMemory_UpsertTariffKeepsID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	rec := TariffRecord{CustomerType: "commercial", Year: 2025}
	if err := m.UpsertTariff(ctx, rec); err != nil {
		t.Fatalf("UpsertTariff failed: %v", err)
	}
	first, _ := m.GetTariff(ctx, "commercial", 2025)

	rec.SewerSurchargeRate = 0.5
	if err := m.UpsertTariff(ctx, rec); err != nil {
		t.Fatalf("second UpsertTariff failed: %v", err)
	}
	second, _ := m.GetTariff(ctx, "commercial", 2025)
	if second.ID != first.ID {
		t.Errorf("upsert must keep the record id: %d != %d", second.ID, first.ID)
	}
	if second.SewerSurchargeRate != 0.5 {
		t.Errorf("upsert did not update the rate: %v", second.SewerSurchargeRate)
	}
}

func TestMemory_BillsByCustomerMonth(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	if err := m.SaveBill(ctx, BillRecord{ID: "b1", CustomerID: "c1", BillingMonth: "2025-03", GrandTotal: 100}); err != nil {
		t.Fatalf("SaveBill failed: %v", err)
	}
	if err := m.SaveBill(ctx, BillRecord{ID: "b2", CustomerID: "c2", BillingMonth: "2025-03"}); err != nil {
		t.Fatalf("SaveBill failed: %v", err)
	}

	b, err := m.GetBillForCustomerMonth(ctx, "c1", "2025-03")
	if err != nil {
		t.Fatalf("GetBillForCustomerMonth failed: %v", err)
	}
	if b == nil || b.ID != "b1" {
		t.Fatalf("expected bill b1, got %+v", b)
	}

	list, err := m.ListBillsForMonth(ctx, "2025-03")
	if err != nil {
		t.Fatalf("ListBillsForMonth failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 bills, got %d", len(list))
	}

	if err := m.UpdateBillPaymentStatus(ctx, "b1", "paid"); err != nil {
		t.Fatalf("UpdateBillPaymentStatus failed: %v", err)
	}
	b, _ = m.GetBill(ctx, "b1")
	if b.PaymentStatus != "paid" {
		t.Errorf("status not updated: %q", b.PaymentStatus)
	}
}

func TestMemory_UsersAndTokens(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	if err := m.CreateUser(ctx, User{ID: "u1", Username: "clerk1", Role: "clerk"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	u, err := m.GetUserByUsername(ctx, "clerk1")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if u == nil || u.ID != "u1" {
		t.Fatalf("expected user u1, got %+v", u)
	}

	if err := m.CreateToken(ctx, Token{ID: "t1", UserID: "u1", TokenHash: "abc", Role: "clerk"}); err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	tok, err := m.GetTokenByHash(ctx, "abc")
	if err != nil {
		t.Fatalf("GetTokenByHash failed: %v", err)
	}
	if tok == nil || tok.ID != "t1" {
		t.Fatalf("expected token t1, got %+v", tok)
	}
}
