package auth

import (
	"context"
	"testing"
	"time"

	"waterbill/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(storage.NewMemory())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	u, err := svc.Register(ctx, "cashier", "s3cret", RoleClerk)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if u.Role != RoleClerk {
		t.Errorf("unexpected role %q", u.Role)
	}

	if _, err := svc.Register(ctx, "cashier", "other", RoleClerk); err == nil {
		t.Errorf("duplicate username must be rejected")
	}

	if _, err := svc.Authenticate(ctx, "cashier", "s3cret"); err != nil {
		t.Errorf("valid credentials rejected: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "cashier", "wrong"); err == nil {
		t.Errorf("bad password accepted")
	}
	if _, err := svc.Authenticate(ctx, "ghost", "s3cret"); err == nil {
		t.Errorf("unknown user accepted")
	}
}

func TestTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	u, err := svc.Register(ctx, "admin1", "pw", RoleAdmin)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, raw, err := svc.CreateToken(ctx, u.ID, "cli", RoleAdmin, nil)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	tok, err := svc.ValidateToken(ctx, raw)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if tok.Role != RoleAdmin {
		t.Errorf("unexpected token role %q", tok.Role)
	}

	if _, err := svc.ValidateToken(ctx, "bogus"); err == nil {
		t.Errorf("bogus token accepted")
	}

	expired := time.Now().Add(-time.Hour)
	_, rawExpired, err := svc.CreateToken(ctx, u.ID, "old", RoleAdmin, &expired)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if _, err := svc.ValidateToken(ctx, rawExpired); err == nil {
		t.Errorf("expired token accepted")
	}
}

func TestEnforceRoles(t *testing.T) {
	svc := newTestService(t)

	cases := []struct {
		role, obj, act string
		want           bool
	}{
		{RoleAdmin, "tariffs", "write", true},
		{RoleClerk, "bills", "write", true},
		{RoleClerk, "tariffs", "write", false},
		{RoleViewer, "bills", "read", true},
		{RoleViewer, "bills", "write", false},
	}
	for _, tc := range cases {
		got, err := svc.Enforce(tc.role, tc.obj, tc.act)
		if err != nil {
			t.Fatalf("Enforce(%s,%s,%s) failed: %v", tc.role, tc.obj, tc.act, err)
		}
		if got != tc.want {
			t.Errorf("Enforce(%s,%s,%s)=%v want %v", tc.role, tc.obj, tc.act, got, tc.want)
		}
	}
}

func TestParseExpirationDuration(t *testing.T) {
	if exp, err := ParseExpirationDuration("never"); err != nil || exp != nil {
		t.Errorf("never should mean no expiration: %v %v", exp, err)
	}
	if exp, err := ParseExpirationDuration("30d"); err != nil || exp == nil {
		t.Errorf("30d should parse: %v %v", exp, err)
	}
	if _, err := ParseExpirationDuration("sometime"); err == nil {
		t.Errorf("garbage should be rejected")
	}
}
