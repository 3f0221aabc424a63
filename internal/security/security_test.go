package security

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jkaninda/soko/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHasCapability(t *testing.T) {
	rbac, err := NewRBAC(RBACConfig{Roles: DefaultRoles()}, discardLogger())
	if err != nil {
		t.Fatalf("NewRBAC: %v", err)
	}

	tests := []struct {
		role domain.Role
		cap  domain.Capability
		want bool
	}{
		{domain.RolePlatformAdmin, PrincipalsManage, true},
		{domain.RoleTenantAdmin, CatalogWrite, true},
		{domain.RoleTenantAdmin, PrincipalsManage, false},
		{domain.RoleDeliveryAgent, DeliveryUpdate, true},
		{domain.RoleDeliveryAgent, OrdersAssign, false},
		{domain.RoleCustomer, CartManage, true},
		{domain.RoleCustomer, CatalogWrite, false},
		{domain.Role("ghost"), CatalogRead, false},
	}
	for _, tt := range tests {
		p := rbac.Attach(&domain.Principal{Role: tt.role})
		if got := HasCapability(p, tt.cap); got != tt.want {
			t.Errorf("HasCapability(%s, %s) = %v, want %v", tt.role, tt.cap, got, tt.want)
		}
	}
}

func TestHasCapability_NilPrincipal(t *testing.T) {
	if HasCapability(nil, CatalogRead) {
		t.Error("nil principal must have no capabilities")
	}
	if HasCapability(nil, "") {
		t.Error("nil principal is never authorized")
	}
	if !HasCapability(&domain.Principal{}, "") {
		t.Error("the empty capability is granted to authenticated principals")
	}
}

func TestNewRBAC_RejectsUnknownCapability(t *testing.T) {
	cfg := RBACConfig{Roles: map[string]Role{
		"tenant_admin": {Name: "tenant_admin", Capabilities: []string{"catalog.wrte"}},
	}}
	if _, err := NewRBAC(cfg, discardLogger()); err == nil {
		t.Fatal("expected error for misspelled capability")
	}
}

func TestAuditLogger_AppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	a, err := NewAuditLogger(path, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, action := range []string{"orders.delivery-status", "orders.assign"} {
		if err := a.LogAction(ctx, AuditEvent{Action: action, Result: "success"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var lines []AuditEvent
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev AuditEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("line is not JSON: %v", err)
		}
		lines = append(lines, ev)
	}
	if len(lines) != 2 || lines[1].Action != "orders.assign" {
		t.Errorf("got %+v", lines)
	}
}

func TestNewCorrelationID(t *testing.T) {
	a, b := NewCorrelationID(), NewCorrelationID()
	if len(a) != 16 {
		t.Errorf("len = %d, want 16", len(a))
	}
	if a == b {
		t.Error("two IDs are equal")
	}
}
