package fleet_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/fleet"
	"github.com/jkaninda/soko/internal/security"
	"github.com/jkaninda/soko/internal/storage/sqlite"
)

type fixture struct {
	store   *sqlite.Store
	svc     *fleet.Service
	rbac    *security.RBAC
	tenantA uuid.UUID
	tenantB uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.Open(sqlite.Config{Path: filepath.Join(t.TempDir(), "soko.db")}, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	a, _ := store.EnsureTenant(ctx, "a", "A")
	b, _ := store.EnsureTenant(ctx, "b", "B")
	rbac, err := security.NewRBAC(security.RBACConfig{Roles: security.DefaultRoles()}, logger)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		store:   store,
		svc:     fleet.NewService(store.Fleet(), "INR", logger),
		rbac:    rbac,
		tenantA: a.ID,
		tenantB: b.ID,
	}
}

func (f *fixture) principal(t *testing.T, username string, role domain.Role, tenantID uuid.UUID) *domain.Principal {
	t.Helper()
	p := &domain.Principal{Username: username, Role: role, TenantID: &tenantID}
	if err := f.store.Principals().CreatePrincipal(context.Background(), p, "x"); err != nil {
		t.Fatal(err)
	}
	return f.rbac.Attach(p)
}

func agentInput(p *domain.Principal) fleet.AgentInput {
	return fleet.AgentInput{PrincipalID: p.ID.String(), Name: p.Username, Phone: "+255711000111"}
}

func TestCreate_ChecksPrincipal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	courier := f.principal(t, "courier", domain.RoleDeliveryAgent, f.tenantA)
	customer := f.principal(t, "customer", domain.RoleCustomer, f.tenantA)
	foreign := f.principal(t, "foreign", domain.RoleDeliveryAgent, f.tenantB)

	a, err := f.svc.Create(ctx, f.tenantA, false, agentInput(courier))
	if err != nil {
		t.Fatal(err)
	}
	if !a.IsActive || a.TenantID == nil || *a.TenantID != f.tenantA {
		t.Errorf("agent = %+v", a)
	}

	tests := []struct {
		name string
		in   fleet.AgentInput
		want apierr.Kind
	}{
		{"already an agent", agentInput(courier), apierr.KindInvalidInput},
		{"wrong role", agentInput(customer), apierr.KindInvalidInput},
		{"other tenant", agentInput(foreign), apierr.KindInvalidInput},
		{"unknown principal", fleet.AgentInput{PrincipalID: uuid.NewString(), Name: "x", Phone: "+255711000111"}, apierr.KindInvalidInput},
		{"bad phone", fleet.AgentInput{PrincipalID: courier.ID.String(), Name: "x", Phone: "0711"}, apierr.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Create(ctx, f.tenantA, false, tt.in); !apierr.Is(err, tt.want) {
				t.Errorf("err = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestUpdate_OwnershipAndPrincipalLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	courier := f.principal(t, "courier", domain.RoleDeliveryAgent, f.tenantA)
	a, err := f.svc.Create(ctx, f.tenantA, false, agentInput(courier))
	if err != nil {
		t.Fatal(err)
	}

	off := false
	in := agentInput(courier)
	in.IsActive = &off
	got, err := f.svc.Update(ctx, f.tenantA, false, a.ID, in)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsActive {
		t.Error("agent still active")
	}

	in.PrincipalID = uuid.NewString()
	if _, err := f.svc.Update(ctx, f.tenantA, false, a.ID, in); !apierr.Is(err, apierr.KindInvalidInput) {
		t.Errorf("principal change: err = %v, want InvalidInput", err)
	}
	if _, err := f.svc.Update(ctx, f.tenantB, false, a.ID, agentInput(courier)); !apierr.Is(err, apierr.KindNotFound) {
		t.Errorf("other tenant: err = %v, want NotFound", err)
	}
}

func TestEarnings_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	courier := f.principal(t, "courier", domain.RoleDeliveryAgent, f.tenantA)
	other := f.principal(t, "other", domain.RoleDeliveryAgent, f.tenantA)
	admin := f.principal(t, "admin", domain.RoleTenantAdmin, f.tenantA)
	a, err := f.svc.Create(ctx, f.tenantA, false, agentInput(courier))
	if err != nil {
		t.Fatal(err)
	}
	req := fleet.EarningsRequest{AgentID: a.ID.String(), From: "2026-01-01", To: "2026-02-01"}

	for _, p := range []*domain.Principal{courier, admin} {
		e, err := f.svc.Earnings(ctx, f.tenantA, p, req)
		if err != nil {
			t.Fatalf("%s: %v", p.Username, err)
		}
		if e.Deliveries != 0 || e.Currency != "INR" {
			t.Errorf("%s: earnings = %+v", p.Username, e)
		}
	}
	if _, err := f.svc.Earnings(ctx, f.tenantA, other, req); !apierr.Is(err, apierr.KindForbidden) {
		t.Errorf("other courier: err = %v, want Forbidden", err)
	}
	if _, err := f.svc.Earnings(ctx, f.tenantB, admin, req); !apierr.Is(err, apierr.KindForbidden) {
		t.Errorf("other tenant: err = %v, want Forbidden", err)
	}
	bad := req
	bad.From, bad.To = "2026-02-01", "2026-01-01"
	if _, err := f.svc.Earnings(ctx, f.tenantA, admin, bad); !apierr.Is(err, apierr.KindInvalidInput) {
		t.Errorf("inverted range: err = %v, want InvalidInput", err)
	}
}
