package accounts_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/accounts"
	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/auth"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/retry"
	"github.com/jkaninda/soko/internal/storage/sqlite"
)

// lostReplyStore stores the first principal but reports a failure, as if
// the connection dropped after the commit.
type lostReplyStore struct {
	accounts.Store
	creates int
}

func (s *lostReplyStore) CreatePrincipal(ctx context.Context, p *domain.Principal, hash string) error {
	s.creates++
	if err := s.Store.CreatePrincipal(ctx, p, hash); err != nil {
		return err
	}
	if s.creates == 1 {
		return errors.New("connection reset by peer")
	}
	return nil
}

func newService(t *testing.T, wrap func(accounts.Store) accounts.Store) (*accounts.Service, *sqlite.Store, uuid.UUID) {
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
	tenant, err := store.EnsureTenant(ctx, "acme", "Acme")
	if err != nil {
		t.Fatal(err)
	}

	var principals accounts.Store = store.Principals()
	if wrap != nil {
		principals = wrap(principals)
	}
	rw := retry.New(retry.Config{MaxRetries: 2, BackoffUnit: time.Millisecond}, logger)
	tokens := auth.NewJWTVerifier([]byte("test-secret-key-for-jwt-signing"), "soko")
	return accounts.NewService(principals, store.Tenants(), tokens, time.Hour, rw, logger), store, tenant.ID
}

func TestCreate_IdempotentByUsername(t *testing.T) {
	svc, _, tenantID := newService(t, nil)
	ctx := context.Background()
	req := accounts.CreateRequest{Username: "courier.one", Password: "s3cret-pass", Role: "delivery_agent", TenantID: tenantID.String()}

	first, err := svc.Create(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Create(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("second create made a new principal: %s != %s", first.ID, second.ID)
	}

	req.Role = "tenant_admin"
	if _, err := svc.Create(ctx, req); !apierr.Is(err, apierr.KindInvalidInput) {
		t.Errorf("conflicting create: err = %v, want InvalidInput", err)
	}
}

func TestCreate_LostReplyIsNotRepeated(t *testing.T) {
	var wrapped *lostReplyStore
	svc, store, tenantID := newService(t, func(s accounts.Store) accounts.Store {
		wrapped = &lostReplyStore{Store: s}
		return wrapped
	})
	ctx := context.Background()

	p, err := svc.Create(ctx, accounts.CreateRequest{Username: "ops", Password: "s3cret-pass", Role: "tenant_admin", TenantID: tenantID.String()})
	if err != nil {
		t.Fatal(err)
	}
	if wrapped.creates != 1 {
		t.Errorf("CreatePrincipal called %d times, want 1", wrapped.creates)
	}
	all, err := store.Principals().ListPrincipals(ctx, &tenantID)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].ID != p.ID {
		t.Errorf("principals = %+v", all)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, tenantID := newService(t, nil)
	tests := []struct {
		name string
		req  accounts.CreateRequest
	}{
		{"short password", accounts.CreateRequest{Username: "abc.user", Password: "short", Role: "customer", TenantID: tenantID.String()}},
		{"unknown role", accounts.CreateRequest{Username: "abc.user", Password: "long-enough", Role: "root", TenantID: tenantID.String()}},
		{"tenant role without tenant", accounts.CreateRequest{Username: "abc.user", Password: "long-enough", Role: "customer"}},
		{"platform admin with tenant", accounts.CreateRequest{Username: "abc.user", Password: "long-enough", Role: "platform_admin", TenantID: tenantID.String()}},
		{"unknown tenant", accounts.CreateRequest{Username: "abc.user", Password: "long-enough", Role: "customer", TenantID: uuid.NewString()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tt.req); !apierr.Is(err, apierr.KindInvalidInput) {
				t.Errorf("err = %v, want InvalidInput", err)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	svc, _, tenantID := newService(t, nil)
	ctx := context.Background()
	if _, err := svc.Create(ctx, accounts.CreateRequest{Username: "ops", Password: "s3cret-pass", Role: "tenant_admin", TenantID: tenantID.String()}); err != nil {
		t.Fatal(err)
	}

	sess, err := svc.Login(ctx, accounts.LoginRequest{Username: "ops", Password: "s3cret-pass"})
	if err != nil {
		t.Fatal(err)
	}
	if sess.Token == "" || sess.Principal.Username != "ops" {
		t.Errorf("session = %+v", sess)
	}

	for _, req := range []accounts.LoginRequest{
		{Username: "ops", Password: "wrong-pass"},
		{Username: "nobody", Password: "s3cret-pass"},
	} {
		if _, err := svc.Login(ctx, req); !apierr.Is(err, apierr.KindUnauthorized) {
			t.Errorf("%s: err = %v, want Unauthorized", req.Username, err)
		}
	}
}
