package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/domain"
)

var testSecret = []byte("test-secret-key-for-jwt-signing")

type mapStore struct {
	principals map[uuid.UUID]domain.Principal
	calls      int
}

func (m *mapStore) GetPrincipal(_ context.Context, id uuid.UUID) (*domain.Principal, error) {
	m.calls++
	p, ok := m.principals[id]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	return &p, nil
}

type staticCaps struct{}

func (staticCaps) Attach(p *domain.Principal) *domain.Principal {
	p.Capabilities = domain.NewCapabilitySet("catalog.read")
	return p
}

func newService(t *testing.T) (*Service, *mapStore, *JWTVerifier, uuid.UUID, uuid.UUID) {
	t.Helper()
	active, disabled := uuid.New(), uuid.New()
	store := &mapStore{principals: map[uuid.UUID]domain.Principal{
		active:   {ID: active, Username: "ops", Role: domain.RoleTenantAdmin, IsActive: true},
		disabled: {ID: disabled, Username: "gone", Role: domain.RoleTenantAdmin, IsActive: false},
	}}
	v := NewJWTVerifier(testSecret, "soko")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(v, store, staticCaps{}, logger), store, v, active, disabled
}

func bearer(t *testing.T, v *JWTVerifier, sub string, ttl time.Duration) string {
	t.Helper()
	tok, err := v.Generate(sub, ttl)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return "Bearer " + tok
}

func TestAuthenticate_Valid(t *testing.T) {
	svc, _, v, active, _ := newService(t)
	p, err := svc.Authenticate(context.Background(), bearer(t, v, active.String(), time.Hour))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.ID != active || !p.Capabilities.Has("catalog.read") {
		t.Errorf("got %+v", p)
	}
}

func TestAuthenticate_Rejections(t *testing.T) {
	svc, store, v, _, disabled := newService(t)
	other := NewJWTVerifier([]byte("different-secret"), "soko")

	tests := []struct {
		name        string
		header      string
		wantLookups int
	}{
		{"missing header", "", 0},
		{"basic scheme", "Basic dXNlcjpwYXNz", 0},
		{"empty bearer", "Bearer ", 0},
		{"garbage", "Bearer not-a-jwt", 0},
		{"wrong secret", bearer(t, other, uuid.NewString(), time.Hour), 0},
		{"expired", bearer(t, v, uuid.NewString(), -time.Minute), 0},
		{"non-uuid subject", bearer(t, v, "principal-123", time.Hour), 0},
		{"unknown principal", bearer(t, v, uuid.NewString(), time.Hour), 1},
		{"disabled principal", bearer(t, v, disabled.String(), time.Hour), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.calls = 0
			_, err := svc.Authenticate(context.Background(), tt.header)
			if !apierr.Is(err, apierr.KindUnauthorized) {
				t.Fatalf("err = %v, want Unauthorized", err)
			}
			if store.calls != tt.wantLookups {
				t.Errorf("store lookups = %d, want %d", store.calls, tt.wantLookups)
			}
		})
	}
}

func TestJWTVerifier_IssuerMismatch(t *testing.T) {
	minted := NewJWTVerifier(testSecret, "someone-else")
	tok, err := minted.Generate(uuid.NewString(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewJWTVerifier(testSecret, "soko").Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestJWTVerifier_Expired(t *testing.T) {
	v := NewJWTVerifier(testSecret, "")
	tok, err := v.Generate("p", -time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Verify(tok); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("err = %v, want ErrExpiredToken", err)
	}
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatal(err)
	}
	if err := CheckPassword(h, "s3cret!"); err != nil {
		t.Errorf("CheckPassword(correct) = %v", err)
	}
	if err := CheckPassword(h, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("CheckPassword(wrong) = %v", err)
	}
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	if FromContext(ctx) != nil {
		t.Error("empty context must carry no principal")
	}
	p := &domain.Principal{Username: "ops"}
	if got := FromContext(WithPrincipal(ctx, p)); got != p {
		t.Errorf("FromContext = %v", got)
	}
}
