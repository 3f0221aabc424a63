// Package accounts manages principals: creation with a retry guarded by
// the username, password login, and listing.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/auth"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/retry"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{2,63}$`)
	phonePattern    = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
)

// Store provides principal persistence.
type Store interface {
	GetPrincipal(ctx context.Context, id uuid.UUID) (*domain.Principal, error)
	GetByUsername(ctx context.Context, username string) (*domain.Principal, error)
	// PasswordHash returns the principal and its stored hash.
	PasswordHash(ctx context.Context, username string) (*domain.Principal, string, error)
	// ListPrincipals lists principals whose home tenant is tenantID, or
	// every principal when tenantID is nil.
	ListPrincipals(ctx context.Context, tenantID *uuid.UUID) ([]domain.Principal, error)
	// CreatePrincipal fails with domain.ErrDuplicate on a taken username.
	CreatePrincipal(ctx context.Context, p *domain.Principal, passwordHash string) error
}

// TenantLookup checks that a home tenant exists.
type TenantLookup interface {
	GetTenant(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
}

// TokenIssuer mints bearer tokens.
type TokenIssuer interface {
	Generate(principalID string, expiresIn time.Duration) (string, error)
}

// Service manages principals.
type Service struct {
	store    Store
	tenants  TenantLookup
	tokens   TokenIssuer
	tokenTTL time.Duration
	retry    *retry.Wrapper
	logger   *slog.Logger
}

// NewService creates an accounts service.
func NewService(store Store, tenants TenantLookup, tokens TokenIssuer, tokenTTL time.Duration, rw *retry.Wrapper, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		tenants:  tenants,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		retry:    rw,
		logger:   logger,
	}
}

// CreateRequest creates a principal.
type CreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	TenantID string `json:"tenantId,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

func (r CreateRequest) Validate() error {
	var c apierr.Check
	c.Require(usernamePattern.MatchString(r.Username), "username")
	c.Require(len(r.Password) >= MinPasswordLength, "password")
	role := domain.Role(r.Role)
	c.Require(validRole(role), "role")
	if role == domain.RolePlatformAdmin {
		c.Require(r.TenantID == "", "tenantId")
	} else {
		_, err := uuid.Parse(r.TenantID)
		c.Require(err == nil, "tenantId")
	}
	c.Require(r.Phone == "" || phonePattern.MatchString(r.Phone), "phone")
	return c.Err("missing or invalid principal fields")
}

func validRole(r domain.Role) bool {
	switch r {
	case domain.RolePlatformAdmin, domain.RoleTenantAdmin, domain.RoleDeliveryAgent, domain.RoleCustomer:
		return true
	}
	return false
}

// Create creates a principal, retrying transient store failures. The
// username is the idempotency key: before each attempt the store is asked
// for it, so a create that landed but whose reply was lost is returned
// instead of repeated. A username already used by a different account is
// InvalidInput.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Principal, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var tenantID *uuid.UUID
	if req.TenantID != "" {
		id, _ := uuid.Parse(req.TenantID)
		if _, err := s.tenants.GetTenant(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, apierr.InvalidInput("unknown tenant", "tenantId")
			}
			return nil, fmt.Errorf("loading tenant: %w", err)
		}
		tenantID = &id
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	p, err := retry.Run(ctx, s.retry, retry.Idempotent[*domain.Principal]{
		Name: "principal.create",
		Key:  req.Username,
		Existing: func(ctx context.Context) (*domain.Principal, bool, error) {
			existing, err := s.store.GetByUsername(ctx, req.Username)
			if errors.Is(err, domain.ErrNotFound) {
				return nil, false, nil
			}
			if err != nil {
				return nil, false, err
			}
			if existing.Role != domain.Role(req.Role) || !sameTenant(existing.TenantID, tenantID) {
				return nil, false, apierr.InvalidInput("username is already taken", "username")
			}
			return existing, true, nil
		},
		Attempt: func(ctx context.Context) (*domain.Principal, error) {
			p := &domain.Principal{
				Username: req.Username,
				Phone:    req.Phone,
				Role:     domain.Role(req.Role),
				TenantID: tenantID,
				IsActive: true,
			}
			// A duplicate means a concurrent or earlier attempt won; the
			// next lookup returns it.
			if err := s.store.CreatePrincipal(ctx, p, hash); err != nil {
				return nil, err
			}
			return p, nil
		},
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, apierr.InvalidInput("username is already taken", "username")
		}
		return nil, err
	}
	s.logger.InfoContext(ctx, "principal created",
		slog.String("principal_id", p.ID.String()),
		slog.String("role", string(p.Role)),
	)
	return p, nil
}

func sameTenant(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// List returns principals homed in tenantID, or all when tenantID is nil.
func (s *Service) List(ctx context.Context, tenantID *uuid.UUID) ([]domain.Principal, error) {
	ps, err := s.store.ListPrincipals(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing principals: %w", err)
	}
	return ps, nil
}

// LoginRequest exchanges a password for a bearer token.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	var c apierr.Check
	c.Require(strings.TrimSpace(r.Username) != "", "username")
	c.Require(r.Password != "", "password")
	return c.Err("missing credentials")
}

// Session is a freshly issued bearer token.
type Session struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Principal *domain.Principal `json:"principal"`
}

// Login verifies a password. Unknown users, wrong passwords and disabled
// accounts all yield the same Unauthorized error.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p, hash, err := s.store.PasswordHash(ctx, req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apierr.Unauthorized("invalid username or password")
		}
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	if err := auth.CheckPassword(hash, req.Password); err != nil || !p.IsActive {
		if err != nil && !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.ErrorContext(ctx, "checking password", slog.Any("error", err))
		}
		return nil, apierr.Unauthorized("invalid username or password")
	}
	return s.Issue(p)
}

// Issue mints a session token for p.
func (s *Service) Issue(p *domain.Principal) (*Session, error) {
	tok, err := s.tokens.Generate(p.ID.String(), s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	return &Session{Token: tok, ExpiresAt: time.Now().UTC().Add(s.tokenTTL), Principal: p}, nil
}
