// Package auth authenticates bearer credentials and resolves the caller
// to a principal with its capability set.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/domain"
)

// ErrPrincipalNotFound is returned by a PrincipalStore for unknown IDs.
var ErrPrincipalNotFound = domain.ErrNotFound

// PrincipalStore looks up principals by ID.
type PrincipalStore interface {
	GetPrincipal(ctx context.Context, id uuid.UUID) (*domain.Principal, error)
}

// CapabilityResolver attaches capabilities to a principal.
// Satisfied by *security.RBAC.
type CapabilityResolver interface {
	Attach(p *domain.Principal) *domain.Principal
}

// Service turns an Authorization header into a principal.
type Service struct {
	verifier   TokenVerifier
	principals PrincipalStore
	caps       CapabilityResolver
	logger     *slog.Logger
}

// NewService creates an authentication service.
func NewService(verifier TokenVerifier, principals PrincipalStore, caps CapabilityResolver, logger *slog.Logger) *Service {
	return &Service{verifier: verifier, principals: principals, caps: caps, logger: logger}
}

// Authenticate verifies the bearer token in header and loads the principal.
// Every failure is Unauthorized; the store is not touched unless the token
// verifies.
func (s *Service) Authenticate(ctx context.Context, header string) (*domain.Principal, error) {
	token, msg := extractBearerToken(header)
	if msg != "" {
		return nil, apierr.Unauthorized(msg)
	}

	sub, err := s.verifier.Verify(token)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return nil, apierr.Unauthorized("token expired")
		}
		return nil, apierr.Unauthorized("invalid token")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, apierr.Unauthorized("invalid token")
	}

	p, err := s.principals.GetPrincipal(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, apierr.Unauthorized("invalid token")
		}
		s.logger.ErrorContext(ctx, "loading principal", slog.String("principal_id", sub), slog.Any("error", err))
		return nil, apierr.Internal(err)
	}
	if !p.IsActive {
		return nil, apierr.Unauthorized("account disabled")
	}
	return s.caps.Attach(p), nil
}

func extractBearerToken(header string) (string, string) {
	if header == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}
