// Package fleet manages delivery agents and their earnings.
package fleet

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
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/scope"
	"github.com/jkaninda/soko/internal/security"
)

// DefaultEarningsWindow is used when no range is given.
const DefaultEarningsWindow = 30 * 24 * time.Hour

var phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// Store provides fleet persistence.
type Store interface {
	ListAgents(ctx context.Context, tenantID uuid.UUID) ([]domain.DeliveryAgent, error)
	GetAgent(ctx context.Context, tenantID, id uuid.UUID) (*domain.DeliveryAgent, error)
	CreateAgent(ctx context.Context, a *domain.DeliveryAgent) error
	UpdateAgent(ctx context.Context, a *domain.DeliveryAgent) error
	GetPrincipal(ctx context.Context, id uuid.UUID) (*domain.Principal, error)
	// Earnings aggregates delivered orders of the agent within the tenant.
	Earnings(ctx context.Context, tenantID, agentID uuid.UUID, from, to time.Time) (deliveries int64, fees float64, err error)
}

// Service manages delivery agents.
type Service struct {
	store    Store
	currency string
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a fleet service.
func NewService(store Store, currency string, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		currency: currency,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AgentInput creates or updates a delivery agent.
type AgentInput struct {
	PrincipalID string `json:"principalId"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	VehicleType string `json:"vehicleType,omitempty"`
	IsActive    *bool  `json:"isActive,omitempty"`
	Global      bool   `json:"global,omitempty"`
}

func (in AgentInput) Validate() error {
	var c apierr.Check
	_, err := uuid.Parse(in.PrincipalID)
	c.Require(err == nil, "principalId")
	c.Require(strings.TrimSpace(in.Name) != "", "name")
	c.Require(phonePattern.MatchString(in.Phone), "phone")
	return c.Err("missing or invalid agent fields")
}

// List returns the tenant's agents and the shared global pool.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]domain.DeliveryAgent, error) {
	agents, err := s.store.ListAgents(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	return agents, nil
}

// Create registers a courier account as a delivery agent of the tenant.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, platform bool, in AgentInput) (*domain.DeliveryAgent, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.Global && !platform {
		return nil, apierr.Forbidden()
	}
	owner, err := scope.Owner(scope.DeliveryAgents, &tenantID, in.Global)
	if err != nil {
		return nil, apierr.InvalidInput(err.Error(), "global")
	}
	principalID, _ := uuid.Parse(in.PrincipalID)
	if err := s.checkPrincipal(ctx, principalID, owner); err != nil {
		return nil, err
	}

	a := &domain.DeliveryAgent{
		TenantID:    owner,
		PrincipalID: principalID,
		Name:        strings.TrimSpace(in.Name),
		Phone:       in.Phone,
		VehicleType: in.VehicleType,
		IsActive:    in.IsActive == nil || *in.IsActive,
	}
	if err := s.store.CreateAgent(ctx, a); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, apierr.InvalidInput("principal is already a delivery agent", "principalId")
		}
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	s.logger.InfoContext(ctx, "delivery agent created",
		slog.String("agent_id", a.ID.String()),
		slog.String("tenant_id", tenantID.String()),
	)
	return a, nil
}

// Update changes an agent the caller's tenant owns. The linked principal
// cannot be changed.
func (s *Service) Update(ctx context.Context, tenantID uuid.UUID, platform bool, id uuid.UUID, in AgentInput) (*domain.DeliveryAgent, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	a, err := s.store.GetAgent(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apierr.NotFound("delivery agent")
		}
		return nil, fmt.Errorf("loading agent: %w", err)
	}
	if !mayModify(a.TenantID, tenantID, platform) {
		return nil, apierr.Forbidden()
	}
	if in.PrincipalID != a.PrincipalID.String() {
		return nil, apierr.InvalidInput("principalId cannot be changed", "principalId")
	}

	a.Name = strings.TrimSpace(in.Name)
	a.Phone = in.Phone
	a.VehicleType = in.VehicleType
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}
	if err := s.store.UpdateAgent(ctx, a); err != nil {
		return nil, fmt.Errorf("updating agent: %w", err)
	}
	return a, nil
}

func mayModify(owner *uuid.UUID, tenantID uuid.UUID, platform bool) bool {
	if owner == nil {
		return platform
	}
	return *owner == tenantID
}

func (s *Service) checkPrincipal(ctx context.Context, id uuid.UUID, owner *uuid.UUID) error {
	p, err := s.store.GetPrincipal(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apierr.InvalidInput("unknown principal", "principalId")
		}
		return fmt.Errorf("loading principal: %w", err)
	}
	if p.Role != domain.RoleDeliveryAgent {
		return apierr.InvalidInput("principal is not a delivery agent account", "principalId")
	}
	if owner != nil && (p.TenantID == nil || *p.TenantID != *owner) {
		return apierr.InvalidInput("principal belongs to another tenant", "principalId")
	}
	return nil
}

// EarningsRequest selects the agent and period.
type EarningsRequest struct {
	AgentID string `json:"agentId"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
}

func (r EarningsRequest) Validate() error {
	var c apierr.Check
	_, err := uuid.Parse(r.AgentID)
	c.Require(err == nil, "agentId")
	from, fromErr := parseTime(r.From)
	c.Require(fromErr == nil, "from")
	to, toErr := parseTime(r.To)
	c.Require(toErr == nil, "to")
	if fromErr == nil && toErr == nil && !from.IsZero() && !to.IsZero() {
		c.Require(from.Before(to), "from")
	}
	return c.Err("invalid earnings query")
}

// Earnings is the delivery fee income of an agent over a period.
type Earnings struct {
	AgentID    uuid.UUID `json:"agentId"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Deliveries int64     `json:"deliveries"`
	Total      float64   `json:"total"`
	Currency   string    `json:"currency"`
}

// Earnings sums delivery fees of orders the agent delivered in [from, to).
// Fleet managers may query any agent; couriers only themselves.
func (s *Service) Earnings(ctx context.Context, tenantID uuid.UUID, p *domain.Principal, req EarningsRequest) (*Earnings, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	agentID, _ := uuid.Parse(req.AgentID)
	a, err := s.store.GetAgent(ctx, tenantID, agentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apierr.Forbidden()
		}
		return nil, fmt.Errorf("loading agent: %w", err)
	}
	if !security.HasCapability(p, security.FleetRead) && a.PrincipalID != p.ID {
		return nil, apierr.Forbidden()
	}

	to, _ := parseTime(req.To)
	if to.IsZero() {
		to = s.now()
	}
	from, _ := parseTime(req.From)
	if from.IsZero() {
		from = to.Add(-DefaultEarningsWindow)
	}

	n, fees, err := s.store.Earnings(ctx, tenantID, agentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("aggregating earnings: %w", err)
	}
	return &Earnings{
		AgentID:    agentID,
		From:       from,
		To:         to,
		Deliveries: n,
		Total:      fees,
		Currency:   s.currency,
	}, nil
}

// parseTime accepts RFC 3339 timestamps or plain dates.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}
