package ordering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/domain"
)

// Targets lists the delivery states a courier may move an order into.
var Targets = []domain.DeliveryStatus{
	domain.DeliveryAssigned,
	domain.DeliveryPickedUp,
	domain.DeliveryOutForDelivery,
	domain.DeliveryDelivered,
	domain.DeliveryFailed,
}

// ValidTarget reports whether s is one of Targets.
func ValidTarget(s domain.DeliveryStatus) bool {
	for _, t := range Targets {
		if t == s {
			return true
		}
	}
	return false
}

// DeliveryStatusRequest moves an order to a new delivery state.
type DeliveryStatusRequest struct {
	Status string `json:"status"`
}

func (r DeliveryStatusRequest) Validate() error {
	if !ValidTarget(domain.DeliveryStatus(r.Status)) {
		return apierr.InvalidInput("status must be one of assigned, picked_up, out_for_delivery, delivered, failed", "status")
	}
	return nil
}

// AssignRequest assigns a courier to an order.
type AssignRequest struct {
	AgentID string `json:"agentId"`
}

func (r AssignRequest) Validate() error {
	if _, err := uuid.Parse(r.AgentID); err != nil {
		return apierr.InvalidInput("agentId is required", "agentId")
	}
	return nil
}

// Assign hands an order to an active courier visible to the tenant.
// Orders can be (re)assigned until pickup.
func (s *Service) Assign(ctx context.Context, tenantID, orderID uuid.UUID, req AssignRequest) (*domain.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	agentID, _ := uuid.Parse(req.AgentID)
	agent, err := s.store.GetAgent(ctx, tenantID, agentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apierr.InvalidInput("unknown delivery agent", "agentId")
		}
		return nil, fmt.Errorf("loading agent: %w", err)
	}
	if !agent.IsActive {
		return nil, apierr.InvalidInput("delivery agent is inactive", "agentId")
	}

	o, err := s.store.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apierr.NotFound("order")
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}
	if o.DeliveryStatus != domain.DeliveryPending && o.DeliveryStatus != domain.DeliveryAssigned {
		return nil, apierr.InvalidInput("order can no longer be reassigned", "agentId")
	}
	if o.Status == domain.OrderCancelled {
		return nil, apierr.InvalidInput("order is cancelled", "agentId")
	}

	u := DeliveryUpdate{
		From:    o.DeliveryStatus,
		To:      domain.DeliveryAssigned,
		AgentID: &agent.ID,
	}
	if o.Status == domain.OrderPending {
		u.Status = domain.OrderConfirmed
	}
	updated, err := s.store.UpdateDelivery(ctx, tenantID, orderID, u)
	if err != nil {
		return nil, s.updateError(err)
	}
	s.logger.InfoContext(ctx, "order assigned",
		slog.String("order_id", orderID.String()),
		slog.String("agent_id", agent.ID.String()),
	)
	return updated, nil
}

// UpdateDeliveryStatus applies a courier's status change. The caller must
// be the active courier assigned to the order; anything else is Forbidden,
// whether or not the order exists. Entering delivered stamps the delivery
// time and marks the order delivered in the same write; entering failed
// marks the order failed.
func (s *Service) UpdateDeliveryStatus(ctx context.Context, tenantID uuid.UUID, principalID, orderID uuid.UUID, req DeliveryStatusRequest) (*domain.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	target := domain.DeliveryStatus(req.Status)

	agent, err := s.store.GetAgentByPrincipal(ctx, tenantID, principalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apierr.Forbidden()
		}
		return nil, fmt.Errorf("loading agent: %w", err)
	}
	if !agent.IsActive {
		return nil, apierr.Forbidden()
	}

	o, err := s.store.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apierr.Forbidden()
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}
	if o.DeliveryAgentID == nil || *o.DeliveryAgentID != agent.ID {
		return nil, apierr.Forbidden()
	}
	if o.DeliveryStatus.Terminal() {
		return nil, apierr.InvalidInput("delivery is already "+string(o.DeliveryStatus), "status")
	}

	u := DeliveryUpdate{From: o.DeliveryStatus, To: target}
	switch target {
	case domain.DeliveryDelivered:
		now := s.now()
		u.DeliveredAt = &now
		u.Status = domain.OrderDelivered
	case domain.DeliveryFailed:
		u.Status = domain.OrderFailed
	}

	updated, err := s.store.UpdateDelivery(ctx, tenantID, orderID, u)
	if err != nil {
		return nil, s.updateError(err)
	}
	s.logger.InfoContext(ctx, "delivery status changed",
		slog.String("order_id", orderID.String()),
		slog.String("from", string(o.DeliveryStatus)),
		slog.String("to", string(target)),
	)
	return updated, nil
}

func (s *Service) updateError(err error) error {
	switch {
	case errors.Is(err, domain.ErrStale):
		return apierr.InvalidInput("order was changed by another request, reload and retry", "status")
	case errors.Is(err, domain.ErrNotFound):
		return apierr.NotFound("order")
	default:
		return fmt.Errorf("updating delivery: %w", err)
	}
}
