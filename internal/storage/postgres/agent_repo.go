package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/scope"
)

// AgentRepository manages delivery agents and their earnings.
type AgentRepository struct {
	*PrincipalRepository
	db *gorm.DB
}

// NewAgentRepository creates an AgentRepository.
func NewAgentRepository(db *gorm.DB) *AgentRepository {
	return &AgentRepository{PrincipalRepository: NewPrincipalRepository(db), db: db}
}

// ListAgents returns the tenant's agents and the global pool.
func (r *AgentRepository) ListAgents(ctx context.Context, tenantID uuid.UUID) ([]domain.DeliveryAgent, error) {
	q, err := scope.Apply(r.db.WithContext(ctx), scope.DeliveryAgents, &tenantID)
	if err != nil {
		return nil, err
	}
	var rows []DeliveryAgentModel
	if err := q.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	out := make([]domain.DeliveryAgent, len(rows))
	for i := range rows {
		out[i] = *toAgentDomain(&rows[i])
	}
	return out, nil
}

// GetAgent returns an agent visible to the tenant.
func (r *AgentRepository) GetAgent(ctx context.Context, tenantID, id uuid.UUID) (*domain.DeliveryAgent, error) {
	q, err := scope.Apply(r.db.WithContext(ctx), scope.DeliveryAgents, &tenantID)
	if err != nil {
		return nil, err
	}
	var m DeliveryAgentModel
	if err := q.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return toAgentDomain(&m), nil
}

// GetAgentByPrincipal returns the visible agent linked to principalID.
func (r *AgentRepository) GetAgentByPrincipal(ctx context.Context, tenantID, principalID uuid.UUID) (*domain.DeliveryAgent, error) {
	q, err := scope.Apply(r.db.WithContext(ctx), scope.DeliveryAgents, &tenantID)
	if err != nil {
		return nil, err
	}
	var m DeliveryAgentModel
	if err := q.Where("principal_id = ?", principalID).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return toAgentDomain(&m), nil
}

// CreateAgent stores a; domain.ErrDuplicate when the principal already
// is an agent.
func (r *AgentRepository) CreateAgent(ctx context.Context, a *domain.DeliveryAgent) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m := toAgentModel(a)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return translate(err)
	}
	a.CreatedAt, a.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

// UpdateAgent stores the mutable fields of a.
func (r *AgentRepository) UpdateAgent(ctx context.Context, a *domain.DeliveryAgent) error {
	res := r.db.WithContext(ctx).
		Model(&DeliveryAgentModel{ID: a.ID}).
		Updates(map[string]any{
			"name":         a.Name,
			"phone":        a.Phone,
			"vehicle_type": a.VehicleType,
			"is_active":    a.IsActive,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Earnings counts the agent's orders delivered in [from, to) within the
// tenant and sums their delivery fees.
func (r *AgentRepository) Earnings(ctx context.Context, tenantID, agentID uuid.UUID, from, to time.Time) (int64, float64, error) {
	q, err := scope.Apply(r.db.WithContext(ctx).Model(&OrderModel{}), scope.Orders, &tenantID)
	if err != nil {
		return 0, 0, err
	}
	var out struct {
		Deliveries int64
		Fees       float64
	}
	err = q.
		Select("COUNT(*) AS deliveries, COALESCE(SUM(delivery_fee), 0) AS fees").
		Where("delivery_agent_id = ? AND delivery_status = ?", agentID, string(domain.DeliveryDelivered)).
		Where("delivered_at >= ? AND delivered_at < ?", from, to).
		Scan(&out).Error
	if err != nil {
		return 0, 0, fmt.Errorf("summing earnings: %w", err)
	}
	return out.Deliveries, out.Fees, nil
}
