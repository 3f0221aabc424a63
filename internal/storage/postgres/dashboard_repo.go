package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkaninda/soko/internal/dashboard"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/scope"
)

// DashboardRepository aggregates tenant counters.
type DashboardRepository struct {
	db *gorm.DB
}

// NewDashboardRepository creates a DashboardRepository.
func NewDashboardRepository(db *gorm.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

type statusCount struct {
	Status string
	N      int64
}

// Summary computes the tenant overview.
func (r *DashboardRepository) Summary(ctx context.Context, tenantID uuid.UUID) (*dashboard.Summary, error) {
	sum := &dashboard.Summary{
		OrdersByStatus:     make(map[string]int64),
		DeliveriesByStatus: make(map[string]int64),
	}

	for col, dst := range map[string]map[string]int64{
		"status":          sum.OrdersByStatus,
		"delivery_status": sum.DeliveriesByStatus,
	} {
		q, err := r.scoped(ctx, &OrderModel{}, scope.Orders, tenantID)
		if err != nil {
			return nil, err
		}
		var rows []statusCount
		if err := q.Select(col + " AS status, COUNT(*) AS n").Group(col).Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("counting orders by %s: %w", col, err)
		}
		for _, row := range rows {
			dst[row.Status] = row.N
		}
	}

	q, err := r.scoped(ctx, &OrderModel{}, scope.Orders, tenantID)
	if err != nil {
		return nil, err
	}
	err = q.Select("COALESCE(SUM(total_amount), 0)").
		Where("status = ?", string(domain.OrderDelivered)).
		Scan(&sum.DeliveredRevenue).Error
	if err != nil {
		return nil, fmt.Errorf("summing revenue: %w", err)
	}

	if q, err = r.scoped(ctx, &DeliveryAgentModel{}, scope.DeliveryAgents, tenantID); err != nil {
		return nil, err
	}
	if err := q.Where("is_active = ?", true).Count(&sum.ActiveAgents).Error; err != nil {
		return nil, fmt.Errorf("counting agents: %w", err)
	}

	if q, err = r.scoped(ctx, &RestaurantModel{}, scope.Restaurants, tenantID); err != nil {
		return nil, err
	}
	if err := q.Where("is_active = ?", true).Count(&sum.Restaurants).Error; err != nil {
		return nil, fmt.Errorf("counting restaurants: %w", err)
	}
	return sum, nil
}

func (r *DashboardRepository) scoped(ctx context.Context, model any, e scope.Entity, tenantID uuid.UUID) (*gorm.DB, error) {
	return scope.Apply(r.db.WithContext(ctx).Model(model), e, &tenantID)
}
