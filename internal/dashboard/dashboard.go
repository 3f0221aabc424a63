// Package dashboard computes per-tenant summary counters.
package dashboard

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Summary is the tenant overview shown on the console home page.
type Summary struct {
	OrdersByStatus     map[string]int64 `json:"ordersByStatus"`
	DeliveriesByStatus map[string]int64 `json:"deliveriesByStatus"`
	DeliveredRevenue   float64          `json:"deliveredRevenue"`
	ActiveAgents       int64            `json:"activeAgents"`
	Restaurants        int64            `json:"restaurants"`
	Currency           string           `json:"currency"`
}

// Store aggregates tenant data.
type Store interface {
	Summary(ctx context.Context, tenantID uuid.UUID) (*Summary, error)
}

// Service serves dashboard summaries.
type Service struct {
	store    Store
	currency string
}

// NewService creates a dashboard service.
func NewService(store Store, currency string) *Service {
	return &Service{store: store, currency: currency}
}

// Summary returns the tenant overview.
func (s *Service) Summary(ctx context.Context, tenantID uuid.UUID) (*Summary, error) {
	sum, err := s.store.Summary(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("summarizing tenant %s: %w", tenantID, err)
	}
	sum.Currency = s.currency
	return sum, nil
}
