// Package ordering implements carts, checkout, order totals, delivery
// assignment and the delivery status state machine.
//
// Orders, cart items and payments are exclusive entities: they always
// belong to exactly one tenant. Every multi-row change is a single store
// transaction.
package ordering

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/retry"
)

// OrderFilter narrows an order listing.
type OrderFilter struct {
	CustomerID      *uuid.UUID
	DeliveryAgentID *uuid.UUID
	Status          domain.OrderStatus
	Limit           int
}

// DeliveryUpdate is a guarded delivery status change. It applies only if
// the stored delivery status still equals From.
type DeliveryUpdate struct {
	From        domain.DeliveryStatus
	To          domain.DeliveryStatus
	Status      domain.OrderStatus // empty = unchanged
	AgentID     *uuid.UUID         // set on assignment
	DeliveredAt *time.Time
}

// Store provides ordering persistence.
type Store interface {
	ListCart(ctx context.Context, tenantID, principalID uuid.UUID) ([]domain.CartItem, error)
	GetCartItem(ctx context.Context, tenantID, id uuid.UUID) (*domain.CartItem, error)
	// UpsertCartItem inserts or updates by (tenant, principal, menu item).
	UpsertCartItem(ctx context.Context, item *domain.CartItem) (*domain.CartItem, error)
	DeleteCartItem(ctx context.Context, tenantID, id uuid.UUID) error
	GetMenuItem(ctx context.Context, tenantID, id uuid.UUID) (*domain.MenuItem, error)
	FindPromoCode(ctx context.Context, tenantID uuid.UUID, code string) (*domain.PromoCode, error)

	// Checkout inserts the order with its items and empties the customer's
	// cart in one transaction.
	Checkout(ctx context.Context, order *domain.Order) error
	ListOrders(ctx context.Context, tenantID uuid.UUID, f OrderFilter) ([]domain.Order, error)
	GetOrder(ctx context.Context, tenantID, id uuid.UUID) (*domain.Order, error)
	// ClearItems deletes every item and stores the totals computed by
	// recompute, atomically.
	ClearItems(ctx context.Context, tenantID, id uuid.UUID, recompute func(*domain.Order)) (*domain.Order, error)
	// Recalculate stores the totals computed by recompute from the current
	// items, atomically.
	Recalculate(ctx context.Context, tenantID, id uuid.UUID, recompute func(*domain.Order)) (*domain.Order, error)
	// UpdateDelivery applies u; domain.ErrStale when the status moved.
	UpdateDelivery(ctx context.Context, tenantID, id uuid.UUID, u DeliveryUpdate) (*domain.Order, error)

	GetAgent(ctx context.Context, tenantID, id uuid.UUID) (*domain.DeliveryAgent, error)
	GetAgentByPrincipal(ctx context.Context, tenantID, principalID uuid.UUID) (*domain.DeliveryAgent, error)

	CreatePayment(ctx context.Context, p *domain.Payment) error
	// SetPaymentOrderID records the gateway order; domain.ErrStale when one
	// is already recorded.
	SetPaymentOrderID(ctx context.Context, tenantID, id uuid.UUID, paymentOrderID string) error
}

// Gateway is the payment gateway.
type Gateway interface {
	CreateOrder(ctx context.Context, amount float64, currency, receipt string) (string, error)
	CreatePayment(ctx context.Context, amount float64, orderID, method, payeeHandle string) (id, status string, err error)
}

// Config holds pricing settings.
type Config struct {
	Currency    string
	DeliveryFee float64
}

// Service implements ordering operations.
type Service struct {
	store   Store
	gateway Gateway // nil = payments disabled
	retry   *retry.Wrapper
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates an ordering service.
func NewService(store Store, gateway Gateway, rw *retry.Wrapper, cfg Config, logger *slog.Logger) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &Service{
		store:   store,
		gateway: gateway,
		retry:   rw,
		cfg:     cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}
