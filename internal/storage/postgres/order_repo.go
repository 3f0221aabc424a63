package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/ordering"
	"github.com/jkaninda/soko/internal/scope"
)

// OrderRepository implements ordering.Store: carts, orders and payments.
type OrderRepository struct {
	*AgentRepository
	db *gorm.DB
}

// NewOrderRepository creates an OrderRepository.
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{AgentRepository: NewAgentRepository(db), db: db}
}

// --- Cart ---

func (r *OrderRepository) ListCart(ctx context.Context, tenantID, principalID uuid.UUID) ([]domain.CartItem, error) {
	q, err := scope.Apply(r.db.WithContext(ctx), scope.CartItems, &tenantID)
	if err != nil {
		return nil, err
	}
	var rows []CartItemModel
	if err := q.Where("principal_id = ?", principalID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing cart: %w", err)
	}
	out := make([]domain.CartItem, len(rows))
	for i := range rows {
		out[i] = *toCartItemDomain(&rows[i])
	}
	return out, nil
}

func (r *OrderRepository) GetCartItem(ctx context.Context, tenantID, id uuid.UUID) (*domain.CartItem, error) {
	q, err := scope.Apply(r.db.WithContext(ctx), scope.CartItems, &tenantID)
	if err != nil {
		return nil, err
	}
	var m CartItemModel
	if err := q.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return toCartItemDomain(&m), nil
}

// UpsertCartItem inserts the line or overwrites the quantity of the
// existing line with the same identity.
func (r *OrderRepository) UpsertCartItem(ctx context.Context, item *domain.CartItem) (*domain.CartItem, error) {
	m := CartItemModel{
		ID:          uuid.New(),
		TenantID:    item.TenantID,
		PrincipalID: item.PrincipalID,
		MenuItemID:  item.MenuItemID,
		Quantity:    item.Quantity,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "principal_id"}, {Name: "menu_item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return nil, fmt.Errorf("upserting cart item: %w", translate(err))
	}

	var stored CartItemModel
	err = r.db.WithContext(ctx).
		Where("tenant_id = ? AND principal_id = ? AND menu_item_id = ?", item.TenantID, item.PrincipalID, item.MenuItemID).
		First(&stored).Error
	if err != nil {
		return nil, translate(err)
	}
	return toCartItemDomain(&stored), nil
}

func (r *OrderRepository) DeleteCartItem(ctx context.Context, tenantID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&CartItemModel{})
	if res.Error != nil {
		return fmt.Errorf("deleting cart item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetMenuItem returns a menu item visible to the tenant.
func (r *OrderRepository) GetMenuItem(ctx context.Context, tenantID, id uuid.UUID) (*domain.MenuItem, error) {
	q, err := scope.Apply(r.db.WithContext(ctx), scope.MenuItems, &tenantID)
	if err != nil {
		return nil, err
	}
	var m MenuItemModel
	if err := q.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	v := toMenuItemDomain(&m)
	return &v, nil
}

// FindPromoCode returns the visible promo code with code. A tenant's own
// code shadows a global one.
func (r *OrderRepository) FindPromoCode(ctx context.Context, tenantID uuid.UUID, code string) (*domain.PromoCode, error) {
	q, err := scope.Apply(r.db.WithContext(ctx), scope.PromoCodes, &tenantID)
	if err != nil {
		return nil, err
	}
	var m PromoCodeModel
	if err := q.Where("code = ?", code).Order("tenant_id IS NULL").First(&m).Error; err != nil {
		return nil, translate(err)
	}
	v := toPromoCodeDomain(&m)
	return &v, nil
}

// --- Orders ---

// Checkout inserts the order and its items and empties the customer's cart.
func (r *OrderRepository) Checkout(ctx context.Context, order *domain.Order) error {
	m := toOrderModel(order)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return fmt.Errorf("inserting order: %w", translate(err))
		}
		err := tx.Where("tenant_id = ? AND principal_id = ?", order.TenantID, order.CustomerID).
			Delete(&CartItemModel{}).Error
		if err != nil {
			return fmt.Errorf("emptying cart: %w", err)
		}
		order.CreatedAt, order.UpdatedAt = m.CreatedAt, m.UpdatedAt
		return nil
	})
}

func (r *OrderRepository) ListOrders(ctx context.Context, tenantID uuid.UUID, f ordering.OrderFilter) ([]domain.Order, error) {
	q, err := scope.Apply(r.db.WithContext(ctx), scope.Orders, &tenantID)
	if err != nil {
		return nil, err
	}
	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}
	if f.DeliveryAgentID != nil {
		q = q.Where("delivery_agent_id = ?", *f.DeliveryAgentID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var rows []OrderModel
	if err := q.Preload("Items").Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	out := make([]domain.Order, len(rows))
	for i := range rows {
		out[i] = *toOrderDomain(&rows[i])
	}
	return out, nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, tenantID, id uuid.UUID) (*domain.Order, error) {
	return getOrder(r.db.WithContext(ctx), tenantID, id)
}

func getOrder(db *gorm.DB, tenantID, id uuid.UUID) (*domain.Order, error) {
	q, err := scope.Apply(db, scope.Orders, &tenantID)
	if err != nil {
		return nil, err
	}
	var m OrderModel
	if err := q.Preload("Items").Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return toOrderDomain(&m), nil
}

// ClearItems deletes the order's items and stores the recomputed totals in
// one transaction.
func (r *OrderRepository) ClearItems(ctx context.Context, tenantID, id uuid.UUID, recompute func(*domain.Order)) (*domain.Order, error) {
	return r.rewrite(ctx, tenantID, id, func(tx *gorm.DB, o *domain.Order) error {
		if err := tx.Where("order_id = ?", o.ID).Delete(&OrderItemModel{}).Error; err != nil {
			return fmt.Errorf("deleting order items: %w", err)
		}
		o.Items = nil
		recompute(o)
		return nil
	})
}

// Recalculate stores totals recomputed from the current items.
func (r *OrderRepository) Recalculate(ctx context.Context, tenantID, id uuid.UUID, recompute func(*domain.Order)) (*domain.Order, error) {
	return r.rewrite(ctx, tenantID, id, func(_ *gorm.DB, o *domain.Order) error {
		recompute(o)
		return nil
	})
}

// rewrite loads the order, lets change mutate it, and writes its totals,
// all in one transaction.
func (r *OrderRepository) rewrite(ctx context.Context, tenantID, id uuid.UUID, change func(*gorm.DB, *domain.Order) error) (*domain.Order, error) {
	var out *domain.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := getOrder(tx, tenantID, id)
		if err != nil {
			return err
		}
		if err := change(tx, o); err != nil {
			return err
		}
		res := tx.Model(&OrderModel{}).
			Where("tenant_id = ? AND id = ?", tenantID, id).
			Updates(map[string]any{
				"subtotal":     o.Subtotal,
				"discount":     o.Discount,
				"delivery_fee": o.DeliveryFee,
				"total_amount": o.TotalAmount,
			})
		if res.Error != nil {
			return fmt.Errorf("storing totals: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateDelivery applies u in a single statement guarded by the expected
// current delivery status, so the delivery status and the order status
// never diverge.
func (r *OrderRepository) UpdateDelivery(ctx context.Context, tenantID, id uuid.UUID, u ordering.DeliveryUpdate) (*domain.Order, error) {
	values := map[string]any{"delivery_status": string(u.To)}
	if u.Status != "" {
		values["status"] = string(u.Status)
	}
	if u.AgentID != nil {
		values["delivery_agent_id"] = *u.AgentID
	}
	if u.DeliveredAt != nil {
		values["delivered_at"] = *u.DeliveredAt
	}

	res := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("tenant_id = ? AND id = ? AND delivery_status = ?", tenantID, id, string(u.From)).
		Updates(values)
	if res.Error != nil {
		return nil, fmt.Errorf("updating delivery status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetOrder(ctx, tenantID, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrStale
	}
	return r.GetOrder(ctx, tenantID, id)
}

// --- Payments ---

func (r *OrderRepository) CreatePayment(ctx context.Context, p *domain.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m := PaymentModel{
		ID:                p.ID,
		TenantID:          p.TenantID,
		OrderID:           p.OrderID,
		ProviderPaymentID: p.ProviderPaymentID,
		Method:            p.Method,
		Amount:            p.Amount,
		Status:            p.Status,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translate(err)
	}
	p.CreatedAt = m.CreatedAt
	return nil
}

// SetPaymentOrderID records the gateway order once.
func (r *OrderRepository) SetPaymentOrderID(ctx context.Context, tenantID, id uuid.UUID, paymentOrderID string) error {
	res := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("tenant_id = ? AND id = ? AND payment_order_id = ''", tenantID, id).
		Update("payment_order_id", paymentOrderID)
	if res.Error != nil {
		return fmt.Errorf("storing payment order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetOrder(ctx, tenantID, id); err != nil {
			return err
		}
		return domain.ErrStale
	}
	return nil
}

