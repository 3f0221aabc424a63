// Package domain defines cross-cutting entity types used across the system.
//
// A nil TenantID marks a global record: it is visible to every tenant under
// the inclusive scoping policy and to none under the exclusive one.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is an isolated operating business unit (one delivery operator).
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Role names a principal's position. Capabilities are derived from it once,
// at authentication time.
type Role string

const (
	RolePlatformAdmin Role = "platform_admin"
	RoleTenantAdmin   Role = "tenant_admin"
	RoleDeliveryAgent Role = "delivery_agent"
	RoleCustomer      Role = "customer"
)

// Capability is a single action a principal may be entitled to perform.
type Capability string

// CapabilitySet is the resolved, typed set of capabilities of a principal.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from a list of capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether c is in the set. A nil set has no capabilities.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Principal is the authenticated caller.
// TenantID is the home tenant; nil for platform operators.
type Principal struct {
	ID            uuid.UUID     `json:"id"`
	Username      string        `json:"username"`
	Phone         string        `json:"phone,omitempty"`
	PhoneVerified bool          `json:"phoneVerified"`
	Role          Role          `json:"role"`
	TenantID      *uuid.UUID    `json:"tenantId,omitempty"`
	IsActive      bool          `json:"isActive"`
	Capabilities  CapabilitySet `json:"-"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// FoodType classifies restaurants for listing filters.
type FoodType string

const (
	FoodTypeVeg    FoodType = "veg"
	FoodTypeNonVeg FoodType = "non_veg"
	FoodTypeMixed  FoodType = "mixed"
)

// Restaurant is a storefront in any vertical (food, grocery, wash).
type Restaurant struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  *uuid.UUID `json:"tenantId,omitempty"`
	Name      string     `json:"name"`
	FoodType  FoodType   `json:"foodType"`
	Vertical  string     `json:"vertical"`
	Address   string     `json:"address,omitempty"`
	Rating    float64    `json:"rating"`
	IsActive  bool       `json:"isActive"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Category groups menu items.
type Category struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  *uuid.UUID `json:"tenantId,omitempty"`
	Name      string     `json:"name"`
	SortOrder int        `json:"sortOrder"`
	IsActive  bool       `json:"isActive"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// MenuItem is a sellable item of a restaurant.
type MenuItem struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     *uuid.UUID `json:"tenantId,omitempty"`
	RestaurantID uuid.UUID  `json:"restaurantId"`
	CategoryID   *uuid.UUID `json:"categoryId,omitempty"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Price        float64    `json:"price"`
	IsAvailable  bool       `json:"isAvailable"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// PromoCode is a discount code redeemable at checkout.
type PromoCode struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        *uuid.UUID `json:"tenantId,omitempty"`
	Code            string     `json:"code"`
	DiscountPercent float64    `json:"discountPercent"`
	MaxDiscount     float64    `json:"maxDiscount"`
	ValidUntil      *time.Time `json:"validUntil,omitempty"`
	IsActive        bool       `json:"isActive"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Banner is a promotional image shown in client apps.
type Banner struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  *uuid.UUID `json:"tenantId,omitempty"`
	Title     string     `json:"title"`
	ImageURL  string     `json:"imageUrl"`
	Link      string     `json:"link,omitempty"`
	SortOrder int        `json:"sortOrder"`
	IsActive  bool       `json:"isActive"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// HolidayCalendar marks a day without service. Global rows are defaults
// shared by every tenant.
type HolidayCalendar struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  *uuid.UUID `json:"tenantId,omitempty"`
	Name      string     `json:"name"`
	Date      time.Time  `json:"date"`
	CreatedAt time.Time  `json:"createdAt"`
}

// SlotOverride changes capacity of one booking slot for one tenant.
// It is never global.
type SlotOverride struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenantId"`
	Date      time.Time `json:"date"`
	Slot      string    `json:"slot"`
	Capacity  int       `json:"capacity"`
	Closed    bool      `json:"closed"`
	CreatedAt time.Time `json:"createdAt"`
}

// DeliveryAgent is a courier linked to a principal account.
type DeliveryAgent struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    *uuid.UUID `json:"tenantId,omitempty"`
	PrincipalID uuid.UUID  `json:"principalId"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	VehicleType string     `json:"vehicleType,omitempty"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// OrderStatus is the primary lifecycle status of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
	OrderFailed    OrderStatus = "failed"
)

// DeliveryStatus is the courier-facing status of an order.
type DeliveryStatus string

const (
	DeliveryPending        DeliveryStatus = "pending"
	DeliveryAssigned       DeliveryStatus = "assigned"
	DeliveryPickedUp       DeliveryStatus = "picked_up"
	DeliveryOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryDelivered      DeliveryStatus = "delivered"
	DeliveryFailed         DeliveryStatus = "failed"
)

// Terminal reports whether no further delivery transitions are accepted.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryDelivered || s == DeliveryFailed
}

// Order is a customer purchase belonging to exactly one tenant.
type Order struct {
	ID              uuid.UUID      `json:"id"`
	TenantID        uuid.UUID      `json:"tenantId"`
	CustomerID      uuid.UUID      `json:"customerId"`
	RestaurantID    *uuid.UUID     `json:"restaurantId,omitempty"`
	DeliveryAgentID *uuid.UUID     `json:"deliveryAgentId,omitempty"`
	Status          OrderStatus    `json:"status"`
	DeliveryStatus  DeliveryStatus `json:"deliveryStatus"`
	Subtotal        float64        `json:"subtotal"`
	DeliveryFee     float64        `json:"deliveryFee"`
	Discount        float64        `json:"discount"`
	TotalAmount     float64        `json:"totalAmount"`
	Currency        string         `json:"currency"`
	PaymentOrderID  string         `json:"paymentOrderId,omitempty"`
	DeliveredAt     *time.Time     `json:"deliveredAt,omitempty"`
	Items           []OrderItem    `json:"items,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// OrderItem is one line of an order. Name and price are copied at checkout.
type OrderItem struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"orderId"`
	MenuItemID uuid.UUID `json:"menuItemId"`
	Name       string    `json:"name"`
	UnitPrice  float64   `json:"unitPrice"`
	Quantity   int       `json:"quantity"`
}

// CartItem is identified by (tenant, principal, menu item).
type CartItem struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenantId"`
	PrincipalID uuid.UUID `json:"principalId"`
	MenuItemID  uuid.UUID `json:"menuItemId"`
	Quantity    int       `json:"quantity"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Payment records a payment attempt made through the payment gateway.
type Payment struct {
	ID                uuid.UUID `json:"id"`
	TenantID          uuid.UUID `json:"tenantId"`
	OrderID           uuid.UUID `json:"orderId"`
	ProviderPaymentID string    `json:"providerPaymentId"`
	Method            string    `json:"method"`
	Amount            float64   `json:"amount"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"createdAt"`
}

// OTPChallenge is one issued verification code for a phone number.
// The code itself is never stored, only its hash.
type OTPChallenge struct {
	ID         uuid.UUID
	Phone      string
	CodeHash   string
	Provider   string
	Attempts   int
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// NewID generates a new random UUID.
func NewID() uuid.UUID {
	return uuid.New()
}

// Owner returns the owning tenant; nil for global rows.
func (r Restaurant) Owner() *uuid.UUID { return r.TenantID }

// Owner returns the owning tenant; nil for global rows.
func (c Category) Owner() *uuid.UUID { return c.TenantID }

// Owner returns the owning tenant; nil for global rows.
func (m MenuItem) Owner() *uuid.UUID { return m.TenantID }

// Owner returns the owning tenant; nil for global rows.
func (p PromoCode) Owner() *uuid.UUID { return p.TenantID }

// Owner returns the owning tenant; nil for global rows.
func (b Banner) Owner() *uuid.UUID { return b.TenantID }
