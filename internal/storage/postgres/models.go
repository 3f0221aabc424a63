package postgres

import (
	"time"

	"github.com/google/uuid"
)

// TenantModel maps to the "tenants" table.
type TenantModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null"`
	Slug      string    `gorm:"not null;uniqueIndex"`
	IsActive  bool      `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TenantModel) TableName() string { return "tenants" }

// PrincipalModel maps to the "principals" table.
// TenantID is the home tenant; NULL for platform operators.
type PrincipalModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Username      string     `gorm:"not null;uniqueIndex"`
	Phone         string     `gorm:"index"`
	PhoneVerified bool       `gorm:"not null"`
	Role          string     `gorm:"not null"`
	TenantID      *uuid.UUID `gorm:"type:uuid;index"`
	PasswordHash  string     `gorm:"not null"`
	IsActive      bool       `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (PrincipalModel) TableName() string { return "principals" }

// RestaurantModel maps to the "restaurants" table.
type RestaurantModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID  *uuid.UUID `gorm:"type:uuid;index"`
	Name      string     `gorm:"not null;index"`
	FoodType  string     `gorm:"not null;index"`
	Vertical  string     `gorm:"not null;default:'food'"`
	Address   string
	Rating    float64 `gorm:"not null;default:0"`
	IsActive  bool    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RestaurantModel) TableName() string { return "restaurants" }

// CategoryModel maps to the "categories" table.
type CategoryModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID  *uuid.UUID `gorm:"type:uuid;index"`
	Name      string     `gorm:"not null"`
	SortOrder int        `gorm:"not null;default:0"`
	IsActive  bool       `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CategoryModel) TableName() string { return "categories" }

// MenuItemModel maps to the "menu_items" table.
type MenuItemModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID     *uuid.UUID `gorm:"type:uuid;index"`
	RestaurantID uuid.UUID  `gorm:"type:uuid;not null;index"`
	CategoryID   *uuid.UUID `gorm:"type:uuid;index"`
	Name         string     `gorm:"not null"`
	Description  string
	Price        float64 `gorm:"type:numeric(12,2);not null"`
	IsAvailable  bool    `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (MenuItemModel) TableName() string { return "menu_items" }

// PromoCodeModel maps to the "promo_codes" table.
type PromoCodeModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID        *uuid.UUID `gorm:"type:uuid;index"`
	Code            string     `gorm:"not null;index"`
	DiscountPercent float64    `gorm:"type:numeric(5,2);not null"`
	MaxDiscount     float64    `gorm:"type:numeric(12,2);not null;default:0"`
	ValidUntil      *time.Time
	IsActive        bool `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (PromoCodeModel) TableName() string { return "promo_codes" }

// BannerModel maps to the "banners" table.
type BannerModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID  *uuid.UUID `gorm:"type:uuid;index"`
	Title     string     `gorm:"not null"`
	ImageURL  string     `gorm:"not null"`
	Link      string
	SortOrder int  `gorm:"not null;default:0"`
	IsActive  bool `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (BannerModel) TableName() string { return "banners" }

// HolidayModel maps to the "holiday_calendars" table.
// A NULL tenant marks a default shared by every tenant. NULLs never collide
// in idx_holiday_tenant_date, so global dates get their own partial index.
type HolidayModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID  *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_holiday_tenant_date"`
	Name      string     `gorm:"not null"`
	Date      time.Time  `gorm:"type:date;not null;uniqueIndex:idx_holiday_tenant_date;uniqueIndex:idx_holiday_global_date,where:tenant_id IS NULL"`
	CreatedAt time.Time
}

func (HolidayModel) TableName() string { return "holiday_calendars" }

// SlotOverrideModel maps to the "slot_overrides" table.
type SlotOverrideModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_slot_tenant_date_slot"`
	Date      time.Time `gorm:"type:date;not null;uniqueIndex:idx_slot_tenant_date_slot"`
	Slot      string    `gorm:"not null;uniqueIndex:idx_slot_tenant_date_slot"`
	Capacity  int       `gorm:"not null;default:0"`
	Closed    bool      `gorm:"not null"`
	CreatedAt time.Time
}

func (SlotOverrideModel) TableName() string { return "slot_overrides" }

// DeliveryAgentModel maps to the "delivery_agents" table.
type DeliveryAgentModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID    *uuid.UUID `gorm:"type:uuid;index"`
	PrincipalID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	Name        string     `gorm:"not null"`
	Phone       string     `gorm:"not null"`
	VehicleType string
	IsActive    bool `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (DeliveryAgentModel) TableName() string { return "delivery_agents" }

// OrderModel maps to the "orders" table.
type OrderModel struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID        `gorm:"type:uuid;not null;index"`
	CustomerID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	RestaurantID    *uuid.UUID       `gorm:"type:uuid"`
	DeliveryAgentID *uuid.UUID       `gorm:"type:uuid;index"`
	Status          string           `gorm:"not null;index"`
	DeliveryStatus  string           `gorm:"not null;index"`
	Subtotal        float64          `gorm:"type:numeric(12,2);not null;default:0"`
	DeliveryFee     float64          `gorm:"type:numeric(12,2);not null;default:0"`
	Discount        float64          `gorm:"type:numeric(12,2);not null;default:0"`
	TotalAmount     float64          `gorm:"type:numeric(12,2);not null;default:0"`
	Currency        string           `gorm:"not null"`
	PaymentOrderID  string           `gorm:"not null;default:''"`
	DeliveredAt     *time.Time       `gorm:"index"`
	Items           []OrderItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (OrderModel) TableName() string { return "orders" }

// OrderItemModel maps to the "order_items" table.
type OrderItemModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;index"`
	MenuItemID uuid.UUID `gorm:"type:uuid;not null"`
	Name       string    `gorm:"not null"`
	UnitPrice  float64   `gorm:"type:numeric(12,2);not null"`
	Quantity   int       `gorm:"not null"`
}

func (OrderItemModel) TableName() string { return "order_items" }

// CartItemModel maps to the "cart_items" table. A line is identified by
// (tenant, principal, menu item).
type CartItemModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_identity"`
	PrincipalID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_identity"`
	MenuItemID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_identity"`
	Quantity    int       `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (CartItemModel) TableName() string { return "cart_items" }

// PaymentModel maps to the "payments" table.
type PaymentModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID          uuid.UUID `gorm:"type:uuid;not null;index"`
	OrderID           uuid.UUID `gorm:"type:uuid;not null;index"`
	ProviderPaymentID string    `gorm:"not null;uniqueIndex"`
	Method            string    `gorm:"not null"`
	Amount            float64   `gorm:"type:numeric(12,2);not null"`
	Status            string    `gorm:"not null"`
	CreatedAt         time.Time
}

func (PaymentModel) TableName() string { return "payments" }

// OTPChallengeModel maps to the "otp_challenges" table.
type OTPChallengeModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Phone      string    `gorm:"not null;index"`
	CodeHash   string    `gorm:"not null"`
	Provider   string    `gorm:"not null"`
	Attempts   int       `gorm:"not null;default:0"`
	ExpiresAt  time.Time `gorm:"not null;index"`
	ConsumedAt *time.Time
	CreatedAt  time.Time `gorm:"index"`
}

func (OTPChallengeModel) TableName() string { return "otp_challenges" }

// allModels lists every table in FK-dependency order.
func allModels() []any {
	return []any{
		&TenantModel{},
		&PrincipalModel{},
		&RestaurantModel{},
		&CategoryModel{},
		&MenuItemModel{},
		&PromoCodeModel{},
		&BannerModel{},
		&HolidayModel{},
		&SlotOverrideModel{},
		&DeliveryAgentModel{},
		&OrderModel{},
		&OrderItemModel{},
		&CartItemModel{},
		&PaymentModel{},
		&OTPChallengeModel{},
	}
}
