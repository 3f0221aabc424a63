package postgres

import (
	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/domain"
)

// --- Tenant / Principal ---

func toTenantDomain(m *TenantModel) *domain.Tenant {
	return &domain.Tenant{
		ID:        m.ID,
		Name:      m.Name,
		Slug:      m.Slug,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
	}
}

func toPrincipalDomain(m *PrincipalModel) *domain.Principal {
	return &domain.Principal{
		ID:            m.ID,
		Username:      m.Username,
		Phone:         m.Phone,
		PhoneVerified: m.PhoneVerified,
		Role:          domain.Role(m.Role),
		TenantID:      m.TenantID,
		IsActive:      m.IsActive,
		CreatedAt:     m.CreatedAt,
	}
}

// --- Catalog ---

func toRestaurantDomain(m *RestaurantModel) domain.Restaurant {
	return domain.Restaurant{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Name:      m.Name,
		FoodType:  domain.FoodType(m.FoodType),
		Vertical:  m.Vertical,
		Address:   m.Address,
		Rating:    m.Rating,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toRestaurantModel(v *domain.Restaurant, owner *uuid.UUID) *RestaurantModel {
	return &RestaurantModel{
		ID:        v.ID,
		TenantID:  owner,
		Name:      v.Name,
		FoodType:  string(v.FoodType),
		Vertical:  v.Vertical,
		Address:   v.Address,
		Rating:    v.Rating,
		IsActive:  v.IsActive,
		CreatedAt: v.CreatedAt,
	}
}

func toCategoryDomain(m *CategoryModel) domain.Category {
	return domain.Category{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Name:      m.Name,
		SortOrder: m.SortOrder,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toCategoryModel(v *domain.Category, owner *uuid.UUID) *CategoryModel {
	return &CategoryModel{
		ID:        v.ID,
		TenantID:  owner,
		Name:      v.Name,
		SortOrder: v.SortOrder,
		IsActive:  v.IsActive,
		CreatedAt: v.CreatedAt,
	}
}

func toMenuItemDomain(m *MenuItemModel) domain.MenuItem {
	return domain.MenuItem{
		ID:           m.ID,
		TenantID:     m.TenantID,
		RestaurantID: m.RestaurantID,
		CategoryID:   m.CategoryID,
		Name:         m.Name,
		Description:  m.Description,
		Price:        m.Price,
		IsAvailable:  m.IsAvailable,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toMenuItemModel(v *domain.MenuItem, owner *uuid.UUID) *MenuItemModel {
	return &MenuItemModel{
		ID:           v.ID,
		TenantID:     owner,
		RestaurantID: v.RestaurantID,
		CategoryID:   v.CategoryID,
		Name:         v.Name,
		Description:  v.Description,
		Price:        v.Price,
		IsAvailable:  v.IsAvailable,
		CreatedAt:    v.CreatedAt,
	}
}

func toPromoCodeDomain(m *PromoCodeModel) domain.PromoCode {
	return domain.PromoCode{
		ID:              m.ID,
		TenantID:        m.TenantID,
		Code:            m.Code,
		DiscountPercent: m.DiscountPercent,
		MaxDiscount:     m.MaxDiscount,
		ValidUntil:      m.ValidUntil,
		IsActive:        m.IsActive,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toPromoCodeModel(v *domain.PromoCode, owner *uuid.UUID) *PromoCodeModel {
	return &PromoCodeModel{
		ID:              v.ID,
		TenantID:        owner,
		Code:            v.Code,
		DiscountPercent: v.DiscountPercent,
		MaxDiscount:     v.MaxDiscount,
		ValidUntil:      v.ValidUntil,
		IsActive:        v.IsActive,
		CreatedAt:       v.CreatedAt,
	}
}

func toBannerDomain(m *BannerModel) domain.Banner {
	return domain.Banner{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Title:     m.Title,
		ImageURL:  m.ImageURL,
		Link:      m.Link,
		SortOrder: m.SortOrder,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toBannerModel(v *domain.Banner, owner *uuid.UUID) *BannerModel {
	return &BannerModel{
		ID:        v.ID,
		TenantID:  owner,
		Title:     v.Title,
		ImageURL:  v.ImageURL,
		Link:      v.Link,
		SortOrder: v.SortOrder,
		IsActive:  v.IsActive,
		CreatedAt: v.CreatedAt,
	}
}

// --- Calendar ---

func toHolidayDomain(m *HolidayModel) domain.HolidayCalendar {
	return domain.HolidayCalendar{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Name:      m.Name,
		Date:      m.Date,
		CreatedAt: m.CreatedAt,
	}
}

func toSlotOverrideDomain(m *SlotOverrideModel) domain.SlotOverride {
	return domain.SlotOverride{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Date:      m.Date,
		Slot:      m.Slot,
		Capacity:  m.Capacity,
		Closed:    m.Closed,
		CreatedAt: m.CreatedAt,
	}
}

// --- Fleet ---

func toAgentDomain(m *DeliveryAgentModel) *domain.DeliveryAgent {
	return &domain.DeliveryAgent{
		ID:          m.ID,
		TenantID:    m.TenantID,
		PrincipalID: m.PrincipalID,
		Name:        m.Name,
		Phone:       m.Phone,
		VehicleType: m.VehicleType,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toAgentModel(v *domain.DeliveryAgent) *DeliveryAgentModel {
	return &DeliveryAgentModel{
		ID:          v.ID,
		TenantID:    v.TenantID,
		PrincipalID: v.PrincipalID,
		Name:        v.Name,
		Phone:       v.Phone,
		VehicleType: v.VehicleType,
		IsActive:    v.IsActive,
		CreatedAt:   v.CreatedAt,
	}
}

// --- Orders ---

func toOrderDomain(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:              m.ID,
		TenantID:        m.TenantID,
		CustomerID:      m.CustomerID,
		RestaurantID:    m.RestaurantID,
		DeliveryAgentID: m.DeliveryAgentID,
		Status:          domain.OrderStatus(m.Status),
		DeliveryStatus:  domain.DeliveryStatus(m.DeliveryStatus),
		Subtotal:        m.Subtotal,
		DeliveryFee:     m.DeliveryFee,
		Discount:        m.Discount,
		TotalAmount:     m.TotalAmount,
		Currency:        m.Currency,
		PaymentOrderID:  m.PaymentOrderID,
		DeliveredAt:     m.DeliveredAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	for i := range m.Items {
		it := &m.Items[i]
		o.Items = append(o.Items, domain.OrderItem{
			ID:         it.ID,
			OrderID:    it.OrderID,
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
		})
	}
	return o
}

func toOrderModel(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:              o.ID,
		TenantID:        o.TenantID,
		CustomerID:      o.CustomerID,
		RestaurantID:    o.RestaurantID,
		DeliveryAgentID: o.DeliveryAgentID,
		Status:          string(o.Status),
		DeliveryStatus:  string(o.DeliveryStatus),
		Subtotal:        o.Subtotal,
		DeliveryFee:     o.DeliveryFee,
		Discount:        o.Discount,
		TotalAmount:     o.TotalAmount,
		Currency:        o.Currency,
		PaymentOrderID:  o.PaymentOrderID,
		DeliveredAt:     o.DeliveredAt,
	}
	for _, it := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			ID:         it.ID,
			OrderID:    o.ID,
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
		})
	}
	return m
}

func toCartItemDomain(m *CartItemModel) *domain.CartItem {
	return &domain.CartItem{
		ID:          m.ID,
		TenantID:    m.TenantID,
		PrincipalID: m.PrincipalID,
		MenuItemID:  m.MenuItemID,
		Quantity:    m.Quantity,
		UpdatedAt:   m.UpdatedAt,
	}
}

// --- OTP ---

func toChallengeDomain(m *OTPChallengeModel) *domain.OTPChallenge {
	return &domain.OTPChallenge{
		ID:         m.ID,
		Phone:      m.Phone,
		CodeHash:   m.CodeHash,
		Provider:   m.Provider,
		Attempts:   m.Attempts,
		ExpiresAt:  m.ExpiresAt,
		ConsumedAt: m.ConsumedAt,
		CreatedAt:  m.CreatedAt,
	}
}
