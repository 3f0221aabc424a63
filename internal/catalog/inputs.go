package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/domain"
)

func validUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func optionalUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}

// RestaurantInput creates or replaces a restaurant.
type RestaurantInput struct {
	Name     string  `json:"name"`
	FoodType string  `json:"foodType"`
	Vertical string  `json:"vertical"`
	Address  string  `json:"address"`
	Rating   float64 `json:"rating"`
	IsActive *bool   `json:"isActive"`
	Global   bool    `json:"global"`
}

func (in RestaurantInput) Validate() error {
	var c apierr.Check
	c.Require(strings.TrimSpace(in.Name) != "", "name")
	c.Require(validFoodType(in.FoodType), "foodType")
	c.Require(in.Rating >= 0 && in.Rating <= 5, "rating")
	return c.Err("missing or invalid restaurant fields")
}

func (in RestaurantInput) Apply(r *domain.Restaurant) {
	r.Name = strings.TrimSpace(in.Name)
	r.FoodType = domain.FoodType(in.FoodType)
	r.Vertical = in.Vertical
	if r.Vertical == "" {
		r.Vertical = "food"
	}
	r.Address = in.Address
	r.Rating = in.Rating
	r.IsActive = boolOr(in.IsActive, true)
}

func (in RestaurantInput) IsGlobal() bool { return in.Global }

// CategoryInput creates or replaces a category.
type CategoryInput struct {
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
	IsActive  *bool  `json:"isActive"`
	Global    bool   `json:"global"`
}

func (in CategoryInput) Validate() error {
	var c apierr.Check
	c.Require(strings.TrimSpace(in.Name) != "", "name")
	c.Require(in.SortOrder >= 0, "sortOrder")
	return c.Err("missing or invalid category fields")
}

func (in CategoryInput) Apply(v *domain.Category) {
	v.Name = strings.TrimSpace(in.Name)
	v.SortOrder = in.SortOrder
	v.IsActive = boolOr(in.IsActive, true)
}

func (in CategoryInput) IsGlobal() bool { return in.Global }

// MenuItemInput creates or replaces a menu item.
type MenuItemInput struct {
	RestaurantID string  `json:"restaurantId"`
	CategoryID   string  `json:"categoryId"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	IsAvailable  *bool   `json:"isAvailable"`
	Global       bool    `json:"global"`
}

func (in MenuItemInput) Validate() error {
	var c apierr.Check
	c.Require(validUUID(in.RestaurantID), "restaurantId")
	c.Require(in.CategoryID == "" || validUUID(in.CategoryID), "categoryId")
	c.Require(strings.TrimSpace(in.Name) != "", "name")
	c.Require(in.Price > 0, "price")
	return c.Err("missing or invalid menu item fields")
}

func (in MenuItemInput) Apply(v *domain.MenuItem) {
	v.RestaurantID, _ = uuid.Parse(in.RestaurantID)
	v.CategoryID = optionalUUID(in.CategoryID)
	v.Name = strings.TrimSpace(in.Name)
	v.Description = in.Description
	v.Price = in.Price
	v.IsAvailable = boolOr(in.IsAvailable, true)
}

func (in MenuItemInput) IsGlobal() bool { return in.Global }

// PromoCodeInput creates or replaces a promo code.
type PromoCodeInput struct {
	Code            string     `json:"code"`
	DiscountPercent float64    `json:"discountPercent"`
	MaxDiscount     float64    `json:"maxDiscount"`
	ValidUntil      *time.Time `json:"validUntil"`
	IsActive        *bool      `json:"isActive"`
	Global          bool       `json:"global"`
}

func (in PromoCodeInput) Validate() error {
	var c apierr.Check
	c.Require(strings.TrimSpace(in.Code) != "", "code")
	c.Require(in.DiscountPercent > 0 && in.DiscountPercent <= 100, "discountPercent")
	c.Require(in.MaxDiscount >= 0, "maxDiscount")
	return c.Err("missing or invalid promo code fields")
}

func (in PromoCodeInput) Apply(v *domain.PromoCode) {
	v.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	v.DiscountPercent = in.DiscountPercent
	v.MaxDiscount = in.MaxDiscount
	v.ValidUntil = in.ValidUntil
	v.IsActive = boolOr(in.IsActive, true)
}

func (in PromoCodeInput) IsGlobal() bool { return in.Global }

// BannerInput creates or replaces a banner.
type BannerInput struct {
	Title     string `json:"title"`
	ImageURL  string `json:"imageUrl"`
	Link      string `json:"link"`
	SortOrder int    `json:"sortOrder"`
	IsActive  *bool  `json:"isActive"`
	Global    bool   `json:"global"`
}

func (in BannerInput) Validate() error {
	var c apierr.Check
	c.Require(strings.TrimSpace(in.Title) != "", "title")
	c.Require(strings.HasPrefix(in.ImageURL, "https://") || strings.HasPrefix(in.ImageURL, "http://"), "imageUrl")
	return c.Err("missing or invalid banner fields")
}

func (in BannerInput) Apply(v *domain.Banner) {
	v.Title = strings.TrimSpace(in.Title)
	v.ImageURL = in.ImageURL
	v.Link = in.Link
	v.SortOrder = in.SortOrder
	v.IsActive = boolOr(in.IsActive, true)
}

func (in BannerInput) IsGlobal() bool { return in.Global }

func validFoodType(s string) bool {
	switch domain.FoodType(s) {
	case domain.FoodTypeVeg, domain.FoodTypeNonVeg, domain.FoodTypeMixed:
		return true
	}
	return false
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
