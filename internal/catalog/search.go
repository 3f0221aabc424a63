package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/domain"
)

// MaxPageSize bounds a single search page.
const MaxPageSize = 100

// FoodTypeAll disables the food type filter.
const FoodTypeAll = "all"

// SearchRequest is the body of a paginated restaurant listing.
type SearchRequest struct {
	TenantID  string `json:"tenantId"`
	FoodType  string `json:"foodType"`
	PageSize  int    `json:"pageSize"`
	SortOrder string `json:"sortOrder"`
	Keyword   string `json:"keyword,omitempty"`
	Cursor    string `json:"cursor,omitempty"`
}

func (r SearchRequest) Validate() error {
	var c apierr.Check
	c.Require(r.FoodType == FoodTypeAll || validFoodType(r.FoodType), "foodType")
	c.Require(r.PageSize >= 1 && r.PageSize <= MaxPageSize, "pageSize")
	c.Require(r.SortOrder == "asc" || r.SortOrder == "desc", "sortOrder")
	return c.Err("missing or invalid search fields")
}

// PayloadTenant exposes the tenantId field to the tenant resolver.
func (r SearchRequest) PayloadTenant() string { return r.TenantID }

// RestaurantQuery is a validated search handed to the store.
// The store returns at most Limit rows.
type RestaurantQuery struct {
	FoodType   domain.FoodType // empty = any
	Keyword    string
	Cursor     string
	Descending bool
	Limit      int
}

// Page is one page of search results.
type Page struct {
	Items      []domain.Restaurant
	HasMore    bool
	NextCursor string
}

// Search lists restaurants visible to tenantID ordered by name. One extra
// row is fetched to decide HasMore; NextCursor is the last returned name.
func (s *Service) Search(ctx context.Context, tenantID uuid.UUID, req SearchRequest) (*Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	q := RestaurantQuery{
		Keyword:    strings.TrimSpace(req.Keyword),
		Cursor:     req.Cursor,
		Descending: req.SortOrder == "desc",
		Limit:      req.PageSize + 1,
	}
	if req.FoodType != FoodTypeAll {
		q.FoodType = domain.FoodType(req.FoodType)
	}

	rows, err := s.store.SearchRestaurants(ctx, tenantID, q)
	if err != nil {
		return nil, fmt.Errorf("searching restaurants: %w", err)
	}

	page := &Page{Items: rows}
	if len(rows) > req.PageSize {
		page.Items = rows[:req.PageSize]
		page.HasMore = true
		page.NextCursor = page.Items[len(page.Items)-1].Name
	}
	if page.Items == nil {
		page.Items = []domain.Restaurant{}
	}
	return page, nil
}
