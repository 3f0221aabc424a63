// Package calendar manages holiday calendars and booking slot overrides.
//
// Holidays are inclusive: global rows are defaults every tenant observes.
// Slot overrides are exclusive: an override only ever applies to the
// tenant that made it.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/scope"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Store provides calendar persistence.
type Store interface {
	ListHolidays(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]domain.HolidayCalendar, error)
	CreateHoliday(ctx context.Context, h *domain.HolidayCalendar) error
	ListSlotOverrides(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]domain.SlotOverride, error)
	CreateSlotOverride(ctx context.Context, o *domain.SlotOverride) error
}

// Service manages calendars.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a calendar service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// RangeQuery bounds a listing. Empty bounds default to the current year.
type RangeQuery struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

func (q RangeQuery) Validate() error {
	var c apierr.Check
	from, fromErr := parseDate(q.From, time.Time{})
	c.Require(fromErr == nil, "from")
	to, toErr := parseDate(q.To, time.Time{})
	c.Require(toErr == nil, "to")
	if fromErr == nil && toErr == nil && q.From != "" && q.To != "" {
		c.Require(!from.After(to), "from")
	}
	return c.Err("invalid date range")
}

func (q RangeQuery) bounds(now time.Time) (time.Time, time.Time) {
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	from, _ := parseDate(q.From, yearStart)
	to, _ := parseDate(q.To, yearStart.AddDate(1, 0, -1))
	return from, to
}

// HolidayInput creates a holiday.
type HolidayInput struct {
	Name   string `json:"name"`
	Date   string `json:"date"`
	Global bool   `json:"global"`
}

func (in HolidayInput) Validate() error {
	var c apierr.Check
	c.Require(strings.TrimSpace(in.Name) != "", "name")
	_, err := time.Parse(DateLayout, in.Date)
	c.Require(err == nil, "date")
	return c.Err("missing or invalid holiday fields")
}

// SlotOverrideInput creates a slot override.
type SlotOverrideInput struct {
	Date     string `json:"date"`
	Slot     string `json:"slot"`
	Capacity int    `json:"capacity"`
	Closed   bool   `json:"closed"`
}

func (in SlotOverrideInput) Validate() error {
	var c apierr.Check
	_, err := time.Parse(DateLayout, in.Date)
	c.Require(err == nil, "date")
	c.Require(strings.TrimSpace(in.Slot) != "", "slot")
	c.Require(in.Capacity >= 0, "capacity")
	return c.Err("missing or invalid slot override fields")
}

// ListHolidays returns the tenant's holidays plus global defaults.
func (s *Service) ListHolidays(ctx context.Context, tenantID uuid.UUID, q RangeQuery) ([]domain.HolidayCalendar, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	from, to := q.bounds(time.Now().UTC())
	rows, err := s.store.ListHolidays(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing holidays: %w", err)
	}
	return rows, nil
}

// CreateHoliday adds a holiday for the tenant, or a global default when
// requested by a platform operator.
func (s *Service) CreateHoliday(ctx context.Context, tenantID uuid.UUID, platform bool, in HolidayInput) (*domain.HolidayCalendar, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.Global && !platform {
		return nil, apierr.Forbidden()
	}
	owner, err := scope.Owner(scope.HolidayCalendars, &tenantID, in.Global)
	if err != nil {
		return nil, apierr.InvalidInput(err.Error(), "global")
	}
	date, _ := time.Parse(DateLayout, in.Date)
	h := &domain.HolidayCalendar{
		TenantID: owner,
		Name:     strings.TrimSpace(in.Name),
		Date:     date,
	}
	if err := s.store.CreateHoliday(ctx, h); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, apierr.InvalidInput("holiday already exists for this date", "date")
		}
		return nil, fmt.Errorf("creating holiday: %w", err)
	}
	s.logger.InfoContext(ctx, "holiday created",
		slog.String("date", in.Date),
		slog.Bool("global", in.Global),
	)
	return h, nil
}

// ListSlotOverrides returns only the tenant's own overrides.
func (s *Service) ListSlotOverrides(ctx context.Context, tenantID uuid.UUID, q RangeQuery) ([]domain.SlotOverride, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	from, to := q.bounds(time.Now().UTC())
	rows, err := s.store.ListSlotOverrides(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing slot overrides: %w", err)
	}
	return rows, nil
}

// CreateSlotOverride adds an override for the tenant. Overrides are never
// global.
func (s *Service) CreateSlotOverride(ctx context.Context, tenantID uuid.UUID, in SlotOverrideInput) (*domain.SlotOverride, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	date, _ := time.Parse(DateLayout, in.Date)
	o := &domain.SlotOverride{
		TenantID: tenantID,
		Date:     date,
		Slot:     strings.TrimSpace(in.Slot),
		Capacity: in.Capacity,
		Closed:   in.Closed,
	}
	if err := s.store.CreateSlotOverride(ctx, o); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, apierr.InvalidInput("an override already exists for this slot", "date", "slot")
		}
		return nil, fmt.Errorf("creating slot override: %w", err)
	}
	return o, nil
}

func parseDate(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	return time.Parse(DateLayout, s)
}
