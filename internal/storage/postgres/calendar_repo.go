package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/scope"
)

// CalendarRepository manages holiday calendars and slot overrides.
type CalendarRepository struct {
	db *gorm.DB
}

// NewCalendarRepository creates a CalendarRepository.
func NewCalendarRepository(db *gorm.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// ListHolidays returns tenant and global holidays dated within [from, to].
// A tenant's own holiday shadows the global default on the same date.
func (r *CalendarRepository) ListHolidays(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]domain.HolidayCalendar, error) {
	q, err := scope.Apply(r.db.WithContext(ctx), scope.HolidayCalendars, &tenantID)
	if err != nil {
		return nil, err
	}
	var rows []HolidayModel
	err = q.Where("date BETWEEN ? AND ?", from, to).
		Order("date ASC").
		Order("tenant_id IS NULL").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing holidays: %w", err)
	}
	out := make([]domain.HolidayCalendar, 0, len(rows))
	for i := range rows {
		h := toHolidayDomain(&rows[i])
		if n := len(out); n > 0 && out[n-1].Date.Equal(h.Date) {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// CreateHoliday stores h; domain.ErrDuplicate when the owner already has
// a holiday on that date.
func (r *CalendarRepository) CreateHoliday(ctx context.Context, h *domain.HolidayCalendar) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	m := HolidayModel{ID: h.ID, TenantID: h.TenantID, Name: h.Name, Date: h.Date}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translate(err)
	}
	h.CreatedAt = m.CreatedAt
	return nil
}

// ListSlotOverrides returns the tenant's overrides dated within [from, to].
func (r *CalendarRepository) ListSlotOverrides(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]domain.SlotOverride, error) {
	q, err := scope.Apply(r.db.WithContext(ctx), scope.SlotOverrides, &tenantID)
	if err != nil {
		return nil, err
	}
	var rows []SlotOverrideModel
	if err := q.Where("date BETWEEN ? AND ?", from, to).Order("date ASC, slot ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing slot overrides: %w", err)
	}
	out := make([]domain.SlotOverride, len(rows))
	for i := range rows {
		out[i] = toSlotOverrideDomain(&rows[i])
	}
	return out, nil
}

// CreateSlotOverride stores o.
func (r *CalendarRepository) CreateSlotOverride(ctx context.Context, o *domain.SlotOverride) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	m := SlotOverrideModel{
		ID:       o.ID,
		TenantID: o.TenantID,
		Date:     o.Date,
		Slot:     o.Slot,
		Capacity: o.Capacity,
		Closed:   o.Closed,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translate(err)
	}
	o.CreatedAt = m.CreatedAt
	return nil
}
