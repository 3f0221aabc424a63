package calendar_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/calendar"
	"github.com/jkaninda/soko/internal/storage/sqlite"
)

func newService(t *testing.T) (*calendar.Service, uuid.UUID, uuid.UUID) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.Open(sqlite.Config{Path: filepath.Join(t.TempDir(), "soko.db")}, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	a, _ := store.EnsureTenant(ctx, "a", "A")
	b, _ := store.EnsureTenant(ctx, "b", "B")
	return calendar.NewService(store.Calendar(), logger), a.ID, b.ID
}

func TestHolidays_InclusiveScope(t *testing.T) {
	svc, tenantA, tenantB := newService(t)
	ctx := context.Background()

	if _, err := svc.CreateHoliday(ctx, tenantA, true, calendar.HolidayInput{Name: "New Year", Date: "2026-01-01", Global: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateHoliday(ctx, tenantA, false, calendar.HolidayInput{Name: "Founders Day", Date: "2026-03-10"}); err != nil {
		t.Fatal(err)
	}

	q := calendar.RangeQuery{From: "2026-01-01", To: "2026-12-31"}
	tests := []struct {
		name   string
		tenant uuid.UUID
		want   int
	}{
		{"owner sees own and global", tenantA, 2},
		{"other tenant sees global", tenantB, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ListHolidays(ctx, tt.tenant, q)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d holidays, want %d", len(got), tt.want)
			}
		})
	}
}

func TestHolidays_Rules(t *testing.T) {
	svc, tenantA, _ := newService(t)
	ctx := context.Background()
	in := calendar.HolidayInput{Name: "Eid", Date: "2026-03-20"}
	if _, err := svc.CreateHoliday(ctx, tenantA, false, in); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		in       calendar.HolidayInput
		platform bool
		want     apierr.Kind
	}{
		{"duplicate date", in, false, apierr.KindInvalidInput},
		{"bad date", calendar.HolidayInput{Name: "X", Date: "20-03-2026"}, false, apierr.KindInvalidInput},
		{"global needs platform", calendar.HolidayInput{Name: "X", Date: "2026-05-01", Global: true}, false, apierr.KindForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateHoliday(ctx, tenantA, tt.platform, tt.in)
			if !apierr.Is(err, tt.want) {
				t.Errorf("err = %v, want %s", err, tt.want)
			}
		})
	}
	global := calendar.HolidayInput{Name: "Labour Day", Date: "2026-05-01", Global: true}
	if _, err := svc.CreateHoliday(ctx, tenantA, true, global); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateHoliday(ctx, tenantA, true, global); !apierr.Is(err, apierr.KindInvalidInput) {
		t.Errorf("duplicate global: err = %v, want InvalidInput", err)
	}

	ranges := []struct {
		name string
		q    calendar.RangeQuery
		ok   bool
	}{
		{"unparseable", calendar.RangeQuery{From: "tomorrow"}, false},
		{"inverted", calendar.RangeQuery{From: "2026-06-01", To: "2026-05-01"}, false},
		{"single day", calendar.RangeQuery{From: "2026-05-01", To: "2026-05-01"}, true},
	}
	for _, tt := range ranges {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ListHolidays(ctx, tenantA, tt.q)
			if tt.ok && err != nil {
				t.Errorf("err = %v, want nil", err)
			}
			if !tt.ok && !apierr.Is(err, apierr.KindInvalidInput) {
				t.Errorf("err = %v, want InvalidInput", err)
			}
			_, err = svc.ListSlotOverrides(ctx, tenantA, tt.q)
			if tt.ok != (err == nil) {
				t.Errorf("slot overrides: err = %v", err)
			}
		})
	}
}

func TestSlotOverrides_Exclusive(t *testing.T) {
	svc, tenantA, tenantB := newService(t)
	ctx := context.Background()
	in := calendar.SlotOverrideInput{Date: "2026-06-01", Slot: "lunch", Capacity: 10}
	if _, err := svc.CreateSlotOverride(ctx, tenantA, in); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateSlotOverride(ctx, tenantA, in); !apierr.Is(err, apierr.KindInvalidInput) {
		t.Errorf("duplicate: err = %v, want InvalidInput", err)
	}
	if _, err := svc.CreateSlotOverride(ctx, tenantB, in); err != nil {
		t.Errorf("same slot for another tenant: %v", err)
	}

	q := calendar.RangeQuery{From: "2026-01-01", To: "2026-12-31"}
	got, err := svc.ListSlotOverrides(ctx, tenantB, q)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].TenantID != tenantB {
		t.Errorf("tenant B overrides = %+v", got)
	}
}
