package httpapi

import (
	"context"
	"net/http"

	"github.com/jkaninda/okapi"

	"github.com/jkaninda/soko/internal/calendar"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/envelope"
	"github.com/jkaninda/soko/internal/handler"
	"github.com/jkaninda/soko/internal/security"
	"github.com/jkaninda/soko/internal/tenancy"
)

func bindRange(in *handler.Inbound, q *calendar.RangeQuery) {
	q.From = in.Query.Get("from")
	q.To = in.Query.Get("to")
}

func (g *Gateway) mountCalendar() {
	g.v1.Get("/holidays", handle(g, handler.Endpoint[calendar.RangeQuery]{
		Name:       "holidays.list",
		Tenant:     tenancy.Required,
		Capability: security.CalendarRead,
		Bind:       bindRange,
		Handle: func(ctx context.Context, call *handler.Call, q calendar.RangeQuery) (envelope.Result, error) {
			days, err := g.svc.Calendar.ListHolidays(ctx, call.Tenant(), q)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(days), nil
		},
	}),
		okapi.DocSummary("List holidays of the tenant and global holidays"),
		okapi.DocTags("Calendar"),
		okapi.DocResponse([]domain.HolidayCalendar{}),
	)
	g.v1.Post("/holidays", handle(g, handler.Endpoint[calendar.HolidayInput]{
		Name:       "holidays.create",
		Mutating:   true,
		Tenant:     tenancy.Required,
		Capability: security.CalendarWrite,
		Handle: func(ctx context.Context, call *handler.Call, in calendar.HolidayInput) (envelope.Result, error) {
			h, err := g.svc.Calendar.CreateHoliday(ctx, call.Tenant(), call.Platform(), in)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.Created(h), nil
		},
	}),
		okapi.DocSummary("Create a holiday; global holidays need a platform admin"),
		okapi.DocTags("Calendar"),
		okapi.DocRequestBody(calendar.HolidayInput{}),
		okapi.DocResponse(http.StatusCreated, domain.HolidayCalendar{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
	)

	g.v1.Get("/slot-overrides", handle(g, handler.Endpoint[calendar.RangeQuery]{
		Name:       "slot-overrides.list",
		Tenant:     tenancy.Required,
		Capability: security.CalendarRead,
		Bind:       bindRange,
		Handle: func(ctx context.Context, call *handler.Call, q calendar.RangeQuery) (envelope.Result, error) {
			slots, err := g.svc.Calendar.ListSlotOverrides(ctx, call.Tenant(), q)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(slots), nil
		},
	}),
		okapi.DocSummary("List slot overrides of the tenant"),
		okapi.DocTags("Calendar"),
		okapi.DocResponse([]domain.SlotOverride{}),
	)
	g.v1.Post("/slot-overrides", handle(g, handler.Endpoint[calendar.SlotOverrideInput]{
		Name:       "slot-overrides.create",
		Mutating:   true,
		Tenant:     tenancy.Required,
		Capability: security.CalendarWrite,
		Handle: func(ctx context.Context, call *handler.Call, in calendar.SlotOverrideInput) (envelope.Result, error) {
			s, err := g.svc.Calendar.CreateSlotOverride(ctx, call.Tenant(), in)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.Created(s), nil
		},
	}),
		okapi.DocSummary("Override capacity of one delivery slot"),
		okapi.DocTags("Calendar"),
		okapi.DocRequestBody(calendar.SlotOverrideInput{}),
		okapi.DocResponse(http.StatusCreated, domain.SlotOverride{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
	)
}
