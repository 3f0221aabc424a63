package httpapi

import (
	"context"
	"net/http"

	"github.com/jkaninda/okapi"

	"github.com/jkaninda/soko/internal/catalog"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/envelope"
	"github.com/jkaninda/soko/internal/handler"
	"github.com/jkaninda/soko/internal/security"
	"github.com/jkaninda/soko/internal/tenancy"
)

func (g *Gateway) mountCatalog() {
	g.v1.Post("/restaurants/search", handle(g, handler.Endpoint[catalog.SearchRequest]{
		Name:       "restaurants.search",
		Tenant:     tenancy.Required,
		Capability: security.CatalogRead,
		Handle: func(ctx context.Context, call *handler.Call, req catalog.SearchRequest) (envelope.Result, error) {
			page, err := g.svc.Catalog.Search(ctx, call.Tenant(), req)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.Page(page.Items, envelope.Pagination{
				HasMore:    page.HasMore,
				NextCursor: page.NextCursor,
			}), nil
		},
	}),
		okapi.DocSummary("Search restaurants with cursor pagination by name"),
		okapi.DocTags("Catalog"),
		okapi.DocRequestBody(catalog.SearchRequest{}),
		okapi.DocResponse([]domain.Restaurant{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
	)

	mountResource(g, "/restaurants", "restaurant", "Restaurants", g.svc.Catalog.Restaurants)
	mountResource(g, "/categories", "category", "Categories", g.svc.Catalog.Categories)
	mountResource(g, "/menu-items", "menu item", "Menu items", g.svc.Catalog.MenuItems)
	mountResource(g, "/promo-codes", "promo code", "Promo codes", g.svc.Catalog.PromoCodes)
	mountResource(g, "/banners", "banner", "Banners", g.svc.Catalog.Banners)
}

// mountResource registers scoped CRUD routes for one catalog entity.
func mountResource[T catalog.Owned, I catalog.Input[T]](g *Gateway, path, noun, tag string, res *catalog.Resource[T, I]) {
	name := path[1:]
	actor := func(call *handler.Call) catalog.Actor {
		return catalog.Actor{TenantID: call.Tenant(), Platform: call.Platform()}
	}
	var zeroT T
	var zeroI I

	g.v1.Get(path, handle(g, handler.Endpoint[struct{}]{
		Name:       name + ".list",
		Tenant:     tenancy.Required,
		Capability: security.CatalogRead,
		Handle: func(ctx context.Context, call *handler.Call, _ struct{}) (envelope.Result, error) {
			items, err := res.List(ctx, call.Tenant())
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(items), nil
		},
	}),
		okapi.DocSummary("List "+noun+" rows visible to the tenant, including global ones"),
		okapi.DocTags(tag),
		okapi.DocResponse([]T{}),
	)
	g.v1.Get(path+"/{id}", handle(g, handler.Endpoint[struct{}]{
		Name:       name + ".get",
		Tenant:     tenancy.Required,
		Capability: security.CatalogRead,
		IDParam:    "id",
		Handle: func(ctx context.Context, call *handler.Call, _ struct{}) (envelope.Result, error) {
			v, err := res.Get(ctx, call.Tenant(), call.ID)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(v), nil
		},
	}),
		okapi.DocSummary("Get a "+noun),
		okapi.DocTags(tag),
		okapi.DocPathParam("id", "string", "ID (UUID)"),
		okapi.DocResponse(zeroT),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.v1.Post(path, handle(g, handler.Endpoint[I]{
		Name:       name + ".create",
		Mutating:   true,
		Tenant:     tenancy.Required,
		Capability: security.CatalogWrite,
		Handle: func(ctx context.Context, call *handler.Call, in I) (envelope.Result, error) {
			v, err := res.Create(ctx, actor(call), in)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.Created(v), nil
		},
	}),
		okapi.DocSummary("Create a "+noun),
		okapi.DocTags(tag),
		okapi.DocRequestBody(zeroI),
		okapi.DocResponse(http.StatusCreated, zeroT),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusForbidden, ErrorBody{}),
	)
	g.v1.Put(path+"/{id}", handle(g, handler.Endpoint[I]{
		Name:       name + ".update",
		Mutating:   true,
		Tenant:     tenancy.Required,
		Capability: security.CatalogWrite,
		IDParam:    "id",
		Handle: func(ctx context.Context, call *handler.Call, in I) (envelope.Result, error) {
			v, err := res.Update(ctx, actor(call), call.ID, in)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(v), nil
		},
	}),
		okapi.DocSummary("Update a "+noun+" owned by the tenant"),
		okapi.DocTags(tag),
		okapi.DocPathParam("id", "string", "ID (UUID)"),
		okapi.DocRequestBody(zeroI),
		okapi.DocResponse(zeroT),
		okapi.DocResponse(http.StatusForbidden, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.v1.Delete(path+"/{id}", handle(g, handler.Endpoint[struct{}]{
		Name:       name + ".delete",
		Mutating:   true,
		Tenant:     tenancy.Required,
		Capability: security.CatalogWrite,
		IDParam:    "id",
		Handle: func(ctx context.Context, call *handler.Call, _ struct{}) (envelope.Result, error) {
			if err := res.Delete(ctx, actor(call), call.ID); err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(map[string]string{"id": call.ID.String()}), nil
		},
	}),
		okapi.DocSummary("Delete a "+noun+" owned by the tenant"),
		okapi.DocTags(tag),
		okapi.DocPathParam("id", "string", "ID (UUID)"),
		okapi.DocResponse(map[string]string{}),
		okapi.DocResponse(http.StatusForbidden, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
}
