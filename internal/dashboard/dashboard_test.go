package dashboard_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/dashboard"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/storage/sqlite"
)

type failingStore struct{}

func (failingStore) Summary(context.Context, uuid.UUID) (*dashboard.Summary, error) {
	return nil, errors.New("connection refused")
}

func TestSummary_WrapsStoreError(t *testing.T) {
	svc := dashboard.NewService(failingStore{}, "INR")
	if _, err := svc.Summary(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSummary_CountsVisibleRows(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.Open(sqlite.Config{Path: filepath.Join(t.TempDir(), "soko.db")}, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	a, err := store.EnsureTenant(ctx, "tenant-a", "Tenant A")
	if err != nil {
		t.Fatal(err)
	}
	b, err := store.EnsureTenant(ctx, "tenant-b", "Tenant B")
	if err != nil {
		t.Fatal(err)
	}

	restaurants := store.Catalog().Restaurants()
	for i, owner := range []*uuid.UUID{&a.ID, nil, &b.ID} {
		r := domain.Restaurant{Name: fmt.Sprintf("Kitchen %d", i), FoodType: domain.FoodTypeVeg, Vertical: "food", IsActive: true}
		if err := restaurants.Create(ctx, owner, &r); err != nil {
			t.Fatal(err)
		}
	}

	sum, err := dashboard.NewService(store.Dashboard(), "INR").Summary(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Restaurants != 2 {
		t.Errorf("restaurants = %d, want 2 (own + global)", sum.Restaurants)
	}
	if sum.Currency != "INR" || sum.DeliveredRevenue != 0 || len(sum.OrdersByStatus) != 0 {
		t.Errorf("summary = %+v", sum)
	}
}
