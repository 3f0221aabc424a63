package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkaninda/soko/internal/domain"
)

// TenantRepository manages tenants.
type TenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository creates a TenantRepository.
func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// GetTenant returns an active tenant by ID.
func (r *TenantRepository) GetTenant(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	var t TenantModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return toTenantDomain(&t), nil
}

// ListActive returns every active tenant ordered by name.
func (r *TenantRepository) ListActive(ctx context.Context) ([]domain.Tenant, error) {
	var rows []TenantModel
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	out := make([]domain.Tenant, len(rows))
	for i := range rows {
		out[i] = *toTenantDomain(&rows[i])
	}
	return out, nil
}

// EnsureTenant creates the tenant with slug if it does not exist and
// returns it.
func (r *TenantRepository) EnsureTenant(ctx context.Context, slug, name string) (*domain.Tenant, error) {
	var t TenantModel
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&t).Error
	if err == nil {
		return toTenantDomain(&t), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("looking up tenant %q: %w", slug, err)
	}

	t = TenantModel{
		ID:       uuid.New(),
		Name:     name,
		Slug:     slug,
		IsActive: true,
	}
	if err := r.db.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, fmt.Errorf("creating tenant %q: %w", slug, translate(err))
	}
	return toTenantDomain(&t), nil
}
