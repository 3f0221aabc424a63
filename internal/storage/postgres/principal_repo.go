package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkaninda/soko/internal/domain"
)

// PrincipalRepository manages principal accounts.
type PrincipalRepository struct {
	db *gorm.DB
}

// NewPrincipalRepository creates a PrincipalRepository.
func NewPrincipalRepository(db *gorm.DB) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

// GetPrincipal returns an active principal by ID.
func (r *PrincipalRepository) GetPrincipal(ctx context.Context, id uuid.UUID) (*domain.Principal, error) {
	var m PrincipalModel
	if err := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return toPrincipalDomain(&m), nil
}

// GetByUsername returns a principal by username, active or not.
func (r *PrincipalRepository) GetByUsername(ctx context.Context, username string) (*domain.Principal, error) {
	var m PrincipalModel
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return toPrincipalDomain(&m), nil
}

// PasswordHash returns an active principal and its password hash.
func (r *PrincipalRepository) PasswordHash(ctx context.Context, username string) (*domain.Principal, string, error) {
	var m PrincipalModel
	if err := r.db.WithContext(ctx).Where("username = ? AND is_active = ?", username, true).First(&m).Error; err != nil {
		return nil, "", translate(err)
	}
	return toPrincipalDomain(&m), m.PasswordHash, nil
}

// GetByPhone returns the active principal holding phone.
func (r *PrincipalRepository) GetByPhone(ctx context.Context, phone string) (*domain.Principal, error) {
	var m PrincipalModel
	err := r.db.WithContext(ctx).
		Where("phone = ? AND is_active = ?", phone, true).
		Order("created_at ASC").
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return toPrincipalDomain(&m), nil
}

// ListPrincipals lists principals of a home tenant, or all when tenantID is nil.
func (r *PrincipalRepository) ListPrincipals(ctx context.Context, tenantID *uuid.UUID) ([]domain.Principal, error) {
	q := r.db.WithContext(ctx)
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}
	var rows []PrincipalModel
	if err := q.Order("username ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing principals: %w", err)
	}
	out := make([]domain.Principal, len(rows))
	for i := range rows {
		out[i] = *toPrincipalDomain(&rows[i])
	}
	return out, nil
}

// CreatePrincipal stores p; domain.ErrDuplicate when the username is taken.
func (r *PrincipalRepository) CreatePrincipal(ctx context.Context, p *domain.Principal, passwordHash string) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m := PrincipalModel{
		ID:            p.ID,
		Username:      p.Username,
		Phone:         p.Phone,
		PhoneVerified: p.PhoneVerified,
		Role:          string(p.Role),
		TenantID:      p.TenantID,
		PasswordHash:  passwordHash,
		IsActive:      true,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translate(err)
	}
	p.IsActive = true
	p.CreatedAt = m.CreatedAt
	return nil
}

// MarkPhoneVerified flags the principal's phone as verified.
func (r *PrincipalRepository) MarkPhoneVerified(ctx context.Context, principalID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&PrincipalModel{}).
		Where("id = ?", principalID).
		Update("phone_verified", true)
	if res.Error != nil {
		return fmt.Errorf("marking phone verified: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
