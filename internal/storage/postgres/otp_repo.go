package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkaninda/soko/internal/domain"
)

// OTPRepository stores one-time password challenges.
type OTPRepository struct {
	*PrincipalRepository
	db *gorm.DB
}

// NewOTPRepository creates an OTPRepository.
func NewOTPRepository(db *gorm.DB) *OTPRepository {
	return &OTPRepository{PrincipalRepository: NewPrincipalRepository(db), db: db}
}

func (r *OTPRepository) CreateChallenge(ctx context.Context, c *domain.OTPChallenge) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m := OTPChallengeModel{
		ID:        c.ID,
		Phone:     c.Phone,
		CodeHash:  c.CodeHash,
		Provider:  c.Provider,
		Attempts:  c.Attempts,
		ExpiresAt: c.ExpiresAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("storing otp challenge: %w", err)
	}
	c.CreatedAt = m.CreatedAt
	return nil
}

// LatestChallenge returns the most recently issued challenge for phone.
func (r *OTPRepository) LatestChallenge(ctx context.Context, phone string) (*domain.OTPChallenge, error) {
	var m OTPChallengeModel
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).Order("created_at DESC").First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return toChallengeDomain(&m), nil
}

// ReserveAttempt counts one verification attempt against the challenge,
// unless limit attempts were already made. domain.ErrStale when none are left.
func (r *OTPRepository) ReserveAttempt(ctx context.Context, id uuid.UUID, limit int) error {
	res := r.db.WithContext(ctx).
		Model(&OTPChallengeModel{}).
		Where("id = ? AND attempts < ?", id, limit).
		Update("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return fmt.Errorf("counting otp attempt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrStale
	}
	return nil
}

// ConsumeChallenge marks the challenge used exactly once.
func (r *OTPRepository) ConsumeChallenge(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&OTPChallengeModel{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", at)
	if res.Error != nil {
		return fmt.Errorf("consuming otp challenge: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrStale
	}
	return nil
}

// DeleteExpired removes challenges that expired before the given time.
func (r *OTPRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&OTPChallengeModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("deleting expired otp challenges: %w", res.Error)
	}
	return res.RowsAffected, nil
}
