package referral

import (
	"time"

	"github.com/archiprisma/memberops/app/models"
	"gorm.io/gorm"
)

// Repository provides DB operations used by the referral service.
type Repository interface {
	GetByEmail(email string) (*models.ReferralCode, error)
	GetByCode(code string) (*models.ReferralCode, error)
	Create(rc *models.ReferralCode) error
	IncrementReferral(code string) error
	IncrementRewards(code string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a referral repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetByEmail(email string) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	if err := r.db.Where("referrer_email = ?", email).First(&rc).Error; err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *gormRepository) GetByCode(code string) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	if err := r.db.Where("code = ?", code).First(&rc).Error; err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *gormRepository) Create(rc *models.ReferralCode) error {
	return r.db.Create(rc).Error
}

func (r *gormRepository) IncrementReferral(code string) error {
	now := time.Now()
	return r.db.Model(&models.ReferralCode{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{
			"referrals":        gorm.Expr("referrals + 1"),
			"last_referral_at": &now,
		}).Error
}

func (r *gormRepository) IncrementRewards(code string) error {
	return r.db.Model(&models.ReferralCode{}).
		Where("code = ?", code).
		Update("rewards_claimed", gorm.Expr("rewards_claimed + 1")).Error
}
