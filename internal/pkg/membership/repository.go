package membership

import (
	"time"

	"github.com/archiprisma/memberops/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the membership service.
type Repository interface {
	UpsertIdentityLink(link *models.IdentityLink) error
	ListIdentityLinks() ([]models.IdentityLink, error)
	LinksByCustomer(customerID string) ([]models.IdentityLink, error)
	TouchSync(discordUserID string, at time.Time) error
	UpsertLinkCode(code *models.LinkCode) error
	GetLinkCode(sessionID string) (*models.LinkCode, error)
	MarkLinkCodeUsed(sessionID string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a membership repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) UpsertIdentityLink(link *models.IdentityLink) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "discord_user_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"stripe_customer_id",
			"email",
			"updated_at",
		}),
	}).Create(link).Error; err != nil {
		return err
	}

	return r.db.Where("discord_user_id = ?", link.DiscordUserID).First(link).Error
}

func (r *gormRepository) ListIdentityLinks() ([]models.IdentityLink, error) {
	var links []models.IdentityLink
	err := r.db.Order("linked_at asc").Find(&links).Error
	return links, err
}

func (r *gormRepository) LinksByCustomer(customerID string) ([]models.IdentityLink, error) {
	var links []models.IdentityLink
	err := r.db.Where("stripe_customer_id = ?", customerID).Find(&links).Error
	return links, err
}

func (r *gormRepository) TouchSync(discordUserID string, at time.Time) error {
	return r.db.Model(&models.IdentityLink{}).
		Where("discord_user_id = ?", discordUserID).
		Update("last_sync_at", &at).Error
}

func (r *gormRepository) UpsertLinkCode(code *models.LinkCode) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "session_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"stripe_customer_id",
			"email",
			"expires_at",
			"updated_at",
		}),
	}).Create(code).Error
}

func (r *gormRepository) GetLinkCode(sessionID string) (*models.LinkCode, error) {
	var code models.LinkCode
	if err := r.db.Where("session_id = ?", sessionID).First(&code).Error; err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *gormRepository) MarkLinkCodeUsed(sessionID string) error {
	return r.db.Model(&models.LinkCode{}).
		Where("session_id = ?", sessionID).
		Update("used", true).Error
}
