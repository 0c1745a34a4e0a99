package drip

import (
	"github.com/archiprisma/memberops/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the drip service.
type Repository interface {
	UpsertLead(lead *models.Lead) error
	GetLeadByEmail(email string) (*models.Lead, error)
	ListLeads() ([]models.Lead, error)
	SaveLead(lead *models.Lead) error
	MarkUnsubscribed(email string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a drip repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) UpsertLead(lead *models.Lead) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "email"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"company",
			"source",
			"updated_at",
		}),
	}).Create(lead).Error; err != nil {
		return err
	}

	return r.db.Where("email = ?", lead.Email).First(lead).Error
}

func (r *gormRepository) GetLeadByEmail(email string) (*models.Lead, error) {
	var lead models.Lead
	if err := r.db.Where("email = ?", email).First(&lead).Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *gormRepository) ListLeads() ([]models.Lead, error) {
	var leads []models.Lead
	err := r.db.Order("joined_at asc").Find(&leads).Error
	return leads, err
}

func (r *gormRepository) SaveLead(lead *models.Lead) error {
	return r.db.Save(lead).Error
}

func (r *gormRepository) MarkUnsubscribed(email string) error {
	return r.db.Model(&models.Lead{}).
		Where("email = ?", email).
		Update("status", models.LeadStatusUnsubscribed).Error
}
