package billing

import (
	"time"

	"github.com/archiprisma/memberops/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
	UpsertCustomerSnapshot(snapshot *models.CustomerSnapshot) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) UpsertCustomerSnapshot(snapshot *models.CustomerSnapshot) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "stripe_customer_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"email",
			"name",
			"subscription_id",
			"status",
			"price_ids",
			"product_names",
			"cancel_at_period_end",
			"current_period_end",
			"entitled",
			"discord_user_ids",
			"updated_at",
		}),
	}).Create(snapshot).Error
}

