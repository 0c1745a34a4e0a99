package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/archiprisma/memberops/app/models"
	"github.com/archiprisma/memberops/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// ProviderStripe is the provider tag in the webhook ledger.
const ProviderStripe = "stripe"

// Service owns the webhook dedupe ledger and the customer reporting
// snapshots.
type Service struct {
	repo Repository
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// RecordWebhookEvent persists webhook payloads idempotently. The returned
// bool is false when the event id was already seen.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional
// error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// UpsertSnapshot refreshes the reporting row from an evaluated customer
// state plus the Discord users linked to it.
func (s *Service) UpsertSnapshot(ctx context.Context, state *entitlements.CustomerState, email, name string, discordUserIDs []string) error {
	_ = ctx
	if state == nil || strings.TrimSpace(state.CustomerID) == "" {
		return errors.New("customer state is required")
	}

	return s.repo.UpsertCustomerSnapshot(&models.CustomerSnapshot{
		StripeCustomerID:  state.CustomerID,
		Email:             strings.TrimSpace(email),
		Name:              strings.TrimSpace(name),
		SubscriptionID:    state.SubscriptionID,
		Status:            state.Status,
		PriceIDs:          strings.Join(state.PriceIDs, ","),
		ProductNames:      strings.Join(state.ProductNames, ","),
		CancelAtPeriodEnd: state.CancelAtPeriodEnd,
		CurrentPeriodEnd:  state.CurrentPeriodEnd,
		Entitled:          state.Entitled,
		DiscordUserIDs:    strings.Join(discordUserIDs, ","),
	})
}
