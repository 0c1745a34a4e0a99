package billing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/archiprisma/memberops/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBillingRepository struct {
	events    map[string]*models.WebhookEvent
	snapshots map[string]*models.CustomerSnapshot
	nextID    uint
}

func newMemBillingRepository() *memBillingRepository {
	return &memBillingRepository{
		events:    make(map[string]*models.WebhookEvent),
		snapshots: make(map[string]*models.CustomerSnapshot),
	}
}

func (r *memBillingRepository) key(provider, eventID string) string {
	return provider + "|" + eventID
}

func (r *memBillingRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	k := r.key(event.Provider, event.ProviderEventID)
	if existing, ok := r.events[k]; ok {
		return false, existing, nil
	}
	r.nextID++
	event.ID = r.nextID
	r.events[k] = event
	return true, event, nil
}

func (r *memBillingRepository) MarkWebhookProcessed(id uint, processingError string) error {
	for _, event := range r.events {
		if event.ID == id {
			now := time.Now()
			event.ProcessedAt = &now
			event.ProcessingError = processingError
			return nil
		}
	}
	return errors.New("event not found")
}

func (r *memBillingRepository) UpsertCustomerSnapshot(snapshot *models.CustomerSnapshot) error {
	r.snapshots[snapshot.StripeCustomerID] = snapshot
	return nil
}

func TestRecordWebhookEventFirstDelivery(t *testing.T) {
	svc := NewService(newMemBillingRepository())

	created, stored, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:        ProviderStripe,
		ProviderEventID: "evt_1",
		EventType:       "customer.subscription.updated",
		PayloadJSON:     `{"id":"evt_1"}`,
		SignatureValid:  true,
	})
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, stored)
	assert.False(t, stored.ProcessedCleanly())
}

func TestRecordWebhookEventRedeliveryAfterFailure(t *testing.T) {
	repo := newMemBillingRepository()
	svc := NewService(repo)
	ctx := context.Background()

	in := WebhookEventInput{
		Provider:        ProviderStripe,
		ProviderEventID: "evt_2",
		EventType:       "checkout.session.completed",
		PayloadJSON:     `{"id":"evt_2"}`,
		SignatureValid:  true,
	}

	created, stored, err := svc.RecordWebhookEvent(ctx, in)
	require.NoError(t, err)
	require.True(t, created)

	// Dispatch failed on the first delivery.
	require.NoError(t, svc.MarkWebhookProcessed(ctx, stored.ID, errors.New("discord unavailable")))

	// The redelivery dedupes but surfaces the failed state, so the caller
	// dispatches it again instead of dropping it.
	created, redelivered, err := svc.RecordWebhookEvent(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, redelivered)
	assert.Equal(t, stored.ID, redelivered.ID)
	assert.False(t, redelivered.ProcessedCleanly())

	// After a clean run the next redelivery is a pure duplicate.
	require.NoError(t, svc.MarkWebhookProcessed(ctx, stored.ID, nil))
	created, redelivered, err = svc.RecordWebhookEvent(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, redelivered.ProcessedCleanly())
}

func TestRecordWebhookEventWithoutEventID(t *testing.T) {
	svc := NewService(newMemBillingRepository())

	created, stored, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:    ProviderStripe,
		PayloadJSON: `{"type":"ping"}`,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, strings.HasPrefix(stored.ProviderEventID, "hash:"))
}
