package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/archiprisma/memberops/internal/pkg/billing"
	"github.com/archiprisma/memberops/internal/pkg/database"
	"github.com/archiprisma/memberops/internal/pkg/membership"
	"github.com/archiprisma/memberops/internal/pkg/referral"
	"github.com/gofiber/fiber/v2"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// HandleStripeWebhook ingests signed Stripe events. Duplicate deliveries
// are answered 200 without side effects; processing failures are answered
// 500 so Stripe redelivers.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	event, err := webhook.ConstructEventWithOptions(
		rawBody,
		c.Get("Stripe-Signature"),
		appConfig.StripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		log.Printf("[webhook] signature verification failed: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	svc := billing.NewServiceFromDB(database.GetDB())
	created, stored, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        billing.ProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	// Only cleanly processed events short-circuit. A redelivery of an
	// event whose dispatch failed runs again; every handler converges on
	// idempotent upserts, so replay is safe.
	if !created && stored.ProcessedCleanly() {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": true})
	}

	var processErr error
	switch event.Type {
	case "checkout.session.completed":
		processErr = handleCheckoutCompleted(ctx, event.Data.Raw)
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		processErr = handleSubscriptionChange(ctx, event.Data.Raw, string(event.Type))
	default:
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "ignored": true})
	}

	_ = svc.MarkWebhookProcessed(ctx, stored.ID, processErr)
	if processErr != nil {
		log.Printf("[webhook] processing failed event=%s type=%s: %v", event.ID, event.Type, processErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

// handleCheckoutCompleted records the linking code, settles a referral and
// propagates the invoice company name.
func handleCheckoutCompleted(ctx context.Context, raw json.RawMessage) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return err
	}
	if sess.Customer == nil || sess.Customer.ID == "" {
		log.Printf("[webhook] checkout session %s without customer, ignored", sess.ID)
		return nil
	}
	customerID := sess.Customer.ID

	email := sess.CustomerEmail
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		email = sess.CustomerDetails.Email
	}

	membershipSvc := membership.NewServiceFromDB(database.GetDB())
	if err := membershipSvc.RecordLinkCode(ctx, sess.ID, customerID, email); err != nil {
		return err
	}

	if code := strings.TrimSpace(sess.Metadata[billing.ReferralCodeMetadataKey]); code != "" {
		referrals := referral.NewServiceFromDB(database.GetDB(), stripeClient)
		if _, err := referrals.Complete(ctx, code, email); err != nil {
			// A bad code must not trigger a redelivery loop.
			log.Printf("[webhook] referral completion failed code=%s: %v", code, err)
		}
	}

	if company := companyNameField(&sess); company != "" {
		applyCompanyName(ctx, customerID, company)
	}
	return nil
}

func companyNameField(sess *stripe.CheckoutSession) string {
	for _, field := range sess.CustomFields {
		if field.Key == billing.CompanyFieldKey && field.Text != nil {
			return strings.TrimSpace(field.Text.Value)
		}
	}
	return ""
}

// applyCompanyName is best effort: the membership is valid even when the
// invoice cosmetics fail.
func applyCompanyName(ctx context.Context, customerID, company string) {
	if err := stripeClient.UpdateCustomerName(ctx, customerID, company); err != nil {
		log.Printf("[webhook] customer name update failed customer=%s: %v", customerID, err)
	}

	invoice, err := stripeClient.LatestInvoice(ctx, customerID)
	if err != nil || invoice == nil {
		log.Printf("[webhook] invoice lookup failed customer=%s: %v", customerID, err)
		return
	}
	if invoice.Status == stripe.InvoiceStatusDraft {
		err = stripeClient.SetInvoiceCompanyField(ctx, invoice.ID, company)
	} else {
		err = stripeClient.SetInvoiceMetadata(ctx, invoice.ID, billing.CompanyFieldKey, company)
	}
	if err != nil {
		log.Printf("[webhook] invoice company update failed invoice=%s: %v", invoice.ID, err)
	}
}

// handleSubscriptionChange re-evaluates the customer's entitlement from
// live billing state and converges every linked Discord user.
func handleSubscriptionChange(ctx context.Context, raw json.RawMessage, eventType string) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return err
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return nil
	}
	customerID := sub.Customer.ID

	state, err := evaluator.Snapshot(ctx, customerID)
	if err != nil {
		return err
	}

	membershipSvc := membership.NewServiceFromDB(database.GetDB())
	links, err := membershipSvc.LinksByCustomer(ctx, customerID)
	if err != nil {
		return err
	}

	reason := fmt.Sprintf("webhook_sub entitle=%t", state.Entitled)
	var firstErr error
	var discordIDs []string
	for _, link := range links {
		discordIDs = append(discordIDs, link.DiscordUserID)
		if err := ensureRole(ctx, link.DiscordUserID, state.Entitled, reason); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := membershipSvc.TouchSync(ctx, link.DiscordUserID); err != nil {
			log.Printf("[webhook] touch failed user=%s: %v", link.DiscordUserID, err)
		}
	}

	if (eventType == "customer.subscription.created" || eventType == "customer.subscription.updated") &&
		sub.Status == stripe.SubscriptionStatusTrialing {
		if err := stripeClient.SetCustomerMetadata(ctx, customerID, billing.TrialUsedMetadataKey, "1"); err != nil {
			log.Printf("[webhook] trial marking failed customer=%s: %v", customerID, err)
		}
	}

	email, name := "", ""
	if customer, err := stripeClient.GetCustomer(ctx, customerID); err == nil && customer != nil {
		email, name = customer.Email, customer.Name
	}
	billingSvc := billing.NewServiceFromDB(database.GetDB())
	if err := billingSvc.UpsertSnapshot(ctx, state, email, name, discordIDs); err != nil {
		log.Printf("[webhook] snapshot upsert failed customer=%s: %v", customerID, err)
	}

	return firstErr
}
