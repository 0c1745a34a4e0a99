package billing

import "time"

// WebhookEventInput is the normalized webhook payload for the dedupe
// ledger.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// CheckoutInput is the request to open a checkout session.
type CheckoutInput struct {
	Email        string
	PriceID      string
	CompanyName  string
	ReferralCode string
	BaseURL      string
}

// CheckoutResult carries the session handoff plus advisory warnings.
type CheckoutResult struct {
	URL       string
	SessionID string
	Warnings  []string
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
