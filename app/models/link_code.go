package models

import "time"

// LinkCodeTTL bounds how long a checkout session stays usable as a linking
// code after purchase.
const LinkCodeTTL = 14 * 24 * time.Hour

// LinkCode maps a Stripe checkout session to the customer it paid for, so
// the OAuth linking flow can resolve `?code=<session>` without a Stripe
// round trip. Used is advisory; codes stay resolvable until they expire.
type LinkCode struct {
	SessionID        string    `gorm:"type:varchar(191);primaryKey" json:"session_id"`
	StripeCustomerID string    `gorm:"type:varchar(191);not null;index" json:"stripe_customer_id"`
	Email            string    `gorm:"type:varchar(191)" json:"email"`
	Used             bool      `gorm:"default:false" json:"used"`
	ExpiresAt        time.Time `gorm:"type:timestamp;not null;index" json:"expires_at"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Expired reports whether the code is past its linking window.
func (lc *LinkCode) Expired(now time.Time) bool {
	return now.After(lc.ExpiresAt)
}
