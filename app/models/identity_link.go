package models

import "time"

// IdentityLink binds a Discord user to a Stripe customer. One Discord user
// holds at most one link; several Discord users may point at the same
// customer (shared team accounts).
type IdentityLink struct {
	DiscordUserID    string     `gorm:"type:varchar(32);primaryKey" json:"discord_user_id"`
	StripeCustomerID string     `gorm:"type:varchar(191);not null;index" json:"stripe_customer_id"`
	Email            string     `gorm:"type:varchar(191);index" json:"email"`
	LinkedAt         time.Time  `gorm:"autoCreateTime" json:"linked_at"`
	LastSyncAt       *time.Time `gorm:"type:timestamp;default:null" json:"last_sync_at,omitempty"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
