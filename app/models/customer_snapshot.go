package models

import "time"

// CustomerSnapshot is a denormalized reporting row refreshed on every
// subscription webhook. It feeds dashboards only; role decisions always
// re-query the billing provider.
type CustomerSnapshot struct {
	StripeCustomerID  string     `gorm:"type:varchar(191);primaryKey" json:"stripe_customer_id"`
	Email             string     `gorm:"type:varchar(191);index" json:"email"`
	Name              string     `gorm:"type:varchar(191)" json:"name"`
	SubscriptionID    string     `gorm:"type:varchar(191);index" json:"subscription_id"`
	Status            string     `gorm:"type:varchar(32);index" json:"status"`
	PriceIDs          string     `gorm:"type:text" json:"price_ids"`
	ProductNames      string     `gorm:"type:text" json:"product_names"`
	CancelAtPeriodEnd bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CurrentPeriodEnd  *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	Entitled          bool       `gorm:"default:false;index" json:"entitled"`
	DiscordUserIDs    string     `gorm:"type:text" json:"discord_user_ids"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
