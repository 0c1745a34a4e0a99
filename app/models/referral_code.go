package models

import "time"

// ReferralCode is a per-referrer invite code. Completing a referral bumps
// the counter and grants the referrer a one-off coupon on their
// subscription.
type ReferralCode struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Code               string     `gorm:"type:varchar(32);not null;uniqueIndex" json:"code"`
	ReferrerEmail      string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"referrer_email"`
	ReferrerCustomerID string     `gorm:"type:varchar(191);index" json:"referrer_customer_id"`
	CouponID           string     `gorm:"type:varchar(191)" json:"coupon_id"`
	Referrals          int        `gorm:"default:0" json:"referrals"`
	RewardsClaimed     int        `gorm:"default:0" json:"rewards_claimed"`
	Checks             int        `gorm:"default:0" json:"checks"`
	LastReferralAt     *time.Time `gorm:"type:timestamp;default:null" json:"last_referral_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
