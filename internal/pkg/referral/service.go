package referral

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/archiprisma/memberops/app/models"
	"gorm.io/gorm"
)

// RewardAmountJPY is the one-off discount granted on both sides of a
// referral.
const RewardAmountJPY = 1000

const fallbackCodeName = "ARCHI"

// ErrCodeNotFound marks an unknown referral code.
var ErrCodeNotFound = errors.New("referral code not found")

// BillingGateway is the slice of the billing provider the referral program
// needs.
type BillingGateway interface {
	FindCustomerIDByEmail(ctx context.Context, email string) (string, error)
	CreateOnceCoupon(ctx context.Context, name string, amountOffJPY int64) (string, error)
	FirstEntitledSubscriptionID(ctx context.Context, customerID string) (string, error)
	ApplyCouponToSubscription(ctx context.Context, subscriptionID, couponID string) error
}

// Service issues referral codes and settles completed referrals.
type Service struct {
	repo    Repository
	billing BillingGateway
}

// NewService creates a referral service.
func NewService(repo Repository, billing BillingGateway) *Service {
	return &Service{repo: repo, billing: billing}
}

// NewServiceFromDB creates a referral service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, billing BillingGateway) *Service {
	return NewService(NewRepository(db), billing)
}

// Generate returns the referrer's code, creating it on first call. Repeat
// calls for the same email return the existing code unchanged.
func (s *Service) Generate(ctx context.Context, email string) (*models.ReferralCode, error) {
	addr := strings.ToLower(strings.TrimSpace(email))
	if addr == "" {
		return nil, errors.New("email is required")
	}

	existing, err := s.repo.GetByEmail(addr)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	code, err := s.freshCode(addr)
	if err != nil {
		return nil, err
	}

	rc := &models.ReferralCode{
		Code:          code,
		ReferrerEmail: addr,
	}

	// Both lookups are best effort; the code works without them.
	if customerID, err := s.billing.FindCustomerIDByEmail(ctx, addr); err != nil {
		log.Printf("[referral] customer lookup failed email=%s: %v", addr, err)
	} else {
		rc.ReferrerCustomerID = customerID
	}
	if couponID, err := s.billing.CreateOnceCoupon(ctx, "Referral "+code, RewardAmountJPY); err != nil {
		log.Printf("[referral] coupon creation failed code=%s: %v", code, err)
	} else {
		rc.CouponID = couponID
	}

	if err := s.repo.Create(rc); err != nil {
		return nil, err
	}
	return rc, nil
}

// Verify resolves a code to its record.
func (s *Service) Verify(ctx context.Context, code string) (*models.ReferralCode, error) {
	_ = ctx
	rc, err := s.repo.GetByCode(normalizeCode(code))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	return rc, nil
}

// CouponForCode returns the checkout coupon behind a code, empty when the
// code carries no discount.
func (s *Service) CouponForCode(ctx context.Context, code string) (string, error) {
	rc, err := s.Verify(ctx, code)
	if err != nil {
		return "", err
	}
	return rc.CouponID, nil
}

// Complete settles a referral after the new member's checkout: the counter
// always increments; the referrer reward is best effort.
func (s *Service) Complete(ctx context.Context, code, newMemberEmail string) (*models.ReferralCode, error) {
	rc, err := s.Verify(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := s.repo.IncrementReferral(rc.Code); err != nil {
		return nil, err
	}
	rc.Referrals++

	if rc.CouponID == "" {
		return rc, nil
	}

	customerID := rc.ReferrerCustomerID
	if customerID == "" {
		if customerID, err = s.billing.FindCustomerIDByEmail(ctx, rc.ReferrerEmail); err != nil || customerID == "" {
			log.Printf("[referral] reward skipped, no customer for %s: %v", rc.ReferrerEmail, err)
			return rc, nil
		}
	}

	subscriptionID, err := s.billing.FirstEntitledSubscriptionID(ctx, customerID)
	if err != nil || subscriptionID == "" {
		log.Printf("[referral] reward skipped, no active subscription customer=%s: %v", customerID, err)
		return rc, nil
	}

	if err := s.billing.ApplyCouponToSubscription(ctx, subscriptionID, rc.CouponID); err != nil {
		log.Printf("[referral] reward application failed code=%s: %v", rc.Code, err)
		return rc, nil
	}
	if err := s.repo.IncrementRewards(rc.Code); err != nil {
		log.Printf("[referral] reward count update failed code=%s: %v", rc.Code, err)
	} else {
		rc.RewardsClaimed++
	}
	log.Printf("[referral] reward applied code=%s member=%s", rc.Code, strings.ToLower(strings.TrimSpace(newMemberEmail)))
	return rc, nil
}

func (s *Service) freshCode(email string) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := buildCode(email)
		if err != nil {
			return "", err
		}
		if _, err := s.repo.GetByCode(code); errors.Is(err, gorm.ErrRecordNotFound) {
			return code, nil
		} else if err != nil {
			return "", err
		}
	}
	return "", errors.New("could not allocate a unique referral code")
}

// buildCode derives REF-<NAME4>-<6 hex> from the email local part.
func buildCode(email string) (string, error) {
	local := email
	if at := strings.Index(email, "@"); at > 0 {
		local = email[:at]
	}

	var name strings.Builder
	for _, r := range strings.ToUpper(local) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			name.WriteRune(r)
			if name.Len() == 4 {
				break
			}
		}
	}
	prefix := name.String()
	if prefix == "" {
		prefix = fallbackCodeName
	}

	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	return fmt.Sprintf("REF-%s-%s", prefix, strings.ToUpper(hex.EncodeToString(suffix))), nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
