package billing

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/archiprisma/memberops/internal/pkg/constants"
	"github.com/archiprisma/memberops/internal/pkg/entitlements"
	stripe "github.com/stripe/stripe-go/v82"
)

// ErrDuplicateSubscription rejects a checkout for a customer who already
// holds an entitling subscription.
var ErrDuplicateSubscription = errors.New("duplicate_subscription")

// CompanyFieldKey is the checkout custom field carrying the invoice
// company name.
const CompanyFieldKey = "company_name"

// ReferralCodeMetadataKey carries the referral code from checkout creation
// to the completion webhook.
const ReferralCodeMetadataKey = "referral_code"

// TrialUsedMetadataKey marks customers who already consumed a trial.
const TrialUsedMetadataKey = "trial_used"

// ReferralVerifier resolves a referral code to its checkout coupon. An
// empty coupon ID means the code is unknown or carries no discount.
type ReferralVerifier interface {
	CouponForCode(ctx context.Context, code string) (string, error)
}

// CheckoutGateway is the slice of the billing provider the checkout flow
// needs. *StripeClient implements it.
type CheckoutGateway interface {
	FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error)
	CreateCustomer(ctx context.Context, email, name string) (*stripe.Customer, error)
	UpdateCustomerName(ctx context.Context, customerID, name string) error
	ListByCustomer(ctx context.Context, customerID string) ([]entitlements.Subscription, error)
	CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// CheckoutService opens Stripe Checkout sessions with the plan, student
// and referral rules applied.
type CheckoutService struct {
	stripe    CheckoutGateway
	plans     PricePlan
	allowed   map[string]struct{}
	referrals ReferralVerifier
}

// NewCheckoutService builds the checkout service. referrals may be nil.
func NewCheckoutService(gw CheckoutGateway, plans PricePlan, allowedPriceIDs map[string]struct{}, referrals ReferralVerifier) *CheckoutService {
	return &CheckoutService{stripe: gw, plans: plans, allowed: allowedPriceIDs, referrals: referrals}
}

// CreateSession resolves the customer, guards against duplicate
// subscriptions and opens the checkout session.
func (s *CheckoutService) CreateSession(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, errors.New("email is required")
	}

	priceID := SelectPriceID(s.plans, in.PriceID, email)
	if priceID == "" {
		return nil, errors.New("no checkout price is configured")
	}

	result := &CheckoutResult{}
	companyName := strings.TrimSpace(in.CompanyName)

	customer, err := s.stripe.FindCustomerByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		if customer, err = s.stripe.CreateCustomer(ctx, email, companyName); err != nil {
			return nil, err
		}
	} else {
		if companyName != "" && customer.Name != companyName {
			if err := s.stripe.UpdateCustomerName(ctx, customer.ID, companyName); err != nil {
				log.Printf("[checkout] customer name update failed customer=%s: %v", customer.ID, err)
				result.Warnings = append(result.Warnings, "company_name_not_applied")
			}
		}

		subs, err := s.stripe.ListByCustomer(ctx, customer.ID)
		if err != nil {
			return nil, err
		}
		for _, sub := range subs {
			if sub.Status != "active" && sub.Status != "trialing" {
				continue
			}
			for _, pid := range sub.PriceIDs {
				if _, ok := s.allowed[pid]; ok {
					return nil, ErrDuplicateSubscription
				}
			}
		}

		if customer.Metadata[TrialUsedMetadataKey] == "1" {
			result.Warnings = append(result.Warnings, "trial_already_used")
		}
	}

	base := strings.TrimRight(in.BaseURL, "/")
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customer.ID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(base + constants.OAuthStartRoute + "?code={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(base + "/?canceled=1"),
		CustomFields: []*stripe.CheckoutSessionCustomFieldParams{
			{
				Key:  stripe.String(CompanyFieldKey),
				Type: stripe.String("text"),
				Label: &stripe.CheckoutSessionCustomFieldLabelParams{
					Type:   stripe.String("custom"),
					Custom: stripe.String("Invoice company name"),
				},
				Optional: stripe.Bool(true),
			},
		},
	}
	params.Context = ctx

	// A referral discount and promotion codes are mutually exclusive on a
	// checkout session.
	applied := false
	if code := strings.TrimSpace(in.ReferralCode); code != "" && s.referrals != nil {
		couponID, err := s.referrals.CouponForCode(ctx, code)
		if err != nil || couponID == "" {
			log.Printf("[checkout] referral code %q not applied: %v", code, err)
			result.Warnings = append(result.Warnings, "invalid_referral_code")
		} else {
			params.Discounts = []*stripe.CheckoutSessionDiscountParams{
				{Coupon: stripe.String(couponID)},
			}
			params.AddMetadata(ReferralCodeMetadataKey, code)
			applied = true
		}
	}
	if !applied {
		params.AllowPromotionCodes = stripe.Bool(true)
	}

	sess, err := s.stripe.CreateCheckoutSession(params)
	if err != nil {
		return nil, err
	}

	result.URL = sess.URL
	result.SessionID = sess.ID
	return result, nil
}
