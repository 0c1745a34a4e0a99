package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/archiprisma/memberops/internal/pkg/billing"
	"github.com/archiprisma/memberops/internal/pkg/database"
	"github.com/archiprisma/memberops/internal/pkg/referral"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type createCheckoutRequest struct {
	Email        string `json:"email" validate:"required,email"`
	PriceID      string `json:"priceId"`
	CompanyName  string `json:"companyName"`
	ReferralCode string `json:"referralCode"`
}

func (r *createCheckoutRequest) Validate() error {
	v := validator.New()
	return v.Struct(r)
}

// HandleCreateCheckoutSession opens a Stripe Checkout session for a new
// membership.
func HandleCreateCheckoutSession(c *fiber.Ctx) error {
	var req createCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_email"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	referrals := referral.NewServiceFromDB(database.GetDB(), stripeClient)
	svc := billing.NewCheckoutService(stripeClient, checkoutPlans(), appConfig.EntitledPriceIDs(), referrals)

	result, err := svc.CreateSession(ctx, billing.CheckoutInput{
		Email:        req.Email,
		PriceID:      req.PriceID,
		CompanyName:  req.CompanyName,
		ReferralCode: req.ReferralCode,
		BaseURL:      getBaseURL(c),
	})
	if err != nil {
		if errors.Is(err, billing.ErrDuplicateSubscription) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "duplicate_subscription"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "checkout_failed"})
	}

	resp := fiber.Map{"url": result.URL, "sessionId": result.SessionID}
	if len(result.Warnings) > 0 {
		resp["warnings"] = result.Warnings
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}
