package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/archiprisma/memberops/internal/pkg/database"
	"github.com/archiprisma/memberops/internal/pkg/metrics/counter"
	"github.com/archiprisma/memberops/internal/pkg/referral"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type generateReferralRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type completeReferralRequest struct {
	Code  string `json:"code" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// HandleReferralGenerate issues (or returns) the referral code for an
// email address.
func HandleReferralGenerate(c *fiber.Ctx) error {
	var req generateReferralRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if err := validator.New().Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_email"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	svc := referral.NewServiceFromDB(database.GetDB(), stripeClient)
	rc, err := svc.Generate(ctx, req.Email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "generate_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"code":      rc.Code,
		"referrals": rc.Referrals,
	})
}

// HandleReferralVerify reports whether a code is valid.
func HandleReferralVerify(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc := referral.NewServiceFromDB(database.GetDB(), stripeClient)
	rc, err := svc.Verify(ctx, c.Params("code"))
	if err != nil {
		if errors.Is(err, referral.ErrCodeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"valid": false})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "verify_failed"})
	}

	// Buffered in Redis, flushed by the reconciliation sweep.
	_ = counter.AddReferralCheck(rc.ID)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"valid":     true,
		"code":      rc.Code,
		"referrals": rc.Referrals,
	})
}

// HandleReferralComplete settles a referral after the referred member
// subscribed. Normally driven by the checkout webhook; exposed for manual
// corrections.
func HandleReferralComplete(c *fiber.Ctx) error {
	var req completeReferralRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if err := validator.New().Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	svc := referral.NewServiceFromDB(database.GetDB(), stripeClient)
	rc, err := svc.Complete(ctx, req.Code, req.Email)
	if err != nil {
		if errors.Is(err, referral.ErrCodeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "code_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "complete_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"code":      rc.Code,
		"referrals": rc.Referrals,
		"rewards":   rc.RewardsClaimed,
	})
}
