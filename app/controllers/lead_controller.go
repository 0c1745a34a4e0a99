package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/archiprisma/memberops/internal/pkg/database"
	"github.com/archiprisma/memberops/internal/pkg/drip"
	"github.com/archiprisma/memberops/internal/pkg/env"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type captureLeadRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Name    string `json:"name"`
	Company string `json:"company"`
	Source  string `json:"source"`
}

// HandleLeadCapture enrolls a prospect into the drip campaign and sends
// the welcome mail.
func HandleLeadCapture(c *fiber.Ctx) error {
	var req captureLeadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if err := validator.New().Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_email"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	svc := drip.NewServiceFromDB(database.GetDB(), getBaseURL(c))
	lead, err := svc.Capture(ctx, req.Email, req.Name, req.Company, req.Source)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "capture_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "email": lead.Email})
}

// HandleUnsubscribe stops campaign mail for an address and renders a
// plain confirmation page.
func HandleUnsubscribe(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		return renderError(c, fiber.StatusBadRequest, "メールアドレスが指定されていません。")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc := drip.NewServiceFromDB(database.GetDB(), getBaseURL(c))
	if err := svc.Unsubscribe(ctx, email); err != nil {
		return renderError(c, fiber.StatusInternalServerError, "配信停止に失敗しました。")
	}
	return c.Render("unsubscribed", fiber.Map{"Email": email})
}

// HandleDripRun triggers one campaign sweep. The scheduler middleware
// guards the route.
func HandleDripRun(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	svc := drip.NewServiceFromDB(database.GetDB(), base)
	report, err := svc.ProcessLeads(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "run_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(report)
}

// HandleDripStatus reports per-lead campaign progress. Guarded like the
// run endpoint because it exposes lead addresses.
func HandleDripStatus(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	svc := drip.NewServiceFromDB(database.GetDB(), getBaseURL(c))
	statuses, err := svc.Status(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "status_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"leads": statuses})
}
