package router

import (
	"github.com/archiprisma/memberops/app/controllers"
	"github.com/archiprisma/memberops/internal/pkg/middleware"
	"github.com/archiprisma/memberops/internal/pkg/ratelimit"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:     60,
		Storage: ratelimit.Storage(),
	}))

	api.Post("/create-checkout-session", controllers.HandleCreateCheckoutSession)

	api.Post("/referral/generate", controllers.HandleReferralGenerate)
	api.Get("/referral/verify/:code", controllers.HandleReferralVerify)
	api.Post("/referral/complete", controllers.HandleReferralComplete)

	api.Post("/capture", controllers.HandleLeadCapture)
	api.Get("/unsubscribe", controllers.HandleUnsubscribe)

	// Campaign endpoints expose lead addresses, so both take the
	// scheduler token.
	drip := api.Group("/drip", middleware.SchedulerAuthMiddleware(controllers.SchedulerToken))
	drip.Post("/run", controllers.HandleDripRun)
	drip.Get("/status", controllers.HandleDripStatus)

	// Embeddable on the marketing site, hence the open CORS policy.
	api.Get("/stats", cors.New(), controllers.HandleStats)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
