package router

import (
	"github.com/archiprisma/memberops/app/controllers"
	"github.com/archiprisma/memberops/internal/pkg/constants"
	"github.com/archiprisma/memberops/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Public pages
	app.Get(constants.PublicRoute, controllers.HandleLanding)
	app.Get(constants.HealthzRoute, controllers.HandleHealthz)
	app.Get(constants.SuccessRoute, controllers.HandleSuccess)
	app.Get(constants.LinkRoute, controllers.HandleLink)
	app.Get(constants.PortalRoute, controllers.HandlePortal)
	app.Get(constants.PortalSessionRoute, controllers.HandlePortalSession)

	// Discord account linking
	app.Get(constants.OAuthStartRoute, controllers.HandleDiscordStart)
	app.Get(constants.OAuthCallbackRoute, controllers.HandleDiscordCallback)

	// Billing provider callbacks
	app.Post(constants.StripeWebhookRoute, controllers.HandleStripeWebhook)

	// Operations endpoints
	admin := app.Group("/admin", middleware.SchedulerAuthMiddleware(controllers.SchedulerToken))
	admin.Post("/resync", controllers.HandleResync)
	admin.Get("/unlinked-customers", controllers.HandleUnlinkedCustomers)
	admin.Get("/create-invite", controllers.HandleCreateInvite)
	admin.Post("/send-annual-upgrade", controllers.HandleSendAnnualUpgrade)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
