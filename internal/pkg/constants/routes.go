package constants

// Static route constants
const (
	PublicRoute        = "/"
	HealthzRoute       = "/healthz"
	SuccessRoute       = "/success"
	LinkRoute          = "/link"
	PortalRoute        = "/portal"
	PortalSessionRoute = "/portal/session"
	OAuthStartRoute    = "/oauth/discord/start"
	OAuthCallbackRoute = "/oauth/discord/callback"
	StripeWebhookRoute = "/stripe/webhook"
)
