package controllers

import (
	"context"
	"log"
	"strings"

	"github.com/archiprisma/memberops/internal/pkg/billing"
	"github.com/archiprisma/memberops/internal/pkg/config"
	"github.com/archiprisma/memberops/internal/pkg/discord"
	"github.com/archiprisma/memberops/internal/pkg/entitlements"
	"github.com/archiprisma/memberops/internal/pkg/env"
	"github.com/archiprisma/memberops/internal/pkg/oauthstate"
	"github.com/gofiber/fiber/v2"
)

// Shared handler dependencies, wired once at startup. The Discord client
// and syncer stay nil when the bot credentials are missing; handlers then
// skip role mutations instead of failing.
var (
	appConfig     *config.Config
	stripeClient  *billing.StripeClient
	evaluator     *entitlements.Evaluator
	discordClient *discord.Client
	roleSyncer    *discord.Syncer
	oauthClient   *discord.OAuthClient
	stateCodec    *oauthstate.Codec
)

// Setup injects the long-lived components into the handler package.
func Setup(cfg *config.Config, sc *billing.StripeClient, ev *entitlements.Evaluator, dc *discord.Client, syncer *discord.Syncer, oc *discord.OAuthClient, codec *oauthstate.Codec) {
	appConfig = cfg
	stripeClient = sc
	evaluator = ev
	discordClient = dc
	roleSyncer = syncer
	oauthClient = oc
	stateCodec = codec
}

// ensureRole forwards to the role syncer, degrading to a log line when the
// Discord integration is not configured.
func ensureRole(ctx context.Context, discordUserID string, shouldHold bool, reason string) error {
	if roleSyncer == nil {
		log.Printf("[discord] integration disabled, skip sync user=%s reason=%q", discordUserID, reason)
		return nil
	}
	return roleSyncer.EnsureRole(ctx, discordUserID, shouldHold, reason)
}

// SchedulerToken exposes the cron secret to the router middleware.
func SchedulerToken() string {
	if appConfig == nil {
		return ""
	}
	return appConfig.SchedulerToken
}

// getBaseURL resolves the externally visible origin for redirect URLs.
func getBaseURL(c *fiber.Ctx) string {
	if base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/"); base != "" {
		return base
	}
	return c.Protocol() + "://" + c.Hostname()
}

// checkoutPlans maps the configured prices into the checkout selector.
func checkoutPlans() billing.PricePlan {
	return billing.PricePlan{
		Monthly: appConfig.Prices.Monthly,
		Yearly:  appConfig.Prices.Yearly,
		Student: appConfig.Prices.Student,
	}
}
