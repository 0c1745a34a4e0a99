package config

import (
	"log"
	"strings"

	"github.com/archiprisma/memberops/internal/pkg/env"
)

const defaultDiscordInviteURL = "https://discord.gg/22Ah4EypVK"

// Mode selects which Stripe credential set is active.
type Mode string

const (
	ModeTest Mode = "test"
	ModeLive Mode = "live"
)

// PriceIDs holds the mode-scoped checkout price identifiers.
type PriceIDs struct {
	Monthly string
	Yearly  string
	Student string
	Extra   []string
}

// Config is the immutable startup snapshot. All mode branching happens
// here, once; call sites never look at the mode flag again.
type Config struct {
	Mode Mode

	StripeSecretKey     string
	StripeWebhookSecret string
	Prices              PriceIDs

	DiscordClientID     string
	DiscordClientSecret string
	DiscordBotToken     string
	DiscordGuildID      string
	DiscordProRoleID    string
	DiscordInviteURL    string

	OAuthStateSecret string
	SchedulerToken   string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPSender   string
}

// Load resolves the environment into a Config snapshot.
func Load() *Config {
	mode := ModeTest
	if strings.ToLower(env.GetEnv("STRIPE_MODE", "test")) == "live" {
		mode = ModeLive
	}

	pick := func(testKey, liveKey string) string {
		if mode == ModeLive {
			return env.GetEnv(liveKey, "")
		}
		return env.GetEnv(testKey, "")
	}

	cfg := &Config{
		Mode:                mode,
		StripeSecretKey:     pick("STRIPE_SECRET_KEY_TEST", "STRIPE_SECRET_KEY_LIVE"),
		StripeWebhookSecret: pick("STRIPE_WEBHOOK_SECRET_TEST", "STRIPE_WEBHOOK_SECRET_LIVE"),
		Prices: PriceIDs{
			Monthly: pick("STRIPE_PRICE_ID_MONTHLY_TEST", "STRIPE_PRICE_ID_MONTHLY_LIVE"),
			Yearly:  pick("STRIPE_PRICE_ID_YEARLY_TEST", "STRIPE_PRICE_ID_YEARLY_LIVE"),
			Student: pick("STRIPE_PRICE_ID_STUDENT_TEST", "STRIPE_PRICE_ID_STUDENT_LIVE"),
			Extra:   parsePriceList(pick("STRIPE_ADDITIONAL_PRICE_IDS_TEST", "STRIPE_ADDITIONAL_PRICE_IDS_LIVE")),
		},
		DiscordClientID:     env.GetEnv("DISCORD_CLIENT_ID", ""),
		DiscordClientSecret: env.GetEnv("DISCORD_CLIENT_SECRET", ""),
		DiscordBotToken:     env.GetEnv("DISCORD_BOT_TOKEN", ""),
		DiscordGuildID:      env.GetEnv("DISCORD_GUILD_ID", ""),
		DiscordProRoleID:    env.GetEnv("DISCORD_PRO_ROLE_ID", ""),
		DiscordInviteURL:    env.GetEnv("DISCORD_GUILD_INVITE_URL", defaultDiscordInviteURL),
		OAuthStateSecret:    env.GetEnv("OAUTH_STATE_SECRET", ""),
		SchedulerToken:      env.GetEnv("SCHEDULER_TOKEN", ""),
		SMTPHost:            env.GetEnv("SMTP_HOST", ""),
		SMTPPort:            env.GetEnv("SMTP_PORT", "587"),
		SMTPUsername:        env.GetEnv("SMTP_USERNAME", ""),
		SMTPPassword:        env.GetEnv("SMTP_PASSWORD", ""),
		SMTPSender:          env.GetEnv("SMTP_SENDER", ""),
	}
	return cfg
}

// EntitledPriceIDs returns the allow-list of prices that grant the pro
// role: the configured plans plus any additional price IDs.
func (c *Config) EntitledPriceIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, id := range append([]string{c.Prices.Monthly, c.Prices.Yearly, c.Prices.Student}, c.Prices.Extra...) {
		if id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// Validate logs a warning for every missing required credential and
// returns how many were missing. The service keeps running in a degraded
// mode instead of refusing to start.
func (c *Config) Validate() int {
	missing := 0
	check := func(name, val string) {
		if val == "" {
			log.Printf("[config] missing env: %s", name)
			missing++
		}
	}
	check("STRIPE_SECRET_KEY", c.StripeSecretKey)
	check("STRIPE_WEBHOOK_SECRET", c.StripeWebhookSecret)
	check("DISCORD_CLIENT_ID", c.DiscordClientID)
	check("DISCORD_CLIENT_SECRET", c.DiscordClientSecret)
	check("DISCORD_BOT_TOKEN", c.DiscordBotToken)
	check("DISCORD_GUILD_ID", c.DiscordGuildID)
	check("DISCORD_PRO_ROLE_ID", c.DiscordProRoleID)
	check("OAUTH_STATE_SECRET", c.OAuthStateSecret)
	check("SCHEDULER_TOKEN", c.SchedulerToken)

	if len(c.EntitledPriceIDs()) == 0 {
		log.Print("[config] no entitled price IDs configured")
		missing++
	}
	return missing
}

func parsePriceList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
