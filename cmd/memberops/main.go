package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/archiprisma/memberops/app/controllers"
	"github.com/archiprisma/memberops/internal/pkg/billing"
	"github.com/archiprisma/memberops/internal/pkg/cache"
	"github.com/archiprisma/memberops/internal/pkg/config"
	"github.com/archiprisma/memberops/internal/pkg/constants"
	"github.com/archiprisma/memberops/internal/pkg/database"
	"github.com/archiprisma/memberops/internal/pkg/discord"
	"github.com/archiprisma/memberops/internal/pkg/entitlements"
	"github.com/archiprisma/memberops/internal/pkg/env"
	"github.com/archiprisma/memberops/internal/pkg/oauthstate"
	"github.com/archiprisma/memberops/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	cfg := config.Load()
	if missing := cfg.Validate(); missing > 0 {
		log.Printf("[config] running degraded, %d credential(s) missing", missing)
	}
	log.Printf("[config] stripe mode: %s", cfg.Mode)

	stripeClient := billing.NewStripeClient(cfg.StripeSecretKey)
	evaluator := entitlements.NewEvaluator(stripeClient, cfg.EntitledPriceIDs())

	// The Discord integration degrades to log-only when unconfigured.
	var discordClient *discord.Client
	var roleSyncer *discord.Syncer
	if dc, err := discord.NewClient(cfg.DiscordBotToken, cfg.DiscordGuildID, cfg.DiscordProRoleID); err != nil {
		log.Printf("[discord] integration disabled: %v", err)
	} else {
		discordClient = dc
		roleSyncer = discord.NewSyncer(dc)
		if err := dc.Start(); err != nil {
			log.Printf("[discord] gateway connection failed: %v", err)
		}
	}

	redirectURI := env.GetEnv("DISCORD_REDIRECT_URI", "")
	if redirectURI == "" {
		if base := env.GetEnv("PUBLIC_DOMAIN", ""); base != "" {
			redirectURI = base + constants.OAuthCallbackRoute
		}
	}
	oauthClient := discord.NewOAuthClient(cfg.DiscordClientID, cfg.DiscordClientSecret, redirectURI)
	stateCodec := oauthstate.NewCodec(cfg.OAuthStateSecret)

	controllers.Setup(cfg, stripeClient, evaluator, discordClient, roleSyncer, oauthClient, stateCodec)

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/memberops to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "views"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		Views: html.New(basePath+"views", ".html"),
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
