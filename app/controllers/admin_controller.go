package controllers

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/archiprisma/memberops/internal/pkg/cache"
	"github.com/archiprisma/memberops/internal/pkg/database"
	"github.com/archiprisma/memberops/internal/pkg/mail"
	"github.com/archiprisma/memberops/internal/pkg/membership"
	"github.com/archiprisma/memberops/internal/pkg/metrics/counter"
	"github.com/archiprisma/memberops/internal/pkg/statistics"
	"github.com/gofiber/fiber/v2"
	stripe "github.com/stripe/stripe-go/v82"
)

const statsCacheKey = "stats:active_members"
const statsCacheTTL = time.Hour

// unlinkedGracePeriod is how long a fresh subscriber gets to finish the
// Discord linking flow before showing up in the report.
const unlinkedGracePeriod = 24 * time.Hour

// HandleResync runs the full reconciliation sweep. The scheduler
// middleware guards the route.
func HandleResync(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Piggyback the counter flush on the sweep cadence.
	if err := counter.FlushAll(); err != nil {
		log.Printf("[admin] counter flush failed: %v", err)
	}

	membershipSvc := membership.NewServiceFromDB(database.GetDB())
	resyncer := membership.NewResyncer(membershipSvc, evaluator, resyncSyncer{})
	ok, ng, err := resyncer.Resync(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "resync_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": ok, "ng": ng, "total": ok + ng})
}

// resyncSyncer adapts the package-level ensureRole helper (which handles
// the disabled-Discord case) to the sweep's interface.
type resyncSyncer struct{}

func (resyncSyncer) EnsureRole(ctx context.Context, discordUserID string, shouldHold bool, reason string) error {
	return ensureRole(ctx, discordUserID, shouldHold, reason)
}

// HandleUnlinkedCustomers lists paying subscribers who never linked a
// Discord account and are past the grace period.
func HandleUnlinkedCustomers(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	membershipSvc := membership.NewServiceFromDB(database.GetDB())
	allowed := appConfig.EntitledPriceIDs()
	cutoff := time.Now().Add(-unlinkedGracePeriod)

	type unlinkedCustomer struct {
		CustomerID     string `json:"customerId"`
		Email          string `json:"email"`
		Name           string `json:"name"`
		SubscriptionID string `json:"subscriptionId"`
		Since          string `json:"since"`
	}
	var out []unlinkedCustomer
	var iterErr error

	err := stripeClient.ForEachActiveSubscription(ctx, func(sub *stripe.Subscription) bool {
		if !holdsAllowedPrice(sub, allowed) || sub.Customer == nil {
			return true
		}
		if time.Unix(sub.Created, 0).After(cutoff) {
			return true
		}
		links, err := membershipSvc.LinksByCustomer(ctx, sub.Customer.ID)
		if err != nil {
			iterErr = err
			return false
		}
		if len(links) > 0 {
			return true
		}
		out = append(out, unlinkedCustomer{
			CustomerID:     sub.Customer.ID,
			Email:          sub.Customer.Email,
			Name:           sub.Customer.Name,
			SubscriptionID: sub.ID,
			Since:          time.Unix(sub.Created, 0).UTC().Format(time.RFC3339),
		})
		return true
	})
	if err == nil {
		err = iterErr
	}
	if err != nil {
		log.Printf("[admin] unlinked customer scan failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "scan_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"count": len(out), "customers": out})
}

// HandleCreateInvite creates a permanent invite for manual onboarding.
func HandleCreateInvite(c *fiber.Ctx) error {
	if discordClient == nil || !discordClient.Ready() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "discord_not_ready"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	inviteURL, err := discordClient.CreateInvite(ctx)
	if err != nil {
		log.Printf("[admin] invite creation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "invite_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"invite": inviteURL})
}

// HandleSendAnnualUpgrade mails every monthly and student subscriber the
// annual plan offer.
func HandleSendAnnualUpgrade(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	monthlyPrices := map[string]struct{}{}
	if appConfig.Prices.Monthly != "" {
		monthlyPrices[appConfig.Prices.Monthly] = struct{}{}
	}
	if appConfig.Prices.Student != "" {
		monthlyPrices[appConfig.Prices.Student] = struct{}{}
	}

	totalMonthly, sent, failed := 0, 0, 0
	err := stripeClient.ForEachActiveSubscription(ctx, func(sub *stripe.Subscription) bool {
		if !holdsAllowedPrice(sub, monthlyPrices) {
			return true
		}
		totalMonthly++
		if sub.Customer == nil || sub.Customer.Email == "" {
			failed++
			return true
		}
		if err := mail.SendMail(sub.Customer.Email, annualUpgradeSubject, annualUpgradeBody(sub.Customer.Name)); err != nil {
			failed++
			return true
		}
		sent++
		return true
	})
	if err != nil {
		log.Printf("[admin] annual upgrade scan failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "scan_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"totalMonthly": totalMonthly,
		"sent":         sent,
		"errors":       failed,
	})
}

const annualUpgradeSubject = "年間プランのご案内 | 2ヶ月分お得になります"

func annualUpgradeBody(name string) string {
	if name == "" {
		name = "会員"
	}
	return fmt.Sprintf(`<p>%s様</p>
<p>いつもご利用ありがとうございます。年間プランへ切り替えると月額換算で2ヶ月分お得になります。</p>
<p>請求ポータルからいつでも変更できます。</p>`, name)
}

// HandleStats returns the active paying member count plus the lead and
// referral funnel numbers. The member count is cached for an hour.
func HandleStats(c *fiber.Ctx) error {
	c.Set("Access-Control-Allow-Origin", "*")

	funnel := statistics.GetStatisticsData()

	if cached, err := cache.Get(statsCacheKey); err == nil {
		if n, convErr := strconv.Atoi(cached); convErr == nil {
			return c.Status(fiber.StatusOK).JSON(statsResponse(n, funnel, true))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := stripeClient.CountActiveEntitled(ctx, appConfig.EntitledPriceIDs())
	if err != nil {
		log.Printf("[admin] stats count failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats_failed"})
	}
	if err := cache.Set(statsCacheKey, strconv.Itoa(count), statsCacheTTL); err != nil {
		log.Printf("[admin] stats cache write failed: %v", err)
	}
	return c.Status(fiber.StatusOK).JSON(statsResponse(count, funnel, false))
}

func statsResponse(activeMembers int, funnel statistics.StatisticsData, cached bool) fiber.Map {
	return fiber.Map{
		"activeMembers":  activeMembers,
		"totalLeads":     funnel.TotalLeads,
		"leadsToday":     funnel.TodayLeads,
		"totalReferrals": funnel.TotalReferrals,
		"cached":         cached,
	}
}

func holdsAllowedPrice(sub *stripe.Subscription, allowed map[string]struct{}) bool {
	if sub.Items == nil {
		return false
	}
	for _, item := range sub.Items.Data {
		if item.Price == nil {
			continue
		}
		if _, ok := allowed[item.Price.ID]; ok {
			return true
		}
	}
	return false
}
