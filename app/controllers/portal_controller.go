package controllers

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/archiprisma/memberops/internal/pkg/constants"
	"github.com/gofiber/fiber/v2"
)

// HandleLanding renders the marketing landing page with the configured
// plans.
func HandleLanding(c *fiber.Ctx) error {
	return c.Render("index", fiber.Map{
		"MonthlyPriceID": appConfig.Prices.Monthly,
		"YearlyPriceID":  appConfig.Prices.Yearly,
		"StudentPriceID": appConfig.Prices.Student,
		"Canceled":       c.Query("canceled") == "1",
	})
}

// HandleHealthz answers liveness probes.
func HandleHealthz(c *fiber.Ctx) error {
	return c.SendString("ok")
}

// HandleSuccess renders the post-checkout thanks page with the invite and
// linking URLs.
func HandleSuccess(c *fiber.Ctx) error {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		sessionID = strings.TrimSpace(c.Query("code"))
	}

	linkURL := ""
	if sessionID != "" {
		linkURL = getBaseURL(c) + constants.OAuthStartRoute + "?code=" + url.QueryEscape(sessionID)
	}
	return c.Render("success", fiber.Map{
		"LinkURL":   linkURL,
		"InviteURL": appConfig.DiscordInviteURL,
	})
}

// HandlePortal looks a customer up by email and renders their subscription
// summary with a billing-portal link.
func HandlePortal(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		return c.Render("portal_lookup", fiber.Map{})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	customer, err := stripeClient.FindCustomerByEmail(ctx, email)
	if err != nil {
		log.Printf("[portal] customer lookup failed: %v", err)
		return renderError(c, fiber.StatusInternalServerError, "お客様情報を取得できませんでした。")
	}
	if customer == nil {
		return c.Status(fiber.StatusNotFound).Render("portal_notfound", fiber.Map{"Email": email})
	}

	portalURL, err := stripeClient.CreatePortalSession(ctx, customer.ID, getBaseURL(c)+constants.PortalRoute)
	if err != nil {
		log.Printf("[portal] portal session failed customer=%s: %v", customer.ID, err)
		return renderError(c, fiber.StatusInternalServerError, "請求ポータルを開けませんでした。")
	}

	subs, err := stripeClient.ListByCustomer(ctx, customer.ID)
	if err != nil {
		log.Printf("[portal] subscription list failed customer=%s: %v", customer.ID, err)
		return renderError(c, fiber.StatusInternalServerError, "契約情報を取得できませんでした。")
	}

	var invoiceURL string
	if invoice, err := stripeClient.LatestInvoice(ctx, customer.ID); err == nil && invoice != nil {
		invoiceURL = invoice.HostedInvoiceURL
	}

	return c.Render("portal", fiber.Map{
		"Email":         customer.Email,
		"Subscriptions": subs,
		"PortalURL":     portalURL,
		"InvoiceURL":    invoiceURL,
	})
}

// HandlePortalSession resolves a checkout session code straight into a
// billing-portal redirect.
func HandlePortalSession(c *fiber.Ctx) error {
	sessionID := strings.TrimSpace(c.Query("code"))
	if sessionID == "" {
		return renderError(c, fiber.StatusBadRequest, "コードがありません。")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	sess, err := stripeClient.GetCheckoutSession(ctx, sessionID)
	if err != nil || sess.Customer == nil || sess.Customer.ID == "" {
		log.Printf("[portal] session resolution failed code=%s: %v", sessionID, err)
		return renderError(c, fiber.StatusBadRequest, "購入情報が見つかりませんでした。")
	}

	portalURL, err := stripeClient.CreatePortalSession(ctx, sess.Customer.ID, getBaseURL(c)+constants.PortalRoute)
	if err != nil {
		log.Printf("[portal] portal session failed customer=%s: %v", sess.Customer.ID, err)
		return renderError(c, fiber.StatusInternalServerError, "請求ポータルを開けませんでした。")
	}
	return c.Redirect(portalURL, fiber.StatusSeeOther)
}

// HandleLink lets an existing member restart the Discord linking flow from
// just their email address.
func HandleLink(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		return c.Render("link", fiber.Map{})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	customer, err := stripeClient.FindCustomerByEmail(ctx, email)
	if err != nil {
		log.Printf("[link] customer lookup failed: %v", err)
		return renderError(c, fiber.StatusInternalServerError, "お客様情報を取得できませんでした。")
	}
	if customer == nil {
		return renderError(c, fiber.StatusNotFound, "このメールアドレスの契約が見つかりませんでした。")
	}

	subscriptionID, err := stripeClient.FirstEntitledSubscriptionID(ctx, customer.ID)
	if err != nil {
		log.Printf("[link] subscription check failed customer=%s: %v", customer.ID, err)
		return renderError(c, fiber.StatusInternalServerError, "契約状態を確認できませんでした。")
	}
	if subscriptionID == "" {
		return renderError(c, fiber.StatusForbidden, "有効な契約が見つかりませんでした。")
	}

	sess, err := stripeClient.LatestCheckoutSession(ctx, customer.ID)
	if err != nil || sess == nil {
		log.Printf("[link] checkout session lookup failed customer=%s: %v", customer.ID, err)
		return renderError(c, fiber.StatusInternalServerError, "リンク情報を取得できませんでした。")
	}

	return c.Redirect(constants.OAuthStartRoute+"?code="+url.QueryEscape(sess.ID), fiber.StatusSeeOther)
}
