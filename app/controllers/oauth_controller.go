package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/archiprisma/memberops/internal/pkg/database"
	"github.com/archiprisma/memberops/internal/pkg/membership"
	"github.com/gofiber/fiber/v2"
)

// HandleDiscordStart begins the account linking flow. The code query
// parameter is the checkout session that proves the purchase.
func HandleDiscordStart(c *fiber.Ctx) error {
	sessionID := strings.TrimSpace(c.Query("code"))
	if sessionID == "" {
		return renderError(c, fiber.StatusBadRequest, "リンクコードがありません。購入完了メールのリンクからやり直してください。")
	}

	state, err := stateCodec.Issue(sessionID)
	if err != nil {
		log.Printf("[oauth] state issue failed: %v", err)
		return renderError(c, fiber.StatusInternalServerError, "リンクを開始できませんでした。")
	}

	authURL, err := oauthClient.AuthorizeURLWithState(state)
	if err != nil {
		log.Printf("[oauth] authorize url failed: %v", err)
		return renderError(c, fiber.StatusInternalServerError, "Discord連携が設定されていません。")
	}
	return c.Redirect(authURL, fiber.StatusSeeOther)
}

// HandleDiscordCallback completes the linking flow: verify state, exchange
// the code, resolve the paying customer and converge the role before the
// confirmation page renders.
func HandleDiscordCallback(c *fiber.Ctx) error {
	if oauthErr := strings.TrimSpace(c.Query("error")); oauthErr != "" {
		msg := c.Query("error_description", oauthErr)
		return renderError(c, fiber.StatusBadRequest, "Discord認証がキャンセルされました: "+msg)
	}

	sessionID, err := stateCodec.Parse(c.Query("state"))
	if err != nil {
		log.Printf("[oauth] state rejected: %v", err)
		return renderError(c, fiber.StatusBadRequest, "リンクの有効期限が切れたか、不正なリクエストです。")
	}

	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		return renderError(c, fiber.StatusBadRequest, "認証コードがありません。")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	token, err := oauthClient.ExchangeCode(ctx, code)
	if err != nil {
		log.Printf("[oauth] token exchange failed: %v", err)
		return renderError(c, fiber.StatusInternalServerError, "Discordとの通信に失敗しました。もう一度お試しください。")
	}

	identity, err := oauthClient.GetIdentity(ctx, token.AccessToken)
	if err != nil {
		log.Printf("[oauth] identity fetch failed: %v", err)
		return renderError(c, fiber.StatusInternalServerError, "Discordアカウント情報を取得できませんでした。")
	}

	membershipSvc := membership.NewServiceFromDB(database.GetDB())
	customerID, email, err := resolveCustomerForSession(ctx, membershipSvc, sessionID)
	if err != nil {
		log.Printf("[oauth] customer resolution failed session=%s: %v", sessionID, err)
		return renderError(c, fiber.StatusBadRequest, "購入情報が見つかりませんでした。サポートまでご連絡ください。")
	}

	if _, err := membershipSvc.UpsertLink(ctx, identity.UserID, customerID, email); err != nil {
		log.Printf("[oauth] link upsert failed user=%s: %v", identity.UserID, err)
		return renderError(c, fiber.StatusInternalServerError, "アカウントの紐付けに失敗しました。")
	}

	entitled, err := evaluator.IsEntitled(ctx, customerID)
	if err != nil {
		log.Printf("[oauth] entitlement check failed customer=%s: %v", customerID, err)
		return renderError(c, fiber.StatusInternalServerError, "契約状態を確認できませんでした。後ほど自動で再同期されます。")
	}

	if err := ensureRole(ctx, identity.UserID, entitled, fmt.Sprintf("oauth_link entitle=%t", entitled)); err != nil {
		log.Printf("[oauth] role sync failed user=%s: %v", identity.UserID, err)
		return renderError(c, fiber.StatusInternalServerError, "ロールの付与に失敗しました。後ほど自動で再同期されます。")
	}

	_ = membershipSvc.TouchSync(ctx, identity.UserID)
	_ = membershipSvc.MarkLinkCodeUsed(ctx, sessionID)

	return c.Render("linked", fiber.Map{
		"Username":  identity.Username,
		"Entitled":  entitled,
		"InviteURL": appConfig.DiscordInviteURL,
	})
}

// resolveCustomerForSession prefers the local link code and falls back to
// the billing provider, re-recording the code defensively for retries.
func resolveCustomerForSession(ctx context.Context, membershipSvc *membership.Service, sessionID string) (customerID, email string, err error) {
	linkCode, err := membershipSvc.ResolveLinkCode(ctx, sessionID)
	if err == nil {
		return linkCode.StripeCustomerID, linkCode.Email, nil
	}
	if errors.Is(err, membership.ErrLinkCodeExpired) {
		return "", "", err
	}

	sess, err := stripeClient.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return "", "", err
	}
	if sess.Customer == nil || sess.Customer.ID == "" {
		return "", "", errors.New("checkout session has no customer")
	}
	email = sess.CustomerEmail
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		email = sess.CustomerDetails.Email
	}

	if recordErr := membershipSvc.RecordLinkCode(ctx, sessionID, sess.Customer.ID, email); recordErr != nil {
		log.Printf("[oauth] defensive link code record failed session=%s: %v", sessionID, recordErr)
	}
	return sess.Customer.ID, email, nil
}

func renderError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).Render("error", fiber.Map{"Message": message})
}
