package membership

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/archiprisma/memberops/app/models"
	"gorm.io/gorm"
)

// ErrLinkCodeExpired marks a linking code past its 14 day window.
var ErrLinkCodeExpired = errors.New("link code expired")

// ErrLinkCodeNotFound marks an unknown linking code.
var ErrLinkCodeNotFound = errors.New("link code not found")

// Service maintains Discord-to-customer identity links and the checkout
// session link codes feeding the OAuth flow.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a membership service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewServiceFromDB creates a membership service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// UpsertLink creates or refreshes the binding of a Discord user to a
// billing customer. Relinking to a different customer overwrites.
func (s *Service) UpsertLink(ctx context.Context, discordUserID, customerID, email string) (*models.IdentityLink, error) {
	_ = ctx
	uid := strings.TrimSpace(discordUserID)
	cid := strings.TrimSpace(customerID)
	if uid == "" || cid == "" {
		return nil, errors.New("discord_user_id and stripe_customer_id are required")
	}

	link := &models.IdentityLink{
		DiscordUserID:    uid,
		StripeCustomerID: cid,
		Email:            strings.TrimSpace(email),
	}
	if err := s.repo.UpsertIdentityLink(link); err != nil {
		return nil, err
	}
	return link, nil
}

// LinksByCustomer returns every Discord user linked to the customer. An
// empty slice is a normal result, not an error.
func (s *Service) LinksByCustomer(ctx context.Context, customerID string) ([]models.IdentityLink, error) {
	_ = ctx
	cid := strings.TrimSpace(customerID)
	if cid == "" {
		return nil, errors.New("stripe_customer_id is required")
	}
	return s.repo.LinksByCustomer(cid)
}

// AllLinks returns every identity link, oldest first.
func (s *Service) AllLinks(ctx context.Context) ([]models.IdentityLink, error) {
	_ = ctx
	return s.repo.ListIdentityLinks()
}

// RecordLinkCode stores (or refreshes) the session-to-customer mapping
// written after checkout completes.
func (s *Service) RecordLinkCode(ctx context.Context, sessionID, customerID, email string) error {
	_ = ctx
	sid := strings.TrimSpace(sessionID)
	cid := strings.TrimSpace(customerID)
	if sid == "" || cid == "" {
		return errors.New("session_id and stripe_customer_id are required")
	}

	now := s.now()
	return s.repo.UpsertLinkCode(&models.LinkCode{
		SessionID:        sid,
		StripeCustomerID: cid,
		Email:            strings.TrimSpace(email),
		ExpiresAt:        now.Add(models.LinkCodeTTL),
	})
}

// ResolveLinkCode looks up a linking code and enforces its expiry. The
// used flag is advisory and does not block resolution.
func (s *Service) ResolveLinkCode(ctx context.Context, sessionID string) (*models.LinkCode, error) {
	_ = ctx
	sid := strings.TrimSpace(sessionID)
	if sid == "" {
		return nil, ErrLinkCodeNotFound
	}
	code, err := s.repo.GetLinkCode(sid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkCodeNotFound
		}
		return nil, err
	}
	if code.Expired(s.now()) {
		return nil, ErrLinkCodeExpired
	}
	return code, nil
}

// MarkLinkCodeUsed flags a code as consumed after a successful link.
func (s *Service) MarkLinkCodeUsed(ctx context.Context, sessionID string) error {
	_ = ctx
	return s.repo.MarkLinkCodeUsed(strings.TrimSpace(sessionID))
}

// TouchSync stamps the link's last successful role sync.
func (s *Service) TouchSync(ctx context.Context, discordUserID string) error {
	_ = ctx
	return s.repo.TouchSync(strings.TrimSpace(discordUserID), s.now())
}
