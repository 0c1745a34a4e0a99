package membership

import (
	"context"
	"testing"
	"time"

	"github.com/archiprisma/memberops/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type codeRepository struct {
	memRepository
	codes map[string]*models.LinkCode
	used  []string
}

func (c *codeRepository) UpsertLinkCode(code *models.LinkCode) error {
	if c.codes == nil {
		c.codes = make(map[string]*models.LinkCode)
	}
	c.codes[code.SessionID] = code
	return nil
}

func (c *codeRepository) GetLinkCode(sessionID string) (*models.LinkCode, error) {
	code, ok := c.codes[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return code, nil
}

func (c *codeRepository) MarkLinkCodeUsed(sessionID string) error {
	c.used = append(c.used, sessionID)
	return nil
}

func TestRecordAndResolveLinkCode(t *testing.T) {
	repo := &codeRepository{}
	svc := NewService(repo)

	require.NoError(t, svc.RecordLinkCode(context.Background(), "cs_1", "cus_1", "a@example.com"))

	code, err := svc.ResolveLinkCode(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", code.StripeCustomerID)
	assert.WithinDuration(t, time.Now().Add(models.LinkCodeTTL), code.ExpiresAt, time.Minute)
}

func TestResolveLinkCodeExpired(t *testing.T) {
	repo := &codeRepository{codes: map[string]*models.LinkCode{
		"cs_old": {
			SessionID:        "cs_old",
			StripeCustomerID: "cus_1",
			ExpiresAt:        time.Now().Add(-time.Hour),
		},
	}}
	svc := NewService(repo)

	_, err := svc.ResolveLinkCode(context.Background(), "cs_old")
	assert.ErrorIs(t, err, ErrLinkCodeExpired)
}

func TestResolveLinkCodeNotFound(t *testing.T) {
	svc := NewService(&codeRepository{})

	_, err := svc.ResolveLinkCode(context.Background(), "cs_missing")
	assert.ErrorIs(t, err, ErrLinkCodeNotFound)
}

func TestUpsertLinkValidates(t *testing.T) {
	svc := NewService(&codeRepository{})

	_, err := svc.UpsertLink(context.Background(), "", "cus_1", "")
	assert.Error(t, err)

	_, err = svc.UpsertLink(context.Background(), "u1", "", "")
	assert.Error(t, err)
}
