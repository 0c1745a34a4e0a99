package membership

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/archiprisma/memberops/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepository struct {
	links    []models.IdentityLink
	listErr  error
	touched  []string
	touchErr error
}

func (m *memRepository) UpsertIdentityLink(link *models.IdentityLink) error { return nil }

func (m *memRepository) ListIdentityLinks() ([]models.IdentityLink, error) {
	return m.links, m.listErr
}

func (m *memRepository) LinksByCustomer(customerID string) ([]models.IdentityLink, error) {
	var out []models.IdentityLink
	for _, l := range m.links {
		if l.StripeCustomerID == customerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memRepository) TouchSync(discordUserID string, at time.Time) error {
	m.touched = append(m.touched, discordUserID)
	return m.touchErr
}

func (m *memRepository) UpsertLinkCode(code *models.LinkCode) error          { return nil }
func (m *memRepository) GetLinkCode(sessionID string) (*models.LinkCode, error) { return nil, nil }
func (m *memRepository) MarkLinkCodeUsed(sessionID string) error             { return nil }

type stubEvaluator struct {
	entitled map[string]bool
	failFor  map[string]bool
}

func (s *stubEvaluator) IsEntitled(ctx context.Context, customerID string) (bool, error) {
	if s.failFor[customerID] {
		return false, errors.New("billing unavailable")
	}
	return s.entitled[customerID], nil
}

type stubSyncer struct {
	calls   []string
	failFor map[string]bool
}

func (s *stubSyncer) EnsureRole(ctx context.Context, discordUserID string, shouldHold bool, reason string) error {
	s.calls = append(s.calls, discordUserID)
	if s.failFor[discordUserID] {
		return errors.New("gateway error")
	}
	return nil
}

func TestResyncCountsAndTouches(t *testing.T) {
	repo := &memRepository{links: []models.IdentityLink{
		{DiscordUserID: "u1", StripeCustomerID: "cus_1"},
		{DiscordUserID: "u2", StripeCustomerID: "cus_2"},
	}}
	r := NewResyncer(NewService(repo),
		&stubEvaluator{entitled: map[string]bool{"cus_1": true}},
		&stubSyncer{})

	ok, ng, err := r.Resync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 0, ng)
	assert.Equal(t, []string{"u1", "u2"}, repo.touched)
}

func TestResyncIsolatesFailures(t *testing.T) {
	repo := &memRepository{links: []models.IdentityLink{
		{DiscordUserID: "u1", StripeCustomerID: "cus_broken"},
		{DiscordUserID: "u2", StripeCustomerID: "cus_2"},
		{DiscordUserID: "u3", StripeCustomerID: "cus_3"},
	}}
	syncer := &stubSyncer{failFor: map[string]bool{"u3": true}}
	r := NewResyncer(NewService(repo),
		&stubEvaluator{
			entitled: map[string]bool{"cus_2": true},
			failFor:  map[string]bool{"cus_broken": true},
		},
		syncer)

	ok, ng, err := r.Resync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ok)
	assert.Equal(t, 2, ng)
	// The billing failure must not reach the role syncer.
	assert.Equal(t, []string{"u2", "u3"}, syncer.calls)
	assert.Equal(t, []string{"u2"}, repo.touched)
}

func TestResyncListFailureAbortsRun(t *testing.T) {
	repo := &memRepository{listErr: errors.New("db down")}
	r := NewResyncer(NewService(repo), &stubEvaluator{}, &stubSyncer{})

	ok, ng, err := r.Resync(context.Background())
	require.Error(t, err)
	assert.Zero(t, ok)
	assert.Zero(t, ng)
}
