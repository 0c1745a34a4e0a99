package drip

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/archiprisma/memberops/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memRepository struct {
	leads map[string]*models.Lead
}

func newMemRepository() *memRepository {
	return &memRepository{leads: make(map[string]*models.Lead)}
}

func (m *memRepository) UpsertLead(lead *models.Lead) error {
	if existing, ok := m.leads[lead.Email]; ok {
		existing.Name = lead.Name
		existing.Company = lead.Company
		existing.Source = lead.Source
		*lead = *existing
		return nil
	}
	cp := *lead
	m.leads[lead.Email] = &cp
	return nil
}

func (m *memRepository) GetLeadByEmail(email string) (*models.Lead, error) {
	if lead, ok := m.leads[email]; ok {
		return lead, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memRepository) ListLeads() ([]models.Lead, error) {
	var out []models.Lead
	for _, lead := range m.leads {
		out = append(out, *lead)
	}
	return out, nil
}

func (m *memRepository) SaveLead(lead *models.Lead) error {
	cp := *lead
	m.leads[lead.Email] = &cp
	return nil
}

func (m *memRepository) MarkUnsubscribed(email string) error {
	if lead, ok := m.leads[email]; ok {
		lead.Status = models.LeadStatusUnsubscribed
	}
	return nil
}

type memMailer struct {
	sent []string
	err  error
}

func (m *memMailer) Send(to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to+"|"+subject)
	return nil
}

func newTestService(repo Repository, mailer Mailer, now time.Time) *Service {
	svc := NewService(repo, mailer, "https://example.test")
	svc.now = func() time.Time { return now }
	return svc
}

func TestCaptureSendsWelcomeImmediately(t *testing.T) {
	repo := newMemRepository()
	mailer := &memMailer{}
	svc := newTestService(repo, mailer, time.Now())

	lead, err := svc.Capture(context.Background(), "Lead@Example.com", "山田", "", "lp")
	require.NoError(t, err)
	assert.Equal(t, "lead@example.com", lead.Email)
	assert.True(t, lead.StepDone(1))
	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0], "lead@example.com")
}

func TestCaptureToleratesMailFailure(t *testing.T) {
	repo := newMemRepository()
	mailer := &memMailer{err: errors.New("smtp down")}
	svc := newTestService(repo, mailer, time.Now())

	lead, err := svc.Capture(context.Background(), "lead@example.com", "", "", "lp")
	require.NoError(t, err)
	assert.False(t, lead.StepDone(1))
}

func TestNextDueStepHonorsDelays(t *testing.T) {
	joined := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	lead := &models.Lead{Email: "l@example.com", JoinedAt: joined, Status: models.LeadStatusNew}
	lead.MarkStepDone(1)

	// Day 1: step 2 needs 2 days, nothing due.
	_, due := NextDueStep(lead, joined.Add(24*time.Hour))
	assert.False(t, due)

	// Day 2: step 2 is due.
	step, due := NextDueStep(lead, joined.Add(48*time.Hour))
	require.True(t, due)
	assert.Equal(t, 2, step.Number)

	// Day 6 with step 2 done: step 3 (5 days) is due, later steps are not.
	lead.MarkStepDone(2)
	step, due = NextDueStep(lead, joined.Add(6*24*time.Hour))
	require.True(t, due)
	assert.Equal(t, 3, step.Number)
}

func TestProcessLeadsSendsOneStepPerRun(t *testing.T) {
	repo := newMemRepository()
	mailer := &memMailer{}
	joined := time.Now().Add(-30 * 24 * time.Hour)
	repo.leads["l@example.com"] = &models.Lead{
		Email:    "l@example.com",
		Status:   models.LeadStatusNew,
		JoinedAt: joined,
	}
	svc := newTestService(repo, mailer, time.Now())

	report, err := svc.ProcessLeads(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	require.Len(t, mailer.sent, 1)

	lead, err := repo.GetLeadByEmail("l@example.com")
	require.NoError(t, err)
	assert.True(t, lead.StepDone(1))
	assert.False(t, lead.StepDone(2))
}

func TestProcessLeadsSkipsUnsubscribed(t *testing.T) {
	repo := newMemRepository()
	mailer := &memMailer{}
	repo.leads["l@example.com"] = &models.Lead{
		Email:    "l@example.com",
		Status:   models.LeadStatusUnsubscribed,
		JoinedAt: time.Now().Add(-10 * 24 * time.Hour),
	}
	svc := newTestService(repo, mailer, time.Now())

	report, err := svc.ProcessLeads(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Sent)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, mailer.sent)
}

func TestStepSequenceDelays(t *testing.T) {
	wantDelays := []int{0, 2, 5, 8, 12, 16, 21}
	require.Len(t, Steps, len(wantDelays))
	for i, step := range Steps {
		assert.Equal(t, i+1, step.Number)
		assert.Equal(t, wantDelays[i], step.DelayDays)
	}
}
