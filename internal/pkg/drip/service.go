package drip

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/archiprisma/memberops/app/models"
	"github.com/archiprisma/memberops/internal/pkg/mail"
	"gorm.io/gorm"
)

// Mailer abstracts mail delivery for the campaign.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer delivers campaign mail through the shared SMTP sender with
// retries.
type SMTPMailer struct{}

func (SMTPMailer) Send(to, subject, body string) error {
	return mail.SendMailWithRetry(to, subject, body)
}

// RunReport summarizes one ProcessLeads sweep.
type RunReport struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// LeadStatus is the per-lead progress view.
type LeadStatus struct {
	Email          string     `json:"email"`
	Status         string     `json:"status"`
	CompletedSteps string     `json:"completed_steps"`
	JoinedAt       time.Time  `json:"joined_at"`
	LastSentAt     *time.Time `json:"last_sent_at,omitempty"`
}

// Service captures leads and advances them through the mail sequence.
type Service struct {
	repo    Repository
	mailer  Mailer
	baseURL string
	now     func() time.Time
}

// NewService creates a drip service. baseURL feeds unsubscribe links.
func NewService(repo Repository, mailer Mailer, baseURL string) *Service {
	return &Service{repo: repo, mailer: mailer, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

// NewServiceFromDB creates a drip service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, baseURL string) *Service {
	return NewService(NewRepository(db), SMTPMailer{}, baseURL)
}

// Capture upserts the lead and sends the welcome mail right away. A mail
// failure does not fail the capture.
func (s *Service) Capture(ctx context.Context, email, name, company, source string) (*models.Lead, error) {
	_ = ctx
	addr := strings.ToLower(strings.TrimSpace(email))
	if addr == "" {
		return nil, errors.New("email is required")
	}

	lead := &models.Lead{
		Email:    addr,
		Name:     strings.TrimSpace(name),
		Company:  strings.TrimSpace(company),
		Source:   strings.TrimSpace(source),
		Status:   models.LeadStatusNew,
		JoinedAt: s.now(),
	}
	if err := s.repo.UpsertLead(lead); err != nil {
		return nil, err
	}

	welcome := Steps[0]
	if lead.Status != models.LeadStatusUnsubscribed && !lead.StepDone(welcome.Number) {
		if err := s.send(lead, welcome); err != nil {
			log.Printf("[drip] welcome mail failed lead=%s: %v", addr, err)
		} else {
			if err := s.repo.SaveLead(lead); err != nil {
				log.Printf("[drip] lead save failed lead=%s: %v", addr, err)
			}
		}
	}
	return lead, nil
}

// Unsubscribe stops all future campaign mail for the address.
func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	_ = ctx
	addr := strings.ToLower(strings.TrimSpace(email))
	if addr == "" {
		return errors.New("email is required")
	}
	return s.repo.MarkUnsubscribed(addr)
}

// ProcessLeads sends at most one due step per lead per run, sequentially.
func (s *Service) ProcessLeads(ctx context.Context) (*RunReport, error) {
	_ = ctx
	leads, err := s.repo.ListLeads()
	if err != nil {
		return nil, err
	}

	report := &RunReport{}
	now := s.now()
	for i := range leads {
		lead := &leads[i]
		if lead.Status == models.LeadStatusUnsubscribed {
			report.Skipped++
			continue
		}
		step, due := NextDueStep(lead, now)
		if !due {
			report.Skipped++
			continue
		}
		if err := s.send(lead, step); err != nil {
			log.Printf("[drip] step %d failed lead=%s: %v", step.Number, lead.Email, err)
			report.Failed++
			continue
		}
		if err := s.repo.SaveLead(lead); err != nil {
			log.Printf("[drip] lead save failed lead=%s: %v", lead.Email, err)
			report.Failed++
			continue
		}
		report.Sent++
	}
	log.Printf("[drip] run done sent=%d skipped=%d failed=%d", report.Sent, report.Skipped, report.Failed)
	return report, nil
}

// Status reports per-lead campaign progress.
func (s *Service) Status(ctx context.Context) ([]LeadStatus, error) {
	_ = ctx
	leads, err := s.repo.ListLeads()
	if err != nil {
		return nil, err
	}
	out := make([]LeadStatus, 0, len(leads))
	for _, lead := range leads {
		out = append(out, LeadStatus{
			Email:          lead.Email,
			Status:         lead.Status,
			CompletedSteps: lead.CompletedSteps,
			JoinedAt:       lead.JoinedAt,
			LastSentAt:     lead.LastSentAt,
		})
	}
	return out, nil
}

func (s *Service) send(lead *models.Lead, step Step) error {
	unsub := s.baseURL + "/api/unsubscribe?email=" + url.QueryEscape(lead.Email)
	if err := s.mailer.Send(lead.Email, step.Subject, step.Body(lead.Name, unsub)); err != nil {
		return err
	}
	now := s.now()
	lead.MarkStepDone(step.Number)
	lead.LastSentAt = &now
	return nil
}
