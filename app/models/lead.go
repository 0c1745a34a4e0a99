package models

import (
	"strconv"
	"strings"
	"time"
)

const (
	LeadStatusNew          = "new"
	LeadStatusUnsubscribed = "unsubscribed"
)

// Lead is a captured prospect enrolled in the email drip campaign.
// CompletedSteps holds the already-sent step numbers as a comma list.
type Lead struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Email          string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"email"`
	Name           string     `gorm:"type:varchar(191)" json:"name"`
	Company        string     `gorm:"type:varchar(191)" json:"company"`
	Source         string     `gorm:"type:varchar(64)" json:"source"`
	Status         string     `gorm:"type:varchar(20);not null;default:'new';index" json:"status"`
	CompletedSteps string     `gorm:"type:varchar(191);not null;default:''" json:"completed_steps"`
	JoinedAt       time.Time  `gorm:"type:timestamp;not null" json:"joined_at"`
	LastSentAt     *time.Time `gorm:"type:timestamp;default:null" json:"last_sent_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// StepDone reports whether the given drip step was already sent.
func (l *Lead) StepDone(step int) bool {
	for _, s := range strings.Split(l.CompletedSteps, ",") {
		if s == strconv.Itoa(step) {
			return true
		}
	}
	return false
}

// MarkStepDone records a sent drip step.
func (l *Lead) MarkStepDone(step int) {
	if l.StepDone(step) {
		return
	}
	if l.CompletedSteps == "" {
		l.CompletedSteps = strconv.Itoa(step)
		return
	}
	l.CompletedSteps += "," + strconv.Itoa(step)
}
