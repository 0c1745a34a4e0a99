package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWebhookEventProcessedCleanly(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		event WebhookEvent
		want  bool
	}{
		{
			name:  "unprocessed event",
			event: WebhookEvent{},
			want:  false,
		},
		{
			name:  "processed without error",
			event: WebhookEvent{ProcessedAt: &now},
			want:  true,
		},
		{
			name:  "processed with error",
			event: WebhookEvent{ProcessedAt: &now, ProcessingError: "discord unavailable"},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.ProcessedCleanly())
		})
	}
}
