package messaging

import (
	"time"

	"github.com/hearthside/gametable/internal/domain"
)

const (
	SessionsQueue   = "sessions"
	DeadLetterQueue = "dead_letter_queue"
)

type SessionEventData struct {
	CampaignID  string              `json:"campaignId"`
	SessionID   string              `json:"sessionId,omitempty"`
	EventType   string              `json:"eventType"`
	Participant *domain.Participant `json:"participant,omitempty"`
	OccurredAt  time.Time           `json:"occurredAt"`
}
