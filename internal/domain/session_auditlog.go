package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SessionEventType string

const (
	EventSessionStarted    SessionEventType = "session_started"
	EventSessionEnded      SessionEventType = "session_ended"
	EventParticipantJoined SessionEventType = "participant_joined"
	EventParticipantLeft   SessionEventType = "participant_left"
	EventSessionResynced   SessionEventType = "session_resynced"
	EventJoinRejected      SessionEventType = "join_rejected"
)

// SessionAuditLog is the durable trail of session lifecycle events, written
// by the AMQP consumer. Unlike the in-memory event sampler it survives the
// process and is queried by ops tooling, not by the engine itself.
type SessionAuditLog struct {
	ID         string           `bson:"_id" json:"id"`
	CampaignID string           `bson:"campaign_id" json:"campaignId"`
	SessionID  string           `bson:"session_id,omitempty" json:"sessionId,omitempty"`
	EventType  SessionEventType `bson:"event_type" json:"eventType"`
	Timestamp  time.Time        `bson:"timestamp" json:"timestamp"`
	Metadata   map[string]any   `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

type SessionAuditRepository interface {
	Log(ctx context.Context, log *SessionAuditLog) error
	GetByCampaignID(ctx context.Context, campaignID string, limit int) ([]SessionAuditLog, error)
	GetByEventType(ctx context.Context, eventType SessionEventType, from, to time.Time) ([]SessionAuditLog, error)
	DeleteOlderThan(ctx context.Context, before time.Time) error
	EnsureIndexes(ctx context.Context) error
}

func NewParticipantJoinedLog(campaignID, sessionID, userID string, role Role, connectedUsers int) *SessionAuditLog {
	return &SessionAuditLog{
		ID:         uuid.NewString(),
		CampaignID: campaignID,
		SessionID:  sessionID,
		EventType:  EventParticipantJoined,
		Timestamp:  time.Now(),
		Metadata: map[string]any{
			"user_id":         userID,
			"role":            string(role),
			"connected_users": connectedUsers,
		},
	}
}

func NewParticipantLeftLog(campaignID, sessionID, userID string, connectedUsers int) *SessionAuditLog {
	return &SessionAuditLog{
		ID:         uuid.NewString(),
		CampaignID: campaignID,
		SessionID:  sessionID,
		EventType:  EventParticipantLeft,
		Timestamp:  time.Now(),
		Metadata: map[string]any{
			"user_id":         userID,
			"connected_users": connectedUsers,
		},
	}
}

func NewSessionResyncedLog(campaignID string, connectedUsers int, initiative, battleMap bool) *SessionAuditLog {
	return &SessionAuditLog{
		ID:         uuid.NewString(),
		CampaignID: campaignID,
		EventType:  EventSessionResynced,
		Timestamp:  time.Now(),
		Metadata: map[string]any{
			"connected_users": connectedUsers,
			"initiative":      initiative,
			"battle_map":      battleMap,
		},
	}
}

func NewJoinRejectedLog(campaignID, userID, reason string) *SessionAuditLog {
	return &SessionAuditLog{
		ID:         uuid.NewString(),
		CampaignID: campaignID,
		EventType:  EventJoinRejected,
		Timestamp:  time.Now(),
		Metadata: map[string]any{
			"user_id": userID,
			"reason":  reason,
		},
	}
}
