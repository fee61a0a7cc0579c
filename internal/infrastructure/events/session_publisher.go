package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/hearthside/gametable/internal/domain"
	"github.com/hearthside/gametable/internal/infrastructure/contracts"
	"github.com/hearthside/gametable/internal/infrastructure/messaging"
)

// SessionPublisher mirrors room lifecycle onto the session exchange. Publish
// failures are logged and swallowed: the live session never stalls on the
// broker.
type SessionPublisher struct {
	rabbitmq *messaging.RabbitMQ
}

func NewSessionPublisher(rabbitmq *messaging.RabbitMQ) *SessionPublisher {
	return &SessionPublisher{
		rabbitmq: rabbitmq,
	}
}

func (p *SessionPublisher) SessionStarted(ctx context.Context, campaignID, sessionID string) {
	p.publish(ctx, contracts.EventSessionStarted, messaging.SessionEventData{
		CampaignID: campaignID,
		SessionID:  sessionID,
		EventType:  contracts.EventSessionStarted,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *SessionPublisher) SessionEnded(ctx context.Context, campaignID, sessionID string) {
	p.publish(ctx, contracts.EventSessionEnded, messaging.SessionEventData{
		CampaignID: campaignID,
		SessionID:  sessionID,
		EventType:  contracts.EventSessionEnded,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *SessionPublisher) ParticipantJoined(ctx context.Context, campaignID string, who domain.Participant) {
	p.publish(ctx, contracts.EventParticipantJoined, messaging.SessionEventData{
		CampaignID:  campaignID,
		EventType:   contracts.EventParticipantJoined,
		Participant: &who,
		OccurredAt:  time.Now().UTC(),
	})
}

func (p *SessionPublisher) ParticipantLeft(ctx context.Context, campaignID string, who domain.Participant) {
	p.publish(ctx, contracts.EventParticipantLeft, messaging.SessionEventData{
		CampaignID:  campaignID,
		EventType:   contracts.EventParticipantLeft,
		Participant: &who,
		OccurredAt:  time.Now().UTC(),
	})
}

func (p *SessionPublisher) SessionResynced(ctx context.Context, campaignID string) {
	p.publish(ctx, contracts.EventSessionResynced, messaging.SessionEventData{
		CampaignID: campaignID,
		EventType:  contracts.EventSessionResynced,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *SessionPublisher) JoinRejected(ctx context.Context, campaignID string, who domain.Participant) {
	p.publish(ctx, contracts.EventJoinRejected, messaging.SessionEventData{
		CampaignID:  campaignID,
		EventType:   contracts.EventJoinRejected,
		Participant: &who,
		OccurredAt:  time.Now().UTC(),
	})
}

func (p *SessionPublisher) publish(ctx context.Context, routingKey string, payload messaging.SessionEventData) {
	eventJSON, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", routingKey, err)
		return
	}

	body, err := json.Marshal(contracts.AmqpMessage{
		CampaignID: payload.CampaignID,
		Data:       eventJSON,
	})
	if err != nil {
		log.Printf("Failed to marshal %s message: %v", routingKey, err)
		return
	}

	if err := p.rabbitmq.PublishMessage(ctx, routingKey, body); err != nil {
		log.Printf("Failed to publish %s event: %v", routingKey, err)
	}
}
