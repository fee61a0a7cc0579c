package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/hearthside/gametable/internal/domain"
	"github.com/hearthside/gametable/internal/infrastructure/contracts"
	"github.com/hearthside/gametable/internal/infrastructure/messaging"
	"github.com/rabbitmq/amqp091-go"
)

var eventTypeByRoutingKey = map[string]domain.SessionEventType{
	contracts.EventSessionStarted:    domain.EventSessionStarted,
	contracts.EventSessionEnded:      domain.EventSessionEnded,
	contracts.EventParticipantJoined: domain.EventParticipantJoined,
	contracts.EventParticipantLeft:   domain.EventParticipantLeft,
	contracts.EventSessionResynced:   domain.EventSessionResynced,
	contracts.EventJoinRejected:      domain.EventJoinRejected,
}

type sessionConsumer struct {
	rabbitmq *messaging.RabbitMQ
	audit    domain.SessionAuditRepository
}

func NewSessionConsumer(rabbitmq *messaging.RabbitMQ, audit domain.SessionAuditRepository) *sessionConsumer {
	return &sessionConsumer{
		rabbitmq: rabbitmq,
		audit:    audit,
	}
}

func (c *sessionConsumer) Listen() error {
	return c.rabbitmq.ConsumeMessages(messaging.SessionsQueue, func(ctx context.Context, msg amqp091.Delivery) error {
		var message contracts.AmqpMessage
		if err := json.Unmarshal(msg.Body, &message); err != nil {
			log.Printf("Failed to unmarshal message: %v", err)
			return err
		}

		var payload messaging.SessionEventData
		if err := json.Unmarshal(message.Data, &payload); err != nil {
			log.Printf("Failed to unmarshal session event: %v", err)
			return err
		}

		eventType, ok := eventTypeByRoutingKey[msg.RoutingKey]
		if !ok {
			log.Printf("Unknown routing key %s, dropping", msg.RoutingKey)
			return nil
		}

		entry := &domain.SessionAuditLog{
			ID:         uuid.NewString(),
			CampaignID: payload.CampaignID,
			SessionID:  payload.SessionID,
			EventType:  eventType,
			Timestamp:  payload.OccurredAt,
		}
		if payload.Participant != nil {
			entry.Metadata = map[string]any{
				"user_id": payload.Participant.UserID,
				"role":    string(payload.Participant.Role),
			}
		}

		return c.audit.Log(ctx, entry)
	})
}
