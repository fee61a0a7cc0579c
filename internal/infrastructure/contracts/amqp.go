package contracts

// AmqpMessage is the message structure for AMQP.
type AmqpMessage struct {
	CampaignID string `json:"campaignId"`
	Data       []byte `json:"data"`
}

// Routing keys - using consistent event/command patterns
const (
	EventSessionStarted    = "session.started"
	EventSessionEnded      = "session.ended"
	EventParticipantJoined = "session.participant_joined"
	EventParticipantLeft   = "session.participant_left"
	EventSessionResynced   = "session.resynced"
	EventJoinRejected      = "session.join_rejected"
)
