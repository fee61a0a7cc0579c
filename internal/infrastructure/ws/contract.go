package ws

import (
	"time"

	"github.com/hearthside/gametable/internal/domain"
)

// Envelope is the wire frame for every broadcast and error push. Data always
// carries the full canonical sub-state for state events, never a diff, so
// out-of-order delivery self-heals on the client.
type Envelope struct {
	Type       string `json:"type"`
	CampaignID string `json:"campaignId"`
	Data       any    `json:"data"`

	// visibility restricts delivery by roster role at broadcast time
	visibility domain.Visibility
}

// Payload structs
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Retry   bool   `json:"retry,omitempty"`
	Intent  string `json:"intent,omitempty"`
}

type HPChangedPayload struct {
	TargetRef string             `json:"targetRef"`
	Delta     int                `json:"delta"`
	Actor     domain.Participant `json:"actor"`
}

type NotePayload struct {
	Text       string             `json:"text"`
	Author     domain.Participant `json:"author"`
	Visibility domain.Visibility  `json:"visibility"`
	SharedAt   time.Time          `json:"sharedAt"`
}

type ChatPayload struct {
	Text   string             `json:"text"`
	Author domain.Participant `json:"author"`
	SentAt time.Time          `json:"sentAt"`
}

type CursorPayload struct {
	UserID string  `json:"userId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type ResyncPayload struct {
	Initiative bool `json:"initiative"`
	BattleMap  bool `json:"battleMap"`
}

func NewPresenceChanged(campaignID string, roster domain.RosterSnapshot) *Envelope {
	return &Envelope{
		Type:       PresenceChanged,
		CampaignID: campaignID,
		Data:       roster,
		visibility: domain.VisibilityPublic,
	}
}

func NewDiceRolled(campaignID string, result domain.DiceResult) *Envelope {
	return &Envelope{
		Type:       DiceRolled,
		CampaignID: campaignID,
		Data:       result,
		visibility: domain.VisibilityPublic,
	}
}

func NewInitiativeUpdated(campaignID string, snap domain.InitiativeSnapshot) *Envelope {
	return &Envelope{
		Type:       InitiativeUpdated,
		CampaignID: campaignID,
		Data:       snap,
		visibility: domain.VisibilityPublic,
	}
}

func NewMapUpdated(campaignID string, snap domain.BattleMapSnapshot) *Envelope {
	return &Envelope{
		Type:       MapUpdated,
		CampaignID: campaignID,
		Data:       snap,
		visibility: domain.VisibilityPublic,
	}
}

func NewHPChanged(campaignID string, payload HPChangedPayload) *Envelope {
	return &Envelope{
		Type:       HPChanged,
		CampaignID: campaignID,
		Data:       payload,
		visibility: domain.VisibilityPublic,
	}
}

func NewNoteShared(campaignID string, payload NotePayload) *Envelope {
	return &Envelope{
		Type:       NoteShared,
		CampaignID: campaignID,
		Data:       payload,
		visibility: payload.Visibility,
	}
}

func NewChatMessage(campaignID string, payload ChatPayload) *Envelope {
	return &Envelope{
		Type:       ChatMessage,
		CampaignID: campaignID,
		Data:       payload,
		visibility: domain.VisibilityPublic,
	}
}

func NewCursorMoved(campaignID string, payload CursorPayload) *Envelope {
	return &Envelope{
		Type:       CursorMoved,
		CampaignID: campaignID,
		Data:       payload,
		visibility: domain.VisibilityPublic,
	}
}

func NewSessionResynced(campaignID string, payload ResyncPayload) *Envelope {
	return &Envelope{
		Type:       SessionResynced,
		CampaignID: campaignID,
		Data:       payload,
		visibility: domain.VisibilityPublic,
	}
}

func NewRejectedIntent(campaignID, intent, message string) *Envelope {
	return &Envelope{
		Type:       RejectedIntent,
		CampaignID: campaignID,
		Data: ErrorPayload{
			Code:    "INTENT_REJECTED",
			Message: message,
			Intent:  intent,
			Retry:   false,
		},
	}
}

func NewBusyError(campaignID, intent string) *Envelope {
	return &Envelope{
		Type:       BusyError,
		CampaignID: campaignID,
		Data: ErrorPayload{
			Code:    "ROOM_BUSY",
			Message: "Another action is being applied, retry shortly",
			Intent:  intent,
			Retry:   true,
		},
	}
}

func NewError(campaignID, message string) *Envelope {
	return &Envelope{
		Type:       ErrorEvent,
		CampaignID: campaignID,
		Data: ErrorPayload{
			Message: message,
			Retry:   false,
		},
	}
}

func NewAuthError(campaignID, message string) *Envelope {
	return &Envelope{
		Type:       AuthError,
		CampaignID: campaignID,
		Data: ErrorPayload{
			Code:    "AUTH_FAILED",
			Message: message,
			Retry:   true,
		},
	}
}

func NewJoinFailed(campaignID, reason string) *Envelope {
	return &Envelope{
		Type:       JoinFailed,
		CampaignID: campaignID,
		Data: ErrorPayload{
			Code:    "JOIN_FAILED",
			Message: reason,
			Retry:   true,
		},
	}
}
