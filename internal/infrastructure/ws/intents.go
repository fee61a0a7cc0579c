package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hearthside/gametable/internal/domain"
)

var (
	ErrUnknownIntent = errors.New("unknown intent type")
	ErrBadPayload    = errors.New("malformed intent payload")
)

// Intent is the raw client frame; Payload stays undecoded until the type is
// matched against the closed catalogue below.
type Intent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type DiceRollPayload struct {
	Formula string `json:"formula"`
	Label   string `json:"label,omitempty"`
}

type AddEntryPayload struct {
	Name       string   `json:"name"`
	Score      int      `json:"initiativeScore"`
	Conditions []string `json:"conditions,omitempty"`
}

type UpdateEntryPayload struct {
	EntryID string                  `json:"entryId"`
	Update  domain.InitiativeUpdate `json:"update"`
}

type RemoveEntryPayload struct {
	EntryID string `json:"entryId"`
}

type LoadMapPayload struct {
	MapID string `json:"mapId"`
	Name  string `json:"name"`
}

type AddTokenPayload struct {
	Token domain.Token `json:"token"`
}

type UpdateTokenPayload struct {
	TokenID string             `json:"tokenId"`
	Update  domain.TokenUpdate `json:"update"`
}

type RemoveTokenPayload struct {
	TokenID string `json:"tokenId"`
}

type HPChangePayload struct {
	TargetRef string `json:"targetRef"`
	Delta     int    `json:"delta"`
}

type NoteSharePayload struct {
	Text       string            `json:"text"`
	Visibility domain.Visibility `json:"visibility,omitempty"`
}

type ChatSendPayload struct {
	Text string `json:"text"`
}

type CursorPingPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DecodeIntent parses a client frame and validates the type against the
// catalogue. The payload is checked for shape here and for semantics when
// applied against the authoritative state.
func DecodeIntent(raw []byte) (*Intent, error) {
	var intent Intent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if !knownIntent(intent.Type) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, intent.Type)
	}
	return &intent, nil
}

func knownIntent(t string) bool {
	switch t {
	case IntentDiceRoll,
		IntentInitiativeStart, IntentInitiativeNextTurn, IntentInitiativeEnd,
		IntentInitiativeAddEntry, IntentInitiativeUpdateEntry, IntentInitiativeRemoveEntry,
		IntentMapLoad, IntentMapAddToken, IntentMapUpdateToken, IntentMapRemoveToken, IntentMapClear,
		IntentHPChanged, IntentNoteShare, IntentChatSend, IntentCursorPing:
		return true
	}
	return false
}

// decodePayload unmarshals the payload into dst, treating an absent payload
// as an empty object for intents that need no arguments.
func decodePayload(intent *Intent, dst any) error {
	raw := intent.Payload
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadPayload, intent.Type, err)
	}
	return nil
}
