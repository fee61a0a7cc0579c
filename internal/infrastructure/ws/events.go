package ws

// Broadcast event types pushed to room members.
const (
	PresenceChanged   = "presence:changed"
	DiceRolled        = "dice:rolled"
	InitiativeUpdated = "initiative:updated"
	MapUpdated        = "map:updated"
	HPChanged         = "hp:changed"
	NoteShared        = "note:shared"
	ChatMessage       = "chat:message"
	CursorMoved       = "cursor:moved"
	SessionResynced   = "session:resynced"

	ErrorEvent     = "error"
	BusyError      = "error.busy"
	RejectedIntent = "error.rejected"
	AuthError      = "error.auth"
	JoinFailed     = "error.join"
	RateLimited    = "error.rate_limited"
)

// Intent types clients may submit.
const (
	IntentDiceRoll = "dice:roll"

	IntentInitiativeStart       = "initiative:start"
	IntentInitiativeNextTurn    = "initiative:nextTurn"
	IntentInitiativeEnd         = "initiative:end"
	IntentInitiativeAddEntry    = "initiative:addEntry"
	IntentInitiativeUpdateEntry = "initiative:updateEntry"
	IntentInitiativeRemoveEntry = "initiative:removeEntry"

	IntentMapLoad        = "map:load"
	IntentMapAddToken    = "map:addToken"
	IntentMapUpdateToken = "map:updateToken"
	IntentMapRemoveToken = "map:removeToken"
	IntentMapClear       = "map:clear"

	IntentHPChanged  = "hp:changed"
	IntentNoteShare  = "note:share"
	IntentChatSend   = "chat:send"
	IntentCursorPing = "cursor:ping"
)

// Sampler-only event types for connection lifecycle.
const (
	EventPresenceJoin  = "presence:join"
	EventPresenceLeave = "presence:leave"
)
