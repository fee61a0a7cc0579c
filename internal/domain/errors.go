package domain

import "errors"

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrNotAuthorized    = errors.New("not authorized for campaign")

	ErrCombatNotActive     = errors.New("combat is not active")
	ErrCombatAlreadyActive = errors.New("combat is already active")
	ErrEntryNotFound       = errors.New("initiative entry not found")
	ErrNoEntries           = errors.New("no initiative entries")

	ErrMapNotActive       = errors.New("no battle map is loaded")
	ErrTokenNotFound      = errors.New("token not found")
	ErrDuplicateToken     = errors.New("token id already on map")
	ErrDuplicateEntry     = errors.New("initiative entry id already present")
	ErrInvalidDiceFormula = errors.New("invalid dice formula")
	ErrMissingDice        = errors.New("dice formula rolls no dice")
	ErrFormulaTooLong     = errors.New("dice formula too long")
	ErrUnknownVisibility  = errors.New("unknown event visibility")
)

// Recoverable reports whether err is an expected intent-level failure that
// must be answered to the sender without touching room state. Anything else
// is treated as an internal fault.
func Recoverable(err error) bool {
	switch {
	case errors.Is(err, ErrCombatNotActive),
		errors.Is(err, ErrCombatAlreadyActive),
		errors.Is(err, ErrEntryNotFound),
		errors.Is(err, ErrNoEntries),
		errors.Is(err, ErrMapNotActive),
		errors.Is(err, ErrTokenNotFound),
		errors.Is(err, ErrDuplicateToken),
		errors.Is(err, ErrDuplicateEntry),
		errors.Is(err, ErrInvalidDiceFormula),
		errors.Is(err, ErrMissingDice),
		errors.Is(err, ErrFormulaTooLong):
		return true
	}
	return false
}
