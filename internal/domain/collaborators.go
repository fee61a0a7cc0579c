package domain

import "context"

// Campaign is the reference view of a campaign the engine needs: whether it
// exists and whether a session record is currently in progress. The CRUD
// layer owns the full record.
type Campaign struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ActiveSessionID   string `json:"activeSessionId,omitempty"`
	SessionInProgress bool   `json:"sessionInProgress"`
}

// EntityInfo resolves a battle-map entity reference to display data.
type EntityInfo struct {
	Ref      string `json:"ref"`
	Name     string `json:"name"`
	Portrait string `json:"portrait,omitempty"`
}

// CampaignDirectory is the read-only persistence collaborator: campaign
// lookups and entity-reference resolution. Implementations live outside the
// engine (the default adapter is MongoDB-backed).
type CampaignDirectory interface {
	Campaign(ctx context.Context, campaignID string) (*Campaign, error)
	ResolveEntity(ctx context.Context, campaignID, ref string) (*EntityInfo, error)
}

// Authorizer is the auth collaborator: may this user join this campaign's
// room, and with what role. A failed check must happen before any roster
// mutation or state exposure.
type Authorizer interface {
	Authorize(ctx context.Context, campaignID, memberToken, username string) (*Participant, error)
}
