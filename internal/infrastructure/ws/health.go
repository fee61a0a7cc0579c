package ws

import (
	"context"
	"time"

	"github.com/hearthside/gametable/internal/domain"
)

const (
	shortErrorWindow = 15 * time.Minute
	longErrorWindow  = 60 * time.Minute
)

// SessionSummary is the admin list view of one live room.
type SessionSummary struct {
	CampaignID       string    `json:"campaignId"`
	SessionID        string    `json:"sessionId,omitempty"`
	ConnectedUsers   int       `json:"connectedUsers"`
	DMConnected      bool      `json:"dmConnected"`
	SessionActive    bool      `json:"sessionActive"`
	LastActivityAt   time.Time `json:"lastActivityAt"`
	RecentEventCount int       `json:"recentEventCount"`
	Errors15m        int       `json:"errors15m"`
}

// SessionHealthReport is the detailed view: the summary plus the error trend
// and the authoritative sub-state snapshots.
type SessionHealthReport struct {
	SessionSummary

	Errors60m  int                       `json:"errors60m"`
	Initiative domain.InitiativeSnapshot `json:"initiative"`
	BattleMap  domain.BattleMapSnapshot  `json:"battleMap"`
}

// Summarize reads one room without touching the intent guard; the numbers
// are consistent with each other as of the last published mutation.
func (c *Coordinator) Summarize(ctx context.Context, campaignID string) (SessionSummary, error) {
	room, err := c.Room(campaignID)
	if err != nil {
		return SessionSummary{}, err
	}
	return c.summarizeRoom(ctx, room), nil
}

// SummarizeAll reports every live room, sorted by campaign id.
func (c *Coordinator) SummarizeAll(ctx context.Context) []SessionSummary {
	rooms := c.Rooms()
	out := make([]SessionSummary, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, c.summarizeRoom(ctx, room))
	}
	return out
}

// Report builds the full health report for one campaign.
func (c *Coordinator) Report(ctx context.Context, campaignID string) (SessionHealthReport, error) {
	room, err := c.Room(campaignID)
	if err != nil {
		return SessionHealthReport{}, err
	}

	initiative, battleMap := room.Snapshots()
	return SessionHealthReport{
		SessionSummary: c.summarizeRoom(ctx, room),
		Errors60m:      room.sampler.ErrorsSince(longErrorWindow),
		Initiative:     initiative,
		BattleMap:      battleMap,
	}, nil
}

// Events filters a room's sampled ring. Zero since means everything still
// buffered; empty eventType means every type.
func (c *Coordinator) Events(campaignID, eventType string, since time.Time) ([]domain.SampledEvent, error) {
	room, err := c.Room(campaignID)
	if err != nil {
		return nil, err
	}
	return room.sampler.Query(since, eventType), nil
}

func (c *Coordinator) summarizeRoom(ctx context.Context, room *Room) SessionSummary {
	roster := room.Roster()

	// the campaign's session record is the truth for "active"; combat state
	// is only the fallback when the record cannot be read
	initiative, _ := room.Snapshots()
	sessionActive := initiative.IsActive
	if campaign, err := c.directory.Campaign(ctx, room.CampaignID); err == nil {
		sessionActive = campaign.SessionInProgress
	}

	return SessionSummary{
		CampaignID:       room.CampaignID,
		SessionID:        room.SessionID(),
		ConnectedUsers:   roster.UserCount(),
		DMConnected:      roster.DMConnected(),
		SessionActive:    sessionActive,
		LastActivityAt:   room.LastActivity(),
		RecentEventCount: room.sampler.CountSince(time.Now().UTC().Add(-shortErrorWindow)),
		Errors15m:        room.sampler.ErrorsSince(shortErrorWindow),
	}
}
