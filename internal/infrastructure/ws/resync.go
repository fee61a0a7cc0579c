package ws

import (
	"context"
	"time"

	"github.com/hearthside/gametable/internal/domain"
	"github.com/hearthside/gametable/internal/infrastructure/logging"
)

// ResyncResult reports what a forced resync pushed out.
type ResyncResult struct {
	CampaignID     string        `json:"campaignId"`
	Success        bool          `json:"success"`
	Resynced       ResyncPayload `json:"resynced"`
	ConnectedUsers int           `json:"connectedUsers"`
	IssuedAt       time.Time     `json:"issuedAt"`
}

// Resync re-broadcasts the authoritative sub-states to every connection in
// the room. It mutates nothing, so it bypasses the intent guard; an empty
// roster succeeds with nothing to push.
func (c *Coordinator) Resync(ctx context.Context, campaignID string) (ResyncResult, error) {
	room, err := c.Room(campaignID)
	if err != nil {
		return ResyncResult{}, err
	}

	// both sub-states are always re-pushed as a unit
	resynced := ResyncPayload{Initiative: true, BattleMap: true}
	result := ResyncResult{
		CampaignID:     campaignID,
		Success:        true,
		Resynced:       resynced,
		ConnectedUsers: room.Roster().UserCount(),
		IssuedAt:       time.Now().UTC(),
	}

	if result.ConnectedUsers > 0 {
		initiative, battleMap := room.Snapshots()
		room.broadcast(NewInitiativeUpdated(campaignID, initiative))
		room.broadcast(NewMapUpdated(campaignID, battleMap))
		room.broadcast(NewSessionResynced(campaignID, resynced))
	}

	room.sampler.Record(domain.SampledEvent{
		Timestamp:      result.IssuedAt,
		SessionID:      room.SessionID(),
		CampaignID:     campaignID,
		EventType:      SessionResynced,
		Visibility:     domain.VisibilityPublic,
		PayloadSummary: "forced resync",
		Success:        true,
	})
	c.metrics.ResyncIssued()
	c.logger.Info(logging.Session, logging.Resync, "session resynced", map[logging.ExtraKey]any{
		logging.CampaignID: campaignID,
	})

	if c.notifier != nil {
		c.notifier.SessionResynced(ctx, campaignID)
	}
	return result, nil
}
