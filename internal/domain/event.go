package domain

import "time"

// Visibility controls which roster roles receive a broadcast or may read a
// sampled event's payload summary.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityDMOnly  Visibility = "dm-only"
)

// SampledEvent is one diagnostic record in a campaign's bounded event ring.
// It is a lossy trace for health tooling, not an audit trail.
type SampledEvent struct {
	Timestamp      time.Time  `json:"ts"`
	SessionID      string     `json:"sessionId,omitempty"`
	CampaignID     string     `json:"campaignId"`
	EventType      string     `json:"eventType"`
	ActorUserID    string     `json:"actorUserId,omitempty"`
	Visibility     Visibility `json:"visibility"`
	PayloadSummary string     `json:"payloadSummary,omitempty"`
	Success        bool       `json:"success"`
}

const payloadSummaryLimit = 120

// SummarizePayload truncates a payload description to the sampler's budget.
// Summaries are diagnostic, never a source of truth.
func SummarizePayload(s string) string {
	if len(s) <= payloadSummaryLimit {
		return s
	}
	return s[:payloadSummaryLimit-3] + "..."
}
