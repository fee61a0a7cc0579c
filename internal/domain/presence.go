package domain

import "time"

// Role is a participant's role inside a campaign session.
type Role string

const (
	RoleDM     Role = "dm"
	RolePlayer Role = "player"
)

// PresenceEntry is one connection's record in a room roster. A user with
// several browser tabs open holds one entry per connection.
type PresenceEntry struct {
	ConnID      string    `json:"connId"`
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	Role        Role      `json:"role"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Participant is the identity the authorization collaborator resolves for a
// join attempt.
type Participant struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// RosterSnapshot is the full presence view broadcast on every change.
type RosterSnapshot struct {
	CampaignID string          `json:"campaignId"`
	Entries    []PresenceEntry `json:"entries"`
}

// DMConnected reports whether at least one dm-role entry is present.
func (s RosterSnapshot) DMConnected() bool {
	for _, e := range s.Entries {
		if e.Role == RoleDM {
			return true
		}
	}
	return false
}

// UserCount counts distinct users, collapsing multi-tab connections.
func (s RosterSnapshot) UserCount() int {
	seen := make(map[string]struct{}, len(s.Entries))
	for _, e := range s.Entries {
		seen[e.UserID] = struct{}{}
	}
	return len(seen)
}
