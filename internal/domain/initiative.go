package domain

import (
	"sort"

	"github.com/google/uuid"
)

// InitiativeEntry is one combatant in the turn order. IsActive marks the
// entry whose turn it currently is; exactly one entry is active while combat
// runs.
type InitiativeEntry struct {
	ID         string   `json:"entryId"`
	Name       string   `json:"name"`
	Score      int      `json:"initiativeScore"`
	IsActive   bool     `json:"isActive"`
	Conditions []string `json:"conditions"`

	seq int // insertion order, stable tie-break for equal scores
}

// InitiativeUpdate carries the fields an initiative:updateEntry intent may
// change. Nil fields are left untouched.
type InitiativeUpdate struct {
	Name       *string   `json:"name,omitempty"`
	Score      *int      `json:"initiativeScore,omitempty"`
	Conditions *[]string `json:"conditions,omitempty"`
}

// InitiativeState is the authoritative turn-order sub-state for one campaign.
// Turn order is entries sorted descending by score, ties broken by insertion
// order. While inactive, round is 0 and no entry is current.
type InitiativeState struct {
	active    bool
	round     int
	entries   []InitiativeEntry
	currentID string
	nextSeq   int

	// position just past the removed current entry, so the following
	// NextTurn lands on the next-highest combatant instead of erroring
	resumeScore int
	resumeSeq   int
	resume      bool
}

// InitiativeSnapshot is the wire form broadcast after every mutation.
type InitiativeSnapshot struct {
	IsActive bool              `json:"isActive"`
	Round    int               `json:"round"`
	Entries  []InitiativeEntry `json:"entries"`
}

func NewInitiativeState() *InitiativeState {
	return &InitiativeState{}
}

// Snapshot returns the full current sub-state in turn order.
func (s *InitiativeState) Snapshot() InitiativeSnapshot {
	ordered := s.ordered()
	out := make([]InitiativeEntry, len(ordered))
	for i, e := range ordered {
		e.IsActive = s.active && e.ID == s.currentID
		if e.Conditions == nil {
			e.Conditions = []string{}
		}
		out[i] = e
	}
	return InitiativeSnapshot{IsActive: s.active, Round: s.round, Entries: out}
}

// StartCombat activates the order at round 1 with the highest-score entry
// current. Entries may be added before or after starting.
func (s *InitiativeState) StartCombat() (InitiativeSnapshot, error) {
	if s.active {
		return s.Snapshot(), ErrCombatAlreadyActive
	}
	if len(s.entries) == 0 {
		return s.Snapshot(), ErrNoEntries
	}

	s.active = true
	s.round = 1
	s.resume = false
	s.currentID = s.ordered()[0].ID
	return s.Snapshot(), nil
}

// EndCombat deactivates the order. Entries are kept so combat can restart.
func (s *InitiativeState) EndCombat() (InitiativeSnapshot, error) {
	if !s.active {
		return s.Snapshot(), ErrCombatNotActive
	}

	s.active = false
	s.round = 0
	s.currentID = ""
	s.resume = false
	return s.Snapshot(), nil
}

func (s *InitiativeState) AddEntry(name string, score int, conditions []string) (InitiativeSnapshot, error) {
	entry := InitiativeEntry{
		ID:         uuid.NewString(),
		Name:       name,
		Score:      score,
		Conditions: conditions,
		seq:        s.nextSeq,
	}
	s.nextSeq++
	s.entries = append(s.entries, entry)
	return s.Snapshot(), nil
}

func (s *InitiativeState) UpdateEntry(entryID string, update InitiativeUpdate) (InitiativeSnapshot, error) {
	idx := s.indexOf(entryID)
	if idx < 0 {
		return s.Snapshot(), ErrEntryNotFound
	}

	e := &s.entries[idx]
	if update.Name != nil {
		e.Name = *update.Name
	}
	if update.Score != nil {
		e.Score = *update.Score
	}
	if update.Conditions != nil {
		e.Conditions = *update.Conditions
	}
	return s.Snapshot(), nil
}

// RemoveEntry drops a combatant. Removing the current entry records its slot
// so the next NextTurn resumes with the next-highest score; removing the last
// entry while active ends combat.
func (s *InitiativeState) RemoveEntry(entryID string) (InitiativeSnapshot, error) {
	idx := s.indexOf(entryID)
	if idx < 0 {
		return s.Snapshot(), ErrEntryNotFound
	}

	removed := s.entries[idx]
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)

	if s.active && removed.ID == s.currentID {
		s.currentID = ""
		s.resume = true
		s.resumeScore = removed.Score
		s.resumeSeq = removed.seq
	}

	if s.active && len(s.entries) == 0 {
		s.active = false
		s.round = 0
		s.currentID = ""
		s.resume = false
	}
	return s.Snapshot(), nil
}

// NextTurn advances to the next combatant in descending-score order,
// wrapping past the lowest entry into a new round.
func (s *InitiativeState) NextTurn() (InitiativeSnapshot, error) {
	if !s.active {
		return s.Snapshot(), ErrCombatNotActive
	}
	if len(s.entries) == 0 {
		s.active = false
		s.round = 0
		s.currentID = ""
		return s.Snapshot(), nil
	}

	ordered := s.ordered()

	if s.currentID == "" {
		// current was removed mid-turn; land on the entry that followed it
		next, wrapped := s.firstAfter(ordered, s.resumeScore, s.resumeSeq)
		s.resume = false
		s.currentID = next.ID
		if wrapped {
			s.round++
		}
		return s.Snapshot(), nil
	}

	for i, e := range ordered {
		if e.ID != s.currentID {
			continue
		}
		if i+1 < len(ordered) {
			s.currentID = ordered[i+1].ID
		} else {
			s.currentID = ordered[0].ID
			s.round++
		}
		return s.Snapshot(), nil
	}

	// current id vanished without the removal bookkeeping firing; recover
	// at the top of the order rather than failing the room
	s.currentID = ordered[0].ID
	return s.Snapshot(), nil
}

// Active reports whether combat is running.
func (s *InitiativeState) Active() bool {
	return s.active
}

// Round returns the current round, 0 while inactive.
func (s *InitiativeState) Round() int {
	return s.round
}

// CurrentEntry returns the active combatant while combat runs.
func (s *InitiativeState) CurrentEntry() (InitiativeEntry, bool) {
	idx := s.indexOf(s.currentID)
	if !s.active || idx < 0 {
		return InitiativeEntry{}, false
	}
	return s.entries[idx], true
}

func (s *InitiativeState) indexOf(entryID string) int {
	for i, e := range s.entries {
		if e.ID == entryID {
			return i
		}
	}
	return -1
}

func (s *InitiativeState) ordered() []InitiativeEntry {
	ordered := make([]InitiativeEntry, len(s.entries))
	copy(ordered, s.entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].seq < ordered[j].seq
	})
	return ordered
}

// firstAfter finds the first entry positioned after (score, seq) in turn
// order, wrapping to the top when the removed entry sat last.
func (s *InitiativeState) firstAfter(ordered []InitiativeEntry, score, seq int) (InitiativeEntry, bool) {
	for _, e := range ordered {
		if e.Score < score || (e.Score == score && e.seq > seq) {
			return e, false
		}
	}
	return ordered[0], true
}
