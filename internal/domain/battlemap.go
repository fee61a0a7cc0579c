package domain

// Position is a token's placement on the battle map grid.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Token is a battle-map marker referencing a character, NPC or enemy entity
// owned by the campaign CRUD layer. Only the reference and transient combat
// fields live here, never the canonical entity record.
type Token struct {
	ID         string   `json:"tokenId"`
	EntityRef  string   `json:"entityRef"`
	Name       string   `json:"name"`
	Position   Position `json:"position"`
	HPDelta    int      `json:"hpDelta"`
	Conditions []string `json:"conditions"`
}

// TokenUpdate carries the fields a map:updateToken intent may change.
type TokenUpdate struct {
	Name       *string   `json:"name,omitempty"`
	Position   *Position `json:"position,omitempty"`
	HPDelta    *int      `json:"hpDelta,omitempty"`
	Conditions *[]string `json:"conditions,omitempty"`
}

// BattleMapState is the authoritative battle-map sub-state for one campaign.
// Token ids are unique within the loaded map.
type BattleMapState struct {
	active  bool
	mapID   string
	mapName string
	tokens  []Token
}

// BattleMapSnapshot is the wire form broadcast after every mutation.
type BattleMapSnapshot struct {
	IsActive bool    `json:"isActive"`
	MapID    string  `json:"mapId,omitempty"`
	Name     string  `json:"name,omitempty"`
	Tokens   []Token `json:"tokens"`
}

func NewBattleMapState() *BattleMapState {
	return &BattleMapState{}
}

func (s *BattleMapState) Snapshot() BattleMapSnapshot {
	tokens := make([]Token, len(s.tokens))
	copy(tokens, s.tokens)
	for i := range tokens {
		if tokens[i].Conditions == nil {
			tokens[i].Conditions = []string{}
		}
	}
	return BattleMapSnapshot{
		IsActive: s.active,
		MapID:    s.mapID,
		Name:     s.mapName,
		Tokens:   tokens,
	}
}

// LoadMap activates a map. Loading a different map drops the previous
// tokens; reloading the same map keeps them.
func (s *BattleMapState) LoadMap(mapID, name string) (BattleMapSnapshot, error) {
	if !s.active || s.mapID != mapID {
		s.tokens = nil
	}
	s.active = true
	s.mapID = mapID
	s.mapName = name
	return s.Snapshot(), nil
}

func (s *BattleMapState) AddToken(token Token) (BattleMapSnapshot, error) {
	if !s.active {
		return s.Snapshot(), ErrMapNotActive
	}
	if token.ID == "" {
		return s.Snapshot(), ErrTokenNotFound
	}
	if s.indexOf(token.ID) >= 0 {
		return s.Snapshot(), ErrDuplicateToken
	}

	s.tokens = append(s.tokens, token)
	return s.Snapshot(), nil
}

func (s *BattleMapState) UpdateToken(tokenID string, update TokenUpdate) (BattleMapSnapshot, error) {
	if !s.active {
		return s.Snapshot(), ErrMapNotActive
	}
	idx := s.indexOf(tokenID)
	if idx < 0 {
		return s.Snapshot(), ErrTokenNotFound
	}

	t := &s.tokens[idx]
	if update.Name != nil {
		t.Name = *update.Name
	}
	if update.Position != nil {
		t.Position = *update.Position
	}
	if update.HPDelta != nil {
		t.HPDelta = *update.HPDelta
	}
	if update.Conditions != nil {
		t.Conditions = *update.Conditions
	}
	return s.Snapshot(), nil
}

func (s *BattleMapState) RemoveToken(tokenID string) (BattleMapSnapshot, error) {
	if !s.active {
		return s.Snapshot(), ErrMapNotActive
	}
	idx := s.indexOf(tokenID)
	if idx < 0 {
		return s.Snapshot(), ErrTokenNotFound
	}

	s.tokens = append(s.tokens[:idx], s.tokens[idx+1:]...)
	return s.Snapshot(), nil
}

// ClearMap removes all tokens and deactivates the map.
func (s *BattleMapState) ClearMap() (BattleMapSnapshot, error) {
	s.active = false
	s.mapID = ""
	s.mapName = ""
	s.tokens = nil
	return s.Snapshot(), nil
}

// Active reports whether a map is loaded.
func (s *BattleMapState) Active() bool {
	return s.active
}

func (s *BattleMapState) indexOf(tokenID string) int {
	for i, t := range s.tokens {
		if t.ID == tokenID {
			return i
		}
	}
	return -1
}
