package domain

import (
	"errors"
	"testing"
)

func loadedMap(t *testing.T) *BattleMapState {
	t.Helper()
	s := NewBattleMapState()
	if _, err := s.LoadMap("map-1", "Goblin Warrens"); err != nil {
		t.Fatalf("LoadMap: %v", err)
	}
	return s
}

func TestAddToken_RejectsDuplicateID(t *testing.T) {
	s := loadedMap(t)

	token := Token{ID: "tok-1", EntityRef: "char:42", Name: "Hero", Position: Position{X: 1, Y: 2}}
	if _, err := s.AddToken(token); err != nil {
		t.Fatalf("AddToken: %v", err)
	}

	_, err := s.AddToken(token)
	if !errors.Is(err, ErrDuplicateToken) {
		t.Errorf("duplicate AddToken: err = %v, want ErrDuplicateToken", err)
	}

	snap := s.Snapshot()
	if len(snap.Tokens) != 1 {
		t.Errorf("token count = %d, want 1 (rejected duplicate must not land)", len(snap.Tokens))
	}
}

func TestTokenOps_RequireLoadedMap(t *testing.T) {
	s := NewBattleMapState()

	if _, err := s.AddToken(Token{ID: "tok-1"}); !errors.Is(err, ErrMapNotActive) {
		t.Errorf("AddToken without map: err = %v, want ErrMapNotActive", err)
	}
	if _, err := s.UpdateToken("tok-1", TokenUpdate{}); !errors.Is(err, ErrMapNotActive) {
		t.Errorf("UpdateToken without map: err = %v, want ErrMapNotActive", err)
	}
	if _, err := s.RemoveToken("tok-1"); !errors.Is(err, ErrMapNotActive) {
		t.Errorf("RemoveToken without map: err = %v, want ErrMapNotActive", err)
	}
}

func TestUpdateToken_UnknownIDIsRecoverable(t *testing.T) {
	s := loadedMap(t)

	_, err := s.UpdateToken("missing", TokenUpdate{})
	if !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("err = %v, want ErrTokenNotFound", err)
	}
	if !Recoverable(err) {
		t.Error("unknown token id must be a recoverable error")
	}
}

func TestUpdateToken_PartialFields(t *testing.T) {
	s := loadedMap(t)
	if _, err := s.AddToken(Token{ID: "tok-1", EntityRef: "npc:7", Name: "Goblin", Position: Position{X: 0, Y: 0}}); err != nil {
		t.Fatalf("AddToken: %v", err)
	}

	pos := Position{X: 4, Y: 9}
	snap, err := s.UpdateToken("tok-1", TokenUpdate{Position: &pos})
	if err != nil {
		t.Fatalf("UpdateToken: %v", err)
	}
	if snap.Tokens[0].Position != pos {
		t.Errorf("position = %+v, want %+v", snap.Tokens[0].Position, pos)
	}
	if snap.Tokens[0].Name != "Goblin" {
		t.Errorf("name changed to %s on partial update", snap.Tokens[0].Name)
	}

	delta := -5
	snap, err = s.UpdateToken("tok-1", TokenUpdate{HPDelta: &delta})
	if err != nil {
		t.Fatalf("UpdateToken: %v", err)
	}
	if snap.Tokens[0].HPDelta != -5 {
		t.Errorf("hpDelta = %d, want -5", snap.Tokens[0].HPDelta)
	}
}

func TestLoadMap_SwitchingMapsDropsTokens(t *testing.T) {
	s := loadedMap(t)
	if _, err := s.AddToken(Token{ID: "tok-1", Name: "Hero"}); err != nil {
		t.Fatalf("AddToken: %v", err)
	}

	snap, err := s.LoadMap("map-1", "Goblin Warrens")
	if err != nil {
		t.Fatalf("LoadMap same: %v", err)
	}
	if len(snap.Tokens) != 1 {
		t.Errorf("reloading same map dropped tokens: %d, want 1", len(snap.Tokens))
	}

	snap, err = s.LoadMap("map-2", "Dragon Lair")
	if err != nil {
		t.Fatalf("LoadMap other: %v", err)
	}
	if len(snap.Tokens) != 0 {
		t.Errorf("switching maps kept %d tokens, want 0", len(snap.Tokens))
	}
}

func TestClearMap_Deactivates(t *testing.T) {
	s := loadedMap(t)
	if _, err := s.AddToken(Token{ID: "tok-1"}); err != nil {
		t.Fatalf("AddToken: %v", err)
	}

	snap, err := s.ClearMap()
	if err != nil {
		t.Fatalf("ClearMap: %v", err)
	}
	if snap.IsActive || len(snap.Tokens) != 0 {
		t.Errorf("snapshot after clear = {active:%v tokens:%d}, want inactive empty", snap.IsActive, len(snap.Tokens))
	}
}
