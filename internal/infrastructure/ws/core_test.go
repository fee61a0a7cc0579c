package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hearthside/gametable/internal/domain"
	"github.com/hearthside/gametable/internal/infrastructure/logging"
)

type nopLogger struct{}

func (nopLogger) Init()                                                                         {}
func (nopLogger) Debug(logging.Category, logging.SubCategory, string, map[logging.ExtraKey]any) {}
func (nopLogger) Debugf(string, ...any)                                                         {}
func (nopLogger) Info(logging.Category, logging.SubCategory, string, map[logging.ExtraKey]any)  {}
func (nopLogger) Infof(string, ...any)                                                          {}
func (nopLogger) Warn(logging.Category, logging.SubCategory, string, map[logging.ExtraKey]any)  {}
func (nopLogger) Warnf(string, ...any)                                                          {}
func (nopLogger) Error(logging.Category, logging.SubCategory, string, map[logging.ExtraKey]any) {}
func (nopLogger) Errorf(string, ...any)                                                         {}
func (nopLogger) Fatal(logging.Category, logging.SubCategory, string, map[logging.ExtraKey]any) {}
func (nopLogger) Fatalf(string, ...any)                                                         {}

type fakeDirectory struct {
	inProgress bool
	entities   map[string]domain.EntityInfo
}

func (d *fakeDirectory) Campaign(_ context.Context, campaignID string) (*domain.Campaign, error) {
	return &domain.Campaign{
		ID:                campaignID,
		Name:              "Test Campaign",
		ActiveSessionID:   "session-1",
		SessionInProgress: d.inProgress,
	}, nil
}

func (d *fakeDirectory) ResolveEntity(_ context.Context, _ string, ref string) (*domain.EntityInfo, error) {
	if info, ok := d.entities[ref]; ok {
		return &info, nil
	}
	return nil, domain.ErrEntryNotFound
}

func newTestCoordinator(t *testing.T, dir *fakeDirectory) *Coordinator {
	t.Helper()
	if dir == nil {
		dir = &fakeDirectory{}
	}
	return NewCoordinator(Config{LockTimeout: time.Second}, nopLogger{}, nil, dir, nil)
}

func joinClient(t *testing.T, c *Coordinator, campaignID, userID string, role domain.Role) *Client {
	t.Helper()
	cl := newTestClient(campaignID, domain.Participant{
		UserID:   userID,
		Username: userID,
		Role:     role,
	}, 64)
	if err := c.Join(context.Background(), cl); err != nil {
		t.Fatalf("join %s: %v", userID, err)
	}
	return cl
}

func drain(cl *Client) []*Envelope {
	var out []*Envelope
	for {
		select {
		case env, ok := <-cl.Message:
			if !ok {
				return out
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func intentFrame(t *testing.T, intentType string, payload any) []byte {
	t.Helper()
	frame := map[string]any{"type": intentType}
	if payload != nil {
		frame["payload"] = payload
	}
	raw, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal intent: %v", err)
	}
	return raw
}

func TestJoinPushesFullStateHandshake(t *testing.T) {
	c := newTestCoordinator(t, nil)
	cl := joinClient(t, c, "camp-1", "alice", domain.RoleDM)

	got := drain(cl)
	want := []string{InitiativeUpdated, MapUpdated, SessionResynced, PresenceChanged}
	if len(got) != len(want) {
		t.Fatalf("handshake envelope count = %d, want %d", len(got), len(want))
	}
	for i, env := range got {
		if env.Type != want[i] {
			t.Errorf("handshake[%d] = %s, want %s", i, env.Type, want[i])
		}
	}
}

func TestBroadcastIncludesSender(t *testing.T) {
	c := newTestCoordinator(t, nil)
	dm := joinClient(t, c, "camp-1", "dm", domain.RoleDM)
	player := joinClient(t, c, "camp-1", "bob", domain.RolePlayer)
	drain(dm)
	drain(player)

	c.HandleIntent(context.Background(), player, intentFrame(t, IntentDiceRoll, DiceRollPayload{Formula: "1d20+5"}))

	for _, cl := range []*Client{dm, player} {
		got := drain(cl)
		if len(got) != 1 || got[0].Type != DiceRolled {
			t.Fatalf("client %s got %d envelopes, want one %s", cl.Who.UserID, len(got), DiceRolled)
		}
	}
}

func TestDMOnlyNoteFilteredByRole(t *testing.T) {
	c := newTestCoordinator(t, nil)
	dm := joinClient(t, c, "camp-1", "dm", domain.RoleDM)
	player := joinClient(t, c, "camp-1", "bob", domain.RolePlayer)
	drain(dm)
	drain(player)

	c.HandleIntent(context.Background(), dm, intentFrame(t, IntentNoteShare, NoteSharePayload{
		Text:       "the innkeeper is the dragon",
		Visibility: domain.VisibilityDMOnly,
	}))

	if got := drain(dm); len(got) != 1 || got[0].Type != NoteShared {
		t.Fatalf("dm got %d envelopes, want one %s", len(got), NoteShared)
	}
	if got := drain(player); len(got) != 0 {
		t.Fatalf("player received %d envelopes for a dm-only note", len(got))
	}
}

func TestConcurrentIntentsSerialized(t *testing.T) {
	c := newTestCoordinator(t, nil)
	dm := joinClient(t, c, "camp-1", "dm", domain.RoleDM)
	drain(dm)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.HandleIntent(context.Background(), dm, intentFrame(t, IntentInitiativeAddEntry, AddEntryPayload{
				Name:  fmt.Sprintf("goblin-%d", i),
				Score: i,
			}))
		}(i)
	}
	wg.Wait()

	initiative, _ := roomSnapshots(t, c, "camp-1")
	if len(initiative.Entries) != n {
		t.Fatalf("entries = %d, want %d", len(initiative.Entries), n)
	}
	seen := make(map[string]bool, n)
	for _, e := range initiative.Entries {
		if seen[e.ID] {
			t.Fatalf("duplicate entry id %s", e.ID)
		}
		seen[e.ID] = true
	}
}

func roomSnapshots(t *testing.T, c *Coordinator, campaignID string) (domain.InitiativeSnapshot, domain.BattleMapSnapshot) {
	t.Helper()
	room, err := c.Room(campaignID)
	if err != nil {
		t.Fatalf("room: %v", err)
	}
	return room.Snapshots()
}

func TestBusyRoomRejectsWithRetry(t *testing.T) {
	dir := &fakeDirectory{}
	c := NewCoordinator(Config{LockTimeout: 10 * time.Millisecond}, nopLogger{}, nil, dir, nil)
	cl := joinClient(t, c, "camp-1", "dm", domain.RoleDM)
	drain(cl)

	room, err := c.Room("camp-1")
	if err != nil {
		t.Fatalf("room: %v", err)
	}
	if err := room.acquire(time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer room.release()

	c.HandleIntent(context.Background(), cl, intentFrame(t, IntentInitiativeStart, nil))

	got := drain(cl)
	if len(got) != 1 || got[0].Type != BusyError {
		t.Fatalf("got %d envelopes, want one %s", len(got), BusyError)
	}
	payload, ok := got[0].Data.(ErrorPayload)
	if !ok {
		t.Fatalf("busy payload type %T", got[0].Data)
	}
	if !payload.Retry {
		t.Error("busy error should mark retry")
	}
}

func TestRejectedIntentGoesOnlyToSender(t *testing.T) {
	c := newTestCoordinator(t, nil)
	dm := joinClient(t, c, "camp-1", "dm", domain.RoleDM)
	player := joinClient(t, c, "camp-1", "bob", domain.RolePlayer)
	drain(dm)
	drain(player)

	// nextTurn without active combat is a recoverable rejection
	c.HandleIntent(context.Background(), player, intentFrame(t, IntentInitiativeNextTurn, nil))

	got := drain(player)
	if len(got) != 1 || got[0].Type != RejectedIntent {
		t.Fatalf("sender got %d envelopes, want one %s", len(got), RejectedIntent)
	}
	if got := drain(dm); len(got) != 0 {
		t.Fatalf("dm received %d envelopes for another client's rejection", len(got))
	}

	room, _ := c.Room("camp-1")
	events := room.sampler.Query(time.Time{}, IntentInitiativeNextTurn)
	if len(events) != 1 || events[0].Success {
		t.Fatalf("sampler should hold one failed %s event, got %+v", IntentInitiativeNextTurn, events)
	}
}

// panickyDirectory fails the way a broken collaborator does: by panicking
// mid-resolution instead of returning an error.
type panickyDirectory struct {
	fakeDirectory
}

func (d *panickyDirectory) ResolveEntity(context.Context, string, string) (*domain.EntityInfo, error) {
	panic("directory connection lost")
}

func TestPanickedIntentReleasesRoomGuard(t *testing.T) {
	c := NewCoordinator(Config{LockTimeout: 50 * time.Millisecond}, nopLogger{}, nil, &panickyDirectory{}, nil)
	dm := joinClient(t, c, "camp-1", "dm", domain.RoleDM)
	drain(dm)

	ctx := context.Background()
	c.HandleIntent(ctx, dm, intentFrame(t, IntentMapLoad, LoadMapPayload{MapID: "map-1", Name: "Crypt"}))
	drain(dm)

	// addToken resolves the entity through the directory, which panics
	c.HandleIntent(ctx, dm, intentFrame(t, IntentMapAddToken, AddTokenPayload{Token: domain.Token{
		ID:        "tok-1",
		EntityRef: "character:1",
	}}))

	got := drain(dm)
	if len(got) != 1 || got[0].Type != ErrorEvent {
		t.Fatalf("panicked intent answered %v, want one %s", envelopeTypes(got), ErrorEvent)
	}

	// the room must keep serving intents, not reject busy forever
	c.HandleIntent(ctx, dm, intentFrame(t, IntentDiceRoll, DiceRollPayload{Formula: "1d6"}))
	got = drain(dm)
	if len(got) != 1 || got[0].Type != DiceRolled {
		t.Fatalf("intent after a panic answered %v, want one %s", envelopeTypes(got), DiceRolled)
	}
}

func envelopeTypes(envelopes []*Envelope) []string {
	types := make([]string, len(envelopes))
	for i, env := range envelopes {
		types[i] = env.Type
	}
	return types
}

func TestJoinDuringTeardownNeverStrandsJoiner(t *testing.T) {
	c := newTestCoordinator(t, &fakeDirectory{inProgress: false})
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		churn := joinClient(t, c, "camp-1", "churn", domain.RolePlayer)

		done := make(chan *Client, 1)
		go func() {
			cl := newTestClient("camp-1", domain.Participant{
				UserID:   "joiner",
				Username: "joiner",
				Role:     domain.RolePlayer,
			}, 64)
			if err := c.Join(ctx, cl); err != nil {
				done <- nil
				return
			}
			done <- cl
		}()
		c.Leave(ctx, churn)

		joiner := <-done
		if joiner == nil {
			t.Fatalf("iteration %d: join failed", i)
		}

		room, err := c.Room("camp-1")
		if err != nil {
			t.Fatalf("iteration %d: joiner connected but room unregistered: %v", i, err)
		}
		found := false
		for _, entry := range room.Roster().Entries {
			if entry.ConnID == joiner.ConnID {
				found = true
			}
		}
		if !found {
			t.Fatalf("iteration %d: joiner attached to a torn-down room", i)
		}
		c.Leave(ctx, joiner)
	}
}

func TestUnknownIntentRejected(t *testing.T) {
	c := newTestCoordinator(t, nil)
	cl := joinClient(t, c, "camp-1", "dm", domain.RoleDM)
	drain(cl)

	c.HandleIntent(context.Background(), cl, []byte(`{"type":"map:teleport"}`))

	got := drain(cl)
	if len(got) != 1 || got[0].Type != RejectedIntent {
		t.Fatalf("got %d envelopes, want one %s", len(got), RejectedIntent)
	}
}

func TestLeaveTearsDownIdleRoom(t *testing.T) {
	c := newTestCoordinator(t, &fakeDirectory{inProgress: false})
	cl := joinClient(t, c, "camp-1", "dm", domain.RoleDM)

	c.Leave(context.Background(), cl)

	if _, err := c.Room("camp-1"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("room should be gone, got err=%v", err)
	}
}

func TestRoomSurvivesEmptyRosterMidSession(t *testing.T) {
	c := newTestCoordinator(t, &fakeDirectory{inProgress: true})
	dm := joinClient(t, c, "camp-1", "dm", domain.RoleDM)
	drain(dm)

	c.HandleIntent(context.Background(), dm, intentFrame(t, IntentInitiativeAddEntry, AddEntryPayload{Name: "Hero", Score: 18}))
	c.HandleIntent(context.Background(), dm, intentFrame(t, IntentInitiativeStart, nil))
	c.Leave(context.Background(), dm)

	room, err := c.Room("camp-1")
	if err != nil {
		t.Fatalf("mid-session room should survive an empty roster: %v", err)
	}
	initiative, _ := room.Snapshots()
	if !initiative.IsActive || len(initiative.Entries) != 1 {
		t.Fatalf("state lost across empty roster: %+v", initiative)
	}

	// a reconnect resyncs from the surviving state
	again := joinClient(t, c, "camp-1", "bob", domain.RolePlayer)
	got := drain(again)
	if len(got) == 0 || got[0].Type != InitiativeUpdated {
		t.Fatalf("reconnect handshake missing %s", InitiativeUpdated)
	}
	snap, ok := got[0].Data.(domain.InitiativeSnapshot)
	if !ok || !snap.IsActive {
		t.Fatalf("handshake initiative snapshot = %+v", got[0].Data)
	}
}

func TestResyncEmptyRosterSucceedsWithoutBroadcast(t *testing.T) {
	c := newTestCoordinator(t, &fakeDirectory{inProgress: true})
	dm := joinClient(t, c, "camp-1", "dm", domain.RoleDM)
	c.Leave(context.Background(), dm)

	result, err := c.Resync(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("resync: %v", err)
	}
	if !result.Success || result.ConnectedUsers != 0 {
		t.Fatalf("result = %+v, want success with 0 users", result)
	}
	if !result.Resynced.Initiative || !result.Resynced.BattleMap {
		t.Fatalf("resynced = %+v, want both sub-states marked", result.Resynced)
	}
}

func TestResyncBroadcastsFullState(t *testing.T) {
	c := newTestCoordinator(t, nil)
	dm := joinClient(t, c, "camp-1", "dm", domain.RoleDM)
	player := joinClient(t, c, "camp-1", "bob", domain.RolePlayer)
	drain(dm)
	drain(player)

	result, err := c.Resync(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("resync: %v", err)
	}
	if result.ConnectedUsers != 2 {
		t.Fatalf("connectedUsers = %d, want 2", result.ConnectedUsers)
	}
	if !result.Resynced.Initiative || !result.Resynced.BattleMap {
		t.Fatalf("resynced = %+v, want both sub-states marked", result.Resynced)
	}

	want := []string{InitiativeUpdated, MapUpdated, SessionResynced}
	for _, cl := range []*Client{dm, player} {
		got := drain(cl)
		if len(got) != len(want) {
			t.Fatalf("client %s got %d envelopes, want %d", cl.Who.UserID, len(got), len(want))
		}
		for i, env := range got {
			if env.Type != want[i] {
				t.Errorf("client %s envelope[%d] = %s, want %s", cl.Who.UserID, i, env.Type, want[i])
			}
		}
	}
}

func TestResyncUnknownCampaign(t *testing.T) {
	c := newTestCoordinator(t, nil)
	if _, err := c.Resync(context.Background(), "nope"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v, want %v", err, ErrRoomNotFound)
	}
}

func TestCursorPingThrottledInSampler(t *testing.T) {
	c := newTestCoordinator(t, nil)
	cl := joinClient(t, c, "camp-1", "bob", domain.RolePlayer)
	drain(cl)

	for i := 0; i < 5; i++ {
		c.HandleIntent(context.Background(), cl, intentFrame(t, IntentCursorPing, CursorPingPayload{X: float64(i), Y: 0}))
	}

	// every ping broadcast, only the first sampled
	got := drain(cl)
	if len(got) != 5 {
		t.Fatalf("broadcast count = %d, want 5", len(got))
	}
	room, _ := c.Room("camp-1")
	if events := room.sampler.Query(time.Time{}, IntentCursorPing); len(events) != 1 {
		t.Fatalf("sampled cursor events = %d, want 1", len(events))
	}
}

func TestChatRejectedByContentFilter(t *testing.T) {
	c := newTestCoordinator(t, nil)
	cl := joinClient(t, c, "camp-1", "bob", domain.RolePlayer)
	drain(cl)

	c.HandleIntent(context.Background(), cl, intentFrame(t, IntentChatSend, ChatSendPayload{Text: "you fucking wish"}))

	got := drain(cl)
	if len(got) != 1 || got[0].Type != RejectedIntent {
		t.Fatalf("got %d envelopes, want one %s", len(got), RejectedIntent)
	}
}

func TestHPChangeUpdatesMatchingToken(t *testing.T) {
	dir := &fakeDirectory{entities: map[string]domain.EntityInfo{
		"character:1": {Ref: "character:1", Name: "Hero"},
	}}
	c := newTestCoordinator(t, dir)
	dm := joinClient(t, c, "camp-1", "dm", domain.RoleDM)
	drain(dm)

	ctx := context.Background()
	c.HandleIntent(ctx, dm, intentFrame(t, IntentMapLoad, LoadMapPayload{MapID: "map-1", Name: "Crypt"}))
	c.HandleIntent(ctx, dm, intentFrame(t, IntentMapAddToken, AddTokenPayload{Token: domain.Token{
		ID:        "tok-1",
		EntityRef: "character:1",
	}}))
	drain(dm)

	c.HandleIntent(ctx, dm, intentFrame(t, IntentHPChanged, HPChangePayload{TargetRef: "character:1", Delta: -7}))

	got := drain(dm)
	if len(got) != 2 || got[0].Type != HPChanged || got[1].Type != MapUpdated {
		types := make([]string, len(got))
		for i, env := range got {
			types[i] = env.Type
		}
		t.Fatalf("envelopes = %v, want [%s %s]", types, HPChanged, MapUpdated)
	}
	snap, ok := got[1].Data.(domain.BattleMapSnapshot)
	if !ok || len(snap.Tokens) != 1 || snap.Tokens[0].HPDelta != -7 {
		t.Fatalf("map snapshot = %+v", got[1].Data)
	}
	if snap.Tokens[0].Name != "Hero" {
		t.Errorf("token name should resolve from the campaign directory, got %q", snap.Tokens[0].Name)
	}
}

func TestHealthSummaryCountsUsersNotConnections(t *testing.T) {
	c := newTestCoordinator(t, nil)
	joinClient(t, c, "camp-1", "dm", domain.RoleDM)
	joinClient(t, c, "camp-1", "bob", domain.RolePlayer)
	joinClient(t, c, "camp-1", "bob", domain.RolePlayer) // second tab

	summary, err := c.Summarize(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.ConnectedUsers != 2 {
		t.Errorf("connectedUsers = %d, want 2", summary.ConnectedUsers)
	}
	if !summary.DMConnected {
		t.Error("dm should be reported connected")
	}
	if summary.SessionActive {
		t.Error("no session record in progress, summary should report inactive")
	}
}

func TestSessionActiveFollowsSessionRecord(t *testing.T) {
	dir := &fakeDirectory{inProgress: true}
	c := newTestCoordinator(t, dir)
	joinClient(t, c, "camp-1", "bob", domain.RolePlayer)

	// no combat running, but the campaign's session record says in progress
	summary, err := c.Summarize(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !summary.SessionActive {
		t.Error("session record in progress, summary should report active")
	}

	dir.inProgress = false
	summary, err = c.Summarize(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.SessionActive {
		t.Error("session record ended, summary should report inactive")
	}
}

func TestReportIncludesErrorWindows(t *testing.T) {
	c := newTestCoordinator(t, nil)
	cl := joinClient(t, c, "camp-1", "dm", domain.RoleDM)
	drain(cl)

	c.HandleIntent(context.Background(), cl, intentFrame(t, IntentInitiativeNextTurn, nil))
	c.HandleIntent(context.Background(), cl, intentFrame(t, IntentDiceRoll, DiceRollPayload{Formula: "1d20"}))

	report, err := c.Report(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Errors15m != 1 || report.Errors60m != 1 {
		t.Errorf("errors = %d/%d, want 1/1", report.Errors15m, report.Errors60m)
	}
	if report.RecentEventCount < 2 {
		t.Errorf("recentEventCount = %d, want at least 2", report.RecentEventCount)
	}
}
