package ws

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/hearthside/gametable/internal/domain"
	"github.com/hearthside/gametable/internal/infrastructure/metrics"
	"github.com/hearthside/gametable/internal/infrastructure/profanity"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomBusy     = errors.New("room is busy applying another intent")
)

// Room owns everything live for one campaign: the presence roster, the
// authoritative initiative and battle-map sub-states, and the event sampler.
// Intents are serialized by the guard channel; the guard is held across
// collaborator awaits so a second intent can never apply against stale
// state. The mutex only covers the roster and published snapshots so health
// reads stay consistent without contending the intent path.
type Room struct {
	CampaignID string

	mu           sync.RWMutex
	sessionID    string
	clients      map[string]*Client // connID → client
	lastActivity time.Time

	// mutated only while the guard is held
	initiative *domain.InitiativeState
	battleMap  *domain.BattleMapState
	rng        *rand.Rand

	// published under mu after every mutation so concurrent readers never
	// see a half-applied update
	initiativeSnap domain.InitiativeSnapshot
	battleMapSnap  domain.BattleMapSnapshot

	sampler *Sampler
	guard   chan struct{}
	metrics *metrics.SessionMetrics
	filter  *profanity.ProfanityFilter
}

func newRoom(campaignID, sessionID string, cfg Config, m *metrics.SessionMetrics) *Room {
	r := &Room{
		CampaignID: campaignID,
		sessionID:  sessionID,
		clients:    make(map[string]*Client),
		initiative: domain.NewInitiativeState(),
		battleMap:  domain.NewBattleMapState(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		sampler:    NewSampler(cfg.SamplerCapacity, cfg.PingInterval),
		guard:      make(chan struct{}, 1),
		metrics:    m,
		filter:     profanity.NewProfanityFilter(),
	}
	r.initiativeSnap = r.initiative.Snapshot()
	r.battleMapSnap = r.battleMap.Snapshot()
	return r
}

func (r *Room) acquire(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r.guard <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrRoomBusy
	}
}

func (r *Room) release() {
	<-r.guard
}

func (r *Room) addClient(cl *Client) domain.RosterSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[cl.ConnID] = cl
	r.lastActivity = time.Now().UTC()
	return r.rosterLocked()
}

// removeClient drops one connection and reports whether that user still has
// another connection open (multi-tab).
func (r *Room) removeClient(cl *Client) (domain.RosterSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[cl.ConnID]; ok {
		delete(r.clients, cl.ConnID)
		close(cl.Message)
	}

	stillConnected := false
	for _, other := range r.clients {
		if other.Who.UserID == cl.Who.UserID {
			stillConnected = true
			break
		}
	}
	return r.rosterLocked(), stillConnected
}

func (r *Room) empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients) == 0
}

// Roster returns the presence snapshot ordered by connect time.
func (r *Room) Roster() domain.RosterSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rosterLocked()
}

func (r *Room) rosterLocked() domain.RosterSnapshot {
	entries := make([]domain.PresenceEntry, 0, len(r.clients))
	for _, cl := range r.clients {
		entries = append(entries, cl.Entry())
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].ConnectedAt.Equal(entries[j].ConnectedAt) {
			return entries[i].ConnectedAt.Before(entries[j].ConnectedAt)
		}
		return entries[i].ConnID < entries[j].ConnID
	})
	return domain.RosterSnapshot{CampaignID: r.CampaignID, Entries: entries}
}

// Snapshots returns the last published sub-states, consistent even while an
// intent is mid-flight.
func (r *Room) Snapshots() (domain.InitiativeSnapshot, domain.BattleMapSnapshot) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initiativeSnap, r.battleMapSnap
}

// LastActivity is the time of the most recent accepted mutation or join.
func (r *Room) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}

// SessionID is the in-progress session record id, if the CRUD layer has one.
func (r *Room) SessionID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessionID
}

func (r *Room) setSessionID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionID = id
}

// broadcast enqueues an envelope to every connection the visibility rule
// admits, including the sender. Delivery order matches mutation order
// because intents enqueue while holding the room guard.
func (r *Room) broadcast(env *Envelope) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cl := range r.clients {
		if env.visibility == domain.VisibilityDMOnly && cl.Who.Role != domain.RoleDM {
			continue
		}
		if !cl.enqueue(env) {
			r.metrics.MessageDropped()
		}
	}
	r.metrics.BroadcastSent(env.Type)
}

// sendTo answers one connection only; rejected intents are never broadcast.
func (r *Room) sendTo(cl *Client, env *Envelope) {
	if !cl.enqueue(env) {
		r.metrics.MessageDropped()
	}
}

func (r *Room) publishSnapshots() {
	initiative := r.initiative.Snapshot()
	battleMap := r.battleMap.Snapshot()

	r.mu.Lock()
	r.initiativeSnap = initiative
	r.battleMapSnap = battleMap
	r.lastActivity = time.Now().UTC()
	r.mu.Unlock()
}

// apply dispatches one intent against the authoritative state. Must be
// called with the guard held. On success the returned envelopes are
// broadcast in order; on error nothing was mutated.
func (r *Room) apply(ctx context.Context, intent *Intent, who domain.Participant, directory domain.CampaignDirectory) ([]*Envelope, string, error) {
	switch intent.Type {
	case IntentDiceRoll:
		var p DiceRollPayload
		if err := decodePayload(intent, &p); err != nil {
			return nil, "", err
		}
		formula, err := domain.ParseDiceFormula(p.Formula)
		if err != nil {
			return nil, "", err
		}
		result := formula.Roll(r.rng, who, p.Label)
		r.touch()
		return []*Envelope{NewDiceRolled(r.CampaignID, result)},
			fmt.Sprintf("%s=%d", result.Formula, result.Total), nil

	case IntentInitiativeStart:
		snap, err := r.initiative.StartCombat()
		return r.initiativeResult(snap, err, "combat started")

	case IntentInitiativeNextTurn:
		snap, err := r.initiative.NextTurn()
		return r.initiativeResult(snap, err, fmt.Sprintf("round %d", snap.Round))

	case IntentInitiativeEnd:
		snap, err := r.initiative.EndCombat()
		return r.initiativeResult(snap, err, "combat ended")

	case IntentInitiativeAddEntry:
		var p AddEntryPayload
		if err := decodePayload(intent, &p); err != nil {
			return nil, "", err
		}
		if p.Name == "" {
			return nil, "", fmt.Errorf("%w: entry name required", ErrBadPayload)
		}
		snap, err := r.initiative.AddEntry(p.Name, p.Score, p.Conditions)
		return r.initiativeResult(snap, err, fmt.Sprintf("%s at %d", p.Name, p.Score))

	case IntentInitiativeUpdateEntry:
		var p UpdateEntryPayload
		if err := decodePayload(intent, &p); err != nil {
			return nil, "", err
		}
		snap, err := r.initiative.UpdateEntry(p.EntryID, p.Update)
		return r.initiativeResult(snap, err, p.EntryID)

	case IntentInitiativeRemoveEntry:
		var p RemoveEntryPayload
		if err := decodePayload(intent, &p); err != nil {
			return nil, "", err
		}
		snap, err := r.initiative.RemoveEntry(p.EntryID)
		return r.initiativeResult(snap, err, p.EntryID)

	case IntentMapLoad:
		var p LoadMapPayload
		if err := decodePayload(intent, &p); err != nil {
			return nil, "", err
		}
		if p.MapID == "" {
			return nil, "", fmt.Errorf("%w: mapId required", ErrBadPayload)
		}
		snap, err := r.battleMap.LoadMap(p.MapID, p.Name)
		return r.battleMapResult(snap, err, p.Name)

	case IntentMapAddToken:
		var p AddTokenPayload
		if err := decodePayload(intent, &p); err != nil {
			return nil, "", err
		}
		if p.Token.EntityRef != "" && directory != nil {
			// resolve display data from the campaign layer; the guard is
			// held across this await on purpose
			info, err := directory.ResolveEntity(ctx, r.CampaignID, p.Token.EntityRef)
			if err != nil {
				return nil, "", fmt.Errorf("%w: unresolvable entity %q", ErrBadPayload, p.Token.EntityRef)
			}
			if p.Token.Name == "" {
				p.Token.Name = info.Name
			}
		}
		snap, err := r.battleMap.AddToken(p.Token)
		return r.battleMapResult(snap, err, p.Token.ID)

	case IntentMapUpdateToken:
		var p UpdateTokenPayload
		if err := decodePayload(intent, &p); err != nil {
			return nil, "", err
		}
		snap, err := r.battleMap.UpdateToken(p.TokenID, p.Update)
		return r.battleMapResult(snap, err, p.TokenID)

	case IntentMapRemoveToken:
		var p RemoveTokenPayload
		if err := decodePayload(intent, &p); err != nil {
			return nil, "", err
		}
		snap, err := r.battleMap.RemoveToken(p.TokenID)
		return r.battleMapResult(snap, err, p.TokenID)

	case IntentMapClear:
		snap, err := r.battleMap.ClearMap()
		return r.battleMapResult(snap, err, "cleared")

	case IntentHPChanged:
		var p HPChangePayload
		if err := decodePayload(intent, &p); err != nil {
			return nil, "", err
		}
		if p.TargetRef == "" {
			return nil, "", fmt.Errorf("%w: targetRef required", ErrBadPayload)
		}
		out := []*Envelope{NewHPChanged(r.CampaignID, HPChangedPayload{
			TargetRef: p.TargetRef,
			Delta:     p.Delta,
			Actor:     who,
		})}
		// keep a matching battle-map token in step so map panels reconcile
		// from the same broadcast sequence
		if snap, changed := r.applyHPToToken(p.TargetRef, p.Delta); changed {
			out = append(out, NewMapUpdated(r.CampaignID, snap))
		}
		r.touch()
		return out, fmt.Sprintf("%s %+d", p.TargetRef, p.Delta), nil

	case IntentNoteShare:
		var p NoteSharePayload
		if err := decodePayload(intent, &p); err != nil {
			return nil, "", err
		}
		if p.Text == "" {
			return nil, "", fmt.Errorf("%w: note text required", ErrBadPayload)
		}
		visibility := p.Visibility
		if visibility == "" {
			visibility = domain.VisibilityPublic
		}
		if visibility != domain.VisibilityPublic && visibility != domain.VisibilityDMOnly {
			return nil, "", fmt.Errorf("%w: visibility %q", ErrBadPayload, p.Visibility)
		}
		r.touch()
		return []*Envelope{NewNoteShared(r.CampaignID, NotePayload{
			Text:       p.Text,
			Author:     who,
			Visibility: visibility,
			SharedAt:   time.Now().UTC(),
		})}, string(visibility), nil

	case IntentChatSend:
		var p ChatSendPayload
		if err := decodePayload(intent, &p); err != nil {
			return nil, "", err
		}
		if p.Text == "" {
			return nil, "", fmt.Errorf("%w: message text required", ErrBadPayload)
		}
		if r.filter.ContainsProfanity(p.Text) {
			return nil, "", fmt.Errorf("%w: message rejected by content filter", ErrBadPayload)
		}
		r.touch()
		return []*Envelope{NewChatMessage(r.CampaignID, ChatPayload{
			Text:   p.Text,
			Author: who,
			SentAt: time.Now().UTC(),
		})}, domain.SummarizePayload(p.Text), nil

	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownIntent, intent.Type)
	}
}

func (r *Room) initiativeResult(snap domain.InitiativeSnapshot, err error, summary string) ([]*Envelope, string, error) {
	if err != nil {
		return nil, summary, err
	}
	r.publishSnapshots()
	return []*Envelope{NewInitiativeUpdated(r.CampaignID, snap)}, summary, nil
}

func (r *Room) battleMapResult(snap domain.BattleMapSnapshot, err error, summary string) ([]*Envelope, string, error) {
	if err != nil {
		return nil, summary, err
	}
	r.publishSnapshots()
	return []*Envelope{NewMapUpdated(r.CampaignID, snap)}, summary, nil
}

func (r *Room) applyHPToToken(targetRef string, delta int) (domain.BattleMapSnapshot, bool) {
	if !r.battleMap.Active() {
		return domain.BattleMapSnapshot{}, false
	}
	for _, t := range r.battleMap.Snapshot().Tokens {
		if t.EntityRef != targetRef {
			continue
		}
		next := t.HPDelta + delta
		snap, err := r.battleMap.UpdateToken(t.ID, domain.TokenUpdate{HPDelta: &next})
		if err != nil {
			return domain.BattleMapSnapshot{}, false
		}
		r.publishSnapshots()
		return snap, true
	}
	return domain.BattleMapSnapshot{}, false
}

func (r *Room) touch() {
	r.mu.Lock()
	r.lastActivity = time.Now().UTC()
	r.mu.Unlock()
}
