package ws

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hearthside/gametable/internal/domain"
	"github.com/hearthside/gametable/internal/infrastructure/logging"
	"github.com/hearthside/gametable/internal/infrastructure/metrics"
)

const (
	defaultLockTimeout  = 250 * time.Millisecond
	defaultClientBuffer = 64
)

// Config tunes the per-room serialization and sampling behavior.
type Config struct {
	LockTimeout     time.Duration
	ClientBuffer    int
	SamplerCapacity int
	PingInterval    time.Duration
}

func (c Config) withDefaults() Config {
	if c.LockTimeout <= 0 {
		c.LockTimeout = defaultLockTimeout
	}
	if c.ClientBuffer <= 0 {
		c.ClientBuffer = defaultClientBuffer
	}
	if c.SamplerCapacity <= 0 {
		c.SamplerCapacity = defaultSamplerCapacity
	}
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	return c
}

// LifecycleNotifier receives session lifecycle events for out-of-band
// consumers (audit trail, campaign CRUD). Implementations must not block.
type LifecycleNotifier interface {
	SessionStarted(ctx context.Context, campaignID, sessionID string)
	SessionEnded(ctx context.Context, campaignID, sessionID string)
	ParticipantJoined(ctx context.Context, campaignID string, who domain.Participant)
	ParticipantLeft(ctx context.Context, campaignID string, who domain.Participant)
	SessionResynced(ctx context.Context, campaignID string)
}

// Coordinator is the single entry point for everything live: it owns the
// room registry and routes joins, leaves and intents to the right room.
type Coordinator struct {
	cfg       Config
	logger    logging.Logger
	metrics   *metrics.SessionMetrics
	directory domain.CampaignDirectory
	notifier  LifecycleNotifier

	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewCoordinator(cfg Config, logger logging.Logger, m *metrics.SessionMetrics, directory domain.CampaignDirectory, notifier LifecycleNotifier) *Coordinator {
	return &Coordinator{
		cfg:       cfg.withDefaults(),
		logger:    logger,
		metrics:   m,
		directory: directory,
		notifier:  notifier,
		rooms:     make(map[string]*Room),
	}
}

// Room returns the live room for a campaign, or ErrRoomNotFound when no one
// is connected.
func (c *Coordinator) Room(campaignID string) (*Room, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	room, ok := c.rooms[campaignID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Rooms returns every live room sorted by campaign id.
func (c *Coordinator) Rooms() []*Room {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Room, 0, len(c.rooms))
	for _, room := range c.rooms {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CampaignID < out[j].CampaignID })
	return out
}

// Join places a connection in its campaign room, creating the room lazily,
// then pushes the full state handshake to the joiner and a presence
// broadcast to everyone.
func (c *Coordinator) Join(ctx context.Context, cl *Client) error {
	campaign, err := c.directory.Campaign(ctx, cl.CampaignID)
	if err != nil {
		return fmt.Errorf("resolving campaign %s: %w", cl.CampaignID, err)
	}

	var room *Room
	var roster domain.RosterSnapshot
	for {
		c.mu.Lock()
		r, ok := c.rooms[cl.CampaignID]
		if !ok {
			r = newRoom(cl.CampaignID, campaign.ActiveSessionID, c.cfg, c.metrics)
			c.rooms[cl.CampaignID] = r
			c.metrics.RoomOpened()
			c.logger.Info(logging.Session, logging.RoomLifecycle, "room opened", map[logging.ExtraKey]any{
				logging.CampaignID: cl.CampaignID,
			})
		}
		c.mu.Unlock()

		if !ok && c.notifier != nil {
			c.notifier.SessionStarted(ctx, cl.CampaignID, campaign.ActiveSessionID)
		}

		roster = r.addClient(cl)

		// A concurrent Leave may have torn the room down between the
		// registry read and addClient. Once this recheck passes, teardown
		// sees a non-empty roster and leaves the room alone.
		c.mu.Lock()
		registered := c.rooms[cl.CampaignID] == r
		c.mu.Unlock()
		if registered {
			room = r
			break
		}
		r.removeClient(cl)
	}
	c.metrics.ClientConnected()

	room.sampler.Record(domain.SampledEvent{
		Timestamp:      time.Now().UTC(),
		SessionID:      room.SessionID(),
		CampaignID:     cl.CampaignID,
		EventType:      EventPresenceJoin,
		ActorUserID:    cl.Who.UserID,
		Visibility:     domain.VisibilityPublic,
		PayloadSummary: cl.Who.Username,
		Success:        true,
	})

	// joiner reconciles from the handshake, everyone else from the
	// presence broadcast that follows
	initiative, battleMap := room.Snapshots()
	room.sendTo(cl, NewInitiativeUpdated(cl.CampaignID, initiative))
	room.sendTo(cl, NewMapUpdated(cl.CampaignID, battleMap))
	room.sendTo(cl, NewSessionResynced(cl.CampaignID, ResyncPayload{Initiative: true, BattleMap: true}))
	room.broadcast(NewPresenceChanged(cl.CampaignID, roster))

	if c.notifier != nil {
		c.notifier.ParticipantJoined(ctx, cl.CampaignID, cl.Who)
	}
	return nil
}

// Leave removes a connection from its room. The room is torn down once the
// roster drains and the campaign has no session in progress.
func (c *Coordinator) Leave(ctx context.Context, cl *Client) {
	room, err := c.Room(cl.CampaignID)
	if err != nil {
		return
	}

	roster, stillConnected := room.removeClient(cl)
	c.metrics.ClientDisconnected()

	if !stillConnected {
		room.sampler.Record(domain.SampledEvent{
			Timestamp:      time.Now().UTC(),
			SessionID:      room.SessionID(),
			CampaignID:     cl.CampaignID,
			EventType:      EventPresenceLeave,
			ActorUserID:    cl.Who.UserID,
			Visibility:     domain.VisibilityPublic,
			PayloadSummary: cl.Who.Username,
			Success:        true,
		})
		if c.notifier != nil {
			c.notifier.ParticipantLeft(ctx, cl.CampaignID, cl.Who)
		}
	}

	if len(roster.Entries) > 0 {
		room.broadcast(NewPresenceChanged(cl.CampaignID, roster))
		return
	}

	// state survives an empty roster while the CRUD layer still marks the
	// session in progress; players reconnecting mid-session resync from it
	campaign, err := c.directory.Campaign(ctx, cl.CampaignID)
	if err == nil && campaign.SessionInProgress {
		return
	}

	c.mu.Lock()
	closed := false
	if current, ok := c.rooms[cl.CampaignID]; ok && current == room && room.empty() {
		delete(c.rooms, cl.CampaignID)
		closed = true
		c.metrics.RoomClosed()
		c.logger.Info(logging.Session, logging.RoomLifecycle, "room closed", map[logging.ExtraKey]any{
			logging.CampaignID: cl.CampaignID,
		})
	}
	c.mu.Unlock()

	if closed && c.notifier != nil {
		c.notifier.SessionEnded(ctx, cl.CampaignID, room.SessionID())
	}
}

// HandleIntent decodes and applies one inbound frame. A panic inside one
// intent is confined to that intent: the connection and room survive, the
// sender gets an error envelope.
func (c *Coordinator) HandleIntent(ctx context.Context, cl *Client, raw []byte) {
	room, err := c.Room(cl.CampaignID)
	if err != nil {
		room = nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error(logging.Session, logging.IntentHandling, "intent panicked", map[logging.ExtraKey]any{
				logging.CampaignID:   cl.CampaignID,
				logging.ConnID:       cl.ConnID,
				logging.ErrorMessage: fmt.Sprint(rec),
			})
			c.metrics.IntentHandled("unknown", "panic")
			if room != nil {
				room.sendTo(cl, NewError(cl.CampaignID, "internal error applying intent"))
			}
		}
	}()

	intent, err := DecodeIntent(raw)
	if err != nil {
		c.metrics.IntentHandled("unknown", "rejected")
		if room != nil {
			room.sendTo(cl, NewRejectedIntent(cl.CampaignID, "", err.Error()))
		}
		return
	}
	if room == nil {
		return
	}

	if intent.Type == IntentCursorPing {
		c.handleCursorPing(room, cl, intent)
		return
	}

	if err := room.acquire(c.cfg.LockTimeout); err != nil {
		c.metrics.IntentHandled(intent.Type, "busy")
		room.sendTo(cl, NewBusyError(cl.CampaignID, intent.Type))
		return
	}

	envelopes, summary, err := c.applyLocked(ctx, room, intent, cl)

	sample := domain.SampledEvent{
		Timestamp:      time.Now().UTC(),
		SessionID:      room.SessionID(),
		CampaignID:     cl.CampaignID,
		EventType:      intent.Type,
		ActorUserID:    cl.Who.UserID,
		Visibility:     sampleVisibility(envelopes),
		PayloadSummary: domain.SummarizePayload(summary),
		Success:        err == nil,
	}

	if err != nil {
		sample.PayloadSummary = domain.SummarizePayload(err.Error())
		room.sampler.Record(sample)
		c.metrics.IntentHandled(intent.Type, "rejected")
		room.sendTo(cl, NewRejectedIntent(cl.CampaignID, intent.Type, err.Error()))

		if !domain.Recoverable(err) && !errors.Is(err, ErrUnknownIntent) && !errors.Is(err, ErrBadPayload) {
			c.logger.Error(logging.Session, logging.IntentHandling, "intent failed", map[logging.ExtraKey]any{
				logging.CampaignID:   cl.CampaignID,
				logging.IntentType:   intent.Type,
				logging.ErrorMessage: err.Error(),
			})
		}
		return
	}

	room.sampler.Record(sample)
	c.metrics.IntentHandled(intent.Type, "accepted")
}

// applyLocked runs one intent and its broadcasts under the room guard. The
// deferred release keeps a panicking intent from wedging the room busy.
func (c *Coordinator) applyLocked(ctx context.Context, room *Room, intent *Intent, cl *Client) ([]*Envelope, string, error) {
	defer room.release()

	envelopes, summary, err := room.apply(ctx, intent, cl.Who, c.directory)
	if err == nil {
		for _, env := range envelopes {
			room.broadcast(env)
		}
	}
	return envelopes, summary, err
}

// cursor pings skip the guard: they mutate nothing, so serialization would
// only add latency to the highest-volume intent.
func (c *Coordinator) handleCursorPing(room *Room, cl *Client, intent *Intent) {
	var p CursorPingPayload
	if err := decodePayload(intent, &p); err != nil {
		c.metrics.IntentHandled(intent.Type, "rejected")
		room.sendTo(cl, NewRejectedIntent(cl.CampaignID, intent.Type, err.Error()))
		return
	}

	room.broadcast(NewCursorMoved(cl.CampaignID, CursorPayload{
		UserID: cl.Who.UserID,
		X:      p.X,
		Y:      p.Y,
	}))
	c.metrics.IntentHandled(intent.Type, "accepted")

	room.sampler.RecordThrottled(domain.SampledEvent{
		Timestamp:      time.Now().UTC(),
		SessionID:      room.SessionID(),
		CampaignID:     cl.CampaignID,
		EventType:      intent.Type,
		ActorUserID:    cl.Who.UserID,
		Visibility:     domain.VisibilityPublic,
		PayloadSummary: fmt.Sprintf("%.0f,%.0f", p.X, p.Y),
		Success:        true,
	})
}

func sampleVisibility(envelopes []*Envelope) domain.Visibility {
	for _, env := range envelopes {
		if env.visibility == domain.VisibilityDMOnly {
			return domain.VisibilityDMOnly
		}
	}
	return domain.VisibilityPublic
}
