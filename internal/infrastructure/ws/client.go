package ws

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hearthside/gametable/internal/domain"
)

const (
	// keepalive: the server pings on a timer; a peer that stops answering
	// pongs times the read out instead of lingering until TCP reset
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// conn is the transport seam: connWrapper in production, a fake in tests.
type conn interface {
	WriteJSON(v any) error
	ReadMessage() (int, []byte, error)
	Ping(deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Client is one websocket connection inside a campaign room. A user with
// several tabs open owns several clients.
type Client struct {
	conn      conn
	Message   chan *Envelope
	pingEvery time.Duration

	ConnID     string             `json:"connId"`
	CampaignID string             `json:"campaignId"`
	Who        domain.Participant `json:"participant"`
	JoinedAt   time.Time          `json:"joinedAt"`
}

func NewClient(wsConn *websocket.Conn, campaignID string, who domain.Participant, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64 // buffered to avoid dead-locks on slow clients
	}
	return &Client{
		conn:       newConnWrapper(wsConn),
		Message:    make(chan *Envelope, buffer),
		pingEvery:  pingPeriod,
		ConnID:     uuid.NewString(),
		CampaignID: campaignID,
		Who:        who,
		JoinedAt:   time.Now().UTC(),
	}
}

// newTestClient builds a client without a socket; tests drain Message.
func newTestClient(campaignID string, who domain.Participant, buffer int) *Client {
	return &Client{
		Message:    make(chan *Envelope, buffer),
		ConnID:     uuid.NewString(),
		CampaignID: campaignID,
		Who:        who,
		JoinedAt:   time.Now().UTC(),
	}
}

// Entry is this connection's presence record.
func (c *Client) Entry() domain.PresenceEntry {
	return domain.PresenceEntry{
		ConnID:      c.ConnID,
		UserID:      c.Who.UserID,
		Username:    c.Who.Username,
		Role:        c.Who.Role,
		ConnectedAt: c.JoinedAt,
	}
}

// enqueue hands an envelope to the write pump. A slow client that has filled
// its buffer loses the message; the resync path exists for exactly that.
func (c *Client) enqueue(env *Envelope) bool {
	select {
	case c.Message <- env:
		return true
	default:
		log.Printf("client %s buffer full, dropping %s", c.ConnID, env.Type)
		return false
	}
}

// ReadPump consumes intents until the connection drops, then unregisters the
// client. A disconnect does not cancel an intent already being applied.
func (c *Client) ReadPump(core *Coordinator) {
	ctx := context.Background()
	defer func() {
		core.Leave(ctx, c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws read error (conn %s): %v", c.ConnID, err)
			}
			break
		}
		core.HandleIntent(ctx, c, raw)
	}
}

// WritePump drains the message channel onto the socket and keeps the
// connection alive with periodic pings.
func (c *Client) WritePump() {
	interval := c.pingEvery
	if interval <= 0 {
		interval = pingPeriod
	}
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.Message:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				log.Printf("ws write error (conn %s): %v", c.ConnID, err)
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(time.Now().Add(writeWait)); err != nil {
				log.Printf("ws ping error (conn %s): %v", c.ConnID, err)
				return
			}
		}
	}
}
