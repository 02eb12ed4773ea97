package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/presence"
	"github.com/damoang/angple-messenger/internal/realtime"
	"github.com/damoang/angple-messenger/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256

	// recheckInterval bounds how long a revoked membership keeps receiving events
	recheckInterval = 5 * time.Second
)

// Client frame types
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameTyping      = "typing"
	FrameIdle        = "idle"
	FrameSubscribed  = "subscribed"
	FrameRevoked     = "revoked"
	FrameError       = "error"
)

// Frame is a control message exchanged with the client
type Frame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Authorizer decides whether an actor may watch a conversation
type Authorizer interface {
	Readable(ctx context.Context, actorID, conversationID string) (*domain.Conversation, []*domain.ConversationMember, error)
}

type room struct {
	sub       *realtime.Subscription
	handle    *presence.Handle
	checkedAt time.Time // owned by forwardEvents
}

// Client represents a single WebSocket connection acting as one actor
type Client struct {
	conn     *websocket.Conn
	hub      *realtime.Hub
	gate     Authorizer
	presence *presence.Channel
	actorID  string
	send     chan []byte

	recheckEvery time.Duration

	rooms map[string]*room
	mu    sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, hub *realtime.Hub, gate Authorizer, ch *presence.Channel, actorID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:     conn,
		hub:      hub,
		gate:     gate,
		presence: ch,
		actorID:  actorID,
		send:     make(chan []byte, sendBuffer),
		rooms:    make(map[string]*room),
		ctx:      ctx,
		cancel:   cancel,

		recheckEvery: recheckInterval,
	}
}

// Serve runs both pumps and returns when the connection is gone
func (c *Client) Serve() {
	go c.WritePump()
	go c.watchInbox()
	c.ReadPump()
}

// ReadPump reads control frames until the connection drops, then releases every room
func (c *Client) ReadPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.reply(Frame{Type: FrameError, Error: "malformed frame"})
			continue
		}
		c.handle(f)
	}
}

// WritePump sends queued frames and keeps the connection alive
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.cancel()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))    //nolint:errcheck
			c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
			return
		}
	}
}

func (c *Client) handle(f Frame) {
	switch f.Type {
	case FrameSubscribe:
		if err := c.subscribe(f.ConversationID); err != nil {
			c.reply(Frame{Type: FrameError, ConversationID: f.ConversationID, Error: errorText(err)})
			return
		}
		c.reply(Frame{Type: FrameSubscribed, ConversationID: f.ConversationID})
	case FrameUnsubscribe:
		c.unsubscribe(f.ConversationID)
	case FrameTyping, FrameIdle:
		c.mu.Lock()
		r, ok := c.rooms[f.ConversationID]
		c.mu.Unlock()
		if !ok {
			c.reply(Frame{Type: FrameError, ConversationID: f.ConversationID, Error: "not subscribed"})
			return
		}
		kind := presence.KindTyping
		if f.Type == FrameIdle {
			kind = presence.KindIdle
		}
		c.presence.Publish(c.ctx, r.handle, kind)
	default:
		c.reply(Frame{Type: FrameError, Error: "unknown frame type"})
	}
}

func (c *Client) subscribe(conversationID string) error {
	if conversationID == "" {
		return common.Invalid("conversation_id is required")
	}
	c.mu.Lock()
	_, ok := c.rooms[conversationID]
	c.mu.Unlock()
	if ok {
		return nil
	}

	if _, _, err := c.gate.Readable(c.ctx, c.actorID, conversationID); err != nil {
		return err
	}

	handle, err := c.presence.Join(c.ctx, conversationID, c.actorID)
	if err != nil {
		return err
	}
	r := &room{
		sub:       c.hub.Subscribe(realtime.ConversationTopic(conversationID)),
		handle:    handle,
		checkedAt: time.Now(),
	}

	c.mu.Lock()
	if _, dup := c.rooms[conversationID]; dup {
		c.mu.Unlock()
		r.sub.Close()
		c.presence.Leave(handle)
		return nil
	}
	c.rooms[conversationID] = r
	c.mu.Unlock()

	go c.forwardEvents(conversationID, r)
	go c.forwardSignals(handle)
	return nil
}

func (c *Client) unsubscribe(conversationID string) {
	c.mu.Lock()
	r, ok := c.rooms[conversationID]
	delete(c.rooms, conversationID)
	c.mu.Unlock()
	if ok {
		r.release(c.presence)
	}
}

// revoke drops the room after the actor lost access and tells the client
func (c *Client) revoke(conversationID string, r *room) {
	c.mu.Lock()
	owned := c.rooms[conversationID] == r
	if owned {
		delete(c.rooms, conversationID)
	}
	c.mu.Unlock()
	if !owned {
		return
	}
	r.release(c.presence)
	c.reply(Frame{Type: FrameRevoked, ConversationID: conversationID})
}

func (r *room) release(ch *presence.Channel) {
	r.sub.Close()
	ch.Leave(r.handle)
}

func (c *Client) close() {
	c.cancel()
	c.mu.Lock()
	rooms := c.rooms
	c.rooms = make(map[string]*room)
	c.mu.Unlock()
	for _, r := range rooms {
		r.release(c.presence)
	}
	c.conn.Close()
}

func (c *Client) forwardEvents(conversationID string, r *room) {
	for ev := range r.sub.Events() {
		if ev.Type == realtime.EventMemberLeft && leftActor(ev) == c.actorID {
			c.revoke(conversationID, r)
			return
		}
		if !c.stillReadable(conversationID, r) {
			if c.ctx.Err() == nil {
				c.revoke(conversationID, r)
			}
			return
		}
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		c.enqueue(data)
	}
}

// stillReadable re-runs the gate at most once per recheckEvery
func (c *Client) stillReadable(conversationID string, r *room) bool {
	if time.Since(r.checkedAt) < c.recheckEvery {
		return true
	}
	if _, _, err := c.gate.Readable(c.ctx, c.actorID, conversationID); err != nil {
		return false
	}
	r.checkedAt = time.Now()
	return true
}

func leftActor(ev *realtime.Event) string {
	var payload struct {
		ActorID string `json:"actor_id"`
	}
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return ""
	}
	return payload.ActorID
}

func (c *Client) forwardSignals(h *presence.Handle) {
	for sig := range h.Signals() {
		ev, err := realtime.NewEvent("presence."+string(sig.Kind), realtime.PresenceTopic(sig.ConversationID), sig.ActorID, sig)
		if err != nil {
			continue
		}
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		c.enqueue(data)
	}
}

// watchInbox forwards inbox invalidations that concern this actor
func (c *Client) watchInbox() {
	sub := c.hub.Subscribe(realtime.InboxTopic)
	defer sub.Close()
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			var payload struct {
				ActorIDs []string `json:"actor_ids"`
			}
			if err := json.Unmarshal(ev.Payload, &payload); err != nil || !contains(payload.ActorIDs, c.actorID) {
				continue
			}
			out, err := realtime.NewEvent(realtime.EventInboxChanged, realtime.InboxTopic, "", nil)
			if err != nil {
				continue
			}
			if data, err := json.Marshal(out); err == nil {
				c.enqueue(data)
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) reply(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.enqueue(data)
}

// enqueue never blocks a forwarder; a client that cannot keep up loses frames
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	case <-c.ctx.Done():
	default:
		logger.GetLogger().Warn().Str("actor_id", c.actorID).Msg("websocket send buffer full, dropping frame")
	}
}

func errorText(err error) string {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return "not found"
	case errors.Is(err, common.ErrInvalidArgument):
		return "invalid argument"
	default:
		return "unavailable"
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
