// Package presence carries ephemeral participant signals over the realtime hub.
package presence

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/metrics"
	"github.com/damoang/angple-messenger/internal/realtime"
	"github.com/damoang/angple-messenger/pkg/logger"
)

// Transport is the pub/sub primitive presence rides on
type Transport interface {
	Publish(ctx context.Context, ev *realtime.Event) error
	Subscribe(topic string) *realtime.Subscription
}

type room struct {
	handles map[*Handle]struct{}
	mu      sync.Mutex
}

// Channel tracks who is present per conversation on this instance and
// fans presence signals out through the transport. Nothing survives a restart.
type Channel struct {
	transport  Transport
	rooms      map[string]*room
	staleAfter time.Duration
	bufferSize int
	mu         sync.Mutex // guards rooms lookup only
}

// NewChannel creates a presence channel
func NewChannel(transport Transport, staleAfter time.Duration, bufferSize int) *Channel {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Channel{
		transport:  transport,
		rooms:      make(map[string]*room),
		staleAfter: staleAfter,
		bufferSize: bufferSize,
	}
}

// StaleAfter returns the configured expiry for consumers
func (c *Channel) StaleAfter() time.Duration {
	return c.staleAfter
}

// Join registers actorID in the conversation's presence set and announces it.
// The caller must Leave the returned handle.
func (c *Channel) Join(ctx context.Context, conversationID, actorID string) (*Handle, error) {
	if conversationID == "" || actorID == "" {
		return nil, common.Invalid("conversation and actor are required")
	}

	h := &Handle{
		ch:             c,
		conversationID: conversationID,
		actorID:        actorID,
		signals:        make(chan Signal, c.bufferSize),
		done:           make(chan struct{}),
	}
	h.sub = c.transport.Subscribe(realtime.PresenceTopic(conversationID))

	c.mu.Lock()
	r, ok := c.rooms[conversationID]
	if !ok {
		r = &room{handles: make(map[*Handle]struct{})}
		c.rooms[conversationID] = r
	}
	r.mu.Lock()
	r.handles[h] = struct{}{}
	r.mu.Unlock()
	c.mu.Unlock()

	metrics.PresenceHandles.Inc()
	go h.pump()

	c.announce(ctx, h, KindJoin)
	return h, nil
}

// Publish stamps and fans out a signal to the other members. Failures are
// logged and swallowed.
func (c *Channel) Publish(ctx context.Context, h *Handle, kind SignalKind) {
	if h == nil || h.closed() {
		return
	}
	c.announce(ctx, h, kind)
}

// Leave removes the handle from the presence set; safe to call more than once
func (c *Channel) Leave(h *Handle) {
	if h == nil {
		return
	}
	h.once.Do(func() {
		close(h.done)

		c.mu.Lock()
		if r, ok := c.rooms[h.conversationID]; ok {
			r.mu.Lock()
			delete(r.handles, h)
			empty := len(r.handles) == 0
			r.mu.Unlock()
			if empty {
				delete(c.rooms, h.conversationID)
			}
		}
		c.mu.Unlock()

		metrics.PresenceHandles.Dec()
		c.announce(context.Background(), h, KindLeave)
		h.sub.Close()
	})
}

// Present returns the distinct actors joined to a conversation on this instance
func (c *Channel) Present(conversationID string) []string {
	c.mu.Lock()
	r, ok := c.rooms[conversationID]
	c.mu.Unlock()
	if !ok {
		return nil
	}

	r.mu.Lock()
	seen := make(map[string]struct{}, len(r.handles))
	for h := range r.handles {
		seen[h.actorID] = struct{}{}
	}
	r.mu.Unlock()

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (c *Channel) announce(ctx context.Context, h *Handle, kind SignalKind) {
	sig := Signal{
		ConversationID: h.conversationID,
		ActorID:        h.actorID,
		Kind:           kind,
		Timestamp:      time.Now().UTC(),
	}
	ev, err := realtime.NewEvent(eventType(kind), realtime.PresenceTopic(h.conversationID), h.actorID, sig)
	if err == nil {
		err = c.transport.Publish(ctx, ev)
	}
	if err != nil {
		logger.GetLogger().Warn().Err(err).
			Str("conversation_id", h.conversationID).
			Str("actor_id", h.actorID).
			Msg("presence publish failed")
	}
}

func eventType(kind SignalKind) string {
	switch kind {
	case KindJoin:
		return realtime.EventPresenceJoin
	case KindLeave:
		return realtime.EventPresenceLeave
	default:
		return realtime.EventPresenceTyping
	}
}

// Handle is one actor's presence registration in one conversation
type Handle struct {
	ch             *Channel
	sub            *realtime.Subscription
	signals        chan Signal
	done           chan struct{}
	conversationID string
	actorID        string
	once           sync.Once
}

// ConversationID returns the joined conversation
func (h *Handle) ConversationID() string { return h.conversationID }

// ActorID returns the joined actor
func (h *Handle) ActorID() string { return h.actorID }

// Signals delivers signals from other actors; closed after Leave
func (h *Handle) Signals() <-chan Signal {
	return h.signals
}

func (h *Handle) closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Handle) pump() {
	defer close(h.signals)
	for ev := range h.sub.Events() {
		if ev.Origin == h.actorID {
			continue
		}
		var sig Signal
		if err := json.Unmarshal(ev.Payload, &sig); err != nil {
			continue
		}
		select {
		case h.signals <- sig:
		default:
			// most recent wins, a full buffer drops
		}
	}
}
