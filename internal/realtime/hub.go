package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/damoang/angple-messenger/internal/metrics"
	"github.com/damoang/angple-messenger/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisPubSubChannel = "messenger:realtime"

// Event types
const (
	EventMessageCreated = "message.created"
	EventMessageEdited  = "message.edited"
	EventMessageDeleted = "message.deleted"
	EventReadUpdated    = "read.updated"
	EventMemberLeft     = "member.left"
	EventPresenceJoin   = "presence.join"
	EventPresenceLeave  = "presence.leave"
	EventPresenceTyping = "presence.typing"
	EventInboxChanged   = "inbox.changed"
)

// InboxTopic carries inbox invalidations for every actor
const InboxTopic = "inbox"

// Event is delivered to every subscriber of Topic
type Event struct {
	At      time.Time       `json:"at"`
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Origin  string          `json:"origin,omitempty"` // emitting actor
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals payload into an Event stamped with the current time
func NewEvent(eventType, topic, origin string, payload interface{}) (*Event, error) {
	ev := &Event{Type: eventType, Topic: topic, Origin: origin, At: time.Now().UTC()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		ev.Payload = data
	}
	return ev, nil
}

// ConversationTopic is the topic carrying message events of a conversation
func ConversationTopic(conversationID string) string {
	return "conversation:" + conversationID
}

// PresenceTopic is the topic carrying presence signals of a conversation
func PresenceTopic(conversationID string) string {
	return "presence:" + conversationID
}

type topic struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// Hub is a topic-keyed publish/subscribe fan-out. Each topic has its own lock;
// sends never block, a full subscriber buffer drops the event.
type Hub struct {
	topics      map[string]*topic
	redisClient *redis.Client
	ctx         context.Context
	cancel      context.CancelFunc
	instanceID  string
	bufferSize  int
	mu          sync.Mutex
}

// NewHub creates a new Hub; redisClient may be nil for a single instance
func NewHub(redisClient *redis.Client, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		topics:      make(map[string]*topic),
		redisClient: redisClient,
		ctx:         ctx,
		cancel:      cancel,
		instanceID:  uuid.NewString(),
		bufferSize:  bufferSize,
	}
}

// Run bridges events from other instances until Stop is called
func (h *Hub) Run() {
	if h.redisClient == nil {
		<-h.ctx.Done()
		return
	}
	h.subscribeRedis()
}

// InstanceID identifies this process on the Redis bridge
func (h *Hub) InstanceID() string {
	return h.instanceID
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.cancel()
}

// Subscribe registers a new subscription on a topic
func (h *Hub) Subscribe(name string) *Subscription {
	sub := &Subscription{
		hub:    h,
		topic:  name,
		events: make(chan *Event, h.bufferSize),
	}

	h.mu.Lock()
	t, ok := h.topics[name]
	if !ok {
		t = &topic{subs: make(map[*Subscription]struct{})}
		h.topics[name] = t
	}
	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()
	h.mu.Unlock()

	return sub
}

// Subscribers returns the number of local subscriptions on a topic
func (h *Hub) Subscribers(name string) int {
	h.mu.Lock()
	t, ok := h.topics[name]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// Publish delivers locally and forwards to other instances
func (h *Hub) Publish(ctx context.Context, ev *Event) error {
	h.deliver(ev)

	if h.redisClient == nil {
		return nil
	}
	data, err := json.Marshal(&redisMessage{Instance: h.instanceID, Event: ev})
	if err != nil {
		return err
	}
	return h.redisClient.Publish(ctx, redisPubSubChannel, data).Err()
}

func (h *Hub) deliver(ev *Event) {
	h.mu.Lock()
	t, ok := h.topics[ev.Topic]
	h.mu.Unlock()
	if !ok {
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	for sub := range t.subs {
		select {
		case sub.events <- ev:
		default:
			metrics.RealtimeDropped.Inc()
		}
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[sub.topic]
	if !ok {
		return
	}
	t.mu.Lock()
	delete(t.subs, sub)
	close(sub.events)
	empty := len(t.subs) == 0
	t.mu.Unlock()
	if empty {
		delete(h.topics, sub.topic)
	}
}

type redisMessage struct {
	Event    *Event `json:"event"`
	Instance string `json:"instance"`
}

// subscribeRedis listens for events published by other instances
func (h *Hub) subscribeRedis() {
	pubsub := h.redisClient.Subscribe(h.ctx, redisPubSubChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var rm redisMessage
			if err := json.Unmarshal([]byte(msg.Payload), &rm); err != nil || rm.Event == nil {
				logger.GetLogger().Warn().Err(err).Msg("realtime: malformed bridge message")
				continue
			}
			// Own messages were already delivered locally
			if rm.Instance == h.instanceID {
				continue
			}
			h.deliver(rm.Event)
		case <-h.ctx.Done():
			return
		}
	}
}

// Subscription is a scoped registration on one topic; Close releases it
type Subscription struct {
	hub    *Hub
	events chan *Event
	topic  string
	once   sync.Once
}

// Events returns the receive side; it is closed by Close
func (s *Subscription) Events() <-chan *Event {
	return s.events
}

// Topic returns the subscribed topic
func (s *Subscription) Topic() string {
	return s.topic
}

// Close unregisters the subscription; safe to call more than once
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}
