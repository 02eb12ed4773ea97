package service

import (
	"context"
	"encoding/json"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/invalidate"
	"github.com/damoang/angple-messenger/internal/realtime"
	"github.com/damoang/angple-messenger/pkg/logger"
)

// Notifier bumps inbox versions and pushes conversation events.
// Bumps are mirrored to other instances through the hub.
type Notifier struct {
	versions *invalidate.Versions
	hub      *realtime.Hub
}

type inboxChanged struct {
	ActorIDs []string `json:"actor_ids"`
}

// NewNotifier creates a Notifier
func NewNotifier(versions *invalidate.Versions, hub *realtime.Hub) *Notifier {
	return &Notifier{versions: versions, hub: hub}
}

// Versions returns the inbox version counters
func (n *Notifier) Versions() *invalidate.Versions {
	return n.versions
}

// BumpInbox invalidates the inboxes of actorIDs
func (n *Notifier) BumpInbox(ctx context.Context, actorIDs ...string) {
	if len(actorIDs) == 0 {
		return
	}
	n.versions.Bump(actorIDs...)

	ev, err := realtime.NewEvent(realtime.EventInboxChanged, realtime.InboxTopic, n.hub.InstanceID(), inboxChanged{ActorIDs: actorIDs})
	if err == nil {
		err = n.hub.Publish(ctx, ev)
	}
	if err != nil {
		logger.GetLogger().Warn().Err(err).Msg("inbox invalidation publish failed")
	}
}

// Conversation publishes a message-level event on the conversation topic
func (n *Notifier) Conversation(ctx context.Context, eventType, conversationID, origin string, payload interface{}) {
	ev, err := realtime.NewEvent(eventType, realtime.ConversationTopic(conversationID), origin, payload)
	if err == nil {
		err = n.hub.Publish(ctx, ev)
	}
	if err != nil {
		logger.GetLogger().Warn().Err(err).
			Str("conversation_id", conversationID).
			Str("event", eventType).
			Msg("realtime publish failed")
	}
}

// Listen applies inbox invalidations from other instances until ctx is done
func (n *Notifier) Listen(ctx context.Context) {
	sub := n.hub.Subscribe(realtime.InboxTopic)
	defer sub.Close()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if ev.Origin == n.hub.InstanceID() {
				continue
			}
			var payload inboxChanged
			if err := json.Unmarshal(ev.Payload, &payload); err != nil {
				continue
			}
			n.versions.Bump(payload.ActorIDs...)
		case <-ctx.Done():
			return
		}
	}
}

// messageEvent is the payload of message.* events
type messageEvent struct {
	Message *domain.MessageView `json:"message"`
}

// memberEvent is the payload of member.left
type memberEvent struct {
	ActorID string `json:"actor_id"`
}

// readEvent is the payload of read.updated
type readEvent struct {
	ActorID           string `json:"actor_id"`
	LastReadMessageID uint64 `json:"last_read_message_id"`
}
