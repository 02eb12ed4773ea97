package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesSent counts confirmed sends by message type
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_messages_sent_total",
			Help: "Total number of messages persisted",
		},
		[]string{"type"},
	)

	// MessageMutations counts edits and deletes
	MessageMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_message_mutations_total",
			Help: "Total number of message edits and soft deletes",
		},
		[]string{"op"},
	)

	// ConversationResolves counts resolve outcomes: existing, created, raced
	ConversationResolves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_conversation_resolve_total",
			Help: "Conversation resolve calls by outcome",
		},
		[]string{"outcome"},
	)

	// PresenceHandles is the number of joined presence handles on this instance
	PresenceHandles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "messenger_presence_handles",
			Help: "Number of active presence handles",
		},
	)

	// RealtimeDropped counts events dropped for slow subscribers
	RealtimeDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messenger_realtime_dropped_total",
			Help: "Realtime events dropped because a subscriber buffer was full",
		},
	)
)
