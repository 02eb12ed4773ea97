package presence

import (
	"sort"
	"sync"
	"time"
)

// DefaultStaleAfter is how long a signal stays meaningful to consumers
const DefaultStaleAfter = 5 * time.Second

// SignalKind distinguishes presence signals
type SignalKind string

const (
	KindJoin   SignalKind = "join"
	KindLeave  SignalKind = "leave"
	KindTyping SignalKind = "typing"
	KindIdle   SignalKind = "idle"
)

// Signal is an ephemeral, never persisted presence notice
type Signal struct {
	Timestamp      time.Time  `json:"timestamp"`
	ConversationID string     `json:"conversation_id"`
	ActorID        string     `json:"actor_id"`
	Kind           SignalKind `json:"kind"`
}

// Stale reports whether the signal is older than after at now
func (s Signal) Stale(now time.Time, after time.Duration) bool {
	return now.Sub(s.Timestamp) > after
}

// Typing keeps the most recent typing signal per actor and expires stale ones.
// Consumers feed it from Handle.Signals. The server forwards raw signals, so
// Typing is exported for SDK and client consumers that render indicators.
type Typing struct {
	last       map[string]Signal
	staleAfter time.Duration
	mu         sync.Mutex
}

// NewTyping creates a tracker; staleAfter <= 0 uses DefaultStaleAfter
func NewTyping(staleAfter time.Duration) *Typing {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Typing{last: make(map[string]Signal), staleAfter: staleAfter}
}

// Observe applies a signal; older signals than the stored one are ignored
func (t *Typing) Observe(sig Signal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.last[sig.ActorID]
	if ok && sig.Timestamp.Before(prev.Timestamp) {
		return
	}
	switch sig.Kind {
	case KindTyping:
		t.last[sig.ActorID] = sig
	case KindIdle, KindLeave:
		delete(t.last, sig.ActorID)
	}
}

// Active returns actors with a fresh typing signal, sorted
func (t *Typing) Active(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.last))
	for actor, sig := range t.last {
		if sig.Stale(now, t.staleAfter) {
			delete(t.last, actor)
			continue
		}
		out = append(out, actor)
	}
	sort.Strings(out)
	return out
}
