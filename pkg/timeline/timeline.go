// Package timeline reconciles optimistic local sends with server acks.
//
// Each send is tracked by its client id through pending -> confirmed | failed.
// A failed entry can be retried with the same client id, and a confirmation
// arriving for a failed entry (the server applied a send the caller had given
// up on) promotes it to confirmed. Matching never looks at content or time,
// so the rendered list holds exactly one row per client id.
//
// The server never imports this package. It is exported for Go SDK and client
// consumers that render a conversation while sends are in flight.
package timeline

import (
	"errors"
	"sort"
	"sync"

	"github.com/damoang/angple-messenger/internal/domain"
)

// Ack is the server's view of a persisted message
type Ack = domain.MessageView

// MessageType names the kind of a drafted message ("text", "image", ...)
type MessageType = domain.MessageType

// State of a timeline entry
type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

var (
	// ErrDuplicateClientID a live entry already uses the client id
	ErrDuplicateClientID = errors.New("timeline: client id already in use")
	// ErrNotFailed only failed entries can be retried
	ErrNotFailed = errors.New("timeline: entry is not failed")
	// ErrUnknownClientID no entry carries the client id
	ErrUnknownClientID = errors.New("timeline: unknown client id")
)

// Draft is what the caller wants to send
type Draft struct {
	Body           *string
	MediaURL       *string
	ConversationID string
	SenderActorID  string
	ClientID       string
	Type           MessageType
}

// Entry is one rendered row
type Entry struct {
	Err     error
	Message *Ack
	Draft   Draft
	State   State
	// LocalID is negative while the entry has no server id
	LocalID int64
}

// ID returns the server id once confirmed, else the local sentinel id
func (e Entry) ID() int64 {
	if e.State == StateConfirmed && e.Message != nil {
		return int64(e.Message.ID)
	}
	return e.LocalID
}

// Timeline is the client-side view of one conversation
type Timeline struct {
	entries   map[string]*Entry
	nextLocal int64
	mu        sync.Mutex
}

// New creates an empty timeline
func New() *Timeline {
	return &Timeline{entries: make(map[string]*Entry)}
}

func key(sender, clientID string) string {
	return sender + "\x00" + clientID
}

// Add records a pending entry for draft
func (t *Timeline) Add(d Draft) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key(d.SenderActorID, d.ClientID)
	if _, ok := t.entries[k]; ok {
		return Entry{}, ErrDuplicateClientID
	}
	t.nextLocal--
	e := &Entry{Draft: d, State: StatePending, LocalID: t.nextLocal}
	t.entries[k] = e
	return *e, nil
}

// Confirm applies a server ack or a realtime echo. A pending or failed entry
// with the same client id is replaced; an unknown one is inserted.
func (t *Timeline) Confirm(v *Ack) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key(v.SenderActorID, v.ClientID)
	e, ok := t.entries[k]
	if !ok {
		t.nextLocal--
		e = &Entry{LocalID: t.nextLocal, Draft: Draft{
			ConversationID: v.ConversationID,
			SenderActorID:  v.SenderActorID,
			ClientID:       v.ClientID,
			Type:           v.Type,
		}}
		t.entries[k] = e
	}
	e.State = StateConfirmed
	e.Message = v
	e.Err = nil
	return *e
}

// Fail marks a pending send as failed. Confirmed entries are left alone:
// an ack that already landed wins over a late failure.
func (t *Timeline) Fail(sender, clientID string, err error) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key(sender, clientID)]
	if !ok {
		return Entry{}, ErrUnknownClientID
	}
	if e.State == StatePending {
		e.State = StateFailed
		e.Err = err
	}
	return *e, nil
}

// Retry moves a failed entry back to pending and returns the draft to resend
func (t *Timeline) Retry(sender, clientID string) (Draft, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key(sender, clientID)]
	if !ok {
		return Draft{}, ErrUnknownClientID
	}
	if e.State != StateFailed {
		return Draft{}, ErrNotFailed
	}
	e.State = StatePending
	e.Err = nil
	return e.Draft, nil
}

// Get returns the entry of a client id
func (t *Timeline) Get(sender, clientID string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key(sender, clientID)]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns rows in display order: confirmed by (created_at, id),
// then unconfirmed in creation order.
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ac, bc := a.State == StateConfirmed, b.State == StateConfirmed
		if ac != bc {
			return ac
		}
		if !ac {
			return a.LocalID > b.LocalID
		}
		if !a.Message.CreatedAt.Equal(b.Message.CreatedAt) {
			return a.Message.CreatedAt.Before(b.Message.CreatedAt)
		}
		return a.Message.ID < b.Message.ID
	})
	return out
}
