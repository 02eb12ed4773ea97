package timeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draft(clientID, body string) Draft {
	return Draft{ConversationID: "c1", SenderActorID: "alice", ClientID: clientID, Type: domain.MessageTypeText, Body: &body}
}

func ack(id uint64, d Draft, at time.Time) *domain.MessageView {
	return &domain.MessageView{
		ID: id, ConversationID: d.ConversationID, SenderActorID: d.SenderActorID,
		ClientID: d.ClientID, Type: d.Type, Body: d.Body, CreatedAt: at,
	}
}

func countClient(entries []Entry, clientID string) int {
	n := 0
	for _, e := range entries {
		if e.Draft.ClientID == clientID {
			n++
		}
	}
	return n
}

func TestTimeline_PendingToConfirmed(t *testing.T) {
	tl := New()
	d := draft("k1", "hi")
	e, err := tl.Add(d)
	require.NoError(t, err)
	assert.Equal(t, StatePending, e.State)
	assert.Less(t, e.ID(), int64(0))

	_, err = tl.Add(d)
	assert.ErrorIs(t, err, ErrDuplicateClientID)

	got := tl.Confirm(ack(42, d, time.Now()))
	assert.Equal(t, StateConfirmed, got.State)
	assert.Equal(t, int64(42), got.ID())

	// realtime echo of the same message after the ack
	tl.Confirm(ack(42, d, time.Now()))
	assert.Equal(t, 1, countClient(tl.Entries(), "k1"))
}

func TestTimeline_IdenticalContentDoesNotCollide(t *testing.T) {
	tl := New()
	a, b := draft("k1", "same"), draft("k2", "same")
	_, _ = tl.Add(a)
	_, _ = tl.Add(b)
	now := time.Now()
	tl.Confirm(ack(2, b, now))

	entries := tl.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "k2", entries[0].Draft.ClientID)
	assert.Equal(t, StatePending, entries[1].State)
}

func TestTimeline_FailRetry(t *testing.T) {
	tl := New()
	d := draft("k1", "hi")
	_, _ = tl.Add(d)

	e, err := tl.Fail("alice", "k1", errors.New("offline"))
	require.NoError(t, err)
	assert.Equal(t, StateFailed, e.State)
	assert.Error(t, e.Err)

	_, err = tl.Retry("alice", "nope")
	assert.ErrorIs(t, err, ErrUnknownClientID)

	again, err := tl.Retry("alice", "k1")
	require.NoError(t, err)
	assert.Equal(t, "k1", again.ClientID)

	_, err = tl.Retry("alice", "k1")
	assert.ErrorIs(t, err, ErrNotFailed)
}

func TestTimeline_LateAckWinsOverFailure(t *testing.T) {
	tl := New()
	d := draft("k1", "hi")
	_, _ = tl.Add(d)
	tl.Confirm(ack(5, d, time.Now()))

	e, err := tl.Fail("alice", "k1", context.Canceled)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, e.State)

	// a failed entry is promoted when the server turns out to have the row
	d2 := draft("k2", "there")
	_, _ = tl.Add(d2)
	_, _ = tl.Fail("alice", "k2", context.Canceled)
	tl.Confirm(ack(6, d2, time.Now()))
	got, ok := tl.Get("alice", "k2")
	require.True(t, ok)
	assert.Equal(t, StateConfirmed, got.State)
	assert.Equal(t, 1, countClient(tl.Entries(), "k2"))
}

func TestTimeline_EntriesOrder(t *testing.T) {
	tl := New()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tl.Confirm(ack(3, draft("k3", "c"), ts.Add(time.Second)))
	tl.Confirm(ack(2, draft("k2", "b"), ts))
	tl.Confirm(ack(1, draft("k1", "a"), ts))
	_, _ = tl.Add(draft("k4", "d"))
	_, _ = tl.Add(draft("k5", "e"))

	var ids []string
	for _, e := range tl.Entries() {
		ids = append(ids, e.Draft.ClientID)
	}
	assert.Equal(t, []string{"k1", "k2", "k3", "k4", "k5"}, ids)
}

func TestSender(t *testing.T) {
	tl := New()
	var nextID uint64
	fail := true
	s := NewSender(tl, func(ctx context.Context, d Draft) (*domain.MessageView, error) {
		if fail {
			return nil, errors.New("storage unavailable")
		}
		nextID++
		return ack(nextID, d, time.Now()), nil
	})

	e, err := s.Send(context.Background(), draft("k1", "hi"))
	assert.Error(t, err)
	assert.Equal(t, StateFailed, e.State)

	fail = false
	e, err = s.Resend(context.Background(), "alice", "k1")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, e.State)
	assert.Equal(t, 1, countClient(tl.Entries(), "k1"))

	_, err = s.Resend(context.Background(), "alice", "k1")
	assert.ErrorIs(t, err, ErrNotFailed)
}
