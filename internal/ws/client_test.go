package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/presence"
	"github.com/damoang/angple-messenger/internal/realtime"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type allowList map[string]bool

func (a allowList) Readable(_ context.Context, _, conversationID string) (*domain.Conversation, []*domain.ConversationMember, error) {
	if !a[conversationID] {
		return nil, nil, common.ErrNotFound
	}
	return &domain.Conversation{ID: conversationID}, nil, nil
}

// revocable allows c1 to every actor not revoked
type revocable struct {
	revoked map[string]bool
	mu      sync.Mutex
}

func (r *revocable) revoke(actorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revoked == nil {
		r.revoked = make(map[string]bool)
	}
	r.revoked[actorID] = true
}

func (r *revocable) Readable(ctx context.Context, actorID, conversationID string) (*domain.Conversation, []*domain.ConversationMember, error) {
	r.mu.Lock()
	denied := r.revoked[actorID]
	r.mu.Unlock()
	if denied {
		return nil, nil, common.ErrNotFound
	}
	return allowList{"c1": true}.Readable(ctx, actorID, conversationID)
}

type testServer struct {
	hub      *realtime.Hub
	presence *presence.Channel
	url      string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newGatedServer(t, allowList{"c1": true}, recheckInterval)
}

func newGatedServer(t *testing.T, gate Authorizer, recheck time.Duration) *testServer {
	t.Helper()
	hub := realtime.NewHub(nil, 32)
	ts := &testServer{hub: hub, presence: presence.NewChannel(hub, time.Second, 8)}
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(conn, hub, gate, ts.presence, r.URL.Query().Get("actor"))
		c.recheckEvery = recheck
		c.Serve()
	}))
	t.Cleanup(srv.Close)
	ts.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return ts
}

func (ts *testServer) dial(t *testing.T, actor string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.url+"?actor="+actor, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, f Frame) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(f))
}

// next reads frames until one of type typ arrives
func next(t *testing.T, conn *websocket.Conn, typ string) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var m map[string]json.RawMessage
		require.NoError(t, conn.ReadJSON(&m))
		var got string
		require.NoError(t, json.Unmarshal(m["type"], &got))
		if got == typ {
			return m
		}
	}
}

// quiet fails if a frame of type typ arrives within d. The connection is
// unusable for reads afterwards.
func quiet(t *testing.T, conn *websocket.Conn, typ string, d time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(d)))
	for {
		var m map[string]json.RawMessage
		if err := conn.ReadJSON(&m); err != nil {
			return
		}
		var got string
		require.NoError(t, json.Unmarshal(m["type"], &got))
		require.NotEqual(t, typ, got, "unexpected frame: %s", m["payload"])
	}
}

func publish(t *testing.T, hub *realtime.Hub, eventType, origin string, payload interface{}) {
	t.Helper()
	ev, err := realtime.NewEvent(eventType, realtime.ConversationTopic("c1"), origin, payload)
	require.NoError(t, err)
	require.NoError(t, hub.Publish(context.Background(), ev))
}

func TestClient_SubscribeAndReceive(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "alice")

	send(t, conn, Frame{Type: FrameSubscribe, ConversationID: "c1"})
	next(t, conn, FrameSubscribed)

	ev, err := realtime.NewEvent(realtime.EventMessageCreated, realtime.ConversationTopic("c1"), "bob", map[string]string{"body": "hi"})
	require.NoError(t, err)
	require.NoError(t, ts.hub.Publish(context.Background(), ev))

	got := next(t, conn, realtime.EventMessageCreated)
	assert.JSONEq(t, `{"body":"hi"}`, string(got["payload"]))
}

func TestClient_LeaveRevokesSubscription(t *testing.T) {
	gate := &revocable{}
	ts := newGatedServer(t, gate, recheckInterval)
	alice := ts.dial(t, "alice")
	bob := ts.dial(t, "bob")

	send(t, alice, Frame{Type: FrameSubscribe, ConversationID: "c1"})
	next(t, alice, FrameSubscribed)
	send(t, bob, Frame{Type: FrameSubscribe, ConversationID: "c1"})
	next(t, bob, FrameSubscribed)
	next(t, alice, realtime.EventPresenceJoin)

	gate.revoke("bob")
	publish(t, ts.hub, realtime.EventMemberLeft, "bob", map[string]string{"actor_id": "bob"})

	got := next(t, bob, FrameRevoked)
	assert.JSONEq(t, `"c1"`, string(got["conversation_id"]))
	next(t, alice, realtime.EventMemberLeft)
	assert.Equal(t, []string{"alice"}, ts.presence.Present("c1"))

	// typing is refused once the room is gone
	send(t, bob, Frame{Type: FrameTyping, ConversationID: "c1"})
	got = next(t, bob, FrameError)
	assert.JSONEq(t, `"not subscribed"`, string(got["error"]))

	publish(t, ts.hub, realtime.EventMessageCreated, "alice", map[string]string{"body": "after leave"})
	next(t, alice, realtime.EventMessageCreated)
	quiet(t, bob, realtime.EventMessageCreated, 300*time.Millisecond)
}

func TestClient_RecheckDropsRevokedReader(t *testing.T) {
	gate := &revocable{}
	ts := newGatedServer(t, gate, 0)
	bob := ts.dial(t, "bob")

	send(t, bob, Frame{Type: FrameSubscribe, ConversationID: "c1"})
	next(t, bob, FrameSubscribed)

	gate.revoke("bob")
	publish(t, ts.hub, realtime.EventMessageCreated, "alice", map[string]string{"body": "secret after leave"})

	// the message is never forwarded; revocation is the next frame
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, bob.ReadJSON(&f))
	assert.Equal(t, Frame{Type: FrameRevoked, ConversationID: "c1"}, f)
	assert.Eventually(t, func() bool {
		return ts.hub.Subscribers(realtime.ConversationTopic("c1")) == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, ts.presence.Present("c1"))
}

func TestClient_SubscribeDenied(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "alice")

	send(t, conn, Frame{Type: FrameSubscribe, ConversationID: "secret"})
	got := next(t, conn, FrameError)
	assert.JSONEq(t, `"not found"`, string(got["error"]))
	assert.Zero(t, ts.hub.Subscribers(realtime.ConversationTopic("secret")))

	send(t, conn, Frame{Type: FrameTyping, ConversationID: "secret"})
	got = next(t, conn, FrameError)
	assert.JSONEq(t, `"not subscribed"`, string(got["error"]))
}

func TestClient_TypingReachesOthersOnly(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t, "alice")
	bob := ts.dial(t, "bob")

	send(t, alice, Frame{Type: FrameSubscribe, ConversationID: "c1"})
	next(t, alice, FrameSubscribed)
	send(t, bob, Frame{Type: FrameSubscribe, ConversationID: "c1"})
	next(t, bob, FrameSubscribed)
	next(t, alice, realtime.EventPresenceJoin)

	send(t, bob, Frame{Type: FrameTyping, ConversationID: "c1"})
	got := next(t, alice, realtime.EventPresenceTyping)
	var origin string
	require.NoError(t, json.Unmarshal(got["origin"], &origin))
	assert.Equal(t, "bob", origin)

	assert.Equal(t, []string{"alice", "bob"}, ts.presence.Present("c1"))

	// disconnecting leaves the room
	bob.Close()
	next(t, alice, realtime.EventPresenceLeave)
	assert.Eventually(t, func() bool {
		return len(ts.presence.Present("c1")) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_InboxChangedFiltered(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "alice")
	require.Eventually(t, func() bool {
		return ts.hub.Subscribers(realtime.InboxTopic) == 1
	}, 2*time.Second, 10*time.Millisecond)

	for _, ids := range [][]string{{"bob"}, {"bob", "alice"}} {
		ev, err := realtime.NewEvent(realtime.EventInboxChanged, realtime.InboxTopic, "node", map[string][]string{"actor_ids": ids})
		require.NoError(t, err)
		require.NoError(t, ts.hub.Publish(context.Background(), ev))
	}

	got := next(t, conn, realtime.EventInboxChanged)
	assert.Empty(t, got["payload"])
}
