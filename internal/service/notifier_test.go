package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/damoang/angple-messenger/internal/invalidate"
	"github.com/damoang/angple-messenger/internal/realtime"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_BumpsAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newHub := func() *realtime.Hub {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { c.Close() })
		hub := realtime.NewHub(c, 16)
		go hub.Run()
		t.Cleanup(hub.Stop)
		return hub
	}

	hubA, hubB := newHub(), newHub()
	a := NewNotifier(invalidate.NewVersions(), hubA)
	b := NewNotifier(invalidate.NewVersions(), hubB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Listen(ctx)
	go b.Listen(ctx)

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub("messenger:realtime")["messenger:realtime"] == 2 &&
			hubA.Subscribers(realtime.InboxTopic) == 1 && hubB.Subscribers(realtime.InboxTopic) == 1
	}, 2*time.Second, 10*time.Millisecond)

	a.BumpInbox(ctx, "alice", "bob")
	assert.Equal(t, uint64(1), a.Versions().Version("alice"))

	require.Eventually(t, func() bool {
		return b.Versions().Version("alice") == 1 && b.Versions().Version("bob") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// the origin instance does not count its own bump twice
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, uint64(1), a.Versions().Version("alice"))
	assert.Zero(t, a.Versions().Version("carol"))
}

func TestNotifier_ConversationEvent(t *testing.T) {
	hub := realtime.NewHub(nil, 4)
	n := NewNotifier(invalidate.NewVersions(), hub)
	sub := hub.Subscribe(realtime.ConversationTopic("c1"))
	defer sub.Close()

	n.Conversation(context.Background(), realtime.EventReadUpdated, "c1", "bob", readEvent{ActorID: "bob", LastReadMessageID: 7})

	select {
	case ev := <-sub.Events():
		assert.Equal(t, realtime.EventReadUpdated, ev.Type)
		assert.Equal(t, "bob", ev.Origin)
		assert.JSONEq(t, `{"actor_id":"bob","last_read_message_id":7}`, string(ev.Payload))
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}
