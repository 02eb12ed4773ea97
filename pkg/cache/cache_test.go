package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T) (Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewService(client), mr
}

func TestSetGet(t *testing.T) {
	svc, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", payload{Name: "a", Count: 2}, time.Minute))

	var got payload
	require.NoError(t, svc.Get(ctx, "k", &got))
	assert.Equal(t, payload{Name: "a", Count: 2}, got)

	ok, err := svc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.Delete(ctx, "k"))
	assert.ErrorIs(t, svc.Get(ctx, "k", &got), ErrMiss)
}

func TestInboxKeyIncludesVersion(t *testing.T) {
	svc, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, svc.SetInbox(ctx, "actor-1", "inbox", "e1-3", []payload{{Name: "c1"}}))

	var got []payload
	require.NoError(t, svc.GetInbox(ctx, "actor-1", "inbox", "e1-3", &got))
	assert.Len(t, got, 1)

	// 버전이 올라가면 이전 항목은 보이지 않는다
	assert.ErrorIs(t, svc.GetInbox(ctx, "actor-1", "inbox", "e1-4", &got), ErrMiss)
}

func TestInboxExpires(t *testing.T) {
	svc, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, svc.SetInbox(ctx, "actor-1", "inbox", "e1-1", []payload{}))
	mr.FastForward(TTLInbox + time.Second)

	var got []payload
	assert.ErrorIs(t, svc.GetInbox(ctx, "actor-1", "inbox", "e1-1", &got), ErrMiss)
}

func TestNilClient(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()

	assert.False(t, svc.IsAvailable())
	assert.NoError(t, svc.Set(ctx, "k", 1, time.Minute))
	var v int
	assert.ErrorIs(t, svc.Get(ctx, "k", &v), ErrMiss)
	assert.Error(t, svc.Ping(ctx))
}
