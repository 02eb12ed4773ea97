package invalidate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersions_Bump(t *testing.T) {
	v := NewVersions()
	assert.Equal(t, uint64(0), v.Version("alice"))

	v.Bump("alice", "bob")
	v.Bump("alice")
	assert.Equal(t, uint64(2), v.Version("alice"))
	assert.Equal(t, uint64(1), v.Version("bob"))

	before := v.Stamp("bob")
	v.Bump("bob")
	assert.NotEqual(t, before, v.Stamp("bob"))
	assert.NotEqual(t, NewVersions().Stamp("carol"), NewVersions().Stamp("carol"))
}

func TestVersions_WaitReturnsImmediatelyWhenBehind(t *testing.T) {
	v := NewVersions()
	v.Bump("alice")

	got, err := v.Wait(context.Background(), "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got)
}

func TestVersions_WaitWakesOnBump(t *testing.T) {
	v := NewVersions()
	done := make(chan uint64, 1)
	go func() {
		got, err := v.Wait(context.Background(), "alice", 0)
		assert.NoError(t, err)
		done <- got
	}()

	time.Sleep(20 * time.Millisecond)
	v.Bump("bob")
	v.Bump("alice")

	select {
	case got := <-done:
		assert.Equal(t, uint64(1), got)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not woken")
	}
}

func TestVersions_WaitTimeout(t *testing.T) {
	v := NewVersions()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got, err := v.Wait(ctx, "alice", 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, uint64(0), got)
}
