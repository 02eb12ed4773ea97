package invalidate

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Versions is a set of per-key monotonic counters. Writers Bump a key when
// derived state (an actor's inbox) changes, readers compare versions or Wait
// for the next change.
type Versions struct {
	entries map[string]*entry
	epoch   string
	mu      sync.Mutex
}

type entry struct {
	changed chan struct{}
	version uint64
}

// NewVersions creates an empty counter set
func NewVersions() *Versions {
	return &Versions{entries: make(map[string]*entry), epoch: uuid.NewString()[:8]}
}

// Stamp returns the version of key qualified by this process' epoch.
// Counters restart with the process, so shared caches must key on the stamp.
func (v *Versions) Stamp(key string) string {
	return v.epoch + "-" + strconv.FormatUint(v.Version(key), 10)
}

func (v *Versions) get(key string) *entry {
	e, ok := v.entries[key]
	if !ok {
		e = &entry{changed: make(chan struct{})}
		v.entries[key] = e
	}
	return e
}

// Version returns the current version of key (0 if never bumped)
func (v *Versions) Version(key string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if e, ok := v.entries[key]; ok {
		return e.version
	}
	return 0
}

// Bump increments the version of every key and wakes waiters
func (v *Versions) Bump(keys ...string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, key := range keys {
		e := v.get(key)
		e.version++
		close(e.changed)
		e.changed = make(chan struct{})
	}
}

// Wait blocks until key's version differs from since or ctx is done.
// It returns the version observed last.
func (v *Versions) Wait(ctx context.Context, key string, since uint64) (uint64, error) {
	for {
		v.mu.Lock()
		e := v.get(key)
		current, changed := e.version, e.changed
		v.mu.Unlock()

		if current != since {
			return current, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return current, ctx.Err()
		}
	}
}
