package gerbango

import (
	"context"
	"sync"
	"time"
)

// InflightEntry represents one in-flight Execute call shared between the
// owning caller and any waiters that arrived while it ran.
type InflightEntry struct {
	result  *Result
	err     error
	done    chan struct{}
	mu      sync.Mutex
	waiters int
}

// InflightTracker coalesces concurrent Execute calls that resolve to the
// same cache key, so a simultaneous miss triggers one upstream call instead
// of a stampede. Enabled via WithDeduplication.
type InflightTracker struct {
	mu      sync.Mutex
	entries map[string]*InflightEntry
}

// NewInflightTracker returns an in-memory tracker.
func NewInflightTracker() *InflightTracker {
	return &InflightTracker{
		entries: make(map[string]*InflightEntry),
	}
}

// GetOrCreateEntry returns an existing entry (owner=false) or creates a new
// one (owner=true). The owner must call Complete exactly once.
func (t *InflightTracker) GetOrCreateEntry(key string) (*InflightEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, exists := t.entries[key]; exists {
		entry.mu.Lock()
		entry.waiters++
		entry.mu.Unlock()
		return entry, false
	}

	entry := &InflightEntry{
		done:    make(chan struct{}),
		waiters: 1,
	}
	t.entries[key] = entry
	return entry, true
}

// Complete finalizes an entry and releases waiters. The entry lingers
// briefly so immediate duplicates still coalesce, then is dropped to bound
// memory.
func (t *InflightTracker) Complete(key string, result *Result, err error) {
	t.mu.Lock()
	entry, exists := t.entries[key]
	t.mu.Unlock()

	if !exists {
		return
	}

	entry.mu.Lock()
	entry.result = result
	entry.err = err
	close(entry.done)
	entry.mu.Unlock()

	time.AfterFunc(100*time.Millisecond, func() {
		t.mu.Lock()
		delete(t.entries, key)
		t.mu.Unlock()
	})
}

// Wait blocks until the owning call completes or ctx cancels. Waiters
// receive a shallow copy of the result so FromCache flags don't leak between
// callers.
func (entry *InflightEntry) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-entry.done:
		entry.mu.Lock()
		result := entry.result
		err := entry.err
		entry.mu.Unlock()
		if result != nil {
			shared := *result
			return &shared, err
		}
		return nil, err
	case <-ctx.Done():
		return nil, &Error{
			Kind:    KindCancelled,
			Message: "wait for in-flight call cancelled",
			Cause:   ctx.Err(),
		}
	}
}
