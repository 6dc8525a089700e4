package gerbango

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestInflightOwnerAndWaiter(t *testing.T) {
	tracker := NewInflightTracker()

	entry1, owner1 := tracker.GetOrCreateEntry("key")
	if !owner1 {
		t.Fatal("Expected first caller to own the entry")
	}

	entry2, owner2 := tracker.GetOrCreateEntry("key")
	if owner2 {
		t.Fatal("Expected second caller to be a waiter")
	}
	if entry1 != entry2 {
		t.Fatal("Expected both callers to share one entry")
	}
}

func TestInflightWaitReceivesResult(t *testing.T) {
	tracker := NewInflightTracker()
	_, _ = tracker.GetOrCreateEntry("key")
	entry, _ := tracker.GetOrCreateEntry("key")

	want := &Result{Payload: []byte(`{"ok":true}`), StatusCode: 200, Attempts: 1}
	go tracker.Complete("key", want, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := entry.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if string(got.Payload) != string(want.Payload) {
		t.Errorf("Expected shared payload, got %s", got.Payload)
	}
	if got == want {
		t.Error("Expected waiters to receive a copy, not the owner's Result")
	}
}

func TestInflightWaitReceivesError(t *testing.T) {
	tracker := NewInflightTracker()
	_, _ = tracker.GetOrCreateEntry("key")
	entry, _ := tracker.GetOrCreateEntry("key")

	failure := &Error{Kind: KindTransient, Message: "upstream down"}
	go tracker.Complete("key", nil, failure)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := entry.Wait(ctx)
	if res != nil {
		t.Errorf("Expected nil result, got %+v", res)
	}
	if ClassifyError(err) != KindTransient {
		t.Errorf("Expected the owner's error, got %v", err)
	}
}

func TestInflightWaitCancellation(t *testing.T) {
	tracker := NewInflightTracker()
	_, _ = tracker.GetOrCreateEntry("key")
	entry, _ := tracker.GetOrCreateEntry("key")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := entry.Wait(ctx)
	if ClassifyError(err) != KindCancelled {
		t.Errorf("Expected Cancelled kind, got %v", err)
	}
}

func TestInflightEntryEventuallyDropped(t *testing.T) {
	tracker := NewInflightTracker()
	_, _ = tracker.GetOrCreateEntry("key")
	tracker.Complete("key", &Result{}, nil)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		tracker.mu.Lock()
		_, exists := tracker.entries["key"]
		tracker.mu.Unlock()
		if !exists {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("Expected completed entry to be dropped")
}

func TestInflightConcurrentWaiters(t *testing.T) {
	tracker := NewInflightTracker()
	_, owner := tracker.GetOrCreateEntry("key")
	if !owner {
		t.Fatal("Expected ownership")
	}

	var wg sync.WaitGroup
	results := make(chan *Result, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, isOwner := tracker.GetOrCreateEntry("key")
			if isOwner {
				t.Error("Expected all goroutines to be waiters")
				return
			}
			res, err := entry.Wait(context.Background())
			if err != nil {
				t.Errorf("Wait failed: %v", err)
				return
			}
			results <- res
		}()
	}

	time.Sleep(10 * time.Millisecond)
	tracker.Complete("key", &Result{StatusCode: 200}, nil)
	wg.Wait()
	close(results)

	count := 0
	for res := range results {
		if res.StatusCode != 200 {
			t.Errorf("Expected status 200, got %d", res.StatusCode)
		}
		count++
	}
	if count != 10 {
		t.Errorf("Expected 10 waiter results, got %d", count)
	}
}
