package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ride-marketplace/internal/events"
	"github.com/example/ride-marketplace/internal/models"
)

// fakeIndexer implements StatusIndexer for tests
type fakeIndexer struct {
	failIncr  int // number of times to fail IncrCounter before succeeding
	failPush  int // number of times to fail PushRecent before succeeding
	incrCalls int
	pushCalls int
	lastKey   string
}

func (f *fakeIndexer) IncrCounter(ctx context.Context, key string) error {
	f.incrCalls++
	f.lastKey = key
	if f.incrCalls <= f.failIncr {
		return errors.New("incr fail")
	}
	return nil
}

func (f *fakeIndexer) PushRecent(ctx context.Context, key string, payload []byte, maxLen int64) error {
	f.pushCalls++
	if f.pushCalls <= f.failPush {
		return errors.New("push fail")
	}
	return nil
}

func TestIndexEventWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeIndexer{failIncr: 1, failPush: 1}
	ev := &events.RideEvent{Kind: "ride_confirmed", RideRequestID: "r1", Status: models.StatusConfirmed}
	ctx := context.Background()
	start := time.Now()
	if err := indexEventWithRetry(ctx, f, ev, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.incrCalls < 2 || f.pushCalls < 2 {
		t.Fatalf("expected retries, got incr=%d push=%d", f.incrCalls, f.pushCalls)
	}
	if f.lastKey != "rides:events:ride_confirmed" {
		t.Fatalf("unexpected counter key %q", f.lastKey)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestIndexEventWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeIndexer{failIncr: 5}
	ev := &events.RideEvent{Kind: "ride_posted", RideRequestID: "r1", Status: models.StatusPosted}
	ctx := context.Background()
	if err := indexEventWithRetry(ctx, f, ev, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}
