package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	mr := miniredis.RunT(t)
	b, err := New("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestPublishConsume(t *testing.T) {
	b := newTestBus(t)
	hop := Hop{Queue: "test.queue", Stream: "test:stream"}

	if err := b.Publish(context.Background(), hop, "01ARZ3NDEKTSV4RRFFQ69G5FAV"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var mu sync.Mutex
	var got []string

	done := make(chan struct{})
	go func() {
		_ = b.Consume(ctx, hop, "worker-1", false, func(_ context.Context, id string) error {
			mu.Lock()
			got = append(got, id)
			mu.Unlock()
			cancel() // stop after the first message for this test
			return nil
		})
		close(done)
	}()

	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "01ARZ3NDEKTSV4RRFFQ69G5FAV" {
		t.Fatalf("expected to consume the published id, got %v", got)
	}
}

func TestConsume_FailedHandlerLeavesMessagePending(t *testing.T) {
	b := newTestBus(t)
	hop := Hop{Queue: "test.queue2", Stream: "test:stream2"}

	if err := b.Publish(context.Background(), hop, "id-1"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	processed := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = b.Consume(ctx, hop, "worker-1", false, func(_ context.Context, id string) error {
			close(processed)
			return errIntentional
		})
		close(done)
	}()

	<-processed
	// Give the failed handler a moment to return without acking, then stop
	// the consumer loop and check the message is still pending.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	pending, err := b.rdb.XPending(context.Background(), hop.Stream, hop.Queue).Result()
	if err != nil {
		t.Fatalf("XPending: %v", err)
	}
	if pending.Count != 1 {
		t.Errorf("expected 1 pending (unacked) message, got %d", pending.Count)
	}
}

var errIntentional = &testError{"intentional failure"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
