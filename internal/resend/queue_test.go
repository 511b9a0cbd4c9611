package resend

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/LeventeLantos/signal-relay/internal/signald"
)

type fakeTransport struct {
	mu   sync.Mutex
	reqs []signald.Request
}

func (f *fakeTransport) Submit(_ context.Context, req signald.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func testRequest(body string) signald.Request {
	return signald.Request{
		Type:            signald.TypeSend,
		Username:        "+15550001111",
		RecipientNumber: "+15552223333",
		MessageBody:     body,
	}
}

func TestEnqueue_DoublesUntilCeiling(t *testing.T) {
	t.Parallel()

	q := NewQueue(&fakeTransport{}, 20*time.Millisecond, 160*time.Millisecond, nil)
	req := testRequest("hello")

	wantIntervals := []time.Duration{
		20 * time.Millisecond,
		40 * time.Millisecond,
		80 * time.Millisecond,
		160 * time.Millisecond,
	}
	for i, want := range wantIntervals {
		got, ok := q.Enqueue(req)
		if !ok {
			t.Fatalf("enqueue %d: expected scheduling, got abandoned", i)
		}
		if got != want {
			t.Fatalf("enqueue %d: expected interval %v, got %v", i, want, got)
		}
	}

	// The next doubling would exceed the ceiling: abandoned, state cleared.
	if _, ok := q.Enqueue(req); ok {
		t.Fatalf("expected abandonment past the ceiling")
	}
	if q.Size() != 0 {
		t.Fatalf("expected state cleared after abandonment, size=%d", q.Size())
	}

	// A fresh failure for the same key starts over at the minimum.
	if got, ok := q.Enqueue(req); !ok || got != 20*time.Millisecond {
		t.Fatalf("expected restart at minimum, got (%v, %v)", got, ok)
	}
}

func TestEnqueue_IndependentKeysBackOffIndependently(t *testing.T) {
	t.Parallel()

	q := NewQueue(&fakeTransport{}, 20*time.Millisecond, 160*time.Millisecond, nil)

	if got, _ := q.Enqueue(testRequest("one")); got != 20*time.Millisecond {
		t.Fatalf("expected minimum for first key, got %v", got)
	}
	if got, _ := q.Enqueue(testRequest("one")); got != 40*time.Millisecond {
		t.Fatalf("expected doubled interval for repeated key, got %v", got)
	}
	if got, _ := q.Enqueue(testRequest("two")); got != 20*time.Millisecond {
		t.Fatalf("expected minimum for unrelated key, got %v", got)
	}
	if q.Size() != 2 {
		t.Fatalf("expected two keys with state, got %d", q.Size())
	}
}

func TestFire_ResubmitsMessage(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	q := NewQueue(transport, 10*time.Millisecond, time.Second, nil)

	req := testRequest("retry me")
	if _, ok := q.Enqueue(req); !ok {
		t.Fatalf("expected scheduling")
	}

	deadline := time.Now().Add(time.Second)
	for transport.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("timer never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if transport.reqs[0].MessageBody != "retry me" {
		t.Fatalf("unexpected resubmitted request: %+v", transport.reqs[0])
	}
}

func TestReEnqueue_ReplacesPendingTimer(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	q := NewQueue(transport, 50*time.Millisecond, time.Second, nil)

	req := testRequest("once only")
	q.Enqueue(req)
	q.Enqueue(req)

	// Both the 50ms and the 100ms mark pass; only the rescheduled timer may
	// have fired.
	time.Sleep(250 * time.Millisecond)
	if got := transport.count(); got != 1 {
		t.Fatalf("expected exactly one resubmission, got %d", got)
	}
}

func TestHash_KeyedByContent(t *testing.T) {
	t.Parallel()

	base := testRequest("hello")

	if Hash(base) != Hash(testRequest("hello")) {
		t.Fatalf("identical messages must hash identically")
	}
	if Hash(base) == Hash(testRequest("other")) {
		t.Fatalf("different bodies must hash differently")
	}

	other := base
	other.RecipientNumber = "+15554445555"
	if Hash(base) == Hash(other) {
		t.Fatalf("different recipients must hash differently")
	}

	withAttachment := base
	withAttachment.Attachments = []signald.Attachment{{Filename: "a.jpg"}}
	if Hash(base) == Hash(withAttachment) {
		t.Fatalf("attachments must contribute to the hash")
	}
}

func TestFire_StaleEntryLeavesReplacementAlone(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	q := NewQueue(tr, time.Hour, 4*time.Hour, nil)
	req := testRequest("hello")
	key := Hash(req)

	q.Enqueue(req)
	q.mu.Lock()
	stale := q.entries[key]
	q.mu.Unlock()

	// Replaces the entry and stops the first timer. A timer that had
	// already fired and was waiting on the mutex arrives here as a stale
	// fire for the old entry.
	q.Enqueue(req)
	q.fire(key, stale)

	if got := tr.count(); got != 0 {
		t.Fatalf("stale fire must not resend, got %d sends", got)
	}

	q.mu.Lock()
	current := q.entries[key]
	q.mu.Unlock()
	if current == nil || current == stale {
		t.Fatalf("expected a live replacement entry, got %+v", current)
	}
	if current.timer == nil {
		t.Fatalf("replacement entry lost its pending timer")
	}
}
