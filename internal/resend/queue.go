// Package resend retries sends the daemon dropped because of rate limiting,
// with exponential backoff keyed by message content so repeated failures of
// the same message escalate while unrelated messages back off independently.
package resend

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/LeventeLantos/signal-relay/internal/signald"
)

// transport re-submits a message through the connection pool.
type transport interface {
	Submit(ctx context.Context, req signald.Request) error
}

type entry struct {
	req      signald.Request
	interval time.Duration
	timer    *time.Timer
}

type Queue struct {
	transport transport
	min       time.Duration
	max       time.Duration
	log       *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

func NewQueue(transport transport, minInterval, maxInterval time.Duration, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		transport: transport,
		min:       minInterval,
		max:       maxInterval,
		log:       log.With("component", "resend"),
		entries:   make(map[string]*entry),
	}
}

// Enqueue schedules a retry for a rate-limited message. The first failure
// for a key waits the minimum interval; each repeat failure doubles the
// previous interval. Once the doubled interval would exceed the ceiling the
// key's state is deleted and (0, false) is returned: the message is
// abandoned. At most one timer is pending per key; re-enqueueing before the
// timer fires reschedules instead of racing.
func (q *Queue) Enqueue(req signald.Request) (time.Duration, bool) {
	key := Hash(req)

	q.mu.Lock()
	defer q.mu.Unlock()

	interval := q.min
	if e, ok := q.entries[key]; ok {
		interval = e.interval * 2
		if e.timer != nil {
			e.timer.Stop()
		}
	}

	if interval > q.max {
		delete(q.entries, key)
		return 0, false
	}

	e := &entry{req: req, interval: interval}
	e.timer = time.AfterFunc(interval, func() { q.fire(key, e) })
	q.entries[key] = e
	return interval, true
}

// fire re-submits the message for an entry. A no-op when the entry is no
// longer the key's current state: either the key was cleared, or a
// re-enqueue replaced the entry after this timer had already fired and
// Stop came too late. Only the current entry's retry may send.
func (q *Queue) fire(key string, e *entry) {
	q.mu.Lock()
	if q.entries[key] != e {
		q.mu.Unlock()
		return
	}
	e.timer = nil
	req := e.req
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := q.transport.Submit(ctx, req); err != nil {
		q.log.Error("resend failed", "err", err, "recipient", req.RecipientNumber)
	}
}

// Size reports the number of keys with backoff state.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Hash derives the backoff key: message body, channel, recipient, and the
// ordered attachment filenames. Two sends differ in backoff state iff they
// differ in any of these.
func Hash(req signald.Request) string {
	h := sha1.New()
	h.Write([]byte(req.MessageBody))
	h.Write([]byte(req.Username))
	h.Write([]byte(req.RecipientNumber))
	for _, a := range req.Attachments {
		h.Write([]byte(a.Name()))
	}
	return hex.EncodeToString(h.Sum(nil))
}
