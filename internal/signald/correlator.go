package signald

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Correlator bridges the unordered inbound event stream to call/response
// semantics. Operations that expect an asynchronous reply register a
// predicate; the first future event satisfying it resolves the registration.
// An event resolves at most one registration, and events matching none are
// dropped silently (unsolicited daemon chatter).
type Correlator struct {
	mu      sync.Mutex
	pending []*registration
}

type registration struct {
	id        string
	predicate func(Event) bool
	matched   chan Event
}

// Pending is a live registration handle. Cancel must be called on every
// path that stops waiting, so that abandoned predicates never accumulate.
type Pending struct {
	c   *Correlator
	reg *registration
}

func NewCorrelator() *Correlator {
	return &Correlator{}
}

// Run consumes events until the channel closes. Meant to be fed from a pool
// subscription.
func (c *Correlator) Run(events <-chan Event) {
	for ev := range events {
		c.Handle(ev)
	}
}

// Handle offers an event to the registry. Registrations are consulted in
// registration order; the first whose predicate accepts the event consumes
// it. Returns whether the event was consumed.
func (c *Correlator) Handle(ev Event) bool {
	c.mu.Lock()
	for i, r := range c.pending {
		if r.predicate(ev) {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			c.mu.Unlock()
			r.matched <- ev
			return true
		}
	}
	c.mu.Unlock()
	return false
}

// Register adds a predicate and returns its handle. Registering before
// writing the triggering request closes the race where the reply arrives
// first.
func (c *Correlator) Register(predicate func(Event) bool) *Pending {
	reg := &registration{
		id:        uuid.NewString(),
		predicate: predicate,
		matched:   make(chan Event, 1),
	}
	c.mu.Lock()
	c.pending = append(c.pending, reg)
	c.mu.Unlock()
	return &Pending{c: c, reg: reg}
}

// Wait blocks for the first matching event, ErrTimeout, or ctx cancellation.
func (p *Pending) Wait(ctx context.Context, timeout time.Duration) (Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-p.reg.matched:
		return ev, nil
	case <-timer.C:
		p.Cancel()
		return Event{}, ErrTimeout
	case <-ctx.Done():
		p.Cancel()
		return Event{}, ctx.Err()
	}
}

// Cancel deregisters the predicate. Safe to call after a match.
func (p *Pending) Cancel() {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	for i, r := range p.c.pending {
		if r.id == p.reg.id {
			p.c.pending = append(p.c.pending[:i], p.c.pending[i+1:]...)
			return
		}
	}
}

// AwaitMatching registers, waits, and deregisters in one call.
func (c *Correlator) AwaitMatching(ctx context.Context, predicate func(Event) bool, timeout time.Duration) (Event, error) {
	p := c.Register(predicate)
	defer p.Cancel()
	return p.Wait(ctx, timeout)
}

// PendingCount reports live registrations (for the operational API).
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
