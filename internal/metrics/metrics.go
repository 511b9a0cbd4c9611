// Package metrics keeps in-process counters for the operational API.
package metrics

import (
	"sync"
	"sync/atomic"
)

type Counters struct {
	relayable        atomic.Int64
	broadcastsSent   atomic.Int64
	hotlineForwarded atomic.Int64
	commandReplies   atomic.Int64
	rateLimitRetries atomic.Int64
	rateLimitAborts  atomic.Int64

	mu      sync.Mutex
	inbound map[string]int64
}

func NewCounters() *Counters {
	return &Counters{inbound: make(map[string]int64)}
}

// IncInbound counts one inbound daemon event by type.
func (c *Counters) IncInbound(eventType string) {
	c.mu.Lock()
	c.inbound[eventType]++
	c.mu.Unlock()
}

func (c *Counters) IncRelayable() { c.relayable.Add(1) }

func (c *Counters) IncBroadcast() { c.broadcastsSent.Add(1) }

func (c *Counters) IncHotline() { c.hotlineForwarded.Add(1) }

func (c *Counters) IncCommandReply() { c.commandReplies.Add(1) }

func (c *Counters) IncRateLimitRetry() { c.rateLimitRetries.Add(1) }

func (c *Counters) IncRateLimitAbort() { c.rateLimitAborts.Add(1) }

// Snapshot returns a flat copy of every counter, keyed for JSON rendering.
func (c *Counters) Snapshot() map[string]int64 {
	out := map[string]int64{
		"relayable_messages":  c.relayable.Load(),
		"broadcasts_sent":     c.broadcastsSent.Load(),
		"hotline_forwarded":   c.hotlineForwarded.Load(),
		"command_replies":     c.commandReplies.Load(),
		"rate_limit_retries":  c.rateLimitRetries.Load(),
		"rate_limit_aborts":   c.rateLimitAborts.Load(),
	}
	c.mu.Lock()
	for k, v := range c.inbound {
		out["inbound_"+k] = v
	}
	c.mu.Unlock()
	return out
}
