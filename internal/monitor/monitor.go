// Package monitor probes daemon liveness on a schedule and escalates when
// the daemon stops answering.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type prober interface {
	Version(ctx context.Context) (string, error)
}

type notifier interface {
	NotifyMaintainers(ctx context.Context, message string)
}

// Monitor runs a periodic version probe against the daemon. A single failed
// probe is tolerated as noise; Threshold consecutive failures raise one
// maintainer alert, repeated only after the daemon recovers and fails
// again.
type Monitor struct {
	interval  time.Duration
	threshold int
	prober    prober
	notifier  notifier
	log       *slog.Logger

	running  atomic.Bool
	failures atomic.Int64
	alerted  atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(interval time.Duration, threshold int, prober prober, notifier notifier, log *slog.Logger) (*Monitor, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if threshold <= 0 {
		return nil, errors.New("threshold must be > 0")
	}
	if prober == nil {
		return nil, errors.New("prober must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		interval:  interval,
		threshold: threshold,
		prober:    prober,
		notifier:  notifier,
		log:       log.With("component", "monitor"),
		done:      make(chan struct{}),
	}, nil
}

func (m *Monitor) Start() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running.Store(true)

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.log.Info("monitor started", "interval", m.interval.String())

		m.probe(ctx)

		for {
			select {
			case <-ctx.Done():
				m.log.Info("monitor stopping")
				return
			case <-ticker.C:
				m.probe(ctx)
			}
		}
	}()

	return true
}

func (m *Monitor) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running.Load() {
		return false
	}

	m.cancel()
	<-m.done
	m.running.Store(false)

	m.log.Info("monitor stopped")
	return true
}

func (m *Monitor) IsRunning() bool {
	return m.running.Load()
}

// ConsecutiveFailures reports the current failure streak.
func (m *Monitor) ConsecutiveFailures() int {
	return int(m.failures.Load())
}

func (m *Monitor) probe(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("monitor probe panic recovered", "panic", r)
		}
	}()

	start := time.Now()
	version, err := m.prober.Version(ctx)
	if err != nil {
		failures := m.failures.Add(1)
		m.log.Warn("daemon liveness probe failed", "failures", failures, "err", err)

		if int(failures) >= m.threshold && m.alerted.CompareAndSwap(false, true) && m.notifier != nil {
			m.notifier.NotifyMaintainers(ctx, fmt.Sprintf(
				"signald has failed %d consecutive liveness probes and appears to be down", failures))
		}
		return
	}

	if m.failures.Swap(0) >= int64(m.threshold) {
		m.log.Info("daemon recovered", "version", version)
	}
	m.alerted.Store(false)
	m.log.Debug("daemon liveness probe ok", "version", version,
		"duration_ms", time.Since(start).Milliseconds())
}
