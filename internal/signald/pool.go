package signald

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const (
	subscriberBuffer = 256
	maxFrameSize     = 1 << 20
)

type PoolConfig struct {
	SocketPath            string
	Size                  int
	ConnectionInterval    time.Duration
	MaxConnectionAttempts int
	AcquireTimeout        time.Duration
}

// Pool owns a fixed set of long-lived connections to the signald socket.
// Callers acquire a connection per logical write and release it immediately;
// inbound frames are decoded continuously on every connection and broadcast
// to all subscribers.
type Pool struct {
	cfg PoolConfig
	log *slog.Logger

	ready chan *Conn

	mu          sync.Mutex
	subscribers []chan Event
	onDown      func(error)

	closed atomic.Bool
}

// Conn is a single duplex connection. Writes are serialized per connection;
// reads run in the pool's read loop.
type Conn struct {
	sock    net.Conn
	writeMu sync.Mutex
	dead    atomic.Bool
}

// Write encodes one request as a newline-delimited JSON frame.
func (c *Conn) Write(req Request) error {
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.sock.Write(b)
	return err
}

func NewPool(cfg PoolConfig, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		cfg:   cfg,
		log:   log.With("component", "signald.pool"),
		ready: make(chan *Conn, cfg.Size),
	}
}

// OnDown registers the escalation hook invoked when a dropped connection
// cannot be re-established. Recovery beyond that point is an operational
// concern (health-check/restart), not the pool's.
func (p *Pool) OnDown(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDown = fn
}

// Open polls for the daemon socket, then establishes the full set of
// connections. Exceeding the configured attempts returns ErrDaemonUnavailable.
func (p *Pool) Open(ctx context.Context) error {
	if err := p.awaitSocket(ctx); err != nil {
		return err
	}
	for i := 0; i < p.cfg.Size; i++ {
		conn, err := p.dial()
		if err != nil {
			return err
		}
		go p.readLoop(conn)
		p.ready <- conn
	}
	p.log.Info("signald pool open", "size", p.cfg.Size, "socket", p.cfg.SocketPath)
	return nil
}

func (p *Pool) awaitSocket(ctx context.Context) error {
	for attempt := 0; attempt < p.cfg.MaxConnectionAttempts; attempt++ {
		if _, err := os.Stat(p.cfg.SocketPath); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.ConnectionInterval):
		}
	}
	return ErrDaemonUnavailable
}

func (p *Pool) dial() (*Conn, error) {
	sock, err := net.Dial("unix", p.cfg.SocketPath)
	if err != nil {
		return nil, err
	}
	return &Conn{sock: sock}, nil
}

// Acquire returns a ready connection, blocking until one is free or the
// acquire timeout elapses.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	for {
		select {
		case conn := <-p.ready:
			if conn.dead.Load() {
				// replaced by the reconnect path; drop it
				continue
			}
			return conn, nil
		case <-timer.C:
			return nil, ErrConnectionTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns a connection to the pool. It never closes the connection.
func (p *Pool) Release(conn *Conn) {
	if conn == nil || conn.dead.Load() {
		return
	}
	select {
	case p.ready <- conn:
	default:
		// pool full: only possible if a conn was released twice
		p.log.Warn("release on full pool dropped")
	}
}

// Subscribe returns a channel receiving every decoded inbound event. A slow
// subscriber never stalls the read loop: frames that do not fit its buffer
// are dropped.
func (p *Pool) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	p.mu.Lock()
	p.subscribers = append(p.subscribers, ch)
	p.mu.Unlock()
	return ch
}

func (p *Pool) publish(ev Event) {
	p.mu.Lock()
	subs := p.subscribers
	p.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			p.log.Warn("dropping event for slow subscriber", "type", ev.Type)
		}
	}
}

func (p *Pool) readLoop(conn *Conn) {
	scanner := bufio.NewScanner(conn.sock)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	for scanner.Scan() {
		ev, err := ParseEvent(scanner.Bytes())
		if err != nil {
			p.log.Debug("skipping unparseable frame", "err", err)
			continue
		}
		p.publish(ev)
	}

	conn.dead.Store(true)
	_ = conn.sock.Close()

	if p.closed.Load() {
		return
	}

	p.log.Warn("signald connection dropped, reconnecting", "err", scanner.Err())
	p.reconnect()
}

// reconnect makes one re-establishment attempt using the startup policy.
// Repeated failure escalates through OnDown rather than retrying forever.
func (p *Pool) reconnect() {
	err := p.awaitSocket(context.Background())
	if err == nil {
		var conn *Conn
		if conn, err = p.dial(); err == nil {
			go p.readLoop(conn)
			p.ready <- conn
			p.log.Info("signald connection re-established")
			return
		}
	}

	p.mu.Lock()
	onDown := p.onDown
	p.mu.Unlock()
	if onDown != nil {
		onDown(err)
	} else {
		p.log.Error("signald reconnect failed", "err", err)
	}
}

// Size reports the configured pool size.
func (p *Pool) Size() int {
	return p.cfg.Size
}

// Close tears down every connection. Pending reads terminate; no reconnects
// are attempted afterwards.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	for {
		select {
		case conn := <-p.ready:
			conn.dead.Store(true)
			_ = conn.sock.Close()
		default:
			return
		}
	}
}
