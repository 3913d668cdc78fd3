package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/fentonlabs/daxc/wire/common"
)

// badWindow is how long a connection reported bad is quarantined before
// its socket is reaped and its per-host slot freed.
const badWindow = 30 * time.Second

var (
	connsCreatedTotal   = metrics.GetOrCreateCounter("daxc_pool_connections_created_total")
	connsDiscardedTotal = metrics.GetOrCreateCounter("daxc_pool_connections_discarded_total")
	poolGetTotal        = metrics.GetOrCreateCounter("daxc_pool_get_total")
)

// Pool hands out healthy connections, one caller per connection at a time.
// Get/MarkBad/Put/Close are safe for concurrent use.
type Pool struct {
	endpoints  []Endpoint
	opts       Options
	maxPerHost int

	mu      sync.RWMutex
	conns   []*Connection  // insertion order, reuse bias toward the oldest
	perHost map[string]int // live sockets per endpoint address, bad included

	quarantine *xsync.MapOf[uint64, quarantined]
	nextID     atomic.Uint64
	rr         atomic.Uint64 // global round-robin cursor over endpoints
	closed     atomic.Bool
}

// NewPool creates a pool over the given endpoints.
func NewPool(endpoints []Endpoint, opts Options, maxPerHost int) *Pool {
	if maxPerHost <= 0 {
		maxPerHost = 10
	}
	return &Pool{
		endpoints:  endpoints,
		opts:       opts,
		maxPerHost: maxPerHost,
		perHost:    make(map[string]int),
		quarantine: xsync.NewMapOf[uint64, quarantined](),
	}
}

// quarantined is a bad connection waiting out its window. The socket stays
// open and its per-host slot occupied until reaped.
type quarantined struct {
	conn  *Connection
	since time.Time
}

// Get returns a healthy connection, creating one when no existing
// connection is free. The caller must return it with Put, or MarkBad when
// the exchange failed.
func (p *Pool) Get() (*Connection, error) {
	if p.closed.Load() {
		return nil, common.ErrPoolClosed
	}
	poolGetTotal.Inc()
	p.reapBad()

	// scan in insertion order: the earliest-created free healthy
	// connection wins
	p.mu.RLock()
	for _, c := range p.conns {
		if c.Healthy() && c.tryAcquire() {
			p.mu.RUnlock()
			return c, nil
		}
	}
	p.mu.RUnlock()

	return p.create()
}

// create dials a connection to the next endpoint in round-robin order. The
// cursor advances even when the attempt fails.
func (p *Pool) create() (*Connection, error) {
	if len(p.endpoints) == 0 {
		return nil, common.ErrNoEndpoints
	}
	ep := p.endpoints[(p.rr.Add(1)-1)%uint64(len(p.endpoints))]

	p.mu.Lock()
	if p.perHost[ep.Addr()] >= p.maxPerHost {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %d connections to %s", common.ErrPoolExhausted, p.maxPerHost, ep.Addr())
	}
	// reserve the slot before dialing so concurrent creates cannot breach
	// the cap
	p.perHost[ep.Addr()]++
	p.mu.Unlock()

	c, err := Dial(ep, p.opts)
	if err != nil {
		p.mu.Lock()
		p.perHost[ep.Addr()]--
		p.mu.Unlock()
		return nil, err
	}
	c.id = p.nextID.Add(1)
	c.tryAcquire()

	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		c.Close()
		return nil, common.ErrPoolClosed
	}
	p.conns = append(p.conns, c)
	p.mu.Unlock()

	connsCreatedTotal.Inc()
	Logger.Infof("pool: new connection to %s (session %s)", ep.Addr(), c.SessionID())
	return c, nil
}

// Put releases a connection back to the pool.
func (p *Pool) Put(c *Connection) {
	if c == nil {
		return
	}
	if !c.Healthy() {
		p.MarkBad(c)
		return
	}
	c.release()
}

// MarkBad removes the connection from the active set and quarantines it.
// Its socket stays open, and its per-host slot stays occupied, until the
// quarantine window has passed.
func (p *Pool) MarkBad(c *Connection) {
	if c == nil {
		return
	}
	c.markBroken()

	p.mu.Lock()
	for i, held := range p.conns {
		if held == c {
			p.conns = append(p.conns[:i], p.conns[i+1:]...)
			p.quarantine.Store(c.id, quarantined{conn: c, since: time.Now()})
			p.mu.Unlock()
			Logger.Warningf("pool: connection to %s marked bad", c.Endpoint().Addr())
			return
		}
	}
	p.mu.Unlock()
}

// reapBad closes quarantined connections whose window has passed, freeing
// their endpoint slots for new dials. It also closes healthy connections
// that have sat idle, keeping one per endpoint alive.
func (p *Pool) reapBad() {
	now := time.Now()
	p.quarantine.Range(func(id uint64, q quarantined) bool {
		if now.Sub(q.since) < badWindow {
			return true
		}
		p.quarantine.Delete(id)
		q.conn.Close()
		p.mu.Lock()
		p.perHost[q.conn.Endpoint().Addr()]--
		p.mu.Unlock()
		connsDiscardedTotal.Inc()
		return true
	})

	p.reapIdle()
}

// reapIdle closes free idle connections beyond the first one per endpoint.
func (p *Pool) reapIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool)
	kept := p.conns[:0]
	for _, c := range p.conns {
		addr := c.Endpoint().Addr()
		if c.Healthy() && c.Idle() && seen[addr] && c.tryAcquire() {
			c.Close()
			p.perHost[addr]--
			connsDiscardedTotal.Inc()
			continue
		}
		seen[addr] = true
		kept = append(kept, c)
	}
	p.conns = kept
}

// ConnectionCount returns the number of live sockets to the endpoint.
func (p *Pool) ConnectionCount(ep Endpoint) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.perHost[ep.Addr()]
}

// Close shuts every connection and marks the pool closed. Subsequent Get
// calls fail. Close is idempotent.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	p.mu.Lock()
	conns := p.conns
	p.conns = nil
	p.perHost = make(map[string]int)
	p.mu.Unlock()

	for _, c := range conns {
		c.Close()
		connsDiscardedTotal.Inc()
	}
	p.quarantine.Range(func(id uint64, q quarantined) bool {
		p.quarantine.Delete(id)
		q.conn.Close()
		connsDiscardedTotal.Inc()
		return true
	})
	return nil
}
