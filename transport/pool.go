package transport

import (
	"context"
	"sync"
	"time"

	"github.com/ValentinKolb/goFDFS/common"
	"github.com/ValentinKolb/goFDFS/protocol"
	"github.com/lni/dragonboat/v4/logger"
)

var poolLogger = logger.GetLogger("pool")

// Pool is a bounded multiset of connections to one endpoint. Idle
// connections are reused LIFO; the number of live connections (idle
// plus handed out) never exceeds MaxTotalPerPool and the idle set
// never exceeds MaxIdlePerPool.
type Pool struct {
	endpoint  string
	config    common.Config
	connector IConnector
	codec     *protocol.Codec

	mu     sync.Mutex
	idle   []*Connection // LIFO stack
	total  int           // live connections, idle + in use
	notify chan struct{} // closed and replaced whenever capacity frees up
	closed bool

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// NewPool creates a pool for one endpoint and starts its background
// sweeper.
func NewPool(endpoint string, connector IConnector, config common.Config, codec *protocol.Codec) *Pool {
	p := &Pool{
		endpoint:  endpoint,
		config:    config,
		connector: connector,
		codec:     codec,
		notify:    make(chan struct{}),
		sweepStop: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}

	common.PoolGauge("idle", endpoint, func() float64 {
		p.mu.Lock()
		defer p.mu.Unlock()
		return float64(len(p.idle))
	})
	common.PoolGauge("live", endpoint, func() float64 {
		p.mu.Lock()
		defer p.mu.Unlock()
		return float64(p.total)
	})

	go p.sweepLoop()
	return p
}

// Endpoint returns the address this pool serves.
func (p *Pool) Endpoint() string { return p.endpoint }

// Stats returns the current idle and live connection counts.
func (p *Pool) Stats() (idle, live int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle), p.total
}

// --------------------------------------------------------------------------
// Acquire / Release
// --------------------------------------------------------------------------

// Acquire returns a healthy connection: a live idle one if available,
// a freshly dialed one while the pool is below MaxTotalPerPool, and
// otherwise blocks up to AcquireTimeout for a release. It fails with
// common.ErrPoolExhausted when the wait times out.
func (p *Pool) Acquire(ctx context.Context) (*Connection, error) {
	timeout := time.NewTimer(p.config.AcquireTimeout)
	defer timeout.Stop()

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, common.ErrPoolClosed
		}

		// Reuse the most recently used idle connection; discard the
		// stale and the dead on the way.
		for len(p.idle) > 0 {
			conn := p.idle[len(p.idle)-1]
			p.idle = p.idle[:len(p.idle)-1]

			if p.expired(conn) || !conn.IsAvailable() {
				p.total--
				p.mu.Unlock()
				conn.Close()
				p.mu.Lock()
				if p.closed {
					p.mu.Unlock()
					return nil, common.ErrPoolClosed
				}
				continue
			}

			conn.markInUse()
			p.mu.Unlock()
			return conn, nil
		}

		if p.total < p.config.MaxTotalPerPool {
			p.total++
			p.mu.Unlock()

			conn := NewConnection(p.endpoint, p.connector, p.config, p.codec)
			if err := conn.Connect(ctx); err != nil {
				p.mu.Lock()
				p.total--
				p.signalLocked()
				p.mu.Unlock()
				return nil, err
			}
			conn.markInUse()
			return conn, nil
		}

		// At capacity: wait for a release, the deadline, or the caller.
		wait := p.notify
		p.mu.Unlock()

		select {
		case <-wait:
		case <-timeout.C:
			return nil, common.ErrPoolExhausted
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release hands a connection back. A healthy connection returns to the
// idle set (unless it is full); a Broken or Closed one is discarded.
// opErr is the outcome of the exchange the connection was used for and
// is only consulted for logging - the connection's own state decides.
func (p *Pool) Release(conn *Connection, opErr error) {
	if conn == nil {
		return
	}

	discard := conn.State() != StateInUse && conn.State() != StateIdle

	p.mu.Lock()
	if p.closed || discard || len(p.idle) >= p.config.MaxIdlePerPool {
		p.total--
		p.signalLocked()
		p.mu.Unlock()

		if discard && opErr != nil {
			poolLogger.Debugf("discarding %s connection to %s: %v", conn.State(), p.endpoint, opErr)
		}
		conn.Close()
		return
	}

	conn.markIdle()
	p.idle = append(p.idle, conn)
	p.signalLocked()
	p.mu.Unlock()
}

// Close closes every idle connection and refuses further acquires.
// Connections currently handed out are closed as they are released.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.total -= len(idle)
	p.signalLocked()
	p.mu.Unlock()

	close(p.sweepStop)
	<-p.sweepDone

	for _, conn := range idle {
		conn.Close()
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// signalLocked wakes every waiter blocked in Acquire. Caller holds p.mu.
func (p *Pool) signalLocked() {
	close(p.notify)
	p.notify = make(chan struct{})
}

// expired reports whether the connection sat idle beyond IdleTimeout.
func (p *Pool) expired(conn *Connection) bool {
	return p.config.IdleTimeout > 0 && time.Since(conn.LastUsed()) > p.config.IdleTimeout
}

// sweepLoop periodically closes idle connections that outlived
// IdleTimeout.
func (p *Pool) sweepLoop() {
	defer close(p.sweepDone)

	interval := p.config.IdleTimeout / 2
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.sweepStop:
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

// sweep removes expired idle connections.
func (p *Pool) sweep() {
	var victims []*Connection

	p.mu.Lock()
	kept := p.idle[:0]
	for _, conn := range p.idle {
		if p.expired(conn) {
			victims = append(victims, conn)
			p.total--
		} else {
			kept = append(kept, conn)
		}
	}
	p.idle = kept
	if len(victims) > 0 {
		p.signalLocked()
	}
	p.mu.Unlock()

	for _, conn := range victims {
		conn.Close()
	}
	if len(victims) > 0 {
		poolLogger.Debugf("swept %d idle connections to %s", len(victims), p.endpoint)
	}
}
