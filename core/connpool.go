package core

import (
	"context"
	"net"
	"sync"
	"time"
)

// pooledDataportConn is a reusable net.Conn backing a NetDataport,
// adapted from the teacher's pooledConn (core/connection_pool.go).
type pooledDataportConn struct {
	net.Conn
	addr     string
	lastUsed time.Time
}

// DataportDialer opens the transport connection a RemoteDataportPool
// wraps, the Go shape of the teacher's Dialer interface.
type DataportDialer interface {
	Dial(ctx context.Context, addr string) (net.Conn, error)
}

type netDialer struct{ network string }

func (d netDialer) Dial(ctx context.Context, addr string) (net.Conn, error) {
	var dl net.Dialer
	return dl.DialContext(ctx, d.network, addr)
}

// NewTCPDataportDialer returns a DataportDialer over TCP, the transport
// a NetDataport uses for its RPC-over-dataport emulation.
func NewTCPDataportDialer() DataportDialer { return netDialer{network: "tcp"} }

// RemoteDataportPool manages reusable connections backing NetDataports
// keyed by peer address — the same idle-pool/TTL-reaper shape as the
// teacher's ConnPool, generalized from a generic net.Conn pool into one
// that hands out ready-to-use NetDataports.
type RemoteDataportPool struct {
	dialer    DataportDialer
	mu        sync.Mutex
	conns     map[string][]*pooledDataportConn
	maxIdle   int
	idleTTL   time.Duration
	closing   chan struct{}
	closeOnce sync.Once
}

// NewRemoteDataportPool constructs a pool dialing through d, keeping up
// to maxIdle idle connections per address for at most idleTTL.
func NewRemoteDataportPool(d DataportDialer, maxIdle int, idleTTL time.Duration) *RemoteDataportPool {
	p := &RemoteDataportPool{
		dialer:  d,
		conns:   make(map[string][]*pooledDataportConn),
		maxIdle: maxIdle,
		idleTTL: idleTTL,
		closing: make(chan struct{}),
	}
	go p.reaper()
	return p
}

// Acquire returns a NetDataport of size dpSize wired to an existing idle
// connection for addr, or dials a new one.
func (p *RemoteDataportPool) Acquire(ctx context.Context, addr string, dpSize int) (*NetDataport, error) {
	p.mu.Lock()
	list := p.conns[addr]
	n := len(list)
	if n > 0 {
		c := p.conns[addr][n-1]
		p.conns[addr] = list[:n-1]
		p.mu.Unlock()
		c.lastUsed = time.Now()
		return NewNetDataport(c, dpSize), nil
	}
	p.mu.Unlock()
	conn, err := p.dialer.Dial(ctx, addr)
	if err != nil {
		return nil, ErrAborted
	}
	return NewNetDataport(&pooledDataportConn{Conn: conn, addr: addr, lastUsed: time.Now()}, dpSize), nil
}

// Release returns dp's underlying connection to the pool for reuse, or
// closes it outright once maxIdle is reached for its address.
func (p *RemoteDataportPool) Release(dp *NetDataport) {
	pc, ok := dp.conn.(*pooledDataportConn)
	if !ok {
		_ = dp.Close()
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.maxIdle > 0 && len(p.conns[pc.addr]) < p.maxIdle {
		pc.lastUsed = time.Now()
		p.conns[pc.addr] = append(p.conns[pc.addr], pc)
		return
	}
	_ = pc.Close()
}

// Close closes every pooled connection and stops the reaper.
func (p *RemoteDataportPool) Close() {
	p.closeOnce.Do(func() {
		close(p.closing)
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, list := range p.conns {
			for _, c := range list {
				_ = c.Close()
			}
		}
		p.conns = make(map[string][]*pooledDataportConn)
	})
}

// Stats reports the number of idle pooled connections.
func (p *RemoteDataportPool) Stats() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, list := range p.conns {
		count += len(list)
	}
	return count
}

func (p *RemoteDataportPool) reaper() {
	ticker := time.NewTicker(p.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-p.idleTTL)
			p.mu.Lock()
			for addr, list := range p.conns {
				i := 0
				for _, c := range list {
					if c.lastUsed.Before(cutoff) {
						_ = c.Close()
						continue
					}
					list[i] = c
					i++
				}
				p.conns[addr] = list[:i]
			}
			p.mu.Unlock()
		case <-p.closing:
			return
		}
	}
}
