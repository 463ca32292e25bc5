// Package probe checks whether the replica host accepts TCP connections.
// It says nothing about the health of the service behind the port.
package probe

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/netx"
)

const DefaultTimeout = 3 * time.Second

// canDial is a seam for tests.
var canDial = netx.CanDial

// Result is the outcome of the most recent probe.
type Result struct {
	Reachable bool
	CheckedAt time.Time
}

type Prober struct {
	addr    string
	timeout time.Duration
	now     func() time.Time

	mu   sync.RWMutex
	last Result
}

// New returns a prober for addr ("host:port"). A non-positive timeout falls
// back to DefaultTimeout.
func New(addr string, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{addr: addr, timeout: timeout, now: time.Now}
}

// IsReachable dials the configured address. It never fails: any error,
// including an empty address, reads as unreachable.
func (p *Prober) IsReachable(ctx context.Context) bool {
	ok := canDial(ctx, p.addr, p.timeout)

	p.mu.Lock()
	p.last = Result{Reachable: ok, CheckedAt: p.now()}
	p.mu.Unlock()
	return ok
}

// Last returns the result of the previous IsReachable call.
func (p *Prober) Last() Result {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

func (p *Prober) Addr() string { return p.addr }
