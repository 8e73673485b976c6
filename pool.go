package ogcard

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one render slot is available.
	MinPoolSize = 1

	// MaxPoolSize caps browser instances to limit memory (~200MB each).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

// RenderPool bounds concurrent renders to a fixed number of Service
// instances, each with its own browser session. Services are created
// lazily on first acquire to avoid startup delay.
//
// The pool never spawns beyond its capacity: a request arriving with
// all slots taken either fails fast (TryAcquire, the backpressure
// policy used by the HTTP server) or waits for a slot (Acquire, bounded
// by the caller's context).
type RenderPool struct {
	size     int
	opts     []Option
	services []*Service
	sem      chan *Service
	mu       sync.Mutex
	created  int
	closed   bool
}

// NewRenderPool creates a pool with capacity for n Service instances,
// each configured with the given options.
func NewRenderPool(n int, opts ...Option) *RenderPool {
	if n < 1 {
		n = 1
	}

	return &RenderPool{
		size:     n,
		opts:     opts,
		services: make([]*Service, 0, n),
		sem:      make(chan *Service, n),
	}
}

// TryAcquire gets a service without waiting. Returns ErrPoolBusy when
// every slot is in use and ErrPoolClosed after Close.
func (p *RenderPool) TryAcquire() (*Service, error) {
	select {
	case svc := <-p.sem:
		if svc == nil {
			return nil, ErrPoolClosed
		}
		return svc, nil
	default:
	}

	if svc := p.createIfBelowCap(); svc != nil {
		return svc, nil
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}
	return nil, ErrPoolBusy
}

// Acquire gets a service, waiting for a slot if all are in use. The
// wait is bounded by ctx: cancellation returns promptly with ctx.Err()
// and consumes no slot.
func (p *RenderPool) Acquire(ctx context.Context) (*Service, error) {
	select {
	case svc := <-p.sem:
		if svc == nil {
			return nil, ErrPoolClosed
		}
		return svc, nil
	default:
	}

	if svc := p.createIfBelowCap(); svc != nil {
		return svc, nil
	}

	select {
	case svc := <-p.sem:
		if svc == nil {
			return nil, ErrPoolClosed
		}
		return svc, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// createIfBelowCap lazily creates a new service while under capacity.
// Returns nil when the pool is full or closed.
func (p *RenderPool) createIfBelowCap() *Service {
	p.mu.Lock()
	if p.closed || p.created >= p.size {
		p.mu.Unlock()
		return nil
	}
	p.created++
	p.mu.Unlock()

	// Create the service outside the lock; browser launch is lazy so
	// this is cheap.
	svc := New(p.opts...)

	p.mu.Lock()
	p.services = append(p.services, svc)
	p.mu.Unlock()

	return svc
}

// Release returns a service to the pool.
func (p *RenderPool) Release(svc *Service) {
	if svc == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	// Never blocks: sem capacity matches the service cap, so holding the
	// lock here is safe and keeps Close from racing the send.
	p.sem <- svc
}

// Generate renders one request using the fail-fast backpressure
// policy: when all slots are busy it returns ErrPoolBusy immediately
// instead of queuing.
func (p *RenderPool) Generate(ctx context.Context, req Request) (*Output, error) {
	svc, err := p.TryAcquire()
	if err != nil {
		return nil, err
	}
	defer p.Release(svc)

	return svc.Generate(ctx, req)
}

// Close releases all browser resources.
// Returns an aggregated error if multiple services fail to close.
func (p *RenderPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.sem)
	services := p.services
	p.mu.Unlock()

	var errs []error
	for _, svc := range services {
		if err := svc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *RenderPool) Size() int {
	return p.size
}

// ResolvePoolSize determines the pool size.
// Priority: explicit value > GOMAXPROCS-based calculation.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}

	// Auto-calculate based on GOMAXPROCS (adjusted by automaxprocs in
	// containers).
	available := runtime.GOMAXPROCS(0)
	n := available / cpuDivisor

	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
