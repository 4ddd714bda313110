// Package pool provides a bounded, lazily created pool of live connections
// built on puddle. Every call site leases through AutoRelease so a failing
// operation can never leak its connection.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/puddle/v2"
)

//==============================================================================

// Defaults for pool sizing and acquisition.
const (
	DefaultMaxSize        = 5
	DefaultMinSize        = 1
	DefaultAcquireTimeout = 3000 * time.Millisecond
)

// ErrPoolTimeout is matched by errors.Is for every TimeoutError.
var ErrPoolTimeout = errors.New("pool timeout")

// ErrPoolClosed is returned when a connection is requested while the pool is
// draining.
var ErrPoolClosed = errors.New("pool closed")

// ErrReleased is returned when a lease is handed back a second time.
var ErrReleased = errors.New("lease already released")

// TimeoutError is returned when no connection became available within the
// configured acquire wait.
type TimeoutError struct {
	Wait time.Duration
}

// Error returns the message for this timeout.
func (t *TimeoutError) Error() string {
	return fmt.Sprintf("pool timeout : no connection available after %s", t.Wait)
}

// Is matches ErrPoolTimeout.
func (t *TimeoutError) Is(target error) bool {
	return target == ErrPoolTimeout
}

// Unwrap exposes the underlying context error.
func (t *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

//==============================================================================

// MaxSize returns the first positive candidate, or DefaultMaxSize when none
// is set. Candidates are passed in precedence order.
func MaxSize(candidates ...int) int {
	for _, n := range candidates {
		if n > 0 {
			return n
		}
	}

	return DefaultMaxSize
}

//==============================================================================

// Config defines the factory and sizing of a Pool.
type Config[T any] struct {
	// Create builds a new live connection.
	Create func(ctx context.Context) (T, error)

	// Destroy closes the transport of a connection.
	Destroy func(T)

	// Validate, when set, is run on release. Connections failing it are
	// destroyed instead of returned to the idle set.
	Validate func(T) error

	// Broken, when set, classifies the error of an AutoRelease operation.
	// Connections whose operation failed with a broken error are destroyed
	// instead of returned to the idle set.
	Broken func(error) bool

	MaxSize        int
	MinSize        int
	AcquireTimeout time.Duration
}

// Stats defines a snapshot of the pool accounting.
type Stats struct {
	Total        int   `json:"total"`
	Idle         int   `json:"idle"`
	Acquired     int   `json:"acquired"`
	Constructing int   `json:"constructing"`
	Max          int   `json:"max"`
	AcquireCount int64 `json:"acquireCount"`
	Timeouts     int64 `json:"timeouts"`
	Draining     bool  `json:"draining"`
}

// Pool manages a bounded set of connections of type T. The underlying puddle
// pool is created on first use and recreated after DrainAndClear.
type Pool[T any] struct {
	cfg Config[T]

	drain    sync.Mutex
	mu       sync.Mutex
	inner    *puddle.Pool[T]
	draining bool

	timeouts atomic.Int64
}

// New returns a new Pool for the giving config. Zero sizes and timeouts take
// their defaults and MinSize never drops below 1.
func New[T any](cfg Config[T]) *Pool[T] {
	if cfg.MaxSize < 1 {
		cfg.MaxSize = DefaultMaxSize
	}

	if cfg.MinSize < DefaultMinSize {
		cfg.MinSize = DefaultMinSize
	}

	if cfg.MinSize > cfg.MaxSize {
		cfg.MinSize = cfg.MaxSize
	}

	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}

	if cfg.Destroy == nil {
		cfg.Destroy = func(T) {}
	}

	return &Pool[T]{cfg: cfg}
}

// Size returns the configured maximum and minimum sizes.
func (p *Pool[T]) Size() (max int, min int) {
	return p.cfg.MaxSize, p.cfg.MinSize
}

// AcquireTimeout returns the configured acquire wait.
func (p *Pool[T]) AcquireTimeout() time.Duration {
	return p.cfg.AcquireTimeout
}

// pool returns the live puddle pool, creating it when needed. created reports
// whether this call built it, in which case the caller warms it up.
func (p *Pool[T]) pool() (inner *puddle.Pool[T], created bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.draining {
		return nil, false, ErrPoolClosed
	}

	if p.inner != nil {
		return p.inner, false, nil
	}

	inner, err = puddle.NewPool(&puddle.Config[T]{
		Constructor: p.cfg.Create,
		Destructor:  p.cfg.Destroy,
		MaxSize:     int32(p.cfg.MaxSize),
	})
	if err != nil {
		return nil, false, err
	}

	p.inner = inner
	return inner, true, nil
}

// topUp creates idle connections until the pool holds MinSize again.
func (p *Pool[T]) topUp() {
	p.mu.Lock()
	inner := p.inner
	draining := p.draining
	p.mu.Unlock()

	if inner == nil || draining {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.AcquireTimeout)
	defer cancel()

	for int(inner.Stat().TotalResources()) < p.cfg.MinSize {
		if err := inner.CreateResource(ctx); err != nil {
			return
		}
	}
}

//==============================================================================

// Lease defines a connection checked out of a Pool. It must be handed back
// exactly once through Release or Destroy.
type Lease[T any] struct {
	pool *Pool[T]
	res  *puddle.Resource[T]
	done atomic.Bool
}

// Value returns the leased connection.
func (l *Lease[T]) Value() T {
	return l.res.Value()
}

// Acquire returns a live connection, creating one when the pool has room and
// none is idle. The acquire timeout covers the whole call, dialing included:
// past it Acquire fails with a *TimeoutError while a slow dial carries on in
// the background. A dial error that comes back in time is returned as is.
func (p *Pool[T]) Acquire(ctx context.Context) (*Lease[T], error) {
	actx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	inner, created, err := p.pool()
	if err != nil {
		return nil, err
	}

	res, err := inner.Acquire(actx)
	if created {
		go p.topUp()
	}

	if err != nil {
		switch {
		case errors.Is(err, puddle.ErrClosedPool):
			return nil, ErrPoolClosed
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			p.timeouts.Add(1)
			return nil, &TimeoutError{Wait: p.cfg.AcquireTimeout}
		}

		return nil, err
	}

	return &Lease[T]{pool: p, res: res}, nil
}

// Release returns the connection to the idle set. When a Validate hook is
// configured and fails, the connection is destroyed instead.
func (p *Pool[T]) Release(l *Lease[T]) error {
	if !l.done.CompareAndSwap(false, true) {
		return ErrReleased
	}

	if p.cfg.Validate != nil {
		if err := p.cfg.Validate(l.res.Value()); err != nil {
			l.res.Destroy()
			go p.topUp()
			return nil
		}
	}

	l.res.Release()
	return nil
}

// Destroy discards a connection known to be bad. It is never returned to the
// idle set. The connection is closed asynchronously and its slot frees once
// closing completes.
func (p *Pool[T]) Destroy(l *Lease[T]) error {
	if !l.done.CompareAndSwap(false, true) {
		return ErrReleased
	}

	l.res.Destroy()
	go p.topUp()
	return nil
}

// AutoRelease acquires a connection, runs fn against it and hands the
// connection back on every path, including a panic in fn. When fn fails with
// an error the Broken hook reports, the connection is destroyed rather than
// released. The error of fn is returned unchanged.
func (p *Pool[T]) AutoRelease(ctx context.Context, fn func(T) error) (err error) {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil && p.cfg.Broken != nil && p.cfg.Broken(err) {
			p.Destroy(lease)
			return
		}
		p.Release(lease)
	}()

	return fn(lease.Value())
}

// DrainAndClear stops issuing connections, waits for every outstanding lease
// to come back, closes all connections and resets the pool so the next
// Acquire starts from scratch. Acquires made while draining fail with
// ErrPoolClosed.
func (p *Pool[T]) DrainAndClear() {
	p.drain.Lock()
	defer p.drain.Unlock()

	p.mu.Lock()
	inner := p.inner
	p.draining = true
	p.mu.Unlock()

	// Close blocks until every acquired resource is released and destroyed.
	if inner != nil {
		inner.Close()
	}

	p.mu.Lock()
	p.inner = nil
	p.draining = false
	p.mu.Unlock()
}

// Stats returns a snapshot of the pool accounting.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	inner := p.inner
	draining := p.draining
	p.mu.Unlock()

	stats := Stats{
		Max:      p.cfg.MaxSize,
		Timeouts: p.timeouts.Load(),
		Draining: draining,
	}

	if inner == nil {
		return stats
	}

	st := inner.Stat()
	stats.Total = int(st.TotalResources())
	stats.Idle = int(st.IdleResources())
	stats.Acquired = int(st.AcquiredResources())
	stats.Constructing = int(st.ConstructingResources())
	stats.AcquireCount = st.AcquireCount()
	return stats
}
