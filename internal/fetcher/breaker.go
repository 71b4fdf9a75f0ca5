package fetcher

import (
	"errors"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCircuitOpen is returned without sending a request while a host's
// breaker is open.
var ErrCircuitOpen = errors.New("fetcher: circuit open")

// BreakerOptions configures the per-host circuit breakers. A zero
// FailureThreshold disables them.
type BreakerOptions struct {
	// FailureThreshold is the number of consecutive failed downloads,
	// each after all retries, that opens a host's breaker.
	FailureThreshold int
	// ResetTimeout is how long an open breaker rejects requests before
	// letting a trial request through. Zero uses 30s.
	ResetTimeout time.Duration
}

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type breaker struct {
	host string
	opts BreakerOptions
	now  func() time.Time

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
}

// allow reports ErrCircuitOpen while the breaker is open. Once
// ResetTimeout has passed it moves to half-open and lets a trial request through.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != breakerOpen {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.opts.ResetTimeout {
		return ErrCircuitOpen
	}
	b.transition(breakerHalfOpen)
	return nil
}

func (b *breaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !failed {
		b.failures = 0
		if b.state != breakerClosed {
			b.transition(breakerClosed)
		}
		return
	}
	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.opts.FailureThreshold {
		b.openedAt = b.now()
		if b.state != breakerOpen {
			b.transition(breakerOpen)
		}
	}
}

func (b *breaker) transition(to breakerState) {
	zap.L().Warn("fetcher: circuit breaker state change",
		zap.String("host", b.host),
		zap.Stringer("from", b.state),
		zap.Stringer("to", to),
	)
	b.state = to
}

// hostBreakers holds one breaker per host.
type hostBreakers struct {
	opts BreakerOptions
	now  func() time.Time

	mu sync.Mutex
	m  map[string]*breaker
}

func newHostBreakers(opts BreakerOptions) *hostBreakers {
	if opts.FailureThreshold <= 0 {
		return nil
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 30 * time.Second
	}
	return &hostBreakers{opts: opts, now: time.Now, m: make(map[string]*breaker)}
}

// forURL returns the breaker of rawURL's host, or nil when breakers are
// disabled.
func (h *hostBreakers) forURL(rawURL string) *breaker {
	if h == nil {
		return nil
	}
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.m[host]
	if !ok {
		b = &breaker{host: host, opts: h.opts, now: h.now}
		h.m[host] = b
	}
	return b
}
