// Package ratelimit coordinates outbound calls to the upstream marketing
// platform API from a single process. It is adapted from the teacher's
// infrastructure/ratelimit/ratelimit.go token-bucket limiter: the same
// golang.org/x/time/rate core now guards global concurrency and spacing,
// plus a per-endpoint adaptive delay that widens on 429 and decays on
// success.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config controls the manager's global guarantees.
type Config struct {
	MaxConcurrent  int           // max in-flight upstream requests
	MinInterval    time.Duration // minimum spacing between request starts
	BackoffStart   time.Duration // initial per-endpoint adaptive delay on a 429
	BackoffMax     time.Duration // ceiling for the adaptive delay
	BackoffDecay   float64       // multiplicative decay applied to the adaptive delay on success
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 3,
		MinInterval:   350 * time.Millisecond,
		BackoffStart:  time.Second,
		BackoffMax:    time.Minute,
		BackoffDecay:  0.5,
	}
}

type endpointState struct {
	delay time.Duration
}

// Manager is a process-wide coordinator for outbound upstream calls. It
// guarantees a maximum concurrency, a minimum inter-request spacing, and a
// per-endpoint adaptive delay derived from prior 429 responses.
type Manager struct {
	cfg       Config
	sem       chan struct{}
	spacing   *rate.Limiter
	mu        sync.Mutex
	endpoints map[string]*endpointState
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 350 * time.Millisecond
	}
	if cfg.BackoffStart <= 0 {
		cfg.BackoffStart = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = time.Minute
	}
	if cfg.BackoffDecay <= 0 || cfg.BackoffDecay >= 1 {
		cfg.BackoffDecay = 0.5
	}

	return &Manager{
		cfg:       cfg,
		sem:       make(chan struct{}, cfg.MaxConcurrent),
		spacing:   rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		endpoints: make(map[string]*endpointState),
	}
}

// Release is returned by Acquire and must be called on every exit path,
// including error returns, to free the concurrency slot.
type Release func()

// Acquire blocks until a concurrency slot is available, the global spacing
// interval has elapsed, and any adaptive per-endpoint delay has passed. The
// returned Release must be deferred by the caller.
func (m *Manager) Acquire(ctx context.Context, endpoint string) (Release, error) {
	if err := m.waitEndpointDelay(ctx, endpoint); err != nil {
		return nil, err
	}
	if err := m.spacing.Wait(ctx); err != nil {
		return nil, err
	}

	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-m.sem
		})
	}, nil
}

func (m *Manager) waitEndpointDelay(ctx context.Context, endpoint string) error {
	m.mu.Lock()
	st, ok := m.endpoints[endpoint]
	var delay time.Duration
	if ok {
		delay = st.delay
	}
	m.mu.Unlock()

	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReportRateLimited widens the adaptive delay for endpoint after a 429
// response, exponentially, up to BackoffMax.
func (m *Manager) ReportRateLimited(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.endpoints[endpoint]
	if !ok {
		st = &endpointState{delay: m.cfg.BackoffStart}
		m.endpoints[endpoint] = st
		return
	}

	next := st.delay * 2
	if st.delay <= 0 {
		next = m.cfg.BackoffStart
	}
	if next > m.cfg.BackoffMax {
		next = m.cfg.BackoffMax
	}
	st.delay = next
}

// ReportSuccess decays endpoint's adaptive delay toward zero.
func (m *Manager) ReportSuccess(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.endpoints[endpoint]
	if !ok {
		return
	}

	st.delay = time.Duration(float64(st.delay) * m.cfg.BackoffDecay)
	if st.delay < time.Millisecond {
		st.delay = 0
	}
}

// EndpointDelay returns the current adaptive delay for endpoint, for tests
// and diagnostics.
func (m *Manager) EndpointDelay(endpoint string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.endpoints[endpoint]; ok {
		return st.delay
	}
	return 0
}
