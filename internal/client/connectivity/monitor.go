// Package connectivity tracks whether the record store is reachable.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/wetmap/internal/logging"
)

type State string

const (
	Offline State = "offline"
	Online  State = "online"
)

// Prober checks reachability; a nil error means online.
type Prober interface {
	Ping(ctx context.Context) error
}

// Monitor holds the current connectivity state. It starts Offline until the
// first probe resolves. Every Offline to Online transition runs the OnOnline
// handlers exactly once; Online to Offline only changes the state.
type Monitor struct {
	prober       Prober
	interval     time.Duration
	probeTimeout time.Duration
	log          logging.Logger

	mu       sync.Mutex
	state    State
	subs     map[int]func(State)
	nextSub  int
	onOnline []func(ctx context.Context)
}

func New(prober Prober, interval time.Duration, log logging.Logger) *Monitor {
	timeout := 3 * time.Second
	if interval > 0 && interval < timeout {
		timeout = interval
	}
	return &Monitor{
		prober:       prober,
		interval:     interval,
		probeTimeout: timeout,
		log:          log,
		state:        Offline,
		subs:         make(map[int]func(State)),
	}
}

// OnOnline registers fn to run on every Offline to Online transition.
// Register handlers before Start.
func (m *Monitor) OnOnline(fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// Subscribe calls fn on every state change until the returned function is
// called.
func (m *Monitor) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) Online() bool {
	return m.State() == Online
}

// Check probes once, updates the state and reports whether the store is
// reachable.
func (m *Monitor) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	err := m.prober.Ping(pctx)
	cancel()

	if err != nil {
		m.log.Debug(ctx, "probe failed", "err", err)
	}
	online := err == nil
	m.Set(ctx, online)
	return online
}

// Set records an externally observed connectivity signal.
func (m *Monitor) Set(ctx context.Context, online bool) {
	next := Offline
	if online {
		next = Online
	}

	m.mu.Lock()
	if m.state == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	var handlers []func(context.Context)
	if next == Online {
		handlers = append(handlers, m.onOnline...)
	}
	m.mu.Unlock()

	m.log.Info(ctx, "connectivity changed", "state", next)

	for _, fn := range subs {
		fn(next)
	}
	for _, fn := range handlers {
		fn(ctx)
	}
}

// Start probes immediately and then every interval until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	m.Check(ctx)

	if m.interval <= 0 {
		return
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Ping(ctx context.Context) error { return f(ctx) }
