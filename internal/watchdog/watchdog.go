// Package watchdog shuts down idle session processes. A session server
// exists for one short-lived conversation; once nobody is talking the
// process has no reason to stay up.
package watchdog

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

const (
	DefaultTimeout       = 5 * time.Minute
	DefaultCheckInterval = 30 * time.Second
)

// Config parameterizes a Monitor.
type Config struct {
	// Timeout is the idleness budget before shutdown.
	Timeout time.Duration
	// CheckInterval is the cadence of idleness evaluation.
	CheckInterval time.Duration
	// IgnoreTypes are message tags that do not refresh activity, such as
	// continuous hand-position streams.
	IgnoreTypes []string
	// OnShutdown fires at most once with a human-readable reason.
	OnShutdown func(reason string)
	// Clock defaults to the wall clock; tests inject clock.NewMock.
	Clock clock.Clock
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
}

// Monitor tracks connection count and last-activity time and fires its
// shutdown callback once any idleness condition holds.
type Monitor struct {
	mu sync.Mutex

	clk           clock.Clock
	log           zerolog.Logger
	timeout       time.Duration
	checkInterval time.Duration
	ignore        map[string]struct{}
	onShutdown    func(reason string)

	startTime     time.Time
	lastActivity  time.Time
	connections   int
	everConnected bool
	fired         bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New builds a Monitor; call Start to begin checking.
func New(cfg Config) *Monitor {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "watchdog").Logger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	ignore := make(map[string]struct{}, len(cfg.IgnoreTypes))
	for _, t := range cfg.IgnoreTypes {
		ignore[t] = struct{}{}
	}

	now := clk.Now()
	return &Monitor{
		clk:           clk,
		log:           logger,
		timeout:       timeout,
		checkInterval: interval,
		ignore:        ignore,
		onShutdown:    cfg.OnShutdown,
		startTime:     now,
		lastActivity:  now,
		stopCh:        make(chan struct{}),
	}
}

// Start launches the periodic check loop.
func (m *Monitor) Start() {
	go func() {
		t := m.clk.Ticker(m.checkInterval)
		defer t.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-t.C:
				m.check()
			}
		}
	}()
	m.log.Info().
		Dur("timeout", m.timeout).
		Dur("check_interval", m.checkInterval).
		Msg("inactivity monitor started")
}

// Stop halts the check loop. Idempotent.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// RecordConnect notes a new connection and refreshes activity.
func (m *Monitor) RecordConnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections++
	m.everConnected = true
	m.lastActivity = m.clk.Now()
}

// RecordDisconnect notes a departed connection and refreshes activity.
func (m *Monitor) RecordDisconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connections > 0 {
		m.connections--
	}
	m.lastActivity = m.clk.Now()
}

// RecordActivity refreshes the idleness clock unless msgType is in the
// ignore set.
func (m *Monitor) RecordActivity(msgType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ignored := m.ignore[msgType]; ignored {
		return
	}
	m.lastActivity = m.clk.Now()
}

func (m *Monitor) check() {
	m.mu.Lock()
	if m.fired {
		m.mu.Unlock()
		return
	}

	now := m.clk.Now()
	var reason string
	switch {
	case !m.everConnected && now.Sub(m.startTime) >= m.timeout:
		reason = fmt.Sprintf("No participants connected within %s", m.timeout)
	case m.everConnected && m.connections == 0 && now.Sub(m.lastActivity) >= m.timeout:
		reason = fmt.Sprintf("Session empty for %s", m.timeout)
	case m.connections > 0 && now.Sub(m.lastActivity) >= m.timeout:
		reason = fmt.Sprintf("No activity for %s with %d connection(s)", m.timeout, m.connections)
	default:
		m.mu.Unlock()
		return
	}

	m.fired = true
	cb := m.onShutdown
	m.mu.Unlock()

	m.log.Warn().Str("reason", reason).Msg("inactivity shutdown")
	m.Stop()
	if cb != nil {
		cb(reason)
	}
}
