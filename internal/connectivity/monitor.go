package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/logging"
)

// Monitor holds the current connectivity state. It is fed either by Run,
// which polls a Prober, or directly through Set.
type Monitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	log      logging.Logger

	mu     sync.Mutex
	online bool
	subs   map[int]chan bool
	nextID int
}

func NewMonitor(p Prober, interval time.Duration, log logging.Logger) *Monitor {
	if log == nil {
		log = logging.Nop{}
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		prober:   p,
		interval: interval,
		timeout:  3 * time.Second,
		log:      log.With("component", "connectivity"),
		subs:     map[int]chan bool{},
	}
}

func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe returns a channel receiving the new state on every transition.
// Slow readers only see the latest state.
func (m *Monitor) Subscribe() (int, <-chan bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	ch := make(chan bool, 1)
	m.subs[m.nextID] = ch
	return m.nextID, ch
}

func (m *Monitor) Unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.subs[id]; ok {
		delete(m.subs, id)
		close(ch)
	}
}

// Set records a state and notifies subscribers if it changed.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return
	}
	m.online = online
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
}

// Check probes once and updates the state.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.prober.Probe(ctx)
	cancel()

	online := err == nil
	if online != m.IsOnline() {
		if online {
			m.log.Info(ctx, "switched to online mode")
		} else {
			m.log.Warn(ctx, "switched to offline mode", "error", err)
		}
	}
	m.Set(online)
	return online
}

// Run probes immediately and then on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

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
