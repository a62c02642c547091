package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/angeloszaimis/uptime-tracker/internal/httppool"
)

const maxSamples = 1000

type Metrics struct {
	mutex          sync.RWMutex
	checks         map[string]int64
	failures       map[string]int64
	checkTimes     map[string][]time.Duration
	transitions    map[string]int64
	up             map[string]bool
	kinds          map[string]string
	cycles         int64
	lastCycle      time.Duration
	lastCycleAt    time.Time
	tracked        int
	reloads        int64
	reloadFailures int64
	startTime      time.Time
}

type Snapshot struct {
	TotalChecks    int64                     `json:"total_checks"`
	Uptime         time.Duration             `json:"uptime"`
	Cycles         int64                     `json:"cycles"`
	LastCycle      time.Duration             `json:"last_cycle"`
	LastCycleAt    time.Time                 `json:"last_cycle_at"`
	Tracked        int                       `json:"tracked"`
	Reloads        int64                     `json:"reloads"`
	ReloadFailures int64                     `json:"reload_failures"`
	DroppedEvents  int64                     `json:"dropped_events"`
	Services       map[string]ServiceMetrics `json:"services"`
	Pool           *httppool.Stats           `json:"pool,omitempty"`
}

type ServiceMetrics struct {
	Kind        string        `json:"kind"`
	Checks      int64         `json:"checks"`
	Failures    int64         `json:"failures"`
	Transitions int64         `json:"transitions"`
	Up          bool          `json:"up"`
	AvgCheck    time.Duration `json:"avg_check"`
	P50Check    time.Duration `json:"p50_check"`
	P95Check    time.Duration `json:"p95_check"`
	P99Check    time.Duration `json:"p99_check"`
}

func (m *Metrics) RecordCheck(service, kind string, duration time.Duration, up bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.checks[service]++
	if !up {
		m.failures[service]++
	}
	m.up[service] = up
	m.kinds[service] = kind

	m.checkTimes[service] = append(m.checkTimes[service], duration)
	if len(m.checkTimes[service]) > maxSamples {
		m.checkTimes[service] = m.checkTimes[service][1:]
	}
}

func (m *Metrics) RecordTransition(service string, up bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.transitions[service]++
	m.up[service] = up
}

func (m *Metrics) RecordCycle(at time.Time, duration time.Duration, services int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.cycles++
	m.lastCycle = duration
	m.lastCycleAt = at
	m.tracked = services
}

// RecordReload counts a reload attempt. A successful reload resets the
// per-service series, since the tracked set may have changed.
func (m *Metrics) RecordReload(services int, failed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if failed {
		m.reloadFailures++
		return
	}

	m.reloads++
	m.tracked = services
	m.checks = make(map[string]int64)
	m.failures = make(map[string]int64)
	m.checkTimes = make(map[string][]time.Duration)
	m.transitions = make(map[string]int64)
	m.up = make(map[string]bool)
	m.kinds = make(map[string]string)
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:         time.Since(m.startTime),
		Cycles:         m.cycles,
		LastCycle:      m.lastCycle,
		LastCycleAt:    m.lastCycleAt,
		Tracked:        m.tracked,
		Reloads:        m.reloads,
		ReloadFailures: m.reloadFailures,
		Services:       make(map[string]ServiceMetrics),
	}

	all := make(map[string]bool)
	for name := range m.checks {
		all[name] = true
	}
	for name := range m.transitions {
		all[name] = true
	}

	for name := range all {
		snap.TotalChecks += m.checks[name]

		sm := ServiceMetrics{
			Kind:        m.kinds[name],
			Checks:      m.checks[name],
			Failures:    m.failures[name],
			Transitions: m.transitions[name],
			Up:          m.up[name],
		}

		durations := m.checkTimes[name]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			sm.AvgCheck = average(sorted)
			sm.P50Check = percentile(sorted, 0.50)
			sm.P95Check = percentile(sorted, 0.95)
			sm.P99Check = percentile(sorted, 0.99)
		}

		snap.Services[name] = sm
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		checks:      make(map[string]int64),
		failures:    make(map[string]int64),
		checkTimes:  make(map[string][]time.Duration),
		transitions: make(map[string]int64),
		up:          make(map[string]bool),
		kinds:       make(map[string]string),
		startTime:   time.Now(),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
