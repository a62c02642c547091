package tracker_test

import (
	"context"
	"sync"
	"time"

	"github.com/angeloszaimis/uptime-tracker/internal/checker"
	"github.com/angeloszaimis/uptime-tracker/internal/definitions"
	"github.com/angeloszaimis/uptime-tracker/internal/metrics"
	"github.com/angeloszaimis/uptime-tracker/internal/service"
)

type fakeSource struct {
	mu    sync.Mutex
	defs  []definitions.Definition
	err   error
	calls int
}

func (s *fakeSource) CreateSchemaIfMissing(ctx context.Context) error {
	return nil
}

func (s *fakeSource) ListAll(ctx context.Context) ([]definitions.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]definitions.Definition, len(s.defs))
	copy(out, s.defs)
	return out, nil
}

func (s *fakeSource) set(defs []definitions.Definition, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs = defs
	s.err = err
}

func (s *fakeSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeDispatcher map[service.Kind]checker.Checker

func (d fakeDispatcher) For(kind service.Kind) checker.Checker {
	c, ok := d[kind]
	if !ok {
		panic(&checker.UnknownKindError{Kind: kind})
	}
	return c
}

// switchChecker reports up or down depending on a per-service flag.
type switchChecker struct {
	mu sync.Mutex
	up map[string]bool
}

func newSwitchChecker() *switchChecker {
	return &switchChecker{up: make(map[string]bool)}
}

func (c *switchChecker) set(name string, up bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up[name] = up
}

func (c *switchChecker) Check(ctx context.Context, rec service.Record, now time.Time) service.Record {
	c.mu.Lock()
	up := c.up[rec.Name]
	c.mu.Unlock()

	if up {
		return rec.MarkUp("OK", now)
	}
	return rec.MarkDown(service.CauseTimeout, "", "")
}

type sentMessage struct {
	text   string
	detail string
}

type recordingSink struct {
	mu       sync.Mutex
	messages []sentMessage
}

func (s *recordingSink) SendMessage(ctx context.Context, text, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, sentMessage{text: text, detail: detail})
	return nil
}

func (s *recordingSink) Messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

type recordingMetrics struct {
	mu     sync.Mutex
	events []metrics.MetricEvent
}

func (m *recordingMetrics) Emit(event metrics.MetricEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *recordingMetrics) count(t metrics.EventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func tcpDef(name string) definitions.Definition {
	return definitions.Definition{Name: name, Address: name + ":80", CheckType: service.KindTCP}
}
