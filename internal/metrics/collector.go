package metrics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type EventType string

const (
	EventCheckCompleted EventType = "check_completed"
	EventTransition     EventType = "transition"
	EventCycleCompleted EventType = "cycle_completed"
	EventReload         EventType = "reload"
)

type MetricEvent struct {
	Type      EventType
	Timestamp time.Time
	Service   string
	Kind      string
	Duration  time.Duration
	Up        bool
	// Services is the tracked set size for cycle and reload events.
	Services int
	// Failed marks a reload that did not complete.
	Failed bool
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
	dropped atomic.Int64
	done    chan struct{}
	once    sync.Once
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit queues event without blocking.
func (c *Collector) Emit(event MetricEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
		c.dropped.Add(1)
		c.logger.Warn("metric event dropped, channel full",
			slog.String("type", string(event.Type)),
		)
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

// Done is closed once the collector has drained after ctx was cancelled.
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("metrics collector started")
	defer c.logger.Info("metrics collector stopped")
	defer c.once.Do(func() { close(c.done) })

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventCheckCompleted:
		c.metrics.RecordCheck(event.Service, event.Kind, event.Duration, event.Up)

	case EventTransition:
		c.metrics.RecordTransition(event.Service, event.Up)

	case EventCycleCompleted:
		c.metrics.RecordCycle(event.Timestamp, event.Duration, event.Services)

	case EventReload:
		c.metrics.RecordReload(event.Services, event.Failed)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	snap := c.metrics.Snapshot()
	snap.DroppedEvents = c.dropped.Load()
	return snap
}
