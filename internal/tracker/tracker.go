package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/uptime-tracker/internal/checker"
	"github.com/angeloszaimis/uptime-tracker/internal/definitions"
	"github.com/angeloszaimis/uptime-tracker/internal/metrics"
	"github.com/angeloszaimis/uptime-tracker/internal/notify"
	"github.com/angeloszaimis/uptime-tracker/internal/service"
	"github.com/angeloszaimis/uptime-tracker/internal/state"
)

// Cadence is the wall-clock period cycles are aligned to.
const Cadence = 30 * time.Second

var ErrAlreadyRunning = errors.New("tracking loop already running")

// Source is the definition store as seen by the loop.
type Source interface {
	CreateSchemaIfMissing(ctx context.Context) error
	ListAll(ctx context.Context) ([]definitions.Definition, error)
}

// Dispatcher picks the checker for a kind. *checker.Dispatcher implements it.
type Dispatcher interface {
	For(kind service.Kind) checker.Checker
}

// MetricsEmitter receives cycle events. *metrics.Collector implements it.
type MetricsEmitter interface {
	Emit(event metrics.MetricEvent)
}

type Option func(*Tracker)

func WithClock(clock clockwork.Clock) Option {
	return func(t *Tracker) {
		t.clock = clock
	}
}

// WithConcurrency caps the number of checks running at once. Zero means one
// goroutine per tracked service.
func WithConcurrency(n int) Option {
	return func(t *Tracker) {
		t.concurrency = n
	}
}

func WithMetrics(m MetricsEmitter) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

type Tracker struct {
	store       *state.Store
	source      Source
	dispatcher  Dispatcher
	emitter     *notify.Emitter
	metrics     MetricsEmitter
	clock       clockwork.Clock
	logger      *slog.Logger
	concurrency int

	running atomic.Bool
	reload  atomic.Bool

	observersMu sync.RWMutex
	observers   []func([]service.Record)
}

// New builds a tracker. The first cycle always loads definitions.
func New(store *state.Store, source Source, dispatcher Dispatcher, emitter *notify.Emitter, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:      store,
		source:     source,
		dispatcher: dispatcher,
		emitter:    emitter,
		clock:      clockwork.NewRealClock(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.reload.Store(true)
	return t
}

// Start launches the loop in the background. It returns false without doing
// anything when a loop is already running.
func (t *Tracker) Start(ctx context.Context) bool {
	if !t.running.CompareAndSwap(false, true) {
		return false
	}

	go func() {
		defer t.running.Store(false)
		t.loop(ctx)
	}()
	return true
}

// Run runs the loop on the calling goroutine until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer t.running.Store(false)

	t.loop(ctx)
	return ctx.Err()
}

func (t *Tracker) Running() bool {
	return t.running.Load()
}

// SignalReload asks the next cycle to reload definitions.
func (t *Tracker) SignalReload() {
	t.reload.Store(true)
}

func (t *Tracker) Snapshot() ([]service.Record, error) {
	return t.store.Snapshot()
}

// OnCycle registers fn to receive the store contents after every commit.
func (t *Tracker) OnCycle(fn func([]service.Record)) {
	t.observersMu.Lock()
	t.observers = append(t.observers, fn)
	t.observersMu.Unlock()
}

func (t *Tracker) loop(ctx context.Context) {
	t.logger.Info("tracking loop started")
	defer t.logger.Info("tracking loop stopped")

	for {
		start := t.clock.Now()
		t.RunCycle(ctx)
		elapsed := t.clock.Since(start)

		wait := SleepDuration(t.clock.Now(), elapsed)
		if wait == 0 {
			t.logger.Warn("cycle overran cadence, starting next cycle now",
				slog.Duration("elapsed", elapsed),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-t.clock.After(wait):
		}
	}
}

// SleepDuration returns the time left until the next :00 or :30 second
// boundary after now, or zero when the cycle took a full period or longer.
func SleepDuration(now time.Time, elapsed time.Duration) time.Duration {
	if elapsed >= Cadence {
		return 0
	}

	ms := (now.Second()*1000 + now.Nanosecond()/int(time.Millisecond)) % int(Cadence/time.Millisecond)
	return Cadence - time.Duration(ms)*time.Millisecond
}

// RunCycle performs one reload-check-commit-notify pass.
func (t *Tracker) RunCycle(ctx context.Context) {
	logger := t.logger.With(slog.String("cycle", uuid.NewString()))
	now := t.clock.Now()

	defer func() {
		if r := recover(); r != nil {
			if _, fatal := r.(*checker.UnknownKindError); fatal {
				panic(r)
			}
			logger.Error("cycle failed", slog.Any("panic", r))
		}
	}()

	if t.reload.Swap(false) {
		count, err := t.reloadDefinitions(ctx)
		if err != nil {
			t.reload.Store(true)
			logger.Error("definition reload failed, keeping current services", slog.String("error", err.Error()))
			t.emit(metrics.MetricEvent{Type: metrics.EventReload, Failed: true})
		} else {
			logger.Info("definitions reloaded", slog.Int("services", count))
			t.emit(metrics.MetricEvent{Type: metrics.EventReload, Services: count})
		}
	}

	checked := t.checkAndCommit(ctx, logger, now)

	elapsed := t.clock.Since(now)
	logger.Info("cycle completed",
		slog.Int("services", checked),
		slog.Duration("elapsed", elapsed),
	)
	t.emit(metrics.MetricEvent{
		Type:      metrics.EventCycleCompleted,
		Timestamp: now,
		Duration:  elapsed,
		Services:  checked,
	})
}

func (t *Tracker) reloadDefinitions(ctx context.Context) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reload panicked: %v", r)
		}
	}()

	if err := t.source.CreateSchemaIfMissing(ctx); err != nil {
		return 0, err
	}

	defs, err := t.source.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	records := make([]service.Record, len(defs))
	for i, def := range defs {
		records[i] = def.Record()
	}
	t.store.ReplaceAll(records)

	return len(records), nil
}

func (t *Tracker) checkAndCommit(ctx context.Context, logger *slog.Logger, now time.Time) int {
	records, err := t.store.Snapshot()
	if err != nil {
		logger.Debug("no services to check")
		return 0
	}

	// Resolve every checker before fanning out so an unknown kind surfaces
	// on this goroutine.
	checkers := make([]checker.Checker, len(records))
	for i, rec := range records {
		checkers[i] = t.dispatcher.For(rec.Kind)
	}

	results := make([]service.Record, len(records))
	var g errgroup.Group
	if t.concurrency > 0 {
		g.SetLimit(t.concurrency)
	}

	for i := range records {
		g.Go(func() error {
			results[i] = t.check(ctx, logger, checkers[i], records[i], now)
			return nil
		})
	}
	_ = g.Wait()

	for i := range records {
		prev, next := records[i], results[i]

		if err := t.store.UpdateAt(i, next); err != nil {
			logger.Error("commit failed", slog.String("service", next.Name), slog.String("error", err.Error()))
			continue
		}

		if msg, ok := t.emitter.Transition(prev, next); ok {
			logger.Info("service transition",
				slog.String("service", msg.Service),
				slog.Bool("up", msg.Up),
				slog.String("live", next.Live()),
			)
			t.emit(metrics.MetricEvent{Type: metrics.EventTransition, Service: next.Name, Up: next.IsUp()})
			t.emitter.Observe(ctx, prev, next)
		}
	}

	t.notifyObservers()
	return len(records)
}

func (t *Tracker) check(ctx context.Context, logger *slog.Logger, c checker.Checker, rec service.Record, now time.Time) (result service.Record) {
	began := t.clock.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("check panicked", slog.String("service", rec.Name), slog.Any("panic", r))
			result = rec.MarkDown(service.CauseException, "", fmt.Sprint(r))
		}

		t.emit(metrics.MetricEvent{
			Type:     metrics.EventCheckCompleted,
			Service:  rec.Name,
			Kind:     rec.Kind.String(),
			Duration: t.clock.Since(began),
			Up:       result.IsUp(),
		})
	}()

	result = c.Check(ctx, rec, now)
	if !result.IsUp() {
		logger.Debug("service check failed",
			slog.String("service", rec.Name),
			slog.String("kind", rec.Kind.String()),
			slog.String("live", result.Live()),
		)
	}
	return result
}

func (t *Tracker) notifyObservers() {
	t.observersMu.RLock()
	observers := t.observers
	t.observersMu.RUnlock()

	if len(observers) == 0 {
		return
	}

	snapshot, err := t.store.Snapshot()
	if err != nil {
		return
	}
	for _, fn := range observers {
		fn(snapshot)
	}
}

func (t *Tracker) emit(event metrics.MetricEvent) {
	if t.metrics != nil {
		t.metrics.Emit(event)
	}
}
