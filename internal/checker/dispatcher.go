package checker

import (
	"context"
	"fmt"
	"time"

	"github.com/angeloszaimis/uptime-tracker/internal/service"
)

// UnknownKindError is the panic value for a record whose kind has no checker.
type UnknownKindError struct {
	Kind service.Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("no checker for check kind %s", e.Kind)
}

type DispatcherOption func(*Dispatcher)

// WithChecker replaces the checker for one kind.
func WithChecker(kind service.Kind, c Checker) DispatcherOption {
	return func(d *Dispatcher) {
		d.checkers[kind] = c
	}
}

type Dispatcher struct {
	checkers map[service.Kind]Checker
}

// NewDispatcher wires the built-in checkers, HTTP probes going through prober.
func NewDispatcher(prober Prober, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		checkers: map[service.Kind]Checker{
			service.KindHTTP: NewHTTP(prober),
			service.KindTCP:  NewTCP(),
			service.KindPing: NewPing(),
			service.KindSSL:  SSLChecker{},
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// For returns the checker for kind. It panics with *UnknownKindError when
// there is none; kinds are validated before they are stored.
func (d *Dispatcher) For(kind service.Kind) Checker {
	c, ok := d.checkers[kind]
	if !ok {
		panic(&UnknownKindError{Kind: kind})
	}
	return c
}

func (d *Dispatcher) Dispatch(ctx context.Context, rec service.Record, now time.Time) service.Record {
	return d.For(rec.Kind).Check(ctx, rec, now)
}
