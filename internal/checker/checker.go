package checker

import (
	"context"
	"time"

	"github.com/angeloszaimis/uptime-tracker/internal/service"
)

const (
	// Attempts is the number of tries per check call.
	Attempts = 4
	// AttemptTimeout bounds a single TCP connect or ICMP echo.
	AttemptTimeout = time.Second
)

type Checker interface {
	Check(ctx context.Context, rec service.Record, now time.Time) service.Record
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, rec service.Record, now time.Time) service.Record

func (f CheckerFunc) Check(ctx context.Context, rec service.Record, now time.Time) service.Record {
	return f(ctx, rec, now)
}

// SSLChecker is a placeholder for certificate lifecycle checks.
type SSLChecker struct{}

func (SSLChecker) Check(_ context.Context, rec service.Record, _ time.Time) service.Record {
	return rec.MarkDown(service.CauseNotImplemented, "", "")
}
