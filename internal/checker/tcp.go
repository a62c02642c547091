package checker

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/angeloszaimis/uptime-tracker/internal/service"
)

// DialFunc opens a connection. net.Dialer.DialContext has this signature.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

type TCPChecker struct {
	dial    DialFunc
	timeout time.Duration
}

func NewTCP() *TCPChecker {
	return &TCPChecker{
		dial:    (&net.Dialer{}).DialContext,
		timeout: AttemptTimeout,
	}
}

// NewTCPWithDialer is NewTCP with a custom dial function and per-attempt timeout.
func NewTCPWithDialer(dial DialFunc, timeout time.Duration) *TCPChecker {
	return &TCPChecker{dial: dial, timeout: timeout}
}

// Check connects to a "host:port" address. A malformed address fails without
// touching the network. A connect fault ends the check at once, while
// attempts that run out of time are retried.
func (c *TCPChecker) Check(ctx context.Context, rec service.Record, now time.Time) service.Record {
	host, port, ok := splitHostPort(rec.Address)
	if !ok {
		return rec.MarkDown(service.CauseInvalidAddress, "", "")
	}
	target := net.JoinHostPort(host, port)

	for i := 0; i < Attempts; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		conn, err := c.dial(attemptCtx, "tcp", target)
		timedOut := attemptCtx.Err() != nil
		cancel()

		if err == nil {
			conn.Close()
			return rec.MarkUp("OK", now)
		}

		if timedOut || isTimeout(err) {
			if ctx.Err() != nil {
				break
			}
			continue
		}

		return rec.MarkDown(service.CauseException, "", err.Error())
	}

	return rec.MarkDown(service.CauseTimeout, "", "")
}

// splitHostPort accepts exactly one colon followed by a numeric port.
func splitHostPort(address string) (string, string, bool) {
	parts := strings.Split(address, ":")
	if len(parts) != 2 || parts[0] == "" {
		return "", "", false
	}
	if _, err := strconv.ParseUint(parts[1], 10, 16); err != nil {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
