package httppool

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"
)

// Negative probe outcomes. Any non-negative value is an HTTP status code.
const (
	OutcomeTLS        = -1
	OutcomeRefused    = -2
	OutcomeDNS        = -3
	OutcomeNoResponse = -4
)

const (
	DefaultTimeout = 2 * time.Second
	backoff        = 100 * time.Millisecond
)

type Option func(*Pool)

// WithRootCAs sets the certificate pool used by validating clients.
func WithRootCAs(roots *x509.CertPool) Option {
	return func(p *Pool) {
		p.roots = roots
	}
}

// WithTransportWrapper wraps the transport of every client the pool builds.
func WithTransportWrapper(wrap func(http.RoundTripper) http.RoundTripper) Option {
	return func(p *Pool) {
		p.wrap = wrap
	}
}

type Pool struct {
	mutex      sync.RWMutex
	trustAll   []*client
	validating []*client
	timeout    time.Duration
	roots      *x509.CertPool
	wrap       func(http.RoundTripper) http.RoundTripper
}

// Stats is a point-in-time view of both pools.
type Stats struct {
	TrustAll       int `json:"trust_all"`
	TrustAllBusy   int `json:"trust_all_busy"`
	Validating     int `json:"validating"`
	ValidatingBusy int `json:"validating_busy"`
}

// New creates a pool with one client per trust mode. A non-positive timeout
// falls back to DefaultTimeout.
func New(timeout time.Duration, opts ...Option) *Pool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	p := &Pool{timeout: timeout}
	for _, opt := range opts {
		opt(p)
	}

	p.trustAll = []*client{p.build(true)}
	p.validating = []*client{p.build(false)}
	return p
}

func (p *Pool) Timeout() time.Duration {
	return p.timeout
}

// Probe issues a HEAD request to address and returns the response status
// code, or one of the negative outcomes for classified transport failures.
// Unclassified failures are returned as an error.
func (p *Pool) Probe(ctx context.Context, address string, trustAny bool) (int, error) {
	for {
		c := p.acquire(trustAny)
		if c != nil {
			return p.probe(ctx, c, address)
		}

		select {
		case <-ctx.Done():
			return OutcomeNoResponse, nil
		case <-time.After(backoff):
		}
	}
}

// Size returns the number of clients in one pool.
func (p *Pool) Size(trustAll bool) int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if trustAll {
		return len(p.trustAll)
	}
	return len(p.validating)
}

func (p *Pool) Stats() Stats {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return Stats{
		TrustAll:       len(p.trustAll),
		TrustAllBusy:   countBusy(p.trustAll),
		Validating:     len(p.validating),
		ValidatingBusy: countBusy(p.validating),
	}
}

func countBusy(clients []*client) int {
	busy := 0
	for _, c := range clients {
		if !c.isReady() {
			busy++
		}
	}
	return busy
}

func (p *Pool) build(trustAll bool) *client {
	return newClient(trustAll, p.timeout, p.roots, p.wrap)
}

// acquire returns a client already flipped to busy, or nil if the caller
// should back off and rescan.
func (p *Pool) acquire(trustAll bool) *client {
	p.mutex.RLock()
	clients := p.trustAll
	if !trustAll {
		clients = p.validating
	}
	for _, c := range clients {
		if c.tryAcquire() {
			p.mutex.RUnlock()
			return c
		}
	}
	p.mutex.RUnlock()

	c := p.build(trustAll)
	if !c.tryAcquire() {
		return nil
	}

	p.mutex.Lock()
	if trustAll {
		p.trustAll = append(p.trustAll, c)
	} else {
		p.validating = append(p.validating, c)
	}
	p.mutex.Unlock()

	return c
}

func (p *Pool) probe(ctx context.Context, c *client, address string) (int, error) {
	defer c.release()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, address, nil)
	if err != nil {
		return 0, fmt.Errorf("build probe request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classify(ctx, address, err)
	}
	resp.Body.Close()

	return resp.StatusCode, nil
}

func classify(ctx context.Context, address string, err error) (int, error) {
	if ctx.Err() != nil && errors.Is(err, context.DeadlineExceeded) {
		return OutcomeNoResponse, nil
	}

	var (
		verifyErr   *tls.CertificateVerificationError
		unknownCA   x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
		dnsErr      *net.DNSError
		netErr      net.Error
	)

	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &unknownCA),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr),
		errors.As(err, &recordErr),
		errors.As(err, &alertErr):
		return OutcomeTLS, nil
	case errors.Is(err, syscall.ECONNREFUSED):
		return OutcomeRefused, nil
	case errors.As(err, &dnsErr):
		return OutcomeDNS, nil
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return OutcomeNoResponse, nil
	}

	return 0, fmt.Errorf("probe %s: %w", address, err)
}
