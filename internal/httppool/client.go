package httppool

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"sync"
	"time"
)

// client is a single-in-flight HTTP client.
type client struct {
	mutex sync.Mutex
	ready bool
	http  *http.Client
}

func newClient(trustAll bool, timeout time.Duration, roots *x509.CertPool, wrap func(http.RoundTripper) http.RoundTripper) *client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: trustAll,
			RootCAs:            roots,
		},
		TLSHandshakeTimeout: timeout,
		MaxIdleConnsPerHost: 1,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	var rt http.RoundTripper = transport
	if wrap != nil {
		rt = wrap(rt)
	}

	return &client{
		ready: true,
		http: &http.Client{
			Transport: rt,
			Timeout:   timeout,
		},
	}
}

// tryAcquire flips the client to busy. It returns false if it already was.
func (c *client) tryAcquire() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.ready {
		return false
	}
	c.ready = false
	return true
}

func (c *client) release() {
	c.mutex.Lock()
	c.ready = true
	c.mutex.Unlock()
}

func (c *client) isReady() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.ready
}
