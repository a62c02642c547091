package httppool_test

import (
	"context"
	"crypto/x509"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/uptime-tracker/internal/httppool"
)

// exclusiveTransport fails the test if two requests overlap on the same
// pooled client.
type exclusiveTransport struct {
	base     http.RoundTripper
	inFlight atomic.Int32
	overlaps *atomic.Int32
}

func (t *exclusiveTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.inFlight.Add(1) > 1 {
		t.overlaps.Add(1)
	}
	defer t.inFlight.Add(-1)
	return t.base.RoundTrip(req)
}

func closedPort() string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

var _ = Describe("Pool", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("New", func() {
		It("should start with one client per trust mode", func() {
			pool := httppool.New(time.Second)
			Expect(pool.Size(true)).To(Equal(1))
			Expect(pool.Size(false)).To(Equal(1))
		})

		It("should fall back to the default timeout", func() {
			pool := httppool.New(0)
			Expect(pool.Timeout()).To(Equal(httppool.DefaultTimeout))
		})
	})

	Describe("Probe", func() {
		It("should return the response status code", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.Method).To(Equal(http.MethodHead))
				w.WriteHeader(http.StatusTeapot)
			}))
			defer server.Close()

			code, err := httppool.New(time.Second).Probe(ctx, server.URL, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusTeapot))
		})

		It("should report connection refused", func() {
			code, err := httppool.New(time.Second).Probe(ctx, "http://"+closedPort(), false)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(httppool.OutcomeRefused))
		})

		It("should report DNS failures", func() {
			code, err := httppool.New(time.Second).Probe(ctx, "http://does-not-exist.invalid", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(httppool.OutcomeDNS))
		})

		It("should report no response when the server is too slow", func() {
			release := make(chan struct{})
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
			defer server.Close()
			defer close(release)

			code, err := httppool.New(200*time.Millisecond).Probe(ctx, server.URL, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(httppool.OutcomeNoResponse))
		})

		It("should return unclassified failures as errors", func() {
			_, err := httppool.New(time.Second).Probe(ctx, "gopher://example.com", false)
			Expect(err).To(HaveOccurred())
		})

		Context("with a self-signed TLS server", func() {
			var server *httptest.Server

			BeforeEach(func() {
				server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				}))
			})

			AfterEach(func() {
				server.Close()
			})

			It("should report a certificate failure when validating", func() {
				code, err := httppool.New(time.Second).Probe(ctx, server.URL, false)
				Expect(err).NotTo(HaveOccurred())
				Expect(code).To(Equal(httppool.OutcomeTLS))
			})

			It("should accept the certificate in trust-all mode", func() {
				code, err := httppool.New(time.Second).Probe(ctx, server.URL, true)
				Expect(err).NotTo(HaveOccurred())
				Expect(code).To(Equal(http.StatusOK))
			})

			It("should validate against configured roots", func() {
				roots := x509.NewCertPool()
				roots.AddCert(server.Certificate())

				code, err := httppool.New(time.Second, httppool.WithRootCAs(roots)).Probe(ctx, server.URL, false)
				Expect(err).NotTo(HaveOccurred())
				Expect(code).To(Equal(http.StatusOK))
			})
		})
	})

	Describe("reuse", func() {
		It("should reuse an idle client for sequential probes", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			defer server.Close()

			pool := httppool.New(time.Second)
			for i := 0; i < 5; i++ {
				_, err := pool.Probe(ctx, server.URL, false)
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(pool.Size(false)).To(Equal(1))
			Expect(pool.Size(true)).To(Equal(1))
			Expect(pool.Stats().ValidatingBusy).To(Equal(0))
		})

		It("should grow to the peak concurrent demand without sharing a client", func() {
			const demand = 12

			var arrived atomic.Int32
			release := make(chan struct{})
			var once sync.Once

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if arrived.Add(1) >= demand {
					once.Do(func() { close(release) })
				}
				select {
				case <-release:
				case <-time.After(3 * time.Second):
				}
			}))
			defer server.Close()

			var overlaps atomic.Int32
			pool := httppool.New(5*time.Second, httppool.WithTransportWrapper(func(base http.RoundTripper) http.RoundTripper {
				return &exclusiveTransport{base: base, overlaps: &overlaps}
			}))

			var wg sync.WaitGroup
			codes := make([]int, demand)
			for i := 0; i < demand; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					defer GinkgoRecover()
					code, err := pool.Probe(ctx, server.URL, true)
					Expect(err).NotTo(HaveOccurred())
					codes[i] = code
				}(i)
			}
			wg.Wait()

			for _, code := range codes {
				Expect(code).To(Equal(http.StatusOK))
			}
			Expect(overlaps.Load()).To(BeZero())
			Expect(pool.Size(true)).To(BeNumerically(">=", demand))
			Expect(pool.Size(false)).To(Equal(1))
		})
	})
})
