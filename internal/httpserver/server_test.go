package httpserver_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/uptime-tracker/internal/httpserver"
)

var _ = Describe("HTTP Server", func() {
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	DescribeTable("address validation",
		func(addr string, valid bool) {
			srv, err := httpserver.New(addr, noop)
			if valid {
				Expect(err).NotTo(HaveOccurred())
				Expect(srv).NotTo(BeNil())
			} else {
				Expect(err).To(HaveOccurred())
				Expect(srv).To(BeNil())
			}
		},
		Entry("host name", "localhost:8080", true),
		Entry("IP address", "127.0.0.1:8080", true),
		Entry("port only", ":8080", true),
		Entry("too many colons", "invalid:host:port", false),
		Entry("missing port", "localhost", false),
		Entry("empty port", "localhost:", false),
		Entry("bad host", "bad_host!:8080", false),
	)

	Context("server lifecycle", func() {
		var (
			srv  *httpserver.Server
			ln   net.Listener
			done chan error
		)

		start := func(handler http.Handler) {
			var err error
			srv, err = httpserver.New("127.0.0.1:0", handler)
			Expect(err).NotTo(HaveOccurred())

			ln, err = net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())

			done = make(chan error, 1)
			go func() {
				done <- srv.Serve(ln)
			}()
		}

		It("serves requests", func() {
			start(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("true"))
			}))
			DeferCleanup(func() { _ = srv.Shutdown(context.Background()) })

			resp, err := http.Get("http://" + ln.Addr().String())
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(Equal("true"))
		})

		It("shuts down gracefully and runs shutdown hooks", func() {
			start(noop)

			var hooked atomic.Bool
			srv.OnShutdown(func() { hooked.Store(true) })

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			Expect(srv.Shutdown(ctx)).To(Succeed())

			Eventually(done).Should(Receive(BeNil()))
			Eventually(hooked.Load).Should(BeTrue())
		})
	})
})
