package checker_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/uptime-tracker/internal/checker"
	"github.com/angeloszaimis/uptime-tracker/internal/httppool"
	"github.com/angeloszaimis/uptime-tracker/internal/service"
)

type probeResult struct {
	code int
	err  error
}

// scriptedProber replays results in order and repeats the last one.
type scriptedProber struct {
	results []probeResult
	calls   int
}

func (p *scriptedProber) Probe(ctx context.Context, address string, trustAny bool) (int, error) {
	i := p.calls
	if i >= len(p.results) {
		i = len(p.results) - 1
	}
	p.calls++
	return p.results[i].code, p.results[i].err
}

var _ = Describe("HTTPChecker", func() {
	var (
		ctx context.Context
		rec service.Record
		now time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		rec = service.Record{Name: "web", Address: "http://web.local", Kind: service.KindHTTP}.Untested()
		now = time.Date(2024, 3, 1, 10, 0, 30, 0, time.UTC)
	})

	Context("with a scripted prober", func() {
		It("should stop at the first 200", func() {
			prober := &scriptedProber{results: []probeResult{{code: 200}}}

			got := checker.NewHTTP(prober).Check(ctx, rec, now)
			Expect(prober.calls).To(Equal(1))
			Expect(got.IsUp()).To(BeTrue())
			Expect(got.Live()).To(Equal("OK:200"))
			Expect(got.CheckTime).To(Equal(now))
		})

		It("should recover when a later attempt succeeds", func() {
			prober := &scriptedProber{results: []probeResult{
				{code: httppool.OutcomeNoResponse},
				{code: httppool.OutcomeRefused},
				{code: 200},
			}}

			got := checker.NewHTTP(prober).Check(ctx, rec, now)
			Expect(prober.calls).To(Equal(3))
			Expect(got.IsUp()).To(BeTrue())
		})

		It("should prefer a server response over later client errors", func() {
			prober := &scriptedProber{results: []probeResult{
				{code: 502},
				{code: httppool.OutcomeDNS},
				{err: errors.New("boom")},
				{code: httppool.OutcomeTLS},
			}}

			got := checker.NewHTTP(prober).Check(ctx, rec, now)
			Expect(prober.calls).To(Equal(checker.Attempts))
			Expect(got.IsUp()).To(BeFalse())
			Expect(got.State.Cause).To(Equal(service.CauseServer))
			Expect(got.Live()).To(Equal("Error:Bad Gateway:502"))
		})

		It("should keep the most recent server response", func() {
			prober := &scriptedProber{results: []probeResult{
				{code: 500}, {code: 500}, {code: 500}, {code: 503},
			}}

			got := checker.NewHTTP(prober).Check(ctx, rec, now)
			Expect(got.Live()).To(Equal("Error:Service Unavailable:503"))
		})

		DescribeTable("reports the last client side error",
			func(last probeResult, cause service.Cause, live string) {
				prober := &scriptedProber{results: []probeResult{
					{code: httppool.OutcomeNoResponse},
					last,
				}}

				got := checker.NewHTTP(prober).Check(ctx, rec, now)
				Expect(got.IsUp()).To(BeFalse())
				Expect(got.CheckTime).To(Equal(service.Sentinel))
				Expect(got.State.Cause).To(Equal(cause))
				Expect(got.Live()).To(Equal(live))
			},
			Entry("tls", probeResult{code: httppool.OutcomeTLS}, service.CauseTLS, "Error:TLS/Certificate"),
			Entry("refused", probeResult{code: httppool.OutcomeRefused}, service.CauseRefused, "Error:Connection Refused"),
			Entry("dns", probeResult{code: httppool.OutcomeDNS}, service.CauseDNS, "Error:DNS"),
			Entry("no response", probeResult{code: httppool.OutcomeNoResponse}, service.CauseNoResponse, "Error:No Response"),
			Entry("exception", probeResult{err: errors.New("unsupported protocol scheme")}, service.CauseException, "Error:Exception!"),
		)

		It("should carry exception text", func() {
			prober := &scriptedProber{results: []probeResult{{err: errors.New("unsupported protocol scheme")}}}

			got := checker.NewHTTP(prober).Check(ctx, rec, now)
			Expect(got.ErrorText).To(Equal("unsupported protocol scheme"))
		})

		It("should keep the up-since time of a service that stays up", func() {
			earlier := now.Add(-time.Hour)
			prober := &scriptedProber{results: []probeResult{{code: 200}}}

			got := checker.NewHTTP(prober).Check(ctx, rec.MarkUp("OK:200", earlier), now)
			Expect(got.CheckTime).To(Equal(earlier))
		})
	})

	Context("with a real pool", func() {
		var pool *httppool.Pool

		BeforeEach(func() {
			pool = httppool.New(time.Second)
		})

		It("should report an endpoint answering 200 as up", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			defer server.Close()
			rec.Address = server.URL

			got := checker.NewHTTP(pool).Check(ctx, rec, now)
			Expect(got.IsUp()).To(BeTrue())
			Expect(got.Live()).NotTo(ContainSubstring(service.ErrorPrefix))
		})

		It("should report the server status of an endpoint answering 503", func() {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer server.Close()
			rec.Address = server.URL

			got := checker.NewHTTP(pool).Check(ctx, rec, now)
			Expect(hits.Load()).To(BeEquivalentTo(checker.Attempts))
			Expect(got.IsUp()).To(BeFalse())
			Expect(got.State.Cause).To(Equal(service.CauseServer))
			Expect(got.Live()).To(ContainSubstring("503"))
			Expect(got.Live()).NotTo(ContainSubstring("Exception"))
		})
	})
})
