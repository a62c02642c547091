package checker

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/angeloszaimis/uptime-tracker/internal/httppool"
	"github.com/angeloszaimis/uptime-tracker/internal/service"
)

// Prober performs a single HTTP reachability probe. *httppool.Pool implements it.
type Prober interface {
	Probe(ctx context.Context, address string, trustAny bool) (int, error)
}

type HTTPChecker struct {
	prober Prober
}

func NewHTTP(prober Prober) *HTTPChecker {
	return &HTTPChecker{prober: prober}
}

// Check probes up to Attempts times and stops at the first 200. Otherwise a
// real server response wins over a client side failure.
func (c *HTTPChecker) Check(ctx context.Context, rec service.Record, now time.Time) service.Record {
	var (
		serverErr *service.Record
		clientErr = rec.MarkDown(service.CauseNoResponse, "", "")
	)

	for i := 0; i < Attempts; i++ {
		if ctx.Err() != nil {
			break
		}

		code, err := c.prober.Probe(ctx, rec.Address, rec.TrustCert)
		if err != nil {
			clientErr = rec.MarkDown(service.CauseException, "", err.Error())
			continue
		}

		switch code {
		case http.StatusOK:
			return rec.MarkUp(statusDetail(code), now)
		case httppool.OutcomeTLS:
			clientErr = rec.MarkDown(service.CauseTLS, "", "")
		case httppool.OutcomeRefused:
			clientErr = rec.MarkDown(service.CauseRefused, "", "")
		case httppool.OutcomeDNS:
			clientErr = rec.MarkDown(service.CauseDNS, "", "")
		case httppool.OutcomeNoResponse:
			clientErr = rec.MarkDown(service.CauseNoResponse, "", "")
		default:
			down := rec.MarkDown(service.CauseServer, statusDetail(code), "")
			serverErr = &down
		}
	}

	if serverErr != nil {
		return *serverErr
	}
	return clientErr
}

// statusDetail renders a status code as "Service Unavailable:503".
func statusDetail(code int) string {
	text := http.StatusText(code)
	if text == "" {
		text = "Status"
	}
	return text + ":" + strconv.Itoa(code)
}
