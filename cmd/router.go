package main

import (
	"net/http"

	"github.com/angeloszaimis/uptime-tracker/internal/handler"
	"github.com/angeloszaimis/uptime-tracker/internal/metrics"
)

func setupRouter(api *handler.API, hub *handler.Hub, collector *metrics.Collector, pool metrics.PoolStatter) *http.ServeMux {
	mux := http.NewServeMux()

	api.Register(mux)
	mux.Handle("GET /api/servicelist/stream", hub)
	mux.HandleFunc("GET /metrics", collector.Handler(pool))

	return mux
}
