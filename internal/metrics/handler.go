package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/angeloszaimis/uptime-tracker/internal/httppool"
)

// PoolStatter reports checker pool sizes. *httppool.Pool implements it.
type PoolStatter interface {
	Stats() httppool.Stats
}

// Handler serves the current snapshot. pool may be nil.
func (c *Collector) Handler(pool PoolStatter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := c.Snapshot()
		if pool != nil {
			stats := pool.Stats()
			snap.Pool = &stats
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
