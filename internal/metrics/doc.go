// Package metrics provides real-time metrics collection for the uptime tracker.
//
// It uses a channel-based event pipeline to asynchronously collect metrics about:
//   - Check counts and failures per service
//   - Check durations with percentile calculations (P50, P95, P99)
//   - Up/down transitions per service
//   - Cycle count, size and duration
//   - Definition reload outcomes
//
// The collector runs in a dedicated goroutine and processes events without blocking
// the tracking loop. Emit never blocks; when the buffer is full the event is dropped
// and counted.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:     metrics.EventCheckCompleted,
//		Service:  "api",
//		Kind:     "HTTP",
//		Duration: 150 * time.Millisecond,
//		Up:       true,
//	})
//
//	snapshot := collector.Snapshot()
//
// The package provides thread-safe metrics storage using sync.RWMutex and supports
// graceful shutdown with event draining to prevent data loss.
package metrics
