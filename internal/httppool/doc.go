// Package httppool performs HTTP reachability probes over a growable set of
// reusable clients.
//
// Each pooled client runs at most one probe at a time. Readiness is a flag
// guarded by a per-client mutex that is held only while the flag flips, never
// across the network call. When every client of the requested trust mode is
// busy a new one is built, used and appended, so the pool grows to the peak
// concurrent demand and never shrinks.
//
// Two pools are kept: one that accepts any server certificate and one that
// validates certificates. A probe never crosses pools.
//
// Usage:
//
//	pool := httppool.New(2 * time.Second)
//	code, err := pool.Probe(ctx, "https://example.com/health", false)
//	switch {
//	case err != nil:
//	    // unclassified failure
//	case code == httppool.OutcomeDNS:
//	    // name did not resolve
//	}
package httppool
