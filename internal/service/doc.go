// Package service defines the runtime record of a monitored endpoint.
//
// A Record carries the definition fields (name, address, check kind, trust
// mode) together with an explicit reachability State. The human readable Live
// text is always derived from the State, never parsed back into it.
//
// CheckTime follows the up-since convention: while a service is up it holds
// the moment of the most recent transition into the up state, and while it is
// down or untested it holds Sentinel. IsUp is defined on CheckTime alone so
// the two views can never disagree.
package service
