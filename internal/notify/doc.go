// Package notify turns up/down transitions into alert messages.
//
// The Emitter is edge triggered: it fires only when a service's up predicate
// flips between two tested states. Delivery is best effort; sink failures
// are logged and dropped.
package notify
