// Package checker implements one reachability check per service kind and the
// dispatcher that routes a record to the right one.
//
// Every checker takes a record and the cycle timestamp and returns the
// updated record. Reachability failures are data: they come back as a down
// record with a Cause, never as an error. The only fatal condition is a
// record whose kind has no checker, which the Dispatcher reports by panicking
// with *UnknownKindError.
//
// HTTP checks go through an httppool.Pool. TCP checks dial the address. PING
// checks send ICMP echo requests. SSL checks are not implemented and always
// report down.
package checker
