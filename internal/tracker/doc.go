// Package tracker runs the check cycle.
//
// A Tracker is single-flight: Start and Run acquire a compare-and-swap guard
// and return immediately when another loop already holds it. Each cycle
//
//  1. reloads definitions into the state store when a reload was signalled,
//  2. runs one check per tracked record concurrently and waits for all,
//  3. commits the results slot by slot,
//  4. emits a notification for every up/down edge,
//  5. sleeps until the next 30 second wall-clock boundary.
//
// A failed reload leaves the store untouched and keeps the reload flag set so
// the next cycle retries. Panics inside a cycle are logged and the loop goes
// on, except for *checker.UnknownKindError, which is a broken invariant and
// is re-raised.
package tracker
