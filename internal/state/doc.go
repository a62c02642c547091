// Package state holds the ordered in-memory collection of service records.
//
// The tracking loop is the only writer: it replaces the whole collection on
// reload and updates single slots after each cycle. Readers only ever receive
// copies. An empty store means the first reload has not completed yet, and
// readers are told to retry with ErrNotReady.
package state
