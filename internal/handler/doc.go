// Package handler implements the HTTP surface of the tracker: the service list
// API, the live probe, the websocket stream of committed cycles and request logging.
package handler
