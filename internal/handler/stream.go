package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"

	"github.com/angeloszaimis/uptime-tracker/internal/service"
)

const (
	streamWriteTimeout = 5 * time.Second
	streamPongWait     = 60 * time.Second
	streamPingPeriod   = streamPongWait * 9 / 10
	streamBuffer       = 4
)

// Snapshotter returns the committed records without waiting.
type Snapshotter interface {
	Snapshot() ([]service.Record, error)
}

// Hub fans committed cycles out to websocket subscribers.
type Hub struct {
	logger   *slog.Logger
	states   Snapshotter
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*subscriber
}

type subscriber struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func NewHub(logger *slog.Logger, states Snapshotter) *Hub {
	return &Hub{
		logger: logger,
		states: states,
		upgrader: websocket.Upgrader{
			CheckOrigin: sameOrigin,
		},
		clients: make(map[string]*subscriber),
	}
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Clients reports the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request, sends the current snapshot and then one
// message per Broadcast until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sub := &subscriber{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, streamBuffer),
	}

	if records, err := h.states.Snapshot(); err == nil {
		if payload, err := easyjson.Marshal(service.SortedViews(records)); err == nil {
			sub.send <- payload
		}
	}

	h.mu.Lock()
	h.clients[sub.id] = sub
	h.mu.Unlock()

	h.logger.Debug("Stream subscriber connected",
		slog.String("subscriber", sub.id),
		slog.String("from", extractClientIP(r)))

	go h.writeLoop(sub)
	h.readLoop(sub)
}

// Broadcast sends records to every subscriber. A subscriber that cannot keep
// up is disconnected.
func (h *Hub) Broadcast(records []service.Record) {
	payload, err := easyjson.Marshal(service.SortedViews(records))
	if err != nil {
		h.logger.Error("Failed to encode stream payload", slog.Any("err", err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.clients {
		select {
		case sub.send <- payload:
		default:
			h.logger.Warn("Dropping slow stream subscriber", slog.String("subscriber", id))
			delete(h.clients, id)
			sub.close()
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.clients {
		delete(h.clients, id)
		sub.close()
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.clients[sub.id]; ok {
		delete(h.clients, sub.id)
		sub.close()
	}
	h.mu.Unlock()

	h.logger.Debug("Stream subscriber disconnected", slog.String("subscriber", sub.id))
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.send)
	})
}

func (h *Hub) readLoop(sub *subscriber) {
	defer h.remove(sub)

	sub.conn.SetReadLimit(512)
	_ = sub.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
