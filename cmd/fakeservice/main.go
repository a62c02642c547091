// Fakeservice is a target for exercising the uptime tracker by hand.
// It serves /health (always 200), /flaky (alternating 200 and 503) and
// accepts TCP connections on a second port.
//
// Usage:
//
//	go run ./cmd/fakeservice -port 8081 -tcp-port 9091
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"

	"github.com/angeloszaimis/uptime-tracker/internal/httpserver"
	"github.com/angeloszaimis/uptime-tracker/pkg/logger"
)

func main() {
	port := flag.Int("port", 8081, "HTTP port to listen on")
	tcpPort := flag.Int("tcp-port", 9091, "TCP port to accept connections on")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	log := logger.New(*level, false, "dev")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", *tcpPort))
	if err != nil {
		log.Error("Failed to listen for TCP", slog.Any("err", err))
		os.Exit(1)
	}
	go acceptLoop(ctx, ln, log)

	srv, err := httpserver.New(fmt.Sprintf(":%d", *port), newMux(log))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	log.Info("Fake service listening", slog.Int("port", *port), slog.Int("tcp_port", *tcpPort))
	if err := srv.Start(); err != nil {
		log.Error("Server failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func newMux(log *slog.Logger) *http.ServeMux {
	var flaky atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		log.Debug("Health probe", slog.String("request", id), slog.String("method", r.Method))
		w.Header().Set("X-Request-Id", id)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if flaky.Add(1)%2 == 0 {
			http.Error(w, "flaking", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

// acceptLoop accepts and immediately closes connections until ctx is done.
func acceptLoop(ctx context.Context, ln net.Listener, log *slog.Logger) {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Warn("TCP accept failed", slog.Any("err", err))
			}
			return
		}
		log.Debug("TCP connection", slog.String("from", conn.RemoteAddr().String()))
		_ = conn.Close()
	}
}
