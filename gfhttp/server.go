// Package gfhttp serves and queries a flood node's debug endpoints:
// status, statistics, and statistics reset.
package gfhttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gordian-engine/gflood"
)

// Engine is the flood surface the server reports on. Implementations must
// be safe for concurrent use; a gfemu.Node is, a bare gflood.Engine is not.
type Engine interface {
	IsActive() bool
	RxCount() uint8
	TxCount() uint8
	Stats() gflood.Stats
	ResetStats()
}

// Config configures a Server.
type Config struct {
	// Listener is the listener to serve on, TCP or unix socket. The
	// server owns it.
	Listener net.Listener

	// Engine is the node being reported on.
	Engine Engine

	// NodeID is stamped into status responses.
	NodeID gflood.NodeID
}

// Server serves the debug API until its context is canceled.
type Server struct {
	done chan struct{}
}

// NewServer starts serving immediately.
func NewServer(ctx context.Context, log *slog.Logger, cfg Config) *Server {
	srv := &http.Server{
		Handler: newMux(log, cfg),

		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	s := &Server{
		done: make(chan struct{}),
	}
	go s.serve(log, cfg.Listener, srv)
	go s.waitForShutdown(ctx, srv)

	return s
}

// Wait blocks until the server has shut down.
func (s *Server) Wait() {
	<-s.done
}

func (s *Server) waitForShutdown(ctx context.Context, srv *http.Server) {
	select {
	case <-s.done:
		// s.serve returned on its own, nothing left to do here.
		return
	case <-ctx.Done():
		_ = srv.Close()
	}
}

func (s *Server) serve(log *slog.Logger, ln net.Listener, srv *http.Server) {
	defer close(s.done)

	if err := srv.Serve(ln); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, http.ErrServerClosed) {
			log.Info("HTTP server shutting down")
		} else {
			log.Info("HTTP server shutting down due to error", "err", err)
		}
	}
}

func newMux(log *slog.Logger, cfg Config) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/status", handleStatus(log, cfg)).Methods("GET")
	r.HandleFunc("/stats", handleStats(log, cfg)).Methods("GET")
	r.HandleFunc("/stats/reset", handleStatsReset(cfg)).Methods("POST")

	return r
}

// Status is the GET /status response body.
type Status struct {
	NodeID  gflood.NodeID `json:"node_id"`
	Active  bool          `json:"active"`
	RxCount uint8         `json:"rx_count"`
	TxCount uint8         `json:"tx_count"`
}

func handleStatus(log *slog.Logger, cfg Config) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		st := Status{
			NodeID:  cfg.NodeID,
			Active:  cfg.Engine.IsActive(),
			RxCount: cfg.Engine.RxCount(),
			TxCount: cfg.Engine.TxCount(),
		}

		if err := json.NewEncoder(w).Encode(st); err != nil {
			log.Warn("Failed to marshal status", "err", err)
			return
		}
	}
}

func handleStats(log *slog.Logger, cfg Config) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := json.NewEncoder(w).Encode(cfg.Engine.Stats()); err != nil {
			log.Warn("Failed to marshal stats", "err", err)
			return
		}
	}
}

func handleStatsReset(cfg Config) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		cfg.Engine.ResetStats()
		w.WriteHeader(http.StatusNoContent)
	}
}
