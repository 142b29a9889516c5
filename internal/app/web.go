// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/mercalli_seismo/internal/command"
	"github.com/relabs-tech/mercalli_seismo/internal/seismic"
)

//go:embed static
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local network device, no origin policy
	},
}

// EngineView is the read side of the engine.
type EngineView interface {
	Snapshot() seismic.Snapshot
	Events() []seismic.Event
}

// WSMessage is a client to server websocket message.
type WSMessage struct {
	Action string `json:"action"` // reset, calibrate, clear
}

// WSResponse is a server to client websocket message.
type WSResponse struct {
	Type    string `json:"type"` // snapshot, event, ack, error
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// WebServer serves the dashboard, the JSON API and the live websocket.
type WebServer struct {
	engine    EngineView
	bus       *command.Bus
	snapshots *Hub[seismic.Snapshot]
	events    *Hub[seismic.Event]
	log       *zap.Logger

	// CommandTimeout bounds how long POST handlers wait for the runner.
	CommandTimeout time.Duration
}

// NewWebServer wires the HTTP surface to the engine and command bus.
func NewWebServer(engine EngineView, bus *command.Bus, snapshots *Hub[seismic.Snapshot], events *Hub[seismic.Event], log *zap.Logger) *WebServer {
	return &WebServer{
		engine:         engine,
		bus:            bus,
		snapshots:      snapshots,
		events:         events,
		log:            log,
		CommandTimeout: 30 * time.Second,
	}
}

// Handler returns the route table.
func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	static, _ := fs.Sub(staticFiles, "static")
	mux.Handle("GET /", http.FileServerFS(static))
	mux.HandleFunc("GET /data", s.handleData)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("POST /reset", s.handleCommand(command.Reset))
	mux.HandleFunc("POST /calibrate", s.handleCommand(command.Recalibrate))
	mux.HandleFunc("POST /clear", s.handleCommand(command.ClearLog))
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// Run listens on addr until ctx is cancelled.
func (s *WebServer) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *WebServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Info("web server listening", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *WebServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("web: json encode error", zap.Error(err))
	}
}

func (s *WebServer) handleData(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *WebServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	events := s.engine.Events()
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		if n < len(events) {
			events = events[:n]
		}
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *WebServer) handleCommand(k command.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.CommandTimeout)
		defer cancel()
		res, err := s.bus.Submit(ctx, k, "http")
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		s.writeJSON(w, http.StatusOK, res)
	}
}

func (s *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("web: websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	snapID, snaps := s.snapshots.Subscribe()
	defer s.snapshots.Unsubscribe(snapID)
	eventID, events := s.events.Subscribe()
	defer s.events.Unsubscribe(eventID)

	replies := make(chan WSResponse, 4)
	closed := make(chan struct{})
	go s.readWS(conn, replies, closed)

	for {
		var msg WSResponse
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			msg = WSResponse{Type: "snapshot", Data: snap}
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg = WSResponse{Type: "event", Data: ev}
		case msg = <-replies:
		}
		if err := conn.WriteJSON(msg); err != nil {
			s.log.Debug("web: websocket write error", zap.Error(err))
			return
		}
	}
}

// readWS turns client actions into queued commands.
func (s *WebServer) readWS(conn *websocket.Conn, replies chan<- WSResponse, closed chan<- struct{}) {
	defer close(closed)
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		reply := WSResponse{Type: "ack", Message: msg.Action}
		if k, err := command.Parse(msg.Action); err != nil {
			reply = WSResponse{Type: "error", Message: err.Error()}
		} else if !s.bus.Post(k, "websocket") {
			reply = WSResponse{Type: "error", Message: "command queue full"}
		}
		select {
		case replies <- reply:
		default:
		}
	}
}
