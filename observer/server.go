// Package observer streams area frames to websocket clients. Each tick it
// drains the redraw queue, snapshots the redrawn areas and broadcasts them.
package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nathoo/tilecore/engine/area"
	"github.com/nathoo/tilecore/types"
)

// Message types.
const (
	TypeHello = "HELLO"
	TypeFrame = "FRAME"
)

const (
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
)

// Source is what the server renders. *engine.Engine satisfies it.
type Source interface {
	Frame() []*area.Area
	Loaded() []*area.Area
}

// Message is one JSON message sent to a client.
type Message struct {
	Type     string             `json:"type"`
	ClientID string             `json:"client_id,omitempty"`
	Seq      uint64             `json:"seq"`
	Areas    []*types.AreaState `json:"areas"`
}

type client struct {
	id   string
	send chan []byte
}

// Server fans frames out to connected clients.
type Server struct {
	src    Source
	logger *slog.Logger

	upgrader websocket.Upgrader
	seq      atomic.Uint64

	mu      sync.Mutex
	clients map[string]*client
}

// NewServer returns a server rendering src.
func NewServer(src Source, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		src:    src,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: map[string]*client{},
	}
}

// Handler serves /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"status": "ok", "clients": s.Clients()})
	})
	return mux
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Tick drains one frame and broadcasts it. It returns the number of
// areas sent; zero means nothing was redrawn.
func (s *Server) Tick(ctx context.Context) (int, error) {
	redrawn := s.src.Frame()
	if len(redrawn) == 0 {
		return 0, nil
	}
	// Drain marked them clean; an area we could not copy goes back on the
	// queue so the next tick paints it.
	states, snapErr := snapshots(ctx, redrawn, true)
	if len(states) == 0 {
		return 0, snapErr
	}
	msg := Message{Type: TypeFrame, Seq: s.seq.Add(1), Areas: states}
	b, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}
	s.broadcast(b)
	return len(states), snapErr
}

// Run ticks every interval until ctx is done.
func (s *Server) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Warn("observer frame failed", "error", err)
			}
		}
	}
}

// ListenAndServe serves the handler on addr and ticks until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string, interval time.Duration) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	go func() { _ = s.Run(ctx, interval) }()
	s.logger.Info("observer listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) broadcast(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		select {
		case c.send <- b:
		default:
			s.logger.Warn("observer client too slow, frame dropped", "client", c.id)
		}
	}
}

func (s *Server) serveWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &client{id: uuid.NewString(), send: make(chan []byte, sendBuffer)}
	log := s.logger.With("client", c.id)

	// The hello carries every loaded area so the client starts complete.
	states, err := snapshots(r.Context(), s.src.Loaded(), false)
	if err != nil {
		log.Warn("observer hello failed", "error", err)
		return
	}
	hello, err := json.Marshal(Message{Type: TypeHello, ClientID: c.id, Seq: s.seq.Load(), Areas: states})
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		return
	}

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	log.Info("observer connected")
	defer func() {
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()
		log.Info("observer disconnected")
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writeErr := make(chan error, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				writeErr <- ctx.Err()
				return
			case b := <-c.send:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
		}
	}()

	// Clients only talk to keep the connection alive.
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	select {
	case <-writeErr:
	case <-time.After(500 * time.Millisecond):
	}
}

// snapshots copies every area it can. With requeue set, an area that
// fails is asked to redraw again.
func snapshots(ctx context.Context, areas []*area.Area, requeue bool) ([]*types.AreaState, error) {
	out := make([]*types.AreaState, 0, len(areas))
	var errs []error
	for _, a := range areas {
		st, err := a.Snapshot(ctx)
		if err != nil {
			if requeue {
				a.RequestRedraw()
			}
			errs = append(errs, fmt.Errorf("snapshot %s: %w", a.Path(), err))
			continue
		}
		out = append(out, st)
	}
	return out, errors.Join(errs...)
}
