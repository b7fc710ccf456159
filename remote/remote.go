// Package remote accepts pointer streams over WebSocket and feeds them to
// the engine as an input source, so a browser or another process can stir
// the fluid alongside local pointers.
package remote

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/splash/input"
)

// Remote pointer ids are offset per connection so they never collide with
// the mouse, local touches or each other.
const (
	idBase   = 1 << 20
	idStride = 1 << 10
)

// Message is one pointer event from a client. Coordinates are fractions
// of the surface with origin top-left.
type Message struct {
	Type string  `json:"type"` // press, move or release
	ID   int     `json:"id"`   // Client-local pointer id in [0, 1024)
	X    float32 `json:"x"`
	Y    float32 `json:"y"`
}

// Sizer reports the logical surface size events are scaled to.
type Sizer interface {
	Size() (int, int)
}

// Server is an http.Handler that upgrades to WebSocket and turns client
// messages into input events. It implements input.Source.
type Server struct {
	size     Sizer
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	subs     map[int]func(input.Event)
	nextSub  int
	conns    map[*websocket.Conn]struct{}
	nextConn int
}

// NewServer creates a server scaling events to size.
func NewServer(size Sizer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		size:   size,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs:  make(map[int]func(input.Event)),
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Subscribe registers fn for every event received from any client.
func (s *Server) Subscribe(fn func(input.Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Clients returns the number of open connections.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) emit(ev input.Event) {
	s.mu.Lock()
	fns := make([]func(input.Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// ServeHTTP handles one client for the lifetime of its connection.
// Pointers still down when the client goes away are released.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.mu.Lock()
	base := idBase + s.nextConn*idStride
	s.nextConn++
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	s.logger.Info("remote client connected", "addr", r.RemoteAddr)

	down := make(map[int]bool)
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.releaseAll(base, down)
		s.logger.Info("remote client disconnected", "addr", r.RemoteAddr)
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("remote read failed", "error", err)
			}
			return
		}
		ev, err := s.event(msg, base)
		if err != nil {
			s.logger.Debug("remote message ignored", "error", err)
			continue
		}
		switch ev.Type {
		case input.Press:
			down[msg.ID] = true
		case input.Release:
			delete(down, msg.ID)
		}
		s.emit(ev)
	}
}

// event converts msg to surface pixels under the connection's id range.
func (s *Server) event(msg Message, base int) (input.Event, error) {
	var typ input.EventType
	switch msg.Type {
	case "press":
		typ = input.Press
	case "move":
		typ = input.Move
	case "release":
		typ = input.Release
	default:
		return input.Event{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
	if msg.ID < 0 || msg.ID >= idStride {
		return input.Event{}, fmt.Errorf("pointer id %d out of range", msg.ID)
	}
	w, h := s.size.Size()
	return input.Event{
		Type: typ,
		ID:   base + msg.ID,
		X:    min(max(msg.X, 0), 1) * float32(w),
		Y:    min(max(msg.Y, 0), 1) * float32(h),
	}, nil
}

func (s *Server) releaseAll(base int, down map[int]bool) {
	ids := make([]int, 0, len(down))
	for id := range down {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		s.emit(input.Event{Type: input.Release, ID: base + id})
	}
}

// Close disconnects every client.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}
