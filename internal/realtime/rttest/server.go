// Package rttest provides a scriptable fake realtime gateway for tests.
package rttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ride-hail-mobile/internal/contracts"
)

// HandlerFunc scripts the gateway's reaction to one client event. The
// returned value is sent back as the ack payload when the frame carried an
// ack id; return nil to ack with {"ok":true}, and register nothing for
// events that should stay unacknowledged.
type HandlerFunc func(frame contracts.Frame) any

// Server is a websocket gateway speaking the mobile frame protocol.
type Server struct {
	tb       testing.TB
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	writeMu  map[*websocket.Conn]*sync.Mutex
	received []contracts.Frame
	handlers map[string]HandlerFunc
}

// NewServer starts a fake gateway and arranges its shutdown via tb.Cleanup.
func NewServer(tb testing.TB) *Server {
	s := &Server{
		tb:       tb,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		writeMu:  make(map[*websocket.Conn]*sync.Mutex),
		handlers: make(map[string]HandlerFunc),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	tb.Cleanup(s.Close)
	return s
}

// URL returns the ws:// address clients dial.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// Handle scripts the reaction to a named client event.
func (s *Server) Handle(event string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = fn
}

// AckOK makes the server acknowledge the named event with {"ok":true}.
func (s *Server) AckOK(event string) {
	s.Handle(event, func(contracts.Frame) any { return nil })
}

// Push sends a named event to every live client connection.
func (s *Server) Push(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.tb.Fatalf("rttest: marshal push %s: %v", event, err)
	}
	frame := contracts.Frame{Event: event, Data: raw}

	s.mu.Lock()
	conns := append([]*websocket.Conn(nil), s.conns...)
	s.mu.Unlock()
	for _, conn := range conns {
		s.write(conn, frame)
	}
}

// Received returns a copy of every frame seen for the named event, in order.
func (s *Server) Received(event string) []contracts.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []contracts.Frame
	for _, f := range s.received {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

// CountEvent returns how many frames of the named event arrived so far.
func (s *Server) CountEvent(event string) int {
	return len(s.Received(event))
}

// WaitEvent blocks until at least n frames of the named event arrived.
func (s *Server) WaitEvent(event string, n int, timeout time.Duration) {
	s.tb.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.CountEvent(event) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.tb.Fatalf("rttest: timed out waiting for %d %q frames, got %d", n, event, s.CountEvent(event))
}

// ConnCount returns the number of live client connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// WaitConnected blocks until at least one client connection is live.
func (s *Server) WaitConnected(timeout time.Duration) {
	s.tb.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.ConnCount() > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.tb.Fatal("rttest: timed out waiting for a client connection")
}

// DropConnections closes every live client connection, simulating a network
// flap. The client is expected to reconnect on its own.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}

// Close shuts the gateway down for good.
func (s *Server) Close() {
	s.DropConnections()
	s.srv.Close()
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.writeMu[conn] = &sync.Mutex{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		for i, c := range s.conns {
			if c == conn {
				s.conns = append(s.conns[:i], s.conns[i+1:]...)
				break
			}
		}
		delete(s.writeMu, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame contracts.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		s.mu.Lock()
		s.received = append(s.received, frame)
		fn := s.handlers[frame.Event]
		s.mu.Unlock()

		if fn == nil {
			continue
		}
		ackData := fn(frame)
		if frame.AckID == 0 {
			continue
		}
		if ackData == nil {
			ackData = map[string]bool{"ok": true}
		}
		raw, err := json.Marshal(ackData)
		if err != nil {
			s.tb.Fatalf("rttest: marshal ack for %s: %v", frame.Event, err)
		}
		s.write(conn, contracts.Frame{Event: contracts.EventAck, AckID: frame.AckID, Data: raw})
	}
}

func (s *Server) write(conn *websocket.Conn, frame contracts.Frame) {
	s.mu.Lock()
	mu := s.writeMu[conn]
	s.mu.Unlock()
	if mu == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_ = conn.WriteJSON(frame)
}
