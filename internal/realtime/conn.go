package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ride-hail-mobile/internal/auth"
	"ride-hail-mobile/internal/common/log"
	"ride-hail-mobile/internal/contracts"
)

var (
	ErrNotConnected = errors.New("realtime: not connected")
	ErrAckTimeout   = errors.New("realtime: ack timed out")
	ErrClosed       = errors.New("realtime: manager closed")
)

// Status is the connection lifecycle state.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	default:
		return "DISCONNECTED"
	}
}

// Handler receives the data payload of one inbound event. Handlers run on a
// single dispatch goroutine and execute to completion before the next event.
type Handler func(data json.RawMessage)

// Options configure a Manager.
type Options struct {
	URL            string // full websocket URL including the realtime path
	ConnectTimeout time.Duration
	BackoffInitial time.Duration
	BackoffCap     time.Duration
	AckTimeout     time.Duration
	Logger         *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.BackoffInitial == 0 {
		o.BackoffInitial = 800 * time.Millisecond
	}
	if o.BackoffCap == 0 {
		o.BackoffCap = 7 * time.Second
	}
	if o.AckTimeout == 0 {
		o.AckTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

type ackResult struct {
	data json.RawMessage
	err  error
}

type handlerEntry struct {
	id uint64
	fn Handler
}

const wsWriteTimeout = 5 * time.Second

// Manager owns the single websocket to the realtime gateway: dialing,
// infinite capped-backoff reconnects, the identity handshake, and event
// dispatch. Everything above it (rooms, chat) shares one Manager.
type Manager struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	identity auth.Identity
	status   Status
	conn     *websocket.Conn
	started  bool

	writeMu sync.Mutex

	ackMu   sync.Mutex
	ackSeq  uint64
	pending map[uint64]chan ackResult

	handlerMu       sync.Mutex
	handlerSeq      uint64
	handlers        map[string][]handlerEntry
	connectHooks    []func()
	disconnectHooks []func()

	connCh chan struct{} // closed while a connection is up, swapped on loss

	dispatch  chan func()
	closeOnce sync.Once
	closed    chan struct{}
}

var (
	sharedMu sync.Mutex
	shared   *Manager
)

// InitShared constructs the process-wide Manager on first call and returns it.
// Later calls ignore opts and return the existing instance.
func InitShared(opts Options) *Manager {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		shared = New(opts)
	}
	return shared
}

// Shared returns the process-wide Manager, or nil if InitShared was never
// called. Callers must treat nil as "connect first".
func Shared() *Manager {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	return shared
}

// New constructs an unconnected Manager. Tests build isolated instances here
// instead of going through the shared accessor.
func New(opts Options) *Manager {
	opts.applyDefaults()
	return &Manager{
		opts:     opts,
		logger:   opts.Logger,
		pending:  make(map[uint64]chan ackResult),
		handlers: make(map[string][]handlerEntry),
		connCh:   make(chan struct{}),
		dispatch: make(chan func(), 256),
		closed:   make(chan struct{}),
	}
}

// Connect idempotently ensures the connection loop is running and the given
// identity is in effect. Calling it again never opens a second socket: a
// changed identity is re-announced on the live connection instead.
func (m *Manager) Connect(identity auth.Identity) {
	m.mu.Lock()
	changed := m.identity != identity
	m.identity = identity
	if !m.started {
		m.started = true
		m.mu.Unlock()
		go m.dispatchLoop()
		go m.run()
		return
	}
	connected := m.conn != nil
	m.mu.Unlock()

	if changed && connected {
		m.sendWhoami()
	}
}

// Status returns the current lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// IsConnected reports whether a live socket exists right now.
func (m *Manager) IsConnected() bool {
	return m.Status() == StatusConnected
}

// WaitConnected blocks until a connection is up, ctx expires, or the Manager
// is closed. Callers that must emit right after Connect use this instead of
// treating the transient disconnected state as an error.
func (m *Manager) WaitConnected(ctx context.Context) error {
	for {
		m.mu.Lock()
		if m.conn != nil {
			m.mu.Unlock()
			return nil
		}
		ch := m.connCh
		m.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		case <-m.closed:
			return ErrClosed
		}
	}
}

// Close stops the connection loop and tears down the socket. The Manager
// cannot be reused afterwards.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.closed)
	})
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.status = StatusDisconnected
	m.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	m.failPending(ErrClosed)
}

// On registers a handler for a named inbound event and returns its
// unsubscribe func.
func (m *Manager) On(event string, fn Handler) func() {
	m.handlerMu.Lock()
	m.handlerSeq++
	id := m.handlerSeq
	m.handlers[event] = append(m.handlers[event], handlerEntry{id: id, fn: fn})
	m.handlerMu.Unlock()

	return func() {
		m.handlerMu.Lock()
		defer m.handlerMu.Unlock()
		entries := m.handlers[event]
		for i, e := range entries {
			if e.id == id {
				m.handlers[event] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// OnConnect registers a hook run (on the dispatch goroutine) after every
// successful connect, including reconnects.
func (m *Manager) OnConnect(fn func()) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.connectHooks = append(m.connectHooks, fn)
}

// OnDisconnect registers a hook run after every connection loss.
func (m *Manager) OnDisconnect(fn func()) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.disconnectHooks = append(m.disconnectHooks, fn)
}

// Emit sends a fire-and-forget event. Returns ErrNotConnected while the
// socket is down; callers decide whether that matters.
func (m *Manager) Emit(event string, data any) error {
	frame, err := contracts.NewFrame(event, 0, data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	return m.writeFrame(frame)
}

// EmitWithAck sends an event carrying an ack id and waits for the gateway's
// acknowledgement. The pending slot is always released, so unanswered acks
// never leak.
func (m *Manager) EmitWithAck(ctx context.Context, event string, data any) (json.RawMessage, error) {
	m.ackMu.Lock()
	m.ackSeq++
	id := m.ackSeq
	ch := make(chan ackResult, 1)
	m.pending[id] = ch
	m.ackMu.Unlock()

	defer func() {
		m.ackMu.Lock()
		delete(m.pending, id)
		m.ackMu.Unlock()
	}()

	frame, err := contracts.NewFrame(event, id, data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	if err := m.writeFrame(frame); err != nil {
		return nil, err
	}

	timer := time.NewTimer(m.opts.AckTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s", ErrAckTimeout, event)
	case <-m.closed:
		return nil, ErrClosed
	}
}

// --- internals ---

// run is the connection loop: dial, hand the socket to the read loop, and on
// loss retry forever with capped backoff. Exactly one run loop exists per
// Manager, so there is never more than one socket.
func (m *Manager) run() {
	ctx := context.Background()
	backoff := m.opts.BackoffInitial

	for {
		select {
		case <-m.closed:
			return
		default:
		}

		m.setStatus(StatusConnecting)
		dialer := websocket.Dialer{HandshakeTimeout: m.opts.ConnectTimeout}
		conn, _, err := dialer.Dial(m.opts.URL, nil)
		if err != nil {
			m.setStatus(StatusDisconnected)
			log.Debug(ctx, m.logger, "ws_dial_failed", fmt.Sprintf("Dial %s failed, retrying in %s: %v", m.opts.URL, backoff, err))
			select {
			case <-m.closed:
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, m.opts.BackoffCap)
			continue
		}
		backoff = m.opts.BackoffInitial

		m.mu.Lock()
		m.conn = conn
		m.status = StatusConnected
		close(m.connCh)
		m.mu.Unlock()

		log.Info(ctx, m.logger, "ws_connected", "Realtime connection established")
		m.sendWhoami()
		m.enqueue(m.runConnectHooks)

		m.readLoop(conn)

		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
			m.status = StatusDisconnected
			m.connCh = make(chan struct{})
		}
		m.mu.Unlock()
		_ = conn.Close()

		m.failPending(ErrNotConnected)
		m.enqueue(m.runDisconnectHooks)
		log.Info(ctx, m.logger, "ws_disconnected", "Realtime connection lost")
	}
}

// readLoop reads frames until the socket dies. Acks are delivered straight to
// their waiter; named events are queued for the serialized dispatch loop.
func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame contracts.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Debug(context.Background(), m.logger, "ws_bad_frame", "Dropping undecodable frame: "+err.Error())
			continue
		}

		if frame.Event == contracts.EventAck {
			m.deliverAck(frame.AckID, frame.Data)
			continue
		}
		m.dispatchEvent(frame.Event, frame.Data)
	}
}

func (m *Manager) dispatchEvent(event string, data json.RawMessage) {
	m.handlerMu.Lock()
	entries := make([]handlerEntry, len(m.handlers[event]))
	copy(entries, m.handlers[event])
	m.handlerMu.Unlock()

	if len(entries) == 0 {
		return
	}
	m.enqueue(func() {
		for _, e := range entries {
			e.fn(data)
		}
	})
}

func (m *Manager) deliverAck(id uint64, data json.RawMessage) {
	m.ackMu.Lock()
	ch, ok := m.pending[id]
	delete(m.pending, id)
	m.ackMu.Unlock()
	if ok {
		ch <- ackResult{data: data}
	}
}

func (m *Manager) failPending(err error) {
	m.ackMu.Lock()
	for id, ch := range m.pending {
		ch <- ackResult{err: err}
		delete(m.pending, id)
	}
	m.ackMu.Unlock()
}

func (m *Manager) enqueue(fn func()) {
	select {
	case m.dispatch <- fn:
	case <-m.closed:
	}
}

// dispatchLoop runs queued handlers one at a time. A panicking handler is
// logged and swallowed; one malformed payload must not take the client down.
func (m *Manager) dispatchLoop() {
	for {
		select {
		case <-m.closed:
			return
		case fn := <-m.dispatch:
			m.safeRun(fn)
		}
	}
}

func (m *Manager) safeRun(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(context.Background(), m.logger, "handler_panic", "Event handler panicked", fmt.Errorf("%v", r))
		}
	}()
	fn()
}

func (m *Manager) runConnectHooks() {
	m.handlerMu.Lock()
	hooks := make([]func(), len(m.connectHooks))
	copy(hooks, m.connectHooks)
	m.handlerMu.Unlock()
	for _, h := range hooks {
		h()
	}
}

func (m *Manager) runDisconnectHooks() {
	m.handlerMu.Lock()
	hooks := make([]func(), len(m.disconnectHooks))
	copy(hooks, m.disconnectHooks)
	m.handlerMu.Unlock()
	for _, h := range hooks {
		h()
	}
}

func (m *Manager) sendWhoami() {
	m.mu.Lock()
	identity := m.identity
	m.mu.Unlock()
	if identity.UserID == "" {
		return
	}

	role := strings.ToLower(identity.Role.String())
	if err := m.Emit(contracts.EventWhoami, contracts.WhoamiPayload(role, identity.UserID)); err != nil {
		log.Debug(context.Background(), m.logger, "whoami_failed", "Identity handshake not sent: "+err.Error())
	}
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// writeFrame serializes writes; gorilla allows only one concurrent writer.
func (m *Manager) writeFrame(frame contracts.Frame) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(frame)
}
