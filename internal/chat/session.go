package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ride-hail-mobile/internal/auth"
	"ride-hail-mobile/internal/common/contextx"
	"ride-hail-mobile/internal/common/log"
	"ride-hail-mobile/internal/contracts"
	"ride-hail-mobile/internal/realtime"
)

// State is the session controller's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateAdopting
	StateLive         // writable conversation, this ride is current
	StateLiveReadOnly // history loaded, sends disabled
	StateUnavailable  // no ride to talk about; terminal
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "RESOLVING"
	case StateAdopting:
		return "ADOPTING"
	case StateLive:
		return "LIVE"
	case StateLiveReadOnly:
		return "LIVE_READONLY"
	case StateUnavailable:
		return "UNAVAILABLE"
	default:
		return "IDLE"
	}
}

// IdentityProvider resolves the acting user, possibly awaiting secure storage.
type IdentityProvider func(ctx context.Context) (auth.Identity, error)

// RideDirectory answers the "what is my active ride" lookup.
type RideDirectory interface {
	ActiveRide(ctx context.Context, userID string) (contracts.ActiveRide, error)
}

// NameResolver resolves a counterpart's display name by id.
type NameResolver interface {
	DisplayName(ctx context.Context, id string) (string, error)
}

// Options wire a Controller. Manager, Rooms, Transport, Identity and
// Directory are required.
type Options struct {
	Manager   *realtime.Manager
	Rooms     *realtime.Registry
	Transport *Transport
	Identity  IdentityProvider
	Directory RideDirectory
	Names     NameResolver // optional
	Logger    *slog.Logger

	HistoryLimit   int           // default 50
	TypingIdle     time.Duration // default 4s
	PendingTimeout time.Duration // default 15s; unconfirmed sends flip to failed after this

	// OnChange is invoked with a fresh Snapshot after every state mutation.
	OnChange func(Snapshot)
}

// Snapshot is the immutable view the UI renders from.
type Snapshot struct {
	State        State
	RideID       string
	IsCurrent    bool
	PeerName     string
	TypingActive bool
	Entries      []Entry
}

// Controller binds one mounted chat screen to one ride conversation: it
// resolves which ride is live, adopts it, reconciles optimistic sends against
// confirmed messages, and derives per-message delivery status. All state is
// scoped to this instance and discarded on Close.
type Controller struct {
	opts   Options
	logger *slog.Logger

	mu             sync.Mutex
	state          State
	identity       auth.Identity
	rideID         string
	isCurrent      bool
	peerID         string
	peerName       string
	messages       []contracts.ChatMessage
	lastSeenByPeer int64
	typingActive   bool
	typingTimer    *time.Timer
	pendingTimers  map[string]*time.Timer
	unsub          func()
	joinedRide     string
	closed         bool
}

// NewController validates options and returns an idle controller.
func NewController(opts Options) (*Controller, error) {
	if opts.Manager == nil || opts.Rooms == nil || opts.Transport == nil {
		return nil, fmt.Errorf("chat: manager, rooms and transport are required")
	}
	if opts.Identity == nil || opts.Directory == nil {
		return nil, fmt.Errorf("chat: identity provider and ride directory are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.TypingIdle <= 0 {
		opts.TypingIdle = 4 * time.Second
	}
	if opts.PendingTimeout <= 0 {
		opts.PendingTimeout = 15 * time.Second
	}

	return &Controller{
		opts:          opts,
		logger:        opts.Logger,
		state:         StateIdle,
		pendingTimers: make(map[string]*time.Timer),
	}, nil
}

// Start resolves identity and the active ride, then adopts a conversation.
// The ride adopted is the explicit id when given; it is writable only when it
// matches the server-reported active ride. With no usable ride the controller
// parks in StateUnavailable, which is terminal.
func (c *Controller) Start(ctx context.Context, explicitRideID string) error {
	c.setState(StateResolving)

	identity, err := c.opts.Identity(ctx)
	if err != nil {
		c.setState(StateUnavailable)
		log.Error(ctx, c.logger, "identity_resolve_failed", "Cannot resolve acting user", err)
		return fmt.Errorf("resolve identity: %w", err)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.identity = identity
	c.mu.Unlock()

	c.opts.Manager.Connect(identity)

	active, err := c.opts.Directory.ActiveRide(ctx, identity.UserID)
	if err != nil {
		// degrade: treat a failed lookup as "no active ride"
		log.Debug(ctx, c.logger, "active_ride_lookup_failed", "Active ride lookup failed: "+err.Error())
		active = contracts.ActiveRide{}
	}

	switch {
	case explicitRideID != "" && explicitRideID == active.RideID:
		return c.adopt(ctx, explicitRideID, true, active.PeerID, active.PeerName)
	case explicitRideID != "":
		// a historical thread the user navigated to explicitly
		return c.adopt(ctx, explicitRideID, false, "", "")
	case active.RideID != "":
		return c.adopt(ctx, active.RideID, true, active.PeerID, active.PeerName)
	default:
		c.setState(StateUnavailable)
		return nil
	}
}

// adopt binds the controller to rideID: room join, history load, event
// subscription, typing/read reset.
func (c *Controller) adopt(ctx context.Context, rideID string, isCurrent bool, peerID, peerName string) error {
	ctx = contextx.WithRideID(ctx, rideID)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateAdopting
	c.rideID = rideID
	c.isCurrent = isCurrent
	c.peerID = peerID
	c.peerName = peerName
	c.joinedRide = rideID
	c.mu.Unlock()
	c.notify()

	c.opts.Rooms.JoinRoom(realtime.KindRide, rideID)

	if peerName == "" && peerID != "" && c.opts.Names != nil {
		if name, err := c.opts.Names.DisplayName(ctx, peerID); err == nil {
			c.mu.Lock()
			c.peerName = name
			c.mu.Unlock()
		}
	}

	if err := c.opts.Manager.WaitConnected(ctx); err != nil {
		log.Debug(ctx, c.logger, "chat_adopt_offline", "Connection not up before history load: "+err.Error())
	}

	msgs, ok, err := c.opts.Transport.LoadHistory(ctx, 0, c.opts.HistoryLimit)
	if err != nil || !ok {
		// deliberate policy: a failed history load renders as an empty thread
		if err != nil {
			log.Debug(ctx, c.logger, "chat_history_failed", "History load failed, starting empty: "+err.Error())
		}
		msgs = nil
	}

	unsub := c.opts.Transport.Subscribe(Handlers{
		OnNewMessage: c.handleNewMessage,
		OnTyping:     c.handleTyping,
		OnRead:       c.handleRead,
	})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsub()
		return nil
	}
	c.unsub = unsub
	c.messages = msgs
	c.lastSeenByPeer = 0
	c.clearTypingLocked()
	if isCurrent {
		c.state = StateLive
	} else {
		c.state = StateLiveReadOnly
	}
	c.mu.Unlock()

	log.Info(ctx, c.logger, "chat_adopted", fmt.Sprintf("Adopted conversation with %d messages (current=%v)", len(msgs), isCurrent))
	c.markReadLatest()
	c.notify()
	return nil
}

// Send appends an optimistic message and emits it. A no-op unless the
// session is live and writable. Returns the temp id, or "" when ignored.
func (c *Controller) Send(text string) string {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	if c.closed || c.state != StateLive || !c.isCurrent || text == "" {
		c.mu.Unlock()
		return ""
	}
	tempID := fmt.Sprintf("%s%d-%s", contracts.TempIDPrefix, time.Now().UnixMilli(), uuid.NewString()[:8])
	msg := contracts.ChatMessage{
		ID:         tempID,
		Text:       text,
		SenderRole: c.identity.Role.String(),
		SenderID:   c.identity.UserID,
		Timestamp:  time.Now().UTC(),
	}
	c.messages = append(c.messages, msg)
	c.pendingTimers[tempID] = time.AfterFunc(c.opts.PendingTimeout, func() {
		c.expirePending(tempID)
	})
	c.mu.Unlock()

	// sending implies we stopped typing
	c.opts.Transport.SetTyping(false)
	c.opts.Transport.Send(text, nil, tempID)
	c.notify()
	return tempID
}

// SetTyping forwards the local user's typing state; no-op when read-only.
func (c *Controller) SetTyping(isTyping bool) {
	c.mu.Lock()
	ok := !c.closed && c.state == StateLive && c.isCurrent
	c.mu.Unlock()
	if ok {
		c.opts.Transport.SetTyping(isTyping)
	}
}

// SetReadOnly demotes a live session, e.g. after a rideCancelled event.
func (c *Controller) SetReadOnly() {
	c.mu.Lock()
	if c.closed || c.state != StateLive {
		c.mu.Unlock()
		return
	}
	c.state = StateLiveReadOnly
	c.isCurrent = false
	c.mu.Unlock()
	c.notify()
}

// Snapshot returns the current render view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:        c.state,
		RideID:       c.rideID,
		IsCurrent:    c.isCurrent,
		PeerName:     c.peerName,
		TypingActive: c.typingActive,
		Entries:      BuildEntries(c.messages, c.identity.UserID, c.lastSeenByPeer),
	}
}

// Close tears the session down: unsubscribes handlers, stops every timer,
// and leaves the ride room joined during this mount. Safe to call at any
// point, including before adoption completed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsub := c.unsub
	c.unsub = nil
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	for id, timer := range c.pendingTimers {
		timer.Stop()
		delete(c.pendingTimers, id)
	}
	joined := c.joinedRide
	c.joinedRide = ""
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if joined != "" {
		c.opts.Rooms.LeaveRoom(realtime.KindRide, joined)
	}
}

// --- inbound handlers; all run on the dispatch goroutine ---

// handleNewMessage reconciles a confirmed message: a matching temp id
// replaces the placeholder in place, anything else is appended.
func (c *Controller) handleNewMessage(msg contracts.ChatMessage, tempID string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	replaced := false
	if tempID != "" {
		for i := range c.messages {
			if c.messages[i].ID == tempID {
				c.messages[i] = msg
				replaced = true
				if timer, ok := c.pendingTimers[tempID]; ok {
					timer.Stop()
					delete(c.pendingTimers, tempID)
				}
				break
			}
		}
	}
	if !replaced {
		c.messages = append(c.messages, msg)
	}
	c.mu.Unlock()

	c.markReadLatest()
	c.notify()
}

func (c *Controller) handleTyping(ev contracts.ChatTypingEvent) {
	c.mu.Lock()
	if c.closed || !c.acceptsPeerEventLocked(ev.RideID, ev.From.Role) {
		c.mu.Unlock()
		return
	}
	if ev.IsTyping {
		c.typingActive = true
		if c.typingTimer != nil {
			c.typingTimer.Stop()
		}
		c.typingTimer = time.AfterFunc(c.opts.TypingIdle, c.expireTyping)
	} else {
		c.clearTypingLocked()
	}
	c.mu.Unlock()
	c.notify()
}

// handleRead only ever moves the counterpart's read pointer forward.
func (c *Controller) handleRead(ev contracts.ChatReadEvent) {
	c.mu.Lock()
	if c.closed || !c.acceptsPeerEventLocked(ev.RideID, ev.Reader.Role) || ev.LastSeenID <= c.lastSeenByPeer {
		c.mu.Unlock()
		return
	}
	c.lastSeenByPeer = ev.LastSeenID
	c.mu.Unlock()
	c.notify()
}

// acceptsPeerEventLocked filters inbound chat events: the ride id must match
// when the gateway includes one, and the sender must be the counterpart role.
func (c *Controller) acceptsPeerEventLocked(rideID, role string) bool {
	if c.state != StateLive && c.state != StateLiveReadOnly {
		return false
	}
	if rideID != "" && rideID != c.rideID {
		return false
	}
	return strings.EqualFold(role, c.identity.Role.Counterpart().String())
}

// --- timers ---

func (c *Controller) expireTyping() {
	c.mu.Lock()
	if c.closed || !c.typingActive {
		c.mu.Unlock()
		return
	}
	c.typingActive = false
	c.typingTimer = nil
	c.mu.Unlock()
	c.notify()
}

// expirePending flips a still-unconfirmed optimistic send to failed.
func (c *Controller) expirePending(tempID string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	delete(c.pendingTimers, tempID)
	changed := false
	for i := range c.messages {
		if c.messages[i].ID == tempID && c.messages[i].IsTemp() {
			c.messages[i].Failed = true
			changed = true
			break
		}
	}
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// --- helpers ---

// markReadLatest announces the highest server-issued id currently rendered.
// Temp placeholders are not numeric and never counted.
func (c *Controller) markReadLatest() {
	c.mu.Lock()
	var highest int64
	for _, m := range c.messages {
		if id := m.NumericID(); id > highest {
			highest = id
		}
	}
	c.mu.Unlock()
	if highest > 0 {
		c.opts.Transport.MarkRead(highest)
	}
}

func (c *Controller) clearTypingLocked() {
	c.typingActive = false
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	if c.opts.OnChange != nil {
		c.opts.OnChange(c.Snapshot())
	}
}
