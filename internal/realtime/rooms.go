package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"ride-hail-mobile/internal/common/contextx"
	"ride-hail-mobile/internal/common/log"
	"ride-hail-mobile/internal/contracts"
)

// RoomKind identifies a server-side broadcast group type.
type RoomKind int

const (
	KindRide RoomKind = iota
	KindOrder
)

func (k RoomKind) String() string {
	if k == KindOrder {
		return "order"
	}
	return "ride"
}

func (k RoomKind) joinEvent() string {
	if k == KindOrder {
		return contracts.EventJoinOrder
	}
	return contracts.EventJoinRide
}

func (k RoomKind) leaveEvent() string {
	if k == KindOrder {
		return contracts.EventLeaveOrder
	}
	return contracts.EventLeaveRide
}

func (k RoomKind) payload(id string) contracts.RoomPayload {
	if k == KindOrder {
		return contracts.RoomPayload{OrderID: id}
	}
	return contracts.RoomPayload{RideID: id}
}

// membership tracks the last requested id per kind. Requesting a new id
// supersedes the previous one; there is never more than one active room per
// kind.
type membership struct {
	desired string
	joined  bool
	pending bool // join emitted, ack not yet seen
}

// Registry makes room membership durable across reconnects: it remembers the
// desired id per kind and replays un-acked joins after every connect, while
// the joined flags are dropped on every disconnect because no server-side
// room state survives one.
type Registry struct {
	mgr    *Manager
	logger *slog.Logger

	mu    sync.Mutex
	rooms map[RoomKind]*membership
}

// NewRegistry builds a Registry bound to mgr. The connect/disconnect hooks
// are registered here exactly once, not per join call.
func NewRegistry(mgr *Manager, logger *slog.Logger) *Registry {
	r := &Registry{
		mgr:    mgr,
		logger: logger,
		rooms: map[RoomKind]*membership{
			KindRide:  {},
			KindOrder: {},
		},
	}
	mgr.OnConnect(r.replayJoins)
	mgr.OnDisconnect(r.forgetJoined)
	return r
}

// JoinRoom records id as the desired membership for kind and emits the join
// if the connection is live. A repeat call for an id that is already joined
// (or has a join in flight) is a no-op; a different id supersedes the old one.
func (r *Registry) JoinRoom(kind RoomKind, id string) {
	if id == "" {
		return
	}

	r.mu.Lock()
	m := r.rooms[kind]
	if m.desired == id && (m.joined || m.pending) {
		r.mu.Unlock()
		return
	}
	m.desired = id
	m.joined = false
	m.pending = false
	connected := r.mgr.IsConnected()
	if connected {
		m.pending = true
	}
	r.mu.Unlock()

	if connected {
		go r.emitJoin(kind, id)
	}
}

// LeaveRoom clears the desired id for kind, but only if it still matches, and
// tells the gateway if the connection is live.
func (r *Registry) LeaveRoom(kind RoomKind, id string) {
	r.mu.Lock()
	m := r.rooms[kind]
	if m.desired != id {
		r.mu.Unlock()
		return
	}
	m.desired = ""
	m.joined = false
	m.pending = false
	r.mu.Unlock()

	if err := r.mgr.Emit(kind.leaveEvent(), kind.payload(id)); err != nil {
		log.Debug(context.Background(), r.logger, "room_leave_skipped",
			"Leave for "+kind.String()+" "+id+" not sent: "+err.Error())
	}
}

// Joined reports whether the given room is currently acknowledged as joined.
func (r *Registry) Joined(kind RoomKind, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.rooms[kind]
	return m.desired == id && m.joined
}

// emitJoin performs the acknowledged join. It runs off the dispatch goroutine
// so waiting for the ack never stalls inbound event handling.
func (r *Registry) emitJoin(kind RoomKind, id string) {
	ctx := context.Background()

	raw, err := r.mgr.EmitWithAck(ctx, kind.joinEvent(), kind.payload(id))

	r.mu.Lock()
	m := r.rooms[kind]
	if m.desired != id {
		// superseded or left while the join was in flight
		r.mu.Unlock()
		return
	}
	m.pending = false
	if err == nil {
		var ack contracts.RoomAck
		if jsonErr := json.Unmarshal(raw, &ack); jsonErr == nil && ack.Joined() {
			m.joined = true
		}
	}
	joined := m.joined
	r.mu.Unlock()

	if err != nil {
		// the next connect hook replays the join, no caller involvement needed
		log.Debug(ctx, r.logger, "room_join_unacked", "Join for "+kind.String()+" "+id+" not acknowledged: "+err.Error())
		return
	}
	if joined {
		if kind == KindRide {
			ctx = contextx.WithRideID(ctx, id)
		}
		log.Info(ctx, r.logger, "room_joined", "Joined "+kind.String()+" room "+id)
	}
}

// replayJoins re-emits the join for every kind with a desired id that is not
// currently joined. Runs on every connect, including the first.
func (r *Registry) replayJoins() {
	type pendingJoin struct {
		kind RoomKind
		id   string
	}
	var joins []pendingJoin

	r.mu.Lock()
	for kind, m := range r.rooms {
		if m.desired != "" && !m.joined && !m.pending {
			m.pending = true
			joins = append(joins, pendingJoin{kind: kind, id: m.desired})
		}
	}
	r.mu.Unlock()

	for _, j := range joins {
		go r.emitJoin(j.kind, j.id)
	}
}

// forgetJoined drops the joined and pending flags but keeps the desired ids,
// so the next connect triggers fresh joins.
func (r *Registry) forgetJoined() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rooms {
		m.joined = false
		m.pending = false
	}
}

