package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ride-hail-mobile/internal/common/log"
	"ride-hail-mobile/internal/contracts"
	"ride-hail-mobile/internal/realtime/rttest"
)

func newTestRegistry(t *testing.T, srv *rttest.Server) (*Manager, *Registry) {
	t.Helper()
	m := newTestManager(t, srv.URL())
	r := NewRegistry(m, log.New("rooms-test"))
	return m, r
}

func TestJoinRoomIdempotent(t *testing.T) {
	srv := rttest.NewServer(t)
	srv.AckOK(contracts.EventJoinRide)
	m, r := newTestRegistry(t, srv)

	m.Connect(driverIdentity())
	srv.WaitConnected(2 * time.Second)

	r.JoinRoom(KindRide, "42")
	require.Eventually(t, func() bool { return r.Joined(KindRide, "42") }, 2*time.Second, 10*time.Millisecond)

	r.JoinRoom(KindRide, "42")
	time.Sleep(50 * time.Millisecond)

	require.Equal(t, 1, srv.CountEvent(contracts.EventJoinRide))
}

func TestJoinRoomDeferredUntilConnect(t *testing.T) {
	srv := rttest.NewServer(t)
	srv.AckOK(contracts.EventJoinRide)
	m, r := newTestRegistry(t, srv)

	// join requested before the connection loop ever started
	r.JoinRoom(KindRide, "7")
	require.False(t, r.Joined(KindRide, "7"))

	m.Connect(driverIdentity())
	require.Eventually(t, func() bool { return r.Joined(KindRide, "7") }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, srv.CountEvent(contracts.EventJoinRide))
}

func TestRejoinOnReconnect(t *testing.T) {
	srv := rttest.NewServer(t)
	srv.AckOK(contracts.EventJoinRide)
	m, r := newTestRegistry(t, srv)

	m.Connect(driverIdentity())
	srv.WaitConnected(2 * time.Second)

	r.JoinRoom(KindRide, "42")
	srv.WaitEvent(contracts.EventJoinRide, 1, 2*time.Second)

	srv.DropConnections()

	// joined exactly twice total: once initially, once after reconnect
	srv.WaitEvent(contracts.EventJoinRide, 2, 3*time.Second)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 2, srv.CountEvent(contracts.EventJoinRide))
	require.Eventually(t, func() bool { return r.Joined(KindRide, "42") }, 2*time.Second, 10*time.Millisecond)
}

func TestJoinNewIDSupersedesOld(t *testing.T) {
	srv := rttest.NewServer(t)
	srv.AckOK(contracts.EventJoinRide)
	m, r := newTestRegistry(t, srv)

	m.Connect(driverIdentity())
	srv.WaitConnected(2 * time.Second)

	r.JoinRoom(KindRide, "1")
	require.Eventually(t, func() bool { return r.Joined(KindRide, "1") }, 2*time.Second, 10*time.Millisecond)

	r.JoinRoom(KindRide, "2")
	require.Eventually(t, func() bool { return r.Joined(KindRide, "2") }, 2*time.Second, 10*time.Millisecond)
	require.False(t, r.Joined(KindRide, "1"))

	// only the superseding id is replayed after a flap
	srv.DropConnections()
	srv.WaitEvent(contracts.EventJoinRide, 3, 3*time.Second)
	time.Sleep(50 * time.Millisecond)

	frames := srv.Received(contracts.EventJoinRide)
	var last contracts.RoomPayload
	require.NoError(t, json.Unmarshal(frames[len(frames)-1].Data, &last))
	require.Equal(t, "2", last.RideID)
}

func TestLeaveRoomClearsDesired(t *testing.T) {
	srv := rttest.NewServer(t)
	srv.AckOK(contracts.EventJoinRide)
	m, r := newTestRegistry(t, srv)

	m.Connect(driverIdentity())
	srv.WaitConnected(2 * time.Second)

	r.JoinRoom(KindRide, "9")
	require.Eventually(t, func() bool { return r.Joined(KindRide, "9") }, 2*time.Second, 10*time.Millisecond)

	r.LeaveRoom(KindRide, "9")
	srv.WaitEvent(contracts.EventLeaveRide, 1, 2*time.Second)
	require.False(t, r.Joined(KindRide, "9"))

	// no desired id left, so nothing is replayed after a flap
	srv.DropConnections()
	srv.WaitConnected(3 * time.Second)
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, srv.CountEvent(contracts.EventJoinRide))
}

func TestLeaveRoomMismatchedIDIsNoop(t *testing.T) {
	srv := rttest.NewServer(t)
	srv.AckOK(contracts.EventJoinRide)
	m, r := newTestRegistry(t, srv)

	m.Connect(driverIdentity())
	srv.WaitConnected(2 * time.Second)

	r.JoinRoom(KindRide, "9")
	require.Eventually(t, func() bool { return r.Joined(KindRide, "9") }, 2*time.Second, 10*time.Millisecond)

	r.LeaveRoom(KindRide, "other")
	time.Sleep(50 * time.Millisecond)
	require.True(t, r.Joined(KindRide, "9"))
	require.Equal(t, 0, srv.CountEvent(contracts.EventLeaveRide))
}

func TestRideAndOrderRoomsAreIndependent(t *testing.T) {
	srv := rttest.NewServer(t)
	srv.AckOK(contracts.EventJoinRide)
	srv.AckOK(contracts.EventJoinOrder)
	m, r := newTestRegistry(t, srv)

	m.Connect(driverIdentity())
	srv.WaitConnected(2 * time.Second)

	r.JoinRoom(KindRide, "r-1")
	r.JoinRoom(KindOrder, "o-1")
	require.Eventually(t, func() bool {
		return r.Joined(KindRide, "r-1") && r.Joined(KindOrder, "o-1")
	}, 2*time.Second, 10*time.Millisecond)

	var orderPayload contracts.RoomPayload
	frames := srv.Received(contracts.EventJoinOrder)
	require.Len(t, frames, 1)
	require.NoError(t, json.Unmarshal(frames[0].Data, &orderPayload))
	require.Equal(t, "o-1", orderPayload.OrderID)
}

func TestJoinNotMarkedWithoutAck(t *testing.T) {
	srv := rttest.NewServer(t)
	// joinRide handler answers ok:false
	srv.Handle(contracts.EventJoinRide, func(contracts.Frame) any {
		return map[string]bool{"ok": false}
	})
	m, r := newTestRegistry(t, srv)

	m.Connect(driverIdentity())
	srv.WaitConnected(2 * time.Second)

	r.JoinRoom(KindRide, "42")
	srv.WaitEvent(contracts.EventJoinRide, 1, 2*time.Second)
	time.Sleep(50 * time.Millisecond)
	require.False(t, r.Joined(KindRide, "42"))
}
