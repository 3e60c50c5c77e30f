package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ride-hail-mobile/internal/common/log"
	"ride-hail-mobile/internal/contracts"
	"ride-hail-mobile/internal/realtime/rttest"
)

type pingRecorder struct {
	mu    sync.Mutex
	pings []contracts.LocationPing
}

func (r *pingRecorder) record(p contracts.LocationPing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pings = append(r.pings, p)
}

func (r *pingRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pings)
}

func TestFeedDeliversDedupedPings(t *testing.T) {
	srv := rttest.NewServer(t)
	m := newTestManager(t, srv.URL())

	var rideRec, deliveryRec pingRecorder
	feed := NewFeed(m, log.New("feed-test"), rideRec.record, deliveryRec.record)
	t.Cleanup(feed.Close)

	m.Connect(driverIdentity())
	srv.WaitConnected(2 * time.Second)

	row := map[string]any{"driver_id": "d-1", "lat": 27.47221, "lng": 89.63901, "timestamp": 1_767_000_000}
	srv.Push(contracts.EventRideLocation, row)
	srv.Push(contracts.EventRideLocation, row) // duplicate, suppressed
	srv.Push(contracts.EventDeliveryLocation, row)

	moved := map[string]any{"driver_id": "d-1", "lat": 27.47501, "lng": 89.63901, "timestamp": 1_767_000_000}
	srv.Push(contracts.EventRideLocation, moved)

	require.Eventually(t, func() bool { return rideRec.count() == 2 && deliveryRec.count() == 1 },
		2*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 2, rideRec.count())
	require.Equal(t, 1, deliveryRec.count())
}

func TestFeedDropsMalformedPings(t *testing.T) {
	srv := rttest.NewServer(t)
	m := newTestManager(t, srv.URL())

	var rec pingRecorder
	feed := NewFeed(m, log.New("feed-test"), rec.record, nil)
	t.Cleanup(feed.Close)

	m.Connect(driverIdentity())
	srv.WaitConnected(2 * time.Second)

	srv.Push(contracts.EventRideLocation, map[string]any{"lat": 1.0, "lng": 2.0}) // no actor id
	srv.Push(contracts.EventRideLocation, map[string]any{"driver_id": "d-1", "lat": 1.0, "lng": 2.0, "timestamp": 1_767_000_000})

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "d-1", func() string {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.pings[0].ActorID
	}())
}
