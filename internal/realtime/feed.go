package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"ride-hail-mobile/internal/common/log"
	"ride-hail-mobile/internal/contracts"
)

// Feed delivers normalized, deduplicated location pings from the two location
// streams to consumer callbacks. Callbacks run on the dispatch goroutine.
type Feed struct {
	logger  *slog.Logger
	deduper *Deduper
	unsubs  []func()
}

// NewFeed subscribes to both location streams on mgr. Pings that fail to
// normalize or repeat the previous signature are dropped silently.
func NewFeed(mgr *Manager, logger *slog.Logger, onRide, onDelivery func(contracts.LocationPing)) *Feed {
	f := &Feed{
		logger:  logger,
		deduper: NewDeduper(),
	}

	if onRide != nil {
		f.unsubs = append(f.unsubs, mgr.On(contracts.EventRideLocation, f.handler(StreamRide, onRide)))
	}
	if onDelivery != nil {
		f.unsubs = append(f.unsubs, mgr.On(contracts.EventDeliveryLocation, f.handler(StreamDelivery, onDelivery)))
	}
	return f
}

func (f *Feed) handler(stream Stream, consume func(contracts.LocationPing)) Handler {
	return func(data json.RawMessage) {
		ping, err := contracts.NormalizeLocationPing(data)
		if err != nil {
			log.Debug(context.Background(), f.logger, "location_drop", "Dropping malformed location ping: "+err.Error())
			return
		}
		if !f.deduper.ShouldEmit(stream, ping) {
			return
		}
		consume(ping)
	}
}

// Close unsubscribes the feed from the connection.
func (f *Feed) Close() {
	for _, unsub := range f.unsubs {
		unsub()
	}
	f.unsubs = nil
}
