package realtime

import (
	"fmt"

	"ride-hail-mobile/internal/contracts"
)

// Stream distinguishes the two independent high-frequency location streams.
type Stream int

const (
	StreamRide Stream = iota
	StreamDelivery
)

// Deduper suppresses redundant location pings per stream. Raw GPS push rates
// exceed what the UI can usefully redraw; quantizing to 5 decimal places and
// 500ms buckets discards sub-meter and sub-tick precision on purpose.
//
// Deduper is not safe for concurrent use; construct one per consumer and call
// it from the dispatch goroutine only.
type Deduper struct {
	lastSig [2]string
}

// NewDeduper returns a Deduper with empty signature slots, so the first ping
// on each stream always passes.
func NewDeduper() *Deduper {
	return &Deduper{}
}

// ShouldEmit reports whether the ping differs from the previous one seen on
// this stream and records its signature when it does.
func (d *Deduper) ShouldEmit(stream Stream, ping contracts.LocationPing) bool {
	sig := signature(ping)
	if d.lastSig[stream] == sig {
		return false
	}
	d.lastSig[stream] = sig
	return true
}

func signature(ping contracts.LocationPing) string {
	bucket := ping.At.UnixMilli() / 500
	return fmt.Sprintf("%s|%.5f|%.5f|%d", ping.ActorID, ping.Latitude, ping.Longitude, bucket)
}
