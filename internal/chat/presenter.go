package chat

import (
	"time"

	"ride-hail-mobile/internal/contracts"
)

// DeliveryStatus is the per-message delivery marker for the sender's own
// messages.
type DeliveryStatus string

const (
	StatusPending DeliveryStatus = "pending"
	StatusSent    DeliveryStatus = "sent"
	StatusSeen    DeliveryStatus = "seen"
	StatusFailed  DeliveryStatus = "failed"
)

// Calendar days are computed in the platform's home timezone so separators
// are stable regardless of device locale.
var displayZone = time.FixedZone("Asia/Thimphu", 6*60*60)

const dayLabelFormat = "02 Jan 2006"

// Entry is one rendered list row: a message plus its derived presentation.
type Entry struct {
	Message contracts.ChatMessage

	// DayLabel is non-empty on the first message of a new calendar day;
	// the UI renders it as a separator above the message.
	DayLabel string

	// ShowHeader marks the first message of a same-sender run on the same
	// day; only it shows the sender's name and avatar.
	ShowHeader bool

	// Status is set on the sender's own messages, "" otherwise. Only the
	// newest own message carries a live sent/seen distinction; older
	// confirmed messages are plain sent.
	Status DeliveryStatus
}

// BuildEntries derives the rendered list from the raw message slice. Pure:
// recomputed on every render, no retained state.
func BuildEntries(msgs []contracts.ChatMessage, ownSenderID string, peerLastSeen int64) []Entry {
	if len(msgs) == 0 {
		return nil
	}

	newestOwn := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if ownSenderID != "" && msgs[i].SenderID == ownSenderID {
			newestOwn = i
			break
		}
	}

	entries := make([]Entry, len(msgs))
	prevDay := ""
	for i, m := range msgs {
		e := Entry{Message: m}

		day := m.Timestamp.In(displayZone).Format(dayLabelFormat)
		if day != prevDay {
			e.DayLabel = day
		}
		prevDay = day

		e.ShowHeader = i == 0 || e.DayLabel != "" || msgs[i-1].SenderID != m.SenderID

		if ownSenderID != "" && m.SenderID == ownSenderID {
			e.Status = statusOf(m, i == newestOwn, peerLastSeen)
		}
		entries[i] = e
	}
	return entries
}

func statusOf(m contracts.ChatMessage, newestOwn bool, peerLastSeen int64) DeliveryStatus {
	switch {
	case m.Failed:
		return StatusFailed
	case m.IsTemp():
		return StatusPending
	case newestOwn && peerLastSeen >= m.NumericID():
		return StatusSeen
	default:
		return StatusSent
	}
}
