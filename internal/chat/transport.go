package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"ride-hail-mobile/internal/common/log"
	"ride-hail-mobile/internal/contracts"
	"ride-hail-mobile/internal/realtime"
)

// Handlers receive normalized inbound chat events for the adopted
// conversation. All callbacks run on the connection's dispatch goroutine.
type Handlers struct {
	OnNewMessage func(msg contracts.ChatMessage, tempID string)
	OnTyping     func(ev contracts.ChatTypingEvent)
	OnRead       func(ev contracts.ChatReadEvent)
}

// Transport is the acknowledgement-based RPC surface for the chat verbs.
// Conversation scoping happens through the joined ride room, so the wire
// payloads carry no ride id. Send failures are swallowed here; reliability
// is the session controller's job via optimistic UI plus confirmation.
type Transport struct {
	mgr    *realtime.Manager
	logger *slog.Logger

	mu       sync.Mutex
	prevSub  func()
	lastSeen int64 // highest last_seen_id announced, spares redundant marks
}

func NewTransport(mgr *realtime.Manager, logger *slog.Logger) *Transport {
	return &Transport{mgr: mgr, logger: logger}
}

// Send emits a chat message tagged with the caller's temp id. The ack is
// awaited in the background only for logging; delivery is confirmed by the
// subsequent chat:new event, never by the ack.
func (t *Transport) Send(message string, attachments []string, tempID string) {
	payload := contracts.ChatSendPayload{
		RequestID:   uuid.NewString(),
		Message:     message,
		Attachments: attachments,
		TempID:      tempID,
	}
	go func() {
		if _, err := t.mgr.EmitWithAck(context.Background(), contracts.EventChatSend, payload); err != nil {
			log.Debug(context.Background(), t.logger, "chat_send_unacked", "chat:send not acknowledged: "+err.Error())
		}
	}()
}

// LoadHistory fetches up to limit rows older than beforeID (0 for the tail).
// ok is false when the gateway reported a failure; callers degrade to an
// empty history. Rows that fail to normalize are skipped, not fatal.
func (t *Transport) LoadHistory(ctx context.Context, beforeID int64, limit int) (msgs []contracts.ChatMessage, ok bool, err error) {
	payload := contracts.ChatHistoryPayload{
		RequestID: uuid.NewString(),
		BeforeID:  beforeID,
		Limit:     limit,
	}
	raw, err := t.mgr.EmitWithAck(ctx, contracts.EventChatHistory, payload)
	if err != nil {
		return nil, false, err
	}

	var ack contracts.ChatHistoryAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		return nil, false, err
	}
	if !ack.OK {
		return nil, false, nil
	}

	msgs = make([]contracts.ChatMessage, 0, len(ack.Messages))
	for _, row := range ack.Messages {
		msg, err := contracts.NormalizeChatRow(row)
		if err != nil {
			log.Debug(ctx, t.logger, "chat_history_bad_row", "Skipping history row: "+err.Error())
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, true, nil
}

// SetTyping is fire-and-forget; a dropped typing signal costs nothing.
func (t *Transport) SetTyping(isTyping bool) {
	payload := contracts.ChatTypingPayload{RequestID: uuid.NewString(), IsTyping: isTyping}
	if err := t.mgr.Emit(contracts.EventChatTyping, payload); err != nil {
		log.Debug(context.Background(), t.logger, "chat_typing_skipped", "chat:typing not sent: "+err.Error())
	}
}

// MarkRead announces the highest message id rendered locally. Best-effort
// and safe to repeat; the gateway tolerates duplicate or stale marks.
func (t *Transport) MarkRead(lastSeenID int64) {
	if lastSeenID <= 0 {
		return
	}
	t.mu.Lock()
	if lastSeenID <= t.lastSeen {
		t.mu.Unlock()
		return
	}
	t.lastSeen = lastSeenID
	t.mu.Unlock()

	payload := contracts.ChatReadPayload{RequestID: uuid.NewString(), LastSeenID: lastSeenID}
	go func() {
		if _, err := t.mgr.EmitWithAck(context.Background(), contracts.EventChatRead, payload); err != nil {
			log.Debug(context.Background(), t.logger, "chat_read_unacked", "chat:read not acknowledged: "+err.Error())
		}
	}()
}

// Subscribe registers handlers for the inbound chat events and returns an
// unsubscribe func. Any previous registration is unsubscribed first, so
// repeated adoptions never accumulate duplicate handlers.
func (t *Transport) Subscribe(h Handlers) func() {
	t.mu.Lock()
	if t.prevSub != nil {
		t.prevSub()
		t.prevSub = nil
	}
	t.lastSeen = 0

	unsubs := []func(){
		t.mgr.On(contracts.EventChatNew, func(data json.RawMessage) {
			var ev contracts.ChatNewEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				log.Debug(context.Background(), t.logger, "chat_new_bad_payload", "Dropping chat:new: "+err.Error())
				return
			}
			msg, err := contracts.NormalizeChatRow(ev.Message)
			if err != nil {
				log.Debug(context.Background(), t.logger, "chat_new_bad_row", "Dropping chat:new row: "+err.Error())
				return
			}
			if h.OnNewMessage != nil {
				h.OnNewMessage(msg, ev.TempID)
			}
		}),
		t.mgr.On(contracts.EventChatTyping, func(data json.RawMessage) {
			var ev contracts.ChatTypingEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				return
			}
			if h.OnTyping != nil {
				h.OnTyping(ev)
			}
		}),
		t.mgr.On(contracts.EventChatRead, func(data json.RawMessage) {
			var ev contracts.ChatReadEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				return
			}
			if h.OnRead != nil {
				h.OnRead(ev)
			}
		}),
	}

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			for _, u := range unsubs {
				u()
			}
		})
	}
	t.prevSub = unsub
	t.mu.Unlock()
	return unsub
}
