package contracts

import "encoding/json"

// WhoamiPayload is the identity handshake. The role-specific id field
// ("passenger_id", "driver_id", ...) is flattened into the object, so the
// payload is built as a map rather than a fixed struct.
func WhoamiPayload(role, userID string) map[string]string {
	return map[string]string{
		"role":       role,
		role + "_id": userID,
	}
}

// RoomPayload carries a join/leave request for a ride or order room.
type RoomPayload struct {
	RideID  string `json:"rideId,omitempty"`
	OrderID string `json:"orderId,omitempty"`
}

// RoomAck is the gateway's reply to a join/leave. Older gateways answer
// with {"status":"ok"}, newer ones with {"ok":true}; Joined accepts both.
type RoomAck struct {
	OK     *bool  `json:"ok,omitempty"`
	Status string `json:"status,omitempty"`
}

func (a RoomAck) Joined() bool {
	if a.OK != nil {
		return *a.OK
	}
	return a.Status == "ok" || a.Status == "joined"
}

// ChatSendPayload is the outbound chat:send body.
type ChatSendPayload struct {
	RequestID   string   `json:"request_id"`
	Message     string   `json:"message"`
	Attachments []string `json:"attachments,omitempty"`
	TempID      string   `json:"temp_id,omitempty"`
}

// ChatHistoryPayload is the outbound chat:history body.
type ChatHistoryPayload struct {
	RequestID string `json:"request_id"`
	BeforeID  int64  `json:"before_id,omitempty"`
	Limit     int    `json:"limit"`
}

// ChatHistoryAck is the chat:history acknowledgement.
type ChatHistoryAck struct {
	OK       bool              `json:"ok"`
	Messages []json.RawMessage `json:"messages"`
}

// ChatTypingPayload is the outbound chat:typing body (fire-and-forget).
type ChatTypingPayload struct {
	RequestID string `json:"request_id"`
	IsTyping  bool   `json:"is_typing"`
}

// ChatReadPayload is the outbound chat:read body.
type ChatReadPayload struct {
	RequestID  string `json:"request_id"`
	LastSeenID int64  `json:"last_seen_id"`
}

// PeerRef identifies the other party on inbound typing/read events.
type PeerRef struct {
	Role string `json:"role"`
	ID   string `json:"id,omitempty"`
}

// ChatNewEvent is the inbound chat:new body.
type ChatNewEvent struct {
	Message json.RawMessage `json:"message"`
	TempID  string          `json:"temp_id,omitempty"`
}

// ChatTypingEvent is the inbound chat:typing body.
type ChatTypingEvent struct {
	RequestID string  `json:"request_id,omitempty"`
	RideID    string  `json:"ride_id,omitempty"`
	From      PeerRef `json:"from"`
	IsTyping  bool    `json:"is_typing"`
}

// ChatReadEvent is the inbound chat:read body.
type ChatReadEvent struct {
	RequestID  string  `json:"request_id,omitempty"`
	RideID     string  `json:"ride_id,omitempty"`
	Reader     PeerRef `json:"reader"`
	LastSeenID int64   `json:"last_seen_id"`
}
