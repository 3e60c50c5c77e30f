package contracts

import "encoding/json"

// Frame is the single envelope every realtime message travels in, both
// directions. AckID is zero when the message carries no acknowledgement
// correlation; server acks come back as {"event":"ack","ack_id":n,"data":...}.
type Frame struct {
	Event string          `json:"event"`
	AckID uint64          `json:"ack_id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals data into a Frame ready for the wire.
func NewFrame(event string, ackID uint64, data any) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, AckID: ackID, Data: raw}, nil
}
