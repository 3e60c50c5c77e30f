package contracts

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ride-hail-mobile/internal/domain/ride"
)

// Normalizers for the gateway's heterogeneous row shapes. Different backend
// services spell the same fields differently (message vs text, created_at vs
// timestamp, numeric vs string ids); everything above this package works with
// the stable local shapes produced here.

// TempIDPrefix marks client-generated placeholder message ids.
const TempIDPrefix = "temp-"

// ChatMessage is the local UI shape of one chat row.
type ChatMessage struct {
	ID          string
	Text        string
	SenderRole  string
	SenderID    string
	DisplayName string
	Timestamp   time.Time
	ImageURL    string
	Failed      bool
}

// IsTemp reports whether the message is an unconfirmed optimistic send.
func (m ChatMessage) IsTemp() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

// NumericID returns the server-issued id, or 0 for temp placeholders.
func (m ChatMessage) NumericID() int64 {
	if m.IsTemp() {
		return 0
	}
	n, err := strconv.ParseInt(m.ID, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ActiveRide is the server's answer to "what is my active ride".
type ActiveRide struct {
	RideID   string `json:"ride_id"`
	PeerID   string `json:"peer_id"`
	PeerName string `json:"peer_name"`
}

// RideUpdate is the local shape of any ride/booking lifecycle event.
type RideUpdate struct {
	RideID   string
	Stage    ride.Stage
	Fare     float64
	PeerID   string
	PeerName string
	Reason   string
}

// LocationPing is the local shape of one high-frequency location event.
type LocationPing struct {
	ActorID   string
	Latitude  float64
	Longitude float64
	At        time.Time
}

type chatRow struct {
	ID          json.Number `json:"id"`
	Message     string      `json:"message"`
	Text        string      `json:"text"`
	SenderRole  string      `json:"sender_role"`
	Role        string      `json:"role"`
	SenderID    json.Number `json:"sender_id"`
	SenderName  string      `json:"sender_name"`
	DisplayName string      `json:"display_name"`
	CreatedAt   json.Number `json:"created_at"`
	Timestamp   json.Number `json:"timestamp"`
	ImageURL    string      `json:"image_url"`
	Attachment  string      `json:"attachment_url"`
}

// NormalizeChatRow maps one server chat row into the local shape.
func NormalizeChatRow(raw json.RawMessage) (ChatMessage, error) {
	var row chatRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return ChatMessage{}, fmt.Errorf("decode chat row: %w", err)
	}
	if row.ID.String() == "" {
		return ChatMessage{}, fmt.Errorf("chat row has no id")
	}

	msg := ChatMessage{
		ID:          row.ID.String(),
		Text:        firstNonEmpty(row.Message, row.Text),
		SenderRole:  strings.ToUpper(firstNonEmpty(row.SenderRole, row.Role)),
		SenderID:    row.SenderID.String(),
		DisplayName: firstNonEmpty(row.DisplayName, row.SenderName),
		Timestamp:   parseInstant(firstNonEmpty(row.CreatedAt.String(), row.Timestamp.String())),
		ImageURL:    firstNonEmpty(row.ImageURL, row.Attachment),
	}
	return msg, nil
}

type rideRow struct {
	RideID     string      `json:"ride_id"`
	RideIDAlt  string      `json:"rideId"`
	BookingID  string      `json:"booking_id"`
	Stage      string      `json:"stage"`
	Status     string      `json:"status"`
	Fare       float64     `json:"fare"`
	FinalFare  float64     `json:"final_fare"`
	DriverID   string      `json:"driver_id"`
	DriverName string      `json:"driver_name"`
	Driver     *PeerRef    `json:"driver"`
	Reason     string      `json:"reason"`
	Raw        json.Number `json:"-"`
}

// NormalizeRideEvent maps one ride/booking lifecycle row into the local shape.
// An unknown stage string is passed through unvalidated rather than dropped;
// the UI treats unknown stages as informational.
func NormalizeRideEvent(raw json.RawMessage) (RideUpdate, error) {
	var row rideRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return RideUpdate{}, fmt.Errorf("decode ride row: %w", err)
	}

	upd := RideUpdate{
		RideID:   firstNonEmpty(row.RideID, row.RideIDAlt, row.BookingID),
		Fare:     row.Fare,
		PeerID:   row.DriverID,
		PeerName: row.DriverName,
		Reason:   row.Reason,
	}
	if row.FinalFare != 0 {
		upd.Fare = row.FinalFare
	}
	if row.Driver != nil && upd.PeerID == "" {
		upd.PeerID = row.Driver.ID
	}

	if s, err := ride.ParseStage(firstNonEmpty(row.Stage, row.Status)); err == nil {
		upd.Stage = s
	} else {
		upd.Stage = ride.Stage(strings.ToUpper(strings.TrimSpace(firstNonEmpty(row.Stage, row.Status))))
	}
	return upd, nil
}

type locationRow struct {
	DriverID  string      `json:"driver_id"`
	ActorID   string      `json:"actor_id"`
	CourierID string      `json:"courier_id"`
	Lat       float64     `json:"lat"`
	Latitude  float64     `json:"latitude"`
	Lng       float64     `json:"lng"`
	Longitude float64     `json:"longitude"`
	Timestamp json.Number `json:"timestamp"`
}

// NormalizeLocationPing maps one location row into the local shape.
func NormalizeLocationPing(raw json.RawMessage) (LocationPing, error) {
	var row locationRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return LocationPing{}, fmt.Errorf("decode location row: %w", err)
	}

	ping := LocationPing{
		ActorID:   firstNonEmpty(row.DriverID, row.ActorID, row.CourierID),
		Latitude:  row.Lat,
		Longitude: row.Lng,
		At:        parseInstant(row.Timestamp.String()),
	}
	if ping.Latitude == 0 {
		ping.Latitude = row.Latitude
	}
	if ping.Longitude == 0 {
		ping.Longitude = row.Longitude
	}
	if ping.ActorID == "" {
		return LocationPing{}, fmt.Errorf("location row has no actor id")
	}
	return ping, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseInstant accepts RFC3339 strings, unix seconds, and unix milliseconds.
// Rows with no usable timestamp get the receive time.
func parseInstant(v string) time.Time {
	if v == "" {
		return time.Now().UTC()
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		// unix ms if the magnitude says so
		if n > 1_000_000_000_000 {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	}
	return time.Now().UTC()
}
