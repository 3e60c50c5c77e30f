package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ride-hail-mobile/internal/domain/ride"
)

func TestNormalizeChatRowNumericID(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 412,
		"message": "on my way",
		"sender_role": "driver",
		"sender_id": 17,
		"sender_name": "Karma",
		"created_at": "2026-03-02T09:15:00Z"
	}`)

	msg, err := NormalizeChatRow(raw)
	require.NoError(t, err)
	require.Equal(t, "412", msg.ID)
	require.Equal(t, "on my way", msg.Text)
	require.Equal(t, "DRIVER", msg.SenderRole)
	require.Equal(t, "17", msg.SenderID)
	require.Equal(t, "Karma", msg.DisplayName)
	require.Equal(t, time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC), msg.Timestamp)
	require.False(t, msg.IsTemp())
	require.EqualValues(t, 412, msg.NumericID())
}

func TestNormalizeChatRowAltFields(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "77",
		"text": "hello",
		"role": "passenger",
		"display_name": "Dorji",
		"timestamp": 1767000000000,
		"attachment_url": "https://cdn.example/p.jpg"
	}`)

	msg, err := NormalizeChatRow(raw)
	require.NoError(t, err)
	require.Equal(t, "hello", msg.Text)
	require.Equal(t, "PASSENGER", msg.SenderRole)
	require.Equal(t, "Dorji", msg.DisplayName)
	require.Equal(t, "https://cdn.example/p.jpg", msg.ImageURL)
	require.Equal(t, time.UnixMilli(1767000000000).UTC(), msg.Timestamp)
}

func TestNormalizeChatRowMissingID(t *testing.T) {
	_, err := NormalizeChatRow(json.RawMessage(`{"message":"x"}`))
	require.Error(t, err)
}

func TestTempIDShape(t *testing.T) {
	m := ChatMessage{ID: "temp-1767000000000-4821"}
	require.True(t, m.IsTemp())
	require.Zero(t, m.NumericID())
}

func TestNormalizeRideEvent(t *testing.T) {
	raw := json.RawMessage(`{
		"ride_id": "r-42",
		"status": "in_progress",
		"driver_id": "d-7",
		"driver_name": "Karma"
	}`)

	upd, err := NormalizeRideEvent(raw)
	require.NoError(t, err)
	require.Equal(t, "r-42", upd.RideID)
	require.Equal(t, ride.StageInProgress, upd.Stage)
	require.Equal(t, "d-7", upd.PeerID)
}

func TestNormalizeRideEventFinalFareWins(t *testing.T) {
	raw := json.RawMessage(`{"rideId":"r-1","stage":"COMPLETED","fare":90,"final_fare":104.5}`)

	upd, err := NormalizeRideEvent(raw)
	require.NoError(t, err)
	require.Equal(t, "r-1", upd.RideID)
	require.Equal(t, 104.5, upd.Fare)
	require.True(t, upd.Stage.Terminal())
}

func TestNormalizeLocationPing(t *testing.T) {
	raw := json.RawMessage(`{"driver_id":"d-3","lat":27.47221,"lng":89.63901,"timestamp":1767000000}`)

	ping, err := NormalizeLocationPing(raw)
	require.NoError(t, err)
	require.Equal(t, "d-3", ping.ActorID)
	require.Equal(t, 27.47221, ping.Latitude)
	require.Equal(t, 89.63901, ping.Longitude)
	require.Equal(t, time.Unix(1767000000, 0).UTC(), ping.At)
}

func TestNormalizeLocationPingAltFields(t *testing.T) {
	raw := json.RawMessage(`{"courier_id":"c-9","latitude":27.1,"longitude":89.2}`)

	ping, err := NormalizeLocationPing(raw)
	require.NoError(t, err)
	require.Equal(t, "c-9", ping.ActorID)
	require.Equal(t, 27.1, ping.Latitude)
}

func TestNormalizeLocationPingNoActor(t *testing.T) {
	_, err := NormalizeLocationPing(json.RawMessage(`{"lat":1,"lng":2}`))
	require.Error(t, err)
}

func TestRoomAckVariants(t *testing.T) {
	var a RoomAck
	require.NoError(t, json.Unmarshal([]byte(`{"ok":true}`), &a))
	require.True(t, a.Joined())

	var b RoomAck
	require.NoError(t, json.Unmarshal([]byte(`{"status":"ok"}`), &b))
	require.True(t, b.Joined())

	var c RoomAck
	require.NoError(t, json.Unmarshal([]byte(`{"ok":false}`), &c))
	require.False(t, c.Joined())
}
