package contracts

// Client -> server events.
const (
	EventWhoami     = "whoami"
	EventJoinRide   = "joinRide"
	EventLeaveRide  = "leaveRide"
	EventJoinOrder  = "joinOrder"
	EventLeaveOrder = "leaveOrder"

	EventChatSend    = "chat:send"
	EventChatHistory = "chat:history"
	EventChatTyping  = "chat:typing"
	EventChatRead    = "chat:read"
)

// Server -> client events.
const (
	EventAck = "ack"

	EventRideAccepted       = "rideAccepted"
	EventRideStageUpdate    = "rideStageUpdate"
	EventFareFinalized      = "fareFinalized"
	EventRideOfferDeclined  = "rideOfferDeclined"
	EventRideCancelled      = "rideCancelled"
	EventBookingCancelled   = "bookingCancelled"
	EventBookingStageUpdate = "bookingStageUpdate"

	EventChatNew = "chat:new"
	// chat:typing and chat:read are bidirectional; the inbound shapes
	// carry a from/reader object the outbound payloads do not.

	EventRideLocation     = "ride:location"
	EventDeliveryLocation = "delivery:location"
)
