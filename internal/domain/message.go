package domain

// MessageType defines the type of a websocket protocol message
type MessageType string

const (
	// Inbound
	MessageTypeAuth     MessageType = "auth"
	MessageTypeLocation MessageType = "location"

	// Outbound
	MessageTypeWelcome MessageType = "welcome"
	MessageTypeMeta    MessageType = "meta"
	MessageTypeError   MessageType = "error"
)

// Inbound is the envelope for every client message. Fields beyond Type are
// populated depending on the message type; unknown types are discarded.
type Inbound struct {
	Type     MessageType `json:"type"`
	Token    string      `json:"token,omitempty"`
	Room     string      `json:"room,omitempty"`
	Lat      float64     `json:"lat,omitempty"`
	Lng      float64     `json:"lng,omitempty"`
	Ts       int64       `json:"ts,omitempty"`
	Accuracy float64     `json:"accuracy,omitempty"`
}

// WelcomeMessage is sent to a connection after a successful auth
type WelcomeMessage struct {
	Type     MessageType `json:"type"`
	ClientID string      `json:"clientId"`
}

// ErrorMessage reports a protocol error to the offending connection only
type ErrorMessage struct {
	Type  MessageType `json:"type"`
	Error string      `json:"error"`
}

// RoomMember is one entry in a roster broadcast
type RoomMember struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MetaMessage carries the current roster of a room
type MetaMessage struct {
	Type  MessageType  `json:"type"`
	Users []RoomMember `json:"users"`
}

// LocationMessage is the broadcast form of a position update
type LocationMessage struct {
	Type     MessageType `json:"type"`
	ClientID string      `json:"clientId"`
	Name     string      `json:"name"`
	Lat      float64     `json:"lat"`
	Lng      float64     `json:"lng"`
	Ts       int64       `json:"ts"`
	Accuracy float64     `json:"accuracy"`
}
