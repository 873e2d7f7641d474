package domain

import "github.com/google/uuid"

// User is a registered participant. The token is the opaque credential
// presented during the websocket auth handshake and never broadcast.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Token     string `json:"token,omitempty"`
	CreatedAt int64  `json:"-"`
}

// NewUser creates a User with a generated id and token
func NewUser(name string, createdAt int64) User {
	return User{
		ID:        uuid.New().String(),
		Name:      name,
		Token:     uuid.New().String(),
		CreatedAt: createdAt,
	}
}

// LocationEvent is one position update as persisted and replayed in history.
// The user id is implied by context in every JSON rendering, so it is not
// serialized.
type LocationEvent struct {
	UserID   string  `json:"-"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
	Ts       int64   `json:"ts"`
}
