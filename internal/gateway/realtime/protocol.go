package realtime

import (
	"encoding/json"

	"github.com/syntrixbase/daybook/internal/events"
)

// Message types
const (
	TypeAuth           = "auth"
	TypeAuthAck        = "auth_ack"
	TypeSubscribe      = "subscribe"
	TypeSubscribeAck   = "subscribe_ack"
	TypeUnsubscribe    = "unsubscribe"
	TypeUnsubscribeAck = "unsubscribe_ack"
	TypeChange         = "change"
	TypeError          = "error"
)

// BaseMessage is the envelope for all messages
type BaseMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type AuthPayload struct {
	Token string `json:"token"`
}

// SubscribePayload names a community whose changes the client wants.
// Changes of the client's own data are always delivered.
type SubscribePayload struct {
	Community string `json:"community"`
}

type ChangePayload struct {
	Change events.Change `json:"change"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	errCodeInvalidMessage = "invalid_message"
	errCodeUnauthorized   = "unauthorized"
)

func mustMarshal(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}

func errorMessage(id, code, message string) BaseMessage {
	return BaseMessage{ID: id, Type: TypeError, Payload: mustMarshal(ErrorPayload{Code: code, Message: message})}
}
