package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is the wire envelope exchanged between mesh peers. Timestamp is
// unix seconds with fraction. An empty RecipientId addresses every peer.
type Message struct {
	SenderId    string          `json:"sender_id"`
	RecipientId string          `json:"recipient_id,omitempty"`
	MessageType string          `json:"message_type"`
	Payload     json.RawMessage `json:"payload"`
	Timestamp   float64         `json:"timestamp"`
	MessageId   string          `json:"message_id"`
}

// NewMessage builds a broadcast envelope around a serialized payload.
func NewMessage(messageType string, payload json.RawMessage) Message {
	return Message{
		MessageType: messageType,
		Payload:     payload,
		Timestamp:   float64(time.Now().UnixNano()) / 1e9,
		MessageId:   uuid.NewString(),
	}
}

// MessageHandler consumes one inbound message.
type MessageHandler func(message Message)

// IMessenger moves envelopes between mesh peers. At most one handler per
// message type; registering again replaces the previous handler.
type IMessenger interface {
	RegisterMessageHandler(messageType string, handler MessageHandler)
	UnregisterMessageHandler(messageType string)
	Broadcast(ctx context.Context, message Message) error
}
