package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// InProcMessenger is the transport for single-process deployments. Broadcasts
// have no remote peers to reach, so they only get logged; Inject feeds the
// registered handlers as if a remote peer had sent the message.
type InProcMessenger struct {
	mu       sync.RWMutex
	nodeId   string
	logger   hclog.Logger
	handlers map[string]MessageHandler
}

func NewInProcMessenger(nodeId string, logger hclog.Logger) *InProcMessenger {
	return &InProcMessenger{
		nodeId:   nodeId,
		logger:   logger,
		handlers: make(map[string]MessageHandler),
	}
}

func (messenger *InProcMessenger) RegisterMessageHandler(messageType string, handler MessageHandler) {
	messenger.mu.Lock()
	defer messenger.mu.Unlock()

	messenger.handlers[messageType] = handler
}

func (messenger *InProcMessenger) UnregisterMessageHandler(messageType string) {
	messenger.mu.Lock()
	defer messenger.mu.Unlock()

	delete(messenger.handlers, messageType)
}

func (messenger *InProcMessenger) Broadcast(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if message.SenderId == "" {
		message.SenderId = messenger.nodeId
	}
	messenger.logger.Debug(fmt.Sprintf("Dropping %s broadcast %s, no remote peers", message.MessageType, message.MessageId))
	return nil
}

// Inject dispatches a message to the local handler for its type, the same way
// an inbound frame from a remote peer would be dispatched.
func (messenger *InProcMessenger) Inject(message Message) {
	if message.RecipientId != "" && message.RecipientId != messenger.nodeId {
		return
	}

	messenger.mu.RLock()
	handler, found := messenger.handlers[message.MessageType]
	messenger.mu.RUnlock()

	if found {
		handler(message)
	}
}
