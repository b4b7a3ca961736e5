package transport

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
)

func TestNewMessageEnvelope(t *testing.T) {
	message := NewMessage("mesh_metrics", json.RawMessage(`{"node_id":"n1"}`))

	if message.MessageType != "mesh_metrics" {
		t.Errorf("expected message type mesh_metrics, got %s", message.MessageType)
	}
	if message.MessageId == "" {
		t.Error("expected a generated message id")
	}
	if message.Timestamp <= 0 {
		t.Errorf("expected a positive timestamp, got %f", message.Timestamp)
	}
	if message.RecipientId != "" {
		t.Errorf("expected a broadcast envelope, got recipient %s", message.RecipientId)
	}
}

func TestInProcInjectDispatch(t *testing.T) {
	messenger := NewInProcMessenger("node-1", hclog.NewNullLogger())

	var received []Message
	messenger.RegisterMessageHandler("mesh_metrics", func(message Message) {
		received = append(received, message)
	})

	messenger.Inject(Message{SenderId: "node-2", MessageType: "mesh_metrics"})
	messenger.Inject(Message{SenderId: "node-2", MessageType: "mesh_topology"})

	if len(received) != 1 {
		t.Fatalf("expected 1 dispatched message, got %d", len(received))
	}
	if received[0].SenderId != "node-2" {
		t.Errorf("expected sender node-2, got %s", received[0].SenderId)
	}
}

func TestInProcInjectRecipientFilter(t *testing.T) {
	messenger := NewInProcMessenger("node-1", hclog.NewNullLogger())

	received := 0
	messenger.RegisterMessageHandler("mesh_metrics", func(message Message) {
		received++
	})

	messenger.Inject(Message{MessageType: "mesh_metrics", RecipientId: "node-9"})
	if received != 0 {
		t.Fatalf("expected a message for another node to be ignored, got %d dispatches", received)
	}

	messenger.Inject(Message{MessageType: "mesh_metrics", RecipientId: "node-1"})
	if received != 1 {
		t.Errorf("expected a directly addressed message to be dispatched, got %d dispatches", received)
	}
}

func TestInProcUnregisterStopsDispatch(t *testing.T) {
	messenger := NewInProcMessenger("node-1", hclog.NewNullLogger())

	received := 0
	messenger.RegisterMessageHandler("mesh_metrics", func(message Message) {
		received++
	})
	messenger.UnregisterMessageHandler("mesh_metrics")

	messenger.Inject(Message{MessageType: "mesh_metrics"})
	if received != 0 {
		t.Errorf("expected no dispatch after unregistering, got %d", received)
	}
}

func TestInProcBroadcast(t *testing.T) {
	messenger := NewInProcMessenger("node-1", hclog.NewNullLogger())

	if err := messenger.Broadcast(context.Background(), NewMessage("mesh_metrics", nil)); err != nil {
		t.Fatalf("unexpected broadcast error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := messenger.Broadcast(ctx, NewMessage("mesh_metrics", nil)); err == nil {
		t.Error("expected an error for a canceled context")
	}
}

func TestWsDispatchFilters(t *testing.T) {
	messenger := NewWsMessenger("node-1", hclog.NewNullLogger())

	received := 0
	messenger.RegisterMessageHandler("mesh_metrics", func(message Message) {
		received++
	})

	messenger.dispatch(Message{SenderId: "node-1", MessageType: "mesh_metrics"})
	if received != 0 {
		t.Errorf("expected an own echo to be skipped, got %d dispatches", received)
	}

	messenger.dispatch(Message{SenderId: "node-2", RecipientId: "node-9", MessageType: "mesh_metrics"})
	if received != 0 {
		t.Errorf("expected a message for another node to be skipped, got %d dispatches", received)
	}

	messenger.dispatch(Message{SenderId: "node-2", MessageType: "mesh_metrics"})
	if received != 1 {
		t.Errorf("expected a remote broadcast to be dispatched, got %d dispatches", received)
	}
}

func TestWsMessengerRoundTrip(t *testing.T) {
	serverMessenger := NewWsMessenger("node-server", hclog.NewNullLogger())
	clientMessenger := NewWsMessenger("node-client", hclog.NewNullLogger())

	serverReceived := make(chan Message, 1)
	serverMessenger.RegisterMessageHandler("mesh_metrics", func(message Message) {
		serverReceived <- message
	})
	clientReceived := make(chan Message, 1)
	clientMessenger.RegisterMessageHandler("mesh_topology", func(message Message) {
		clientReceived <- message
	})

	httpServer := httptest.NewServer(serverMessenger.Handler())
	defer httpServer.Close()

	peerUrl := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	if err := clientMessenger.Connect(context.Background(), peerUrl); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	defer clientMessenger.Close()

	if got := clientMessenger.PeerCount(); got != 1 {
		t.Fatalf("expected 1 connected peer, got %d", got)
	}

	message := NewMessage("mesh_metrics", json.RawMessage(`{"node_id":"node-client"}`))
	if err := clientMessenger.Broadcast(context.Background(), message); err != nil {
		t.Fatalf("unexpected broadcast error: %v", err)
	}

	select {
	case got := <-serverReceived:
		if got.SenderId != "node-client" {
			t.Errorf("expected sender node-client, got %s", got.SenderId)
		}
		if string(got.Payload) != `{"node_id":"node-client"}` {
			t.Errorf("unexpected payload: %s", got.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the client broadcast")
	}

	if err := serverMessenger.Broadcast(context.Background(), NewMessage("mesh_topology", json.RawMessage(`{}`))); err != nil {
		t.Fatalf("unexpected broadcast error: %v", err)
	}

	select {
	case got := <-clientReceived:
		if got.SenderId != "node-server" {
			t.Errorf("expected sender node-server, got %s", got.SenderId)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the server broadcast")
	}
}
