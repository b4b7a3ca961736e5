package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong frame from the peer.
	pongWait = 60 * time.Second

	// Ping period must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size in bytes.
	maxMessageSize = 64 * 1024

	sendBufferSize = 256
)

// Mesh peers connect from arbitrary hosts.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsPeer struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// WsMessenger exchanges envelopes with remote mesh peers over WebSocket
// connections. Peers either dial in through the HTTP handler or get dialed
// with Connect; both directions carry the same frames.
type WsMessenger struct {
	mu       sync.RWMutex
	nodeId   string
	logger   hclog.Logger
	handlers map[string]MessageHandler
	peers    map[string]*wsPeer
}

func NewWsMessenger(nodeId string, logger hclog.Logger) *WsMessenger {
	return &WsMessenger{
		nodeId:   nodeId,
		logger:   logger,
		handlers: make(map[string]MessageHandler),
		peers:    make(map[string]*wsPeer),
	}
}

func (messenger *WsMessenger) RegisterMessageHandler(messageType string, handler MessageHandler) {
	messenger.mu.Lock()
	defer messenger.mu.Unlock()

	messenger.handlers[messageType] = handler
}

func (messenger *WsMessenger) UnregisterMessageHandler(messageType string) {
	messenger.mu.Lock()
	defer messenger.mu.Unlock()

	delete(messenger.handlers, messageType)
}

func (messenger *WsMessenger) Broadcast(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if message.SenderId == "" {
		message.SenderId = messenger.nodeId
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", message.MessageType, err)
	}

	// Sends stay under the read lock so a peer cannot be torn down mid fan-out.
	messenger.mu.RLock()
	defer messenger.mu.RUnlock()

	for _, peer := range messenger.peers {
		select {
		case peer.send <- data:
		default:
			messenger.logger.Warn(fmt.Sprintf("Dropping %s message for slow peer %s", message.MessageType, peer.id))
		}
	}
	return nil
}

// Handler returns the HTTP handler that accepts inbound peer connections.
func (messenger *WsMessenger) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			messenger.logger.Error("Failed to upgrade peer connection", "error", err)
			return
		}
		messenger.addPeer(conn)
	})
}

// Connect dials a remote peer endpoint, e.g. ws://host:8080/mesh/ws.
func (messenger *WsMessenger) Connect(ctx context.Context, peerUrl string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, peerUrl, nil)
	if err != nil {
		return fmt.Errorf("dialing mesh peer %s: %w", peerUrl, err)
	}

	messenger.addPeer(conn)
	return nil
}

func (messenger *WsMessenger) PeerCount() int {
	messenger.mu.RLock()
	defer messenger.mu.RUnlock()

	return len(messenger.peers)
}

// Close tears down every peer connection.
func (messenger *WsMessenger) Close() {
	messenger.mu.Lock()
	peers := messenger.peers
	messenger.peers = make(map[string]*wsPeer)
	messenger.mu.Unlock()

	for _, peer := range peers {
		close(peer.send)
	}
}

func (messenger *WsMessenger) addPeer(conn *websocket.Conn) {
	peer := &wsPeer{
		id:   fmt.Sprintf("peer_%s", uuid.NewString()[:8]),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	messenger.mu.Lock()
	messenger.peers[peer.id] = peer
	peerCount := len(messenger.peers)
	messenger.mu.Unlock()

	messenger.logger.Info(fmt.Sprintf("Mesh peer %s connected, %d peer(s) total", peer.id, peerCount))

	go messenger.writePump(peer)
	go messenger.readPump(peer)
}

func (messenger *WsMessenger) removePeer(peer *wsPeer) {
	messenger.mu.Lock()
	_, found := messenger.peers[peer.id]
	if found {
		delete(messenger.peers, peer.id)
		close(peer.send)
	}
	messenger.mu.Unlock()

	if found {
		messenger.logger.Info(fmt.Sprintf("Mesh peer %s disconnected", peer.id))
	}
}

func (messenger *WsMessenger) readPump(peer *wsPeer) {
	defer func() {
		messenger.removePeer(peer)
		peer.conn.Close()
	}()

	peer.conn.SetReadLimit(maxMessageSize)
	peer.conn.SetReadDeadline(time.Now().Add(pongWait))
	peer.conn.SetPongHandler(func(string) error {
		peer.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := peer.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				messenger.logger.Error("Mesh peer read failed", "peer", peer.id, "error", err)
			}
			break
		}

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			messenger.logger.Warn(fmt.Sprintf("Discarding malformed frame from peer %s: %v", peer.id, err))
			continue
		}
		messenger.dispatch(message)
	}
}

func (messenger *WsMessenger) dispatch(message Message) {
	if message.SenderId == messenger.nodeId {
		return
	}
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

func (messenger *WsMessenger) writePump(peer *wsPeer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		peer.conn.Close()
	}()

	for {
		select {
		case data, ok := <-peer.send:
			peer.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				peer.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := peer.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			peer.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := peer.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
