package restapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/doismellburning/audiocloud-domain/internal/pubsub"
)

// WebSocket timeout constants, grounded on gorilla/websocket's own
// chat-example pattern of a write deadline, a pong-bounded read
// deadline, and a ping period comfortably under it - the concrete
// values stand in for spec.md §6's socket_ping_interval/
// socket_drop_timeout/socket_init_timeout, which the spec leaves
// unspecified.
const (
	socketPingInterval = 20 * time.Second
	socketDropTimeout  = 45 * time.Second
	socketInitTimeout  = 10 * time.Second
	maxSocketMessage   = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ClientMessage is the tagged union a socket receives from a client -
// spec.md §6's DomainClientMessage.
type ClientMessage struct {
	Type        string          `json:"type"`
	SubscribeTo []string        `json:"subscribe_to,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage is the tagged union a socket sends to a client -
// spec.md §6's DomainServerMessage.
type ServerMessage struct {
	Type    string `json:"type"`
	Subject string `json:"subject,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// EventSource is where a socket's subscriptions are fed from -
// internal/pubsub.Bus, narrowed to the one method sockets need.
type EventSource interface {
	Subscribe(subject string, handler pubsub.Handler) (pubsub.Subscription, error)
}

// socket is one live /ws/{client_id}/{socket_id} connection.
type socket struct {
	clientID string
	socketID string
	conn     *websocket.Conn
	codec    codec
	logger   *log.Logger

	send chan ServerMessage

	mu            sync.Mutex
	subscriptions map[string]pubsub.Subscription
	joined        bool
}

// RegisterWebSocket mounts the /ws/ endpoint on server, fed by events.
func (s *Server) RegisterWebSocket(events EventSource) {
	s.mux.HandleFunc("/ws/", s.handleWebSocket(events))
}

// handleWebSocket upgrades the request and runs the socket's read and
// write pumps until the connection drops - spec.md §6's "/ws/
// {client_id}/{socket_id}".
func (s *Server) handleWebSocket(events EventSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/ws/"), "/"), "/")
		if len(parts) != 2 {
			http.Error(w, "expected /ws/{client_id}/{socket_id}", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		sock := &socket{
			clientID:      parts[0],
			socketID:      parts[1],
			conn:          conn,
			codec:         negotiateCodec(r),
			logger:        s.logger.With("client", parts[0], "socket", parts[1]),
			send:          make(chan ServerMessage, 32),
			subscriptions: make(map[string]pubsub.Subscription),
		}

		go sock.writePump()
		sock.readPump(events)
	}
}

// readPump blocks processing inbound frames until the connection
// closes or socket_init_timeout elapses without a join message.
func (s *socket) readPump(events EventSource) {
	defer s.close()

	s.conn.SetReadLimit(maxSocketMessage)
	_ = s.conn.SetReadDeadline(time.Now().Add(socketInitTimeout))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(socketDropTimeout))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Debug("websocket closed", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := s.codec.Decode(raw, &msg); err != nil {
			s.logger.Warn("malformed client message", "error", err)
			continue
		}
		s.handle(msg, events)
	}
}

func (s *socket) handle(msg ClientMessage, events EventSource) {
	switch msg.Type {
	case "join":
		s.mu.Lock()
		s.joined = true
		s.mu.Unlock()
		_ = s.conn.SetReadDeadline(time.Now().Add(socketDropTimeout))
		s.trySend(ServerMessage{Type: "joined"})

	case "subscribe":
		for _, subject := range msg.SubscribeTo {
			s.subscribe(subject, events)
		}

	case "unsubscribe":
		for _, subject := range msg.SubscribeTo {
			s.unsubscribe(subject)
		}

	default:
		s.logger.Debug("unhandled client message", "type", msg.Type)
	}
}

func (s *socket) subscribe(subject string, events EventSource) {
	s.mu.Lock()
	if _, already := s.subscriptions[subject]; already {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	sub, err := events.Subscribe(subject, func(subject string, payload []byte) {
		var decoded any
		_ = json.Unmarshal(payload, &decoded)
		s.trySend(ServerMessage{Type: "event", Subject: subject, Payload: decoded})
	})
	if err != nil {
		s.logger.Warn("subscribe failed", "subject", subject, "error", err)
		return
	}

	s.mu.Lock()
	s.subscriptions[subject] = sub
	s.mu.Unlock()
}

func (s *socket) unsubscribe(subject string) {
	s.mu.Lock()
	sub, ok := s.subscriptions[subject]
	delete(s.subscriptions, subject)
	s.mu.Unlock()
	if ok {
		_ = sub.Unsubscribe()
	}
}

// trySend enqueues msg for the write pump, dropping it rather than
// blocking a slow or departed client.
func (s *socket) trySend(msg ServerMessage) {
	select {
	case s.send <- msg:
	default:
		s.logger.Warn("dropping server message, send buffer full", "type", msg.Type)
	}
}

func (s *socket) writePump() {
	ticker := time.NewTicker(socketPingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(socketPingInterval))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			encoded, err := s.codec.Encode(msg)
			if err != nil {
				s.logger.Warn("failed to encode server message", "error", err)
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, encoded); err != nil {
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(socketPingInterval))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *socket) close() {
	s.mu.Lock()
	for subject, sub := range s.subscriptions {
		_ = sub.Unsubscribe()
		delete(s.subscriptions, subject)
	}
	s.mu.Unlock()
	_ = s.conn.Close()
}
