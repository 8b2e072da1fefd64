package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/moonsim-core/internal/infrastructure/config"
	"github.com/nerrad567/moonsim-core/internal/infrastructure/logging"
	"github.com/nerrad567/moonsim-core/internal/printer"
)

// Realtime channel method names.
const (
	jsonrpcVersion = "2.0"

	methodConnected    = "connected"
	methodSubscribe    = "printer.objects.subscribe"
	methodObjectStatus = "printer.objects.status"
	methodServerInfo   = "server.info"
	methodStatusUpdate = "notify_status_update"

	// sessionSendBufferSize is the per-session outbound message buffer size.
	sessionSendBufferSize = 256
)

// rpcRequest is an incoming JSON-RPC 2.0 shaped envelope.
// The ID is kept raw so it can be echoed back untouched.
type rpcRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     json.RawMessage `json:"id"`
}

// rpcMessage is an outgoing JSON-RPC 2.0 shaped envelope.
type rpcMessage struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  any             `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Hub owns one device's realtime session set and fans status updates out
// to every live session.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	machine *printer.Machine
	version string

	sessions map[*Session]struct{}
	mu       sync.RWMutex
	nextConn atomic.Uint64
}

// Session represents one live realtime connection to a device instance.
type Session struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	connID uint64

	mu sync.RWMutex
	// subscriptions maps object name to the client's (ignored) filter params.
	subscriptions map[string]json.RawMessage
}

// upgrader configures the WebSocket upgrader. Origin checking is handled
// by the permissive CORS middleware.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// NewHub creates a realtime hub bound to one printer machine.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, machine *printer.Machine, version string) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		machine:  machine,
		version:  version,
		sessions: make(map[*Session]struct{}),
	}
}

// Run blocks until the context is cancelled, then force-closes all sessions.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a session to the hub.
func (h *Hub) Register(sess *Session) {
	h.mu.Lock()
	h.sessions[sess] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("realtime session opened", "connection_id", sess.connID, "sessions", h.SessionCount())
}

// Unregister removes a session from the hub. Removal is idempotent: only
// the goroutine that actually removes the session closes its send channel,
// so a racing close/error/broadcast-prune never double-closes.
func (h *Hub) Unregister(sess *Session) {
	h.mu.Lock()
	_, existed := h.sessions[sess]
	delete(h.sessions, sess)
	h.mu.Unlock()

	if existed {
		close(sess.send)
	}
	h.logger.Debug("realtime session closed", "connection_id", sess.connID, "sessions", h.SessionCount())
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// BroadcastStatus sends a notify_status_update notification with the given
// flat dotted-key map to every live session. A failed send prunes only the
// failing session; delivery to the remaining sessions continues.
func (h *Hub) BroadcastStatus(changed map[string]any) {
	msg := rpcMessage{
		Version: jsonrpcVersion,
		Method:  methodStatusUpdate,
		Params:  changed,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal status update", "error", err)
		return
	}

	// Snapshot the session set under the hub lock, send outside it.
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.mu.RUnlock()

	for _, sess := range sessions {
		if !sess.trySend(data) {
			h.logger.Warn("dropping unresponsive realtime session", "connection_id", sess.connID)
			h.Unregister(sess)
			if sess.conn != nil {
				sess.conn.Close()
			}
		}
	}
	if len(sessions) > 0 {
		h.logger.Debug("status update broadcast", "recipients", len(sessions))
	}
}

// closeAll disconnects all sessions and closes their send channels so the
// write pumps exit. Shutdown does not wait for a close handshake.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sess := range h.sessions {
		close(sess.send)
		if sess.conn != nil {
			sess.conn.Close()
		}
		delete(h.sessions, sess)
	}
}

// handleWebSocket upgrades the HTTP connection and starts the session.
// The server immediately pushes the connected handshake notification.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sess := &Session{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, sessionSendBufferSize),
		connID:        s.hub.nextConn.Add(1),
		subscriptions: make(map[string]json.RawMessage),
	}

	s.hub.Register(sess)

	go sess.writePump(s.wsCfg)
	go sess.readPump(s.wsCfg)

	sess.reply(methodConnected, map[string]any{"connection_id": sess.connID}, nil)
}

// readPump reads client requests from the connection.
func (sess *Session) readPump(cfg config.WebSocketConfig) {
	defer func() {
		sess.hub.Unregister(sess)
		sess.conn.Close()
	}()

	sess.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	sess.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.hub.logger.Warn("realtime read error", "error", err)
			} else {
				sess.hub.logger.Debug("realtime session disconnected", "error", err)
			}
			return
		}
		// Any client message resets the read deadline.
		//nolint:errcheck // Best-effort deadline reset
		sess.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		sess.handleMessage(message)
	}
}

// writePump writes queued messages and protocol pings to the connection.
func (sess *Session) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		sess.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-sess.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				sess.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes one incoming request. Unknown methods are logged
// and dropped without a reply; the connection stays open.
func (sess *Session) handleMessage(data []byte) {
	var req rpcRequest
	if err := json.Unmarshal(data, &req); err != nil {
		sess.hub.logger.Warn("invalid realtime message", "error", err)
		return
	}

	switch req.Method {
	case methodSubscribe:
		sess.handleSubscribe(req)
	case methodServerInfo:
		sess.handleServerInfo(req)
	default:
		sess.hub.logger.Warn("unknown realtime method", "method", req.Method)
	}
}

// handleSubscribe records the subscription map and replies with a status
// snapshot built from the same canonical mapping the query endpoint uses.
func (sess *Session) handleSubscribe(req rpcRequest) {
	var params struct {
		Objects map[string]json.RawMessage `json:"objects"`
	}
	//nolint:errcheck // Malformed params behave as an empty subscription
	json.Unmarshal(req.Params, &params)

	names := make([]string, 0, len(params.Objects))
	sess.mu.Lock()
	for name, filter := range params.Objects {
		sess.subscriptions[name] = filter
		names = append(names, name)
	}
	sess.mu.Unlock()

	sess.hub.logger.Debug("realtime subscription", "connection_id", sess.connID, "objects", names)

	status := sess.hub.machine.QueryObjects(names)
	sess.reply(methodObjectStatus, map[string]any{"status": status}, req.ID)
}

// handleServerInfo replies with connectivity flags and version.
func (sess *Session) handleServerInfo(req rpcRequest) {
	sess.reply(methodServerInfo, map[string]any{
		"klippy_connected":  true,
		"klippy_state":      "ready",
		"moonraker_version": sess.hub.version,
	}, req.ID)
}

// reply sends a notification to this session, echoing the request id when
// one was supplied.
func (sess *Session) reply(method string, params any, id json.RawMessage) {
	msg := rpcMessage{
		Version: jsonrpcVersion,
		Method:  method,
		Params:  params,
		ID:      id,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	sess.trySend(data)
}

// trySend attempts a non-blocking send to the session's outbound buffer.
// It reports failure on a full buffer and absorbs the panic from a channel
// closed by a concurrent unregister.
func (sess *Session) trySend(data []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	select {
	case sess.send <- data:
		return true
	default:
		return false
	}
}
