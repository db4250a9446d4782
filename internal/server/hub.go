package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/ascend/server/internal/logger"
)

// Socket event types.
const (
	eventHello            = "hello"
	eventSheet            = "sheet"
	eventCharacterDeleted = "character_deleted"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 32
)

type helloEvent struct {
	Type      string `json:"type"`
	AccountID int64  `json:"account_id"`
	Username  string `json:"username"`
}

type sheetEvent struct {
	Type        string    `json:"type"`
	CharacterID int64     `json:"character_id"`
	Revision    int64     `json:"revision"`
	Sheet       sheetJSON `json:"sheet"`
}

type characterDeletedEvent struct {
	Type        string `json:"type"`
	CharacterID int64  `json:"character_id"`
}

// Hub fans events out to the sockets of each account.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*wsClient]struct{}
	closed  bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[int64]map[*wsClient]struct{})}
}

func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[c.accountID]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.clients[c.accountID] = set
	}
	set[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.accountID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.accountID)
	}
}

// Publish sends event to every socket of the account and returns how many
// sockets accepted it.
func (h *Hub) Publish(accountID int64, event any) int {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to encode socket event", "error", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients[accountID]))
	for c := range h.clients[accountID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.enqueue(data) {
			sent++
		}
	}
	return sent
}

// Count returns the number of registered sockets.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Close disconnects every socket and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*wsClient
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		c.close()
	}
}

// wsClient is one push socket. The server only writes events; inbound
// messages are read to service control frames and otherwise ignored.
type wsClient struct {
	conn      *websocket.Conn
	accountID int64
	ip        string
	release   func()
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSClient(conn *websocket.Conn, accountID int64, ip string) *wsClient {
	return &wsClient{
		conn:      conn,
		accountID: accountID,
		ip:        ip,
		release:   func() {},
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
	}
}

// enqueue queues data without blocking. A client whose buffer is full is
// too slow to keep up and gets disconnected.
func (c *wsClient) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		logger.Warning("Dropping slow WebSocket client",
			"account_id", c.accountID,
			"client_ip", c.ip)
		c.close()
		return false
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *wsClient) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *wsClient) readPump(maxMessageSize int64, pongWait time.Duration) {
	if maxMessageSize > 0 {
		c.conn.SetReadLimit(maxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket read failed",
					"account_id", c.accountID,
					"error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// handleWebSocketUpgrade authenticates the caller and upgrades to a push socket.
// Browsers cannot set headers on a WebSocket handshake, so the token may also
// come from the token query parameter.
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing session token"})
		return
	}
	claims, err := s.authenticate(token)
	if err != nil {
		writeError(w, r, err)
		return
	}

	clientIP := getRealIP(r, s.cfg.HTTP.TrustProxyHeaders)
	release, err := s.connLimiter.Acquire(clientIP)
	if err != nil {
		logger.Warning("WebSocket connection rejected",
			"reason", err,
			"remote_addr", r.RemoteAddr,
			"client_ip", clientIP)
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many connections, try again later"})
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied to the client.
		logger.Debug("WebSocket upgrade failed", "error", err)
		release()
		return
	}

	client := newWSClient(conn, claims.AccountID, clientIP)
	client.release = release
	if !s.hub.register(client) {
		conn.Close()
		release()
		return
	}

	logger.Info("WebSocket connected",
		"account_id", claims.AccountID,
		"client_ip", clientIP)
	client.enqueue(mustMarshal(helloEvent{Type: eventHello, AccountID: claims.AccountID, Username: claims.Username}))

	go s.serveSocket(client)
}

func (s *Server) serveSocket(c *wsClient) {
	defer func() {
		s.hub.unregister(c)
		c.release()
		logger.Info("WebSocket disconnected",
			"account_id", c.accountID,
			"client_ip", c.ip)
	}()

	interval := s.cfg.WebSocket.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go c.writePump(interval)
	c.readPump(s.cfg.WebSocket.MaxMessageSize, 2*interval)
	c.close()
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
