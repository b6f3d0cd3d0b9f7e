package gateway

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
)

const (
	defaultReplayCap = 500
	sendBuffer       = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub manages WebSocket clients and fans streaming indicator results out
// to the clients subscribed to the result's symbol. Each symbol has its own
// sequence counter and replay buffer so clients can resume after a gap.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]bool
	seqs      map[string]int64
	replay    map[string]*ReplayBuffer
	replayCap int

	// OnClients, when set, receives the client count after every change.
	OnClients func(n int)
	// OnDrop, when set, is called for every envelope a slow client missed.
	OnDrop func()
}

// NewHub creates a hub keeping replayCap envelopes per symbol.
func NewHub(replayCap int) *Hub {
	if replayCap <= 0 {
		replayCap = defaultReplayCap
	}
	return &Hub{
		clients:   make(map[*Client]bool),
		seqs:      make(map[string]int64),
		replay:    make(map[string]*ReplayBuffer),
		replayCap: replayCap,
	}
}

// ServeWS upgrades the request and registers a client for symbol.
// The optional "since" query parameter replays buffered envelopes with a
// greater sequence number before live delivery starts.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, symbol string) {
	var since int64
	if s := r.URL.Query().Get("since"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			http.Error(w, "since must be a non-negative integer", http.StatusBadRequest)
			return
		}
		since = n
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "component", "gateway", "error", err)
		return
	}
	h.Register(conn, symbol, since)
}

// Register attaches conn as a subscriber of symbol and starts its pumps.
func (h *Hub) Register(conn *websocket.Conn, symbol string, since int64) *Client {
	client := &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    h,
		symbol: symbol,
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	// Replay under the lock so no live envelope can overtake it.
	for _, e := range h.replayRange(symbol, since+1, math.MaxInt64) {
		client.enqueue(e.Data)
	}
	h.mu.Unlock()

	slog.Info("ws client connected", "component", "gateway", "symbol", symbol, "clients", count)
	h.reportClients(count)

	go client.writePump()
	go client.readPump()
	return client
}

// RemoveClient unregisters c and closes its send channel. Safe to call twice.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("ws client disconnected", "component", "gateway", "symbol", c.symbol, "clients", count)
	h.reportClients(count)
}

// Replay returns the buffered envelopes of symbol with seq in [from, to].
func (h *Hub) Replay(symbol string, from, to int64) [][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entries := h.replayRange(symbol, from, to)
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

// replayRange requires h.mu.
func (h *Hub) replayRange(symbol string, from, to int64) []replayEntry {
	rb, ok := h.replay[symbol]
	if !ok {
		return nil
	}
	return rb.Range(from, to)
}

// Seq returns the last sequence number broadcast for symbol.
func (h *Hub) Seq(symbol string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seqs[symbol]
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. Their read pumps unregister them.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.conn.Close()
	}
}

func (h *Hub) reportClients(n int) {
	if h.OnClients != nil {
		h.OnClients(n)
	}
}
