package presenter

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"toastd/internal/eventbus"
	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

// Frame types sent to browser clients.
const (
	OpPresent = "present"
	OpUpdate  = "update"
	OpRemove  = "remove"
	OpPower   = "power"
	OpEvent   = "event"
)

// Client requests.
const (
	OpDismiss = "dismiss"
	OpAction  = "action"
)

// Frame is the JSON message exchanged with browser clients.
type Frame struct {
	Op       string          `json:"op"`
	ID       string          `json:"id,omitempty"`
	Toast    *View           `json:"toast,omitempty"`
	LowPower *bool           `json:"low_power,omitempty"`
	Event    *eventbus.Event `json:"event,omitempty"`
}

const (
	wsSendBuffer   = 32
	wsWriteTimeout = 5 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingEvery    = 50 * time.Second
	wsMaxMessage   = 4096
)

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}

// WebSocket presents toasts to connected browsers. New clients receive the
// toast currently on screen. A client may dismiss the toast or trigger its
// action; either ends the presentation with DismissUserInteraction.
//
// Sends never block: each client has a bounded buffer and is disconnected
// when it falls behind.
type WebSocket struct {
	log      logx.Logger
	upgrader websocket.Upgrader
	origins  atomic.Pointer[map[string]bool]

	mu        sync.Mutex
	clients   map[*wsClient]struct{}
	current   *toast.Item
	onDismiss func(toast.DismissalMethod)
	lowPower  bool
}

func NewWebSocket(log logx.Logger, allowedOrigins []string) *WebSocket {
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &WebSocket{
		log:     log,
		clients: map[*wsClient]struct{}{},
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	h.SetAllowedOrigins(allowedOrigins)
	return h
}

// SetAllowedOrigins replaces the Origin allow-list for new connections.
// An empty list accepts any origin; "*" does too.
func (h *WebSocket) SetAllowedOrigins(origins []string) {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	h.origins.Store(&allowed)
}

func (h *WebSocket) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	allowed := *h.origins.Load()
	return origin == "" || len(allowed) == 0 || allowed[origin] || allowed["*"]
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (h *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", logx.Err(err))
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}

	// The buffer is empty here, so the greeting frames cannot block.
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.lowPower {
		lp := true
		c.send <- mustFrame(Frame{Op: OpPower, LowPower: &lp})
	}
	if h.current != nil {
		v := ViewOf(*h.current)
		c.send <- mustFrame(Frame{Op: OpPresent, ID: v.ID, Toast: &v})
	}
	h.mu.Unlock()

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *WebSocket) readLoop(c *wsClient) {
	defer h.drop(c)

	c.conn.SetReadLimit(wsMaxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return
		}
		h.handleClientFrame(f)
	}
}

func (h *WebSocket) writeLoop(c *wsClient) {
	ping := time.NewTicker(wsPingEvery)
	defer ping.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.drop(c)
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(c)
				return
			}
		}
	}
}

func (h *WebSocket) drop(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

func (h *WebSocket) handleClientFrame(f Frame) {
	h.mu.Lock()
	if h.current == nil || h.current.ID.String() != f.ID || h.onDismiss == nil {
		h.mu.Unlock()
		return
	}
	it := *h.current
	switch f.Op {
	case OpDismiss:
		if !it.Options.AllowsUserDismiss {
			h.mu.Unlock()
			return
		}
	case OpAction:
		if it.Options.Action == nil {
			h.mu.Unlock()
			return
		}
	default:
		h.mu.Unlock()
		return
	}
	onDismiss := h.onDismiss
	h.onDismiss = nil
	h.mu.Unlock()

	if f.Op == OpAction && it.Options.Action.Handler != nil {
		runAction(h.log, it)
	}
	onDismiss(toast.DismissUserInteraction)
}

// broadcastLocked queues msg for every client, disconnecting those whose
// buffer is full.
func (h *WebSocket) broadcastLocked(msg []byte) {
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			c.close()
			h.log.Debug("websocket client too slow; disconnected")
		}
	}
}

func (h *WebSocket) Present(it toast.Item, onDismiss func(toast.DismissalMethod)) {
	v := ViewOf(it)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = &it
	h.onDismiss = onDismiss
	h.broadcastLocked(mustFrame(Frame{Op: OpPresent, ID: v.ID, Toast: &v}))
}

func (h *WebSocket) Update(it toast.Item) {
	v := ViewOf(it)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil || h.current.ID != it.ID {
		return
	}
	h.current = &it
	h.broadcastLocked(mustFrame(Frame{Op: OpUpdate, ID: v.ID, Toast: &v}))
}

func (h *WebSocket) RemoveActive() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return
	}
	id := h.current.ID.String()
	h.current = nil
	h.onDismiss = nil
	h.broadcastLocked(mustFrame(Frame{Op: OpRemove, ID: id}))
}

func (h *WebSocket) SetLowPowerMode(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lowPower = enabled
	h.broadcastLocked(mustFrame(Frame{Op: OpPower, LowPower: &enabled}))
}

// ForwardEvents relays bus events to every client until ctx is done or ch
// is closed.
func (h *WebSocket) ForwardEvents(ctx context.Context, ch <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			msg := mustFrame(Frame{Op: OpEvent, Event: &e})
			h.mu.Lock()
			h.broadcastLocked(msg)
			h.mu.Unlock()
		}
	}
}

func (h *WebSocket) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *WebSocket) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func mustFrame(f Frame) []byte {
	b, err := json.Marshal(f)
	if err != nil {
		b, _ = json.Marshal(Frame{Op: f.Op, ID: f.ID})
	}
	return b
}
