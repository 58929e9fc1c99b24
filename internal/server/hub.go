package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/impa/website/internal/content"
	"github.com/impa/website/internal/events"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsSendBuffer = 32
)

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	// admin clients also receive draft news.
	admin bool
}

// NewsLookup resolves the news item a photo event refers to.
type NewsLookup interface {
	NewsByID(id int64) (content.NewsItem, error)
}

// Hub streams notifier events to websocket clients at /api/events.
//
// Anonymous clients see the public site: events about draft news are dropped
// and publish transitions are reported as additions and deletions. Clients
// only receive; anything they send is discarded. A client whose send buffer is
// full is disconnected.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewHub returns a Hub accepting connections from origin, or from the same
// host when origin is empty.
func NewHub(origin string) *Hub {
	h := &Hub{clients: make(map[*wsClient]struct{})}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			if o == "" || o == origin {
				return true
			}
			u, err := url.Parse(o)
			return err == nil && u.Host == r.Host
		},
	}
	return h
}

// Attach forwards every event of n to the connected clients. news decides
// whether a photo change concerns a published item; when nil, news photo
// events only reach admin clients.
func (h *Hub) Attach(n *events.Notifier, news NewsLookup) (detach func()) {
	return n.SubscribeAll(func(_ context.Context, e events.Event) error {
		full, err := json.Marshal(e)
		if err != nil {
			return err
		}
		var public []byte
		if pe, ok := publicEvent(e, news); ok {
			if public, err = json.Marshal(pe); err != nil {
				return err
			}
		}
		h.broadcast(full, public)
		return nil
	})
}

// publicEvent returns e as an anonymous visitor may see it. ok is false when
// the event concerns draft news only.
func publicEvent(e events.Event, news NewsLookup) (events.Event, bool) {
	switch e.Kind {
	case events.NewsAdded:
		n, _ := e.After.(content.NewsItem)
		return e, n.Published()
	case events.NewsUpdated:
		before, _ := e.Before.(content.NewsItem)
		after, _ := e.After.(content.NewsItem)
		switch {
		case before.Published() && after.Published():
			return e, true
		case after.Published():
			return events.Event{Kind: events.NewsAdded, Time: e.Time, After: after}, true
		case before.Published():
			return events.Event{Kind: events.NewsDeleted, Time: e.Time, After: map[string]int64{"id": after.ID}}, true
		}
		return events.Event{}, false
	case events.NewsDeleted:
		before, _ := e.Before.(content.NewsItem)
		return e, before.Published()
	case events.NewsPhotoUpdated:
		pc, _ := e.After.(content.PhotoChange)
		id, err := strconv.ParseInt(pc.ID, 10, 64)
		if err != nil || news == nil {
			return events.Event{}, false
		}
		n, err := news.NewsByID(id)
		return e, err == nil && n.Published()
	}
	return e, true
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast sends full to admin clients and public to the others. A nil
// public is not sent.
func (h *Hub) broadcast(full, public []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		data := full
		if !c.admin {
			if public == nil {
				continue
			}
			data = public
		}
		select {
		case c.send <- data:
		default:
			slog.Warn("Dropping slow websocket client", "remote", c.conn.RemoteAddr())
			h.removeLocked(c)
		}
	}
}

func (h *Hub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Serve upgrades the connection and streams events until the client goes
// away. admin clients receive draft news events.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, admin bool) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied.
		slog.InfoContext(r.Context(), "Websocket upgrade failed", "err", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer), admin: admin}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	slog.InfoContext(r.Context(), "Websocket client connected", "remote", conn.RemoteAddr(), "admin", admin)

	go h.readPump(c)
	h.writePump(c)
}

// readPump consumes control frames and detects disconnection.
func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.mu.Lock()
		h.removeLocked(c)
		h.mu.Unlock()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}
