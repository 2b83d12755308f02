package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	ws "github.com/coder/websocket"

	"github.com/mocknest/mocknest/pkg/logging"
	"github.com/mocknest/mocknest/pkg/requestlog"
)

// DefaultKeepAlive is how long a viewer may stay silent before eviction.
// Well-behaved clients ping every 30 seconds, so three missed pings mean
// the connection is gone.
const DefaultKeepAlive = 90 * time.Second

// ErrClosed indicates the hub has been shut down.
var ErrClosed = errors.New("hub closed")

// Config configures a Hub.
type Config struct {
	// History serves getHistory queries. Required.
	History requestlog.Store

	// KeepAlive is the silent-viewer eviction window; zero means
	// DefaultKeepAlive.
	KeepAlive time.Duration

	// Logger receives operational events. Nil means discard.
	Logger *slog.Logger
}

// Hub is the per-tenant viewer registry and broadcaster.
type Hub struct {
	history   requestlog.Store
	keepAlive time.Duration
	log       *slog.Logger

	mu      sync.RWMutex
	viewers map[string]*viewer
	closed  bool

	done chan struct{}
}

// New creates a Hub and starts its keep-alive reaper.
func New(cfg Config) *Hub {
	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	h := &Hub{
		history:   cfg.History,
		keepAlive: keepAlive,
		log:       log,
		viewers:   make(map[string]*viewer),
		done:      make(chan struct{}),
	}
	go h.reap()
	return h
}

// ViewerCount returns the number of live viewers.
func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// HandleUpgrade accepts a WebSocket upgrade and runs the viewer until its
// connection ends. It blocks for the lifetime of the connection.
func (h *Hub) HandleUpgrade(w http.ResponseWriter, r *http.Request) error {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		// Viewers connect from arbitrary dashboard origins.
		InsecureSkipVerify: true,
		CompressionMode:    ws.CompressionDisabled,
	})
	if err != nil {
		return err
	}

	v := newViewer(conn)
	if err := h.add(v); err != nil {
		v.close(ws.StatusGoingAway, "shutting down")
		return err
	}
	h.log.Debug("viewer connected", "viewer", v.id, "remote", r.RemoteAddr)

	go v.writeLoop()
	h.readLoop(v)

	h.remove(v.id)
	v.close(ws.StatusNormalClosure, "")
	h.log.Debug("viewer disconnected", "viewer", v.id)
	return nil
}

// Broadcast delivers one log entry to every subscribed viewer. Viewers
// whose queues are full are evicted; delivery to the rest proceeds.
func (h *Hub) Broadcast(entry *requestlog.Entry) {
	frame, err := encodeServerMessage(MsgRequest, entry)
	if err != nil {
		h.log.Error("encoding broadcast", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*viewer, 0, len(h.viewers))
	for _, v := range h.viewers {
		if v.wants(entry.EndpointID) {
			targets = append(targets, v)
		}
	}
	h.mu.RUnlock()

	var stalled []*viewer
	for _, v := range targets {
		if !v.enqueue(frame) {
			stalled = append(stalled, v)
		}
	}
	for _, v := range stalled {
		h.log.Warn("evicting slow viewer", "viewer", v.id)
		h.evict(v, ws.StatusPolicyViolation, "send queue full")
	}
}

// Close evicts all viewers and stops the reaper. The hub cannot be reused.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	victims := make([]*viewer, 0, len(h.viewers))
	for _, v := range h.viewers {
		victims = append(victims, v)
	}
	h.viewers = map[string]*viewer{}
	h.mu.Unlock()

	close(h.done)
	for _, v := range victims {
		v.close(ws.StatusGoingAway, "shutting down")
	}
}

func (h *Hub) add(v *viewer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.viewers[v.id] = v
	return nil
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.viewers, id)
}

func (h *Hub) evict(v *viewer, code ws.StatusCode, reason string) {
	h.remove(v.id)
	v.close(code, reason)
}

// readLoop consumes control messages until the connection ends.
func (h *Hub) readLoop(v *viewer) {
	for {
		_, data, err := v.conn.Read(v.ctx)
		if err != nil {
			return
		}
		v.touch()
		h.handleMessage(v, data)
	}
}

func (h *Hub) handleMessage(v *viewer, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(v, "malformed message")
		return
	}

	switch msg.Type {
	case MsgPing:
		h.send(v, MsgPong, nil)
	case MsgSubscribe:
		v.subscribe(msg.EndpointID)
	case MsgGetHistory:
		entries, err := h.history.List(requestlog.Query{
			EndpointID: msg.EndpointID,
			Limit:      requestlog.HistoryCap,
		})
		if err != nil {
			h.log.Error("history query", "viewer", v.id, "error", err)
			h.sendError(v, "history unavailable")
			return
		}
		if entries == nil {
			entries = []*requestlog.Entry{}
		}
		h.send(v, MsgHistory, entries)
	default:
		h.sendError(v, "unknown message type: "+sanitize(msg.Type))
	}
}

func (h *Hub) send(v *viewer, typ string, data any) {
	frame, err := encodeServerMessage(typ, data)
	if err != nil {
		h.log.Error("encoding message", "type", typ, "error", err)
		return
	}
	if !v.enqueue(frame) {
		h.evict(v, ws.StatusPolicyViolation, "send queue full")
	}
}

func (h *Hub) sendError(v *viewer, text string) {
	h.send(v, MsgError, text)
}

// reap evicts viewers that have gone silent past the keep-alive window.
func (h *Hub) reap() {
	ticker := time.NewTicker(h.keepAlive / 3)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-h.keepAlive)
			h.mu.RLock()
			var stale []*viewer
			for _, v := range h.viewers {
				if v.lastSeenAt().Before(cutoff) {
					stale = append(stale, v)
				}
			}
			h.mu.RUnlock()
			for _, v := range stale {
				h.log.Debug("evicting silent viewer", "viewer", v.id)
				h.evict(v, ws.StatusGoingAway, "keep-alive timeout")
			}
		}
	}
}

// sanitize keeps error echoes short and printable.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 || r > 126 {
			return -1
		}
		return r
	}, s)
	if len(s) > 32 {
		s = s[:32]
	}
	return s
}
