package hub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/coder/websocket"
	"github.com/google/uuid"
)

// sendQueueSize bounds each viewer's outbound queue. A viewer that falls
// this far behind is evicted rather than allowed to stall the broadcaster.
const sendQueueSize = 32

// writeTimeout bounds a single outbound frame write.
const writeTimeout = 5 * time.Second

// viewer is one live WebSocket connection in the hub's registry.
type viewer struct {
	id   string
	conn *ws.Conn
	send chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.RWMutex
	subscribed bool
	endpointID string // subscription filter; empty means all endpoints

	lastSeen atomic.Int64 // unix nanos of the last inbound message
	closed   atomic.Bool
}

func newViewer(conn *ws.Conn) *viewer {
	ctx, cancel := context.WithCancel(context.Background())
	v := &viewer{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	v.lastSeen.Store(time.Now().UnixNano())
	return v
}

// subscribe sets the viewer's endpoint filter. Resubscribing replaces the
// previous filter.
func (v *viewer) subscribe(endpointID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.subscribed = true
	v.endpointID = endpointID
}

// wants reports whether a broadcast for the given endpoint id should reach
// this viewer.
func (v *viewer) wants(endpointID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.subscribed {
		return false
	}
	return v.endpointID == "" || v.endpointID == endpointID
}

// enqueue offers a frame to the viewer's outbound queue without blocking.
// It reports false when the queue is full or the viewer is closed.
func (v *viewer) enqueue(frame []byte) bool {
	if v.closed.Load() {
		return false
	}
	select {
	case v.send <- frame:
		return true
	default:
		return false
	}
}

func (v *viewer) touch() {
	v.lastSeen.Store(time.Now().UnixNano())
}

func (v *viewer) lastSeenAt() time.Time {
	return time.Unix(0, v.lastSeen.Load())
}

// close tears the connection down once; later calls are no-ops.
func (v *viewer) close(code ws.StatusCode, reason string) {
	if v.closed.Swap(true) {
		return
	}
	v.cancel()
	_ = v.conn.Close(code, reason)
}

// writeLoop drains the outbound queue onto the wire. It exits when the
// viewer context is canceled or a write fails.
func (v *viewer) writeLoop() {
	for {
		select {
		case <-v.ctx.Done():
			return
		case frame := <-v.send:
			ctx, cancel := context.WithTimeout(v.ctx, writeTimeout)
			err := v.conn.Write(ctx, ws.MessageText, frame)
			cancel()
			if err != nil {
				v.close(ws.StatusAbnormalClosure, "write failed")
				return
			}
		}
	}
}
