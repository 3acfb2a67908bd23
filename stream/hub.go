// Package stream broadcasts published frames to websocket viewers.
package stream

import (
	"encoding/binary"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/ecosim/components"
)

// Frame wire layout, little endian:
//
//	tick    uint64
//	count   uint32
//	count × { x, y, z float32; species uint8 }
const (
	headerSize   = 12
	particleSize = 13
)

// EncodeFrame appends the binary form of a frame to dst.
func EncodeFrame(dst []byte, tick int64, ps []components.Particle) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, uint64(tick))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(ps)))
	for i := range ps {
		p := &ps[i]
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(p.Position.X))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(p.Position.Y))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(p.Position.Z))
		dst = append(dst, byte(p.Species))
	}
	return dst
}

// DecodeFrame parses a frame produced by EncodeFrame. Velocities are not
// transmitted and come back zero.
func DecodeFrame(b []byte) (int64, []components.Particle, bool) {
	if len(b) < headerSize {
		return 0, nil, false
	}
	tick := int64(binary.LittleEndian.Uint64(b))
	n := int(binary.LittleEndian.Uint32(b[8:]))
	body := b[headerSize:]
	if len(body) != n*particleSize {
		return 0, nil, false
	}
	ps := make([]components.Particle, n)
	for i := range ps {
		rec := body[i*particleSize:]
		ps[i].Position = components.Vec3{
			X: math.Float32frombits(binary.LittleEndian.Uint32(rec)),
			Y: math.Float32frombits(binary.LittleEndian.Uint32(rec[4:])),
			Z: math.Float32frombits(binary.LittleEndian.Uint32(rec[8:])),
		}
		ps[i].Species = components.SpeciesID(rec[12])
	}
	return tick, ps, true
}

// Hub fans frames out to connected clients. Slow clients miss frames
// rather than stalling the simulation.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader

	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once

	writeTimeout time.Duration
	buf          []byte
}

// NewHub starts the broadcaster goroutine.
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 4),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeTimeout: 2 * time.Second,
	}

	h.wg.Add(1)
	go h.run()

	return h
}

// Clients returns the number of connected viewers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish encodes a frame and queues it for broadcast. It never blocks; when
// the queue is full the frame is dropped and false is returned. Publish must
// be called from a single goroutine.
func (h *Hub) Publish(tick int64, ps []components.Particle) bool {
	if h.Clients() == 0 {
		return false
	}
	h.buf = EncodeFrame(h.buf[:0], tick, ps)
	msg := append([]byte(nil), h.buf...)
	select {
	case h.broadcast <- msg:
		return true
	case <-h.done:
		return false
	default:
		return false
	}
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("stream upgrade failed", "error", err)
		return
	}
	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	// Drain reads so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				select {
				case h.unregister <- conn:
				case <-h.done:
				}
				return
			}
		}
	}()
}

func (h *Hub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			slog.Info("stream client connected", "remote", conn.RemoteAddr().String())

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			conns := make([]*websocket.Conn, 0, len(h.clients))
			for conn := range h.clients {
				conns = append(conns, conn)
			}
			h.mu.RUnlock()

			var failed []*websocket.Conn
			for _, conn := range conns {
				conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
				if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
					failed = append(failed, conn)
					conn.Close()
				}
			}

			if len(failed) > 0 {
				h.mu.Lock()
				for _, conn := range failed {
					delete(h.clients, conn)
				}
				h.mu.Unlock()
			}
		}
	}
}

// Close disconnects every client and stops the broadcaster.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		h.mu.Lock()
		for conn := range h.clients {
			conn.Close()
			delete(h.clients, conn)
		}
		h.mu.Unlock()
	})
	return nil
}
