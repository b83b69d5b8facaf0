package server

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/candlelab/replay/internal/logger"
	"github.com/candlelab/replay/internal/types"
)

// hub fans one run's snapshots out to its websocket subscribers. It
// implements sink.Sink so the playback loop feeds it directly.
type hub struct {
	log *logger.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func newHub(log *logger.Logger) *hub {
	return &hub{
		log:   log,
		mu:    sync.Mutex{},
		conns: make(map[*websocket.Conn]bool),
	}
}

func (h *hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[conn] = true
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, conn)
}

// Emit implements sink.Sink. A failed write drops that subscriber; the
// replay never waits for a broken connection.
func (h *hub) Emit(snapshot types.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		if err := conn.WriteJSON(snapshot); err != nil {
			h.log.Debug("Dropping websocket subscriber", zap.Error(err))
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// Close implements sink.Sink.
func (h *hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		conn.Close()
	}

	h.conns = make(map[*websocket.Conn]bool)

	return nil
}
