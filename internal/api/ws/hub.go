// Package ws exposes proxy instance transports over WebSocket so that
// out-of-process web runtimes can attach as the far side of a mounted
// instance. The daemon announces an instance via Hub.Expect; a runtime
// connects to /ws/:instance and the upgraded connection becomes that
// instance's transport.
package ws

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hybridui/dombridge/internal/infrastructure/logging"
	"github.com/hybridui/dombridge/internal/infrastructure/monitoring"
	"github.com/hybridui/dombridge/internal/shared/id"
	"github.com/hybridui/dombridge/internal/transport"
)

// ErrAlreadyExpected is returned when an attach slot already exists for
// an instance.
var ErrAlreadyExpected = errors.New("attach already expected for instance")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy enforced by CORS middleware upstream
	},
}

// Hub tracks instances waiting for a runtime to attach.
type Hub struct {
	mu      sync.Mutex
	pending map[id.InstanceID]chan transport.Transport
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewHub creates an attach hub. Both logger and metrics may be nil.
func NewHub(logger *logging.Logger, metrics *monitoring.Metrics) *Hub {
	if logger == nil {
		logger = &logging.Logger{Logger: zap.NewNop()}
	}
	return &Hub{
		pending: make(map[id.InstanceID]chan transport.Transport),
		logger:  logger.Named("ws"),
		metrics: metrics,
	}
}

// Expect announces that an instance is waiting for a runtime. The
// returned channel delivers the attached transport exactly once; cancel
// withdraws the slot.
func (h *Hub) Expect(inst id.InstanceID) (<-chan transport.Transport, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.pending[inst]; exists {
		return nil, nil, ErrAlreadyExpected
	}
	ch := make(chan transport.Transport, 1)
	h.pending[inst] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.pending[inst] == ch {
			delete(h.pending, inst)
		}
	}
	return ch, cancel, nil
}

// Pending returns the number of instances awaiting attach.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// HandleAttach upgrades GET /ws/:instance and hands the connection to
// the waiting instance. Unknown or already-attached instances are
// rejected before the upgrade.
func (h *Hub) HandleAttach(c *gin.Context) {
	raw := c.Param("instance")
	if !id.IsValid(raw, id.InstancePrefix) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed instance id"})
		return
	}
	inst := id.InstanceID(raw)

	h.mu.Lock()
	ch, ok := h.pending[inst]
	if ok {
		delete(h.pending, inst)
	}
	h.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no instance awaiting attach"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.Instance(inst))
		// Upgrade already wrote the HTTP error; put the slot back so
		// the runtime can retry.
		h.mu.Lock()
		if _, exists := h.pending[inst]; !exists {
			h.pending[inst] = ch
		}
		h.mu.Unlock()
		return
	}

	connID := uuid.NewString()
	tr := transport.NewWS(conn)
	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		tr.OnClose(func(error) { h.metrics.WSConnections.Dec() })
	}
	tr.OnClose(func(cause error) {
		h.logger.Info("runtime detached",
			logging.Instance(inst),
			zap.String("conn_id", connID),
			zap.Error(cause))
	})
	h.logger.Info("runtime attached",
		logging.Instance(inst),
		zap.String("conn_id", connID))
	ch <- tr
}
