package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hybridui/dombridge/internal/infrastructure/logging"
	"github.com/hybridui/dombridge/internal/shared/id"
	"github.com/hybridui/dombridge/internal/transport"
)

// ErrAttachTimeout is returned when no runtime attaches within the
// configured window.
var ErrAttachTimeout = errors.New("timed out waiting for runtime attach")

// DefaultAttachTimeout bounds how long Start waits for a runtime.
const DefaultAttachTimeout = 30 * time.Second

// RemoteEmbedder runs a proxy instance against an out-of-process web
// runtime attached through the Hub. The bundle itself is not pushed
// over the socket: the attaching runtime loads its artifact from the
// asset endpoint, so Start only waits for the connection and then pumps
// envelopes between the instance transport and the socket.
type RemoteEmbedder struct {
	hub     *Hub
	inst    id.InstanceID
	timeout time.Duration
	logger  *logging.Logger

	mu   sync.Mutex
	sock transport.Transport
}

// NewRemoteEmbedder creates an embedder that waits for the given
// instance id on hub. A non-positive timeout uses the default.
func NewRemoteEmbedder(hub *Hub, inst id.InstanceID, timeout time.Duration, logger *logging.Logger) *RemoteEmbedder {
	if timeout <= 0 {
		timeout = DefaultAttachTimeout
	}
	if logger == nil {
		logger = &logging.Logger{Logger: zap.NewNop()}
	}
	return &RemoteEmbedder{
		hub:     hub,
		inst:    inst,
		timeout: timeout,
		logger:  logger.Named("remote"),
	}
}

// Start blocks until a runtime attaches (or the timeout/context
// expires), then bridges the two transports. The opts passthrough is
// ignored here: a remote runtime receives its options from the page
// that embeds it.
func (e *RemoteEmbedder) Start(ctx context.Context, bundle []byte, opts map[string]any, tr transport.Transport) error {
	ch, cancel, err := e.hub.Expect(e.inst)
	if err != nil {
		return fmt.Errorf("expect attach: %w", err)
	}

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case sock := <-ch:
		e.mu.Lock()
		e.sock = sock
		e.mu.Unlock()
		bridge(tr, sock)
		e.logger.Info("bridged instance to remote runtime", logging.Instance(e.inst))
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	case <-timer.C:
		cancel()
		return ErrAttachTimeout
	}
}

// Stop closes the socket side. The instance transport observes the
// close through the bridge.
func (e *RemoteEmbedder) Stop() error {
	e.mu.Lock()
	sock := e.sock
	e.sock = nil
	e.mu.Unlock()
	if sock != nil {
		return sock.Close()
	}
	return nil
}

// bridge pumps envelopes between two transports and propagates closes
// in both directions. Each side's dispatcher preserves per-direction
// order, so the bridged path keeps the ordering guarantee end to end.
func bridge(a, b transport.Transport) {
	a.OnReceive(func(env transport.Envelope) { _ = b.Send(env) })
	b.OnReceive(func(env transport.Envelope) { _ = a.Send(env) })
	a.OnClose(func(cause error) { b.CloseWithError(cause) })
	b.OnClose(func(cause error) { a.CloseWithError(cause) })
}
