package transport

import (
	"errors"
	"sync"
)

var (
	// ErrTransportClosed indicates a send on a torn-down transport.
	ErrTransportClosed = errors.New("transport closed")

	// ErrQueueFull indicates the bounded outbound queue overflowed,
	// which means the receiving side stopped draining.
	ErrQueueFull = errors.New("transport queue full")
)

// DefaultQueueSize bounds how many envelopes may be in flight per
// direction before Send fails.
const DefaultQueueSize = 256

// Transport is one side of a native/runtime message channel.
type Transport interface {
	// Send queues an envelope for asynchronous, in-order delivery to
	// the peer. Fire-and-forget: a nil error means queued, not
	// delivered.
	Send(Envelope) error

	// OnReceive registers the single consumer of inbound envelopes.
	OnReceive(func(Envelope))

	// OnClose registers a callback invoked once when the transport
	// tears down, with the cause (nil on orderly close).
	OnClose(func(error))

	// Close tears down both directions.
	Close() error

	// CloseWithError tears down recording an abnormal cause, which
	// close callbacks on both sides observe.
	CloseWithError(cause error)
}

// pairCore is the state shared by the two endpoints of an in-process
// pair. Closing either endpoint closes the pair.
type pairCore struct {
	mu      sync.Mutex
	done    chan struct{}
	closed  bool
	cause   error
	closeCb []func(error)
}

func (p *pairCore) close(cause error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cause = cause
	cbs := p.closeCb
	close(p.done)
	p.mu.Unlock()

	for _, cb := range cbs {
		cb(cause)
	}
}

func (p *pairCore) onClose(cb func(error)) {
	p.mu.Lock()
	if p.closed {
		cause := p.cause
		p.mu.Unlock()
		cb(cause)
		return
	}
	p.closeCb = append(p.closeCb, cb)
	p.mu.Unlock()
}

// Endpoint is one side of an in-process transport pair.
type Endpoint struct {
	core *pairCore
	out  chan Envelope
	in   chan Envelope

	handlerMu sync.RWMutex
	handler   func(Envelope)
	dispatch  sync.Once
}

// Pair creates a connected in-process transport pair with the default
// queue size. Envelopes sent on one endpoint arrive, in order, at the
// other endpoint's handler.
func Pair() (*Endpoint, *Endpoint) {
	return PairSize(DefaultQueueSize)
}

// PairSize creates a connected pair with an explicit per-direction
// queue bound.
func PairSize(size int) (*Endpoint, *Endpoint) {
	if size <= 0 {
		size = DefaultQueueSize
	}
	core := &pairCore{done: make(chan struct{})}
	ab := make(chan Envelope, size)
	ba := make(chan Envelope, size)

	a := &Endpoint{core: core, out: ab, in: ba}
	b := &Endpoint{core: core, out: ba, in: ab}
	return a, b
}

// Send queues env for the peer. Fails once the pair is closed or the
// direction's queue is full.
func (e *Endpoint) Send(env Envelope) error {
	select {
	case <-e.core.done:
		return ErrTransportClosed
	default:
	}

	select {
	case e.out <- env:
		return nil
	case <-e.core.done:
		return ErrTransportClosed
	default:
		return ErrQueueFull
	}
}

// OnReceive registers the inbound handler and starts dispatch. A single
// goroutine drains the direction, which preserves send order.
func (e *Endpoint) OnReceive(handler func(Envelope)) {
	e.handlerMu.Lock()
	e.handler = handler
	e.handlerMu.Unlock()

	e.dispatch.Do(func() {
		go func() {
			for {
				select {
				case env := <-e.in:
					e.handlerMu.RLock()
					h := e.handler
					e.handlerMu.RUnlock()
					if h != nil {
						h(env)
					}
				case <-e.core.done:
					return
				}
			}
		}()
	})
}

// OnClose registers a teardown callback. If the pair is already closed
// the callback runs immediately.
func (e *Endpoint) OnClose(cb func(error)) {
	e.core.onClose(cb)
}

// Close tears down the pair. Undelivered envelopes are dropped;
// at-most-once delivery permits loss, never duplication.
func (e *Endpoint) Close() error {
	e.core.close(nil)
	return nil
}

// CloseWithError tears down the pair recording a cause, used when the
// runtime side detached abnormally.
func (e *Endpoint) CloseWithError(cause error) {
	e.core.close(cause)
}
