package transport

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// WS adapts a websocket connection into a Transport, used when the
// isolated runtime is attached through the dev bridge server rather
// than embedded in-process.
type WS struct {
	conn *websocket.Conn
	out  chan Envelope

	mu      sync.Mutex
	closed  bool
	cause   error
	closeCb []func(error)
	done    chan struct{}

	handlerMu sync.RWMutex
	handler   func(Envelope)
	inbox     chan Envelope
	dispatch  sync.Once
}

// NewWS wraps an established websocket connection. The write and read
// loops start immediately; inbound envelopes buffer until OnReceive
// registers the consumer.
func NewWS(conn *websocket.Conn) *WS {
	w := &WS{
		conn:  conn,
		out:   make(chan Envelope, DefaultQueueSize),
		inbox: make(chan Envelope, DefaultQueueSize),
		done:  make(chan struct{}),
	}
	go w.writeLoop()
	go w.readLoop()
	return w
}

// Send queues an envelope for in-order delivery to the peer.
func (w *WS) Send(env Envelope) error {
	select {
	case <-w.done:
		return ErrTransportClosed
	default:
	}

	select {
	case w.out <- env:
		return nil
	case <-w.done:
		return ErrTransportClosed
	default:
		return ErrQueueFull
	}
}

// OnReceive registers the inbound handler and starts dispatch.
func (w *WS) OnReceive(handler func(Envelope)) {
	w.handlerMu.Lock()
	w.handler = handler
	w.handlerMu.Unlock()

	w.dispatch.Do(func() {
		go func() {
			for {
				select {
				case env := <-w.inbox:
					w.handlerMu.RLock()
					h := w.handler
					w.handlerMu.RUnlock()
					if h != nil {
						h(env)
					}
				case <-w.done:
					return
				}
			}
		}()
	})
}

// OnClose registers a teardown callback.
func (w *WS) OnClose(cb func(error)) {
	w.mu.Lock()
	if w.closed {
		cause := w.cause
		w.mu.Unlock()
		cb(cause)
		return
	}
	w.closeCb = append(w.closeCb, cb)
	w.mu.Unlock()
}

// Close tears down the connection.
func (w *WS) Close() error {
	w.teardown(nil)
	return nil
}

// CloseWithError tears down the connection recording a cause.
func (w *WS) CloseWithError(cause error) {
	w.teardown(cause)
}

func (w *WS) teardown(cause error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.cause = cause
	cbs := w.closeCb
	close(w.done)
	w.mu.Unlock()

	w.conn.Close()
	for _, cb := range cbs {
		cb(cause)
	}
}

// writeLoop is the single writer: one goroutine per connection keeps
// frame order equal to send order.
func (w *WS) writeLoop() {
	for {
		select {
		case env := <-w.out:
			data, err := EncodeFrame(env)
			if err != nil {
				continue
			}
			if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				w.teardown(fmt.Errorf("%w: write: %v", ErrTransportClosed, err))
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *WS) readLoop() {
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			w.teardown(fmt.Errorf("%w: read: %v", ErrTransportClosed, err))
			return
		}
		env, err := DecodeFrame(data)
		if err != nil {
			// Malformed frame from the peer; drop it rather than
			// kill the transport.
			continue
		}
		select {
		case w.inbox <- env:
		case <-w.done:
			return
		}
	}
}
