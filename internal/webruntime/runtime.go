package webruntime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/hybridui/dombridge/internal/transport"
)

// ErrRuntimeClosed indicates an operation on a stopped runtime.
var ErrRuntimeClosed = errors.New("web runtime closed")

// LogSink receives console output forwarded from the isolated runtime.
type LogSink func(level string, args []any)

// Options configures a Runtime.
type Options struct {
	// BaseURL resolves public asset paths served from local storage;
	// exposed to bundle code as __DOM_BASE_URL__.
	BaseURL string

	// OnReady fires once when the runtime reports mounted.
	OnReady func()

	// OnLog receives forwarded console output. When nil, output goes
	// to the logger only.
	OnLog LogSink

	Logger *zap.Logger
}

// Runtime is one isolated web runtime instance.
type Runtime struct {
	opts   Options
	logger *zap.Logger

	vm   *goja.Runtime
	loop chan func()
	done chan struct{}

	mu         sync.Mutex
	tr         transport.Transport
	started    bool
	closed     bool
	readySent  bool
	instanceID string
	pending    map[string]*pendingCall

	bridgeObj    *goja.Object
	propsCb      goja.Callable
	propsApplied bool
	embedOpts    map[string]any
}

// New creates an isolated runtime. It does nothing until Start.
func New(opts Options) *Runtime {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runtime{
		opts:    opts,
		logger:  opts.Logger,
		loop:    make(chan func(), 128),
		done:    make(chan struct{}),
		pending: make(map[string]*pendingCall),
	}
}

// Start boots the VM, wires the transport, and evaluates the bundle on
// the runtime loop. It satisfies the proxy Embedder contract.
func (r *Runtime) Start(ctx context.Context, bundle []byte, opts map[string]any, tr transport.Transport) error {
	r.mu.Lock()
	if r.started || r.closed {
		r.mu.Unlock()
		return ErrRuntimeClosed
	}
	r.started = true
	r.tr = tr
	r.mu.Unlock()

	r.vm = goja.New()
	go r.run()

	if err := r.setupGlobals(opts); err != nil {
		r.Stop()
		return err
	}

	tr.OnReceive(func(env transport.Envelope) {
		r.post(func() { r.handleEnvelope(env) })
	})
	tr.OnClose(func(cause error) {
		r.teardown(cause)
	})

	r.post(func() { r.evalBundle(bundle) })
	return nil
}

// Stop releases the runtime: the VM is interrupted, the loop stops,
// and pending invocations reject.
func (r *Runtime) Stop() error {
	r.teardown(nil)
	return nil
}

// run is the actor loop: every touch of the VM happens here.
func (r *Runtime) run() {
	for {
		select {
		case job := <-r.loop:
			job()
		case <-r.done:
			return
		}
	}
}

// post schedules a job on the runtime loop.
func (r *Runtime) post(job func()) {
	select {
	case r.loop <- job:
	case <-r.done:
	}
}

// call schedules a job and waits for it, for synchronous inspection.
func (r *Runtime) call(job func()) error {
	doneCh := make(chan struct{})
	select {
	case r.loop <- func() { job(); close(doneCh) }:
	case <-r.done:
		return ErrRuntimeClosed
	}
	select {
	case <-doneCh:
		return nil
	case <-r.done:
		return ErrRuntimeClosed
	}
}

func (r *Runtime) teardown(cause error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	stale := r.pending
	r.pending = make(map[string]*pendingCall)
	r.mu.Unlock()

	if r.vm != nil {
		r.vm.Interrupt("instance unmounted")
	}
	close(r.done)
	r.rejectPending(stale, cause)

	if cause != nil {
		r.logger.Debug("runtime torn down", zap.Error(cause))
	}
}

// evalBundle runs the compiled bundle source. Runs on the loop.
func (r *Runtime) evalBundle(bundle []byte) {
	if _, err := r.vm.RunScript("bundle.js", string(bundle)); err != nil {
		r.logger.Error("bundle evaluation failed", zap.Error(err))
		// A bundle that cannot evaluate can never become ready; kill
		// the transport so the native side tears the instance down.
		r.mu.Lock()
		tr := r.tr
		r.mu.Unlock()
		if tr != nil {
			tr.CloseWithError(fmt.Errorf("bundle evaluation failed: %w", err))
		}
		return
	}
	// Content loaded: report mounted unless the bundle already did.
	r.reportReady()
}

// reportReady sends the mounted lifecycle event exactly once. Runs on
// the loop.
func (r *Runtime) reportReady() {
	r.mu.Lock()
	if r.readySent || r.closed {
		r.mu.Unlock()
		return
	}
	r.readySent = true
	tr := r.tr
	instID := r.instanceID
	r.mu.Unlock()

	tr.Send(transport.Envelope{
		Kind:       transport.KindLifecycle,
		InstanceID: instID,
		Phase:      transport.PhaseMounted,
	})
	if r.opts.OnReady != nil {
		r.opts.OnReady()
	}
}

// handleEnvelope processes one inbound envelope. Runs on the loop.
func (r *Runtime) handleEnvelope(env transport.Envelope) {
	switch env.Kind {
	case transport.KindPropUpdate:
		r.applyProps(env)
	case transport.KindCallResponse:
		r.settleCall(env)
	case transport.KindLifecycle:
		// The native side announces unmount right before closing the
		// transport; teardown rides the close signal.
	default:
		r.logger.Debug("ignoring unexpected envelope",
			zap.String("kind", string(env.Kind)))
	}
}

// applyProps installs a new prop snapshot on the bridge global and
// notifies the bundle's subscriber. Runs on the loop.
func (r *Runtime) applyProps(env transport.Envelope) {
	r.mu.Lock()
	if env.InstanceID != "" {
		r.instanceID = env.InstanceID
	}
	cb := r.propsCb
	r.propsApplied = true
	r.mu.Unlock()

	propsObj, err := r.snapshotToJS(env.Snapshot)
	if err != nil {
		r.logger.Error("prop snapshot rejected", zap.Error(err))
		return
	}

	r.bridgeObj.Set("props", propsObj)
	r.bridgeObj.Set("instanceId", r.vm.ToValue(env.InstanceID))

	if cb != nil {
		if _, err := cb(goja.Undefined(), propsObj); err != nil {
			r.logger.Error("props subscriber failed", zap.Error(err))
		}
	}
}

func (r *Runtime) transport() (transport.Transport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.tr == nil {
		return nil, ErrRuntimeClosed
	}
	return r.tr, nil
}

func fmtLogArgs(args []goja.Value) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a.Export()
	}
	return out
}

func fmtArgsString(args []any) string {
	s := ""
	for i, a := range args {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%v", a)
	}
	return s
}
