package proxy

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hybridui/dombridge/internal/codec"
	"github.com/hybridui/dombridge/internal/infrastructure/monitoring"
	"github.com/hybridui/dombridge/internal/registry"
	"github.com/hybridui/dombridge/internal/shared/id"
	"github.com/hybridui/dombridge/internal/transport"
)

// State is the proxy instance lifecycle state.
type State string

const (
	StateUnmounted  State = "unmounted"
	StateMounting   State = "mounting"
	StateReady      State = "ready"
	StateUnmounting State = "unmounting"
)

var (
	// ErrNotMounted indicates an operation on an instance that is not
	// mounted.
	ErrNotMounted = errors.New("instance is not mounted")

	// ErrAlreadyMounted indicates a second Mount on a live instance.
	ErrAlreadyMounted = errors.New("instance is already mounted")

	// ErrInstanceSpent indicates a Mount on an instance that has
	// completed its lifecycle. Unmounted is terminal; create a fresh
	// instance to remount.
	ErrInstanceSpent = errors.New("instance lifecycle is complete")
)

// Module identifies a compiled boundary module.
type Module struct {
	Name   string
	Bundle []byte
}

// Config assembles an instance.
type Config struct {
	Module   Module
	Embedder Embedder

	// Props is the initial prop map, including any reserved "dom"
	// passthrough options.
	Props map[string]any

	// InvokeTimeout bounds native action invocations; zero means the
	// registry default.
	InvokeTimeout time.Duration

	// QueueSize bounds each transport direction; zero means the
	// transport default.
	QueueSize int

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Instance is one mounted boundary component: the native-side proxy
// object owning a transport, a call registry, and an isolated runtime.
type Instance struct {
	id       id.InstanceID
	module   Module
	embedder Embedder
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	cfg Config

	mu     sync.Mutex
	state  State
	spent  bool
	props  map[string]any
	queue  []transport.Envelope
	reg    *registry.Registry
	near   *transport.Endpoint
	cancel context.CancelFunc
	ctx    context.Context

	// handle bookkeeping for top-level function props
	propHandles map[string]codec.Handle
	propFnPtrs  map[string]uintptr
}

// New creates an unmounted instance for a compiled boundary module.
func New(cfg Config) (*Instance, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("proxy: embedder is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Instance{
		id:          id.NewInstanceID(),
		module:      cfg.Module,
		embedder:    cfg.Embedder,
		logger:      cfg.Logger.With(zap.String("module", cfg.Module.Name)),
		metrics:     cfg.Metrics,
		cfg:         cfg,
		state:       StateUnmounted,
		props:       cfg.Props,
		propHandles: map[string]codec.Handle{},
		propFnPtrs:  map[string]uintptr{},
	}, nil
}

// ID returns the unique instance id.
func (i *Instance) ID() id.InstanceID { return i.id }

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Mount allocates the transport and call registry, boots the isolated
// runtime with the module bundle, and sends the initial prop snapshot.
// The instance reaches ready when the runtime reports mounted.
func (i *Instance) Mount(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.spent {
		return ErrInstanceSpent
	}
	if i.state != StateUnmounted {
		return ErrAlreadyMounted
	}

	bridgeProps, opts := splitProps(i.props)
	if err := validateProps(bridgeProps); err != nil {
		return err
	}

	var regOpts []registry.Option
	if i.cfg.InvokeTimeout > 0 {
		regOpts = append(regOpts, registry.WithInvokeTimeout(i.cfg.InvokeTimeout))
	}
	regOpts = append(regOpts, registry.WithLogger(i.logger))
	i.reg = registry.New(regOpts...)

	near, far := transport.PairSize(i.cfg.QueueSize)
	i.near = near
	i.ctx, i.cancel = context.WithCancel(context.Background())

	near.OnReceive(i.handleEnvelope)
	near.OnClose(i.handleTransportClose)

	if err := i.embedder.Start(ctx, i.module.Bundle, opts, far); err != nil {
		i.cancel()
		near.Close()
		i.reg.ReleaseAll()
		return fmt.Errorf("start isolated runtime: %w", err)
	}

	snap, err := codec.EncodeSnapshot(bridgeProps, i.reg)
	if err != nil {
		// validateProps makes this unreachable for prop errors, but
		// keep the cleanup path honest.
		i.cancel()
		i.reg.ReleaseAll()
		near.Close()
		i.embedder.Stop()
		i.spent = true
		return err
	}
	i.trackFunctionProps(bridgeProps, snap)

	i.state = StateMounting
	i.sendLocked(transport.Envelope{
		Kind:       transport.KindPropUpdate,
		InstanceID: i.id.String(),
		Snapshot:   snap,
	})

	i.metrics.RecordMount()
	i.logger.Info("instance mounting", zap.String("instance", i.id.String()))
	return nil
}

// SetProps re-derives the prop snapshot and sends one prop-update. New
// top-level function props are registered, handles of removed or
// replaced functions are released. Before ready the update is queued;
// it flushes, in order, when the runtime reports mounted.
func (i *Instance) SetProps(props map[string]any) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != StateMounting && i.state != StateReady {
		return ErrNotMounted
	}

	bridgeProps, _ := splitProps(props)
	if err := validateProps(bridgeProps); err != nil {
		return err
	}

	snap, err := codec.EncodeSnapshot(bridgeProps, i.reg)
	if err != nil {
		return err
	}

	i.releaseStaleHandles(bridgeProps)
	i.trackFunctionProps(bridgeProps, snap)
	i.props = props

	env := transport.Envelope{
		Kind:       transport.KindPropUpdate,
		InstanceID: i.id.String(),
		Snapshot:   snap,
	}
	if i.state == StateMounting {
		i.queue = append(i.queue, env)
		return nil
	}
	i.sendLocked(env)
	return nil
}

// Unmount tears the instance down: every handle is released, in-flight
// invocations are rejected, the transport closes, and the runtime is
// stopped. Unmounted is terminal.
func (i *Instance) Unmount() error {
	i.mu.Lock()
	if i.state != StateMounting && i.state != StateReady {
		i.mu.Unlock()
		return ErrNotMounted
	}
	i.state = StateUnmounting
	i.sendLocked(transport.Envelope{
		Kind:       transport.KindLifecycle,
		InstanceID: i.id.String(),
		Phase:      transport.PhaseUnmounted,
	})
	i.teardownLocked(nil)
	i.mu.Unlock()

	i.logger.Info("instance unmounted", zap.String("instance", i.id.String()))
	return nil
}

// teardownLocked finishes the lifecycle. Caller holds i.mu.
func (i *Instance) teardownLocked(cause error) {
	i.cancel()
	i.reg.ReleaseAll()
	if cause != nil {
		i.near.CloseWithError(fmt.Errorf("%w: %v", registry.ErrInstanceUnmounted, cause))
	} else {
		i.near.CloseWithError(registry.ErrInstanceUnmounted)
	}
	if err := i.embedder.Stop(); err != nil {
		i.logger.Warn("embedder stop failed", zap.Error(err))
	}
	i.queue = nil
	i.state = StateUnmounted
	i.spent = true
	i.metrics.RecordUnmount()
}

// handleEnvelope consumes inbound envelopes from the isolated runtime.
func (i *Instance) handleEnvelope(env transport.Envelope) {
	i.metrics.RecordEnvelope(string(env.Kind), monitoring.DirectionInbound)

	switch env.Kind {
	case transport.KindLifecycle:
		if env.Phase == transport.PhaseMounted {
			i.onRuntimeMounted()
		}
	case transport.KindCallRequest:
		// Each call runs independently; same-handle calls may
		// complete out of order.
		go i.serveCall(env)
	default:
		i.logger.Debug("ignoring unexpected envelope",
			zap.String("kind", string(env.Kind)))
	}
}

// onRuntimeMounted flushes queued prop updates, in order, and moves the
// instance to ready.
func (i *Instance) onRuntimeMounted() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != StateMounting {
		return
	}
	i.state = StateReady
	for _, env := range i.queue {
		i.sendLocked(env)
	}
	i.queue = nil
	i.logger.Info("instance ready", zap.String("instance", i.id.String()))
}

// serveCall answers one call-request with exactly one call-response.
func (i *Instance) serveCall(env transport.Envelope) {
	start := time.Now()

	respond := func(result *codec.WireValue, callErr error) {
		resp := transport.Envelope{
			Kind:          transport.KindCallResponse,
			InstanceID:    i.id.String(),
			CorrelationID: env.CorrelationID,
		}
		status := "ok"
		if callErr != nil {
			resp.Error = transport.NewWireError(callErr)
			status = resp.Error.Code
		} else {
			resp.Result = result
		}
		i.metrics.RecordInvocation(status, time.Since(start))

		i.mu.Lock()
		i.sendLocked(resp)
		i.mu.Unlock()
	}

	args, err := codec.DecodeArgs(env.Args)
	if err != nil {
		respond(nil, err)
		return
	}

	value, err := i.reg.Invoke(i.ctx, env.Handle, args)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			err = registry.ErrInstanceUnmounted
		}
		respond(nil, err)
		return
	}

	wire, err := codec.Encode(value)
	if err != nil {
		respond(nil, fmt.Errorf("result not serializable: %w", err))
		return
	}
	respond(&wire, nil)
}

// handleTransportClose reacts to the runtime side detaching abnormally.
// The body runs on its own goroutine: close callbacks fire synchronously
// from Close, which may already hold i.mu during our own teardown.
func (i *Instance) handleTransportClose(cause error) {
	if cause == nil {
		return
	}

	go func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		if i.state != StateMounting && i.state != StateReady {
			return
		}
		i.logger.Warn("isolated runtime detached", zap.Error(cause))
		i.state = StateUnmounting
		i.teardownLocked(cause)
	}()
}

// sendLocked delivers an envelope best effort. Caller holds i.mu.
func (i *Instance) sendLocked(env transport.Envelope) {
	if err := i.near.Send(env); err != nil {
		i.logger.Debug("send failed",
			zap.String("kind", string(env.Kind)),
			zap.Error(err))
		return
	}
	i.metrics.RecordEnvelope(string(env.Kind), monitoring.DirectionOutbound)
}

// releaseStaleHandles releases handles whose function prop was removed
// or replaced by a different function. Caller holds i.mu.
func (i *Instance) releaseStaleHandles(next map[string]any) {
	for name, h := range i.propHandles {
		v, ok := next[name]
		if ok {
			if fn, isFn := v.(codec.NativeFunc); isFn &&
				reflect.ValueOf(fn).Pointer() == i.propFnPtrs[name] {
				continue
			}
		}
		i.reg.Release(h)
		delete(i.propHandles, name)
		delete(i.propFnPtrs, name)
	}
}

// trackFunctionProps records the handle behind each top-level function
// prop. Caller holds i.mu.
func (i *Instance) trackFunctionProps(props map[string]any, snap codec.Snapshot) {
	for name, v := range props {
		fn, ok := v.(codec.NativeFunc)
		if !ok {
			continue
		}
		i.propHandles[name] = snap[name].Handle
		i.propFnPtrs[name] = reflect.ValueOf(fn).Pointer()
	}
}

// validateProps fails fast, before anything is sent or registered, on
// props outside the serializable domain.
func validateProps(props map[string]any) error {
	for name, v := range props {
		if _, ok := v.(codec.NativeFunc); ok {
			continue
		}
		if v != nil && reflect.TypeOf(v).Kind() == reflect.Func {
			return fmt.Errorf("prop %q: %w: function props must be NativeFunc", name, codec.ErrUnsupportedValue)
		}
		if _, err := codec.Encode(v); err != nil {
			return fmt.Errorf("prop %q: %w", name, err)
		}
	}
	return nil
}
