package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hybridui/dombridge/internal/codec"
	"github.com/hybridui/dombridge/internal/shared/id"
)

var (
	// ErrHandleReleased indicates an invoke against a handle whose
	// registry has released it.
	ErrHandleReleased = errors.New("function handle has been released")

	// ErrNonSerializableArgument indicates an invoke argument outside
	// the serializable domain.
	ErrNonSerializableArgument = errors.New("invoke argument is not serializable")

	// ErrInvokeTimeout indicates an invocation that exceeded the
	// configured bound.
	ErrInvokeTimeout = errors.New("invocation timed out")

	// ErrUserFunctionThrew wraps a panic or error raised by the user
	// function itself.
	ErrUserFunctionThrew = errors.New("native function failed")

	// ErrInstanceUnmounted indicates an invocation that was still in
	// flight when its owning instance was torn down.
	ErrInstanceUnmounted = errors.New("instance unmounted")
)

// DefaultInvokeTimeout bounds invocations when no explicit timeout is
// configured. The bridge contract leaves the value open; hanging forever
// is not an option.
const DefaultInvokeTimeout = 30 * time.Second

// Registry maps function handles to native functions for one instance.
type Registry struct {
	mu       sync.RWMutex
	byPtr    map[uintptr]codec.Handle
	funcs    map[codec.Handle]codec.NativeFunc
	released bool

	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithInvokeTimeout overrides the default per-call timeout.
func WithInvokeTimeout(d time.Duration) Option {
	return func(r *Registry) { r.timeout = d }
}

// WithLogger attaches a logger for invocation failures.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		byPtr:   make(map[uintptr]codec.Handle),
		funcs:   make(map[codec.Handle]codec.NativeFunc),
		timeout: DefaultInvokeTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register issues a handle for fn. The same physical function yields the
// same handle for the lifetime of the registry.
func (r *Registry) Register(fn codec.NativeFunc) codec.Handle {
	ptr := reflect.ValueOf(fn).Pointer()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		// Handles issued after release are dead on arrival; issuing
		// one anyway keeps Register total for the snapshot encoder.
		return codec.Handle(id.NewHandleID())
	}
	if h, ok := r.byPtr[ptr]; ok {
		return h
	}

	h := codec.Handle(id.NewHandleID())
	r.byPtr[ptr] = h
	r.funcs[h] = fn
	return h
}

// Release invalidates a single handle, used when a function prop is
// removed or replaced by a prop update.
func (r *Registry) Release(h codec.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn, ok := r.funcs[h]
	if !ok {
		return
	}
	delete(r.funcs, h)
	delete(r.byPtr, reflect.ValueOf(fn).Pointer())
}

// ReleaseAll invalidates every handle owned by this registry. Called on
// instance teardown; invokes observed afterwards fail with
// ErrHandleReleased.
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.released = true
	r.byPtr = make(map[uintptr]codec.Handle)
	r.funcs = make(map[codec.Handle]codec.NativeFunc)
}

// Len reports the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.funcs)
}

// Lookup resolves a handle to its registered function.
func (r *Registry) Lookup(h codec.Handle) (codec.NativeFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[h]
	return fn, ok
}

// Invoke runs the function behind h with args. The function always runs
// on its own goroutine; the caller suspends until a result, the timeout,
// or ctx cancellation. Each concurrent invoke of the same handle is an
// independent call and may complete in any order.
func (r *Registry) Invoke(ctx context.Context, h codec.Handle, args []any) (any, error) {
	fn, ok := r.Lookup(h)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandleReleased, h)
	}

	if err := validateArgs(args); err != nil {
		return nil, err
	}

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("%w: panic: %v", ErrUserFunctionThrew, rec)}
			}
		}()
		v, err := fn(callCtx, args)
		if err != nil {
			done <- outcome{err: fmt.Errorf("%w: %v", ErrUserFunctionThrew, err)}
			return
		}
		done <- outcome{value: v}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			r.logger.Debug("invocation failed",
				zap.String("handle", string(h)),
				zap.Error(out.err))
		}
		return out.value, out.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %s", ErrInvokeTimeout, r.timeout, h)
		}
		return nil, callCtx.Err()
	}
}

// validateArgs rejects arguments outside the serializable domain before
// the user function runs.
func validateArgs(args []any) error {
	for i, a := range args {
		if a != nil && reflect.TypeOf(a).Kind() == reflect.Func {
			return fmt.Errorf("%w: argument %d is a function", ErrNonSerializableArgument, i)
		}
		if _, err := codec.Encode(a); err != nil {
			return fmt.Errorf("%w: argument %d: %v", ErrNonSerializableArgument, i, err)
		}
	}
	return nil
}
