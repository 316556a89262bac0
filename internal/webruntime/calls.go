package webruntime

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/hybridui/dombridge/internal/codec"
	"github.com/hybridui/dombridge/internal/registry"
	"github.com/hybridui/dombridge/internal/shared/id"
	"github.com/hybridui/dombridge/internal/transport"
)

// pendingCall is one invocation awaiting its call-response.
type pendingCall struct {
	// deliver settles the call from a call-response. For JS awaiters
	// it runs on the runtime loop.
	deliver func(result *codec.WireValue, werr *transport.WireError)

	// abort rejects the call at teardown without a round trip.
	abort func(err error)
}

// Invoke calls a native action handle from the isolated side and waits
// for its result. Always asynchronous: the call-request travels the
// transport and the caller suspends until the response, ctx
// cancellation, or instance teardown.
func (r *Runtime) Invoke(ctx context.Context, h codec.Handle, args []any) (any, error) {
	wireArgs, err := codec.EncodeArgs(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", registry.ErrNonSerializableArgument, err)
	}

	tr, err := r.transport()
	if err != nil {
		return nil, registry.ErrInstanceUnmounted
	}

	type result struct {
		value any
		err   error
	}
	ch := make(chan result, 1)

	corr := id.NewCallID().String()
	pc := &pendingCall{
		deliver: func(res *codec.WireValue, werr *transport.WireError) {
			if werr != nil {
				ch <- result{err: werr.Sentinel()}
				return
			}
			if res == nil {
				ch <- result{value: codec.Undefined}
				return
			}
			v, err := codec.Decode(*res)
			if err != nil {
				ch <- result{err: err}
				return
			}
			ch <- result{value: v}
		},
		abort: func(err error) {
			ch <- result{err: err}
		},
	}

	if err := r.addPending(corr, pc); err != nil {
		return nil, err
	}

	sendErr := tr.Send(transport.Envelope{
		Kind:          transport.KindCallRequest,
		InstanceID:    r.currentInstanceID(),
		Handle:        h,
		CorrelationID: corr,
		Args:          wireArgs,
	})
	if sendErr != nil {
		r.removePending(corr)
		if errors.Is(sendErr, transport.ErrTransportClosed) {
			return nil, registry.ErrInstanceUnmounted
		}
		return nil, sendErr
	}

	select {
	case out := <-ch:
		return out.value, out.err
	case <-ctx.Done():
		r.removePending(corr)
		return nil, ctx.Err()
	}
}

// settleCall resolves a pending invocation from a call-response. Runs
// on the loop.
func (r *Runtime) settleCall(env transport.Envelope) {
	r.mu.Lock()
	pc, ok := r.pending[env.CorrelationID]
	delete(r.pending, env.CorrelationID)
	r.mu.Unlock()

	if !ok {
		// Duplicate or post-teardown response; at-most-once delivery
		// means we can simply drop it.
		return
	}
	pc.deliver(env.Result, env.Error)
}

// rejectPending resolves every outstanding call at teardown time.
// Nothing is ever left hanging.
func (r *Runtime) rejectPending(stale map[string]*pendingCall, cause error) {
	err := registry.ErrInstanceUnmounted
	if cause != nil && errors.Is(cause, registry.ErrInstanceUnmounted) {
		err = cause
	} else if cause != nil {
		err = fmt.Errorf("%w: %v", registry.ErrInstanceUnmounted, cause)
	}
	for _, pc := range stale {
		pc.abort(err)
	}
}

func (r *Runtime) addPending(corr string, pc *pendingCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return registry.ErrInstanceUnmounted
	}
	r.pending[corr] = pc
	return nil
}

func (r *Runtime) removePending(corr string) {
	r.mu.Lock()
	delete(r.pending, corr)
	r.mu.Unlock()
}

func (r *Runtime) currentInstanceID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instanceID
}

// snapshotToJS converts a prop snapshot into a JS object. Function
// nodes become async stubs issuing call-requests. Runs on the loop.
func (r *Runtime) snapshotToJS(snap codec.Snapshot) (*goja.Object, error) {
	obj := r.vm.NewObject()
	for name, w := range snap {
		if w.Tag == codec.TagFunc {
			obj.Set(name, r.handleStub(w.Handle))
			continue
		}
		v, err := codec.Decode(w)
		if err != nil {
			return nil, fmt.Errorf("prop %q: %w", name, err)
		}
		obj.Set(name, r.toJS(v))
	}
	return obj, nil
}

func (r *Runtime) toJS(v any) goja.Value {
	if codec.IsUndefined(v) {
		return goja.Undefined()
	}
	return r.vm.ToValue(v)
}

// handleStub builds the JS function standing in for a native action.
// Calling it returns a promise settled when the call-response arrives.
func (r *Runtime) handleStub(h codec.Handle) goja.Value {
	vm := r.vm
	return vm.ToValue(func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := vm.NewPromise()
		promiseVal := vm.ToValue(promise)

		args := make([]any, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = a.Export()
		}

		wireArgs, err := codec.EncodeArgs(args)
		if err != nil {
			reject(vm.NewGoError(fmt.Errorf("%w: %v", registry.ErrNonSerializableArgument, err)))
			return promiseVal
		}

		tr, err := r.transport()
		if err != nil {
			reject(vm.NewGoError(registry.ErrInstanceUnmounted))
			return promiseVal
		}

		corr := id.NewCallID().String()
		pc := &pendingCall{
			deliver: func(res *codec.WireValue, werr *transport.WireError) {
				if werr != nil {
					reject(vm.NewGoError(werr.Sentinel()))
					return
				}
				if res == nil {
					resolve(goja.Undefined())
					return
				}
				v, err := codec.Decode(*res)
				if err != nil {
					reject(vm.NewGoError(err))
					return
				}
				resolve(r.toJS(v))
			},
			// The VM disappears with the instance; a promise held by
			// dead code settles nothing.
			abort: func(error) {},
		}

		if err := r.addPending(corr, pc); err != nil {
			reject(vm.NewGoError(err))
			return promiseVal
		}

		if err := tr.Send(transport.Envelope{
			Kind:          transport.KindCallRequest,
			InstanceID:    r.currentInstanceID(),
			Handle:        h,
			CorrelationID: corr,
			Args:          wireArgs,
		}); err != nil {
			r.removePending(corr)
			reject(vm.NewGoError(err))
		}
		return promiseVal
	})
}
