package webruntime

import (
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// setupGlobals configures the isolated global scope: dangerous globals
// removed, console captured, the bridge object installed.
func (r *Runtime) setupGlobals(embedOpts map[string]any) error {
	return r.call(func() {
		vm := r.vm

		// No escape hatches into the host environment.
		vm.Set("require", goja.Undefined())
		vm.Set("process", goja.Undefined())
		vm.Set("module", goja.Undefined())
		vm.Set("exports", goja.Undefined())

		// Timers are driven by the native side, not the runtime.
		noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
		vm.Set("setTimeout", noop)
		vm.Set("setInterval", noop)

		console := vm.NewObject()
		for _, level := range []string{"log", "info", "warn", "error", "debug"} {
			console.Set(level, r.makeConsoleFunc(level))
		}
		vm.Set("console", console)

		// Public assets resolve against local storage, not network.
		vm.Set("__DOM_BASE_URL__", r.opts.BaseURL)

		bridge := vm.NewObject()
		bridge.Set("instanceId", "")
		bridge.Set("props", vm.NewObject())
		bridge.Set("ready", func(call goja.FunctionCall) goja.Value {
			r.reportReady()
			return goja.Undefined()
		})
		bridge.Set("onProps", func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) == 0 {
				return goja.Undefined()
			}
			cb, ok := goja.AssertFunction(call.Arguments[0])
			if !ok {
				panic(vm.NewTypeError("onProps expects a function"))
			}
			r.mu.Lock()
			r.propsCb = cb
			applied := r.propsApplied
			r.mu.Unlock()

			// A subscriber arriving after the initial snapshot still
			// sees the current props.
			if applied {
				cb(goja.Undefined(), r.bridgeObj.Get("props"))
			}
			return goja.Undefined()
		})
		vm.Set("bridge", bridge)
		r.bridgeObj = bridge

		r.embedOpts = embedOpts
	})
}

// makeConsoleFunc forwards one console level to the native log sink.
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := fmtLogArgs(call.Arguments)
		if r.opts.OnLog != nil {
			r.opts.OnLog(level, args)
		}
		msg := fmtArgsString(args)
		switch level {
		case "error":
			r.logger.Error("console", zap.String("message", msg))
		case "warn":
			r.logger.Warn("console", zap.String("message", msg))
		default:
			r.logger.Info("console", zap.String("message", msg))
		}
		return goja.Undefined()
	}
}

// EmbedOptions returns the verbatim passthrough options this runtime
// was started with (the native component's reserved "dom" prop).
func (r *Runtime) EmbedOptions() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.embedOpts
}
