package webruntime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybridui/dombridge/internal/codec"
	"github.com/hybridui/dombridge/internal/proxy"
)

// Full stack: proxy instance driving an embedded goja runtime over an
// in-process transport pair.
func TestProxyWithEmbeddedRuntime(t *testing.T) {
	greeted := make(chan []any, 1)
	greet := codec.NativeFunc(func(ctx context.Context, args []any) (any, error) {
		greeted <- args
		name, _ := args[0].(string)
		return "hello " + name, nil
	})

	rt := New(Options{})
	inst, err := proxy.New(proxy.Config{
		Module: proxy.Module{
			Name: "widgets/greeter",
			Bundle: []byte(`
				globalThis.result = null;
				bridge.onProps(function (props) {
					if (globalThis.result !== null) return;
					globalThis.result = "";
					props.greet("world").then(function (reply) {
						globalThis.result = reply;
					});
				});
			`),
		},
		Embedder: rt,
		Props: map[string]any{
			"greet": greet,
			"name":  "Europa",
			"dom":   map[string]any{"scrollEnabled": true},
		},
	})
	require.NoError(t, err)

	require.NoError(t, inst.Mount(context.Background()))
	defer inst.Unmount()

	select {
	case args := <-greeted:
		assert.Equal(t, []any{"world"}, args)
	case <-time.After(2 * time.Second):
		t.Fatal("native action never invoked from the runtime")
	}

	waitEval(t, rt, `globalThis.result === "hello world" ? true : null`)

	assert.Equal(t, proxy.StateReady, waitReady(t, inst))
	assert.Equal(t, "Europa", eval(t, rt, "bridge.props.name"))
	assert.Equal(t, map[string]any{"scrollEnabled": true}, rt.EmbedOptions())
}

func TestProxyPropUpdateReachesRuntime(t *testing.T) {
	rt := New(Options{})
	inst, err := proxy.New(proxy.Config{
		Module: proxy.Module{
			Name:   "widgets/label",
			Bundle: []byte(`bridge.ready();`),
		},
		Embedder: rt,
		Props:    map[string]any{"name": "Europa"},
	})
	require.NoError(t, err)
	require.NoError(t, inst.Mount(context.Background()))
	defer inst.Unmount()

	waitReady(t, inst)
	waitEval(t, rt, `bridge.props.name === "Europa" ? true : null`)

	require.NoError(t, inst.SetProps(map[string]any{"name": "Io"}))
	waitEval(t, rt, `bridge.props.name === "Io" ? true : null`)
}

func TestProxyUnmountStopsRuntime(t *testing.T) {
	var mu sync.Mutex
	var logs []string

	rt := New(Options{
		OnLog: func(level string, args []any) {
			mu.Lock()
			logs = append(logs, fmtArgsString(args))
			mu.Unlock()
		},
	})
	inst, err := proxy.New(proxy.Config{
		Module: proxy.Module{
			Name:   "widgets/ticker",
			Bundle: []byte(`console.log("alive");`),
		},
		Embedder: rt,
		Props:    map[string]any{},
	})
	require.NoError(t, err)
	require.NoError(t, inst.Mount(context.Background()))
	waitReady(t, inst)

	require.NoError(t, inst.Unmount())

	_, invokeErr := rt.Invoke(context.Background(), "hdl_any", nil)
	assert.Error(t, invokeErr, "runtime must be unusable after unmount")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"alive"}, logs)
}

func waitReady(t *testing.T, inst *proxy.Instance) proxy.State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := inst.State(); s == proxy.StateReady {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("instance never became ready, state %s", inst.State())
	return proxy.StateUnmounted
}
