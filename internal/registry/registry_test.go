package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybridui/dombridge/internal/codec"
)

func echo(ctx context.Context, args []any) (any, error) {
	return args, nil
}

func TestHandleStability(t *testing.T) {
	reg := New()
	fn := codec.NativeFunc(echo)

	h1 := reg.Register(fn)
	h2 := reg.Register(fn)
	assert.Equal(t, h1, h2, "same physical function must yield same handle")

	other := codec.NativeFunc(func(ctx context.Context, args []any) (any, error) { return nil, nil })
	h3 := reg.Register(other)
	assert.NotEqual(t, h1, h3, "distinct functions must yield distinct handles")
	assert.Equal(t, 2, reg.Len())
}

func TestInvoke(t *testing.T) {
	ctx := context.Background()

	t.Run("result round trip", func(t *testing.T) {
		reg := New()
		h := reg.Register(func(ctx context.Context, args []any) (any, error) {
			return map[string]any{"echo": args[0]}, nil
		})

		got, err := reg.Invoke(ctx, h, []any{"world"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"echo": "world"}, got)
	})

	t.Run("synchronous function is observed asynchronously", func(t *testing.T) {
		reg := New()
		entered := make(chan struct{})
		h := reg.Register(func(ctx context.Context, args []any) (any, error) {
			close(entered)
			return "done", nil
		})

		got, err := reg.Invoke(ctx, h, nil)
		require.NoError(t, err)
		assert.Equal(t, "done", got)

		select {
		case <-entered:
		default:
			t.Fatal("function never ran")
		}
	})

	t.Run("user error converted", func(t *testing.T) {
		reg := New()
		h := reg.Register(func(ctx context.Context, args []any) (any, error) {
			return nil, errors.New("boom")
		})

		_, err := reg.Invoke(ctx, h, nil)
		assert.ErrorIs(t, err, ErrUserFunctionThrew)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("user panic recovered", func(t *testing.T) {
		reg := New()
		h := reg.Register(func(ctx context.Context, args []any) (any, error) {
			panic("kaboom")
		})

		_, err := reg.Invoke(ctx, h, nil)
		assert.ErrorIs(t, err, ErrUserFunctionThrew)
		assert.Contains(t, err.Error(), "kaboom")
	})

	t.Run("function argument rejected", func(t *testing.T) {
		reg := New()
		h := reg.Register(echo)

		_, err := reg.Invoke(ctx, h, []any{codec.NativeFunc(echo)})
		assert.ErrorIs(t, err, ErrNonSerializableArgument)
	})

	t.Run("non serializable argument rejected", func(t *testing.T) {
		reg := New()
		h := reg.Register(echo)

		_, err := reg.Invoke(ctx, h, []any{struct{}{}})
		assert.ErrorIs(t, err, ErrNonSerializableArgument)
	})

	t.Run("timeout bounds a stalled function", func(t *testing.T) {
		reg := New(WithInvokeTimeout(20 * time.Millisecond))
		h := reg.Register(func(ctx context.Context, args []any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

		start := time.Now()
		_, err := reg.Invoke(ctx, h, nil)
		assert.ErrorIs(t, err, ErrInvokeTimeout)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestReleaseAll(t *testing.T) {
	ctx := context.Background()
	reg := New()
	fn := codec.NativeFunc(echo)
	h := reg.Register(fn)

	reg.ReleaseAll()

	_, err := reg.Invoke(ctx, h, nil)
	assert.ErrorIs(t, err, ErrHandleReleased)
	assert.Equal(t, 0, reg.Len())

	// Re-registering after release still issues a handle, but it stays
	// dead: teardown is terminal for this registry.
	h2 := reg.Register(fn)
	_, err = reg.Invoke(ctx, h2, nil)
	assert.ErrorIs(t, err, ErrHandleReleased)
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	reg := New()
	fn := codec.NativeFunc(echo)
	h := reg.Register(fn)

	reg.Release(h)
	_, err := reg.Invoke(ctx, h, nil)
	assert.ErrorIs(t, err, ErrHandleReleased)

	// A released function may be registered again under a fresh handle.
	h2 := reg.Register(fn)
	assert.NotEqual(t, h, h2)
	_, err = reg.Invoke(ctx, h2, nil)
	assert.NoError(t, err)
}

func TestConcurrentInvokesSameHandle(t *testing.T) {
	ctx := context.Background()
	reg := New()

	h := reg.Register(func(ctx context.Context, args []any) (any, error) {
		d, _ := args[0].(float64)
		time.Sleep(time.Duration(d) * time.Millisecond)
		return args[0], nil
	})

	var wg sync.WaitGroup
	results := make([]any, 4)
	delays := []float64{40, 1, 20, 5}

	for i, d := range delays {
		wg.Add(1)
		go func(i int, d float64) {
			defer wg.Done()
			v, err := reg.Invoke(ctx, h, []any{d})
			require.NoError(t, err)
			results[i] = v
		}(i, d)
	}
	wg.Wait()

	// Each call is independent: all complete with their own result
	// regardless of issue order.
	for i, d := range delays {
		assert.Equal(t, d, results[i])
	}
}
