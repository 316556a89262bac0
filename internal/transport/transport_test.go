package transport

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybridui/dombridge/internal/codec"
	"github.com/hybridui/dombridge/internal/registry"
)

func collect(t *testing.T, tr Transport, n int) <-chan []Envelope {
	t.Helper()
	out := make(chan []Envelope, 1)
	var got []Envelope
	tr.OnReceive(func(env Envelope) {
		got = append(got, env)
		if len(got) == n {
			out <- got
		}
	})
	return out
}

func TestPairOrdering(t *testing.T) {
	for _, n := range []int{2, 10, 100} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			a, b := Pair()
			defer a.Close()

			done := collect(t, b, n)
			for i := 0; i < n; i++ {
				require.NoError(t, a.Send(Envelope{
					Kind:          KindPropUpdate,
					CorrelationID: fmt.Sprintf("seq-%d", i),
				}))
			}

			select {
			case got := <-done:
				for i, env := range got {
					assert.Equal(t, fmt.Sprintf("seq-%d", i), env.CorrelationID)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("envelopes never delivered")
			}
		})
	}
}

func TestPairBidirectional(t *testing.T) {
	a, b := Pair()
	defer a.Close()

	fromA := collect(t, b, 1)
	fromB := collect(t, a, 1)

	require.NoError(t, a.Send(Envelope{Kind: KindPropUpdate}))
	require.NoError(t, b.Send(Envelope{Kind: KindCallRequest}))

	select {
	case got := <-fromA:
		assert.Equal(t, KindPropUpdate, got[0].Kind)
	case <-time.After(time.Second):
		t.Fatal("a->b not delivered")
	}
	select {
	case got := <-fromB:
		assert.Equal(t, KindCallRequest, got[0].Kind)
	case <-time.After(time.Second):
		t.Fatal("b->a not delivered")
	}
}

func TestPairClose(t *testing.T) {
	t.Run("send after close fails", func(t *testing.T) {
		a, b := Pair()
		require.NoError(t, a.Close())

		assert.ErrorIs(t, a.Send(Envelope{Kind: KindPropUpdate}), ErrTransportClosed)
		assert.ErrorIs(t, b.Send(Envelope{Kind: KindPropUpdate}), ErrTransportClosed)
	})

	t.Run("close notifies both sides", func(t *testing.T) {
		a, b := Pair()

		notified := make(chan error, 2)
		a.OnClose(func(err error) { notified <- err })
		b.OnClose(func(err error) { notified <- err })

		cause := errors.New("runtime detached")
		b.CloseWithError(cause)

		for i := 0; i < 2; i++ {
			select {
			case err := <-notified:
				assert.Equal(t, cause, err)
			case <-time.After(time.Second):
				t.Fatal("close callback never ran")
			}
		}
	})

	t.Run("callback registered after close runs immediately", func(t *testing.T) {
		a, _ := Pair()
		require.NoError(t, a.Close())

		ran := false
		a.OnClose(func(err error) { ran = true })
		assert.True(t, ran)
	})
}

func TestPairQueueBound(t *testing.T) {
	a, _ := PairSize(2)
	defer a.Close()

	// No consumer on the far side: the third send overflows.
	require.NoError(t, a.Send(Envelope{Kind: KindPropUpdate}))
	require.NoError(t, a.Send(Envelope{Kind: KindPropUpdate}))
	assert.ErrorIs(t, a.Send(Envelope{Kind: KindPropUpdate}), ErrQueueFull)
}

func TestFrameRoundTrip(t *testing.T) {
	result := codec.WireValue{Tag: codec.TagString, Str: "ok"}
	env := Envelope{
		Kind:          KindCallResponse,
		InstanceID:    "inst_1",
		CorrelationID: "call_1",
		Result:        &result,
	}

	data, err := EncodeFrame(env)
	require.NoError(t, err)

	back, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, env, back)
}

func TestDecodeFrameRejectsMissingKind(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"instance_id":"inst_1"}`))
	assert.Error(t, err)

	_, err = DecodeFrame([]byte(`not json`))
	assert.Error(t, err)
}

func TestWireErrorMapping(t *testing.T) {
	cases := []struct {
		in   error
		code string
	}{
		{registry.ErrHandleReleased, CodeHandleReleased},
		{registry.ErrNonSerializableArgument, CodeNonSerializableArgument},
		{registry.ErrInvokeTimeout, CodeTimeout},
		{registry.ErrUserFunctionThrew, CodeUserFunctionThrew},
		{registry.ErrInstanceUnmounted, CodeInstanceUnmounted},
		{codec.ErrNonTopLevelFunction, CodeSerialization},
		{errors.New("anything else"), CodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			we := NewWireError(fmt.Errorf("wrapped: %w", tc.in))
			assert.Equal(t, tc.code, we.Code)

			if tc.code != CodeInternal && tc.code != CodeSerialization {
				assert.ErrorIs(t, we.Sentinel(), tc.in)
			}
		})
	}
}

func TestWebSocketTransport(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := make(chan *WS, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		server <- NewWS(conn)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	client := NewWS(conn)
	defer client.Close()

	remote := <-server
	defer remote.Close()

	t.Run("ordered delivery", func(t *testing.T) {
		const n = 20
		done := collect(t, remote, n)
		for i := 0; i < n; i++ {
			require.NoError(t, client.Send(Envelope{
				Kind:          KindCallRequest,
				CorrelationID: fmt.Sprintf("seq-%d", i),
			}))
		}

		select {
		case got := <-done:
			for i, env := range got {
				assert.Equal(t, fmt.Sprintf("seq-%d", i), env.CorrelationID)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("envelopes never delivered")
		}
	})

	t.Run("peer disconnect surfaces as close", func(t *testing.T) {
		closed := make(chan error, 1)
		remote.OnClose(func(err error) { closed <- err })

		client.Close()

		select {
		case err := <-closed:
			assert.ErrorIs(t, err, ErrTransportClosed)
		case <-time.After(2 * time.Second):
			t.Fatal("remote never observed disconnect")
		}
	})
}
