package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybridui/dombridge/internal/infrastructure/monitoring"
	"github.com/hybridui/dombridge/internal/shared/id"
	"github.com/hybridui/dombridge/internal/transport"
)

func newAttachServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws/:instance", hub.HandleAttach)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialAttach(t *testing.T, srv *httptest.Server, inst id.InstanceID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + string(inst)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubAttachDeliversTransport(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := newAttachServer(t, hub)

	inst := id.NewInstanceID()
	ch, cancel, err := hub.Expect(inst)
	require.NoError(t, err)
	defer cancel()

	conn := dialAttach(t, srv, inst)

	var tr transport.Transport
	select {
	case tr = <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no transport delivered")
	}
	defer tr.Close()

	// Envelopes sent by the attached runtime reach the hub-side
	// transport in order.
	got := make(chan transport.Envelope, 2)
	tr.OnReceive(func(env transport.Envelope) { got <- env })

	for _, phase := range []transport.Phase{transport.PhaseMounted, transport.PhaseUnmounted} {
		frame, err := transport.EncodeFrame(transport.Envelope{
			Kind:       transport.KindLifecycle,
			InstanceID: string(inst),
			Phase:      phase,
		})
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
	}

	first := <-got
	second := <-got
	assert.Equal(t, transport.PhaseMounted, first.Phase)
	assert.Equal(t, transport.PhaseUnmounted, second.Phase)
	assert.Equal(t, 0, hub.Pending())
}

func TestHubRejectsUnknownInstance(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := newAttachServer(t, hub)

	url := srv.URL + "/ws/" + string(id.NewInstanceID())
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHubRejectsMalformedInstanceID(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := newAttachServer(t, hub)

	resp, err := http.Get(srv.URL + "/ws/not-an-id")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHubDuplicateExpect(t *testing.T) {
	hub := NewHub(nil, nil)
	inst := id.NewInstanceID()

	_, cancel, err := hub.Expect(inst)
	require.NoError(t, err)
	defer cancel()

	_, _, err = hub.Expect(inst)
	assert.ErrorIs(t, err, ErrAlreadyExpected)
}

func TestHubCancelWithdrawsSlot(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := newAttachServer(t, hub)
	inst := id.NewInstanceID()

	_, cancel, err := hub.Expect(inst)
	require.NoError(t, err)
	cancel()
	assert.Equal(t, 0, hub.Pending())

	resp, err := http.Get(srv.URL + "/ws/" + string(inst))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHubTracksConnectionGauge(t *testing.T) {
	m := monitoring.New()
	hub := NewHub(nil, m)
	srv := newAttachServer(t, hub)

	inst := id.NewInstanceID()
	ch, _, err := hub.Expect(inst)
	require.NoError(t, err)

	conn := dialAttach(t, srv, inst)
	tr := <-ch

	conn.Close()
	closed := make(chan struct{})
	tr.OnClose(func(error) { close(closed) })
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("transport did not observe close")
	}
}

func TestRemoteEmbedderBridgesEnvelopes(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := newAttachServer(t, hub)

	inst := id.NewInstanceID()
	near, far := transport.Pair()
	emb := NewRemoteEmbedder(hub, inst, 5*time.Second, nil)

	started := make(chan error, 1)
	go func() {
		started <- emb.Start(context.Background(), nil, nil, far)
	}()

	// Give Start a moment to register the expectation before dialing.
	require.Eventually(t, func() bool { return hub.Pending() == 1 },
		2*time.Second, 10*time.Millisecond)
	conn := dialAttach(t, srv, inst)
	require.NoError(t, <-started)

	t.Run("instance to runtime", func(t *testing.T) {
		require.NoError(t, near.Send(transport.Envelope{
			Kind:       transport.KindPropUpdate,
			InstanceID: string(inst),
		}))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		env, err := transport.DecodeFrame(data)
		require.NoError(t, err)
		assert.Equal(t, transport.KindPropUpdate, env.Kind)
	})

	t.Run("runtime to instance", func(t *testing.T) {
		got := make(chan transport.Envelope, 1)
		near.OnReceive(func(env transport.Envelope) { got <- env })

		frame, err := transport.EncodeFrame(transport.Envelope{
			Kind:       transport.KindLifecycle,
			InstanceID: string(inst),
			Phase:      transport.PhaseMounted,
		})
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

		select {
		case env := <-got:
			assert.Equal(t, transport.PhaseMounted, env.Phase)
		case <-time.After(2 * time.Second):
			t.Fatal("envelope not bridged")
		}
	})

	t.Run("stop closes the instance side", func(t *testing.T) {
		closed := make(chan struct{})
		near.OnClose(func(error) { close(closed) })
		require.NoError(t, emb.Stop())
		select {
		case <-closed:
		case <-time.After(2 * time.Second):
			t.Fatal("instance transport did not close")
		}
	})
}

func TestRemoteEmbedderAttachTimeout(t *testing.T) {
	hub := NewHub(nil, nil)
	inst := id.NewInstanceID()
	_, far := transport.Pair()

	emb := NewRemoteEmbedder(hub, inst, 50*time.Millisecond, nil)
	err := emb.Start(context.Background(), nil, nil, far)
	assert.ErrorIs(t, err, ErrAttachTimeout)
	assert.Equal(t, 0, hub.Pending())
}

func TestRemoteEmbedderContextCancel(t *testing.T) {
	hub := NewHub(nil, nil)
	inst := id.NewInstanceID()
	_, far := transport.Pair()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	emb := NewRemoteEmbedder(hub, inst, time.Minute, nil)
	go func() { done <- emb.Start(ctx, nil, nil, far) }()

	require.Eventually(t, func() bool { return hub.Pending() == 1 },
		2*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 0, hub.Pending())
}
