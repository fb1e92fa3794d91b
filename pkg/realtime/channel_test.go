package realtime_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/waypoint/pkg/realtime"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newChannel(t *testing.T, server *fakeServer, opts ...realtime.Option) *realtime.Channel {
	t.Helper()
	base := []realtime.Option{
		realtime.WithDialer(server),
		realtime.WithJoinTimeout(200 * time.Millisecond),
		realtime.WithHeartbeat(time.Hour, time.Hour),
		realtime.WithReconnectDelay(time.Hour),
	}
	ch, err := realtime.New("wss://push.example.com/socket/websocket", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func TestNew_RejectsNonSocketURL(t *testing.T) {
	_, err := realtime.New("https://push.example.com/socket")
	assert.Error(t, err)
}

func TestConnect_Joins(t *testing.T) {
	server := newFakeServer()
	ch := newChannel(t, server, realtime.WithToken(func() string { return "secret" }))

	require.NoError(t, ch.Connect(context.Background(), "acct", "user"))

	snap := ch.Snapshot()
	assert.Equal(t, "sdk:acct:user", snap.Topic)
	assert.True(t, snap.Connected)
	assert.False(t, snap.Connecting)
	assert.NotEmpty(t, snap.JoinRef)
	assert.Equal(t, 1, snap.Dials)

	joins := server.received(realtime.EventJoin)
	require.Len(t, joins, 1)
	assert.Equal(t, "sdk:acct:user", joins[0].Topic)
	assert.Equal(t, joins[0].JoinRef, joins[0].Ref)
	assert.Equal(t, "v2", joins[0].Payload["response_format"])
	assert.Equal(t, "secret", joins[0].Payload["token"])
	assert.Contains(t, server.urls[0], "vsn=2.0.0")

	// Same topic again is a no-op.
	require.NoError(t, ch.Connect(context.Background(), "acct", "user"))
	assert.Equal(t, 1, ch.Snapshot().Dials)
}

func TestConnect_ValidatesIdentity(t *testing.T) {
	ch := newChannel(t, newFakeServer())
	assert.ErrorIs(t, ch.Connect(context.Background(), "", "user"), realtime.ErrNoUser)
	assert.ErrorIs(t, ch.Connect(context.Background(), "acct", ""), realtime.ErrNoUser)
}

func TestConnect_ReplacesTopic(t *testing.T) {
	server := newFakeServer()
	ch := newChannel(t, server)

	require.NoError(t, ch.Connect(context.Background(), "acct", "one"))
	first := server.lastConn()
	require.NoError(t, ch.Connect(context.Background(), "acct", "two"))

	assert.True(t, first.isClosed())
	assert.Equal(t, "sdk:acct:two", ch.Snapshot().Topic)
	assert.Equal(t, 2, server.dialCount())
}

func TestConnect_JoinTimeout(t *testing.T) {
	server := newFakeServer()
	server.joinStatus = ""
	ch := newChannel(t, server, realtime.WithJoinTimeout(30*time.Millisecond))

	err := ch.Connect(context.Background(), "acct", "user")
	require.ErrorIs(t, err, realtime.ErrJoinTimeout)

	snap := ch.Snapshot()
	assert.Empty(t, snap.JoinRef)
	assert.False(t, snap.Connected)
	assert.False(t, snap.Connecting)
	assert.True(t, snap.ReconnectScheduled)
	assert.Equal(t, "sdk:acct:user", snap.Topic)
	assert.True(t, server.lastConn().isClosed())
}

func TestConnect_Unauthorized(t *testing.T) {
	server := newFakeServer()
	server.joinStatus = "error"
	server.joinReason = "unauthorized"
	ch := newChannel(t, server, realtime.WithReconnectDelay(10*time.Millisecond))

	err := ch.Connect(context.Background(), "acct", "user")
	require.ErrorIs(t, err, realtime.ErrUnauthorized)

	snap := ch.Snapshot()
	assert.False(t, snap.ReconnectScheduled)
	assert.Empty(t, snap.Topic)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, server.dialCount())
}

func TestConnect_RejectedIsRetried(t *testing.T) {
	server := newFakeServer()
	server.joinStatus = "error"
	server.joinReason = "unmatched topic"
	ch := newChannel(t, server, realtime.WithReconnectDelay(10*time.Millisecond))

	err := ch.Connect(context.Background(), "acct", "user")
	require.ErrorIs(t, err, realtime.ErrJoinRejected)

	server.set(func(s *fakeServer) { s.joinStatus = "ok"; s.joinReason = "" })

	assert.Eventually(t, func() bool { return ch.Snapshot().Connected }, waitFor, tick)
	assert.GreaterOrEqual(t, server.dialCount(), 2)
}

func TestConnect_ContextCancelled(t *testing.T) {
	server := newFakeServer()
	server.joinStatus = ""
	ch := newChannel(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ch.Connect(ctx, "acct", "user"), context.DeadlineExceeded)
}

func TestHeartbeat_AckClearsPending(t *testing.T) {
	server := newFakeServer()
	ch := newChannel(t, server, realtime.WithHeartbeat(20*time.Millisecond, time.Hour))

	require.NoError(t, ch.Connect(context.Background(), "acct", "user"))

	assert.Eventually(t, func() bool { return len(server.received(realtime.EventHeartbeat)) >= 3 }, waitFor, tick)

	hb := server.received(realtime.EventHeartbeat)[0]
	assert.Equal(t, realtime.SystemTopic, hb.Topic)
	assert.Empty(t, hb.JoinRef)

	snap := ch.Snapshot()
	assert.True(t, snap.Connected)
	assert.False(t, snap.ReconnectScheduled)
	assert.Equal(t, 1, snap.Dials)
}

func TestHeartbeat_MismatchedAckTimesOut(t *testing.T) {
	server := newFakeServer()
	server.wrongHeartbeatRef = true
	ch := newChannel(t, server, realtime.WithHeartbeat(20*time.Millisecond, 10*time.Millisecond))

	require.NoError(t, ch.Connect(context.Background(), "acct", "user"))

	assert.Eventually(t, func() bool {
		snap := ch.Snapshot()
		return !snap.Connected && snap.ReconnectScheduled
	}, waitFor, tick)

	snap := ch.Snapshot()
	assert.Empty(t, snap.PendingHeartbeatRef)
	assert.Empty(t, snap.JoinRef)
	assert.Equal(t, "sdk:acct:user", snap.Topic)
	assert.True(t, server.lastConn().isClosed())
}

func TestHeartbeat_UnansweredTriggersReconnect(t *testing.T) {
	server := newFakeServer()
	server.ackHeartbeats = false
	ch := newChannel(t, server,
		realtime.WithHeartbeat(20*time.Millisecond, time.Hour),
		realtime.WithReconnectDelay(10*time.Millisecond))

	require.NoError(t, ch.Connect(context.Background(), "acct", "user"))

	assert.Eventually(t, func() bool { return server.dialCount() >= 2 }, waitFor, tick)
}

func TestDisconnect_Idempotent(t *testing.T) {
	server := newFakeServer()
	ch := newChannel(t, server, realtime.WithHeartbeat(20*time.Millisecond, time.Hour))

	require.NoError(t, ch.Connect(context.Background(), "acct", "user"))
	conn := server.lastConn()

	ch.Disconnect()
	first := ch.Snapshot()
	ch.Disconnect()
	second := ch.Snapshot()

	assert.Equal(t, first, second)
	assert.Empty(t, first.Topic)
	assert.False(t, first.Connected)
	assert.False(t, first.ReconnectScheduled)
	assert.Empty(t, first.PendingHeartbeatRef)
	assert.True(t, conn.isClosed())

	beats := len(server.received(realtime.EventHeartbeat))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, beats, len(server.received(realtime.EventHeartbeat)))
}

func TestDisconnect_CancelsReconnect(t *testing.T) {
	server := newFakeServer()
	server.joinStatus = ""
	ch := newChannel(t, server,
		realtime.WithJoinTimeout(10*time.Millisecond),
		realtime.WithReconnectDelay(30*time.Millisecond))

	require.ErrorIs(t, ch.Connect(context.Background(), "acct", "user"), realtime.ErrJoinTimeout)
	require.True(t, ch.Snapshot().ReconnectScheduled)

	ch.Disconnect()
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, 1, server.dialCount())
	assert.False(t, ch.Snapshot().ReconnectScheduled)
}

func TestReconnect_AfterSocketDrop(t *testing.T) {
	server := newFakeServer()
	ch := newChannel(t, server, realtime.WithReconnectDelay(10*time.Millisecond))

	require.NoError(t, ch.Connect(context.Background(), "acct", "user"))
	_ = server.lastConn().Close()

	assert.Eventually(t, func() bool {
		snap := ch.Snapshot()
		return snap.Connected && snap.Dials == 2
	}, waitFor, tick)
	assert.Len(t, server.received(realtime.EventJoin), 2)
}

func TestServerEvents(t *testing.T) {
	server := newFakeServer()

	var mu sync.Mutex
	var got []string
	handler := realtime.HandlerFunc(func(event string, payload map[string]any) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event+":"+payload["experience_id"].(string))
	})
	ch := newChannel(t, server, realtime.WithHandler(handler), realtime.WithReconnectDelay(10*time.Millisecond))
	require.NoError(t, ch.Connect(context.Background(), "acct", "user"))

	conn := server.lastConn()
	conn.push(realtime.Message{Topic: "sdk:acct:other", Event: "show_experience", Payload: map[string]any{"experience_id": "foreign"}})
	conn.push(realtime.Message{Topic: "sdk:acct:user", Event: "show_experience", Payload: map[string]any{"experience_id": "exp-1"}})
	conn.push(realtime.Message{Topic: "sdk:acct:user", Event: "refresh_experience", Payload: map[string]any{"experience_id": "exp-2"}})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, waitFor, tick)
	mu.Lock()
	assert.Equal(t, []string{"show_experience:exp-1", "refresh_experience:exp-2"}, got)
	mu.Unlock()

	t.Run("phx_error reconnects", func(t *testing.T) {
		conn.push(realtime.Message{Topic: "sdk:acct:user", Event: realtime.EventError, Payload: map[string]any{}})
		assert.Eventually(t, func() bool {
			snap := ch.Snapshot()
			return snap.Connected && snap.Dials == 2
		}, waitFor, tick)
	})

	t.Run("phx_close with stale join ref is ignored", func(t *testing.T) {
		latest := server.lastConn()
		latest.push(realtime.Message{JoinRef: "stale", Topic: "sdk:acct:user", Event: realtime.EventClose})
		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, 2, ch.Snapshot().Dials)

		latest.push(realtime.Message{JoinRef: ch.Snapshot().JoinRef, Topic: "sdk:acct:user", Event: realtime.EventClose})
		assert.Eventually(t, func() bool { return ch.Snapshot().Dials == 3 }, waitFor, tick)
	})
}

// A handler that queries the channel must not stall the loop, however many
// events are waiting behind it.
func TestServerEvents_HandlerReentersChannel(t *testing.T) {
	server := newFakeServer()

	var ch *realtime.Channel
	var mu sync.Mutex
	var seen []string
	handler := realtime.HandlerFunc(func(event string, payload map[string]any) {
		snap := ch.Snapshot()
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, snap.Topic)
	})
	ch = newChannel(t, server, realtime.WithHandler(handler))
	require.NoError(t, ch.Connect(context.Background(), "acct", "user"))

	const burst = 200
	conn := server.lastConn()
	for i := 0; i < burst; i++ {
		conn.push(realtime.Message{Topic: "sdk:acct:user", Event: "show_experience", Payload: map[string]any{"experience_id": "exp"}})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == burst
	}, waitFor, tick)
	mu.Lock()
	assert.Equal(t, "sdk:acct:user", seen[0])
	mu.Unlock()
	assert.True(t, ch.Snapshot().Connected)

	closed := make(chan struct{})
	go func() {
		_ = ch.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(waitFor):
		t.Fatal("Close did not return")
	}
}

func TestPush(t *testing.T) {
	server := newFakeServer()
	ch := newChannel(t, server)

	assert.ErrorIs(t, ch.Push("ping", nil), realtime.ErrNotConnected)

	require.NoError(t, ch.Connect(context.Background(), "acct", "user"))
	require.NoError(t, ch.Push("ping", map[string]any{"n": 1.0}))

	pings := server.received("ping")
	require.Len(t, pings, 1)
	assert.Equal(t, "sdk:acct:user", pings[0].Topic)
	assert.Equal(t, ch.Snapshot().JoinRef, pings[0].JoinRef)
}

func TestClose(t *testing.T) {
	server := newFakeServer()
	ch, err := realtime.New("ws://localhost/socket", realtime.WithDialer(server))
	require.NoError(t, err)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	assert.ErrorIs(t, ch.Connect(context.Background(), "acct", "user"), realtime.ErrClosed)
}

func TestWebsocketDialer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("reject") != "" {
			http.Error(w, "nope", http.StatusUnauthorized)
			return
		}
		query = r.URL.RawQuery
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			var msg realtime.Message
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Event == realtime.EventJoin {
				_ = ws.WriteJSON(realtime.Message{
					JoinRef: msg.JoinRef, Ref: msg.Ref, Topic: msg.Topic, Event: realtime.EventReply,
					Payload: map[string]any{"status": "ok", "response": map[string]any{}},
				})
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	t.Run("joins over a real socket", func(t *testing.T) {
		ch, err := realtime.New(wsURL, realtime.WithJoinTimeout(time.Second))
		require.NoError(t, err)
		defer ch.Close()

		require.NoError(t, ch.Connect(context.Background(), "acct", "user"))
		assert.True(t, ch.Snapshot().Connected)
		assert.Contains(t, query, "vsn=2.0.0")
	})

	t.Run("handshake 401 is unauthorized", func(t *testing.T) {
		_, err := realtime.WebsocketDialer{}.Dial(context.Background(), wsURL+"?reject=1", nil)
		assert.ErrorIs(t, err, realtime.ErrUnauthorized)
	})
}
