package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSHandlerCoalescesBurstIntoOneFrame(t *testing.T) {
	hub := NewHub(16, nil)
	biz := uuid.New()
	h := NewWSHandler(hub, 30*time.Millisecond, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeRooms(w, r, []string{BusinessRoom(biz)})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello Frame
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, FrameHello, hello.Type)
	assert.Equal(t, []string{BusinessRoom(biz)}, hello.Rooms)

	apptID := uuid.New()
	for i := 0; i < 5; i++ {
		hub.Deliver(Event{Type: AppointmentStatusUpdated, BusinessID: biz, AppointmentID: &apptID})
	}
	hub.Deliver(Event{Type: RescheduleRequested, BusinessID: biz, AppointmentID: &apptID})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, FrameInvalidate, frame.Type)
	assert.Equal(t, 6, frame.Count)
	assert.Equal(t, []EventType{AppointmentStatusUpdated, RescheduleRequested}, frame.Events)
	assert.Equal(t, []uuid.UUID{apptID}, frame.AppointmentIDs)
}

func TestWSHandlerReleasesSubscriptionOnDisconnect(t *testing.T) {
	hub := NewHub(16, nil)
	room := BusinessRoom(uuid.New())
	h := NewWSHandler(hub, 10*time.Millisecond, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeRooms(w, r, []string{room})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)

	var hello Frame
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, 1, hub.Subscribers(room))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Subscribers(room) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestClientRefreshesOnConnectAndInvalidate(t *testing.T) {
	hub := NewHub(16, nil)
	biz := uuid.New()
	h := NewWSHandler(hub, 10*time.Millisecond, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeRooms(w, r, []string{BusinessRoom(biz)})
	}))
	defer srv.Close()

	var mu sync.Mutex
	var reasons []RefreshReason
	count := func(reason RefreshReason) int {
		mu.Lock()
		defer mu.Unlock()
		n := 0
		for _, r := range reasons {
			if r == reason {
				n++
			}
		}
		return n
	}

	client := NewClient(ClientConfig{URL: wsURL(srv), Debounce: 20 * time.Millisecond}, func(_ context.Context, reason RefreshReason) {
		mu.Lock()
		reasons = append(reasons, reason)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	require.Eventually(t, func() bool { return count(RefreshConnect) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return hub.Subscribers(BusinessRoom(biz)) == 1 }, 2*time.Second, 5*time.Millisecond)

	for i := 0; i < 4; i++ {
		hub.Deliver(Event{Type: AppointmentCreated, BusinessID: biz})
	}

	assert.Eventually(t, func() bool { return count(RefreshInvalidate) == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop")
	}
}

func TestClientReconnectsAfterDrop(t *testing.T) {
	var connections atomic.Int32
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := connections.Add(1)
		if n == 1 {
			_ = conn.Close()
			return
		}
		data, _ := json.Marshal(Frame{Type: FrameHello})
		_ = conn.WriteMessage(websocket.TextMessage, data)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	var connects atomic.Int32
	client := NewClient(ClientConfig{
		URL:            wsURL(srv),
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	}, func(_ context.Context, reason RefreshReason) {
		if reason == RefreshConnect {
			connects.Add(1)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	assert.Eventually(t, func() bool { return connects.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, connections.Load(), int32(2))
}
