package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/salon-scheduling/internal/logging"
	"github.com/hackgods/salon-scheduling/internal/realtime"
)

func TestWSSubscribesByActor(t *testing.T) {
	hub := realtime.NewHub(16, nil)
	router := NewRouter(RouterConfig{
		Service: &stubService{},
		WS:      realtime.NewWSHandler(hub, 20*time.Millisecond, logging.Discard()),
		Logger:  logging.Discard(),
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	business, owner, customer := uuid.New(), uuid.New(), uuid.New()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	staffConn, _, err := websocket.DefaultDialer.Dial(base+"?actor_id="+owner.String()+"&role=business&business_id="+business.String(), nil)
	require.NoError(t, err)
	defer staffConn.Close()

	userConn, _, err := websocket.DefaultDialer.Dial(base+"?actor_id="+customer.String()+"&role=user", nil)
	require.NoError(t, err)
	defer userConn.Close()

	var hello realtime.Frame
	require.NoError(t, staffConn.ReadJSON(&hello))
	assert.Equal(t, []string{realtime.BusinessRoom(business)}, hello.Rooms)
	require.NoError(t, userConn.ReadJSON(&hello))
	assert.Equal(t, []string{realtime.UserRoom(customer)}, hello.Rooms)

	apptID := uuid.New()
	hub.Deliver(realtime.Event{Type: realtime.AppointmentCreated, BusinessID: business, AppointmentID: &apptID, CustomerID: &customer})

	for _, conn := range []*websocket.Conn{staffConn, userConn} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame realtime.Frame
		require.NoError(t, conn.ReadJSON(&frame))
		assert.Equal(t, realtime.FrameInvalidate, frame.Type)
		assert.Equal(t, []uuid.UUID{apptID}, frame.AppointmentIDs)
	}
}

func TestWSRequiresActor(t *testing.T) {
	router := NewRouter(RouterConfig{
		Service: &stubService{},
		WS:      realtime.NewWSHandler(realtime.NewHub(1, nil), time.Millisecond, nil),
		Logger:  logging.Discard(),
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}
