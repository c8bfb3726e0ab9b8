package livefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"papeleria/globals"
	"papeleria/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, c *Client) models.OrderEvent {
	t.Helper()
	select {
	case got := <-c.Send:
		var ev models.OrderEvent
		require.NoError(t, json.Unmarshal(got, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	return models.OrderEvent{}
}

func TestHubDispatchRoutesByRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	admin := &Client{Send: make(chan []byte, 4), Room: AdminRoom}
	owner := &Client{Send: make(chan []byte, 4), Room: UserRoom("u1")}
	other := &Client{Send: make(chan []byte, 4), Room: UserRoom("u2")}
	hub.Register(admin)
	hub.Register(owner)
	hub.Register(other)

	hub.Dispatch(models.OrderEvent{Type: "order.created", OrderID: "o1", UserID: "u1", Total: 25})

	assert.Equal(t, "o1", recv(t, admin).OrderID)
	assert.Equal(t, "o1", recv(t, owner).OrderID)

	select {
	case msg := <-other.Send:
		t.Fatalf("unexpected message for other user: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	c := &Client{Send: make(chan []byte, 1), Room: AdminRoom}
	hub.Register(c)
	hub.Unregister(c)
	// second unregister must not double close
	hub.Unregister(c)

	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
}

func TestHubStopReleasesPublishers(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	hub.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.Publish(AdminRoom, []byte("{}"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked after Stop")
	}
}

func TestHandlerRequiresIdentity(t *testing.T) {
	hub := NewHub()
	rec := httptest.NewRecorder()
	hub.Handler()(rec, httptest.NewRequest(http.MethodGet, "/api/orders/live", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterAfterStop(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	c := &Client{Send: make(chan []byte, 1), Room: AdminRoom}
	assert.True(t, hub.Register(c))

	hub.Stop()
	assert.False(t, hub.Register(&Client{Send: make(chan []byte, 1), Room: AdminRoom}))
}

func TestHandlerClosesWhenStopped(t *testing.T) {
	hub := NewHub()
	hub.Stop()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), globals.IdentityKey, models.Identity{UserID: "u1", Role: models.RoleUser})
		hub.Handler()(w, r.WithContext(ctx), nil)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
