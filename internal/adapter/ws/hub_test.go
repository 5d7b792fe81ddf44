package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/infrastructure/metrics"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	hub := NewHub(zerolog.Nop(), m)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv, m
}

func dial(t *testing.T, hub *Hub, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	before := hub.ClientCount()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return hub.ClientCount() == before+1 }, time.Second, 5*time.Millisecond)
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) Msg {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var msg Msg
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubBroadcastsChangeEvents(t *testing.T) {
	hub, srv, m := newTestHub(t)
	a := dial(t, hub, srv)
	b := dial(t, hub, srv)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.WSConnections))

	event := domain.ChangeEvent{Seq: 3, Type: domain.EventTypeTransferPosted, Collections: []domain.Collection{domain.CollectionAccounts}}
	require.NoError(t, hub.Publish(context.Background(), event))

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMsg(t, conn)
		assert.Equal(t, MessageTypeChange, msg.Type)
		require.NotNil(t, msg.Event)
		assert.Equal(t, int64(3), msg.Event.Seq)
	}
}

func TestHubFiltersByCollection(t *testing.T) {
	hub, srv, _ := newTestHub(t)
	conn := dial(t, hub, srv)

	require.NoError(t, conn.WriteJSON(subscribeMsg{Action: "subscribe", Collections: []domain.Collection{domain.CollectionOrders}}))
	ack := readMsg(t, conn)
	assert.Equal(t, MessageTypeSubscribed, ack.Type)
	assert.Equal(t, []domain.Collection{domain.CollectionOrders}, ack.Collections)

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, domain.ChangeEvent{Seq: 1, Collections: []domain.Collection{domain.CollectionDares}}))
	require.NoError(t, hub.Publish(ctx, domain.ChangeEvent{Seq: 2, Collections: []domain.Collection{domain.CollectionAccounts, domain.CollectionOrders}}))

	msg := readMsg(t, conn)
	require.NotNil(t, msg.Event)
	assert.Equal(t, int64(2), msg.Event.Seq)
}

func TestHubRemovesClosedClients(t *testing.T) {
	hub, srv, m := newTestHub(t)
	conn := dial(t, hub, srv)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.WSConnections))

	// publishing with no clients is a no-op
	assert.NoError(t, hub.Publish(context.Background(), domain.ChangeEvent{Seq: 1}))
}

func TestHubForwardsSubscription(t *testing.T) {
	hub, srv, _ := newTestHub(t)
	conn := dial(t, hub, srv)

	ch := make(chan domain.ChangeEvent, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		hub.Forward(ctx, ch)
		close(done)
	}()

	ch <- domain.ChangeEvent{Seq: 11, Type: domain.EventTypeDareResolved}
	msg := readMsg(t, conn)
	require.NotNil(t, msg.Event)
	assert.Equal(t, domain.EventTypeDareResolved, msg.Event.Type)

	close(ch)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forward did not return after channel closed")
	}
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub, srv, _ := newTestHub(t)
	conn := dial(t, hub, srv)

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
