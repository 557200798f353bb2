package dashboard

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/twmsh/trackfusion/internal/model"
)

func newTestHub(t *testing.T, window *Window) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(window, logrus.NewEntry(logrus.New()))
	r := mux.NewRouter()
	hub.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/room1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestConnectSendsInitialSnapshot(t *testing.T) {
	window := New(10)
	window.Push(&model.Snapshot{TrackID: "T1", Kind: model.KindFace})
	hub, srv := newTestHub(t, window)
	_ = hub

	conn := dialWS(t, srv)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Len(t, msg.Track, 1)
	require.NotNil(t, msg.Track[0].FT)
	require.Equal(t, int64(1), msg.Stat.TotalFaceCount)
}

func TestBroadcastReachesConnectedClient(t *testing.T) {
	window := New(10)
	hub, srv := newTestHub(t, window)

	conn := dialWS(t, srv)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var initial wsMessage
	require.NoError(t, conn.ReadJSON(&initial))
	require.Empty(t, initial.Track)

	counters := window.Push(&model.Snapshot{TrackID: "T2", Kind: model.KindVehicle})
	hub.Broadcast(toMessage(counters, []*model.Snapshot{{TrackID: "T2", Kind: model.KindVehicle}}))

	var update wsMessage
	require.NoError(t, conn.ReadJSON(&update))
	require.Len(t, update.Track, 1)
	require.NotNil(t, update.Track[0].CT)
}
