package observer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelvillage.ai/internal/protocol"
	"voxelvillage.ai/internal/sim/occupations"
	"voxelvillage.ai/internal/sim/world"
	"voxelvillage.ai/internal/sim/worldmap"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startWorld runs a small flat world with a player at (2,2).
func startWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New(world.WorldConfig{
		ID:   "obs",
		Seed: 3,
		Map: worldmap.Config{
			Width:     80,
			Length:    80,
			Generator: worldmap.FlatGenerator{Kind: worldmap.Grass, Height: 1},
		},
	}, quietLogger())
	require.NoError(t, err)
	_, err = w.BuildActor().WithName("Pia").WithPosition(worldmap.Point{X: 2, Y: 2}).WithPlayer(true).Build(occupations.Avatar{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, 2*time.Millisecond)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func newTestServer(t *testing.T, w World) *httptest.Server {
	t.Helper()
	s, err := NewServer(w, quietLogger())
	require.NoError(t, err)
	mux := http.NewServeMux()
	mux.Handle("/ws", s.WSHandler())
	mux.Handle("/status", s.StatusHandler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// readUntil reads messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		base, err := protocol.DecodeBase(raw)
		require.NoError(t, err)
		if base.Type == typ {
			return raw
		}
	}
}

func subscribe(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	require.NoError(t, conn.WriteJSON(protocol.SubscribeMsg{
		Type:            protocol.TypeSubscribe,
		ProtocolVersion: protocol.Version,
		Name:            "test",
	}))
	var hello protocol.WelcomeMsg
	require.NoError(t, json.Unmarshal(readUntil(t, conn, protocol.TypeWelcome), &hello))
	return hello
}

func TestWS_SubscribeFramesAndRegions(t *testing.T) {
	w := startWorld(t)
	srv := newTestServer(t, w)
	conn := dial(t, srv)

	hello := subscribe(t, conn)
	assert.Equal(t, "obs", hello.WorldID)
	assert.Equal(t, 80, hello.Width)
	assert.Len(t, hello.SessionID, 36)

	var frame protocol.FrameMsg
	require.NoError(t, json.Unmarshal(readUntil(t, conn, protocol.TypeFrame), &frame))
	require.Len(t, frame.Actors, 1)
	assert.Equal(t, "Pia", frame.Actors[0].Name)

	require.NoError(t, conn.WriteJSON(protocol.RegionReqMsg{Type: protocol.TypeRegionReq, ProtocolVersion: protocol.Version, RX: 1, RY: 0}))
	var region protocol.RegionMsg
	require.NoError(t, json.Unmarshal(readUntil(t, conn, protocol.TypeRegion), &region))
	assert.Equal(t, 1, region.RX)
	assert.Equal(t, worldmap.RegionSize, region.Size)
	assert.NotEmpty(t, region.Kinds)

	require.NoError(t, conn.WriteJSON(protocol.ActionMsg{
		Type:            protocol.TypeAction,
		ProtocolVersion: protocol.Version,
		Kind:            protocol.ActionMove,
		DX:              1,
	}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var f protocol.FrameMsg
		require.NoError(t, json.Unmarshal(raw, &f))
		if f.Type == protocol.TypeFrame && f.Actors[0].Pos == [2]int{3, 2} {
			break
		}
	}
}

func TestWS_RejectsBadMessages(t *testing.T) {
	w := startWorld(t)
	srv := newTestServer(t, w)
	conn := dial(t, srv)
	subscribe(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ACTION","protocol_version":"1.0","kind":"FLY"}`)))
	var e protocol.ErrorMsg
	require.NoError(t, json.Unmarshal(readUntil(t, conn, protocol.TypeError), &e))
	assert.Equal(t, protocol.ErrProtoBadRequest, e.Code)

	require.NoError(t, conn.WriteJSON(protocol.RegionReqMsg{Type: protocol.TypeRegionReq, ProtocolVersion: protocol.Version, RX: 9, RY: 9}))
	require.NoError(t, json.Unmarshal(readUntil(t, conn, protocol.TypeError), &e))
	assert.Equal(t, protocol.ErrInvalidTarget, e.Code)
}

func TestWS_HandshakeRequiresSubscribe(t *testing.T) {
	w := startWorld(t)
	srv := newTestServer(t, w)

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(protocol.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: "0.1"}))
	var e protocol.ErrorMsg
	require.NoError(t, json.Unmarshal(readUntil(t, conn, protocol.TypeError), &e))
	assert.Equal(t, protocol.ErrProtoVersion, e.Code)

	conn = dial(t, srv)
	require.NoError(t, conn.WriteJSON(protocol.RegionReqMsg{Type: protocol.TypeRegionReq, ProtocolVersion: protocol.Version}))
	require.NoError(t, json.Unmarshal(readUntil(t, conn, protocol.TypeError), &e))
	assert.Equal(t, protocol.ErrProtoBadRequest, e.Code)
}

func TestStatusHandler(t *testing.T) {
	w := startWorld(t)
	s, err := NewServer(w, quietLogger())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.RemoteAddr = "127.0.0.1:5000"
	s.StatusHandler()(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var m world.WorldMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.RemoteAddr = "10.1.2.3:5000"
	s.StatusHandler()(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	s.WSHandler()(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIsLoopbackRemote(t *testing.T) {
	assert.True(t, isLoopbackRemote("127.0.0.1:80"))
	assert.True(t, isLoopbackRemote("[::1]:80"))
	assert.False(t, isLoopbackRemote("192.168.1.2:80"))
	assert.False(t, isLoopbackRemote("garbage"))
}
