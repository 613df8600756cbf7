package observer

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voxelvillage.ai/internal/protocol"
	"voxelvillage.ai/internal/sim/world"
	"voxelvillage.ai/internal/sim/worldmap"
)

// World is the part of the simulation the observer endpoint talks to. All
// calls must be safe from connection goroutines.
type World interface {
	ObserverJoin() chan<- world.ObserverJoinRequest
	ObserverLeave() chan<- string
	RegionRequests() chan<- world.RegionRequest
	Submit(a world.Action) bool
	Metrics() world.WorldMetrics
}

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
	replyTimeout     = 2 * time.Second
)

type Server struct {
	world     World
	log       *slog.Logger
	validator *protocol.Validator

	upgrader websocket.Upgrader
}

func NewServer(w World, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	v, err := protocol.NewValidator()
	if err != nil {
		return nil, err
	}
	return &Server{
		world:     w,
		log:       logger.With("component", "observer"),
		validator: v,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only
		},
	}, nil
}

// StatusHandler serves the world metrics as JSON.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.world.Metrics())
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.serve(conn)
	}
}

func (s *Server) serve(conn *websocket.Conn) {
	sub, ok := s.handshake(conn)
	if !ok {
		return
	}

	sid := uuid.NewString()
	log := s.log.With("session", sid, "name", sub.Name)
	out := make(chan []byte, 64)
	welcome := make(chan protocol.WelcomeMsg, 1)

	select {
	case s.world.ObserverJoin() <- world.ObserverJoinRequest{SessionID: sid, Out: out, Welcome: welcome}:
	default:
		s.closeWithError(conn, protocol.ErrWorldBusy, "server busy", websocket.CloseTryAgainLater)
		return
	}
	defer func() {
		select {
		case s.world.ObserverLeave() <- sid:
		default:
			// World loop is stopping; nothing else to do.
		}
	}()

	var hello protocol.WelcomeMsg
	select {
	case hello = <-welcome:
	case <-time.After(handshakeTimeout):
		s.closeWithError(conn, protocol.ErrWorldBusy, "world did not answer", websocket.CloseTryAgainLater)
		return
	}
	if err := writeJSON(conn, hello); err != nil {
		return
	}
	log.Info("observer connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Replies to this connection's own requests.
	direct := make(chan []byte, 16)
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for {
			var b []byte
			select {
			case <-ctx.Done():
				return
			case b = <-direct:
			case b = <-out:
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				cancel()
				return
			}
		}
	}()

	reply := func(v any) {
		b, err := json.Marshal(v)
		if err != nil {
			return
		}
		select {
		case direct <- b:
		case <-ctx.Done():
		}
	}

	for ctx.Err() == nil {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		msg, err := s.validator.Decode(raw)
		if err != nil {
			reply(protocol.NewError(protocol.ErrProtoBadRequest, err.Error()))
			continue
		}
		switch m := msg.(type) {
		case *protocol.ActionMsg:
			if m.ProtocolVersion != protocol.Version {
				reply(protocol.NewError(protocol.ErrProtoVersion, "unsupported protocol version"))
				continue
			}
			if !s.world.Submit(actionFromMsg(m)) {
				reply(protocol.NewError(protocol.ErrWorldBusy, "action queue full"))
			}
		case *protocol.RegionReqMsg:
			reply(s.requestRegion(ctx, m.RX, m.RY))
		case *protocol.SubscribeMsg:
			reply(protocol.NewError(protocol.ErrBadRequest, "already subscribed"))
		}
	}

	cancel()
	<-writeDone
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	log.Info("observer disconnected")
}

// handshake requires SUBSCRIBE with the current protocol version as the first
// message.
func (s *Server) handshake(conn *websocket.Conn) (*protocol.SubscribeMsg, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, false
	}
	msg, err := s.validator.Decode(raw)
	if err != nil {
		s.closeWithError(conn, protocol.ErrProtoBadRequest, err.Error(), websocket.ClosePolicyViolation)
		return nil, false
	}
	sub, ok := msg.(*protocol.SubscribeMsg)
	if !ok {
		s.closeWithError(conn, protocol.ErrProtoBadRequest, "expected SUBSCRIBE", websocket.ClosePolicyViolation)
		return nil, false
	}
	if sub.ProtocolVersion != protocol.Version {
		s.closeWithError(conn, protocol.ErrProtoVersion, "unsupported protocol version", websocket.ClosePolicyViolation)
		return nil, false
	}
	return sub, true
}

func (s *Server) requestRegion(ctx context.Context, rx, ry int) any {
	resp := make(chan world.RegionReply, 1)
	select {
	case s.world.RegionRequests() <- world.RegionRequest{RX: rx, RY: ry, Resp: resp}:
	default:
		return protocol.NewError(protocol.ErrWorldBusy, "region queue full")
	}
	select {
	case r := <-resp:
		if r.Err != nil {
			return *r.Err
		}
		return r.Region
	case <-time.After(replyTimeout):
		return protocol.NewError(protocol.ErrWorldBusy, "region request timed out")
	case <-ctx.Done():
		return protocol.NewError(protocol.ErrInternal, "connection closing")
	}
}

func (s *Server) closeWithError(conn *websocket.Conn, code, message string, closeCode int) {
	_ = writeJSON(conn, protocol.NewError(code, message))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, message), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func actionFromMsg(m *protocol.ActionMsg) world.Action {
	a := world.Action{Kind: world.ActionKind(m.Kind), DX: m.DX, DY: m.DY}
	if m.From != nil {
		a.From = &worldmap.Point{X: m.From[0], Y: m.From[1]}
	}
	if m.To != nil {
		a.To = &worldmap.Point{X: m.To[0], Y: m.To[1]}
	}
	return a
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
