package world

import (
	"encoding/json"
	"fmt"
	"sort"

	"voxelvillage.ai/internal/protocol"
	"voxelvillage.ai/internal/sim/encoding"
	"voxelvillage.ai/internal/sim/worldmap"
)

// ObserverJoinRequest registers a read-only observer. The world replies once
// on Welcome and then pushes one encoded FRAME per tick to Out, dropping
// frames while Out is full.
//
// All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte
	Welcome   chan protocol.WelcomeMsg
}

// RegionRequest asks for the tile planes of one region. Exactly one reply
// is sent on Resp.
type RegionRequest struct {
	RX, RY int
	Resp   chan RegionReply
}

type RegionReply struct {
	Region protocol.RegionMsg
	Err    *protocol.ErrorMsg
}

type observerClient struct {
	id  string
	out chan []byte

	// sent holds the region sync id last announced to this observer.
	sent map[worldmap.RegionKey]uint64
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	w.observers[req.SessionID] = &observerClient{
		id:   req.SessionID,
		out:  req.Out,
		sent: map[worldmap.RegionKey]uint64{},
	}
	if req.Welcome != nil {
		select {
		case req.Welcome <- w.welcome(req.SessionID):
		default:
		}
	}
	w.log.Info("observer joined", "session", req.SessionID, "observers", len(w.observers))
}

func (w *World) handleObserverLeave(id string) {
	if _, ok := w.observers[id]; !ok {
		return
	}
	delete(w.observers, id)
	w.log.Info("observer left", "session", id, "observers", len(w.observers))
}

func (w *World) welcome(sessionID string) protocol.WelcomeMsg {
	kinds := worldmap.AllTileKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	mc := w.m.Config()
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		WorldID:         w.cfg.ID,
		Tick:            w.tick.Load(),
		Width:           mc.Width,
		Length:          mc.Length,
		Infinite:        mc.Infinite,
		RegionSize:      worldmap.RegionSize,
		ChunkSize:       worldmap.ChunkSize,
		TileKinds:       names,
	}
}

func (w *World) frameMsg(tick, frame uint64, greetings []Greeting) protocol.FrameMsg {
	msg := protocol.FrameMsg{
		Type:            protocol.TypeFrame,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Frame:           frame,
		Actors:          make([]protocol.ActorFrame, 0, len(w.actors)),
	}
	for i, a := range w.actors {
		v := w.view(i, a)
		if v.Player {
			msg.Player = v.ID
		}
		msg.Actors = append(msg.Actors, protocol.ActorFrame{
			ID:         v.ID,
			Name:       v.Name,
			Occupation: v.Occupation,
			Pos:        [2]int{v.Pos.X, v.Pos.Y},
			Z:          v.Z,
			Color:      [3]float32{v.Color.R, v.Color.G, v.Color.B},
			Ethereal:   v.Ethereal,
			SyncID:     v.SyncID,
		})
	}
	for _, e := range w.entities.All() {
		msg.Entities = append(msg.Entities, protocol.EntityFrame{
			ID:     e.ID,
			Pos:    [3]int{e.X, e.Y, e.Z},
			Size:   [3]int{e.Width, e.Length, e.Height},
			Color:  [3]float32{e.Color.R, e.Color.G, e.Color.B},
			SyncID: e.SyncID,
		})
	}
	for _, g := range greetings {
		msg.Greetings = append(msg.Greetings, g.Text)
	}
	return msg
}

func (w *World) broadcastFrame(tick, frame uint64, greetings []Greeting) {
	if len(w.observers) == 0 {
		return
	}
	base := w.frameMsg(tick, frame, greetings)
	keys := w.m.RegionKeys()

	for _, c := range w.observers {
		msg := base
		var announced []worldmap.RegionKey
		for _, k := range keys {
			r, _ := w.m.Region(k)
			if c.sent[k] == r.SyncID() {
				continue
			}
			msg.Dirty = append(msg.Dirty, protocol.RegionRef{RX: k.RX, RY: k.RY, SyncID: r.SyncID()})
			announced = append(announced, k)
		}
		b, err := json.Marshal(msg)
		if err != nil {
			w.log.Error("encode frame", "err", err)
			return
		}
		select {
		case c.out <- b:
			for i, k := range announced {
				c.sent[k] = msg.Dirty[i].SyncID
			}
		default:
			// Dropped; the dirty set is re-announced next frame.
		}
	}
}

func (w *World) handleRegionRequest(req RegionRequest) {
	if req.Resp == nil {
		return
	}
	msg, err := w.RegionMessage(worldmap.RegionKey{RX: req.RX, RY: req.RY})
	var reply RegionReply
	if err != nil {
		e := protocol.NewError(protocol.ErrInvalidTarget, err.Error())
		reply.Err = &e
	} else {
		reply.Region = msg
	}
	select {
	case req.Resp <- reply:
	default:
	}
}

// RegionMessage encodes region k for observers. Regions of a finite map
// must overlap its bounds; infinite maps generate the region on demand.
func (w *World) RegionMessage(k worldmap.RegionKey) (protocol.RegionMsg, error) {
	if b, ok := w.m.Bounds(); ok {
		area := worldmap.Rect{
			X0: k.RX * worldmap.RegionSize,
			Y0: k.RY * worldmap.RegionSize,
			X1: (k.RX + 1) * worldmap.RegionSize,
			Y1: (k.RY + 1) * worldmap.RegionSize,
		}
		if !area.Overlaps(b) {
			return protocol.RegionMsg{}, fmt.Errorf("region (%d,%d) is off the map", k.RX, k.RY)
		}
	}
	r := w.m.LoadRegion(k)
	planes := encoding.EncodeTiles(r.Tiles())

	msg := protocol.RegionMsg{
		Type:            protocol.TypeRegion,
		ProtocolVersion: protocol.Version,
		RX:              k.RX,
		RY:              k.RY,
		Size:            worldmap.RegionSize,
		SyncID:          r.SyncID(),
		Kinds:           planes.Kinds,
		Heights:         planes.Heights,
		Flags:           planes.Flags,
	}
	for ck, id := range r.ChunkSyncIDs() {
		msg.Chunks = append(msg.Chunks, protocol.ChunkRef{X: ck.X, Y: ck.Y, Z: ck.Z, SyncID: id})
	}
	sortChunks(msg.Chunks)
	return msg, nil
}

func sortChunks(cs []protocol.ChunkRef) {
	sort.Slice(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
}
