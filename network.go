package main

import (
	"errors"
	"time"

	"cyberia/protocol"
	"cyberia/transport"
)

// eventSource is a live connection or a replayed capture.
type eventSource interface {
	Connect()
	Poll() []transport.Event
	Send(msg []byte) error
	State() transport.ConnState
	Close()
}

func (a *App) send(msg []byte) {
	if a.conn == nil {
		return
	}
	logDebugPacket("send", msg)
	if err := a.conn.Send(msg); err != nil {
		logDebug("send: %v", err)
	}
}

// handleEvents drains the connection and applies every frame on the game
// goroutine.
func (a *App) handleEvents(now time.Time) {
	if a.conn == nil {
		return
	}
	for _, ev := range a.conn.Poll() {
		switch ev.Kind {
		case transport.EventOpen:
			a.connectedAt = ev.At
			logDebug("connected")
			a.send(protocol.Handshake(gs.ClientName, gs.ClientVersion))
		case transport.EventMessage:
			a.handleMessage(ev.Data, now)
		case transport.EventError:
			logWarn("connection: %v", ev.Err)
		case transport.EventClose:
			a.connectedAt = time.Time{}
			logWarn("disconnected: %s (%d)", ev.Reason, ev.Code)
			notifyDesktop("Cyberia", "Disconnected from server")
		}
	}
	if d := a.dropped(); d != a.lastDropped {
		logWarn("dropped %d transport errors", d-a.lastDropped)
		a.lastDropped = d
	}
}

// pingInterval paces application-level pings while connected.
const pingInterval = 15 * time.Second

// maybePing sends a ping when the last one is older than pingInterval.
// The server's pong is recorded by the world and shown on the HUD.
func (a *App) maybePing(now time.Time) {
	if a.conn == nil || a.conn.State() != transport.StateConnected {
		return
	}
	if !a.lastPing.IsZero() && now.Sub(a.lastPing) < pingInterval {
		return
	}
	a.lastPing = now
	a.send(protocol.Ping())
}

func (a *App) dropped() uint64 {
	if c, ok := a.conn.(*transport.Client); ok {
		return c.Dropped()
	}
	return 0
}

// handleMessage applies one inbound frame. Malformed frames are logged and
// dropped; the world is left untouched.
func (a *App) handleMessage(data []byte, now time.Time) {
	if a.rec != nil {
		a.rec.Record(now, data)
	}
	logDebugPacket("recv", data)

	res, err := protocol.Apply(a.world, data, now)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownType) {
			logDebug("ignored: %v", err)
			if msg, derr := protocol.Decode(data); derr == nil {
				logDebugValue("unknown message", msg)
			}
			return
		}
		logWarn("bad %s frame: %v", res.Type, err)
		return
	}

	switch res.Type {
	case protocol.TypeInit:
		if !res.Applied {
			logDebug("repeated init_data ignored")
			return
		}
		cfg := a.world.Config()
		logDebug("world %dx%d cell=%v interp=%vms", cfg.GridW, cfg.GridH, cfg.CellSize, cfg.InterpolationMS)
		if a.renderer != nil {
			a.renderer.Camera().Reset()
		}
	case protocol.TypeAOI:
		for _, id := range a.world.TakeRemoved() {
			a.anim.Forget(id)
		}
	case protocol.TypeSkillItemIDs:
		a.prefetch.Add(res.SkillItems)
	case protocol.TypeError:
		if msg, ok := a.world.ActiveError(now); ok {
			logWarn("server: %s", msg)
		}
	case protocol.TypePing:
		a.send(protocol.Pong())
	}
}
