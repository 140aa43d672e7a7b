package collab

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/devcollab/server/internal/bus"
	"github.com/devcollab/server/internal/domain"
	"github.com/devcollab/server/internal/metrics"
	"github.com/devcollab/server/internal/presence"
)

// Conn is the hub-facing view of a live transport connection. The
// adapter owns the socket; the hub only addresses it.
type Conn interface {
	ID() domain.ConnectionID
	Identity() domain.Identity
	TrySend(frame []byte) error
	Close()
}

// RoleResolver is the authorization collaborator consulted at join time.
type RoleResolver interface {
	RoleOf(ctx context.Context, room domain.RoomID, user domain.UserID) (domain.Role, error)
}

// Connection lifecycle. Unauthenticated connections never reach the hub:
// the gatekeeper refuses them before any handler attaches, so hub
// sessions begin authenticated with no room.
type connState int

const (
	stateAuthenticated connState = iota
	stateInRoom
)

type session struct {
	conn  Conn
	state connState
	room  domain.RoomID
	role  domain.Role // frozen at join; never refreshed mid-session
}

// Hub routes inbound events, enforces role gates, and fans accepted
// events out to room peers locally and over the relay bus.
//
// All session and directory mutations run on the single Run goroutine,
// one command at a time to completion. The dispatch loop never does I/O:
// the join-time role lookup happens on the caller's goroutine before its
// command is posted, and relay publishes drain on their own goroutine so
// a slow bus cannot stall local fan-out.
type Hub struct {
	cmds     chan func()
	dir      *presence.Directory
	sessions map[domain.ConnectionID]*session
	roles    RoleResolver
	relay    bus.Bus
	relayQ   chan bus.Message
	met      *metrics.Metrics
	done     chan struct{}
}

func NewHub(dir *presence.Directory, roles RoleResolver, relay bus.Bus, met *metrics.Metrics) *Hub {
	return &Hub{
		cmds:     make(chan func(), 256),
		dir:      dir,
		sessions: make(map[domain.ConnectionID]*session),
		roles:    roles,
		relay:    relay,
		relayQ:   make(chan bus.Message, 256),
		met:      met,
		done:     make(chan struct{}),
	}
}

// Run consumes commands until ctx is done. It also attaches the relay
// subscription so remote broadcasts are re-dispatched locally.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	h.relay.Subscribe(ctx, h.onRelay)
	go h.relayLoop(ctx)
	log.Info().Str("module", "collab.hub").Msg("hub dispatch loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "collab.hub").Msg("hub dispatch loop stopped")
			return
		case cmd := <-h.cmds:
			cmd()
		}
	}
}

func (h *Hub) post(cmd func()) {
	select {
	case h.cmds <- cmd:
	case <-h.done:
	}
}

// Register attaches an authenticated connection. Called once per
// connection, after the gatekeeper has verified its identity.
func (h *Hub) Register(conn Conn) {
	h.post(func() {
		h.sessions[conn.ID()] = &session{conn: conn, state: stateAuthenticated}
		log.Info().Str("module", "collab.hub").Str("conn", string(conn.ID())).Str("user", string(conn.Identity().UserID)).Msg("connection registered")
	})
}

// Join resolves the caller's role and, on success, inserts the presence
// entry. The role lookup runs on the caller's goroutine so the dispatch
// loop never blocks on I/O.
//
// domain.ErrAuthorizationDenied or domain.ErrStoreUnavailable mean the
// join failed closed; the caller must close the connection.
func (h *Hub) Join(ctx context.Context, conn Conn, room domain.RoomID) error {
	role, err := h.roles.RoleOf(ctx, room, conn.Identity().UserID)
	if errors.Is(err, domain.ErrNoMembership) {
		h.met.JoinsDenied.Inc()
		return domain.ErrAuthorizationDenied
	}
	if err != nil {
		h.met.JoinsDenied.Inc()
		log.Error().Err(err).Str("module", "collab.hub").Str("room", string(room)).Msg("role lookup failed, join fails closed")
		return domain.ErrStoreUnavailable
	}

	h.post(func() { h.completeJoin(conn, room, role) })
	return nil
}

func (h *Hub) completeJoin(conn Conn, room domain.RoomID, role domain.Role) {
	s, ok := h.sessions[conn.ID()]
	if !ok {
		return // connection went away while the role lookup was in flight
	}

	id := conn.Identity()
	if h.dir.DisplayNameTaken(room, id.DisplayName, id.UserID) {
		h.sendEvent(conn, EventUsernameExists, struct{}{})
		return
	}

	entry := domain.NewPresenceEntry(conn.ID(), id, room, role)
	if evicted, ok := h.dir.Join(entry); ok {
		// Stale connection from a rejoin: its events are dropped from
		// now on and its disconnect will find nothing to remove.
		if stale, ok := h.sessions[evicted]; ok {
			stale.state = stateAuthenticated
			stale.room = ""
			stale.role = ""
		}
		log.Info().Str("module", "collab.hub").Str("evicted", string(evicted)).Str("user", string(id.UserID)).Msg("stale presence entry evicted on rejoin")
	}

	s.state = stateInRoom
	s.room = room
	s.role = role

	h.broadcastEvent(room, conn.ID(), EventUserJoined, userPayload{User: *entry})
	h.sendEvent(conn, EventJoinAccepted, joinAcceptedPayload{
		Self:   *entry,
		Roster: h.dir.Roster(room),
	})
	log.Info().Str("module", "collab.hub").Str("conn", string(conn.ID())).Str("room", string(room)).Str("role", string(role)).Msg("join accepted")
}

// Dispatch routes one inbound room-scoped event. join-request never goes
// through here; the adapter calls Join for it.
func (h *Hub) Dispatch(connID domain.ConnectionID, env Envelope) {
	h.post(func() { h.handle(connID, env) })
}

// Disconnect handles the transport's disconnecting signal: notify the
// room while the entry is still resolvable, then remove it. Each entry
// is removed exactly once; a stale connection finds nothing here.
func (h *Hub) Disconnect(connID domain.ConnectionID) {
	h.post(func() {
		if entry := h.dir.Get(connID); entry != nil {
			h.broadcastEvent(entry.Room, connID, EventUserDisconnected, userPayload{User: *entry})
			h.dir.Leave(connID)
			log.Info().Str("module", "collab.hub").Str("conn", string(connID)).Str("room", string(entry.Room)).Msg("presence entry removed")
		}
		delete(h.sessions, connID)
	})
}

func (h *Hub) handle(connID domain.ConnectionID, env Envelope) {
	s, ok := h.sessions[connID]
	if !ok || s.state != stateInRoom {
		h.met.EventsDiscarded.Inc()
		return
	}
	if !Allowed(env.Type, s.role) {
		// WritePermissionDenied is silent: no wire error, no mutation.
		h.met.EventsDiscarded.Inc()
		return
	}

	switch env.Type {
	case EventCursorMove:
		h.handleCursor(s, env, nil)
	case EventTypingStart:
		typing := true
		h.handleCursor(s, env, &typing)
	case EventTypingPause:
		typing := false
		h.dir.Apply(connID, domain.PresencePatch{Typing: &typing})
		h.mirrorEntry(s, env.Type)
	case EventUserOnline:
		h.handleStatus(s, env, domain.StatusOnline)
	case EventUserOffline:
		h.handleStatus(s, env, domain.StatusOffline)
	case EventSendMessage:
		h.broadcastRaw(s.room, connID, Envelope{Type: EventReceiveMessage, Payload: env.Payload})
	case EventRequestDrawing:
		h.broadcastEvent(s.room, connID, EventRequestDrawing, connectionPayload{ConnectionID: string(connID)})
	case EventSyncDrawing:
		var p syncDrawingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.TargetConnectionID == "" {
			return
		}
		h.sendDirected(domain.ConnectionID(p.TargetConnectionID), EventSyncDrawing,
			syncDrawingPayload{Snapshot: p.Snapshot})
	case EventSyncFileStructure:
		var p syncFileStructurePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.TargetConnectionID == "" {
			return
		}
		h.sendDirected(domain.ConnectionID(p.TargetConnectionID), EventSyncFileStructure,
			syncFileStructurePayload{
				FileStructure: p.FileStructure,
				OpenFiles:     p.OpenFiles,
				ActiveFile:    p.ActiveFile,
			})
	default:
		// Remaining write-class events (file/directory/drawing-update)
		// relay verbatim; conflicts resolve last-write-wins at receivers.
		h.broadcastRaw(s.room, connID, env)
	}
}

// handleCursor applies a cursor/selection patch (plus typing for
// typing-start) and mirrors the updated entry to the room.
func (h *Hub) handleCursor(s *session, env Envelope, typing *bool) {
	var p cursorPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return
	}
	h.dir.Apply(s.conn.ID(), domain.PresencePatch{
		CursorPosition: &p.CursorPosition,
		SelectionStart: p.SelectionStart,
		SelectionEnd:   p.SelectionEnd,
		Typing:         typing,
	})
	h.mirrorEntry(s, env.Type)
}

func (h *Hub) mirrorEntry(s *session, t EventType) {
	entry := h.dir.Get(s.conn.ID())
	if entry == nil {
		return
	}
	h.broadcastEvent(s.room, s.conn.ID(), t, userPayload{User: *entry})
}

// handleStatus patches the status of the connection named in the payload
// and relays the event verbatim. Status updates are member-class: any
// participant may report online/offline, but only for a connection in
// their own room.
func (h *Hub) handleStatus(s *session, env Envelope, status domain.ConnectionStatus) {
	var p connectionPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return
	}
	target := domain.ConnectionID(p.ConnectionID)
	if room, ok := h.dir.RoomOf(target); !ok || room != s.room {
		h.met.EventsDiscarded.Inc()
		return
	}
	h.dir.Apply(target, domain.PresencePatch{Status: &status})
	h.broadcastRaw(s.room, s.conn.ID(), env)
}

// broadcastEvent fans a typed payload out to every other connection in
// the room, then relays it over the bus for peers on other instances.
func (h *Hub) broadcastEvent(room domain.RoomID, from domain.ConnectionID, t EventType, payload any) {
	frame, err := encodeEvent(t, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "collab.hub").Str("type", string(t)).Msg("encode broadcast")
		return
	}
	h.fanOut(room, from, frame)
}

func (h *Hub) broadcastRaw(room domain.RoomID, from domain.ConnectionID, env Envelope) {
	frame, err := env.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "collab.hub").Str("type", string(env.Type)).Msg("encode broadcast")
		return
	}
	h.fanOut(room, from, frame)
}

// fanOut delivers to local room peers (sender excluded) and queues the
// frame for the relay. Both paths are fire-and-forget: a slow connection
// or a full relay queue drops the frame rather than stalling the loop.
func (h *Hub) fanOut(room domain.RoomID, from domain.ConnectionID, frame []byte) {
	for _, connID := range h.dir.Connections(room) {
		if connID == from {
			continue
		}
		h.deliver(connID, frame)
	}
	select {
	case h.relayQ <- bus.Message{Room: room, Frame: frame}:
	default:
		log.Warn().Str("module", "collab.hub").Str("room", string(room)).Msg("relay queue full, frame not relayed")
	}
}

// relayLoop drains queued broadcasts to the bus off the dispatch
// goroutine, so relay I/O never blocks local delivery.
func (h *Hub) relayLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.relayQ:
			h.relay.Publish(ctx, msg)
		}
	}
}

func (h *Hub) sendDirected(target domain.ConnectionID, t EventType, payload any) {
	frame, err := encodeEvent(t, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "collab.hub").Str("type", string(t)).Msg("encode directed")
		return
	}
	h.deliver(target, frame)
}

func (h *Hub) deliver(connID domain.ConnectionID, frame []byte) {
	s, ok := h.sessions[connID]
	if !ok {
		return
	}
	if err := s.conn.TrySend(frame); err != nil {
		h.met.DroppedFrames.Inc()
		log.Warn().Str("module", "collab.hub").Str("conn", string(connID)).Msg("frame dropped")
		return
	}
	h.met.BroadcastFrames.Inc()
}

func (h *Hub) sendEvent(conn Conn, t EventType, payload any) {
	frame, err := encodeEvent(t, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "collab.hub").Str("type", string(t)).Msg("encode reply")
		return
	}
	if err := conn.TrySend(frame); err != nil {
		h.met.DroppedFrames.Inc()
	}
}

// onRelay re-delivers a frame published by another instance to every
// local connection in the room. The sender lives elsewhere, so nobody
// local is excluded.
func (h *Hub) onRelay(msg bus.Message) {
	h.post(func() {
		for _, connID := range h.dir.Connections(msg.Room) {
			h.deliver(connID, msg.Frame)
		}
	})
}
