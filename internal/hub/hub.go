// Package hub owns the lobby actors of the reference server.
//
// Sessions join and leave through the hub, which starts a lobby on its first
// session and stops it when the last one leaves. Joins and leaves are
// serialized by the hub loop, so a lobby is never retired while a join for it
// is pending.
package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/imgsync/internal/lobby"
	"github.com/DoyleJ11/imgsync/pkg/types"
)

type HubMsg interface{ isHubMsg() }

type GetLobby struct {
	ID    types.LobbyID
	Reply chan *lobby.Lobby
}

type JoinLobby struct {
	ID        types.LobbyID
	SessionID types.SessionID
	Outbox    chan []byte
	Reply     chan *lobby.Lobby
}

type LeaveLobby struct {
	ID        types.LobbyID
	SessionID types.SessionID
}

type ShutdownHub struct {
	Done chan struct{} // closed once every lobby was told to stop; may be nil
}

func (GetLobby) isHubMsg()    {}
func (JoinLobby) isHubMsg()   {}
func (LeaveLobby) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type entry struct {
	lobby    *lobby.Lobby
	sessions map[types.SessionID]struct{}
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[types.LobbyID]*entry
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[types.LobbyID]*entry),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub has stopped.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) send(m HubMsg) bool {
	select {
	case h.inbox <- m:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Get returns the running lobby actor, or nil if the lobby has no sessions.
func (h *Hub) Get(id types.LobbyID) *lobby.Lobby {
	reply := make(chan *lobby.Lobby, 1)
	if !h.send(GetLobby{ID: id, Reply: reply}) {
		return nil
	}
	return h.await(reply)
}

// Join registers a session with the lobby, starting the lobby if needed, and
// returns its actor. It returns nil once the hub has shut down.
func (h *Hub) Join(id types.LobbyID, session types.SessionID, outbox chan []byte) *lobby.Lobby {
	reply := make(chan *lobby.Lobby, 1)
	if !h.send(JoinLobby{ID: id, SessionID: session, Outbox: outbox, Reply: reply}) {
		return nil
	}
	return h.await(reply)
}

// Leave removes a session. The lobby stops when its last session leaves.
func (h *Hub) Leave(id types.LobbyID, session types.SessionID) {
	h.send(LeaveLobby{ID: id, SessionID: session})
}

func (h *Hub) await(reply chan *lobby.Lobby) *lobby.Lobby {
	select {
	case lb := <-reply:
		return lb
	case <-h.ctx.Done():
		return nil
	}
}

// Publish broadcasts a notification to every session of the lobby. Lobbies
// without sessions have no actor and the frame is discarded.
func (h *Hub) Publish(id types.LobbyID, v any) {
	lb := h.Get(id)
	if lb == nil {
		return
	}
	select {
	case lb.Inbox() <- lobby.Publish{Frame: lobby.Frame(v)}:
	case <-lb.Done(): // retired after Get
	}
}

// Shutdown stops every lobby and waits for the hub loop to exit.
func (h *Hub) Shutdown() {
	done := make(chan struct{})
	if !h.send(ShutdownHub{Done: done}) {
		return
	}
	select {
	case <-done:
	case <-h.ctx.Done(): // already stopped by an earlier Shutdown
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case m := <-h.inbox:
			switch msg := m.(type) {
			case GetLobby:
				var lb *lobby.Lobby // nil when nobody is connected
				if e := h.lobbies[msg.ID]; e != nil {
					lb = e.lobby
				}
				msg.Reply <- lb

			case JoinLobby:
				e := h.lobbies[msg.ID]
				if e == nil {
					e = &entry{
						lobby:    lobby.NewLobby(h.ctx, msg.ID, h.log),
						sessions: make(map[types.SessionID]struct{}),
					}
					h.lobbies[msg.ID] = e
					h.log.Debug("lobby started", zap.String("lobby_id", string(msg.ID)))
				}
				e.sessions[msg.SessionID] = struct{}{}
				e.lobby.Inbox() <- lobby.Join{SessionID: msg.SessionID, Outbox: msg.Outbox}
				msg.Reply <- e.lobby

			case LeaveLobby:
				e := h.lobbies[msg.ID]
				if e == nil {
					break
				}
				if _, ok := e.sessions[msg.SessionID]; !ok {
					break
				}
				delete(e.sessions, msg.SessionID)
				if len(e.sessions) > 0 {
					e.lobby.Inbox() <- lobby.Leave{SessionID: msg.SessionID}
					break
				}
				// Last session gone: retire the actor
				e.lobby.Inbox() <- lobby.Shutdown{}
				delete(h.lobbies, msg.ID)
				h.log.Debug("lobby retired", zap.String("lobby_id", string(msg.ID)))

			case ShutdownHub:
				for _, e := range h.lobbies {
					e.lobby.Inbox() <- lobby.Shutdown{}
				}
				clear(h.lobbies)
				h.cancel()
				if msg.Done != nil {
					close(msg.Done)
				}
				return
			}
		}
	}
}
