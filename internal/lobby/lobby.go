// Package lobby runs one broadcast actor per lobby. Sessions join with an
// outbox; every published notification frame is copied to every outbox.
package lobby

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/DoyleJ11/imgsync/pkg/types"
)

type Msg interface{ isLobbyMsg() }

// Publish sends Frame to every session, the originator of the change included.
type Publish struct {
	Frame []byte
}

func (Publish) isLobbyMsg() {}


type Join struct {
	SessionID types.SessionID
	Outbox    chan []byte // where this session wants to receive frames
}

func (Join) isLobbyMsg() {}

type Leave struct{ SessionID types.SessionID }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	NumClients int
	Published  int
}

type Lobby struct {
	id        types.LobbyID
	inbox     chan Msg
	published int
	clients   map[types.SessionID]chan []byte
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewLobby(parent context.Context, id types.LobbyID, log *zap.Logger) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}

	l := &Lobby{
		id:      id,
		inbox:   make(chan Msg, 64), // Small buffer
		clients: make(map[types.SessionID]chan []byte),
		log:     log.With(zap.String("lobby_id", string(id))),
		ctx:     ctx,
		cancel:  cancel,
	}

	go l.loop()
	return l
}

func (l *Lobby) ID() types.LobbyID { return l.id }

// Done is closed once the lobby has stopped.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

// Frame encodes a notification payload. The payload types are plain structs,
// so marshalling cannot fail.
func Frame(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// Register session + announce its id to it alone
				l.clients[msg.SessionID] = msg.Outbox
				l.send(msg.SessionID, msg.Outbox, Frame(types.ConnectEvent{
					Event:     types.EventConnected,
					SessionID: msg.SessionID,
				}))
				l.log.Debug("session joined", zap.String("session_id", string(msg.SessionID)), zap.Int("clients", len(l.clients)))

			case Leave:
				delete(l.clients, msg.SessionID)
				l.log.Debug("session left", zap.String("session_id", string(msg.SessionID)), zap.Int("clients", len(l.clients)))

			case Publish:
				l.published++
				l.broadcast(msg.Frame)


			case GetState:
				msg.Reply <- View{
					NumClients: len(l.clients),
					Published:  l.published,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // Tell session no more frames
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(frame []byte) {
	for id, ch := range l.clients {
		l.send(id, ch, frame)
	}
}

func (l *Lobby) send(id types.SessionID, ch chan []byte, frame []byte) {
	select {
	case ch <- frame:
		//ok
	default:
		// Session is slow/full - drop it.
		l.log.Warn("dropping slow session", zap.String("session_id", string(id)))
		close(ch)
		delete(l.clients, id)
	}
}

// Expose the inbox so tests or the ws layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }
