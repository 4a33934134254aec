package notify

import (
	"github.com/coder/websocket"

	"github.com/DoyleJ11/imgsync/pkg/types"
)

// Kind enumerates every event a Channel can dispatch.
type Kind uint8

const (
	KindConnected Kind = iota + 1
	KindDisconnected
	KindTransportError
	KindImageUploaded
	KindImageDeleted
	KindRoomDeleted
	KindLobbyDeleted
	KindChatMessage
	KindSystemNotification
	KindUnrecognized

	kindEnd
)

var kindNames = [...]string{
	KindConnected:          "Connected",
	KindDisconnected:       "Disconnected",
	KindTransportError:     "Error",
	KindImageUploaded:      types.EventImageUploaded,
	KindImageDeleted:       types.EventImageDeleted,
	KindRoomDeleted:        types.EventRoomDeleted,
	KindLobbyDeleted:       types.EventLobbyDeleted,
	KindChatMessage:        types.EventChatMessage,
	KindSystemNotification: types.EventSystemNotification,
	KindUnrecognized:       "Unrecognized",
}

func (k Kind) Valid() bool { return k > 0 && k < kindEnd }

func (k Kind) String() string {
	if !k.Valid() {
		return "Kind(invalid)"
	}
	return kindNames[k]
}

// Event is the closed set of notifications delivered by a Channel.
type Event interface {
	Kind() Kind
	isEvent()
}

// Connected fires once when the websocket handshake completes.
type Connected struct {
	URL string
}

// Disconnected fires once when the connection closes, including after Close.
type Disconnected struct {
	Code   websocket.StatusCode
	Reason string
}

// TransportError fires when the connection could not be established or
// dropped abnormally.
type TransportError struct {
	Err error
}

type ImageUploaded struct {
	RoomID types.RoomID
	ImgID  types.ImgID
}

type ImageDeleted struct {
	RoomID types.RoomID
	ImgID  types.ImgID
}

type RoomDeleted struct {
	RoomID types.RoomID
}

type LobbyDeleted struct{}

type ChatMessage struct {
	Username string
	Msg      string
}

type SystemNotification struct {
	MsgType types.SystemNotificationType
	Msg     string
}

// Unrecognized describes a dropped inbound frame. It is only delivered to
// OnUnrecognized handlers and never affects the connection.
type Unrecognized struct {
	Event string // discriminant, empty if the frame did not parse
	Raw   []byte
	Err   error
}

// sessionStarted is the server's own Connected frame. It is recorded on the
// channel and not dispatched.
type sessionStarted struct {
	SessionID types.SessionID
}

func (Connected) Kind() Kind          { return KindConnected }
func (Disconnected) Kind() Kind       { return KindDisconnected }
func (TransportError) Kind() Kind     { return KindTransportError }
func (ImageUploaded) Kind() Kind      { return KindImageUploaded }
func (ImageDeleted) Kind() Kind       { return KindImageDeleted }
func (RoomDeleted) Kind() Kind        { return KindRoomDeleted }
func (LobbyDeleted) Kind() Kind       { return KindLobbyDeleted }
func (ChatMessage) Kind() Kind        { return KindChatMessage }
func (SystemNotification) Kind() Kind { return KindSystemNotification }
func (Unrecognized) Kind() Kind       { return KindUnrecognized }
func (sessionStarted) Kind() Kind     { return KindConnected }

func (Connected) isEvent()          {}
func (Disconnected) isEvent()       {}
func (TransportError) isEvent()     {}
func (ImageUploaded) isEvent()      {}
func (ImageDeleted) isEvent()       {}
func (RoomDeleted) isEvent()        {}
func (LobbyDeleted) isEvent()       {}
func (ChatMessage) isEvent()        {}
func (SystemNotification) isEvent() {}
func (Unrecognized) isEvent()       {}
func (sessionStarted) isEvent()     {}
