package notify

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/imgsync/pkg/types"
)

var ErrUnknownEvent = errors.New("unknown event")

type decodeFunc func([]byte) (Event, error)

var decoders = map[string]decodeFunc{
	types.EventConnected: func(b []byte) (Event, error) {
		var m types.ConnectEvent
		err := json.Unmarshal(b, &m)
		return sessionStarted{SessionID: m.SessionID}, err
	},
	types.EventImageUploaded: func(b []byte) (Event, error) {
		var m types.ImageProcessedEvent
		err := json.Unmarshal(b, &m)
		return ImageUploaded{RoomID: m.RoomID, ImgID: m.ImgID}, err
	},
	types.EventImageDeleted: func(b []byte) (Event, error) {
		var m types.ImageProcessedEvent
		err := json.Unmarshal(b, &m)
		return ImageDeleted{RoomID: m.RoomID, ImgID: m.ImgID}, err
	},
	types.EventRoomDeleted: func(b []byte) (Event, error) {
		var m types.RoomDeletedEvent
		err := json.Unmarshal(b, &m)
		return RoomDeleted{RoomID: m.RoomID}, err
	},
	types.EventLobbyDeleted: func([]byte) (Event, error) {
		return LobbyDeleted{}, nil
	},
	types.EventChatMessage: func(b []byte) (Event, error) {
		var m types.ChatMessageEvent
		err := json.Unmarshal(b, &m)
		return ChatMessage{Username: m.Username, Msg: m.Msg}, err
	},
	types.EventSystemNotification: func(b []byte) (Event, error) {
		var m types.SystemNotificationEvent
		err := json.Unmarshal(b, &m)
		return SystemNotification{MsgType: m.MsgType, Msg: m.Msg}, err
	},
}

// Decode parses one inbound frame. It returns the discriminant alongside any
// error so callers can report what was dropped.
func Decode(data []byte) (Event, string, error) {
	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "", fmt.Errorf("decode envelope: %w", err)
	}

	decode, ok := decoders[env.Event]
	if !ok {
		return nil, env.Event, fmt.Errorf("%w %q", ErrUnknownEvent, env.Event)
	}

	ev, err := decode(data)
	if err != nil {
		return nil, env.Event, fmt.Errorf("decode %s: %w", env.Event, err)
	}
	return ev, env.Event, nil
}
