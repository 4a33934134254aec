package types

import (
	"errors"
	"strconv"

	"github.com/google/uuid"
)

var ErrInvalidLobbyID = errors.New("invalid lobby id")

// LobbyID scopes rooms, chat and one notification channel. In practice a UUID.
type LobbyID string

// RoomID is unique within a lobby.
type RoomID uint32

// ImgID is assigned by the server and unique within a room while the image exists.
type ImgID uint32

// SessionID identifies one notification channel connection on the server.
type SessionID string

func NewLobbyID() LobbyID { return LobbyID(uuid.NewString()) }

func ParseLobbyID(s string) (LobbyID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", errors.Join(ErrInvalidLobbyID, err)
	}
	return LobbyID(id.String()), nil
}

func (l LobbyID) Valid() bool {
	_, err := uuid.Parse(string(l))
	return err == nil
}

func (r RoomID) String() string { return strconv.FormatUint(uint64(r), 10) }
func (i ImgID) String() string  { return strconv.FormatUint(uint64(i), 10) }

func ParseRoomID(s string) (RoomID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return RoomID(n), nil
}

func ParseImgID(s string) (ImgID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return ImgID(n), nil
}
