// Package store holds the images of the reference server.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/imgsync/pkg/types"
)

var ErrNotFound = errors.New("image not found")

type Image struct {
	Lobby       types.LobbyID
	Room        types.RoomID
	ID          types.ImgID
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// Store is the authoritative image storage. Delete methods report whether
// anything was removed; deleting something absent is not an error.
type Store interface {
	Save(ctx context.Context, lobby types.LobbyID, room types.RoomID, contentType string, data []byte) (types.ImgID, error)
	// Get returns the full image, or its thumbnail when thumb is set.
	Get(ctx context.Context, lobby types.LobbyID, room types.RoomID, img types.ImgID, thumb bool) (Image, error)
	ListRooms(ctx context.Context, lobby types.LobbyID) ([]types.RoomID, error)
	ListImages(ctx context.Context, lobby types.LobbyID, room types.RoomID) ([]types.ImgID, error)
	DeleteLobby(ctx context.Context, lobby types.LobbyID) (bool, error)
	DeleteRoom(ctx context.Context, lobby types.LobbyID, room types.RoomID) (bool, error)
	DeleteImage(ctx context.Context, lobby types.LobbyID, room types.RoomID, img types.ImgID) (bool, error)
	Close() error
}
