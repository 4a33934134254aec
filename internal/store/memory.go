package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/DoyleJ11/imgsync/pkg/types"
)

type room struct {
	next  types.ImgID // ids are never handed out twice
	order []types.ImgID
	imgs  map[types.ImgID]Image
}

type MemoryStore struct {
	mu      sync.RWMutex
	lobbies map[types.LobbyID]map[types.RoomID]*room
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lobbies: make(map[types.LobbyID]map[types.RoomID]*room),
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, lobby types.LobbyID, roomID types.RoomID, contentType string, data []byte) (types.ImgID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := s.lobbies[lobby]
	if rooms == nil {
		rooms = make(map[types.RoomID]*room)
		s.lobbies[lobby] = rooms
	}
	r := rooms[roomID]
	if r == nil {
		r = &room{imgs: make(map[types.ImgID]Image)}
		rooms[roomID] = r
	}

	r.next++
	id := r.next
	r.order = append(r.order, id)
	r.imgs[id] = Image{
		Lobby:       lobby,
		Room:        roomID,
		ID:          id,
		ContentType: contentType,
		Data:        slices.Clone(data),
		CreatedAt:   s.now(),
	}
	return id, nil
}

// Get serves the stored bytes for the thumbnail as well; the reference server
// does not resize.
func (s *MemoryStore) Get(_ context.Context, lobby types.LobbyID, roomID types.RoomID, img types.ImgID, _ bool) (Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.lobbies[lobby][roomID]
	if r == nil {
		return Image{}, ErrNotFound
	}
	im, ok := r.imgs[img]
	if !ok {
		return Image{}, ErrNotFound
	}
	return im, nil
}

func (s *MemoryStore) ListRooms(_ context.Context, lobby types.LobbyID) ([]types.RoomID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := []types.RoomID{}
	for id, r := range s.lobbies[lobby] {
		if len(r.order) > 0 {
			rooms = append(rooms, id)
		}
	}
	slices.Sort(rooms)
	return rooms, nil
}

func (s *MemoryStore) ListImages(_ context.Context, lobby types.LobbyID, roomID types.RoomID) ([]types.ImgID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.lobbies[lobby][roomID]
	if r == nil {
		return []types.ImgID{}, nil
	}
	return slices.Clone(r.order), nil
}

func (s *MemoryStore) DeleteLobby(_ context.Context, lobby types.LobbyID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.lobbies[lobby]
	delete(s.lobbies, lobby)
	return ok, nil
}

func (s *MemoryStore) DeleteRoom(_ context.Context, lobby types.LobbyID, roomID types.RoomID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := s.lobbies[lobby]
	if _, ok := rooms[roomID]; !ok {
		return false, nil
	}
	delete(rooms, roomID)
	return true, nil
}

func (s *MemoryStore) DeleteImage(_ context.Context, lobby types.LobbyID, roomID types.RoomID, img types.ImgID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.lobbies[lobby][roomID]
	if r == nil {
		return false, nil
	}
	if _, ok := r.imgs[img]; !ok {
		return false, nil
	}
	delete(r.imgs, img)
	r.order = slices.DeleteFunc(r.order, func(id types.ImgID) bool { return id == img })
	return true, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
