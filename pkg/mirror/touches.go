package mirror

import "github.com/DoyleJ11/imgsync/pkg/types"

type imageKey struct {
	room types.RoomID
	img  types.ImgID
}

// touches records the identity keys changed while a listing was in flight.
// A listing cannot speak for any of them.
type touches struct {
	images       map[imageKey]struct{}
	rooms        map[types.RoomID]struct{} // any change inside the room
	removedRooms map[types.RoomID]struct{}
	lobby        bool
}

func newTouches() *touches {
	return &touches{
		images:       make(map[imageKey]struct{}),
		rooms:        make(map[types.RoomID]struct{}),
		removedRooms: make(map[types.RoomID]struct{}),
	}
}

func (t *touches) record(c Change) {
	switch c := c.(type) {
	case ImageAdded:
		t.images[imageKey{c.Room, c.Img}] = struct{}{}
		t.rooms[c.Room] = struct{}{}
	case ImageRemoved:
		t.images[imageKey{c.Room, c.Img}] = struct{}{}
		t.rooms[c.Room] = struct{}{}
	case RoomRemoved:
		t.rooms[c.Room] = struct{}{}
		t.removedRooms[c.Room] = struct{}{}
	case LobbyRemoved:
		t.lobby = true
	}
}

// covers reports whether c would overwrite a newer recorded change.
func (t *touches) covers(c Change) bool {
	if t.lobby {
		return true
	}
	switch c := c.(type) {
	case ImageAdded:
		return t.imageTouched(c.Room, c.Img)
	case ImageRemoved:
		return t.imageTouched(c.Room, c.Img)
	case RoomRemoved:
		_, ok := t.rooms[c.Room]
		return ok
	}
	return false
}

func (t *touches) imageTouched(room types.RoomID, img types.ImgID) bool {
	if _, ok := t.images[imageKey{room, img}]; ok {
		return true
	}
	_, ok := t.removedRooms[room]
	return ok
}
