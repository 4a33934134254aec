package mirror

import (
	"fmt"
	"maps"
	"slices"

	"github.com/DoyleJ11/imgsync/pkg/types"
)

// Change is one state transition of a lobby. Its identity key is the
// (room, image) pair for images, the room for RoomRemoved and the lobby
// itself for LobbyRemoved.
type Change interface {
	fmt.Stringer
	isChange()
}

type ImageAdded struct {
	Room types.RoomID
	Img  types.ImgID
}

type ImageRemoved struct {
	Room types.RoomID
	Img  types.ImgID
}

type RoomRemoved struct {
	Room types.RoomID
}

type LobbyRemoved struct{}

func (ImageAdded) isChange()   {}
func (ImageRemoved) isChange() {}
func (RoomRemoved) isChange()  {}
func (LobbyRemoved) isChange() {}

func (c ImageAdded) String() string   { return fmt.Sprintf("ImageAdded(%d/%d)", c.Room, c.Img) }
func (c ImageRemoved) String() string { return fmt.Sprintf("ImageRemoved(%d/%d)", c.Room, c.Img) }
func (c RoomRemoved) String() string  { return fmt.Sprintf("RoomRemoved(%d)", c.Room) }
func (LobbyRemoved) String() string   { return "LobbyRemoved" }

// View is the local picture of one lobby: rooms holding images in the order
// they were first applied. The zero value is an empty lobby. A View is not
// safe for concurrent use; Mirror adds the locking.
type View struct {
	rooms map[types.RoomID][]types.ImgID
}

func NewView() *View {
	return &View{rooms: make(map[types.RoomID][]types.ImgID)}
}

// Apply performs c unless its identity key says it is already reflected, and
// reports whether the view changed. Applying the same change any number of
// times leaves the view as applying it once.
func (v *View) Apply(c Change) bool {
	if v.rooms == nil {
		v.rooms = make(map[types.RoomID][]types.ImgID)
	}

	switch c := c.(type) {
	case ImageAdded:
		if slices.Contains(v.rooms[c.Room], c.Img) {
			return false
		}
		v.rooms[c.Room] = append(v.rooms[c.Room], c.Img)
		return true

	case ImageRemoved:
		imgs := v.rooms[c.Room]
		i := slices.Index(imgs, c.Img)
		if i < 0 {
			return false
		}
		imgs = slices.Delete(imgs, i, i+1)
		if len(imgs) == 0 {
			delete(v.rooms, c.Room)
		} else {
			v.rooms[c.Room] = imgs
		}
		return true

	case RoomRemoved:
		if _, ok := v.rooms[c.Room]; !ok {
			return false
		}
		delete(v.rooms, c.Room)
		return true

	case LobbyRemoved:
		if len(v.rooms) == 0 {
			return false
		}
		clear(v.rooms)
		return true
	}
	return false
}

// Reduce applies changes in order and returns the ones that took effect.
func (v *View) Reduce(changes []Change) []Change {
	var applied []Change
	for _, c := range changes {
		if v.Apply(c) {
			applied = append(applied, c)
		}
	}
	return applied
}

// Diff returns the changes that turn the room's current content into imgs.
// Images already present keep their position; new ones are appended in the
// order of imgs.
func (v *View) Diff(room types.RoomID, imgs []types.ImgID) []Change {
	var out []Change
	for _, img := range v.rooms[room] {
		if !slices.Contains(imgs, img) {
			out = append(out, ImageRemoved{Room: room, Img: img})
		}
	}
	for _, img := range imgs {
		out = append(out, ImageAdded{Room: room, Img: img})
	}
	return out
}

func (v *View) Has(room types.RoomID, img types.ImgID) bool {
	return slices.Contains(v.rooms[room], img)
}

func (v *View) Images(room types.RoomID) []types.ImgID {
	return slices.Clone(v.rooms[room])
}

// Rooms returns the non-empty rooms in ascending order.
func (v *View) Rooms() []types.RoomID {
	return slices.Sorted(maps.Keys(v.rooms))
}

func (v *View) Len() int {
	n := 0
	for _, imgs := range v.rooms {
		n += len(imgs)
	}
	return n
}

func (v *View) Clone() *View {
	out := NewView()
	for room, imgs := range v.rooms {
		out.rooms[room] = slices.Clone(imgs)
	}
	return out
}
