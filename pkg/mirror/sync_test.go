package mirror_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/imgsync/pkg/imgclient"
	"github.com/DoyleJ11/imgsync/pkg/mirror"
	"github.com/DoyleJ11/imgsync/pkg/notify"
	"github.com/DoyleJ11/imgsync/pkg/types"
)

// listingStore answers list requests from fixed data. Before answering, it
// runs whatever was queued on during, which stands in for a notification
// arriving while the listing is in flight.
func listingStore(t *testing.T, rooms []types.RoomID, imgs map[types.RoomID][]types.ImgID) (*httptest.Server, chan<- func()) {
	t.Helper()
	during := make(chan func(), 4)
	runQueued := func() {
		for {
			select {
			case f := <-during:
				f()
			default:
				return
			}
		}
	}

	r := chi.NewRouter()
	r.Get("/list/{lobby_id}", func(w http.ResponseWriter, r *http.Request) {
		runQueued()
		_ = json.NewEncoder(w).Encode(rooms)
	})
	r.Get("/list/{lobby_id}/{room_id}", func(w http.ResponseWriter, r *http.Request) {
		runQueued()
		room, err := types.ParseRoomID(chi.URLParam(r, "room_id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := imgs[room]
		if out == nil {
			out = []types.ImgID{}
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, during
}

func TestSync_KeepsUploadNotifiedDuringListing(t *testing.T) {
	srv, during := listingStore(t, nil, map[types.RoomID][]types.ImgID{7: {}})
	m := mirror.New(imgclient.New(srv.Listener.Addr().String()), types.NewLobbyID())
	m.Apply(mirror.ImageAdded{Room: 7, Img: 55}) // stale, predates the sync

	during <- func() {
		m.Handlers().ImageUploaded(notify.ImageUploaded{RoomID: 7, ImgID: 101})
	}
	require.NoError(t, m.Sync(context.Background(), 7))

	assert.Equal(t, []types.ImgID{101}, m.Images(7))
}

func TestSync_KeepsDeleteNotifiedDuringListing(t *testing.T) {
	srv, during := listingStore(t, nil, map[types.RoomID][]types.ImgID{7: {101, 102}})
	m := mirror.New(imgclient.New(srv.Listener.Addr().String()), types.NewLobbyID())
	m.Apply(mirror.ImageAdded{Room: 7, Img: 101})

	during <- func() {
		m.Handlers().ImageDeleted(notify.ImageDeleted{RoomID: 7, ImgID: 101})
	}
	require.NoError(t, m.Sync(context.Background(), 7))

	assert.Equal(t, []types.ImgID{102}, m.Images(7))
}

func TestSync_KeepsRoomRemovalNotifiedDuringListing(t *testing.T) {
	srv, during := listingStore(t, nil, map[types.RoomID][]types.ImgID{3: {1, 2}})
	m := mirror.New(imgclient.New(srv.Listener.Addr().String()), types.NewLobbyID())
	m.Apply(mirror.ImageAdded{Room: 3, Img: 1})

	during <- func() {
		m.Handlers().RoomDeleted(notify.RoomDeleted{RoomID: 3})
	}
	require.NoError(t, m.Sync(context.Background(), 3))

	assert.Empty(t, m.Rooms())
}

func TestSync_FullSyncKeepsRoomCreatedDuringListing(t *testing.T) {
	srv, during := listingStore(t,
		[]types.RoomID{1},
		map[types.RoomID][]types.ImgID{1: {1}},
	)
	m := mirror.New(imgclient.New(srv.Listener.Addr().String()), types.NewLobbyID())

	during <- func() {
		m.Handlers().ImageUploaded(notify.ImageUploaded{RoomID: 9, ImgID: 5})
	}
	require.NoError(t, m.Sync(context.Background()))

	assert.Equal(t, []types.RoomID{1, 9}, m.Rooms())
	assert.Equal(t, []types.ImgID{5}, m.Images(9))
}

func TestSync_LaterSyncIsNotShielded(t *testing.T) {
	srv, during := listingStore(t, nil, map[types.RoomID][]types.ImgID{7: {}})
	m := mirror.New(imgclient.New(srv.Listener.Addr().String()), types.NewLobbyID())

	during <- func() {
		m.Handlers().ImageUploaded(notify.ImageUploaded{RoomID: 7, ImgID: 101})
	}
	require.NoError(t, m.Sync(context.Background(), 7))
	require.Equal(t, []types.ImgID{101}, m.Images(7))

	// nothing touched 101 during this listing, so the store's answer wins
	require.NoError(t, m.Sync(context.Background(), 7))
	assert.Empty(t, m.Images(7))
}
