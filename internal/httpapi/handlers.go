package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/imgsync/internal/store"
	"github.com/DoyleJ11/imgsync/pkg/types"
)

const anonymous = "Anonymous"

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

// writeSuccess answers a mutation. The body is JSON null.
func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, nil)
}

func internalError(w http.ResponseWriter, log *zap.Logger, msg string, err error) {
	log.Error(msg, zap.Error(err))
	http.Error(w, msg, http.StatusInternalServerError)
}

type pathIDs struct {
	lobby types.LobbyID
	room  types.RoomID
	img   types.ImgID
}

// parseIDs reads the path parameters present on the route. It writes a 400
// and returns false on the first invalid one.
func parseIDs(w http.ResponseWriter, r *http.Request) (pathIDs, bool) {
	var ids pathIDs
	var err error

	if ids.lobby, err = types.ParseLobbyID(chi.URLParam(r, "lobby_id")); err != nil {
		http.Error(w, "invalid lobby id", http.StatusBadRequest)
		return ids, false
	}
	if s := chi.URLParam(r, "room_id"); s != "" {
		if ids.room, err = types.ParseRoomID(s); err != nil {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return ids, false
		}
	}
	if s := chi.URLParam(r, "img_id"); s != "" {
		if ids.img, err = types.ParseImgID(s); err != nil {
			http.Error(w, "invalid image id", http.StatusBadRequest)
			return ids, false
		}
	}
	return ids, true
}

func ListRooms(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, ok := parseIDs(w, r)
		if !ok {
			return
		}
		rooms, err := d.Store.ListRooms(r.Context(), ids.lobby)
		if err != nil {
			internalError(w, d.Log, "failed to list rooms", err)
			return
		}
		writeJSON(w, rooms)
	}
}

func ListImages(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, ok := parseIDs(w, r)
		if !ok {
			return
		}
		imgs, err := d.Store.ListImages(r.Context(), ids.lobby, ids.room)
		if err != nil {
			internalError(w, d.Log, "failed to list images", err)
			return
		}
		writeJSON(w, imgs)
	}
}

func GetImage(d Deps, thumb bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, ok := parseIDs(w, r)
		if !ok {
			return
		}
		img, err := d.Store.Get(r.Context(), ids.lobby, ids.room, ids.img, thumb)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Picture not found", http.StatusNotFound)
			return
		}
		if err != nil {
			internalError(w, d.Log, "failed to read image", err)
			return
		}
		w.Header().Set("Content-Type", img.ContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(img.Data)
	}
}

func UploadImage(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, ok := parseIDs(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, d.MaxUploadBytes)
		file, _, err := r.FormFile("image")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "Image too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "missing image field", http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "failed to read image", http.StatusBadRequest)
			return
		}
		contentType := http.DetectContentType(data)
		if !strings.HasPrefix(contentType, "image/") {
			http.Error(w, "Not an image", http.StatusBadRequest)
			return
		}

		imgID, err := d.Store.Save(r.Context(), ids.lobby, ids.room, contentType, data)
		if err != nil {
			internalError(w, d.Log, "failed to save image", err)
			return
		}

		// Notify users, the uploader included
		d.Hub.Publish(ids.lobby, types.ImageProcessedEvent{
			Event:  types.EventImageUploaded,
			RoomID: ids.room,
			ImgID:  imgID,
		})

		writeJSON(w, types.UploadResult{ImgID: imgID})
	}
}

func DeleteLobby(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, ok := parseIDs(w, r)
		if !ok {
			return
		}
		removed, err := d.Store.DeleteLobby(r.Context(), ids.lobby)
		if err != nil {
			internalError(w, d.Log, "failed to delete lobby", err)
			return
		}
		if removed {
			d.Hub.Publish(ids.lobby, types.LobbyDeletedEvent{Event: types.EventLobbyDeleted})
		}
		writeSuccess(w)
	}
}

func DeleteRoom(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, ok := parseIDs(w, r)
		if !ok {
			return
		}
		removed, err := d.Store.DeleteRoom(r.Context(), ids.lobby, ids.room)
		if err != nil {
			internalError(w, d.Log, "failed to delete room", err)
			return
		}
		if removed {
			d.Hub.Publish(ids.lobby, types.RoomDeletedEvent{Event: types.EventRoomDeleted, RoomID: ids.room})
		}
		writeSuccess(w)
	}
}

func DeleteImage(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, ok := parseIDs(w, r)
		if !ok {
			return
		}
		removed, err := d.Store.DeleteImage(r.Context(), ids.lobby, ids.room, ids.img)
		if err != nil {
			internalError(w, d.Log, "failed to delete image", err)
			return
		}
		if removed {
			d.Hub.Publish(ids.lobby, types.ImageProcessedEvent{
				Event:  types.EventImageDeleted,
				RoomID: ids.room,
				ImgID:  ids.img,
			})
		}
		writeSuccess(w)
	}
}

func SendChat(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ChatMessageRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		lobbyID, err := types.ParseLobbyID(string(req.LobbyID))
		if err != nil {
			http.Error(w, "invalid lobby id", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Msg) == "" {
			http.Error(w, "empty message", http.StatusBadRequest)
			return
		}
		username := req.Username
		if username == "" {
			username = anonymous
		}

		d.Hub.Publish(lobbyID, types.ChatMessageEvent{
			Event:    types.EventChatMessage,
			Username: username,
			Msg:      req.Msg,
		})
		writeSuccess(w)
	}
}
