package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/imgsync/internal/hub"
	"github.com/DoyleJ11/imgsync/internal/store"
	"github.com/DoyleJ11/imgsync/internal/ws"
)

const DefaultMaxUploadBytes = 10 << 20 // 10 MB

type Deps struct {
	Hub            *hub.Hub
	Store          store.Store
	Log            *zap.Logger
	MaxUploadBytes int64
}

func SetupRoutes(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = DefaultMaxUploadBytes
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(allowAnyOrigin)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Options("/*", Preflight)

	r.Get("/list/{lobby_id}", ListRooms(d))
	r.Get("/list/{lobby_id}/{room_id}", ListImages(d))
	r.Get("/img/{lobby_id}/{room_id}/{img_id}", GetImage(d, false))
	r.Get("/img/thumb/{lobby_id}/{room_id}/{img_id}", GetImage(d, true))

	r.Post("/upload/{lobby_id}/{room_id}", UploadImage(d))
	r.Post("/delete/{lobby_id}", DeleteLobby(d))
	r.Post("/delete/{lobby_id}/{room_id}", DeleteRoom(d))
	r.Post("/delete/{lobby_id}/{room_id}/{img_id}", DeleteImage(d))
	r.Post("/chat", SendChat(d))

	notifications := ws.Handler(d.Hub, d.Log)
	r.Get("/ws/{lobby_id}", notifications)
	r.Get("/notifications/{lobby_id}", notifications)
	return r
}
