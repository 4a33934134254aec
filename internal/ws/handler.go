package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/imgsync/internal/hub"
	"github.com/DoyleJ11/imgsync/pkg/types"
)

const (
	writeTimeout      = 3 * time.Second
	heartbeatInterval = 5 * time.Second
	clientTimeout     = 30 * time.Second
	outboxSize        = 32
)

// Handler upgrades /ws/{lobby_id} to a receive-only notification stream.
// Anything the client sends is discarded.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		lobbyID, err := types.ParseLobbyID(chi.URLParam(r, "lobby_id"))
		if err != nil {
			http.Error(w, "invalid lobby id", http.StatusBadRequest)
			return
		}

		select {
		case <-h.Done():
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		default:
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// Browsers on any origin may subscribe, as with the REST routes.
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		defer conn.CloseNow()

		sessionID := types.SessionID(uuid.NewString())
		log := log.With(zap.String("lobby_id", string(lobbyID)), zap.String("session_id", string(sessionID)))

		out := make(chan []byte, outboxSize)
		if h.Join(lobbyID, sessionID, out) == nil {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
		defer h.Leave(lobbyID, sessionID)
		log.Debug("notification session started")

		// Reader: discards client frames, cancels ctx once the peer is gone.
		ctx := conn.CloseRead(r.Context())

		go heartbeat(ctx, conn, log)

		// Writer loop
		for {
			select {
			case <-ctx.Done():
				log.Debug("notification session ended")
				return

			case frame, ok := <-out:
				if !ok {
					// Lobby dropped us (slow) or is shutting down.
					conn.Close(websocket.StatusGoingAway, "lobby closed")
					return
				}
				wctx, cancel := context.WithTimeout(ctx, writeTimeout)
				err := conn.Write(wctx, websocket.MessageText, frame)
				cancel()
				if err != nil {
					log.Debug("write failed", zap.Error(err))
					return
				}
			}
		}
	}
}

func heartbeat(ctx context.Context, conn *websocket.Conn, log *zap.Logger) {
	t := time.NewTicker(heartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, clientTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				log.Debug("disconnecting failed heartbeat", zap.Error(err))
				conn.Close(websocket.StatusPolicyViolation, "heartbeat timeout")
				return
			}
		}
	}
}
