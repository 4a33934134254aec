package types

// Wire shapes shared by the client and the reference server.
//
// Request/response:
//   GET  /list/{lobby_id}                       -> [room_id]
//   GET  /list/{lobby_id}/{room_id}             -> [img_id]
//   POST /upload/{lobby_id}/{room_id}           multipart "image" -> UploadResult
//   POST /delete/{lobby_id}[/{room_id}[/{img_id}]]
//   POST /chat                                  ChatMessageRequest
//   GET  /img[/thumb]/{lobby_id}/{room_id}/{img_id} -> image bytes
//
// Notifications (server -> client only), discriminated by "event":
//   Connected, ImageUploaded, ImageDeleted, RoomDeleted, LobbyDeleted,
//   ChatMessage, SystemNotification

// Event discriminants as sent by the server.
const (
	EventConnected          = "Connected"
	EventImageUploaded      = "ImageUploaded"
	EventImageDeleted       = "ImageDeleted"
	EventRoomDeleted        = "RoomDeleted"
	EventLobbyDeleted       = "LobbyDeleted"
	EventChatMessage        = "ChatMessage"
	EventSystemNotification = "SystemNotification"
)

type UploadResult struct {
	ImgID ImgID `json:"img_id"`
}

type ChatMessageRequest struct {
	LobbyID  LobbyID `json:"lobby_id"`
	Msg      string  `json:"msg"`
	Username string  `json:"username,omitempty"`
}

// Envelope is decoded first to read the discriminant of an inbound frame.
type Envelope struct {
	Event string `json:"event"`
}

type ConnectEvent struct {
	Event     string    `json:"event"`
	SessionID SessionID `json:"session_id"`
}

// ImageProcessedEvent is the payload of both ImageUploaded and ImageDeleted.
type ImageProcessedEvent struct {
	Event  string `json:"event"`
	RoomID RoomID `json:"room_id"`
	ImgID  ImgID  `json:"img_id"`
}

type RoomDeletedEvent struct {
	Event  string `json:"event"`
	RoomID RoomID `json:"room_id"`
}

type LobbyDeletedEvent struct {
	Event string `json:"event"`
}

type ChatMessageEvent struct {
	Event    string `json:"event"`
	Username string `json:"username"`
	Msg      string `json:"msg"`
}

type SystemNotificationType string

const SystemNotificationWarning SystemNotificationType = "Warning"

type SystemNotificationEvent struct {
	Event   string                 `json:"event"`
	MsgType SystemNotificationType `json:"msg_type"`
	Msg     string                 `json:"msg"`
}
