package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/imgsync/pkg/types"
)

func TestDecode_KnownFrames(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		want  Event
	}{
		{"uploaded", `{"event":"ImageUploaded","room_id":3,"img_id":42}`, ImageUploaded{RoomID: 3, ImgID: 42}},
		{"deleted", `{"event":"ImageDeleted","room_id":3,"img_id":42}`, ImageDeleted{RoomID: 3, ImgID: 42}},
		{"room", `{"event":"RoomDeleted","room_id":9}`, RoomDeleted{RoomID: 9}},
		{"lobby", `{"event":"LobbyDeleted"}`, LobbyDeleted{}},
		{"chat", `{"event":"ChatMessage","username":"ann","msg":"hi"}`, ChatMessage{Username: "ann", Msg: "hi"}},
		{"system", `{"event":"SystemNotification","msg_type":"Warning","msg":"not allowed"}`,
			SystemNotification{MsgType: types.SystemNotificationWarning, Msg: "not allowed"}},
		{"session", `{"event":"Connected","session_id":"s-1"}`, sessionStarted{SessionID: "s-1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, _, err := Decode([]byte(tc.frame))
			require.NoError(t, err)
			assert.Equal(t, tc.want, ev)
		})
	}
}

func TestDecode_UnknownDiscriminant(t *testing.T) {
	ev, name, err := Decode([]byte(`{"event":"Unknown","x":1}`))
	assert.Nil(t, ev)
	assert.Equal(t, "Unknown", name)
	assert.True(t, errors.Is(err, ErrUnknownEvent))
}

func TestDecode_Malformed(t *testing.T) {
	_, _, err := Decode([]byte(`not json`))
	require.Error(t, err)

	_, name, err := Decode([]byte(`{"event":"ImageUploaded","room_id":"three"}`))
	require.Error(t, err)
	assert.Equal(t, types.EventImageUploaded, name)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "ImageUploaded", KindImageUploaded.String())
	assert.Equal(t, "Error", KindTransportError.String())
	assert.False(t, Kind(0).Valid())
	assert.False(t, kindEnd.Valid())
}

func TestEndpoint_URL(t *testing.T) {
	ep := Endpoint{Host: "127.0.0.1:8080", Lobby: "abc"}
	assert.Equal(t, "ws://127.0.0.1:8080/ws/abc", ep.URL())

	ep.Secure = true
	ep.Path = PathNotifications
	assert.Equal(t, "wss://127.0.0.1:8080/notifications/abc", ep.URL())
}
