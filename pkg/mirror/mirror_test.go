package mirror_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/imgsync/internal/testserver"
	"github.com/DoyleJ11/imgsync/pkg/imgclient"
	"github.com/DoyleJ11/imgsync/pkg/mirror"
	"github.com/DoyleJ11/imgsync/pkg/notify"
	"github.com/DoyleJ11/imgsync/pkg/types"
)

const waitFor = 2 * time.Second

type recorder struct {
	mu      sync.Mutex
	changes []mirror.Change
}

func (r *recorder) record(c mirror.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) all() []mirror.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mirror.Change(nil), r.changes...)
}

// connect opens the mirror's channel and waits until the server has
// registered the session, so later broadcasts reach it.
func connect(t *testing.T, m *mirror.Mirror) *notify.Channel {
	t.Helper()
	ch := m.Connect(context.Background())
	t.Cleanup(m.Close)
	require.Eventually(t, func() bool { return ch.SessionID() != "" }, waitFor, 10*time.Millisecond)
	return ch
}

func upload(t *testing.T, c *imgclient.Client, lobby types.LobbyID, room types.RoomID) types.ImgID {
	t.Helper()
	res, err := c.UploadImage(context.Background(), lobby, room, "a.png", bytes.NewReader(testserver.PNG))
	require.NoError(t, err)
	return res.ImgID
}

func TestUpload_ResultAndNotificationApplyOnce(t *testing.T) {
	srv := testserver.Start(t, 0)
	client := imgclient.New(srv.Addr)
	lobby := types.NewLobbyID()

	m := mirror.New(client, lobby)
	var rec recorder
	m.OnChange(rec.record)
	ch := connect(t, m)

	// registered after the mirror's handler, so it runs once the mirror has
	// seen the notification
	echoed := make(chan notify.ImageUploaded, 1)
	ch.OnImageUploaded(func(e notify.ImageUploaded) { echoed <- e })

	img, err := m.Upload(context.Background(), 7, "a.png", bytes.NewReader(testserver.PNG))
	require.NoError(t, err)

	select {
	case e := <-echoed:
		assert.Equal(t, notify.ImageUploaded{RoomID: 7, ImgID: img}, e)
	case <-time.After(waitFor):
		t.Fatal("no ImageUploaded notification")
	}

	assert.Equal(t, []types.ImgID{img}, m.Images(7))
	assert.Equal(t, []mirror.Change{mirror.ImageAdded{Room: 7, Img: img}}, rec.all())
}

func TestNotifications_FromAnotherClient(t *testing.T) {
	srv := testserver.Start(t, 0)
	lobby := types.NewLobbyID()
	other := imgclient.New(srv.Addr)

	m := mirror.New(imgclient.New(srv.Addr), lobby)
	connect(t, m)

	a := upload(t, other, lobby, 1)
	b := upload(t, other, lobby, 1)
	c := upload(t, other, lobby, 2)
	require.Eventually(t, func() bool { return m.Has(2, c) }, waitFor, 10*time.Millisecond)
	assert.Equal(t, []types.ImgID{a, b}, m.Images(1))

	require.NoError(t, other.DeleteImage(context.Background(), lobby, 1, a))
	require.Eventually(t, func() bool { return !m.Has(1, a) }, waitFor, 10*time.Millisecond)
	assert.Equal(t, []types.ImgID{b}, m.Images(1))

	require.NoError(t, other.DeleteRoom(context.Background(), lobby, 2))
	require.Eventually(t, func() bool { return len(m.Images(2)) == 0 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, []types.RoomID{1}, m.Rooms())

	require.NoError(t, other.DeleteLobby(context.Background(), lobby))
	require.Eventually(t, func() bool { return len(m.Rooms()) == 0 }, waitFor, 10*time.Millisecond)
}

func TestSync_ReadsStateThatPredatesSubscription(t *testing.T) {
	srv := testserver.Start(t, 0)
	client := imgclient.New(srv.Addr)
	lobby := types.NewLobbyID()

	a := upload(t, client, lobby, 1)
	b := upload(t, client, lobby, 3)

	m := mirror.New(client, lobby)
	require.NoError(t, m.Sync(context.Background()))
	assert.Equal(t, []types.RoomID{1, 3}, m.Rooms())
	assert.Equal(t, []types.ImgID{a}, m.Images(1))
	assert.Equal(t, []types.ImgID{b}, m.Images(3))

	// a full sync also drops rooms the store no longer holds
	require.NoError(t, client.DeleteRoom(context.Background(), lobby, 3))
	require.NoError(t, m.Sync(context.Background()))
	assert.Equal(t, []types.RoomID{1}, m.Rooms())
}

func TestSync_EmptyRoomThenUpload(t *testing.T) {
	srv := testserver.Start(t, 0)
	client := imgclient.New(srv.Addr)
	lobby := types.NewLobbyID()
	m := mirror.New(client, lobby)

	require.NoError(t, m.Sync(context.Background(), 7))
	assert.Empty(t, m.Images(7))

	img := upload(t, client, lobby, 7)
	require.NoError(t, m.Sync(context.Background(), 7))
	assert.Equal(t, []types.ImgID{img}, m.Images(7))
}

func TestWithoutChannel_RequestResultsKeepViewCurrent(t *testing.T) {
	srv := testserver.Start(t, 0)
	lobby := types.NewLobbyID()
	m := mirror.New(imgclient.New(srv.Addr), lobby)
	ctx := context.Background()

	a, err := m.Upload(ctx, 1, "a.png", bytes.NewReader(testserver.PNG))
	require.NoError(t, err)
	b, err := m.Upload(ctx, 1, "b.png", bytes.NewReader(testserver.PNG))
	require.NoError(t, err)
	_, err = m.Upload(ctx, 2, "c.png", bytes.NewReader(testserver.PNG))
	require.NoError(t, err)

	require.NoError(t, m.DeleteImage(ctx, 1, a))
	assert.Equal(t, []types.ImgID{b}, m.Images(1))

	require.NoError(t, m.DeleteRoom(ctx, 2))
	assert.Equal(t, []types.RoomID{1}, m.Rooms())

	require.NoError(t, m.DeleteLobby(ctx))
	assert.Empty(t, m.Rooms())
}

func TestUpload_FailureLeavesViewUntouched(t *testing.T) {
	srv := testserver.Start(t, 0)
	m := mirror.New(imgclient.New(srv.Addr), types.NewLobbyID())

	_, err := m.Upload(context.Background(), 1, "a.txt", bytes.NewReader([]byte("text")))
	require.Error(t, err)
	assert.Empty(t, m.Rooms())
}
