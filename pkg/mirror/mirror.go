// Package mirror keeps a local view of a lobby consistent with the remote
// store.
//
// A Mirror receives state changes from two sources: the results of its own
// requests, and the lobby's notification channel, which echoes those same
// mutations back to their originator. Every change is applied through View,
// whose identity check turns the second arrival into a no-op, so the order in
// which the two sources arrive does not matter. Without a channel, request
// results alone keep the view current.
package mirror

import (
	"context"
	"io"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/imgsync/pkg/emitter"
	"github.com/DoyleJ11/imgsync/pkg/imgclient"
	"github.com/DoyleJ11/imgsync/pkg/notify"
	"github.com/DoyleJ11/imgsync/pkg/types"
)

const syncConcurrency = 4

type topic uint8

const topicChange topic = 1

type Mirror struct {
	lobby  types.LobbyID
	client *imgclient.Client
	log    *zap.Logger

	mu    sync.Mutex
	view  *View
	ch    *notify.Channel
	syncs map[*touches]struct{} // one per Sync between listing and diff

	observers *emitter.Dispatcher[topic, Change]
}

type Option func(*Mirror)

func WithLogger(log *zap.Logger) Option {
	return func(m *Mirror) { m.log = log }
}

func New(client *imgclient.Client, lobby types.LobbyID, opts ...Option) *Mirror {
	m := &Mirror{
		lobby:  lobby,
		client: client,
		view:   NewView(),
		syncs:  make(map[*touches]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	m.log = m.log.With(zap.String("lobby_id", string(lobby)))
	m.observers = emitter.New[topic, Change](nil, m.log)
	return m
}

func (m *Mirror) Lobby() types.LobbyID { return m.lobby }

// OnChange registers h for every change that altered the view. Handlers run
// on whichever goroutine applied the change: the caller's for request
// results, the channel's for notifications.
func (m *Mirror) OnChange(h func(Change)) emitter.Registration {
	return m.observers.Register(topicChange, h)
}

func (m *Mirror) RemoveObserver(reg emitter.Registration) {
	m.observers.Unregister(topicChange, reg)
}

// Apply feeds one change into the view and reports whether it took effect.
func (m *Mirror) Apply(c Change) bool {
	return len(m.apply("local", c)) > 0
}

func (m *Mirror) apply(source string, changes ...Change) []Change {
	m.mu.Lock()
	for t := range m.syncs {
		for _, c := range changes {
			t.record(c)
		}
	}
	applied := m.view.Reduce(changes)
	m.mu.Unlock()

	m.publish(source, changes, applied)
	return applied
}

// publish logs changes and tells observers about the applied ones. It must
// run without m.mu held.
func (m *Mirror) publish(source string, changes, applied []Change) {
	for _, c := range changes {
		m.log.Debug("change",
			zap.String("source", source),
			zap.Stringer("change", c),
			zap.Bool("applied", slices.Contains(applied, c)),
		)
	}
	for _, c := range applied {
		_ = m.observers.Emit(topicChange, c)
	}
}

// Handlers maps the lobby's notifications onto view changes.
func (m *Mirror) Handlers() notify.Handlers {
	return notify.Handlers{
		ImageUploaded: func(e notify.ImageUploaded) {
			m.apply("notification", ImageAdded{Room: e.RoomID, Img: e.ImgID})
		},
		ImageDeleted: func(e notify.ImageDeleted) {
			m.apply("notification", ImageRemoved{Room: e.RoomID, Img: e.ImgID})
		},
		RoomDeleted: func(e notify.RoomDeleted) {
			m.apply("notification", RoomRemoved{Room: e.RoomID})
		},
		LobbyDeleted: func(notify.LobbyDeleted) {
			m.apply("notification", LobbyRemoved{})
		},
		Disconnected: func(e notify.Disconnected) {
			m.log.Info("mirror lost its notification channel", zap.Int("code", int(e.Code)), zap.String("reason", e.Reason))
		},
	}
}

// Connect subscribes the mirror to the lobby's notification channel. The
// mirror's handlers are in place before the connection opens; opts may add
// more. Call Sync once Connected fires to pick up state that predates the
// subscription.
func (m *Mirror) Connect(ctx context.Context, opts ...notify.Option) *notify.Channel {
	opts = append(opts, notify.WithHandlers(m.Handlers()))
	ch := m.client.Connect(ctx, m.lobby, opts...)

	m.mu.Lock()
	prev := m.ch
	m.ch = ch
	m.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return ch
}

// Close tears down the channel opened by Connect, if any.
func (m *Mirror) Close() {
	m.mu.Lock()
	ch := m.ch
	m.ch = nil
	m.mu.Unlock()
	if ch != nil {
		ch.Close()
	}
}

// Sync reads the listed rooms from the store and reconciles the view with
// them. With no rooms given it lists every room of the lobby first and also
// drops local rooms the store no longer has. Changes applied while the
// listing is in flight are newer than it, so Sync leaves their identity keys
// alone.
func (m *Mirror) Sync(ctx context.Context, rooms ...types.RoomID) error {
	t := newTouches()
	m.mu.Lock()
	m.syncs[t] = struct{}{}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.syncs, t)
		m.mu.Unlock()
	}()

	full := len(rooms) == 0
	if full {
		var err error
		if rooms, err = m.client.ListRooms(ctx, m.lobby); err != nil {
			return err
		}
	}

	listed := make([][]types.ImgID, len(rooms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for i, room := range rooms {
		g.Go(func() error {
			imgs, err := m.client.ListImages(gctx, m.lobby, room)
			if err != nil {
				return err
			}
			listed[i] = imgs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// diff and apply under one lock so no change slips in between
	m.mu.Lock()
	var changes []Change
	if full {
		for _, room := range m.view.Rooms() {
			if !slices.Contains(rooms, room) {
				changes = append(changes, RoomRemoved{Room: room})
			}
		}
	}
	for i, room := range rooms {
		changes = append(changes, m.view.Diff(room, listed[i])...)
	}
	changes = slices.DeleteFunc(changes, t.covers)
	applied := m.view.Reduce(changes)
	m.mu.Unlock()

	m.publish("sync", changes, applied)
	m.log.Debug("synced", zap.Int("rooms", len(rooms)), zap.Int("changes", len(applied)))
	return nil
}

// Upload stores an image and applies the result at once. The matching
// ImageUploaded notification, whenever it arrives, is then a no-op.
func (m *Mirror) Upload(ctx context.Context, room types.RoomID, filename string, image io.Reader) (types.ImgID, error) {
	res, err := m.client.UploadImage(ctx, m.lobby, room, filename, image)
	if err != nil {
		return 0, err
	}
	m.apply("request", ImageAdded{Room: room, Img: res.ImgID})
	return res.ImgID, nil
}

func (m *Mirror) DeleteImage(ctx context.Context, room types.RoomID, img types.ImgID) error {
	if err := m.client.DeleteImage(ctx, m.lobby, room, img); err != nil {
		return err
	}
	m.apply("request", ImageRemoved{Room: room, Img: img})
	return nil
}

func (m *Mirror) DeleteRoom(ctx context.Context, room types.RoomID) error {
	if err := m.client.DeleteRoom(ctx, m.lobby, room); err != nil {
		return err
	}
	m.apply("request", RoomRemoved{Room: room})
	return nil
}

func (m *Mirror) DeleteLobby(ctx context.Context) error {
	if err := m.client.DeleteLobby(ctx, m.lobby); err != nil {
		return err
	}
	m.apply("request", LobbyRemoved{})
	return nil
}

func (m *Mirror) Images(room types.RoomID) []types.ImgID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view.Images(room)
}

func (m *Mirror) Rooms() []types.RoomID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view.Rooms()
}

func (m *Mirror) Has(room types.RoomID, img types.ImgID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view.Has(room, img)
}

// Snapshot returns a copy of the current view.
func (m *Mirror) Snapshot() *View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view.Clone()
}
