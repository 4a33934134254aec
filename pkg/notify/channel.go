// Package notify implements the receive-only notification channel of a lobby.
//
// A Channel owns exactly one websocket connection for its lifetime. Inbound
// frames are decoded into the Event variants of this package and dispatched,
// in arrival order, to the handlers registered for their Kind. Frames that do
// not parse or carry an unknown discriminant are dropped; OnUnrecognized lets
// callers observe those drops.
//
// There is no reconnection and no buffering: a handler registered after an
// event was delivered never sees it. Register handlers through WithHandlers
// to have them in place before the connection opens.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/imgsync/pkg/emitter"
	"github.com/DoyleJ11/imgsync/pkg/types"
)

var ErrClosed = errors.New("channel closed")

const (
	PathWS            = "/ws/"
	PathNotifications = "/notifications/"

	defaultReadLimit = 64 << 10
)

// Endpoint addresses the notification stream of one lobby.
type Endpoint struct {
	Host   string // host[:port] of the server
	Lobby  types.LobbyID
	Secure bool   // wss instead of ws
	Path   string // PathWS when empty
}

func (e Endpoint) URL() string {
	scheme := "ws"
	if e.Secure {
		scheme = "wss"
	}
	path := e.Path
	if path == "" {
		path = PathWS
	}
	u := url.URL{Scheme: scheme, Host: e.Host, Path: path + string(e.Lobby)}
	return u.String()
}

// Handlers enumerates handlers to register before the connection opens.
// Nil fields are skipped.
type Handlers struct {
	Connected          func(Connected)
	Disconnected       func(Disconnected)
	TransportError     func(TransportError)
	ImageUploaded      func(ImageUploaded)
	ImageDeleted       func(ImageDeleted)
	RoomDeleted        func(RoomDeleted)
	LobbyDeleted       func(LobbyDeleted)
	ChatMessage        func(ChatMessage)
	SystemNotification func(SystemNotification)
	Unrecognized       func(Unrecognized)
}

type Option func(*Channel)

func WithLogger(log *zap.Logger) Option {
	return func(c *Channel) { c.log = log }
}

func WithHandlers(h Handlers) Option {
	return func(c *Channel) { c.pending = append(c.pending, h) }
}

func WithDialOptions(opts *websocket.DialOptions) Option {
	return func(c *Channel) { c.dialOpts = opts }
}

func WithReadLimit(n int64) Option {
	return func(c *Channel) { c.readLimit = n }
}

type Channel struct {
	endpoint  Endpoint
	url       string
	log       *zap.Logger
	dialOpts  *websocket.DialOptions
	readLimit int64
	pending   []Handlers

	events *emitter.Dispatcher[Kind, Event]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	dispatching atomic.Bool // set while handlers run on the read loop

	mu        sync.Mutex
	sessionID types.SessionID
	err       error
}

// Dial starts connecting to the endpoint and returns immediately. The outcome
// is reported through Connected or TransportError. Cancelling ctx has the same
// effect as Close.
func Dial(ctx context.Context, ep Endpoint, opts ...Option) *Channel {
	cctx, cancel := context.WithCancel(ctx)
	c := &Channel{
		endpoint:  ep,
		url:       ep.URL(),
		readLimit: defaultReadLimit,
		ctx:       cctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.log = c.log.With(zap.String("lobby_id", string(ep.Lobby)))
	c.events = emitter.New[Kind, Event](Kind.Valid, c.log)
	for _, h := range c.pending {
		c.Register(h)
	}
	c.pending = nil

	go c.run()
	return c
}

func (c *Channel) Endpoint() Endpoint { return c.endpoint }

// SessionID returns the id announced by the server, or "" before it arrives.
func (c *Channel) SessionID() types.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Err returns the transport error that ended the channel, if any.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed once the channel has torn down.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Close tears the channel down and waits for the read loop to exit. Handlers
// receive a final Disconnected event and are then released. While a handler
// of this channel is running, Close only starts the teardown and returns, so
// handlers may close their own channel; wait on Done for the rest.
func (c *Channel) Close() {
	c.cancel()
	if c.dispatching.Load() {
		return
	}
	<-c.done
}

func (c *Channel) run() {
	defer close(c.done)
	defer c.events.Clear()

	conn, _, err := websocket.Dial(c.ctx, c.url, c.dialOpts)
	if err != nil {
		if c.ctx.Err() != nil {
			c.emit(Disconnected{Code: websocket.StatusNormalClosure, Reason: ErrClosed.Error()})
			return
		}
		c.fail(fmt.Errorf("dial %s: %w", c.url, err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(c.readLimit)

	c.log.Info("notification channel connected", zap.String("url", c.url))
	c.emit(Connected{URL: c.url})

	for {
		_, data, err := conn.Read(c.ctx)
		if err != nil {
			c.finish(err)
			return
		}
		if c.ctx.Err() != nil {
			c.emit(Disconnected{Code: websocket.StatusNormalClosure, Reason: ErrClosed.Error()})
			return
		}
		c.handleFrame(data)
	}
}

func (c *Channel) finish(err error) {
	switch status := websocket.CloseStatus(err); {
	case status != -1:
		var ce websocket.CloseError
		errors.As(err, &ce)
		c.log.Info("notification channel closed", zap.Int("code", int(status)), zap.String("reason", ce.Reason))
		c.emit(Disconnected{Code: status, Reason: ce.Reason})
	case c.ctx.Err() != nil:
		c.log.Info("notification channel closed by client")
		c.emit(Disconnected{Code: websocket.StatusNormalClosure, Reason: ErrClosed.Error()})
	default:
		c.fail(err)
		c.emit(Disconnected{Code: websocket.StatusAbnormalClosure, Reason: err.Error()})
	}
}

func (c *Channel) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()

	c.log.Warn("notification channel transport error", zap.Error(err))
	c.emit(TransportError{Err: err})
}

func (c *Channel) handleFrame(data []byte) {
	ev, name, err := Decode(data)
	if err != nil {
		c.log.Warn("dropping notification frame", zap.String("event", name), zap.Error(err))
		c.emit(Unrecognized{Event: name, Raw: data, Err: err})
		return
	}

	if s, ok := ev.(sessionStarted); ok {
		c.mu.Lock()
		c.sessionID = s.SessionID
		c.mu.Unlock()
		c.log.Debug("session started", zap.String("session_id", string(s.SessionID)))
		return
	}

	c.log.Debug("notification", zap.Stringer("kind", ev.Kind()))
	c.emit(ev)
}

func (c *Channel) emit(ev Event) {
	c.dispatching.Store(true)
	defer c.dispatching.Store(false)
	// handler panics are already logged by the dispatcher
	_ = c.events.Emit(ev.Kind(), ev)
}

// Subscribe registers a handler for every event of kind and returns a token
// for Unsubscribe. Invalid kinds and nil handlers are ignored.
func (c *Channel) Subscribe(kind Kind, h emitter.Handler[Event]) emitter.Registration {
	return c.events.Register(kind, h)
}

func (c *Channel) Unsubscribe(kind Kind, reg emitter.Registration) {
	c.events.Unregister(kind, reg)
}

// Register adds every non-nil handler of h.
func (c *Channel) Register(h Handlers) *Channel {
	return c.OnConnected(h.Connected).
		OnDisconnected(h.Disconnected).
		OnTransportError(h.TransportError).
		OnImageUploaded(h.ImageUploaded).
		OnImageDeleted(h.ImageDeleted).
		OnRoomDeleted(h.RoomDeleted).
		OnLobbyDeleted(h.LobbyDeleted).
		OnChatMessage(h.ChatMessage).
		OnSystemNotification(h.SystemNotification).
		OnUnrecognized(h.Unrecognized)
}

func on[E Event](c *Channel, kind Kind, h func(E)) *Channel {
	if h == nil {
		return c
	}
	c.events.Register(kind, func(ev Event) {
		if e, ok := ev.(E); ok {
			h(e)
		}
	})
	return c
}

func (c *Channel) OnConnected(h func(Connected)) *Channel {
	return on(c, KindConnected, h)
}

func (c *Channel) OnDisconnected(h func(Disconnected)) *Channel {
	return on(c, KindDisconnected, h)
}

func (c *Channel) OnTransportError(h func(TransportError)) *Channel {
	return on(c, KindTransportError, h)
}

func (c *Channel) OnImageUploaded(h func(ImageUploaded)) *Channel {
	return on(c, KindImageUploaded, h)
}

func (c *Channel) OnImageDeleted(h func(ImageDeleted)) *Channel {
	return on(c, KindImageDeleted, h)
}

func (c *Channel) OnRoomDeleted(h func(RoomDeleted)) *Channel {
	return on(c, KindRoomDeleted, h)
}

func (c *Channel) OnLobbyDeleted(h func(LobbyDeleted)) *Channel {
	return on(c, KindLobbyDeleted, h)
}

func (c *Channel) OnChatMessage(h func(ChatMessage)) *Channel {
	return on(c, KindChatMessage, h)
}

func (c *Channel) OnSystemNotification(h func(SystemNotification)) *Channel {
	return on(c, KindSystemNotification, h)
}

// OnUnrecognized observes frames dropped because they did not parse or named
// an unknown event.
func (c *Channel) OnUnrecognized(h func(Unrecognized)) *Channel {
	return on(c, KindUnrecognized, h)
}
