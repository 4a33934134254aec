// Package imgclient is the request/response side of the image store: listing,
// uploading, deleting, chatting and fetching images. Every call is stateless;
// the store is authoritative.
package imgclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/DoyleJ11/imgsync/pkg/notify"
	"github.com/DoyleJ11/imgsync/pkg/types"
)

var ErrInvalidTarget = errors.New("invalid delete target")

type Client struct {
	addr    string
	secure  bool
	timeout time.Duration
	hc      *http.Client
	rc      *resty.Client
	log     *zap.Logger
}

type Option func(*Client)

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithSecure switches to https and wss.
func WithSecure(secure bool) Option {
	return func(c *Client) { c.secure = secure }
}

// WithTimeout bounds every request. Without it the client imposes no
// timeout of its own; cancel the request context instead.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// New returns a client for the server at serverAddr (host[:port]).
func New(serverAddr string, opts ...Option) *Client {
	c := &Client{
		addr: serverAddr,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hc != nil {
		c.rc = resty.NewWithClient(c.hc)
	} else {
		c.rc = resty.New()
	}
	c.rc.SetBaseURL(c.baseURL())
	if c.timeout > 0 {
		c.rc.SetTimeout(c.timeout)
	}
	return c
}

func (c *Client) ServerAddr() string { return c.addr }

func (c *Client) baseURL() string {
	scheme := "http"
	if c.secure {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: c.addr}).String()
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.rc.R().SetContext(ctx)
}

// do sends req and converts a non-2xx answer into a RequestError.
func (c *Client) do(op string, req *resty.Request, method, route string) (*resty.Response, error) {
	resp, err := req.Execute(method, route)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.log.Debug("request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", resp.Request.URL),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("took", resp.Time()),
	)

	if code := resp.StatusCode(); code < 200 || code > 299 {
		return resp, &RequestError{
			Op:         op,
			StatusCode: code,
			Status:     resp.Status(),
			Body:       resp.String(),
		}
	}
	return resp, nil
}

// ListRooms returns the ids of every room in the lobby that holds images.
func (c *Client) ListRooms(ctx context.Context, lobby types.LobbyID) ([]types.RoomID, error) {
	req := c.request(ctx).SetPathParam("lobby_id", string(lobby))
	resp, err := c.do("list rooms", req, http.MethodGet, "/list/{lobby_id}")
	if err != nil {
		return nil, err
	}
	return decodeList[types.RoomID]("list rooms", resp.Body())
}

// ListImages returns the ids of the images stored in a room, in server order.
func (c *Client) ListImages(ctx context.Context, lobby types.LobbyID, room types.RoomID) ([]types.ImgID, error) {
	req := c.request(ctx).SetPathParams(map[string]string{
		"lobby_id": string(lobby),
		"room_id":  room.String(),
	})
	resp, err := c.do("list images", req, http.MethodGet, "/list/{lobby_id}/{room_id}")
	if err != nil {
		return nil, err
	}
	return decodeList[types.ImgID]("list images", resp.Body())
}

func decodeList[T any](op string, body []byte) ([]T, error) {
	out := []T{}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// UploadImage stores image in the room. The server also broadcasts an
// ImageUploaded notification to every channel of the lobby, this caller's
// included.
func (c *Client) UploadImage(ctx context.Context, lobby types.LobbyID, room types.RoomID, filename string, image io.Reader) (types.UploadResult, error) {
	req := c.request(ctx).SetFileReader("image", filename, image)
	return c.upload(req, lobby, room)
}

// UploadFile is UploadImage reading from a file on disk.
func (c *Client) UploadFile(ctx context.Context, lobby types.LobbyID, room types.RoomID, file string) (types.UploadResult, error) {
	req := c.request(ctx).SetFile("image", file)
	return c.upload(req, lobby, room)
}

func (c *Client) upload(req *resty.Request, lobby types.LobbyID, room types.RoomID) (types.UploadResult, error) {
	req.SetPathParams(map[string]string{
		"lobby_id": string(lobby),
		"room_id":  room.String(),
	})
	resp, err := c.do("upload image", req, http.MethodPost, "/upload/{lobby_id}/{room_id}")
	if err != nil {
		return types.UploadResult{}, err
	}
	return decodeUploadResult(resp.Body())
}

// decodeUploadResult accepts {"img_id":n} as well as a bare n, which older
// servers send.
func decodeUploadResult(body []byte) (types.UploadResult, error) {
	var res types.UploadResult
	if err := json.Unmarshal(body, &res); err == nil {
		return res, nil
	}
	var id types.ImgID
	if err := json.Unmarshal(body, &id); err != nil {
		return types.UploadResult{}, fmt.Errorf("upload image: decode response %q: %w", body, err)
	}
	return types.UploadResult{ImgID: id}, nil
}

// Target selects what Delete removes: a lobby, one room, or one image.
type Target struct {
	Lobby types.LobbyID
	Room  *types.RoomID
	Img   *types.ImgID
}

func LobbyTarget(lobby types.LobbyID) Target { return Target{Lobby: lobby} }

func RoomTarget(lobby types.LobbyID, room types.RoomID) Target {
	return Target{Lobby: lobby, Room: &room}
}

func ImageTarget(lobby types.LobbyID, room types.RoomID, img types.ImgID) Target {
	return Target{Lobby: lobby, Room: &room, Img: &img}
}

func (t Target) route() (string, error) {
	if t.Lobby == "" || (t.Img != nil && t.Room == nil) {
		return "", ErrInvalidTarget
	}
	segs := []string{"/delete", url.PathEscape(string(t.Lobby))}
	if t.Room != nil {
		segs = append(segs, t.Room.String())
		if t.Img != nil {
			segs = append(segs, t.Img.String())
		}
	}
	return path.Join(segs...), nil
}

// Delete removes the lobby, room or image named by t.
func (c *Client) Delete(ctx context.Context, t Target) error {
	route, err := t.route()
	if err != nil {
		return err
	}
	_, err = c.do("delete", c.request(ctx), http.MethodPost, route)
	return err
}

func (c *Client) DeleteLobby(ctx context.Context, lobby types.LobbyID) error {
	return c.Delete(ctx, LobbyTarget(lobby))
}

func (c *Client) DeleteRoom(ctx context.Context, lobby types.LobbyID, room types.RoomID) error {
	return c.Delete(ctx, RoomTarget(lobby, room))
}

func (c *Client) DeleteImage(ctx context.Context, lobby types.LobbyID, room types.RoomID, img types.ImgID) error {
	return c.Delete(ctx, ImageTarget(lobby, room, img))
}

// SendChat posts msg to the lobby's chat stream.
func (c *Client) SendChat(ctx context.Context, lobby types.LobbyID, msg string) error {
	return c.SendChatAs(ctx, lobby, "", msg)
}

// SendChatAs is SendChat with a display name; empty lets the server choose.
func (c *Client) SendChatAs(ctx context.Context, lobby types.LobbyID, username, msg string) error {
	req := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(types.ChatMessageRequest{LobbyID: lobby, Msg: msg, Username: username})
	_, err := c.do("send chat", req, http.MethodPost, "/chat")
	return err
}

// ImageURL builds the retrieval address of an image or its thumbnail. It does
// not contact the server.
func (c *Client) ImageURL(lobby types.LobbyID, room types.RoomID, img types.ImgID, thumbnail bool) string {
	return c.baseURL() + imagePath(lobby, room, img, thumbnail)
}

func imagePath(lobby types.LobbyID, room types.RoomID, img types.ImgID, thumbnail bool) string {
	segs := []string{"/img"}
	if thumbnail {
		segs = append(segs, "thumb")
	}
	segs = append(segs, url.PathEscape(string(lobby)), room.String(), img.String())
	return path.Join(segs...)
}

// FetchImage downloads an image or its thumbnail.
func (c *Client) FetchImage(ctx context.Context, lobby types.LobbyID, room types.RoomID, img types.ImgID, thumbnail bool) ([]byte, error) {
	resp, err := c.do("fetch image", c.request(ctx), http.MethodGet, imagePath(lobby, room, img, thumbnail))
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// Connect opens the notification channel of lobby on the same server.
func (c *Client) Connect(ctx context.Context, lobby types.LobbyID, opts ...notify.Option) *notify.Channel {
	ep := notify.Endpoint{Host: c.addr, Lobby: lobby, Secure: c.secure}
	opts = append([]notify.Option{notify.WithLogger(c.log)}, opts...)
	return notify.Dial(ctx, ep, opts...)
}
