package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/docopt/docopt-go"
	"go.uber.org/zap"

	"github.com/DoyleJ11/imgsync/internal/config"
	"github.com/DoyleJ11/imgsync/internal/logging"
	"github.com/DoyleJ11/imgsync/pkg/imgclient"
	"github.com/DoyleJ11/imgsync/pkg/mirror"
	"github.com/DoyleJ11/imgsync/pkg/notify"
	"github.com/DoyleJ11/imgsync/pkg/types"
)

const version = "0.1.0"

const usage = `Image store control.

The server address defaults to server_addr from the configuration.

Usage:
    imgctl new-lobby
    imgctl rooms <lobby_id> [options]
    imgctl list <lobby_id> <room_id> [options]
    imgctl upload <lobby_id> <room_id> <file> [options]
    imgctl delete <lobby_id> [<room_id> [<img_id>]] [options]
    imgctl chat <lobby_id> <message>... [--username=<name>] [options]
    imgctl url <lobby_id> <room_id> <img_id> [--thumb] [options]
    imgctl fetch <lobby_id> <room_id> <img_id> --out=<file> [--thumb] [options]
    imgctl watch <lobby_id> [options]
    imgctl -h | --help
    imgctl --version

Options:
    -h --help            Show this screen.
    --version            Show version.
    --config=<path>      YAML configuration file [default: imgsync.yaml].
    --server=<addr>      Server host:port, overrides server_addr.
    --secure             Use https and wss.
    --username=<name>    Chat display name, overrides username.
    --thumb              Address the thumbnail instead of the image.
    --out=<file>         Write the fetched bytes here.`

type command func(ctx context.Context, c *imgclient.Client, cfg config.Config, opts docopt.Opts) error

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if ok, _ := opts.Bool("new-lobby"); ok {
		fmt.Println(types.NewLobbyID())
		return
	}

	path, _ := opts.String("--config")
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if server, _ := opts.String("--server"); server != "" {
		cfg.ServerAddr = server
	}
	if secure, _ := opts.Bool("--secure"); secure {
		cfg.Secure = true
	}
	if name, _ := opts.String("--username"); name != "" {
		cfg.Username = name
	}

	log, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	client := imgclient.New(cfg.ServerAddr,
		imgclient.WithLogger(log),
		imgclient.WithSecure(cfg.Secure),
		imgclient.WithTimeout(cfg.RequestTimeout),
	)

	commands := []struct {
		name string
		run  command
	}{
		{"rooms", listRooms},
		{"list", listImages},
		{"upload", upload},
		{"delete", remove},
		{"chat", chat},
		{"url", imageURL},
		{"fetch", fetch},
		{"watch", watch},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, cmd := range commands {
		if ok, _ := opts.Bool(cmd.name); !ok {
			continue
		}
		if err := cmd.run(ctx, client, cfg, opts); err != nil {
			log.Error(cmd.name+" failed", zap.Error(err))
			stop()
			os.Exit(1)
		}
		return
	}
}

func lobbyArg(opts docopt.Opts) (types.LobbyID, error) {
	s, _ := opts.String("<lobby_id>")
	return types.ParseLobbyID(s)
}

func roomArg(opts docopt.Opts) (types.RoomID, error) {
	s, _ := opts.String("<room_id>")
	return types.ParseRoomID(s)
}

func imgArg(opts docopt.Opts) (types.ImgID, error) {
	s, _ := opts.String("<img_id>")
	return types.ParseImgID(s)
}

// target reads <lobby_id> [<room_id> [<img_id>]].
func target(opts docopt.Opts) (imgclient.Target, error) {
	lobby, err := lobbyArg(opts)
	if err != nil {
		return imgclient.Target{}, err
	}
	if s, _ := opts.String("<room_id>"); s == "" {
		return imgclient.LobbyTarget(lobby), nil
	}
	room, err := roomArg(opts)
	if err != nil {
		return imgclient.Target{}, err
	}
	if s, _ := opts.String("<img_id>"); s == "" {
		return imgclient.RoomTarget(lobby, room), nil
	}
	img, err := imgArg(opts)
	if err != nil {
		return imgclient.Target{}, err
	}
	return imgclient.ImageTarget(lobby, room, img), nil
}

func listRooms(ctx context.Context, c *imgclient.Client, _ config.Config, opts docopt.Opts) error {
	lobby, err := lobbyArg(opts)
	if err != nil {
		return err
	}
	rooms, err := c.ListRooms(ctx, lobby)
	if err != nil {
		return err
	}
	for _, r := range rooms {
		fmt.Println(r)
	}
	return nil
}

func listImages(ctx context.Context, c *imgclient.Client, _ config.Config, opts docopt.Opts) error {
	lobby, err := lobbyArg(opts)
	if err != nil {
		return err
	}
	room, err := roomArg(opts)
	if err != nil {
		return err
	}
	imgs, err := c.ListImages(ctx, lobby, room)
	if err != nil {
		return err
	}
	for _, img := range imgs {
		fmt.Println(img)
	}
	return nil
}

func upload(ctx context.Context, c *imgclient.Client, _ config.Config, opts docopt.Opts) error {
	lobby, err := lobbyArg(opts)
	if err != nil {
		return err
	}
	room, err := roomArg(opts)
	if err != nil {
		return err
	}
	file, _ := opts.String("<file>")
	res, err := c.UploadFile(ctx, lobby, room, file)
	if err != nil {
		return err
	}
	fmt.Println(res.ImgID)
	return nil
}

func remove(ctx context.Context, c *imgclient.Client, _ config.Config, opts docopt.Opts) error {
	t, err := target(opts)
	if err != nil {
		return err
	}
	return c.Delete(ctx, t)
}

func chat(ctx context.Context, c *imgclient.Client, cfg config.Config, opts docopt.Opts) error {
	lobby, err := lobbyArg(opts)
	if err != nil {
		return err
	}
	words, _ := opts["<message>"].([]string)
	return c.SendChatAs(ctx, lobby, cfg.Username, strings.Join(words, " "))
}

func imageURL(_ context.Context, c *imgclient.Client, _ config.Config, opts docopt.Opts) error {
	t, err := target(opts)
	if err != nil {
		return err
	}
	thumb, _ := opts.Bool("--thumb")
	fmt.Println(c.ImageURL(t.Lobby, *t.Room, *t.Img, thumb))
	return nil
}

func fetch(ctx context.Context, c *imgclient.Client, _ config.Config, opts docopt.Opts) error {
	t, err := target(opts)
	if err != nil {
		return err
	}
	thumb, _ := opts.Bool("--thumb")
	data, err := c.FetchImage(ctx, t.Lobby, *t.Room, *t.Img, thumb)
	if err != nil {
		return err
	}
	out, _ := opts.String("--out")
	return os.WriteFile(out, data, 0o644)
}

// watch mirrors the lobby and prints every notification until interrupted or
// the channel closes.
func watch(ctx context.Context, c *imgclient.Client, _ config.Config, opts docopt.Opts) error {
	lobby, err := lobbyArg(opts)
	if err != nil {
		return err
	}

	m := mirror.New(c, lobby)
	m.OnChange(func(chg mirror.Change) { fmt.Println("view:", chg) })

	synced := make(chan error, 1)
	ch := m.Connect(ctx, notify.WithHandlers(notify.Handlers{
		Connected: func(e notify.Connected) {
			fmt.Println("connected", e.URL)
			// read what predates the subscription off the channel goroutine
			go func() { synced <- m.Sync(ctx) }()
		},
		Disconnected:   func(e notify.Disconnected) { fmt.Printf("disconnected (%d) %s\n", e.Code, e.Reason) },
		TransportError: func(e notify.TransportError) { fmt.Println("transport error:", e.Err) },
		ChatMessage:    func(e notify.ChatMessage) { fmt.Printf("<%s> %s\n", e.Username, e.Msg) },
		SystemNotification: func(e notify.SystemNotification) {
			fmt.Printf("[%s] %s\n", e.MsgType, e.Msg)
		},
		Unrecognized: func(e notify.Unrecognized) { fmt.Printf("ignored frame %q\n", e.Event) },
	}))
	defer m.Close()

	for {
		select {
		case err := <-synced:
			if err != nil {
				return err
			}
			for _, room := range m.Rooms() {
				fmt.Printf("room %d: %v\n", room, m.Images(room))
			}
		case <-ch.Done():
			return ch.Err()
		}
	}
}
