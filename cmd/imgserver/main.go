package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/imgsync/internal/config"
	"github.com/DoyleJ11/imgsync/internal/httpapi"
	"github.com/DoyleJ11/imgsync/internal/hub"
	"github.com/DoyleJ11/imgsync/internal/logging"
	"github.com/DoyleJ11/imgsync/internal/store"
)

const version = "0.1.0"

const usage = `Image store server.

Images are kept in memory unless a database url is configured.

Usage:
    imgserver [--config=<path>] [--listen=<addr>] [--database_url=<dsn>]
    imgserver -h | --help
    imgserver --version

Options:
    -h --help               Show this screen.
    --version               Show version.
    --config=<path>         YAML configuration file [default: imgsync.yaml].
    --listen=<addr>         Listen address, overrides listen_addr.
    --database_url=<dsn>    Postgres DSN, overrides database_url.`

const shutdownTimeout = 10 * time.Second

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	path, _ := opts.String("--config")
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if listen, _ := opts.String("--listen"); listen != "" {
		cfg.ListenAddr = listen
	}
	if dsn, _ := opts.String("--database_url"); dsn != "" {
		cfg.DatabaseURL = dsn
	}

	log, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func openStore(cfg config.Config, log *zap.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("using in-memory image store")
		return store.NewMemoryStore(), nil
	}
	return store.OpenPostgres(cfg.DatabaseURL, log)
}

func run(cfg config.Config, log *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, st.Close()) }()

	h := hub.NewHub(ctx, log)
	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:            h,
			Store:          st,
			Log:            log,
			MaxUploadBytes: cfg.MaxUploadBytes,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		// closes websocket sessions so Shutdown does not wait on them
		h.Shutdown()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
