// Package testserver runs the reference server on a loopback port for tests.
package testserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/DoyleJ11/imgsync/internal/httpapi"
	"github.com/DoyleJ11/imgsync/internal/hub"
	"github.com/DoyleJ11/imgsync/internal/store"
)

type Server struct {
	Addr  string // host:port
	URL   string
	Hub   *hub.Hub
	Store *store.MemoryStore
}

// Start serves the reference routes until the test ends.
func Start(t testing.TB, maxUploadBytes int64) *Server {
	t.Helper()

	// handler goroutines may outlive the test, so no zaptest logger here
	log := zap.NewNop()
	h := hub.NewHub(context.Background(), log)
	st := store.NewMemoryStore()

	srv := httptest.NewServer(httpapi.SetupRoutes(httpapi.Deps{
		Hub:            h,
		Store:          st,
		Log:            log,
		MaxUploadBytes: maxUploadBytes,
	}))
	t.Cleanup(func() {
		h.Shutdown()
		srv.Close()
	})

	return &Server{
		Addr:  strings.TrimPrefix(srv.URL, "http://"),
		URL:   srv.URL,
		Hub:   h,
		Store: st,
	}
}

// PNG is the smallest payload the server accepts as an image.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
