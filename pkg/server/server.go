package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/Snider/Slicer/pkg/assets"
	"github.com/Snider/Slicer/pkg/datanode"
)

//go:embed index.html
var indexHTML []byte

// IndexPath is where the demo page is served when the tree has none.
const IndexPath = "index.html"

// Server serves a bundle's files, plus any extra application files, from
// one origin.
type Server struct {
	files *datanode.DataNode
	addr  string
}

// New returns a Server for b listening on addr. Files already in b take
// precedence over the built-in index page.
func New(b *assets.Bundle, addr string) *Server {
	files := b.Files
	if ok, _ := files.Exists(IndexPath); !ok {
		files.AddData(IndexPath, indexHTML)
	}
	return &Server{files: files, addr: addr}
}

// Add serves data at name, replacing anything already there.
func (s *Server) Add(name string, data []byte) {
	s.files.AddData(name, data)
}

// Handler returns the HTTP handler serving the tree.
func (s *Server) Handler() http.Handler {
	files := http.FileServer(http.FS(s.files))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		isolate(w.Header())
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if t := contentType(r.URL.Path); t != "" {
			w.Header().Set("Content-Type", t)
		}
		files.ServeHTTP(w, r)
	})
}

// isolate sets the headers that make the page cross-origin isolated, which
// SharedArrayBuffer and hence the threaded engine require.
func isolate(h http.Header) {
	h.Set("Cross-Origin-Opener-Policy", "same-origin")
	h.Set("Cross-Origin-Embedder-Policy", "require-corp")
	h.Set("Cross-Origin-Resource-Policy", "same-origin")
}

func contentType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".wasm":
		return "application/wasm"
	case ".js", ".mjs":
		return "text/javascript; charset=utf-8"
	}
	return ""
}

// Serve listens on the server's address until ctx is cancelled, then shuts
// down gracefully. ready, when not nil, receives the bound address.
func (s *Server) Serve(ctx context.Context, ready func(addr string)) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if ready != nil {
		ready(ln.Addr().String())
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// URL returns the page URL for a bound address such as "127.0.0.1:8080".
func URL(addr string) string {
	return fmt.Sprintf("http://%s/", addr)
}
