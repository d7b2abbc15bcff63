package main

import (
	"embed"
	"fmt"
	"io/fs"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

//go:embed assets
var embeddedAssets embed.FS

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

// Server exposes the live session over HTTP: the embedded player, a JSON
// event stream and the binary ALiS stream. All subscriber admission goes
// through the event loop.
type Server struct {
	loop      *EventLoop
	customCSS []byte
}

func NewServer(loop *EventLoop, customCSS []byte) *Server {
	return &Server{loop: loop, customCSS: customCSS}
}

// Handler builds the route table. Static assets are served from the
// embedded filesystem with MIME types guessed from the extension; unknown
// paths 404.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	assets, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		// The embed directive guarantees the subtree exists.
		panic(err)
	}
	mux.Handle("/", http.FileServer(http.FS(assets)))

	mux.HandleFunc("/custom.css", s.handleCustomCSS)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/ws/events", s.handleEvents)
	mux.HandleFunc("/ws/alis", s.handleAlis)
	return mux
}

// Listen binds the address eagerly so bind failures surface at startup,
// then serves in the background.
func (s *Server) Listen(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	go func() {
		if err := http.Serve(ln, s.Handler()); err != nil {
			log.Debug().Err(err).Msg("http server stopped")
		}
	}()
	return ln.Addr().String(), nil
}

// handleCustomCSS serves the --custom-css file, or an empty stylesheet
// when none was given, so the player can always link it.
func (s *Server) handleCustomCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Write(s.customCSS)
}

// handleSnapshot serves the current screen as a static HTML page, for
// looking at a session without a websocket-capable client.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loop.View()
	if !ok {
		http.Error(w, "session closed", http.StatusGone)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>ht snapshot %dx%d</title>
<link rel="stylesheet" href="custom.css">
<style>
body { background: #0a0a0a; color: #c0c0c0; }
pre.screen { font-family: 'SF Mono', 'Monaco', 'Courier New', monospace; line-height: 1.2; }
pre.screen .bold { font-weight: bold; }
pre.screen .italic { font-style: italic; }
pre.screen .underline { text-decoration: underline; }
pre.screen .reverse { filter: invert(1); }
</style>
</head>
<body>
<pre class="screen">
%s</pre>
</body>
</html>
`, snap.Cols, snap.Rows, snap.HTML)
}

// handleEvents upgrades to a websocket and streams events matching the
// sub query parameter ("+"-separated event names; all when absent) as one
// JSON text message each.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	mask := MaskAll
	if raw := r.URL.Query().Get("sub"); raw != "" {
		m, err := ParseEventMask(raw, "+")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mask = m
	}

	sub, ok := s.loop.Attach(mask, jsonQueueSize)
	if !ok {
		http.Error(w, "session closed", http.StatusGone)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade")
		s.loop.bus.Remove(sub)
		return
	}

	log.Info().Str("subscriber", sub.ID).Str("remote", r.RemoteAddr).Msg("events client connected")
	go RunEventsClient(conn, sub, func() {
		s.loop.bus.Remove(sub)
		log.Info().Str("subscriber", sub.ID).Msg("events client disconnected")
	})
}

// handleAlis upgrades to a websocket and streams the binary live-stream
// framing. The mask is fixed: geometry plus output.
func (s *Server) handleAlis(w http.ResponseWriter, r *http.Request) {
	mask := EventMask(EventInit | EventOutput | EventResize)

	sub, ok := s.loop.Attach(mask, alisQueueSize)
	if !ok {
		http.Error(w, "session closed", http.StatusGone)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade")
		s.loop.bus.Remove(sub)
		return
	}

	log.Info().Str("subscriber", sub.ID).Str("remote", r.RemoteAddr).Msg("alis client connected")
	go RunAlisClient(conn, sub, func() {
		s.loop.bus.Remove(sub)
		log.Info().Str("subscriber", sub.ID).Msg("alis client disconnected")
	})
}
