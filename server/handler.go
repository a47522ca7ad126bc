// Package server exposes the machine state over a single WebSocket endpoint.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/hubertat/pacball/bridge"
	"github.com/hubertat/pacball/machine"
	"github.com/hubertat/pacball/wsframe"
)

const (
	// MaxPayload bounds a single inbound frame.
	MaxPayload = 8192

	plainBody        = "Initiate WS Upgrade request to switch this connection to WS"
	corsMaxAge       = "86400"
	corsAllowMethods = "GET, OPTIONS"
	wsVersion        = "13"

	httpTimeout         = 3 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

// Server publishes Inputs to the streaming client and forwards decoded
// Outputs commands. Both bridges must be set before serving.
type Server struct {
	Inputs   *bridge.Signal[machine.Inputs]
	Commands *bridge.Signal[machine.Outputs]

	// AllowedOrigins are origin hosts that receive CORS headers; nil means
	// DefaultAllowedOrigins.
	AllowedOrigins []string
	// StrictOrigin refuses upgrades whose origin is not allowed.
	StrictOrigin bool
	WriteTimeout time.Duration
	// OnStream is called with true when a client starts streaming and with
	// false once it is gone.
	OnStream func(active bool)
	Logger   *log.Logger

	loggerOnce sync.Once
}

// logger falls back to a default logger, created once since every
// connection goroutine logs through it.
func (s *Server) logger() *log.Logger {
	s.loggerOnce.Do(func() {
		if s.Logger == nil {
			s.Logger = log.NewWithOptions(os.Stderr, log.Options{
				Prefix: "Server 🎱: ",
				Level:  log.GetLevel(),
			})
		}
	})
	return s.Logger
}

func (s *Server) writeTimeout() time.Duration {
	if s.WriteTimeout <= 0 {
		return defaultWriteTimeout
	}
	return s.WriteTimeout
}

// Handler routes GET / and answers preflights for any path. Every other
// method is refused before routing.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.HandleMethodNotAllowed = false
	router.HandleOPTIONS = false
	router.NotFound = http.HandlerFunc(s.handleNotFound)
	router.GET("/", s.handleRoot)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			s.handlePreflight(w, r)
		case http.MethodGet:
			router.ServeHTTP(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

// Serve accepts connections on l until ctx is done or the listener fails.
// A cancelled ctx is a clean stop and returns nil.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: httpTimeout,
		IdleTimeout:       2 * httpTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			srv.Close()
		case <-stop:
		}
	}()

	err := srv.Serve(l)
	if ctx.Err() != nil {
		return nil
	}
	return &TransportError{Op: "accept", Err: err}
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	origin := s.allowedOrigin(r)
	if origin != "" {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", corsAllowMethods)
		h.Set("Access-Control-Allow-Headers", r.Header.Get("Access-Control-Request-Headers"))
		h.Set("Access-Control-Max-Age", corsMaxAge)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if origin := s.allowedOrigin(r); origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
	w.WriteHeader(http.StatusNotFound)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	origin := s.allowedOrigin(r)

	if !websocket.IsWebSocketUpgrade(r) {
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, plainBody)
		return
	}

	if s.StrictOrigin && origin == "" {
		s.logger().Warn("refusing upgrade", "remote", r.RemoteAddr, "origin", r.Header.Get("Origin"))
		w.WriteHeader(http.StatusForbidden)
		return
	}

	err := s.upgrade(w, r)
	if err != nil {
		s.logger().Error("websocket connection ended", "remote", r.RemoteAddr, "err", err)
		return
	}
	s.logger().Info("websocket connection closed", "remote", r.RemoteAddr)
}

// upgrade completes the handshake on the raw connection and runs the
// stream until it ends.
func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) error {
	if r.Header.Get("Sec-WebSocket-Version") != wsVersion {
		w.Header().Set("Sec-WebSocket-Version", wsVersion)
		w.WriteHeader(http.StatusUpgradeRequired)
		return protocolError("unsupported websocket version", 0, nil)
	}
	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		w.WriteHeader(http.StatusBadRequest)
		return protocolError("missing Sec-WebSocket-Key", 0, nil)
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return &TransportError{Op: "hijack", Err: fmt.Errorf("%T cannot hijack", w)}
	}
	conn, rw, err := hijacker.Hijack()
	if err != nil {
		return &TransportError{Op: "hijack", Err: err}
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout()))
	_, err = fmt.Fprintf(rw, "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Accept: %s\r\n\r\n", wsframe.AcceptKey(key))
	if err == nil {
		err = rw.Flush()
	}
	if err != nil {
		return &TransportError{Op: "handshake", Err: err}
	}
	conn.SetDeadline(time.Time{})

	s.logger().Info("websocket connection opened", "remote", conn.RemoteAddr())
	if s.OnStream != nil {
		s.OnStream(true)
		defer s.OnStream(false)
	}

	return s.stream(r.Context(), conn, rw.Reader)
}
