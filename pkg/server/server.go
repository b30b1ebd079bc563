package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chromebridge/pkg/bridge"
	"chromebridge/pkg/config"
	"chromebridge/pkg/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Extension connects from a chrome-extension:// origin
	},
}

// Server owns the WebSocket listener and hands every upgraded
// connection to the bridge.
type Server struct {
	bridge       *bridge.Bridge
	cfg          config.BridgeConfig
	writeTimeout time.Duration
	retryDelay   time.Duration
	bindDeadline time.Duration
	debugFrames  bool

	server *http.Server
	ln     net.Listener
}

func New(b *bridge.Bridge, cfg config.BridgeConfig, sys *config.SystemConfig) *Server {
	return &Server{
		bridge:       b,
		cfg:          cfg,
		writeTimeout: time.Duration(sys.WriteTimeoutMs) * time.Millisecond,
		retryDelay:   time.Duration(sys.BindRetryDelayMs) * time.Millisecond,
		bindDeadline: time.Duration(sys.BindDeadlineMs) * time.Millisecond,
		debugFrames:  sys.DebugFrames,
	}
}

// Start binds the listener and begins serving in the background.
// A lingering socket from a previous instance releases within seconds,
// so binding retries until the deadline instead of failing outright.
func (s *Server) Start() error {
	ln, err := s.listenWithRetry()
	if err != nil {
		return err
	}
	s.ln = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebSocket)
	s.server = &http.Server{Handler: mux}

	slog.Info("Bridge listening", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("Bridge server error", "error", err)
		}
	}()

	return nil
}

func (s *Server) listenWithRetry() (net.Listener, error) {
	deadline := time.Now().Add(s.bindDeadline)
	for {
		ln, err := net.Listen("tcp", s.cfg.Addr())
		if err == nil {
			return ln, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("failed to bind %s: %w", s.cfg.Addr(), err)
		}
		slog.Warn("Bridge port busy, retrying", "addr", s.cfg.Addr(), "error", err)
		time.Sleep(s.retryDelay)
	}
}

// Addr reports the bound address. Only valid after Start succeeds.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.cfg.Addr()
	}
	return s.ln.Addr().String()
}

func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WS Upgrade failed", "error", err)
		return
	}

	connID := utils.GenerateID()
	conn := NewSafeConn(rawConn, connID, s.writeTimeout, NewFrameDebugger(connID, s.debugFrames))

	slog.Debug("Connection upgraded", "conn", connID, "remote", r.RemoteAddr)

	// Blocks for the lifetime of the connection; the bridge closes it.
	s.bridge.HandleConnection(conn)
}
