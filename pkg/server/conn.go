package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SafeConn wraps a websocket connection for concurrent writers.
// The bridge may forward frames to the same connection from several
// read loops at once; gorilla/websocket allows only one writer.
type SafeConn struct {
	*websocket.Conn
	id           string
	writeTimeout time.Duration
	debug        *FrameDebugger
	mu           sync.Mutex
}

func NewSafeConn(conn *websocket.Conn, id string, writeTimeout time.Duration, debug *FrameDebugger) *SafeConn {
	return &SafeConn{
		Conn:         conn,
		id:           id,
		writeTimeout: writeTimeout,
		debug:        debug,
	}
}

func (sc *SafeConn) ID() string {
	return sc.id
}

// ReadText blocks until the next text frame arrives.
// Control frames are handled by gorilla internally; binary frames are
// not part of the protocol and are skipped.
func (sc *SafeConn) ReadText() ([]byte, error) {
	for {
		msgType, data, err := sc.Conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		sc.debug.Log("<-", data)
		return data, nil
	}
}

// WriteText sends a text frame, serialized against other writers.
// A stuck peer must not block the bridge forever, so every write
// carries a deadline.
func (sc *SafeConn) WriteText(data []byte) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.writeTimeout > 0 {
		sc.Conn.SetWriteDeadline(time.Now().Add(sc.writeTimeout))
	}
	sc.debug.Log("->", data)
	return sc.Conn.WriteMessage(websocket.TextMessage, data)
}

func (sc *SafeConn) Close() error {
	sc.debug.Close()
	return sc.Conn.Close()
}
