package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"chromebridge/pkg/api"
	"chromebridge/pkg/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client issues tool requests to the bridge as a controller.
// Each call opens its own short-lived connection, so callers never
// share socket state and a crashed call leaves nothing behind.
type Client struct {
	url          string
	dialTimeout  time.Duration
	replyTimeout time.Duration
}

func New(url string, sys *config.SystemConfig) *Client {
	return &Client{
		url:          url,
		dialTimeout:  time.Duration(sys.DialTimeoutMs) * time.Millisecond,
		replyTimeout: time.Duration(sys.ReplyTimeoutMs) * time.Millisecond,
	}
}

// Call sends one tool request and waits for the matching reply.
//
// A reply with ok=false is a tool-level failure and comes back as a
// normal envelope, not an error. The error return covers transport
// problems only: dial failures, timeouts, a dropped connection.
// The raw reply bytes are returned alongside the envelope so callers
// can pull tool-specific result fields out of them.
func (c *Client) Call(ctx context.Context, tool string, args any) (api.ReplyEnvelope, []byte, error) {
	var env api.ReplyEnvelope

	dialer := websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return env, nil, fmt.Errorf("failed to dial bridge at %s: %w", c.url, err)
	}
	defer conn.Close()

	// Close the socket on cancellation so the read below unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	req := api.Request{
		ID:   uuid.NewString(),
		Tool: tool,
		Args: args,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return env, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	deadline := time.Now().Add(c.replyTimeout)
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return env, nil, fmt.Errorf("failed to send request: %w", err)
	}

	slog.Debug("Tool request sent", "tool", tool, "id", req.ID)

	// Read until the reply carrying our id shows up. Anything else on
	// the socket is not ours and is skipped.
	conn.SetReadDeadline(deadline)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return env, nil, ctx.Err()
			}
			return env, nil, fmt.Errorf("no reply for tool %s (id=%s): %w", tool, req.ID, err)
		}

		frame := api.DecodeFrame(data)
		if frame.Kind != api.FrameReply || frame.ID != req.ID {
			continue
		}

		if err := json.Unmarshal(data, &env); err != nil {
			return env, nil, fmt.Errorf("failed to decode reply: %w", err)
		}
		slog.Debug("Tool reply received", "tool", tool, "id", req.ID, "ok", env.OK)
		return env, data, nil
	}
}
