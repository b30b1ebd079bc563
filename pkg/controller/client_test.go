package controller_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chromebridge/pkg/api"
	"chromebridge/pkg/bridge"
	"chromebridge/pkg/config"
	"chromebridge/pkg/controller"
	"chromebridge/pkg/server"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func startBridgeServer(t *testing.T) (*bridge.Bridge, string) {
	t.Helper()
	b := bridge.New(nil)
	srv := server.New(b, config.BridgeConfig{Host: "127.0.0.1", Port: 0}, config.DefaultSystemConfig())
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Stop() })
	return b, "ws://" + srv.Addr()
}

// runFakeExtension connects as the extension and answers every request
// with whatever the handler returns. An empty return means stay silent.
func runFakeExtension(t *testing.T, b *bridge.Bridge, url string, handler func(req api.Request) string) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"hello"}`)))
	require.Eventually(t, b.ExtensionConnected, 2*time.Second, 5*time.Millisecond)

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req api.Request
			if err := json.Unmarshal(data, &req); err != nil {
				continue
			}
			if reply := handler(req); reply != "" {
				conn.WriteMessage(websocket.TextMessage, []byte(reply))
			}
		}
	}()
}

func sysWithReplyTimeout(ms int) *config.SystemConfig {
	sys := config.DefaultSystemConfig()
	sys.ReplyTimeoutMs = ms
	return sys
}

func TestCallRoundTrip(t *testing.T) {
	b, url := startBridgeServer(t)
	runFakeExtension(t, b, url, func(req api.Request) string {
		return fmt.Sprintf(`{"id":"%s","ok":true,"result":{"url":"https://example.com","title":"Example"}}`, req.ID)
	})

	client := controller.New(url, config.DefaultSystemConfig())
	env, raw, err := client.Call(context.Background(), "active_tab", nil)
	require.NoError(t, err)
	assert.True(t, env.OK)

	var reply struct {
		Result struct {
			URL   string `json:"url"`
			Title string `json:"title"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &reply))
	assert.Equal(t, "https://example.com", reply.Result.URL)
	assert.Equal(t, "Example", reply.Result.Title)
}

func TestCallForwardsToolAndArgs(t *testing.T) {
	b, url := startBridgeServer(t)

	seen := make(chan api.Request, 1)
	runFakeExtension(t, b, url, func(req api.Request) string {
		seen <- req
		return fmt.Sprintf(`{"id":"%s","ok":true,"result":null}`, req.ID)
	})

	client := controller.New(url, config.DefaultSystemConfig())
	_, _, err := client.Call(context.Background(), "navigate", map[string]string{"url": "https://example.com"})
	require.NoError(t, err)

	select {
	case req := <-seen:
		assert.Equal(t, "navigate", req.Tool)
		assert.NotEmpty(t, req.ID)
		args, ok := req.Args.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "https://example.com", args["url"])
	case <-time.After(2 * time.Second):
		t.Fatal("extension never saw the request")
	}
}

func TestCallToolFailureIsNotAnError(t *testing.T) {
	b, url := startBridgeServer(t)
	runFakeExtension(t, b, url, func(req api.Request) string {
		return fmt.Sprintf(`{"id":"%s","ok":false,"error":"boom"}`, req.ID)
	})

	client := controller.New(url, config.DefaultSystemConfig())
	env, _, err := client.Call(context.Background(), "evaluate_js", map[string]string{"expression": "1/0"})
	require.NoError(t, err, "ok=false is a result, not a transport error")
	assert.False(t, env.OK)
	assert.Equal(t, "boom", env.Error)
}

func TestCallWithoutExtension(t *testing.T) {
	_, url := startBridgeServer(t)

	client := controller.New(url, config.DefaultSystemConfig())
	env, _, err := client.Call(context.Background(), "screenshot", nil)
	require.NoError(t, err)
	assert.False(t, env.OK)
	assert.Equal(t, api.ErrNotConnected, env.Error)
}

func TestCallReplyTimeout(t *testing.T) {
	b, url := startBridgeServer(t)
	runFakeExtension(t, b, url, func(req api.Request) string {
		return "" // never reply
	})

	client := controller.New(url, sysWithReplyTimeout(200))
	start := time.Now()
	_, _, err := client.Call(context.Background(), "console_logs", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no reply")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCallContextCancelled(t *testing.T) {
	b, url := startBridgeServer(t)
	runFakeExtension(t, b, url, func(req api.Request) string {
		return "" // never reply
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	client := controller.New(url, config.DefaultSystemConfig())
	start := time.Now()
	_, _, err := client.Call(ctx, "active_tab", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "cancel should unblock the call well before the reply timeout")
}

func TestCallDialFailure(t *testing.T) {
	client := controller.New("ws://127.0.0.1:1", config.DefaultSystemConfig())
	_, _, err := client.Call(context.Background(), "active_tab", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to dial")
}
