package main

// 手動測試用的假 extension: 連上 bridge 送 hello, 之後對每個請求回罐頭答案.
// 搭配 probe/controller 就能在沒有瀏覽器的情況下驗證整條訊息路徑.

import (
	"flag"
	"log"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"chromebridge/pkg/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// 1x1 透明 PNG, screenshot 的罐頭回覆
const tinyPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func main() {
	url := flag.String("url", "ws://127.0.0.1:6385", "bridge websocket url")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		log.Fatalf("❌ 連線失敗: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"hello"}`)); err != nil {
		log.Fatalf("❌ hello 送不出去: %v", err)
	}
	log.Printf("[Probe] ✅ 已註冊為 extension: %s", *url)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Fatalf("❌ 連線中斷: %v", err)
		}
		frame := api.DecodeFrame(data)
		if frame.Kind != api.FrameRequest {
			continue
		}
		log.Printf("[Probe] <- %s (id=%s)", frame.Tool, frame.ID)

		reply, _ := json.Marshal(canned(frame.ID, frame.Tool))
		if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
			log.Fatalf("❌ 回覆送不出去: %v", err)
		}
	}
}

func canned(id, tool string) map[string]any {
	switch tool {
	case "active_tab":
		return map[string]any{"id": id, "ok": true, "url": "https://example.com", "title": "Example Domain"}
	case "get_all_open_tabs":
		return map[string]any{"id": id, "ok": true, "tabs": []map[string]any{
			{"id": 1, "url": "https://example.com", "title": "Example Domain", "active": true, "status": "complete"},
		}}
	case "navigate", "create_tab":
		return map[string]any{"id": id, "ok": true}
	case "screenshot":
		return map[string]any{"id": id, "ok": true, "dataUrl": tinyPNG}
	case "console_logs":
		return map[string]any{"id": id, "ok": true, "logs": []map[string]any{
			{"level": "log", "text": "hello from probe"},
		}}
	case "evaluate_js":
		return map[string]any{"id": id, "ok": true, "result": "42"}
	default:
		return map[string]any{"id": id, "ok": false, "error": "unknown tool " + tool}
	}
}
