package main

// 手動測試用的 controller: 對 bridge 發一個工具請求, 印出回覆後結束.

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	jsoniter "github.com/json-iterator/go"

	"chromebridge/pkg/config"
	"chromebridge/pkg/controller"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	url := flag.String("url", "ws://127.0.0.1:6385", "bridge websocket url")
	tool := flag.String("tool", "active_tab", "tool name to invoke")
	rawArgs := flag.String("args", "{}", "tool arguments as JSON")
	flag.Parse()

	var args map[string]any
	if err := json.Unmarshal([]byte(*rawArgs), &args); err != nil {
		log.Fatalf("❌ args 不是合法 JSON: %v", err)
	}

	client := controller.New(*url, config.DefaultSystemConfig())
	env, raw, err := client.Call(context.Background(), *tool, args)
	if err != nil {
		log.Fatalf("❌ 呼叫失敗: %v", err)
	}

	fmt.Println(string(raw))
	if !env.OK {
		os.Exit(1)
	}
}
