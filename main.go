package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chromebridge/pkg/artifact"
	"chromebridge/pkg/bridge"
	"chromebridge/pkg/config"
	"chromebridge/pkg/controller"
	"chromebridge/pkg/mcp"
	"chromebridge/pkg/monitor"
	"chromebridge/pkg/server"
	"chromebridge/pkg/vision"
	_ "chromebridge/pkg/vision/autoload" // 自動註冊 Vision Providers
)

func main() {
	// --- 0. 讀取設定檔 ---
	// 兩個設定檔都可以不存在, Load 只會在檔案損毀時回錯誤
	cfg, sys, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v\n", err)
	}

	// 啟動監控環境
	// MCP 走 stdout, 所有輸出一律進 stderr
	monitor.Startup(sys.LogLevel)

	log.Println("==========================================")

	// --- 1. 截圖儲存 ---
	store, err := artifact.NewStore(cfg.Artifacts.Dir)
	if err != nil {
		log.Fatalf("❌ Failed to init artifact store: %v\n", err)
	}
	if sys.ArtifactMaxAgeHours > 0 {
		store.Sweep(time.Duration(sys.ArtifactMaxAgeHours) * time.Hour)
	}

	// --- 2. Vision 設定 ---
	// 沒有可用的 provider 不擋啟動, analyze_screenshot 會自己回報
	analyzer, err := vision.NewFromConfig(cfg.Vision, sys)
	if err != nil {
		log.Printf("⚠️ Vision unavailable: %v\n", err)
	}

	// --- 3. Bridge 與 WebSocket listener ---
	mon := monitor.NewCLIMonitor()
	mon.Start()

	br := bridge.New(mon)
	srv := server.New(br, cfg.Bridge, sys)
	if err := srv.Start(); err != nil {
		log.Fatalf("❌ Failed to start bridge server: %v\n", err)
	}
	log.Printf("✅ Bridge listening on ws://%s", srv.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 監聽系統信號
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\nReceived shutdown signal. Stopping services...")
		cancel()
	}()

	// --- 4. 設定檔熱重載 ---
	// listener 相關的值開機後就固定了, 這裡只重載 log level
	go func() {
		for range config.WatchConfig(ctx, "config.json", "system.json") {
			newSys := config.LoadSystemConfig("system.json")
			monitor.SetupSlog(newSys.LogLevel)
			log.Println("🔄 system.json reloaded")
		}
	}()

	// --- 5. MCP stdio server ---
	if cfg.MCP.Disabled {
		log.Println("MCP disabled; running bridge only.")
		<-ctx.Done()
	} else {
		caller := controller.New(cfg.Bridge.URL(), sys)
		mcpServer := mcp.NewServer(caller, store, analyzer, cfg.MCP.ServerName)
		log.Printf("✅ MCP server %q serving on stdio", cfg.MCP.ServerName)
		if err := mcpServer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("⚠️ MCP server exited: %v\n", err)
		}
	}

	// 執行清理
	srv.Stop()
	mon.Stop()
	log.Println("Bye!")
}
