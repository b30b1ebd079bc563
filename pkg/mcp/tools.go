package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"chromebridge/pkg/artifact"
	"chromebridge/pkg/utils"
)

// 零參數工具共用的空輸入
type NoArgs struct{}

type NavigateArgs struct {
	URL string `json:"url" jsonschema:"the absolute URL to load in the active tab"`
}

type CreateTabArgs struct {
	URL string `json:"url" jsonschema:"the URL to open in the new tab"`
}

type EvaluateArgs struct {
	Expression string `json:"expression" jsonschema:"JavaScript expression to evaluate in the active tab"`
}

type AnalyzeArgs struct {
	Prompt string `json:"prompt" jsonschema:"question to ask the vision model about the latest screenshot"`
}

func (s *Server) registerTools(server *mcpsdk.Server) {
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "active_tab",
		Description: "Get the URL and title of the active browser tab",
	}, s.handleActiveTab)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "get_all_open_tabs",
		Description: "Get information about all open browser tabs including ID, URL, title, and status",
	}, s.handleAllTabs)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "navigate",
		Description: "Navigate the active tab to a URL",
	}, s.handleNavigate)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "create_tab",
		Description: "Create a new tab with the specified URL",
	}, s.handleCreateTab)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "screenshot",
		Description: "Capture a screenshot of the active tab and persist it to disk for later analysis",
	}, s.handleScreenshot)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "console_logs",
		Description: "Collect recent console log entries from the active tab",
	}, s.handleConsoleLogs)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "evaluate_js",
		Description: "Evaluate a JavaScript expression in the active tab and return its result",
	}, s.handleEvaluateJS)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "analyze_screenshot",
		Description: "Analyze the most recent screenshot with a vision model; run screenshot first",
	}, s.handleAnalyze)
}

// callTool 把工具請求送進 bridge, extension 的回覆原文就是工具結果.
// ok:false 的回覆是結果而不是 MCP 層錯誤, 呼叫端自己解讀.
func (s *Server) callTool(ctx context.Context, tool string, args any) (*mcpsdk.CallToolResult, any, error) {
	_, raw, err := s.caller.Call(ctx, tool, args)
	if err != nil {
		return errorResult(fmt.Sprintf("bridge call failed: %v", err)), nil, nil
	}
	return textResult(string(raw)), nil, nil
}

func (s *Server) handleActiveTab(ctx context.Context, req *mcpsdk.CallToolRequest, args NoArgs) (*mcpsdk.CallToolResult, any, error) {
	return s.callTool(ctx, "active_tab", nil)
}

func (s *Server) handleAllTabs(ctx context.Context, req *mcpsdk.CallToolRequest, args NoArgs) (*mcpsdk.CallToolResult, any, error) {
	return s.callTool(ctx, "get_all_open_tabs", nil)
}

func (s *Server) handleNavigate(ctx context.Context, req *mcpsdk.CallToolRequest, args NavigateArgs) (*mcpsdk.CallToolResult, any, error) {
	return s.callTool(ctx, "navigate", map[string]any{"url": args.URL})
}

func (s *Server) handleCreateTab(ctx context.Context, req *mcpsdk.CallToolRequest, args CreateTabArgs) (*mcpsdk.CallToolResult, any, error) {
	return s.callTool(ctx, "create_tab", map[string]any{"url": args.URL})
}

func (s *Server) handleConsoleLogs(ctx context.Context, req *mcpsdk.CallToolRequest, args NoArgs) (*mcpsdk.CallToolResult, any, error) {
	return s.callTool(ctx, "console_logs", nil)
}

func (s *Server) handleEvaluateJS(ctx context.Context, req *mcpsdk.CallToolRequest, args EvaluateArgs) (*mcpsdk.CallToolResult, any, error) {
	return s.callTool(ctx, "evaluate_js", map[string]any{"expression": args.Expression})
}

// handleScreenshot 截圖後把 dataUrl 存成檔案, 只回傳路徑與大小.
// 把整串 base64 丟回給 MCP 客戶端只會撐爆對話, 分析交給 analyze_screenshot.
func (s *Server) handleScreenshot(ctx context.Context, req *mcpsdk.CallToolRequest, args NoArgs) (*mcpsdk.CallToolResult, any, error) {
	_, raw, err := s.caller.Call(ctx, "screenshot", nil)
	if err != nil {
		return errorResult(fmt.Sprintf("bridge call failed: %v", err)), nil, nil
	}

	// extension 把 dataUrl 放在回覆頂層
	var body struct {
		DataURL string `json:"dataUrl"`
	}
	_ = json.Unmarshal(raw, &body)
	if body.DataURL == "" {
		return errorResult(fmt.Sprintf("no dataUrl from extension: %s", raw)), nil, nil
	}

	path, size, err := s.store.SaveDataURL(body.DataURL)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to save screenshot: %v", err)), nil, nil
	}
	log.Printf("[MCP] ✅ 截圖已儲存: %s (%d bytes)", path, size)

	out, _ := json.Marshal(map[string]any{
		"ok":    true,
		"path":  path,
		"bytes": size,
	})
	return textResult(string(out)), nil, nil
}

func (s *Server) handleAnalyze(ctx context.Context, req *mcpsdk.CallToolRequest, args AnalyzeArgs) (*mcpsdk.CallToolResult, any, error) {
	if s.analyzer == nil {
		return errorResult("vision not configured"), nil, nil
	}

	path, data, err := s.store.Latest()
	if errors.Is(err, artifact.ErrNoArtifacts) {
		return errorResult("no screenshot found; run screenshot() first"), nil, nil
	}
	if err != nil {
		return errorResult(fmt.Sprintf("failed to load screenshot: %v", err)), nil, nil
	}

	mimeType, _ := utils.DetectMimeAndExt(data)
	log.Printf("[MCP] 分析截圖 %s (%s, %d bytes)", path, mimeType, len(data))

	analysis, err := s.analyzer.Analyze(ctx, data, mimeType, args.Prompt)
	if err != nil {
		return errorResult(fmt.Sprintf("vision analysis failed: %v", err)), nil, nil
	}

	out, _ := json.Marshal(map[string]any{
		"ok":       true,
		"analysis": analysis,
	})
	return textResult(string(out)), nil, nil
}
