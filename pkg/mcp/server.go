package mcp

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"chromebridge/pkg/api"
	"chromebridge/pkg/artifact"
	"chromebridge/pkg/vision"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const serverVersion = "0.1.0"

// Caller issues tool requests to the bridge. Satisfied by the
// controller client; tests substitute their own.
type Caller interface {
	Call(ctx context.Context, tool string, args any) (api.ReplyEnvelope, []byte, error)
}

// Server exposes the browser tools over MCP stdio.
// Tool calls travel as controller requests through the bridge, so an
// MCP client sees exactly what any other controller would see.
type Server struct {
	caller   Caller
	store    *artifact.Store
	analyzer vision.Analyzer
	name     string
}

func NewServer(caller Caller, store *artifact.Store, analyzer vision.Analyzer, name string) *Server {
	return &Server{
		caller:   caller,
		store:    store,
		analyzer: analyzer,
		name:     name,
	}
}

// Build assembles the SDK server with every tool registered.
func (s *Server) Build() *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    s.name,
		Version: serverVersion,
	}, nil)
	s.registerTools(server)
	return server
}

// Run serves MCP over stdin/stdout until the context ends.
func (s *Server) Run(ctx context.Context) error {
	return s.Build().Run(ctx, &mcpsdk.StdioTransport{})
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}
