package ollamavision

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// Client wraps the Ollama API for local vision models
type Client struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// NewClient creates an Ollama vision client. Local models can take a
// long time to load, so the HTTP client itself imposes no timeouts;
// the per-call context carries the deadline instead.
func NewClient(model string, baseURL string, timeout time.Duration) (*Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 0,
	}

	customClient := &http.Client{
		Transport: transport,
		Timeout:   0,
	}

	var client *api.Client
	var err error
	if baseURL != "" {
		u, perr := url.Parse(baseURL)
		if perr != nil {
			return nil, fmt.Errorf("invalid base URL: %w", perr)
		}
		client = api.NewClient(u, customClient)
	} else {
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}
	}

	slog.Info("Ollama vision client initialized", "model", model, "base_url", baseURL)

	return &Client{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

func (c *Client) Provider() string {
	return "ollama"
}

func (c *Client) Analyze(ctx context.Context, image []byte, mimeType string, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	stream := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{{
			Role:    "user",
			Content: prompt,
			Images:  []api.ImageData{api.ImageData(image)},
		}},
		Stream: &stream,
	}

	var out strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama vision request failed: %w", err)
	}

	return out.String(), nil
}

// IsTransientError implements the vision.Analyzer interface
func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()

	// 1. Connection related errors (Connection refused, reset)
	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "connection reset") {
		return true
	}

	// 2. High load
	if strings.Contains(strings.ToLower(errMsg), "overloaded") {
		return true
	}

	return false
}
