package openaivision

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
)

// Client is a wrapper around the official OpenAI Go SDK
type Client struct {
	client   *openai.Client
	provider string
	model    string
	timeout  time.Duration
}

// NewClient creates a new OpenAI vision client. An empty apiKey falls
// back to the OPENAI_API_KEY environment variable.
func NewClient(apiKey string, model string, baseURL string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)

	return &Client{
		client:   &client,
		provider: "openai",
		model:    model,
		timeout:  timeout,
	}, nil
}

func (c *Client) Provider() string {
	return c.provider
}

func (c *Client) Analyze(ctx context.Context, image []byte, mimeType string, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	imgURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	contentParts := responses.ResponseInputMessageContentListParam{
		responses.ResponseInputContentUnionParam{
			OfInputText: &responses.ResponseInputTextParam{
				Text: prompt,
			},
		},
		responses.ResponseInputContentUnionParam{
			OfInputImage: &responses.ResponseInputImageParam{
				Detail:   responses.ResponseInputImageDetailAuto,
				ImageURL: param.NewOpt(imgURL),
			},
		},
	}

	items := []responses.ResponseInputItemUnionParam{
		responses.ResponseInputItemParamOfMessage(
			contentParts,
			responses.EasyInputMessageRoleUser,
		),
	}

	resp, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: items,
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai vision request failed: %w", err)
	}

	return resp.OutputText(), nil
}

func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	// Transient: network-level issues
	if strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") {
		return true
	}

	// Transient: server-side temporary failures
	if strings.Contains(msg, "500 internal") ||
		strings.Contains(msg, "502 bad gateway") ||
		strings.Contains(msg, "503 service unavailable") ||
		strings.Contains(msg, "overloaded") {
		return true
	}

	// Everything else (400 Bad Request, 401 Unauthorized, etc.) is non-transient
	return false
}
