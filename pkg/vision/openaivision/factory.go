package openaivision

import (
	"log/slog"
	"time"

	"chromebridge/pkg/config"
	"chromebridge/pkg/vision"
)

// OpenAIFactory handles creation of OpenAI vision clients
type OpenAIFactory struct{}

// Create implements ProviderFactory
func (f *OpenAIFactory) Create(cfg vision.ProviderGroupConfig, sys *config.SystemConfig) ([]vision.Analyzer, error) {
	var analyzers []vision.Analyzer

	// Retrieve API Key
	apiKey := ""
	if len(cfg.APIKeys) > 0 {
		apiKey = cfg.APIKeys[0]
	}

	models := cfg.Models
	if len(models) == 0 {
		models = []string{vision.DefaultModel}
	}

	timeout := time.Duration(sys.VisionTimeoutMs) * time.Millisecond

	for _, model := range models {
		client, err := NewClient(apiKey, model, cfg.BaseURL, timeout)
		if err != nil {
			slog.Error("Failed to create OpenAI vision client", "model", model, "error", err)
			continue
		}
		analyzers = append(analyzers, client)
	}
	return analyzers, nil
}

func init() {
	vision.RegisterProvider("openai", &OpenAIFactory{})
}
