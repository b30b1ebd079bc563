package geminivision

import (
	"log/slog"
	"time"

	"chromebridge/pkg/config"
	"chromebridge/pkg/vision"
)

// GeminiFactory handles creation of Gemini vision clients
type GeminiFactory struct{}

// Create implements ProviderFactory
func (f *GeminiFactory) Create(cfg vision.ProviderGroupConfig, sys *config.SystemConfig) ([]vision.Analyzer, error) {
	var analyzers []vision.Analyzer

	keys := cfg.APIKeys
	if len(keys) == 0 {
		keys = []string{""} // Resolved from the environment by the client
	}

	timeout := time.Duration(sys.VisionTimeoutMs) * time.Millisecond

	// Cartesian Product: Models x Keys (prioritize models)
	for _, model := range cfg.Models {
		for _, key := range keys {
			client, err := NewClient(key, model, timeout)
			if err != nil {
				slog.Error("Failed to create Gemini vision client", "model", model, "error", err)
				continue
			}
			analyzers = append(analyzers, client)
		}
	}
	return analyzers, nil
}

func init() {
	vision.RegisterProvider("gemini", &GeminiFactory{})
}
