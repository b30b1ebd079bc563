package ollamavision

import (
	"log"
	"time"

	"chromebridge/pkg/config"
	"chromebridge/pkg/vision"
)

// OllamaFactory handles creation of Ollama vision clients
type OllamaFactory struct{}

// Create implements ProviderFactory
func (f *OllamaFactory) Create(cfg vision.ProviderGroupConfig, sys *config.SystemConfig) ([]vision.Analyzer, error) {
	var analyzers []vision.Analyzer

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sys.OllamaDefaultURL
	}

	timeout := time.Duration(sys.VisionTimeoutMs) * time.Millisecond

	for _, model := range cfg.Models {
		client, err := NewClient(model, baseURL, timeout)
		if err != nil {
			log.Printf("Failed to create Ollama vision client for model %s: %v", model, err)
			continue
		}
		analyzers = append(analyzers, client)
	}
	return analyzers, nil
}

func init() {
	vision.RegisterProvider("ollama", &OllamaFactory{})
}
