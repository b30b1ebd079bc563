package vision

import (
	"fmt"
	"log"
	"time"

	jsoniter "github.com/json-iterator/go"

	"chromebridge/pkg/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultModel is used when the config names no vision providers at
// all; the API key then comes from the OPENAI_API_KEY environment.
const DefaultModel = "gpt-4o-mini"

// NewFromConfig 根據設定檔建立 Analyzer
func NewFromConfig(rawVision jsoniter.RawMessage, system *config.SystemConfig) (Analyzer, error) {
	var groups []ProviderGroupConfig

	if rawVision == nil {
		// 沒有 vision 設定時退回單一 OpenAI provider
		groups = []ProviderGroupConfig{{
			Type:   "openai",
			Models: []string{DefaultModel},
		}}
	} else if err := json.Unmarshal(rawVision, &groups); err != nil {
		return nil, fmt.Errorf("failed to parse 'vision' config: %v", err)
	}

	var allAnalyzers []Analyzer
	for _, group := range groups {
		log.Printf("Loading vision group: %s (%d models)", group.Type, len(group.Models))

		factory, ok := GetProviderFactory(group.Type)
		if !ok {
			log.Printf("⚠️ Unknown provider type: %s", group.Type)
			continue
		}

		analyzers, err := factory.Create(group, system)
		if err != nil {
			log.Printf("⚠️ Failed to create analyzers for %s: %v", group.Type, err)
			continue
		}

		allAnalyzers = append(allAnalyzers, analyzers...)
	}

	if len(allAnalyzers) == 0 {
		return nil, fmt.Errorf("no vision providers could be initialized")
	}

	log.Printf("✅ Total vision analyzers initialized: %d", len(allAnalyzers))

	// 如果只有一個, 直接回傳
	if len(allAnalyzers) == 1 {
		return allAnalyzers[0], nil
	}

	// 否則包裹在 FallbackAnalyzer 中, 並代入系統層級的重試設定
	return &FallbackAnalyzer{
		Analyzers:  allAnalyzers,
		MaxRetries: system.MaxRetries,
		RetryDelay: time.Duration(system.RetryDelayMs) * time.Millisecond,
	}, nil
}
