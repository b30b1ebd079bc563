package vision

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Analyzer 通用影像分析介面
type Analyzer interface {
	// Analyze 將一張圖片與提示詞送給模型, 回傳文字描述
	// image: 原始圖片位元組
	// mimeType: 圖片的 MIME type (如 image/png)
	Analyze(ctx context.Context, image []byte, mimeType string, prompt string) (string, error)

	// Provider 回傳提供者名稱 (如 openai, ollama, gemini)
	Provider() string

	// IsTransientError 判斷是否為暫時性錯誤 (如 503, Rate Limit)
	IsTransientError(err error) bool
}

// FallbackAnalyzer 支援多個 Analyzer 分級嘗試
type FallbackAnalyzer struct {
	Analyzers  []Analyzer
	MaxRetries int
	RetryDelay time.Duration
}

func (f *FallbackAnalyzer) Provider() string {
	return "fallback"
}

func (f *FallbackAnalyzer) Analyze(ctx context.Context, image []byte, mimeType string, prompt string) (string, error) {
	var lastErr error
	for i, analyzer := range f.Analyzers {
		if i > 0 {
			log.Printf("⚠️ Previous provider failed. Trying fallback provider #%d...", i+1)
		}

		// 使用配置的重試次數, 若為 0 則至少執行 1 次
		maxRetries := f.MaxRetries
		if maxRetries <= 0 {
			maxRetries = 1
		}

		for retry := 1; retry <= maxRetries; retry++ {
			if retry > 1 {
				log.Printf("🔄 Retrying provider #%d (attempt %d/%d)...", i+1, retry, maxRetries)
				// 稍微等待一下再重試
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(time.Duration(retry-1) * f.RetryDelay):
				}
			}

			text, err := analyzer.Analyze(ctx, image, mimeType, prompt)
			if err == nil {
				return text, nil
			}

			lastErr = err

			if analyzer.IsTransientError(err) && retry < maxRetries {
				log.Printf("❌ Provider #%d failed with transient error: %v. Retrying...", i+1, err)
				continue
			}

			// 非暫時性錯誤, 或者已達最大重試次數
			log.Printf("❌ Provider #%d failed: %v", i+1, err)
			break
		}
	}
	return "", fmt.Errorf("all fallback providers failed. Last error: %v", lastErr)
}

// IsTransientError 實作 Analyzer 介面
// FallbackAnalyzer 是一個容器, 它的錯誤意味著所有 Child 都失敗了
// 因此視為非暫時性
func (f *FallbackAnalyzer) IsTransientError(err error) bool {
	return false
}
