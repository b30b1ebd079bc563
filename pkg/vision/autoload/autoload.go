// Package autoload 匯入所有 vision providers, 觸發各自的 init() 註冊
package autoload

import (
	_ "chromebridge/pkg/vision/geminivision"
	_ "chromebridge/pkg/vision/ollamavision"
	_ "chromebridge/pkg/vision/openaivision"
)
