package monitor

import "time"

// 流量事件類型
const (
	KindConnect    = "CONNECT"
	KindClassify   = "CLASSIFY"
	KindRequest    = "REQUEST"
	KindReply      = "REPLY"
	KindSynth      = "SYNTH"
	KindDrop       = "DROP"
	KindDisconnect = "CLOSE"
)

// Message 代表一則橋接器流量訊息
type Message struct {
	Timestamp time.Time
	Kind      string // CONNECT / CLASSIFY / REQUEST / REPLY / SYNTH / DROP / CLOSE
	ConnID    string
	Role      string
	Detail    string
}

// Monitor 介面定義了監控器的行為
type Monitor interface {
	// Start 啟動監控器
	Start() error

	// Stop 停止監控器
	Stop() error

	// OnMessage 接收並顯示監控訊息
	OnMessage(msg Message)
}
