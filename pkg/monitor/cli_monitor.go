package monitor

import (
	"fmt"
	"io"
	"os"
)

// CLIMonitor 在終端機顯示橋接流量
// 輸出到 stderr, stdout 保留給 MCP stdio
type CLIMonitor struct {
	writer io.Writer
}

func NewCLIMonitor() *CLIMonitor {
	return &CLIMonitor{
		writer: os.Stderr,
	}
}

func (m *CLIMonitor) Start() error {
	fmt.Fprintln(m.writer, "----------------------------------------")
	fmt.Fprintln(m.writer, "🌉 CLI Monitor Active - bridge traffic will appear here")
	fmt.Fprintln(m.writer, "----------------------------------------")
	return nil
}

func (m *CLIMonitor) Stop() error {
	return nil
}

func (m *CLIMonitor) OnMessage(msg Message) {
	// 格式: [時間] [類型] 連線(角色): 內容
	timestamp := msg.Timestamp.Format("15:04:05")

	// 灰色時間戳
	fmt.Fprintf(m.writer, "\033[90m[%s]\033[0m ", timestamp)

	conn := msg.ConnID
	if len(conn) > 8 {
		conn = conn[:8]
	}

	if msg.Role != "" {
		fmt.Fprintf(m.writer, "[%s] %s(%s)", msg.Kind, conn, msg.Role)
	} else {
		fmt.Fprintf(m.writer, "[%s] %s", msg.Kind, conn)
	}

	if msg.Detail != "" {
		fmt.Fprintf(m.writer, ": %s", msg.Detail)
	}
	fmt.Fprintln(m.writer)
}
