package server

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FrameDebugger appends every frame of one connection to a log file.
// It centralizes the logic for directory creation, file naming, and safe writing.
type FrameDebugger struct {
	file    *os.File
	enabled bool
}

// NewFrameDebugger creates a debugger for a connection.
// It attempts to open the log file immediately if enabled.
func NewFrameDebugger(connID string, enabled bool) *FrameDebugger {
	if !enabled {
		return &FrameDebugger{enabled: false}
	}

	debugDir := filepath.Join("debug", "frames")
	if err := os.MkdirAll(debugDir, 0755); err != nil {
		slog.Error("Failed to create debug directory", "dir", debugDir, "error", err)
		return &FrameDebugger{enabled: false}
	}

	filename := filepath.Join(debugDir, fmt.Sprintf("%s.log", connID))
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Error("Failed to open debug file", "file", filename, "error", err)
		return &FrameDebugger{enabled: false}
	}

	slog.Debug("Frame debug ON", "conn", connID, "file", filename)
	return &FrameDebugger{
		file:    f,
		enabled: true,
	}
}

// Log appends one frame with its direction marker.
func (d *FrameDebugger) Log(direction string, data []byte) {
	if d == nil || !d.enabled || d.file == nil {
		return
	}
	if _, err := fmt.Fprintf(d.file, "%s %s\n", direction, data); err != nil {
		slog.Warn("Failed to write to debug file", "error", err)
	}
}

// Close closes the debug file handle.
func (d *FrameDebugger) Close() {
	if d == nil || d.file == nil {
		return
	}
	d.file.Close()
	d.file = nil
}
