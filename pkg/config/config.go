package config

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

// Config defines the application configuration structure. It maps
// directly to the config.json file and holds deployment-level settings:
// where the bridge listens, where screenshots land, and which vision
// providers are available for screenshot analysis.
type Config struct {
	// Bridge configures the local WebSocket listener the extension and
	// the controllers connect to.
	Bridge BridgeConfig `json:"bridge"`
	// MCP configures the stdio tool server exposed to MCP clients.
	MCP MCPConfig `json:"mcp"`
	// Artifacts configures screenshot persistence.
	Artifacts ArtifactsConfig `json:"artifacts"`
	// Vision holds the provider group configuration for screenshot
	// analysis in raw JSON format; empty disables the analyze tool.
	Vision jsoniter.RawMessage `json:"vision"`
}

// BridgeConfig locates the broker's WebSocket listener.
type BridgeConfig struct {
	Host string `json:"host"` // Default: 127.0.0.1
	Port int    `json:"port"` // Default: 6385
}

// Addr returns the listener address in host:port form.
func (b BridgeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// URL returns the ws:// URL clients dial.
func (b BridgeConfig) URL() string {
	return fmt.Sprintf("ws://%s:%d", b.Host, b.Port)
}

// MCPConfig controls the stdio MCP surface.
type MCPConfig struct {
	// Disabled turns off the MCP server; the process then runs as a
	// plain bridge daemon until interrupted.
	Disabled bool `json:"disabled"`
	// ServerName is the implementation name reported to MCP clients.
	ServerName string `json:"server_name"`
}

// ArtifactsConfig controls where screenshots are persisted.
type ArtifactsConfig struct {
	Dir string `json:"dir"` // Default: data/artifacts
}

// Validate ensures the configuration is usable after defaults applied.
func (c *Config) Validate() error {
	if c.Bridge.Port < 1 || c.Bridge.Port > 65535 {
		return fmt.Errorf("bridge port %d out of range", c.Bridge.Port)
	}
	if c.Bridge.Host == "" {
		return fmt.Errorf("bridge host must not be empty")
	}
	return nil
}

// SystemConfig defines engine-level technical parameters. These settings
// are stored in system.json and control timeouts, retry behavior, and
// debug switches rather than deployment topology.
type SystemConfig struct {
	// MaxRetries is the number of attempts per vision provider before
	// falling through to the next one.
	MaxRetries int `json:"max_retries"`
	// RetryDelayMs is the base delay (in milliseconds) between
	// consecutive vision retry attempts.
	RetryDelayMs int `json:"retry_delay_ms"`
	// VisionTimeoutMs is the hard cutoff (in milliseconds) for one
	// screenshot analysis call.
	VisionTimeoutMs int `json:"vision_timeout_ms"`
	// DialTimeoutMs bounds a controller's WebSocket dial to the bridge.
	DialTimeoutMs int `json:"dial_timeout_ms"`
	// ReplyTimeoutMs bounds how long a controller waits for the reply
	// matching its correlation id. The broker itself never times out
	// pending requests; this is purely the caller's budget.
	ReplyTimeoutMs int `json:"reply_timeout_ms"`
	// BindRetryDelayMs is the pause between bind attempts when the
	// listener port is still held by a previous instance.
	BindRetryDelayMs int `json:"bind_retry_delay_ms"`
	// BindDeadlineMs is the total time budget for acquiring the port.
	BindDeadlineMs int `json:"bind_deadline_ms"`
	// WriteTimeoutMs is the per-frame write deadline; a stalled peer
	// turns into a send failure instead of a wedged broker.
	WriteTimeoutMs int `json:"write_timeout_ms"`
	// ArtifactMaxAgeHours is the retention window for stored
	// screenshots; 0 disables the startup sweep.
	ArtifactMaxAgeHours int `json:"artifact_max_age_hours"`
	// OllamaDefaultURL is the fallback endpoint used when a vision
	// group of type "ollama" does not set base_url.
	OllamaDefaultURL string `json:"ollama_default_url"`
	// DebugFrames enables appending every raw inbound frame to the
	// debug/frames folder for inspection.
	DebugFrames bool `json:"debug_frames"`
	// LogLevel sets the minimum severity for log output.
	// Accepted values: "debug", "info", "warn", "error". Default: "info".
	LogLevel string `json:"log_level"`
}

// DefaultSystemConfig returns a SystemConfig initialized with safe
// defaults, used whenever system.json is missing or corrupt so the
// process can always start.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		MaxRetries:          2,
		RetryDelayMs:        500,
		VisionTimeoutMs:     60000,
		DialTimeoutMs:       5000,
		ReplyTimeoutMs:      10000,
		BindRetryDelayMs:    500,
		BindDeadlineMs:      10000,
		WriteTimeoutMs:      5000,
		ArtifactMaxAgeHours: 72,
		OllamaDefaultURL:    "http://localhost:11434",
		LogLevel:            "info",
	}
}

// DefaultConfig returns the zero-setup application config: loopback
// listener on the well-known bridge port, artifacts under the working
// directory, MCP enabled, no vision providers.
func DefaultConfig() *Config {
	return &Config{
		Bridge:    BridgeConfig{Host: "127.0.0.1", Port: 6385},
		MCP:       MCPConfig{ServerName: "chromebridge"},
		Artifacts: ArtifactsConfig{Dir: filepath.Join("data", "artifacts")},
	}
}

// Load reads config.json and system.json from the working directory.
// Both files are optional: a missing config.json yields the defaults
// (MCP clients spawn the binary with no setup), a corrupt one is an
// error. CHROMEBRIDGE_ARTIFACT_DIR overrides the artifact directory.
func Load() (*Config, *SystemConfig, error) {
	return LoadFrom("config.json", "system.json")
}

// LoadFrom is Load with explicit paths.
func LoadFrom(appPath, sysPath string) (*Config, *SystemConfig, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(appPath); err == nil {
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, cfg); err != nil {
			return nil, nil, fmt.Errorf("failed to parse %s: %w", appPath, err)
		}
	}
	applyConfigDefaults(cfg)

	if dir := os.Getenv("CHROMEBRIDGE_ARTIFACT_DIR"); dir != "" {
		cfg.Artifacts.Dir = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, LoadSystemConfig(sysPath), nil
}

// LoadSystemConfig attempts to load system settings, returning defaults
// if the file is absent or unparseable.
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		return cfg // File not found, use defaults
	}

	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(file, cfg); err != nil {
		return cfg // Parse failed, use defaults
	}

	return cfg
}

// applyConfigDefaults fills fields an explicit config.json left empty,
// so partial files only override what they mention.
func applyConfigDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Bridge.Host == "" {
		cfg.Bridge.Host = def.Bridge.Host
	}
	if cfg.Bridge.Port == 0 {
		cfg.Bridge.Port = def.Bridge.Port
	}
	if cfg.MCP.ServerName == "" {
		cfg.MCP.ServerName = def.MCP.ServerName
	}
	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = def.Artifacts.Dir
	}
}
