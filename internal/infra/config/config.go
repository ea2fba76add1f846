// Package config loads and validates the kbchatbox configuration file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"kbchatbox/internal/domain"
)

// PassphraseEnv is the environment variable holding the passphrase used to
// decrypt "enc:" values in the config file.
const PassphraseEnv = "KBCHATBOX_PASSPHRASE"

// KeybaseConfig holds settings for the external Keybase CLI.
type KeybaseConfig struct {
	Bin      string `yaml:"bin"`      // binary path (default "keybase")
	Username string `yaml:"username"` // for oneshot login
	// PaperKey enables headless oneshot login. Values prefixed "enc:" are
	// decrypted with the passphrase from KBCHATBOX_PASSPHRASE.
	PaperKey string `yaml:"paper_key"`
}

// BridgeConfig tunes the worker and channel bridge.
type BridgeConfig struct {
	QueueSize       int    `yaml:"queue_size"`       // default 64
	EventBuffer     int    `yaml:"event_buffer"`     // default 256
	CommandTimeout  string `yaml:"command_timeout"`  // duration string, default "10s"
	ShutdownTimeout string `yaml:"shutdown_timeout"` // duration string, default "5s"
}

// ListenerConfig tunes notification stream reconnects.
type ListenerConfig struct {
	InitialBackoff string `yaml:"initial_backoff"` // default "1s"
	MaxBackoff     string `yaml:"max_backoff"`     // default "30s"
	MaxRetries     int    `yaml:"max_retries"`     // default 10
}

// RefreshConfig schedules periodic conversation-list refreshes.
type RefreshConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression or "@every 1m"
}

// NotifyConfig controls desktop notifications.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bin     string `yaml:"bin"`  // default "notify-send"
	Icon    string `yaml:"icon"` // default "mail-read"
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stdout, stderr, discard, or a file path
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // stdout or noop
}

// Config is the top-level application configuration.
type Config struct {
	Keybase  KeybaseConfig  `yaml:"keybase"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Listener ListenerConfig `yaml:"listener"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Notify   NotifyConfig   `yaml:"notify"`
	Logger   LoggerConfig   `yaml:"logger"`
	Tracer   TracerConfig   `yaml:"tracer"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Keybase: KeybaseConfig{Bin: "keybase"},
		Bridge: BridgeConfig{
			QueueSize:       64,
			EventBuffer:     256,
			CommandTimeout:  "10s",
			ShutdownTimeout: "5s",
		},
		Listener: ListenerConfig{
			InitialBackoff: "1s",
			MaxBackoff:     "30s",
			MaxRetries:     10,
		},
		Refresh: RefreshConfig{Enabled: true, Schedule: "@every 1m"},
		Notify:  NotifyConfig{Enabled: true, Bin: "notify-send", Icon: "mail-read"},
		Logger:  LoggerConfig{Level: "info", Format: "text", Output: "kbchatbox.log"},
		Tracer:  TracerConfig{Enabled: false, Exporter: "noop"},
	}
}

// Load reads the config file at path, applies defaults for unset fields,
// validates, and decrypts secrets. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, domain.NewSubSystemError("config", "config.Load",
			domain.ErrConfigLoad, err.Error())
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, domain.NewSubSystemError("config", "config.Load",
			domain.ErrConfigLoad, err.Error())
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.decryptSecrets(os.Getenv(PassphraseEnv)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Keybase.Bin == "" {
		c.Keybase.Bin = d.Keybase.Bin
	}
	if c.Bridge.QueueSize <= 0 {
		c.Bridge.QueueSize = d.Bridge.QueueSize
	}
	if c.Bridge.EventBuffer <= 0 {
		c.Bridge.EventBuffer = d.Bridge.EventBuffer
	}
	if c.Bridge.CommandTimeout == "" {
		c.Bridge.CommandTimeout = d.Bridge.CommandTimeout
	}
	if c.Bridge.ShutdownTimeout == "" {
		c.Bridge.ShutdownTimeout = d.Bridge.ShutdownTimeout
	}
	if c.Listener.InitialBackoff == "" {
		c.Listener.InitialBackoff = d.Listener.InitialBackoff
	}
	if c.Listener.MaxBackoff == "" {
		c.Listener.MaxBackoff = d.Listener.MaxBackoff
	}
	if c.Listener.MaxRetries <= 0 {
		c.Listener.MaxRetries = d.Listener.MaxRetries
	}
	if c.Refresh.Schedule == "" {
		c.Refresh.Schedule = d.Refresh.Schedule
	}
	if c.Notify.Bin == "" {
		c.Notify.Bin = d.Notify.Bin
	}
	if c.Notify.Icon == "" {
		c.Notify.Icon = d.Notify.Icon
	}
	if c.Logger.Level == "" {
		c.Logger.Level = d.Logger.Level
	}
	if c.Logger.Format == "" {
		c.Logger.Format = d.Logger.Format
	}
	if c.Logger.Output == "" {
		c.Logger.Output = d.Logger.Output
	}
	if c.Tracer.Exporter == "" {
		c.Tracer.Exporter = d.Tracer.Exporter
	}
}

// Validate checks field values that would otherwise fail deep inside the
// bridge at runtime.
func (c *Config) Validate() error {
	for name, v := range map[string]string{
		"bridge.command_timeout":   c.Bridge.CommandTimeout,
		"bridge.shutdown_timeout":  c.Bridge.ShutdownTimeout,
		"listener.initial_backoff": c.Listener.InitialBackoff,
		"listener.max_backoff":     c.Listener.MaxBackoff,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return domain.NewSubSystemError("config", "Config.Validate",
				domain.ErrConfigLoad, fmt.Sprintf("%s: %v", name, err))
		}
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return domain.NewSubSystemError("config", "Config.Validate",
			domain.ErrConfigLoad, "logger.level: unknown level "+c.Logger.Level)
	}

	if c.Keybase.PaperKey != "" && c.Keybase.Username == "" {
		return domain.NewSubSystemError("config", "Config.Validate",
			domain.ErrConfigLoad, "keybase.paper_key set without keybase.username")
	}
	return nil
}

// Duration returns a parsed duration field. Call only after Validate.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// decryptSecrets resolves "enc:" values using the passphrase.
func (c *Config) decryptSecrets(passphrase string) error {
	if !strings.HasPrefix(c.Keybase.PaperKey, "enc:") {
		return nil
	}
	if passphrase == "" {
		return domain.NewSubSystemError("config", "Config.decryptSecrets",
			domain.ErrConfigLoad, PassphraseEnv+" not set for encrypted paper_key")
	}
	plain, err := DecryptValue(strings.TrimPrefix(c.Keybase.PaperKey, "enc:"), passphrase)
	if err != nil {
		return domain.NewSubSystemError("config", "Config.decryptSecrets",
			domain.ErrConfigLoad, err.Error())
	}
	c.Keybase.PaperKey = plain
	return nil
}
