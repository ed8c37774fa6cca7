// Package config handles trnscrb configuration: built-in defaults, the
// TOML settings file and environment overrides, applied in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	HTTPAddr       string
	InferenceAddr  string
	NotesDir       string
	IndexPath      string
	Device         string // capture device selector; empty = default input
	PreferLoopback bool
	ModelSize      string
	AutoRecord     bool
	HFToken        string
	EngineTimeout  time.Duration
	MaxPending     int
	LogLevel       string
	LogFormat      string
	ExtraApps      []string // "process-fragment" or "process-fragment=Label"
	Presence       Presence

	// Path of the settings file this config was read from (may not exist yet).
	File string
}

// Presence holds the watcher timings.
type Presence struct {
	Poll         time.Duration
	Warmup       time.Duration
	Grace        time.Duration
	MinSession   time.Duration
	AppPollEvery int
	AppGonePolls int
}

// fileConfig mirrors config.toml.
type fileConfig struct {
	HTTPAddr       string   `toml:"http_addr,omitempty"`
	InferenceAddr  string   `toml:"inference_addr,omitempty"`
	NotesDir       string   `toml:"notes_dir,omitempty"`
	IndexPath      string   `toml:"index_path,omitempty"`
	Device         string   `toml:"device,omitempty"`
	PreferLoopback *bool    `toml:"prefer_loopback,omitempty"`
	ModelSize      string   `toml:"model_size,omitempty"`
	AutoRecord     *bool    `toml:"auto_record,omitempty"`
	HFToken        string   `toml:"hf_token,omitempty"`
	EngineTimeout  float64  `toml:"engine_timeout_secs,omitempty"`
	MaxPending     int      `toml:"max_pending,omitempty"`
	LogLevel       string   `toml:"log_level,omitempty"`
	LogFormat      string   `toml:"log_format,omitempty"`
	ExtraApps      []string `toml:"extra_apps,omitempty"`

	Presence struct {
		PollSecs     float64 `toml:"poll_secs,omitempty"`
		WarmupSecs   float64 `toml:"warmup_secs,omitempty"`
		GraceSecs    float64 `toml:"grace_secs,omitempty"`
		MinSaveSecs  float64 `toml:"min_save_secs,omitempty"`
		AppPollEvery int     `toml:"app_poll_every,omitempty"`
		AppGonePolls int     `toml:"app_gone_polls,omitempty"`
	} `toml:"presence,omitempty"`
}

// ModelSizes are the transcription model sizes the engine accepts.
var ModelSizes = []string{"tiny", "base", "small", "medium", "large-v2", "large-v3"}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	notes := filepath.Join(homeDir(), "meeting-notes")
	return &Config{
		HTTPAddr:       ":8765",
		InferenceAddr:  "localhost:50051",
		NotesDir:       notes,
		IndexPath:      filepath.Join(notes, ".index.db"),
		PreferLoopback: true,
		ModelSize:      "small",
		AutoRecord:     true,
		EngineTimeout:  10 * time.Minute,
		MaxPending:     2,
		LogLevel:       "info",
		LogFormat:      "text",
		Presence: Presence{
			Poll:         time.Second,
			Warmup:       5 * time.Second,
			Grace:        5 * time.Second,
			MinSession:   30 * time.Second,
			AppPollEvery: 4,
			AppGonePolls: 3,
		},
		File: FilePath(),
	}
}

// Load reads defaults, then the settings file, then the environment.
func Load() (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(cfg.File); err == nil {
		var fc fileConfig
		if _, err := toml.DecodeFile(cfg.File, &fc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfg.File, err)
		}
		cfg.applyFile(&fc)
	}

	cfg.applyEnv()

	if cfg.HFToken == "" {
		cfg.HFToken = readHFToken()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(fc *fileConfig) {
	setString(&c.HTTPAddr, fc.HTTPAddr)
	setString(&c.InferenceAddr, fc.InferenceAddr)
	if fc.NotesDir != "" {
		c.NotesDir = expandTilde(fc.NotesDir)
		c.IndexPath = filepath.Join(c.NotesDir, ".index.db")
	}
	if fc.IndexPath != "" {
		c.IndexPath = expandTilde(fc.IndexPath)
	}
	setString(&c.Device, fc.Device)
	if fc.PreferLoopback != nil {
		c.PreferLoopback = *fc.PreferLoopback
	}
	setString(&c.ModelSize, fc.ModelSize)
	if fc.AutoRecord != nil {
		c.AutoRecord = *fc.AutoRecord
	}
	setString(&c.HFToken, fc.HFToken)
	if fc.EngineTimeout > 0 {
		c.EngineTimeout = seconds(fc.EngineTimeout)
	}
	if fc.MaxPending > 0 {
		c.MaxPending = fc.MaxPending
	}
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
	if len(fc.ExtraApps) > 0 {
		c.ExtraApps = fc.ExtraApps
	}

	p := fc.Presence
	if p.PollSecs > 0 {
		c.Presence.Poll = seconds(p.PollSecs)
	}
	if p.WarmupSecs > 0 {
		c.Presence.Warmup = seconds(p.WarmupSecs)
	}
	if p.GraceSecs > 0 {
		c.Presence.Grace = seconds(p.GraceSecs)
	}
	if p.MinSaveSecs > 0 {
		c.Presence.MinSession = seconds(p.MinSaveSecs)
	}
	if p.AppPollEvery > 0 {
		c.Presence.AppPollEvery = p.AppPollEvery
	}
	if p.AppGonePolls > 0 {
		c.Presence.AppGonePolls = p.AppGonePolls
	}
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnv("HTTP_ADDR", getEnv("TRNSCRB_HTTP_ADDR", c.HTTPAddr))
	c.InferenceAddr = getEnv("INFERENCE_ADDR", getEnv("TRNSCRB_INFERENCE_ADDR", c.InferenceAddr))
	if v := getEnv("TRNSCRB_NOTES_DIR", ""); v != "" {
		c.NotesDir = expandTilde(v)
		c.IndexPath = filepath.Join(c.NotesDir, ".index.db")
	}
	c.IndexPath = expandTilde(getEnv("TRNSCRB_INDEX_PATH", c.IndexPath))
	c.Device = getEnv("TRNSCRB_DEVICE", c.Device)
	c.PreferLoopback = getEnvBool("TRNSCRB_PREFER_LOOPBACK", c.PreferLoopback)
	c.ModelSize = getEnv("TRNSCRB_MODEL_SIZE", c.ModelSize)
	c.AutoRecord = getEnvBool("TRNSCRB_AUTO_RECORD", c.AutoRecord)
	c.HFToken = getEnv("HF_TOKEN", c.HFToken)
	c.EngineTimeout = seconds(getEnvFloat("TRNSCRB_ENGINE_TIMEOUT_SECS", c.EngineTimeout.Seconds()))
	c.MaxPending = getEnvInt("TRNSCRB_MAX_PENDING", c.MaxPending)
	c.LogLevel = getEnv("TRNSCRB_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("TRNSCRB_LOG_FORMAT", c.LogFormat)
	c.ExtraApps = getEnvList("TRNSCRB_EXTRA_APPS", c.ExtraApps)

	c.Presence.Poll = seconds(getEnvFloat("TRNSCRB_POLL_SECS", c.Presence.Poll.Seconds()))
	c.Presence.Warmup = seconds(getEnvFloat("TRNSCRB_WARMUP_SECS", c.Presence.Warmup.Seconds()))
	c.Presence.Grace = seconds(getEnvFloat("TRNSCRB_GRACE_SECS", c.Presence.Grace.Seconds()))
	c.Presence.MinSession = seconds(getEnvFloat("TRNSCRB_MIN_SAVE_SECS", c.Presence.MinSession.Seconds()))
	c.Presence.AppPollEvery = getEnvInt("TRNSCRB_APP_POLL_EVERY", c.Presence.AppPollEvery)
	c.Presence.AppGonePolls = getEnvInt("TRNSCRB_APP_GONE_POLLS", c.Presence.AppGonePolls)
}

// Validate rejects settings the watcher or pipeline cannot run with.
func (c *Config) Validate() error {
	p := c.Presence
	if p.Poll <= 0 || p.Warmup < 0 || p.Grace < 0 || p.MinSession < 0 {
		return fmt.Errorf("presence timings must be positive: %+v", p)
	}
	if p.AppPollEvery < 1 || p.AppGonePolls < 1 {
		return fmt.Errorf("app_poll_every and app_gone_polls must be at least 1")
	}
	if c.MaxPending < 0 {
		return fmt.Errorf("max_pending must not be negative")
	}
	if c.NotesDir == "" {
		return fmt.Errorf("notes_dir is required")
	}
	if !slices.Contains(ModelSizes, c.ModelSize) {
		return fmt.Errorf("model_size must be one of %v, got %q", ModelSizes, c.ModelSize)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// SaveSettings updates the user-facing settings in the TOML file at path,
// keeping any other keys already present.
func SaveSettings(path string, autoRecord *bool, modelSize string) error {
	var fc fileConfig
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if autoRecord != nil {
		fc.AutoRecord = autoRecord
	}
	if modelSize != "" {
		fc.ModelSize = modelSize
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(fc)
}

// FilePath returns the settings file location, honouring XDG_CONFIG_HOME.
func FilePath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "trnscrb", "config.toml")
	}
	return filepath.Join(homeDir(), ".config", "trnscrb", "config.toml")
}

// readHFToken falls back to the token file written by huggingface-cli login.
func readHFToken() string {
	data, err := os.ReadFile(filepath.Join(homeDir(), ".cache", "huggingface", "token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
