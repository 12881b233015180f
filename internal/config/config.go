// Package config handles the on-disk configuration document: connection
// parameters, pipeline tuning, and the user-editable phrase-to-action map.
package config

import (
	"os"
	"strconv"
	"time"
)

// Default values for a fresh configuration.
const (
	DefaultHost               = "127.0.0.1"
	DefaultPort               = 8001
	DefaultSampleRate         = 16000
	DefaultTickIntervalMS     = 500
	DefaultMinCycleMS         = 500
	DefaultMaxBufferSeconds   = 30
	DefaultCooldownSeconds    = 60
	DefaultEligibleActionType = "ToggleExpression"
	DefaultStatusAddr         = ":8420"
	DefaultWhisperModel       = "models/ggml-base.en.bin"
	DefaultTokenFile          = "voicerig_token.txt"
)

// Connection holds remote peer parameters.
type Connection struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	TokenFile string `yaml:"token_file"`
}

// Audio holds capture and scheduler tuning.
type Audio struct {
	SampleRate       int    `yaml:"sample_rate"`
	TickIntervalMS   int    `yaml:"tick_interval_ms"`
	MinCycleMS       int    `yaml:"min_cycle_ms"`
	MaxBufferSeconds int    `yaml:"max_buffer_seconds"`
	DumpDir          string `yaml:"dump_dir,omitempty"`
}

// Whisper holds speech-to-text engine settings.
type Whisper struct {
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
	Threads   int    `yaml:"threads"`
}

// Status holds the status push server settings.
type Status struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Config is the full configuration document. Actions is the user-editable
// half of the phrase map; the Action Catalog Synchronizer is its only
// mutator after startup.
type Config struct {
	Connection         Connection `yaml:"connection"`
	Audio              Audio      `yaml:"audio"`
	Whisper            Whisper    `yaml:"whisper"`
	Status             Status     `yaml:"status"`
	Actions            ActionMap  `yaml:"actions"`
	CooldownSeconds    int        `yaml:"cooldown_seconds"`
	EligibleActionType string     `yaml:"eligible_action_type"`
}

// Default returns a configuration with all defaults and no actions.
func Default() *Config {
	return &Config{
		Connection: Connection{
			Host:      DefaultHost,
			Port:      DefaultPort,
			TokenFile: DefaultTokenFile,
		},
		Audio: Audio{
			SampleRate:       DefaultSampleRate,
			TickIntervalMS:   DefaultTickIntervalMS,
			MinCycleMS:       DefaultMinCycleMS,
			MaxBufferSeconds: DefaultMaxBufferSeconds,
		},
		Whisper: Whisper{
			ModelPath: DefaultWhisperModel,
			Language:  "auto",
		},
		Status: Status{
			Enabled: true,
			Addr:    DefaultStatusAddr,
		},
		Actions:            ActionMap{},
		CooldownSeconds:    DefaultCooldownSeconds,
		EligibleActionType: DefaultEligibleActionType,
	}
}

// TickInterval returns the transcription cycle period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Audio.TickIntervalMS) * time.Millisecond
}

// MinCycle returns the minimum accumulated audio duration for a cycle.
func (c *Config) MinCycle() time.Duration {
	return time.Duration(c.Audio.MinCycleMS) * time.Millisecond
}

// CooldownWindow returns the per-action cooldown window.
func (c *Config) CooldownWindow() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// fillDefaults patches zero values left by a partial document.
func (c *Config) fillDefaults() {
	d := Default()
	if c.Connection.Host == "" {
		c.Connection.Host = d.Connection.Host
	}
	if c.Connection.Port == 0 {
		c.Connection.Port = d.Connection.Port
	}
	if c.Connection.TokenFile == "" {
		c.Connection.TokenFile = d.Connection.TokenFile
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = d.Audio.SampleRate
	}
	if c.Audio.TickIntervalMS == 0 {
		c.Audio.TickIntervalMS = d.Audio.TickIntervalMS
	}
	if c.Audio.MinCycleMS == 0 {
		c.Audio.MinCycleMS = d.Audio.MinCycleMS
	}
	if c.Audio.MaxBufferSeconds == 0 {
		c.Audio.MaxBufferSeconds = d.Audio.MaxBufferSeconds
	}
	if c.Whisper.ModelPath == "" {
		c.Whisper.ModelPath = d.Whisper.ModelPath
	}
	if c.Whisper.Language == "" {
		c.Whisper.Language = d.Whisper.Language
	}
	if c.Status.Addr == "" {
		c.Status.Addr = d.Status.Addr
	}
	if c.CooldownSeconds == 0 {
		c.CooldownSeconds = d.CooldownSeconds
	}
	if c.EligibleActionType == "" {
		c.EligibleActionType = d.EligibleActionType
	}
	if c.Actions == nil {
		c.Actions = ActionMap{}
	}
}

// applyEnv overrides connection and engine settings from the environment.
func (c *Config) applyEnv() {
	c.Connection.Host = getEnv("VOICERIG_HOST", c.Connection.Host)
	c.Connection.Port = getEnvInt("VOICERIG_PORT", c.Connection.Port)
	c.Whisper.ModelPath = getEnv("VOICERIG_WHISPER_MODEL", c.Whisper.ModelPath)
	c.Status.Addr = getEnv("VOICERIG_STATUS_ADDR", c.Status.Addr)
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
