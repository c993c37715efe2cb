/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file.
// Environment variables are treated as read-only overrides at runtime.
// The API key is never stored here; it lives in the env or the OS keychain.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// A legacy config.json with the same keys is read as well, YAML being a JSON superset.

type ElevenLabsConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type YMM4Config struct {
	TemplatePath    string  `yaml:"template_path"`
	VoiceBaseDirWin string  `yaml:"voice_base_dir_win"`
	GapSeconds      float64 `yaml:"gap_seconds"`
	DefaultVolume   float64 `yaml:"default_volume"`
	FrameRate       int     `yaml:"frame_rate"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion       int               `yaml:"config_version"`
	CharacterVoices     map[string]string `yaml:"character_voices"`
	OutputDirectory     string            `yaml:"output_directory"`
	DefaultModel        string            `yaml:"default_model"`
	DefaultOutputFormat string            `yaml:"default_output_format"`
	LanguageCode        string            `yaml:"language_code"`
	UseContext          bool              `yaml:"use_context"`
	RequestDelayMs      int               `yaml:"request_delay_ms"`
	ElevenLabs          ElevenLabsConfig  `yaml:"elevenlabs"`
	YMM4                YMM4Config        `yaml:"ymm4"`
	Logging             LoggingConfig     `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion:       1,
		CharacterVoices:     map[string]string{},
		OutputDirectory:     "./output/",
		DefaultModel:        "eleven_v3",
		DefaultOutputFormat: "mp3_44100_128",
		LanguageCode:        "ja",
		UseContext:          true,
		RequestDelayMs:      500,
		ElevenLabs:          ElevenLabsConfig{BaseURL: "https://api.elevenlabs.io", TimeoutMs: 60000},
		YMM4:                YMM4Config{GapSeconds: 0.3, DefaultVolume: 50, FrameRate: 60},
		Logging:             LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvOutputDir    = "SERIFU_OUTPUT_DIR"
	EnvModel        = "SERIFU_MODEL"
	EnvLanguage     = "SERIFU_LANGUAGE"
	EnvTemplate     = "SERIFU_TEMPLATE"
	EnvVoiceBaseDir = "SERIFU_VOICE_BASE_DIR"
	EnvBaseURL      = "SERIFU_BASE_URL"
	EnvAPIKey       = "ELEVENLABS_API_KEY"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "SERIFU_LOG_LEVEL"
	EnvLogFormat = "SERIFU_LOG_FORMAT"
	EnvLogSource = "SERIFU_LOG_SOURCE"
	EnvLogFile   = "SERIFU_LOG_FILE"
)

// localNames are looked up in the working directory, in order.
var localNames = []string{"config.yaml", "config.yml", "config.json"}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "serifu")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "serifu")
	default: // linux and others
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "serifu")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "serifu")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Resolve picks the config file to use. An explicit path wins; otherwise the
// first config.{yaml,yml,json} in the working directory, else the per-user path.
// The returned file may not exist.
func Resolve(explicit string) (string, error) {
	if p := strings.TrimSpace(explicit); p != "" {
		return p, nil
	}
	for _, name := range localNames {
		if st, err := os.Stat(name); err == nil && !st.IsDir() {
			return name, nil
		}
	}
	return ConfigPath()
}

// Load reads the config file chosen by Resolve (if present), on top of the
// defaults, and applies environment overrides. An explicit path that does not
// exist is an error; a missing implicit file is not.
func Load(explicit string) (AppConfig, string, error) {
	cfg := Defaults()
	path, err := Resolve(explicit)
	if err != nil {
		return cfg, "", err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), path, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && strings.TrimSpace(explicit) == "":
	default:
		return cfg, path, fmt.Errorf("read config: %w", err)
	}
	normalize(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, path, nil
}

// Save writes cfg as YAML to path.
func Save(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// normalize repairs values a hand-edited file may leave empty or invalid.
func normalize(cfg *AppConfig) {
	def := Defaults()
	if cfg.CharacterVoices == nil {
		cfg.CharacterVoices = map[string]string{}
	}
	if strings.TrimSpace(cfg.DefaultModel) == "" {
		cfg.DefaultModel = def.DefaultModel
	}
	if strings.TrimSpace(cfg.DefaultOutputFormat) == "" {
		cfg.DefaultOutputFormat = def.DefaultOutputFormat
	}
	if strings.TrimSpace(cfg.OutputDirectory) == "" {
		cfg.OutputDirectory = def.OutputDirectory
	}
	if cfg.RequestDelayMs < 0 {
		cfg.RequestDelayMs = 0
	}
	if strings.TrimSpace(cfg.ElevenLabs.BaseURL) == "" {
		cfg.ElevenLabs.BaseURL = def.ElevenLabs.BaseURL
	}
	if cfg.ElevenLabs.TimeoutMs <= 0 {
		cfg.ElevenLabs.TimeoutMs = def.ElevenLabs.TimeoutMs
	}
	if cfg.YMM4.GapSeconds < 0 {
		cfg.YMM4.GapSeconds = def.YMM4.GapSeconds
	}
	if cfg.YMM4.FrameRate <= 0 {
		cfg.YMM4.FrameRate = def.YMM4.FrameRate
	}
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	cfg.Logging.File = strings.TrimSpace(cfg.Logging.File)
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvOutputDir)); v != "" {
		cfg.OutputDirectory = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvModel)); v != "" {
		cfg.DefaultModel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLanguage)); v != "" {
		cfg.LanguageCode = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTemplate)); v != "" {
		cfg.YMM4.TemplatePath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvVoiceBaseDir)); v != "" {
		cfg.YMM4.VoiceBaseDirWin = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		cfg.ElevenLabs.BaseURL = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func parseBool(v string) bool {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	lv := strings.ToLower(v)
	return lv == "on" || lv == "yes"
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	var env string
	switch key {
	case "output_directory":
		env = EnvOutputDir
	case "default_model":
		env = EnvModel
	case "language_code":
		env = EnvLanguage
	case "ymm4.template_path":
		env = EnvTemplate
	case "ymm4.voice_base_dir_win":
		env = EnvVoiceBaseDir
	case "elevenlabs.base_url":
		env = EnvBaseURL
	case "logging.level":
		env = EnvLogLevel
	case "logging.format":
		env = EnvLogFormat
	case "logging.source":
		env = EnvLogSource
	case "logging.file":
		env = EnvLogFile
	default:
		return "", false
	}
	if os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}

// VoiceFor returns the voice id configured for a character.
func (c AppConfig) VoiceFor(character string) (string, bool) {
	v, ok := c.CharacterVoices[character]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Timeout returns the HTTP timeout for the synthesis API.
func (e ElevenLabsConfig) Timeout() time.Duration {
	if e.TimeoutMs <= 0 {
		return time.Duration(Defaults().ElevenLabs.TimeoutMs) * time.Millisecond
	}
	return time.Duration(e.TimeoutMs) * time.Millisecond
}

// RequestDelay is the pause enforced between two synthesis requests.
func (c AppConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMs) * time.Millisecond
}
