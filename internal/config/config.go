// Package config loads application configuration from an optional YAML
// file, EZBER_-prefixed environment variables and command-line flags, in
// that order of precedence (flags win).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "EZBER_"

// Config is the full application configuration.
type Config struct {
	Listen         string `koanf:"listen" validate:"required"`
	DBPath         string `koanf:"db" validate:"required"`
	LegacySnapshot string `koanf:"legacy-snapshot"`
	ReposDir       string `koanf:"repos-dir" validate:"required"`
	LogLevel       string `koanf:"log-level" validate:"oneof=debug info warn error"`

	NtfyTopic   string `koanf:"ntfy-topic"`
	NtfyTimeout int    `koanf:"ntfy-timeout" validate:"gt=0"`

	SpeechCommand string `koanf:"speech-command"`

	// HiddenAfter is the idle threshold in seconds after which the app
	// counts as backgrounded and due notifications go out.
	HiddenAfter int `koanf:"hidden-after" validate:"gt=0"`

	GenAPIBase string `koanf:"gen-api-base"`
	GenAPIKey  string `koanf:"gen-api-key"`
	GenTimeout int    `koanf:"gen-timeout" validate:"gt=0"`
	TextModel  string `koanf:"text-model" validate:"required"`
	ImageModel string `koanf:"image-model" validate:"required"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Listen:      ":8484",
		DBPath:      "ezber.db",
		ReposDir:    "repos",
		LogLevel:    "info",
		NtfyTimeout: 10,
		HiddenAfter: 30,
		GenTimeout:  30,
		TextModel:   "gemini-2.5-pro",
		ImageModel:  "imagen-4.0-generate-001",
	}
}

// Flags defines the command-line surface. Call before pflag parsing.
func Flags(f *pflag.FlagSet) {
	d := Defaults()
	f.String("config", "", "Path to a YAML config file")
	f.String("listen", d.Listen, "HTTP listen address")
	f.String("db", d.DBPath, "Path to the SQLite database file")
	f.String("legacy-snapshot", "", "Path to a legacy JSON snapshot to migrate on first run")
	f.String("repos-dir", d.ReposDir, "Directory for deck source checkouts")
	f.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	f.String("ntfy-topic", "", "ntfy topic URL for due-card notifications")
	f.Int("ntfy-timeout", d.NtfyTimeout, "Notification request timeout in seconds")
	f.String("speech-command", "", "External TTS command, e.g. 'espeak-ng -v {voice} {text}'")
	f.Int("hidden-after", d.HiddenAfter, "Seconds of inactivity before the app counts as hidden")
	f.String("gen-api-base", "", "Base URL of the generation API")
	f.String("gen-api-key", "", "API key for the generation API")
	f.Int("gen-timeout", d.GenTimeout, "Generation request timeout in seconds")
	f.String("text-model", d.TextModel, "Default text generation model")
	f.String("image-model", d.ImageModel, "Default image generation model")
}

// Load merges file, environment and flag configuration over the defaults
// and validates the result.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := flags.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	} else if _, err := os.Stat("ezber.yaml"); err == nil {
		if err := k.Load(file.Provider("ezber.yaml"), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file ezber.yaml: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flag config: %w", err)
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
