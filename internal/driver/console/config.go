package console

import (
	"encoding/json"
	"fmt"
	"strings"

	"otogi-tell/pkg/otogi"
)

const (
	// DriverType is the configured driver type token for the console runtime.
	DriverType = "console"
	// DriverPlatform is the neutral otogi platform produced by the console runtime.
	DriverPlatform = otogi.PlatformConsole

	defaultChannel = "#otogi"
	defaultNick    = "Otogi"
)

// Config controls one console driver instance.
type Config struct {
	// DefaultChannel receives lines written without an explicit #channel.
	DefaultChannel string
	// Nick is the bot name printed in front of outbound lines.
	Nick string
	// NoColor disables ANSI styling of outbound lines.
	NoColor bool
}

type fileConfig struct {
	DefaultChannel string `json:"default_channel"`
	Nick           string `json:"nick"`
	NoColor        bool   `json:"no_color"`
}

// ParseConfig decodes a console driver config payload. An empty payload
// yields the defaults.
func ParseConfig(raw []byte) (Config, error) {
	var parsed fileConfig
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return Config{}, fmt.Errorf("unmarshal: %w", err)
		}
	}

	cfg := Config{
		DefaultChannel: strings.TrimSpace(parsed.DefaultChannel),
		Nick:           strings.TrimSpace(parsed.Nick),
		NoColor:        parsed.NoColor,
	}
	if cfg.DefaultChannel == "" {
		cfg.DefaultChannel = defaultChannel
	}
	if !strings.HasPrefix(cfg.DefaultChannel, "#") {
		return Config{}, fmt.Errorf("default_channel %q must start with #", cfg.DefaultChannel)
	}
	if strings.ContainsAny(cfg.DefaultChannel, " \t") {
		return Config{}, fmt.Errorf("default_channel %q must not contain whitespace", cfg.DefaultChannel)
	}
	if cfg.Nick == "" {
		cfg.Nick = defaultNick
	}

	return cfg, nil
}
