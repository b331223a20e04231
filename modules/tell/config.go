package tell

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultMaximumTellsInChannel = 4
	defaultTimeFormat            = "02 Jan 15:04 MST"
	defaultTimezone              = "UTC"
	maxRecipientLength           = 20
)

// Config configures tell module behavior.
type Config struct {
	// BotNick is the bot's own nickname; tells addressed to it are refused.
	BotNick string
	// PrivateTells delivers every reminder by direct message.
	PrivateTells bool
	// MaximumTellsInChannel caps public announcements per delivery.
	MaximumTellsInChannel int
	// StorePath is the reminder store file.
	StorePath string
	// DefaultTimezone localizes timestamps for recipients without an override.
	DefaultTimezone *time.Location
	// Timezones holds per-recipient overrides keyed by folded nickname.
	Timezones map[string]*time.Location
	// TimeFormat is the Go layout used for stored timestamps.
	TimeFormat string
	// Operators are folded nicknames allowed to run ~reminders.
	Operators []string
}

type fileConfig struct {
	BotNick               string            `json:"bot_nick"`
	PrivateTells          bool              `json:"private_tells"`
	MaximumTellsInChannel *int              `json:"maximum_tells_in_channel"`
	StorePath             string            `json:"store_path"`
	DefaultTimezone       string            `json:"default_timezone"`
	Timezones             map[string]string `json:"timezones"`
	TimeFormat            string            `json:"time_format"`
	Operators             []string          `json:"operators"`
}

// DefaultStorePath derives the store location from the bot nickname and the
// driver instance name, as in "<dataDir>/<nick>-<driver>.tell.db".
func DefaultStorePath(dataDir, botNick, driverName string) string {
	return filepath.Join(dataDir, fmt.Sprintf("%s-%s.tell.db", botNick, driverName))
}

// ParseConfig decodes one JSON module section. An empty store_path stays
// empty so the caller can apply DefaultStorePath.
func ParseConfig(data []byte) (Config, error) {
	var parsed fileConfig
	if len(data) > 0 {
		if err := json.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse tell config: %w", err)
		}
	}

	cfg := Config{
		BotNick:               strings.TrimSpace(parsed.BotNick),
		PrivateTells:          parsed.PrivateTells,
		MaximumTellsInChannel: defaultMaximumTellsInChannel,
		StorePath:             strings.TrimSpace(parsed.StorePath),
		TimeFormat:            defaultTimeFormat,
		Timezones:             make(map[string]*time.Location, len(parsed.Timezones)),
	}
	if parsed.MaximumTellsInChannel != nil {
		cfg.MaximumTellsInChannel = *parsed.MaximumTellsInChannel
	}
	if layout := strings.TrimSpace(parsed.TimeFormat); layout != "" {
		cfg.TimeFormat = layout
	}

	zoneName := strings.TrimSpace(parsed.DefaultTimezone)
	if zoneName == "" {
		zoneName = defaultTimezone
	}
	zone, err := time.LoadLocation(zoneName)
	if err != nil {
		return Config{}, fmt.Errorf("parse tell config default_timezone: %w", err)
	}
	cfg.DefaultTimezone = zone

	for nickname, name := range parsed.Timezones {
		zone, err := time.LoadLocation(strings.TrimSpace(name))
		if err != nil {
			return Config{}, fmt.Errorf("parse tell config timezones[%s]: %w", nickname, err)
		}
		cfg.Timezones[foldIdentifier(strings.TrimSpace(nickname))] = zone
	}

	for _, nickname := range parsed.Operators {
		if nickname = strings.TrimSpace(nickname); nickname != "" {
			cfg.Operators = append(cfg.Operators, foldIdentifier(nickname))
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("parse tell config: %w", err)
	}

	return cfg, nil
}

// Validate checks resolved configuration coherence.
func (c Config) Validate() error {
	if c.BotNick == "" {
		return fmt.Errorf("missing bot_nick")
	}
	if c.MaximumTellsInChannel < 0 {
		return fmt.Errorf("maximum_tells_in_channel must be >= 0")
	}

	return nil
}

func (c Config) withDefaults() Config {
	if c.DefaultTimezone == nil {
		c.DefaultTimezone = time.UTC
	}
	if c.TimeFormat == "" {
		c.TimeFormat = defaultTimeFormat
	}

	return c
}
