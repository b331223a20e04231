package tell

import (
	"path/filepath"
	"testing"
	"time"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
		check   func(t *testing.T, cfg Config)
	}{
		{
			name: "defaults",
			raw:  `{"bot_nick":"Otogi"}`,
			check: func(t *testing.T, cfg Config) {
				if cfg.PrivateTells {
					t.Fatal("private_tells defaulted to true")
				}
				if cfg.MaximumTellsInChannel != 4 {
					t.Fatalf("maximum_tells_in_channel = %d, want 4", cfg.MaximumTellsInChannel)
				}
				if cfg.DefaultTimezone != time.UTC {
					t.Fatalf("default timezone = %v, want UTC", cfg.DefaultTimezone)
				}
				if cfg.TimeFormat != defaultTimeFormat {
					t.Fatalf("time format = %q, want %q", cfg.TimeFormat, defaultTimeFormat)
				}
				if cfg.StorePath != "" {
					t.Fatalf("store path = %q, want empty", cfg.StorePath)
				}
			},
		},
		{
			name: "explicit values",
			raw: `{
				"bot_nick": " Otogi ",
				"private_tells": true,
				"maximum_tells_in_channel": 0,
				"store_path": "/var/lib/otogi/tell.db",
				"default_timezone": "Europe/Berlin",
				"timezones": {"Bob[away]": "Asia/Tokyo"},
				"time_format": "2006-01-02 15:04",
				"operators": ["Carol[ops]", " "]
			}`,
			check: func(t *testing.T, cfg Config) {
				if cfg.BotNick != "Otogi" {
					t.Fatalf("bot nick = %q, want Otogi", cfg.BotNick)
				}
				if !cfg.PrivateTells || cfg.MaximumTellsInChannel != 0 {
					t.Fatalf("private/cap = %v/%d, want true/0", cfg.PrivateTells, cfg.MaximumTellsInChannel)
				}
				if cfg.DefaultTimezone.String() != "Europe/Berlin" {
					t.Fatalf("default timezone = %s, want Europe/Berlin", cfg.DefaultTimezone)
				}
				zone, ok := cfg.Timezones["bob{away}"]
				if !ok || zone.String() != "Asia/Tokyo" {
					t.Fatalf("timezones = %v, want folded bob{away} -> Asia/Tokyo", cfg.Timezones)
				}
				if len(cfg.Operators) != 1 || cfg.Operators[0] != "carol{ops}" {
					t.Fatalf("operators = %v, want [carol{ops}]", cfg.Operators)
				}
			},
		},
		{
			name:    "missing bot nick",
			raw:     `{}`,
			wantErr: true,
		},
		{
			name:    "negative cap",
			raw:     `{"bot_nick":"Otogi","maximum_tells_in_channel":-1}`,
			wantErr: true,
		},
		{
			name:    "unknown timezone",
			raw:     `{"bot_nick":"Otogi","default_timezone":"Mars/Olympus"}`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			raw:     `{"bot_nick":`,
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := ParseConfig([]byte(testCase.raw))
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected parse error: %v", err)
			}
			testCase.check(t, cfg)
		})
	}
}

func TestDefaultStorePath(t *testing.T) {
	t.Parallel()

	got := DefaultStorePath("data", "Otogi", "console-main")
	if want := filepath.Join("data", "Otogi-console-main.tell.db"); got != want {
		t.Fatalf("DefaultStorePath = %q, want %q", got, want)
	}
}
