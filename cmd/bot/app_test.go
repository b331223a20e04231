package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"otogi-tell/internal/driver"
	"otogi-tell/modules/tell/reminder"

	"github.com/spf13/afero"
)

func writeConfigFile(t *testing.T, path string, contents string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("create config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func newTestRegistry(t *testing.T, in io.Reader, out io.Writer) *driver.Registry {
	t.Helper()

	registry, err := driver.NewBuiltinRegistryWithStreams(in, out)
	if err != nil {
		t.Fatalf("new builtin registry failed: %v", err)
	}

	return registry
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    slog.Level
		wantErr bool
	}{
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "info", input: "info", want: slog.LevelInfo},
		{name: "warn", input: "warn", want: slog.LevelWarn},
		{name: "warning", input: " WARNING ", want: slog.LevelWarn},
		{name: "error", input: "error", want: slog.LevelError},
		{name: "invalid", input: "trace", wantErr: true},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseLogLevel(testCase.input)
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != testCase.want {
				t.Fatalf("level = %v, want %v", got, testCase.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("loads all supported fields from config file", func(t *testing.T) {
		dataDir := t.TempDir()
		configPath := filepath.Join(t.TempDir(), "bot.json")
		writeConfigFile(t, configPath, `{
			"log_level":"warn",
			"data_dir":"`+filepath.ToSlash(dataDir)+`",
			"kernel":{
				"module_hook_timeout":"7s",
				"shutdown_timeout":"15s",
				"subscription_buffer":64,
				"subscription_workers":5
			},
			"drivers":[
				{"name":"console-main","type":"console","config":{"nick":"Otogi","no_color":true}},
				{"name":"console-off","type":"console","enabled":false}
			],
			"modules":{
				"tell":{"bot_nick":"Otogi","private_tells":true,"maximum_tells_in_channel":2}
			}
		}`)

		cfg, err := loadConfig(configPath, newTestRegistry(t, strings.NewReader(""), io.Discard))
		if err != nil {
			t.Fatalf("load config failed: %v", err)
		}

		if cfg.logLevel != slog.LevelWarn {
			t.Fatalf("log level = %v, want %v", cfg.logLevel, slog.LevelWarn)
		}
		if cfg.moduleHookTimeout != 7*time.Second || cfg.shutdownTimeout != 15*time.Second {
			t.Fatalf("timeouts = %s/%s, want 7s/15s", cfg.moduleHookTimeout, cfg.shutdownTimeout)
		}
		if cfg.subscriptionBuffer != 64 || cfg.subscriptionWorkers != 5 {
			t.Fatalf("subscription = %d/%d, want 64/5", cfg.subscriptionBuffer, cfg.subscriptionWorkers)
		}
		if len(cfg.drivers) != 2 || !cfg.drivers[0].Enabled || cfg.drivers[1].Enabled {
			t.Fatalf("drivers = %+v", cfg.drivers)
		}
		if !strings.Contains(string(cfg.drivers[0].Config), `"no_color":true`) {
			t.Fatalf("driver config = %s, want no_color passed through", cfg.drivers[0].Config)
		}
		if cfg.routingDefault == nil || cfg.routingDefault.Sink == nil || cfg.routingDefault.Sink.ID != "console-main" {
			t.Fatalf("routing default = %+v, want derived console-main route", cfg.routingDefault)
		}
		if cfg.tell.BotNick != "Otogi" || !cfg.tell.PrivateTells || cfg.tell.MaximumTellsInChannel != 2 {
			t.Fatalf("tell config = %+v", cfg.tell)
		}
		if want := filepath.Join(dataDir, "Otogi-console-main.tell.db"); cfg.tell.StorePath != want {
			t.Fatalf("store path = %q, want %q", cfg.tell.StorePath, want)
		}
	})

	t.Run("applies defaults and environment overrides", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bot.json")
		writeConfigFile(t, configPath, `{
			"drivers":[{"name":"console-main","type":"console"}],
			"modules":{"tell":{"bot_nick":"Otogi","store_path":"/tmp/tell.db"}}
		}`)
		t.Setenv(envConfigFile, configPath)
		t.Setenv("OTOGI_LOG_LEVEL", "debug")

		cfg, err := loadConfig("", newTestRegistry(t, strings.NewReader(""), io.Discard))
		if err != nil {
			t.Fatalf("load config failed: %v", err)
		}
		if cfg.logLevel != slog.LevelDebug {
			t.Fatalf("log level = %v, want debug from environment", cfg.logLevel)
		}
		if cfg.moduleHookTimeout != defaultModuleHookTimeout || cfg.subscriptionBuffer != defaultSubscriptionBuffer {
			t.Fatalf("kernel defaults = %s/%d", cfg.moduleHookTimeout, cfg.subscriptionBuffer)
		}
		if cfg.tell.StorePath != "/tmp/tell.db" {
			t.Fatalf("store path = %q, want explicit path", cfg.tell.StorePath)
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv(envConfigFile, "")

		if _, err := loadConfig("", newTestRegistry(t, strings.NewReader(""), io.Discard)); err == nil {
			t.Fatal("expected missing config error")
		}
	})
}

func TestLoadConfigRejectsInvalidFiles(t *testing.T) {
	t.Parallel()

	const tellSection = `"modules":{"tell":{"bot_nick":"Otogi"}}`
	const consoleDriver = `"drivers":[{"name":"console-main","type":"console"}]`
	tests := []struct {
		name     string
		contents string
	}{
		{name: "malformed json", contents: `{"log_level":`},
		{name: "bad log level", contents: `{"log_level":"loud",` + consoleDriver + `,` + tellSection + `}`},
		{name: "bad timeout", contents: `{"kernel":{"shutdown_timeout":"soon"},` + consoleDriver + `,` + tellSection + `}`},
		{name: "zero workers", contents: `{"kernel":{"subscription_workers":0},` + consoleDriver + `,` + tellSection + `}`},
		{name: "no drivers", contents: `{` + tellSection + `}`},
		{name: "unknown driver type", contents: `{"drivers":[{"name":"x","type":"irc"}],` + tellSection + `}`},
		{
			name:     "duplicate driver names",
			contents: `{"drivers":[{"name":"a","type":"console"},{"name":"a","type":"console"}],` + tellSection + `}`,
		},
		{name: "missing tell section", contents: `{` + consoleDriver + `}`},
		{name: "tell without bot nick", contents: `{` + consoleDriver + `,"modules":{"tell":{}}}`},
		{
			name: "unknown routed module",
			contents: `{` + consoleDriver + `,` + tellSection + `,"routing":{"modules":{"seen":{
				"sources":[{"id":"console-main"}],"sink":{"id":"console-main"}}}}}`,
		},
		{
			name: "multi driver without default route",
			contents: `{"drivers":[{"name":"a","type":"console"},{"name":"b","type":"console"}],` +
				tellSection + `}`,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			configPath := filepath.Join(t.TempDir(), "bot.json")
			writeConfigFile(t, configPath, testCase.contents)
			if _, err := loadConfig(configPath, newTestRegistry(t, strings.NewReader(""), io.Discard)); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}

func TestListReminders(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	store := reminder.NewStore(fs, "/data/tell.db", nil)
	store.EnsureFile()
	store.Append("bob", reminder.Reminder{Sender: "alice", Verb: reminder.VerbTell, Timestamp: "10 Mar 15:04 UTC", Message: "hi"})
	store.Append("dev*", reminder.Reminder{Sender: "carol", Verb: reminder.VerbAsk, Timestamp: "10 Mar 16:00 UTC", Message: "deploy?"})
	store.Append("bob", reminder.Reminder{Sender: "dave", Verb: reminder.VerbAsk, Timestamp: "11 Mar 09:30 UTC", Message: "lunch?"})
	if err := store.Save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	var out bytes.Buffer
	if err := listReminders(context.Background(), &out, afero.NewReadOnlyFs(fs), "/data/tell.db", true); err != nil {
		t.Fatalf("list reminders failed: %v", err)
	}
	want := strings.Join([]string{
		"bob: 2 pending",
		"  10 Mar 15:04 UTC <alice> tell hi",
		"  11 Mar 09:30 UTC <dave> ask lunch?",
		"dev* (wildcard): 1 pending",
		"  10 Mar 16:00 UTC <carol> ask deploy?",
		"",
	}, "\n")
	if out.String() != want {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}
}

func TestListRemindersEmptyAndMissing(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/data/tell.db", nil, 0o644); err != nil {
		t.Fatalf("write store failed: %v", err)
	}

	var out bytes.Buffer
	if err := listReminders(context.Background(), &out, fs, "/data/tell.db", true); err != nil {
		t.Fatalf("list reminders failed: %v", err)
	}
	if out.String() != "no pending reminders in /data/tell.db\n" {
		t.Fatalf("output = %q", out.String())
	}

	if err := listReminders(context.Background(), io.Discard, fs, "/data/missing.db", true); err == nil {
		t.Fatal("expected missing store error")
	}
}

func TestRemindersCommandReadsStoreFlag(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tell.db")
	if err := os.WriteFile(path, []byte("bob\talice\ttell\t10 Mar 15:04 UTC\thi\n"), 0o600); err != nil {
		t.Fatalf("write store failed: %v", err)
	}

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"reminders", "--store", path, "--no-color"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !strings.Contains(out.String(), "<alice> tell hi") {
		t.Fatalf("output = %q, want the stored reminder", out.String())
	}
}

func TestRunBotRelaysReminder(t *testing.T) {
	t.Parallel()

	storePath := filepath.Join(t.TempDir(), "tell.db")
	configPath := filepath.Join(t.TempDir(), "bot.json")
	writeConfigFile(t, configPath, `{
		"kernel":{"shutdown_timeout":"2s"},
		"drivers":[{"name":"console-main","type":"console","config":{"no_color":true}}],
		"modules":{"tell":{"bot_nick":"Otogi","store_path":"`+filepath.ToSlash(storePath)+`"}}
	}`)

	reader, writer := io.Pipe()
	out := &syncBuffer{}
	registry := newTestRegistry(t, reader, out)
	cfg, err := loadConfig(configPath, registry)
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- runBot(context.Background(), cfg, registry, io.Discard)
	}()

	writeLine(t, writer, "alice: Otogi, tell bob see you at 5")
	waitForOutput(t, out, "alice: I'll pass that on when bob is around...")
	writeLine(t, writer, "bob: morning")
	waitForOutput(t, out, "<alice> tell bob see you at 5")
	if err := writer.Close(); err != nil {
		t.Fatalf("close input failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run bot failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("bot did not stop after input ended")
	}

	stored, err := os.ReadFile(storePath)
	if err != nil {
		t.Fatalf("read store failed: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("store = %q, want empty after delivery", stored)
	}
}

func writeLine(t *testing.T, writer io.Writer, line string) {
	t.Helper()

	if _, err := io.WriteString(writer, line+"\n"); err != nil {
		t.Fatalf("write line failed: %v", err)
	}
}

func waitForOutput(t *testing.T, out *syncBuffer, want string) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("output = %q, want it to contain %q", out.String(), want)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
