package driver

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"otogi-tell/internal/driver/console"
	"otogi-tell/pkg/otogi"
)

func TestNewBuiltinRegistryIncludesConsole(t *testing.T) {
	t.Parallel()

	registry, err := NewBuiltinRegistry()
	if err != nil {
		t.Fatalf("new builtin registry failed: %v", err)
	}

	platform, err := registry.PlatformForType(console.DriverType)
	if err != nil {
		t.Fatalf("platform for console type failed: %v", err)
	}
	if platform != console.DriverPlatform {
		t.Fatalf("platform = %s, want %s", platform, console.DriverPlatform)
	}
}

func TestBuiltinConsoleRuntimeSendsThroughComposite(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	registry, err := NewBuiltinRegistryWithStreams(strings.NewReader(""), &out)
	if err != nil {
		t.Fatalf("new builtin registry failed: %v", err)
	}

	runtimes, err := registry.BuildEnabled(context.Background(), []Definition{
		{Name: "console-main", Type: console.DriverType, Enabled: true, Config: []byte(`{"nick":"Otogi","no_color":true}`)},
		{Name: "console-off", Type: console.DriverType, Enabled: false},
	}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("build enabled failed: %v", err)
	}
	if len(runtimes) != 1 {
		t.Fatalf("runtimes = %d, want 1", len(runtimes))
	}
	if runtimes[0].Source != (otogi.EventSource{Platform: otogi.PlatformConsole, ID: "console-main"}) {
		t.Fatalf("source = %+v", runtimes[0].Source)
	}

	dispatcher, err := NewCompositeSinkDispatcher(runtimes)
	if err != nil {
		t.Fatalf("new composite sink dispatcher failed: %v", err)
	}
	_, err = dispatcher.SendMessage(context.Background(), otogi.SendMessageRequest{
		Target: otogi.OutboundTarget{
			Conversation: otogi.Conversation{ID: "#otogi", Type: otogi.ConversationTypeGroup},
		},
		Text: "hello",
	})
	if err != nil {
		t.Fatalf("send message failed: %v", err)
	}
	if got, want := out.String(), "[#otogi] <Otogi> hello\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}
