package console

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"otogi-tell/pkg/otogi"
)

func TestSinkSendMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		request otogi.SendMessageRequest
		want    string
	}{
		{
			name: "channel line",
			request: otogi.SendMessageRequest{
				Target: otogi.OutboundTarget{Conversation: otogi.Conversation{ID: "#otogi", Type: otogi.ConversationTypeGroup}},
				Text:   "hello",
			},
			want: "[#otogi] <Otogi> hello\n",
		},
		{
			name: "channel reply",
			request: otogi.SendMessageRequest{
				Target:          otogi.OutboundTarget{Conversation: otogi.Conversation{ID: "#otogi", Type: otogi.ConversationTypeGroup}},
				Text:            "I'll pass that on when bob is around.",
				ReplyToNickname: "alice",
			},
			want: "[#otogi] <Otogi> alice: I'll pass that on when bob is around.\n",
		},
		{
			name: "private ignores reply nick",
			request: otogi.SendMessageRequest{
				Target:          otogi.OutboundTarget{Conversation: otogi.Conversation{ID: "bob", Type: otogi.ConversationTypePrivate}},
				Text:            "Message from alice",
				ReplyToNickname: "bob",
			},
			want: "[-> bob] <Otogi> Message from alice\n",
		},
		{
			name: "multi line",
			request: otogi.SendMessageRequest{
				Target:          otogi.OutboundTarget{Conversation: otogi.Conversation{ID: "#otogi", Type: otogi.ConversationTypeGroup}},
				Text:            "first\nsecond",
				ReplyToNickname: "alice",
			},
			want: "[#otogi] <Otogi> alice: first\n[#otogi] <Otogi> second\n",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			sink := newTestSink(t, &out)
			sink.newID = func() string { return "out-1" }

			message, err := sink.SendMessage(context.Background(), testCase.request)
			if err != nil {
				t.Fatalf("send message failed: %v", err)
			}
			if out.String() != testCase.want {
				t.Fatalf("output = %q, want %q", out.String(), testCase.want)
			}
			if message.ID != "out-1" || message.Target.Sink == nil || message.Target.Sink.ID != "console-main" {
				t.Fatalf("message = %+v", message)
			}
		})
	}
}

func TestSinkRejectsInvalidRequests(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	sink := newTestSink(t, &out)

	_, err := sink.SendMessage(context.Background(), otogi.SendMessageRequest{
		Target: otogi.OutboundTarget{Conversation: otogi.Conversation{ID: "#otogi", Type: otogi.ConversationTypeGroup}},
	})
	if !errors.Is(err, otogi.ErrInvalidOutboundRequest) {
		t.Fatalf("error = %v, want invalid outbound request", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sink.SendMessage(ctx, otogi.SendMessageRequest{
		Target: otogi.OutboundTarget{Conversation: otogi.Conversation{ID: "#otogi", Type: otogi.ConversationTypeGroup}},
		Text:   "hello",
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context canceled", err)
	}
	if out.Len() != 0 {
		t.Fatalf("output = %q, want nothing written", out.String())
	}
}

func TestSinkListSinks(t *testing.T) {
	t.Parallel()

	sink := newTestSink(t, &bytes.Buffer{})
	sinks, err := sink.ListSinks(context.Background())
	if err != nil {
		t.Fatalf("list sinks failed: %v", err)
	}
	if len(sinks) != 1 || sinks[0] != (otogi.EventSink{Platform: otogi.PlatformConsole, ID: "console-main"}) {
		t.Fatalf("sinks = %+v", sinks)
	}
}

func TestNewSinkValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewSink(nil, otogi.EventSink{ID: "console-main"}, Config{}); err == nil {
		t.Fatal("expected nil output error")
	}
	if _, err := NewSink(&bytes.Buffer{}, otogi.EventSink{}, Config{}); err == nil {
		t.Fatal("expected missing id error")
	}
}

func newTestSink(t *testing.T, out *bytes.Buffer) *Sink {
	t.Helper()

	sink, err := NewSink(out,
		otogi.EventSink{Platform: otogi.PlatformConsole, ID: "console-main"},
		Config{DefaultChannel: "#otogi", Nick: "Otogi", NoColor: true},
	)
	if err != nil {
		t.Fatalf("new sink failed: %v", err)
	}

	return sink
}
