package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"otogi-tell/pkg/otogi"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// Sink writes outbound messages to a text stream, one line per message line.
type Sink struct {
	mu  sync.Mutex
	out io.Writer
	ref otogi.EventSink

	nick    string
	channel *color.Color
	private *color.Color
	speaker *color.Color
	newID   func() string
}

// NewSink creates a console sink identified by ref.
func NewSink(out io.Writer, ref otogi.EventSink, cfg Config) (*Sink, error) {
	if out == nil {
		return nil, fmt.Errorf("new console sink: nil output")
	}
	if ref.ID == "" {
		return nil, fmt.Errorf("new console sink: missing sink id")
	}

	sink := &Sink{
		out:     out,
		ref:     ref,
		nick:    cfg.Nick,
		channel: color.New(color.FgCyan),
		private: color.New(color.FgYellow),
		speaker: color.New(color.FgGreen, color.Bold),
		newID:   uuid.NewString,
	}
	if cfg.NoColor {
		sink.channel.DisableColor()
		sink.private.DisableColor()
		sink.speaker.DisableColor()
	}

	return sink, nil
}

// SendMessage prints request text under the bot nick.
func (s *Sink) SendMessage(ctx context.Context, request otogi.SendMessageRequest) (*otogi.OutboundMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("console send message: %w", err)
	}
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("console send message: %w", err)
	}

	prefix := s.prefix(request.Target.Conversation)
	lines := strings.Split(request.Text, "\n")
	if request.ReplyToNickname != "" && request.Target.Conversation.Type != otogi.ConversationTypePrivate {
		lines[0] = request.ReplyToNickname + ": " + lines[0]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range lines {
		if _, err := fmt.Fprintf(s.out, "%s %s\n", prefix, line); err != nil {
			return nil, fmt.Errorf("console send message to %s: %w", request.Target.Conversation.ID, err)
		}
	}

	target := request.Target
	target.Sink = &otogi.EventSink{Platform: s.ref.Platform, ID: s.ref.ID}
	return &otogi.OutboundMessage{ID: s.newID(), Target: target}, nil
}

// ListSinks returns the single sink identity this writer serves.
func (s *Sink) ListSinks(ctx context.Context) ([]otogi.EventSink, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("console list sinks: %w", err)
	}

	return []otogi.EventSink{s.ref}, nil
}

func (s *Sink) prefix(conversation otogi.Conversation) string {
	speaker := s.speaker.Sprintf("<%s>", s.nick)
	if conversation.Type == otogi.ConversationTypePrivate {
		return s.private.Sprintf("[-> %s]", conversation.ID) + " " + speaker
	}

	return s.channel.Sprintf("[%s]", conversation.ID) + " " + speaker
}
