package otogi

import (
	"fmt"
	"time"
)

// EventKind identifies a neutral domain event type.
type EventKind string

const (
	// EventKindArticleCreated is emitted when a new chat line is posted.
	EventKindArticleCreated EventKind = "article.created"
	// EventKindCommandReceived is derived by the kernel from an ordinary command article.
	EventKindCommandReceived EventKind = "command.received"
	// EventKindSystemCommandReceived is derived by the kernel from a system command article.
	EventKindSystemCommandReceived EventKind = "system_command.received"
)

// Platform identifies an external chat platform source.
type Platform string

const (
	// PlatformConsole is the line-oriented console transport.
	PlatformConsole Platform = "console"
)

// ConversationType identifies conversation scope.
type ConversationType string

const (
	// ConversationTypePrivate is a direct conversation with one user.
	ConversationTypePrivate ConversationType = "private"
	// ConversationTypeGroup is a shared channel.
	ConversationTypeGroup ConversationType = "group"
)

// EventSource identifies which configured driver instance produced an event.
type EventSource struct {
	// Platform is the neutral platform of the producing driver.
	Platform Platform
	// ID is the configured driver instance name.
	ID string
}

// Event is the neutral envelope that drivers publish and modules consume.
//
// Article and Command are optional payload branches selected by Kind.
type Event struct {
	// ID is a stable identifier for this event instance.
	ID string
	// Kind selects which payload branch is expected.
	Kind EventKind
	// OccurredAt is the source-platform timestamp for the event.
	OccurredAt time.Time
	// Source identifies the driver instance that produced the event.
	Source EventSource
	// Conversation identifies where the event happened.
	Conversation Conversation
	// Actor identifies who initiated the event.
	Actor Actor
	// Article carries the chat line for article and command events.
	Article *Article
	// Command carries the bound invocation for command events.
	Command *CommandInvocation
	// Metadata stores optional driver-provided key/value context.
	Metadata map[string]string
}

// Conversation identifies the neutral destination where an event occurred.
type Conversation struct {
	// ID is the stable conversation identifier, a channel name or a nickname.
	ID string
	// Type describes the conversation scope.
	Type ConversationType
	// Title is a best-effort display label.
	Title string
}

// Actor identifies the user that initiated an event.
type Actor struct {
	// ID is the stable actor identifier on the source platform.
	ID string
	// Username is the chat nickname when available.
	Username string
	// DisplayName is the human-readable actor name.
	DisplayName string
	// IsBot reports whether the actor is an automated account.
	IsBot bool
}

// Nickname returns the best identifier for addressing this actor in chat.
func (a Actor) Nickname() string {
	switch {
	case a.Username != "":
		return a.Username
	case a.DisplayName != "":
		return a.DisplayName
	default:
		return a.ID
	}
}

// Article is one chat line.
type Article struct {
	// ID is the message identifier on the source platform.
	ID string
	// ReplyToArticleID is the parent message identifier when this is a reply.
	ReplyToArticleID string
	// Text is the raw line body.
	Text string
}

// Validate checks event envelope and payload coherence.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if e.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidEvent)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing occurred_at", ErrInvalidEvent)
	}
	if e.Conversation.ID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidEvent)
	}

	switch e.Kind {
	case EventKindArticleCreated:
		if e.Article == nil {
			return fmt.Errorf("%w: article.created requires article payload", ErrInvalidEvent)
		}
	case EventKindCommandReceived, EventKindSystemCommandReceived:
		if e.Article == nil {
			return fmt.Errorf("%w: command event requires article payload", ErrInvalidEvent)
		}
		if err := e.Command.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
		}
	default:
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidEvent, e.Kind)
	}

	return nil
}
