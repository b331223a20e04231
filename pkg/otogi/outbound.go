package otogi

import (
	"context"
	"fmt"
)

// ServiceSinkDispatcher is the canonical service registry key for outbound messaging.
const ServiceSinkDispatcher = "otogi.sink_dispatcher"

// EventSink identifies one outbound adapter instance.
type EventSink struct {
	// Platform is the neutral platform of the sink.
	Platform Platform
	// ID is the configured driver instance name.
	ID string
}

// SinkDispatcher sends neutral outbound messages to one or more sink adapters.
type SinkDispatcher interface {
	// SendMessage publishes a new outbound message to a destination conversation.
	SendMessage(ctx context.Context, request SendMessageRequest) (*OutboundMessage, error)
	// ListSinks returns all active sink identities.
	ListSinks(ctx context.Context) ([]EventSink, error)
}

// OutboundTarget identifies where an outbound operation should be delivered.
type OutboundTarget struct {
	// Conversation identifies the destination conversation.
	Conversation Conversation
	// Sink optionally overrides runtime-configured sink routing for this operation.
	Sink *EventSink
}

// Validate checks target identity fields used for outbound routing.
func (t OutboundTarget) Validate() error {
	if t.Conversation.ID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidOutboundRequest)
	}
	if t.Conversation.Type == "" {
		return fmt.Errorf("%w: missing conversation type", ErrInvalidOutboundRequest)
	}
	if t.Sink != nil && t.Sink.Platform == "" && t.Sink.ID == "" {
		return fmt.Errorf("%w: missing sink identity", ErrInvalidOutboundRequest)
	}

	return nil
}

// OutboundTargetFromEvent derives a reply target in the conversation of an inbound event.
func OutboundTargetFromEvent(event *Event) (OutboundTarget, error) {
	if event == nil {
		return OutboundTarget{}, fmt.Errorf("%w: nil event", ErrInvalidOutboundRequest)
	}
	target := OutboundTarget{
		Conversation: event.Conversation,
		Sink:         sinkFromSource(event.Source),
	}
	if err := target.Validate(); err != nil {
		return OutboundTarget{}, fmt.Errorf("derive target from event %s: %w", event.Kind, err)
	}

	return target, nil
}

// PrivateTargetFromEvent derives a direct-message target to nickname on the
// same sink that produced event.
func PrivateTargetFromEvent(event *Event, nickname string) (OutboundTarget, error) {
	if event == nil {
		return OutboundTarget{}, fmt.Errorf("%w: nil event", ErrInvalidOutboundRequest)
	}
	target := OutboundTarget{
		Conversation: Conversation{
			ID:    nickname,
			Type:  ConversationTypePrivate,
			Title: nickname,
		},
		Sink: sinkFromSource(event.Source),
	}
	if err := target.Validate(); err != nil {
		return OutboundTarget{}, fmt.Errorf("derive private target for %q: %w", nickname, err)
	}

	return target, nil
}

func sinkFromSource(source EventSource) *EventSink {
	if source.Platform == "" && source.ID == "" {
		return nil
	}

	return &EventSink{Platform: source.Platform, ID: source.ID}
}

// OutboundMessage identifies a message successfully emitted by the dispatcher.
type OutboundMessage struct {
	// ID is the destination-platform message identifier.
	ID string
	// Target is the destination where this message was delivered.
	Target OutboundTarget
}

// SendMessageRequest describes a new outbound text message.
type SendMessageRequest struct {
	// Target identifies where the message should be sent.
	Target OutboundTarget
	// Text is the message body.
	Text string
	// ReplyToMessageID optionally links this message as a reply.
	ReplyToMessageID string
	// ReplyToNickname optionally addresses the reply to one user in a shared conversation.
	ReplyToNickname string
}

// Validate checks the request envelope before dispatch.
func (r SendMessageRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return fmt.Errorf("validate send message target: %w", err)
	}
	if r.Text == "" {
		return fmt.Errorf("%w: missing message text", ErrInvalidOutboundRequest)
	}

	return nil
}
