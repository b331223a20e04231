package tell

import (
	"context"
	"errors"
	"fmt"

	"otogi-tell/modules/tell/reminder"
	"otogi-tell/pkg/otogi"
)

const (
	replyDrainMiss = "Er..."
	replyOverflow  = "Further messages sent privately"
)

// rendered is one reminder prepared for each delivery route.
type rendered struct {
	sender      string
	toRecipient string
	toSender    string
	public      string
}

// handleDelivery drains reminders addressed to the speaker of one chat line.
func (m *Module) handleDelivery(ctx context.Context, event *otogi.Event) error {
	if event == nil || event.Article == nil || event.Actor.IsBot {
		return nil
	}
	if !m.store.Exists() {
		return nil
	}

	speaker := event.Actor.Nickname()
	var (
		lines   []rendered
		drained bool
		sendErr error
	)
	for _, key := range m.store.PendingKeys() {
		if !matchesKey(key, speaker) {
			continue
		}
		items, ok := m.store.Drain(key)
		if !ok {
			sendErr = errors.Join(sendErr, m.say(ctx, event, replyDrainMiss))
			continue
		}
		drained = true
		for _, item := range items {
			lines = append(lines, m.render(speaker, item))
		}
	}
	if len(lines) > 0 {
		m.logger.DebugContext(ctx, "tell delivering reminders",
			"recipient", speaker,
			"count", len(lines),
			"conversation", event.Conversation.ID,
		)
	}

	if m.cfg.PrivateTells {
		sendErr = errors.Join(sendErr, m.deliverPrivately(ctx, event, speaker, lines))
	} else {
		sendErr = errors.Join(sendErr, m.deliverPublicly(ctx, event, speaker, lines))
	}

	if drained {
		m.persist(ctx)
	}
	if sendErr != nil {
		return fmt.Errorf("tell deliver to %s: %w", speaker, sendErr)
	}

	return nil
}

func (m *Module) render(recipient string, item reminder.Reminder) rendered {
	timestamp := m.clock.trimToday(item.Timestamp)

	return rendered{
		sender:      item.Sender,
		toRecipient: fmt.Sprintf("Message from %s at %s : %s", item.Sender, timestamp, item.Message),
		toSender:    fmt.Sprintf("Message for %s delivered at %s : %s", recipient, timestamp, item.Message),
		public: fmt.Sprintf("%s: %s <%s> %s %s %s",
			recipient, timestamp, item.Sender, item.Verb, recipient, item.Message),
	}
}

// deliverPrivately messages the recipient and confirms to each sender.
func (m *Module) deliverPrivately(ctx context.Context, event *otogi.Event, recipient string, lines []rendered) error {
	var sendErr error
	for _, line := range lines {
		sendErr = errors.Join(sendErr,
			m.msg(ctx, event, recipient, line.toRecipient),
			m.msg(ctx, event, line.sender, line.toSender),
		)
	}

	return sendErr
}

// deliverPublicly announces up to the channel cap and messages the rest to
// the recipient. Senders of overflow reminders get no confirmation.
func (m *Module) deliverPublicly(ctx context.Context, event *otogi.Event, recipient string, lines []rendered) error {
	limit := min(m.cfg.MaximumTellsInChannel, len(lines))

	var sendErr error
	for _, line := range lines[:limit] {
		sendErr = errors.Join(sendErr, m.say(ctx, event, line.public))
	}
	overflow := lines[limit:]
	if len(overflow) == 0 {
		return sendErr
	}

	sendErr = errors.Join(sendErr, m.say(ctx, event, replyOverflow))
	for _, line := range overflow {
		sendErr = errors.Join(sendErr, m.msg(ctx, event, recipient, line.toRecipient))
	}

	return sendErr
}
