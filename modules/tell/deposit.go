package tell

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"otogi-tell/modules/tell/reminder"
	"otogi-tell/pkg/otogi"
)

const (
	replyTooLong   = "That nickname is too long."
	replyBotHere   = "I'm here now, you can tell me whatever you want!"
	replyNotMonty  = "Hey, I'm not as stupid as Monty you know!"
	recipientTrail = ".,:;"
)

// handleDeposit queues one reminder from a /tell or /ask command.
//
// Every invocation ends with a persist attempt; persist skips a missing or
// disabled store so a deleted store stays deleted.
func (m *Module) handleDeposit(ctx context.Context, event *otogi.Event) error {
	if event == nil || event.Command == nil || event.Article == nil {
		return nil
	}
	defer m.persist(ctx)

	verb := reminder.Verb(event.Command.Name)
	teller := event.Actor.Nickname()

	tail := strings.TrimLeftFunc(event.Command.Value, unicode.IsSpace)
	tokens := strings.Fields(tail)
	if len(tokens) == 0 {
		return m.reply(ctx, event, fmt.Sprintf("%s whom?", verb))
	}
	rawRecipient := tokens[0]
	recipient := strings.TrimRight(rawRecipient, recipientTrail)
	body := strings.TrimLeftFunc(strings.TrimPrefix(tail, rawRecipient), unicode.IsSpace)
	if body == "" {
		return m.reply(ctx, event, fmt.Sprintf("%s %s what?", verb, recipient))
	}

	if !m.store.Exists() {
		return nil
	}

	switch {
	case utf8.RuneCountInString(recipient) > maxRecipientLength:
		return m.reply(ctx, event, replyTooLong)
	case sameIdentifier(recipient, m.cfg.BotNick):
		return m.reply(ctx, event, replyBotHere)
	case sameIdentifier(recipient, teller):
		return m.say(ctx, event, fmt.Sprintf("You can %s yourself that.", verb))
	case sameIdentifier(recipient, "me"):
		return m.say(ctx, event, replyNotMonty)
	}

	m.store.Append(foldIdentifier(recipient), reminder.Reminder{
		Sender:    teller,
		Verb:      verb,
		Timestamp: m.clock.stamp(recipient),
		Message:   body,
	})
	m.logger.DebugContext(ctx, "tell reminder queued",
		"sender", teller,
		"recipient", recipient,
		"verb", verb,
	)

	ack := fmt.Sprintf("I'll pass that on when %s is around...", recipient)
	if m.cfg.PrivateTells {
		return m.msg(ctx, event, teller, ack)
	}

	return m.reply(ctx, event, ack)
}
