package tell

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"otogi-tell/modules/tell/reminder"
	"otogi-tell/pkg/otogi"
)

const (
	replyListingDisabled = "Reminders are disabled."
	replyListingEmpty    = "No pending reminders."
)

// handleListing answers ~reminders with a private summary of pending
// reminders per recipient key. Non-operators are ignored.
func (m *Module) handleListing(ctx context.Context, event *otogi.Event) error {
	if event == nil || event.Command == nil || event.Article == nil {
		return nil
	}
	operator := event.Actor.Nickname()
	if !slices.Contains(m.cfg.Operators, foldIdentifier(operator)) {
		m.logger.DebugContext(ctx, "tell listing refused", "nickname", operator)
		return nil
	}

	if !m.store.Exists() {
		return m.msg(ctx, event, operator, replyListingDisabled)
	}

	return m.msg(ctx, event, operator, renderListing(m.store.Snapshot()))
}

func renderListing(index *reminder.Index) string {
	if index.Len() == 0 {
		return replyListingEmpty
	}

	lines := []string{fmt.Sprintf("%d pending reminders:", index.Len())}
	for _, key := range index.Keys() {
		label := key
		if reminder.IsWildcardKey(key) {
			label += " (wildcard)"
		}
		lines = append(lines, fmt.Sprintf("%s: %d", label, len(index.Reminders(key))))
	}

	return strings.Join(lines, "\n")
}
