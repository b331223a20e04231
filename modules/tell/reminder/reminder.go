// Package reminder holds queued tell/ask reminders and their flat-file store.
package reminder

import (
	"strings"
)

// Verb is the command that queued a reminder.
type Verb string

const (
	// VerbTell queues a statement.
	VerbTell Verb = "tell"
	// VerbAsk queues a question.
	VerbAsk Verb = "ask"
)

const (
	fieldSeparator = "\t"
	recordFields   = 5
)

// Reminder is one queued message for a recipient key.
type Reminder struct {
	// Sender is the nickname that deposited the reminder.
	Sender string
	// Verb is the command used to deposit it.
	Verb Verb
	// Timestamp is preformatted in the recipient's timezone.
	Timestamp string
	// Message is the body to deliver.
	Message string
}

// IsWildcardKey reports whether key addresses every nickname sharing its prefix.
func IsWildcardKey(key string) bool {
	return strings.HasSuffix(key, "*") || strings.HasSuffix(key, ":")
}

// WildcardPrefix strips trailing wildcard markers from key.
func WildcardPrefix(key string) string {
	return strings.TrimRight(key, "*:")
}

func encodeRecord(key string, item Reminder) string {
	return strings.Join([]string{key, item.Sender, string(item.Verb), item.Timestamp, item.Message}, fieldSeparator)
}

// decodeRecord parses one trimmed store line. Tabs past the fourth belong to the message.
func decodeRecord(line string) (string, Reminder, bool) {
	fields := strings.SplitN(line, fieldSeparator, recordFields)
	if len(fields) != recordFields {
		return "", Reminder{}, false
	}

	return fields[0], Reminder{
		Sender:    fields[1],
		Verb:      Verb(fields[2]),
		Timestamp: fields[3],
		Message:   fields[4],
	}, true
}
