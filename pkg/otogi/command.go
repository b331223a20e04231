package otogi

import (
	"fmt"
	"strings"
	"unicode"
)

// CommandPrefix identifies the prefix introducing one command invocation.
type CommandPrefix string

const (
	// CommandPrefixOrdinary identifies ordinary command syntax.
	CommandPrefixOrdinary CommandPrefix = "/"
	// CommandPrefixSystem identifies system command syntax.
	CommandPrefixSystem CommandPrefix = "~"
)

// Validate checks whether one command prefix is supported.
func (p CommandPrefix) Validate() error {
	switch p {
	case CommandPrefixOrdinary, CommandPrefixSystem:
		return nil
	default:
		return fmt.Errorf("validate command prefix: unsupported prefix %q", p)
	}
}

// EventKind returns the derived event kind for commands using this prefix.
func (p CommandPrefix) EventKind() EventKind {
	if p == CommandPrefixSystem {
		return EventKindSystemCommandReceived
	}

	return EventKindCommandReceived
}

// CommandCandidate is a parsed command-looking line before spec binding.
type CommandCandidate struct {
	// Prefix is the leading command prefix.
	Prefix CommandPrefix
	// Name is the normalized command name without prefix and mention suffix.
	Name string
	// Mention is the optional mention suffix from `<name>@<mention>`.
	Mention string
	// RawInput is the original untrimmed line.
	RawInput string
	// Tail is the raw text after the command header with leading whitespace removed.
	Tail string
}

// Tokens splits Tail on whitespace.
func (c CommandCandidate) Tokens() []string {
	return strings.Fields(c.Tail)
}

// CommandInvocation carries one validated command event payload.
type CommandInvocation struct {
	// Name is the normalized command name.
	Name string
	// Mention is the optional mention suffix from `<name>@<mention>`.
	Mention string
	// Value is the raw command tail with leading whitespace removed.
	Value string
	// SourceEventID identifies the inbound event that produced this command.
	SourceEventID string
	// SourceEventKind identifies the inbound event kind.
	SourceEventKind EventKind
	// RawInput stores the original inbound line.
	RawInput string
}

// Validate checks command invocation contract fields.
func (c *CommandInvocation) Validate() error {
	if c == nil {
		return fmt.Errorf("validate command invocation: nil invocation")
	}
	if normalizeCommandName(c.Name) == "" {
		return fmt.Errorf("validate command invocation: missing name")
	}
	if c.SourceEventID == "" {
		return fmt.Errorf("validate command invocation: missing source_event_id")
	}
	if c.SourceEventKind == "" {
		return fmt.Errorf("validate command invocation: missing source_event_kind")
	}

	return nil
}

// CommandSpec declares one module command registration.
type CommandSpec struct {
	// Prefix identifies which command prefix triggers this command.
	Prefix CommandPrefix
	// Name is the command name without prefix and mention suffix.
	Name string
	// Usage is a short argument synopsis shown by help.
	Usage string
	// Description describes command behavior for help text.
	Description string
}

// Validate checks command specification coherence.
func (s CommandSpec) Validate() error {
	if err := s.Prefix.Validate(); err != nil {
		return fmt.Errorf("validate command spec %q: %w", s.Name, err)
	}
	name := normalizeCommandName(s.Name)
	if name == "" {
		return fmt.Errorf("validate command spec: missing name")
	}
	if strings.ContainsFunc(name, unicode.IsSpace) {
		return fmt.Errorf("validate command spec %q: name contains whitespace", s.Name)
	}

	return nil
}

// ParseCommandCandidate parses one line into a command candidate.
//
// matched is false when text does not look like a command. When matched is
// true, err reports syntax issues such as a missing command name.
func ParseCommandCandidate(text string) (candidate CommandCandidate, matched bool, err error) {
	candidate.RawInput = text

	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	if trimmed == "" {
		return candidate, false, nil
	}

	header, tail := trimmed, ""
	if split := strings.IndexFunc(trimmed, unicode.IsSpace); split >= 0 {
		header, tail = trimmed[:split], trimmed[split:]
	}

	prefix, ok := parseCommandPrefix(header)
	if !ok {
		return candidate, false, nil
	}
	candidate.Prefix = prefix

	name, mention, _ := strings.Cut(header[len(prefix):], "@")
	candidate.Name = normalizeCommandName(name)
	candidate.Mention = strings.TrimSpace(mention)
	candidate.Tail = strings.TrimLeftFunc(tail, unicode.IsSpace)
	if candidate.Name == "" {
		return candidate, true, fmt.Errorf("parse command candidate: missing command name")
	}

	return candidate, true, nil
}

// BindCommand validates one parsed candidate against one command spec.
//
// sourceEvent must identify the inbound event that produced this command.
func BindCommand(candidate CommandCandidate, spec CommandSpec, sourceEvent *Event) (CommandInvocation, error) {
	if sourceEvent == nil {
		return CommandInvocation{}, fmt.Errorf("bind command: nil source event")
	}
	if err := spec.Validate(); err != nil {
		return CommandInvocation{}, fmt.Errorf("bind command %s: %w", spec.Name, err)
	}
	if candidate.Prefix != spec.Prefix {
		return CommandInvocation{}, fmt.Errorf(
			"bind command %s: prefix mismatch, got %q want %q",
			spec.Name,
			candidate.Prefix,
			spec.Prefix,
		)
	}
	specName := normalizeCommandName(spec.Name)
	if normalizeCommandName(candidate.Name) != specName {
		return CommandInvocation{}, fmt.Errorf("bind command %s: name mismatch, got %q", spec.Name, candidate.Name)
	}

	invocation := CommandInvocation{
		Name:            specName,
		Mention:         candidate.Mention,
		Value:           candidate.Tail,
		SourceEventID:   sourceEvent.ID,
		SourceEventKind: sourceEvent.Kind,
		RawInput:        candidate.RawInput,
	}
	if err := invocation.Validate(); err != nil {
		return CommandInvocation{}, fmt.Errorf("bind command %s: %w", spec.Name, err)
	}

	return invocation, nil
}

func parseCommandPrefix(token string) (CommandPrefix, bool) {
	switch {
	case strings.HasPrefix(token, string(CommandPrefixOrdinary)):
		return CommandPrefixOrdinary, true
	case strings.HasPrefix(token, string(CommandPrefixSystem)):
		return CommandPrefixSystem, true
	default:
		return "", false
	}
}

func normalizeCommandName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
