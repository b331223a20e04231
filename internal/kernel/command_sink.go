package kernel

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"unicode"

	"otogi-tell/pkg/otogi"
)

type commandRegistration struct {
	moduleName string
	spec       otogi.CommandSpec
}

// registerModuleCommands validates and registers module-owned command specs.
func (k *Kernel) registerModuleCommands(moduleName string, commands []otogi.CommandSpec) error {
	if len(commands) == 0 {
		return nil
	}

	normalized := make([]otogi.CommandSpec, 0, len(commands))
	seenInModule := make(map[string]struct{}, len(commands))
	for index, command := range commands {
		if err := command.Validate(); err != nil {
			return fmt.Errorf("register command[%d] for module %s: %w", index, moduleName, err)
		}

		command.Name = normalizeCommandName(command.Name)
		key := commandRegistryKey(command.Prefix, command.Name)
		if _, exists := seenInModule[key]; exists {
			return fmt.Errorf(
				"register command %s for module %s: duplicate declaration",
				formatCommandKey(command.Prefix, command.Name),
				moduleName,
			)
		}
		seenInModule[key] = struct{}{}
		normalized = append(normalized, command)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for _, command := range normalized {
		if existing, exists := k.commands[commandRegistryKey(command.Prefix, command.Name)]; exists {
			return fmt.Errorf(
				"register command %s for module %s: already registered by module %s",
				formatCommandKey(command.Prefix, command.Name),
				moduleName,
				existing.moduleName,
			)
		}
	}
	for _, command := range normalized {
		k.commands[commandRegistryKey(command.Prefix, command.Name)] = commandRegistration{
			moduleName: moduleName,
			spec:       command,
		}
	}

	return nil
}

// unregisterModuleCommands removes every command owned by one module.
func (k *Kernel) unregisterModuleCommands(moduleName string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	maps.DeleteFunc(k.commands, func(_ string, registration commandRegistration) bool {
		return registration.moduleName == moduleName
	})
}

func (k *Kernel) lookupCommand(prefix otogi.CommandPrefix, name string) (otogi.CommandSpec, bool) {
	k.mu.RLock()
	registration, exists := k.commands[commandRegistryKey(prefix, name)]
	k.mu.RUnlock()

	return registration.spec, exists
}

// newDriverPublisher wraps the bus so driver-published articles also yield
// command events for registered commands.
func (k *Kernel) newDriverPublisher() otogi.EventPublisher {
	return &commandDerivingSink{
		base:          k.bus,
		lookupCommand: k.lookupCommand,
		nicknames:     append([]string(nil), k.cfg.commandNicknames...),
		serviceLookup: k.services,
		reportAsync:   k.cfg.onAsyncError,
	}
}

// commandDerivingSink publishes source events and derives command events.
type commandDerivingSink struct {
	base          otogi.EventPublisher
	lookupCommand func(prefix otogi.CommandPrefix, name string) (otogi.CommandSpec, bool)
	nicknames     []string
	serviceLookup otogi.ServiceRegistry
	reportAsync   func(context.Context, string, error)
}

// Publish forwards one source event and conditionally derives one command event.
func (s *commandDerivingSink) Publish(ctx context.Context, event *otogi.Event) error {
	if event == nil {
		return fmt.Errorf("publish command deriving sink: nil event")
	}
	if err := s.base.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish source event %s: %w", event.Kind, err)
	}
	if event.Kind != otogi.EventKindArticleCreated || event.Article == nil {
		return nil
	}

	candidate, matched, parseErr := otogi.ParseCommandCandidate(s.commandText(event.Article.Text))
	if !matched {
		return nil
	}
	spec, registered := s.lookupCommand(candidate.Prefix, candidate.Name)
	if !registered {
		return nil
	}
	if parseErr != nil {
		s.replyCommandError(ctx, event, spec, parseErr)
		return nil
	}

	invocation, err := otogi.BindCommand(candidate, spec, event)
	if err != nil {
		s.replyCommandError(ctx, event, spec, err)
		return nil
	}

	if err := s.base.Publish(ctx, derivedCommandEvent(event, candidate.Prefix, invocation)); err != nil {
		return fmt.Errorf("publish derived command %s: %w", invocation.Name, err)
	}

	return nil
}

// commandText rewrites a nickname-addressed line such as "Bot, tell bob hi"
// into ordinary command syntax. Other lines are returned unchanged.
func (s *commandDerivingSink) commandText(text string) string {
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	for _, nickname := range s.nicknames {
		if len(trimmed) <= len(nickname) || !strings.EqualFold(trimmed[:len(nickname)], nickname) {
			continue
		}
		rest := trimmed[len(nickname):]
		if rest[0] != ',' && rest[0] != ':' {
			continue
		}
		rest = strings.TrimLeftFunc(rest[1:], unicode.IsSpace)
		if rest == "" {
			continue
		}

		return string(otogi.CommandPrefixOrdinary) + rest
	}

	return text
}

func (s *commandDerivingSink) replyCommandError(
	ctx context.Context,
	sourceEvent *otogi.Event,
	spec otogi.CommandSpec,
	cause error,
) {
	dispatcher, err := otogi.ResolveAs[otogi.SinkDispatcher](s.serviceLookup, otogi.ServiceSinkDispatcher)
	if err != nil {
		s.reportAsyncError(ctx, "command error reply resolve dispatcher", err)
		return
	}
	target, err := otogi.OutboundTargetFromEvent(sourceEvent)
	if err != nil {
		s.reportAsyncError(ctx, "command error reply derive target", err)
		return
	}

	_, err = dispatcher.SendMessage(ctx, otogi.SendMessageRequest{
		Target:           target,
		Text:             fmt.Sprintf("%s\nusage: %s", cause.Error(), commandUsage(spec)),
		ReplyToMessageID: sourceEvent.Article.ID,
		ReplyToNickname:  sourceEvent.Actor.Nickname(),
	})
	if err != nil {
		s.reportAsyncError(ctx, "command error reply send", err)
	}
}

func (s *commandDerivingSink) reportAsyncError(ctx context.Context, scope string, err error) {
	if s.reportAsync != nil {
		s.reportAsync(ctx, scope, err)
	}
}

func derivedCommandEvent(
	sourceEvent *otogi.Event,
	prefix otogi.CommandPrefix,
	invocation otogi.CommandInvocation,
) *otogi.Event {
	article := *sourceEvent.Article
	suffix := "#command"
	if prefix == otogi.CommandPrefixSystem {
		suffix = "#system-command"
	}

	return &otogi.Event{
		ID:           sourceEvent.ID + suffix,
		Kind:         prefix.EventKind(),
		OccurredAt:   sourceEvent.OccurredAt,
		Source:       sourceEvent.Source,
		Conversation: sourceEvent.Conversation,
		Actor:        sourceEvent.Actor,
		Article:      &article,
		Command:      &invocation,
		Metadata:     maps.Clone(sourceEvent.Metadata),
	}
}

func commandUsage(spec otogi.CommandSpec) string {
	usage := formatCommandKey(spec.Prefix, spec.Name)
	if spec.Usage == "" {
		return usage
	}

	return usage + " " + spec.Usage
}

func commandRegistryKey(prefix otogi.CommandPrefix, name string) string {
	return fmt.Sprintf("%s:%s", prefix, normalizeCommandName(name))
}

func formatCommandKey(prefix otogi.CommandPrefix, name string) string {
	return fmt.Sprintf("%s%s", prefix, normalizeCommandName(name))
}

func normalizeCommandName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
