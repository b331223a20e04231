package help

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"otogi-tell/pkg/otogi"
)

const helpCommandName = "help"

// Module answers /help with the registered command reference, or with the
// usage of one command for /help <name>.
type Module struct {
	dispatcher     otogi.SinkDispatcher
	commandCatalog otogi.CommandCatalog
}

// New creates a help module.
func New() *Module {
	return &Module{}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "help"
}

// Spec declares interest in ordinary help command events.
func (m *Module) Spec() otogi.ModuleSpec {
	return otogi.ModuleSpec{
		Handlers: []otogi.ModuleHandler{
			{
				Capability: otogi.Capability{
					Name:        "help-command-handler",
					Description: "renders registered command help for /help",
					Interest: otogi.InterestSet{
						Kinds:          []otogi.EventKind{otogi.EventKindCommandReceived},
						RequireCommand: true,
						CommandNames:   []string{helpCommandName},
						RequireArticle: true,
					},
					RequiredServices: []string{
						otogi.ServiceSinkDispatcher,
						otogi.ServiceCommandCatalog,
					},
				},
				Subscription: otogi.NewDefaultSubscriptionSpec("help-commands"),
				Handler:      m.handleCommand,
			},
		},
		Commands: []otogi.CommandSpec{
			{
				Prefix:      otogi.CommandPrefixOrdinary,
				Name:        helpCommandName,
				Usage:       "[command]",
				Description: "list commands, or show how to use one",
			},
		},
	}
}

// OnRegister resolves dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime otogi.ModuleRuntime) error {
	dispatcher, err := otogi.ResolveAs[otogi.SinkDispatcher](
		runtime.Services(),
		otogi.ServiceSinkDispatcher,
	)
	if err != nil {
		return fmt.Errorf("help resolve outbound dispatcher: %w", err)
	}
	commandCatalog, err := otogi.ResolveAs[otogi.CommandCatalog](
		runtime.Services(),
		otogi.ServiceCommandCatalog,
	)
	if err != nil {
		return fmt.Errorf("help resolve command catalog: %w", err)
	}

	m.dispatcher = dispatcher
	m.commandCatalog = commandCatalog

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(_ context.Context) error {
	return nil
}

// OnShutdown stops the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

func (m *Module) handleCommand(ctx context.Context, event *otogi.Event) error {
	if event == nil || event.Command == nil || event.Article == nil {
		return nil
	}
	if event.Kind != otogi.EventKindCommandReceived || event.Command.Name != helpCommandName {
		return nil
	}
	if m.dispatcher == nil || m.commandCatalog == nil {
		return fmt.Errorf("help handle command: module not registered")
	}

	commands, err := m.commandCatalog.ListCommands(ctx)
	if err != nil {
		return fmt.Errorf("help list commands: %w", err)
	}

	var body string
	if topic := strings.Fields(event.Command.Value); len(topic) > 0 {
		body = renderTopic(commands, topic[0])
	} else {
		body = renderHelp(commands)
	}

	target, err := otogi.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("help derive outbound target: %w", err)
	}
	_, err = m.dispatcher.SendMessage(ctx, otogi.SendMessageRequest{
		Target:           target,
		Text:             body,
		ReplyToMessageID: event.Article.ID,
		ReplyToNickname:  event.Actor.Nickname(),
	})
	if err != nil {
		return fmt.Errorf("help send help message: %w", err)
	}

	return nil
}

func renderHelp(commands []otogi.RegisteredCommand) string {
	if len(commands) == 0 {
		return "Available commands: (none)"
	}

	sorted := slices.Clone(commands)
	slices.SortFunc(sorted, func(left, right otogi.RegisteredCommand) int {
		if byLabel := strings.Compare(commandLabel(left.Command), commandLabel(right.Command)); byLabel != 0 {
			return byLabel
		}
		return strings.Compare(left.ModuleName, right.ModuleName)
	})

	lines := make([]string, 0, len(sorted)+1)
	lines = append(lines, "Available commands:")
	for _, command := range sorted {
		lines = append(lines, renderCommand(command))
	}

	return strings.Join(lines, "\n")
}

// renderTopic describes every registration whose name matches topic. The
// prefix on topic is optional.
func renderTopic(commands []otogi.RegisteredCommand, topic string) string {
	name := strings.ToLower(strings.TrimLeft(topic, "/~"))

	var lines []string
	for _, command := range commands {
		if strings.ToLower(strings.TrimSpace(command.Command.Name)) == name {
			lines = append(lines, renderCommand(command))
		}
	}
	if len(lines) == 0 {
		return fmt.Sprintf("No command named %q. Try /help for the full list.", name)
	}
	slices.Sort(lines)

	return strings.Join(lines, "\n")
}

func renderCommand(command otogi.RegisteredCommand) string {
	line := commandLabel(command.Command)
	if usage := strings.TrimSpace(command.Command.Usage); usage != "" {
		line += " " + usage
	}
	if description := strings.TrimSpace(command.Command.Description); description != "" {
		line += " - " + description
	}
	moduleName := strings.TrimSpace(command.ModuleName)
	if moduleName == "" {
		moduleName = "unknown"
	}

	return fmt.Sprintf("%s (%s)", line, moduleName)
}

func commandLabel(command otogi.CommandSpec) string {
	return fmt.Sprintf("%s%s", command.Prefix, strings.ToLower(strings.TrimSpace(command.Name)))
}

var (
	_ otogi.Module          = (*Module)(nil)
	_ otogi.ModuleRegistrar = (*Module)(nil)
)
