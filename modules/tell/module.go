// Package tell relays tell/ask reminders to users the next time they speak.
package tell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"otogi-tell/modules/tell/reminder"
	"otogi-tell/pkg/otogi"
)

const (
	commandTell      = string(reminder.VerbTell)
	commandAsk       = string(reminder.VerbAsk)
	commandReminders = "reminders"
)

// Option mutates tell module construction.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(module *Module) {
		if logger != nil {
			module.logger = logger
		}
	}
}

// WithFilesystem replaces the OS filesystem backing the store.
func WithFilesystem(fs afero.Fs) Option {
	return func(module *Module) {
		if fs != nil {
			module.fs = fs
		}
	}
}

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(module *Module) {
		if now != nil {
			module.clock.now = now
		}
	}
}

// reminderStore is the slice of reminder.Store the handlers use.
type reminderStore interface {
	Path() string
	EnsureFile()
	Exists() bool
	Load() (*reminder.Index, error)
	Save() error
	Append(key string, item reminder.Reminder)
	Drain(key string) ([]reminder.Reminder, bool)
	PendingKeys() []string
	Snapshot() *reminder.Index
}

// Module records reminders from /tell and /ask and delivers them when the
// recipient next speaks.
type Module struct {
	cfg        Config
	fs         afero.Fs
	logger     *slog.Logger
	clock      clock
	dispatcher otogi.SinkDispatcher
	store      reminderStore
}

// New creates a tell module.
func New(cfg Config, options ...Option) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new tell module: %w", err)
	}
	if cfg.StorePath == "" {
		return nil, fmt.Errorf("new tell module: missing store path")
	}
	cfg = cfg.withDefaults()

	module := &Module{
		cfg:    cfg,
		fs:     afero.NewOsFs(),
		logger: slog.Default(),
		clock: clock{
			now:         time.Now,
			layout:      cfg.TimeFormat,
			defaultZone: cfg.DefaultTimezone,
			zones:       cfg.Timezones,
		},
	}
	for _, option := range options {
		option(module)
	}

	return module, nil
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "tell"
}

// Spec declares the deposit command handler and the delivery observer.
func (m *Module) Spec() otogi.ModuleSpec {
	return otogi.ModuleSpec{
		Handlers: []otogi.ModuleHandler{
			{
				Capability: otogi.Capability{
					Name:        "tell-deposit",
					Description: "queues reminders from /tell and /ask",
					Interest: otogi.InterestSet{
						Kinds:          []otogi.EventKind{otogi.EventKindCommandReceived},
						RequireArticle: true,
						RequireCommand: true,
						CommandNames:   []string{commandTell, commandAsk},
					},
					RequiredServices: []string{otogi.ServiceSinkDispatcher},
				},
				Subscription: otogi.NewDefaultSubscriptionSpec("tell-commands"),
				Handler:      m.handleDeposit,
			},
			{
				Capability: otogi.Capability{
					Name:        "tell-delivery",
					Description: "delivers queued reminders when their recipient speaks",
					Interest: otogi.InterestSet{
						Kinds:          []otogi.EventKind{otogi.EventKindArticleCreated},
						RequireArticle: true,
					},
					RequiredServices: []string{otogi.ServiceSinkDispatcher},
				},
				Subscription: otogi.NewDefaultSubscriptionSpec("tell-delivery"),
				Handler:      m.handleDelivery,
			},
			{
				Capability: otogi.Capability{
					Name:        "tell-listing",
					Description: "lists pending reminders to bot operators",
					Interest: otogi.InterestSet{
						Kinds:          []otogi.EventKind{otogi.EventKindSystemCommandReceived},
						RequireArticle: true,
						RequireCommand: true,
						CommandNames:   []string{commandReminders},
					},
					RequiredServices: []string{otogi.ServiceSinkDispatcher},
				},
				Subscription: otogi.NewDefaultSubscriptionSpec("tell-listing"),
				Handler:      m.handleListing,
			},
		},
		Commands: []otogi.CommandSpec{
			{
				Prefix:      otogi.CommandPrefixOrdinary,
				Name:        commandTell,
				Usage:       "<nick> <message>",
				Description: "give someone a message the next time they're seen",
			},
			{
				Prefix:      otogi.CommandPrefixOrdinary,
				Name:        commandAsk,
				Usage:       "<nick> <question>",
				Description: "ask someone a question the next time they're seen",
			},
			{
				Prefix:      otogi.CommandPrefixSystem,
				Name:        commandReminders,
				Description: "privately list pending reminders (operators only)",
			},
		},
	}
}

// OnRegister resolves the logger and dispatcher and opens the store.
func (m *Module) OnRegister(_ context.Context, runtime otogi.ModuleRuntime) error {
	logger, err := otogi.ResolveAs[*slog.Logger](runtime.Services(), otogi.ServiceLogger)
	switch {
	case err == nil:
		m.logger = logger
	case errors.Is(err, otogi.ErrServiceNotFound):
	default:
		return fmt.Errorf("tell resolve logger: %w", err)
	}

	dispatcher, err := otogi.ResolveAs[otogi.SinkDispatcher](runtime.Services(), otogi.ServiceSinkDispatcher)
	if err != nil {
		return fmt.Errorf("tell resolve sink dispatcher: %w", err)
	}
	m.dispatcher = dispatcher
	m.store = reminder.NewStore(m.fs, m.cfg.StorePath, m.logger)

	return nil
}

// OnStart creates the store file when absent and loads pending reminders.
func (m *Module) OnStart(ctx context.Context) error {
	if m.store == nil {
		return fmt.Errorf("tell start: module not registered")
	}

	m.store.EnsureFile()
	index, err := m.store.Load()
	if err != nil {
		m.logger.WarnContext(ctx, "tell store unavailable, reminders disabled",
			"path", m.store.Path(),
			"error", err,
		)
		return nil
	}
	m.logger.InfoContext(ctx, "tell module started",
		"module", m.Name(),
		"path", m.store.Path(),
		"pending", index.Len(),
	)

	return nil
}

// OnShutdown stops the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

// persist saves the index when the store is present and loaded.
func (m *Module) persist(ctx context.Context) {
	if !m.store.Exists() {
		return
	}
	if err := m.store.Save(); err != nil {
		m.logger.ErrorContext(ctx, "tell store save failed", "path", m.store.Path(), "error", err)
	}
}

// reply answers the speaker in the conversation of event.
func (m *Module) reply(ctx context.Context, event *otogi.Event, text string) error {
	target, err := otogi.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("tell derive reply target: %w", err)
	}
	_, err = m.dispatcher.SendMessage(ctx, otogi.SendMessageRequest{
		Target:           target,
		Text:             text,
		ReplyToMessageID: event.Article.ID,
		ReplyToNickname:  event.Actor.Nickname(),
	})
	if err != nil {
		return fmt.Errorf("tell send reply: %w", err)
	}

	return nil
}

// say posts text to the conversation of event without addressing anyone.
func (m *Module) say(ctx context.Context, event *otogi.Event, text string) error {
	target, err := otogi.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("tell derive say target: %w", err)
	}
	if _, err := m.dispatcher.SendMessage(ctx, otogi.SendMessageRequest{Target: target, Text: text}); err != nil {
		return fmt.Errorf("tell send say: %w", err)
	}

	return nil
}

// msg sends text privately to nickname on the sink that produced event.
func (m *Module) msg(ctx context.Context, event *otogi.Event, nickname, text string) error {
	target, err := otogi.PrivateTargetFromEvent(event, nickname)
	if err != nil {
		return fmt.Errorf("tell derive private target: %w", err)
	}
	if _, err := m.dispatcher.SendMessage(ctx, otogi.SendMessageRequest{Target: target, Text: text}); err != nil {
		return fmt.Errorf("tell send private message to %s: %w", nickname, err)
	}

	return nil
}

var (
	_ otogi.Module          = (*Module)(nil)
	_ otogi.ModuleRegistrar = (*Module)(nil)
)
