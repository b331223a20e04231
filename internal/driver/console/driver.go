package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"otogi-tell/pkg/otogi"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
)

const maxLineBytes = 64 * 1024

// ErrMalformedLine reports an input line that does not follow the console grammar.
var ErrMalformedLine = errors.New("malformed console line")

// DriverOption mutates console driver configuration.
type DriverOption func(*Driver)

// WithLogger configures the driver logger.
func WithLogger(logger *slog.Logger) DriverOption {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClock overrides the timestamp source for published events.
func WithClock(now func() time.Time) DriverOption {
	return func(d *Driver) {
		if now != nil {
			d.now = now
		}
	}
}

// WithIDGenerator overrides event id generation.
func WithIDGenerator(newID func() string) DriverOption {
	return func(d *Driver) {
		if newID != nil {
			d.newID = newID
		}
	}
}

// Driver reads chat lines from a text stream and publishes them as
// article.created events.
//
// Accepted lines:
//
//	#channel nick: text   a line in a channel
//	nick: text            a line in the default channel
//	@nick: text           a private line from nick to the bot
//
// A nick prefixed with + is marked as a bot account.
type Driver struct {
	name   string
	cfg    Config
	input  io.Reader
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	readers   conc.WaitGroup
	closeOnce sync.Once
}

// NewDriver creates a console driver reading from input.
func NewDriver(name string, cfg Config, input io.Reader, options ...DriverOption) (*Driver, error) {
	if input == nil {
		return nil, fmt.Errorf("new console driver: nil input")
	}
	if name == "" {
		name = DriverType
	}

	driver := &Driver{
		name:   name,
		cfg:    cfg,
		input:  input,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, option := range options {
		option(driver)
	}

	return driver, nil
}

// Name returns the configured driver instance name.
func (d *Driver) Name() string {
	return d.name
}

// Start reads input until it is exhausted or ctx is canceled.
func (d *Driver) Start(ctx context.Context, publisher otogi.EventPublisher) error {
	if publisher == nil {
		return fmt.Errorf("start console driver: nil publisher")
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	d.readers.Go(func() {
		defer close(lines)

		scanner := bufio.NewScanner(d.input)
		scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	})

	for {
		select {
		case <-ctx.Done():
			d.closeInput()
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil && !errors.Is(err, io.ErrClosedPipe) {
					return fmt.Errorf("start console driver %s: read input: %w", d.name, err)
				}
				return nil
			}
			d.handleLine(ctx, publisher, line)
		}
	}
}

// Shutdown closes the input and waits for the reader to exit.
func (d *Driver) Shutdown(ctx context.Context) error {
	d.closeInput()

	done := make(chan struct{})
	go func() {
		d.readers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown console driver %s: %w", d.name, ctx.Err())
	}
}

func (d *Driver) closeInput() {
	d.closeOnce.Do(func() {
		closer, ok := d.input.(io.Closer)
		if !ok {
			return
		}
		if err := closer.Close(); err != nil {
			d.logger.Debug("console input close failed", "error", err)
		}
	})
}

func (d *Driver) handleLine(ctx context.Context, publisher otogi.EventPublisher, line string) {
	event, err := d.parseLine(line)
	if err != nil {
		d.logger.WarnContext(ctx, "console line skipped", "line", line, "error", err)
		return
	}
	if event == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		d.logger.ErrorContext(ctx, "console publish failed",
			"event_id", event.ID,
			"conversation", event.Conversation.ID,
			"error", err,
		)
	}
}

// parseLine maps one input line to an event. Blank lines yield nil.
func (d *Driver) parseLine(line string) (*otogi.Event, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}

	conversation := otogi.Conversation{
		ID:    d.cfg.DefaultChannel,
		Type:  otogi.ConversationTypeGroup,
		Title: d.cfg.DefaultChannel,
	}
	private := false
	switch {
	case strings.HasPrefix(line, "#"):
		channel, rest, found := strings.Cut(line, " ")
		if !found || channel == "#" {
			return nil, fmt.Errorf("%w: channel without speaker", ErrMalformedLine)
		}
		conversation.ID = channel
		conversation.Title = channel
		line = strings.TrimSpace(rest)
	case strings.HasPrefix(line, "@"):
		private = true
		line = line[1:]
	}

	nick, text, found := strings.Cut(line, ":")
	if !found {
		return nil, fmt.Errorf("%w: missing nick separator", ErrMalformedLine)
	}
	nick = strings.TrimSpace(nick)
	isBot := strings.HasPrefix(nick, "+")
	nick = strings.TrimPrefix(nick, "+")
	if nick == "" || strings.ContainsAny(nick, " \t") {
		return nil, fmt.Errorf("%w: invalid nick %q", ErrMalformedLine, nick)
	}
	text = strings.TrimLeft(text, " \t")
	if text == "" {
		return nil, nil
	}
	if private {
		conversation = otogi.Conversation{ID: nick, Type: otogi.ConversationTypePrivate, Title: nick}
	}

	id := d.newID()
	return &otogi.Event{
		ID:           id,
		Kind:         otogi.EventKindArticleCreated,
		OccurredAt:   d.now().UTC(),
		Source:       otogi.EventSource{Platform: DriverPlatform, ID: d.name},
		Conversation: conversation,
		Actor: otogi.Actor{
			ID:       nick,
			Username: nick,
			IsBot:    isBot,
		},
		Article: &otogi.Article{ID: id, Text: text},
	}, nil
}
