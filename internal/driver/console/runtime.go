package console

import (
	"fmt"
	"io"
	"log/slog"

	"otogi-tell/pkg/otogi"
)

// BuildRuntimeFromConfig builds one console driver runtime over in and out.
func BuildRuntimeFromConfig(
	name string,
	logger *slog.Logger,
	rawConfig []byte,
	in io.Reader,
	out io.Writer,
) (otogi.EventSource, otogi.Driver, otogi.SinkDispatcher, error) {
	cfg, err := ParseConfig(rawConfig)
	if err != nil {
		return otogi.EventSource{}, nil, nil, fmt.Errorf("parse console runtime config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	driver, err := NewDriver(name, cfg, in, WithLogger(logger))
	if err != nil {
		return otogi.EventSource{}, nil, nil, fmt.Errorf("new console driver: %w", err)
	}
	source := otogi.EventSource{Platform: DriverPlatform, ID: driver.Name()}

	sink, err := NewSink(out, otogi.EventSink{Platform: source.Platform, ID: source.ID}, cfg)
	if err != nil {
		return otogi.EventSource{}, nil, nil, fmt.Errorf("new console sink: %w", err)
	}

	return source, driver, sink, nil
}
