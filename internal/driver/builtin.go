package driver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"otogi-tell/internal/driver/console"
)

// NewBuiltinRegistry constructs the runtime registry with all built-in drivers
// bound to the process standard streams.
func NewBuiltinRegistry() (*Registry, error) {
	return NewBuiltinRegistryWithStreams(os.Stdin, os.Stdout)
}

// NewBuiltinRegistryWithStreams constructs the built-in registry with console
// drivers reading from in and writing to out.
func NewBuiltinRegistryWithStreams(in io.Reader, out io.Writer) (*Registry, error) {
	return NewRegistry([]Descriptor{
		{
			Type:     console.DriverType,
			Platform: console.DriverPlatform,
			Builder: func(
				_ context.Context,
				definition Definition,
				builderLogger *slog.Logger,
			) (Runtime, error) {
				source, runtimeDriver, sinkDispatcher, err := console.BuildRuntimeFromConfig(
					definition.Name,
					builderLogger,
					definition.Config,
					in,
					out,
				)
				if err != nil {
					return Runtime{}, fmt.Errorf("build console runtime from config: %w", err)
				}

				return Runtime{
					Source:         source,
					Driver:         runtimeDriver,
					SinkDispatcher: sinkDispatcher,
				}, nil
			},
		},
	})
}
