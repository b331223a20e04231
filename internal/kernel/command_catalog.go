package kernel

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"otogi-tell/pkg/otogi"
)

// kernelCommandCatalog exposes kernel command registrations through ServiceRegistry.
type kernelCommandCatalog struct {
	kernel *Kernel
}

// ListCommands returns all registered commands sorted by prefix, name, then module.
func (c *kernelCommandCatalog) ListCommands(ctx context.Context) ([]otogi.RegisteredCommand, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	if c == nil || c.kernel == nil {
		return nil, fmt.Errorf("list commands: nil catalog")
	}

	c.kernel.mu.RLock()
	commands := make([]otogi.RegisteredCommand, 0, len(c.kernel.commands))
	for _, registration := range c.kernel.commands {
		commands = append(commands, otogi.RegisteredCommand{
			ModuleName: registration.moduleName,
			Command:    registration.spec,
		})
	}
	c.kernel.mu.RUnlock()

	slices.SortFunc(commands, func(left, right otogi.RegisteredCommand) int {
		return cmp.Or(
			cmp.Compare(
				formatCommandKey(left.Command.Prefix, left.Command.Name),
				formatCommandKey(right.Command.Prefix, right.Command.Name),
			),
			cmp.Compare(left.ModuleName, right.ModuleName),
		)
	})

	return commands, nil
}

var _ otogi.CommandCatalog = (*kernelCommandCatalog)(nil)
