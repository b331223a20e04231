package otogi

import (
	"context"
)

// ServiceCommandCatalog is the canonical service registry key for command discovery.
const ServiceCommandCatalog = "otogi.command_catalog"

// RegisteredCommand describes one runtime command registration entry.
type RegisteredCommand struct {
	// ModuleName identifies which module registered this command.
	ModuleName string
	// Command is the registered command specification.
	Command CommandSpec
}

// CommandCatalog provides read access to registered command specifications.
//
// Implementations must be concurrency-safe and return defensive copies.
type CommandCatalog interface {
	// ListCommands returns all currently registered command entries.
	ListCommands(ctx context.Context) ([]RegisteredCommand, error)
}
