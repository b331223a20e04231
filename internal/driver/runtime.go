package driver

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"otogi-tell/pkg/otogi"
)

// Definition describes one configured driver entry.
type Definition struct {
	// Name is the stable configured driver instance identifier.
	Name string
	// Type selects the builder for this entry.
	Type string
	// Enabled controls whether this definition is active.
	Enabled bool
	// Config stores driver-type-specific JSON payload.
	Config []byte
}

// Runtime contains one built driver instance and its outbound side.
type Runtime struct {
	// Source identifies events produced by Driver.
	Source otogi.EventSource
	// Driver is registered with the kernel.
	Driver otogi.Driver
	// SinkDispatcher delivers outbound messages for this instance.
	SinkDispatcher otogi.SinkDispatcher
}

// BuilderFunc builds one runtime from one configured driver definition.
type BuilderFunc func(ctx context.Context, definition Definition, logger *slog.Logger) (Runtime, error)

// Descriptor binds one driver type token to its platform and builder.
type Descriptor struct {
	Type     string
	Platform otogi.Platform
	Builder  BuilderFunc
}

// Registry maps driver types to runtime builders.
type Registry struct {
	entries map[string]Descriptor
}

// NewRegistry creates an immutable driver registry from descriptors.
func NewRegistry(descriptors []Descriptor) (*Registry, error) {
	entries := make(map[string]Descriptor, len(descriptors))
	for _, descriptor := range descriptors {
		switch {
		case descriptor.Type == "":
			return nil, fmt.Errorf("new registry: empty descriptor type")
		case descriptor.Platform == "":
			return nil, fmt.Errorf("new registry type %s: empty platform", descriptor.Type)
		case descriptor.Builder == nil:
			return nil, fmt.Errorf("new registry type %s: nil builder", descriptor.Type)
		}
		if _, exists := entries[descriptor.Type]; exists {
			return nil, fmt.Errorf("new registry type %s: duplicate", descriptor.Type)
		}
		entries[descriptor.Type] = descriptor
	}

	return &Registry{entries: entries}, nil
}

// Types returns registered driver types in sorted order.
func (r *Registry) Types() []string {
	if r == nil {
		return nil
	}

	return slices.Sorted(maps.Keys(r.entries))
}

// PlatformForType resolves one registered driver type to its platform.
func (r *Registry) PlatformForType(driverType string) (otogi.Platform, error) {
	if r == nil {
		return "", fmt.Errorf("resolve platform: nil registry")
	}
	entry, exists := r.entries[driverType]
	if !exists {
		return "", fmt.Errorf("unsupported type %s", driverType)
	}

	return entry.Platform, nil
}

// BuildEnabled builds every enabled definition in order.
func (r *Registry) BuildEnabled(
	ctx context.Context,
	definitions []Definition,
	logger *slog.Logger,
) ([]Runtime, error) {
	if r == nil {
		return nil, fmt.Errorf("build drivers: nil registry")
	}
	if logger == nil {
		logger = slog.Default()
	}

	runtimes := make([]Runtime, 0, len(definitions))
	seenNames := make(map[string]struct{}, len(definitions))
	for _, definition := range definitions {
		if !definition.Enabled {
			continue
		}
		if definition.Name == "" {
			return nil, fmt.Errorf("build driver: empty name")
		}
		if _, exists := seenNames[definition.Name]; exists {
			return nil, fmt.Errorf("build driver %s: duplicate name", definition.Name)
		}
		seenNames[definition.Name] = struct{}{}

		entry, exists := r.entries[definition.Type]
		if !exists {
			return nil, fmt.Errorf("build driver %s type %q: unsupported type", definition.Name, definition.Type)
		}
		runtime, err := entry.Builder(ctx, definition, logger.With("driver", definition.Name))
		if err != nil {
			return nil, fmt.Errorf("build driver %s type %s: %w", definition.Name, definition.Type, err)
		}
		if runtime.Driver == nil {
			return nil, fmt.Errorf("build driver %s type %s: nil driver", definition.Name, definition.Type)
		}
		if runtime.Source.Platform == "" {
			runtime.Source.Platform = entry.Platform
		}
		if runtime.Source.ID == "" {
			runtime.Source.ID = definition.Name
		}

		runtimes = append(runtimes, runtime)
	}

	return runtimes, nil
}

type sinkRoute struct {
	ref        otogi.EventSink
	dispatcher otogi.SinkDispatcher
}

// CompositeSinkDispatcher routes outbound requests to per-driver dispatchers.
type CompositeSinkDispatcher struct {
	byID       map[string]sinkRoute
	byPlatform map[otogi.Platform][]string
}

// NewCompositeSinkDispatcher creates a composite dispatcher from runtime sinks.
func NewCompositeSinkDispatcher(runtimes []Runtime) (*CompositeSinkDispatcher, error) {
	dispatcher := &CompositeSinkDispatcher{
		byID:       make(map[string]sinkRoute),
		byPlatform: make(map[otogi.Platform][]string),
	}
	for _, runtime := range runtimes {
		if runtime.SinkDispatcher == nil {
			continue
		}
		if runtime.Source.ID == "" {
			return nil, fmt.Errorf("new composite sink dispatcher: missing sink id")
		}
		if _, exists := dispatcher.byID[runtime.Source.ID]; exists {
			return nil, fmt.Errorf("new composite sink dispatcher: duplicate sink id %s", runtime.Source.ID)
		}

		ref := otogi.EventSink{Platform: runtime.Source.Platform, ID: runtime.Source.ID}
		dispatcher.byID[ref.ID] = sinkRoute{ref: ref, dispatcher: runtime.SinkDispatcher}
		dispatcher.byPlatform[ref.Platform] = append(dispatcher.byPlatform[ref.Platform], ref.ID)
	}

	return dispatcher, nil
}

// SendMessage routes one request to the sink named by its target.
func (d *CompositeSinkDispatcher) SendMessage(
	ctx context.Context,
	request otogi.SendMessageRequest,
) (*otogi.OutboundMessage, error) {
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("route send message: %w", err)
	}
	dispatcher, err := d.resolve(request.Target)
	if err != nil {
		return nil, fmt.Errorf("resolve sink for send message: %w", err)
	}

	response, err := dispatcher.SendMessage(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("route send message: %w", err)
	}

	return response, nil
}

// ListSinks returns all known sinks sorted by id.
func (d *CompositeSinkDispatcher) ListSinks(ctx context.Context) ([]otogi.EventSink, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}

	sinks := make([]otogi.EventSink, 0, len(d.byID))
	for _, id := range slices.Sorted(maps.Keys(d.byID)) {
		sinks = append(sinks, d.byID[id].ref)
	}

	return sinks, nil
}

// resolve picks a sink by id, then by unique platform, then the only sink configured.
func (d *CompositeSinkDispatcher) resolve(target otogi.OutboundTarget) (otogi.SinkDispatcher, error) {
	if len(d.byID) == 0 {
		return nil, fmt.Errorf("%w: no sinks configured", otogi.ErrOutboundUnsupported)
	}

	if target.Sink == nil {
		if len(d.byID) == 1 {
			for _, route := range d.byID {
				return route.dispatcher, nil
			}
		}
		return nil, fmt.Errorf("%w: missing target sink", otogi.ErrOutboundUnsupported)
	}

	ref := *target.Sink
	if ref.ID != "" {
		route, exists := d.byID[ref.ID]
		if !exists {
			return nil, fmt.Errorf("%w: sink %s not found", otogi.ErrOutboundUnsupported, ref.ID)
		}
		if ref.Platform != "" && route.ref.Platform != ref.Platform {
			return nil, fmt.Errorf("%w: sink %s platform mismatch: expected %s got %s",
				otogi.ErrOutboundUnsupported, ref.ID, ref.Platform, route.ref.Platform)
		}
		return route.dispatcher, nil
	}

	ids := d.byPlatform[ref.Platform]
	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("%w: no sink for platform %s", otogi.ErrOutboundUnsupported, ref.Platform)
	case 1:
		return d.byID[ids[0]].dispatcher, nil
	default:
		return nil, fmt.Errorf("%w: ambiguous sink for platform %s", otogi.ErrOutboundUnsupported, ref.Platform)
	}
}
