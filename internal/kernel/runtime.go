package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"otogi-tell/pkg/otogi"
)

// moduleRecord stores module metadata and subscriptions managed by the kernel.
type moduleRecord struct {
	name          string
	module        otogi.Module
	capabilities  []otogi.Capability
	subMu         sync.Mutex
	subscriptions []otogi.Subscription
}

func (m *moduleRecord) addSubscription(subscription otogi.Subscription) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.subscriptions = append(m.subscriptions, subscription)
}

// closeSubscriptions closes and forgets all tracked subscriptions; repeated calls are no-ops.
func (m *moduleRecord) closeSubscriptions(ctx context.Context) error {
	m.subMu.Lock()
	subscriptions := m.subscriptions
	m.subscriptions = nil
	m.subMu.Unlock()

	var closeErr error
	for _, subscription := range subscriptions {
		if err := subscription.Close(ctx); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close subscription %s: %w", subscription.Name(), err))
		}
	}

	return closeErr
}

// moduleRuntime is the kernel-owned implementation of otogi.ModuleRuntime.
type moduleRuntime struct {
	moduleName    string
	serviceLookup otogi.ServiceRegistry
	bus           otogi.EventBus
	record        *moduleRecord
	defaultSink   *otogi.EventSink
}

// Services returns the service registry as seen by this module. The sink
// dispatcher is wrapped so requests without a sink use the module route sink.
func (r *moduleRuntime) Services() otogi.ServiceRegistry {
	return moduleServiceRegistry{
		base:        r.serviceLookup,
		defaultSink: cloneSinkRef(r.defaultSink),
	}
}

// Subscribe registers a module-owned subscription after capability checks.
func (r *moduleRuntime) Subscribe(
	ctx context.Context,
	interest otogi.InterestSet,
	spec otogi.SubscriptionSpec,
	handler otogi.EventHandler,
) (otogi.Subscription, error) {
	if spec.Name == "" {
		spec.Name = r.moduleName + "-subscription"
	}
	if !capabilitiesAllow(r.record.capabilities, interest) {
		return nil, fmt.Errorf(
			"module %s subscribe %s: interest not covered by declared capabilities",
			r.moduleName,
			spec.Name,
		)
	}

	subscription, err := r.bus.Subscribe(ctx, interest, spec, handler)
	if err != nil {
		return nil, fmt.Errorf("module %s subscribe %s: %w", r.moduleName, spec.Name, err)
	}
	r.record.addSubscription(subscription)

	return subscription, nil
}

func capabilitiesAllow(capabilities []otogi.Capability, interest otogi.InterestSet) bool {
	for _, capability := range capabilities {
		if capability.Interest.Allows(interest) {
			return true
		}
	}

	return false
}

type moduleServiceRegistry struct {
	base        otogi.ServiceRegistry
	defaultSink *otogi.EventSink
}

func (r moduleServiceRegistry) Register(name string, service any) error {
	return r.base.Register(name, service)
}

func (r moduleServiceRegistry) Resolve(name string) (any, error) {
	service, err := r.base.Resolve(name)
	if err != nil {
		return nil, err
	}
	if name != otogi.ServiceSinkDispatcher || r.defaultSink == nil {
		return service, nil
	}
	dispatcher, ok := service.(otogi.SinkDispatcher)
	if !ok {
		return nil, fmt.Errorf("resolve service %s: type assertion failed", name)
	}

	return moduleSinkDispatcher{base: dispatcher, defaultSink: r.defaultSink}, nil
}

type moduleSinkDispatcher struct {
	base        otogi.SinkDispatcher
	defaultSink *otogi.EventSink
}

func (d moduleSinkDispatcher) SendMessage(
	ctx context.Context,
	request otogi.SendMessageRequest,
) (*otogi.OutboundMessage, error) {
	if request.Target.Sink == nil {
		request.Target.Sink = cloneSinkRef(d.defaultSink)
	}
	message, err := d.base.SendMessage(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("send message with module sink routing: %w", err)
	}

	return message, nil
}

func (d moduleSinkDispatcher) ListSinks(ctx context.Context) ([]otogi.EventSink, error) {
	return d.base.ListSinks(ctx)
}

func cloneSinkRef(sink *otogi.EventSink) *otogi.EventSink {
	if sink == nil {
		return nil
	}
	cloned := *sink

	return &cloned
}
