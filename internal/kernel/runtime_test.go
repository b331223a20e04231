package kernel

import (
	"context"
	"testing"

	"otogi-tell/pkg/otogi"
)

// TestModuleRuntimeSubscribeEnforcesCapabilities verifies undeclared interests are rejected.
func TestModuleRuntimeSubscribeEnforcesCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		interest otogi.InterestSet
		wantErr  bool
	}{
		{
			name:     "declared kind",
			interest: otogi.InterestSet{Kinds: []otogi.EventKind{otogi.EventKindArticleCreated}},
		},
		{
			name:     "undeclared kind",
			interest: otogi.InterestSet{Kinds: []otogi.EventKind{otogi.EventKindCommandReceived}},
			wantErr:  true,
		},
		{
			name:     "unfiltered interest",
			interest: otogi.InterestSet{},
			wantErr:  true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			kernelRuntime := newTestKernel(t)
			module := &stubModule{
				name: "runtime-check",
				spec: otogi.ModuleSpec{
					AdditionalCapabilities: []otogi.Capability{{
						Name:     "observe",
						Interest: otogi.InterestSet{Kinds: []otogi.EventKind{otogi.EventKindArticleCreated}},
					}},
				},
				onRegister: func(ctx context.Context, runtime otogi.ModuleRuntime) error {
					_, err := runtime.Subscribe(ctx, testCase.interest, otogi.SubscriptionSpec{},
						func(context.Context, *otogi.Event) error { return nil })
					return err
				},
			}

			err := kernelRuntime.RegisterModule(context.Background(), module)
			if testCase.wantErr && err == nil {
				t.Fatal("expected subscribe error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected subscribe error: %v", err)
			}
		})
	}
}

// TestModuleRuntimeDispatcherUsesRouteSink verifies default sink injection for module requests.
func TestModuleRuntimeDispatcherUsesRouteSink(t *testing.T) {
	t.Parallel()

	routeSink := &otogi.EventSink{Platform: otogi.PlatformConsole, ID: "console-ops"}
	kernelRuntime := New(WithModuleRouting(nil, map[string]ModuleRoute{
		"routed": {Sink: routeSink},
	}))
	t.Cleanup(func() {
		_ = kernelRuntime.EventBus().Close(context.Background())
	})

	dispatcher := &captureDispatcher{}
	if err := kernelRuntime.RegisterService(otogi.ServiceSinkDispatcher, dispatcher); err != nil {
		t.Fatalf("register dispatcher failed: %v", err)
	}

	var resolved otogi.SinkDispatcher
	module := &stubModule{
		name: "routed",
		onRegister: func(_ context.Context, runtime otogi.ModuleRuntime) error {
			var err error
			resolved, err = otogi.ResolveAs[otogi.SinkDispatcher](runtime.Services(), otogi.ServiceSinkDispatcher)
			return err
		},
	}
	if err := kernelRuntime.RegisterModule(context.Background(), module); err != nil {
		t.Fatalf("register module failed: %v", err)
	}

	explicit := &otogi.EventSink{Platform: otogi.PlatformConsole, ID: "console-main"}
	requests := []otogi.SendMessageRequest{
		{Target: otogi.OutboundTarget{Conversation: otogi.Conversation{ID: "#a", Type: otogi.ConversationTypeGroup}}, Text: "x"},
		{Target: otogi.OutboundTarget{Conversation: otogi.Conversation{ID: "#a", Type: otogi.ConversationTypeGroup}, Sink: explicit}, Text: "y"},
	}
	for _, request := range requests {
		if _, err := resolved.SendMessage(context.Background(), request); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	}

	sent := dispatcher.snapshot()
	if got := sent[0].Target.Sink; got == nil || got.ID != "console-ops" {
		t.Fatalf("default sink = %+v, want console-ops", got)
	}
	if got := sent[1].Target.Sink; got == nil || got.ID != "console-main" {
		t.Fatalf("explicit sink = %+v, want console-main", got)
	}
}
