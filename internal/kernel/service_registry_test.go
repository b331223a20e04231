package kernel

import (
	"errors"
	"testing"

	"otogi-tell/pkg/otogi"
)

// TestServiceRegistry verifies register and resolve semantics.
func TestServiceRegistry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		register    func(*ServiceRegistry) error
		resolveName string
		wantErr     error
	}{
		{
			name: "register and resolve",
			register: func(registry *ServiceRegistry) error {
				return registry.Register(otogi.ServiceLogger, "logger")
			},
			resolveName: otogi.ServiceLogger,
		},
		{
			name: "duplicate register",
			register: func(registry *ServiceRegistry) error {
				if err := registry.Register("svc", 1); err != nil {
					return err
				}
				return registry.Register("svc", 2)
			},
			resolveName: "svc",
			wantErr:     otogi.ErrServiceAlreadyRegistered,
		},
		{
			name:        "missing service",
			register:    func(*ServiceRegistry) error { return nil },
			resolveName: "missing",
			wantErr:     otogi.ErrServiceNotFound,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			registry := NewServiceRegistry()
			err := testCase.register(registry)
			if err == nil {
				_, err = registry.Resolve(testCase.resolveName)
			}
			if testCase.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if testCase.wantErr != nil && !errors.Is(err, testCase.wantErr) {
				t.Fatalf("error = %v, want %v", err, testCase.wantErr)
			}
		})
	}
}

func TestServiceRegistryRejectsInvalidRegistration(t *testing.T) {
	t.Parallel()

	registry := NewServiceRegistry()
	if err := registry.Register("", 1); err == nil {
		t.Fatal("expected empty name error")
	}
	if err := registry.Register("nil", nil); err == nil {
		t.Fatal("expected nil service error")
	}
}
