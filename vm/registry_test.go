package vm

import (
	"errors"
	"testing"

	"github.com/tolchain/corechain/execution"
)

func TestRegistryDispatchesByEntryPoint(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register("ping", func(ctx *execution.Context, bytecode []byte, param []byte, gas uint64) error {
		called = true
		return nil
	})

	if err := r.Run(nil, "ping", nil, nil, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !called {
		t.Fatal("expected handler to be invoked")
	}
}

func TestRegistryUnknownEntryPoint(t *testing.T) {
	r := NewRegistry()
	if err := r.Run(nil, "missing", nil, nil, 0); err == nil {
		t.Fatal("expected error for unregistered entry point")
	}
}

func TestRegisterPanicsOnDuplicate(t *testing.T) {
	r := NewRegistry()
	r.Register("dup", func(ctx *execution.Context, bytecode []byte, param []byte, gas uint64) error { return nil })

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r.Register("dup", func(ctx *execution.Context, bytecode []byte, param []byte, gas uint64) error { return errors.New("unused") })
}
