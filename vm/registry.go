// Package vm is the bytecode-handler registry: the contract point where
// an external WASM virtual machine would plug in. Until then, native
// Go handlers self-register against entry point names via init(),
// giving the execution driver something runnable end to end.
package vm

import (
	"fmt"
	"sync"

	"github.com/tolchain/corechain/execution"
)

// Handler implements one entry point's effect on the speculative
// execution context. bytecode is nil for transfer and roll operations,
// the deployment payload for the "constructor" entry point invoked by
// OpExecuteSC (which deploys it), and the target's stored bytecode (if
// any) for OpCallSC and async messages; gas is
// the operation's declared budget, currently unmetered by native
// handlers (metering belongs to the external VM).
type Handler func(ctx *execution.Context, bytecode []byte, param []byte, gas uint64) error

// Registry maps entry point names to Handlers and implements
// execution.Runner, so it can be passed directly to execution.Driver.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

var _ execution.Runner = (*Registry)(nil)

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register associates entryPoint with h. Panics on duplicate
// registration: a fail-fast check against two modules claiming the
// same entry point.
func (r *Registry) Register(entryPoint string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[entryPoint]; exists {
		panic(fmt.Sprintf("vm: handler already registered for entry point %q", entryPoint))
	}
	r.handlers[entryPoint] = h
}

// Run implements execution.Runner: no built-in module interprets
// bytecode (there is no bytecode interpreter here; only "constructor"
// stores it), and dispatch happens purely by entryPoint. An external VM implementation would instead
// interpret bytecode and use entryPoint/param/gas as the call's ABI.
func (r *Registry) Run(bytecode []byte, entryPoint string, param []byte, ctx *execution.Context, gas uint64) error {
	r.mu.RLock()
	h, ok := r.handlers[entryPoint]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("vm: no handler registered for entry point %q", entryPoint)
	}
	return h(ctx, bytecode, param, gas)
}

// globalRegistry is the package-level singleton that built-in modules
// register into via init().
var globalRegistry = NewRegistry()

// Register adds a handler to the global registry. Built-in module init()
// functions call this to self-register.
func Register(entryPoint string, h Handler) {
	globalRegistry.Register(entryPoint, h)
}

// Default returns the global registry populated by every imported
// vm/modules/* package.
func Default() *Registry {
	return globalRegistry
}
