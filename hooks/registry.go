// Package hooks provides the registry that dispatches unit lifecycle
// events to registered hooks.
package hooks

import (
	"context"

	"github.com/evalkit/warden"
)

// Registry manages a collection of hooks and dispatches events to them.
//
// Hooks can implement any combination of hook interfaces declared in the
// warden package; they only receive events for the interfaces they
// implement.
//
//	registry := hooks.NewRegistry()
//	registry.Register(&LoggingHook{})
//	registry.Register(telemetryHook)
//	runner := batch.New(policy).WithHooks(registry)
//
// Registry is not thread-safe for registration: register all hooks before
// starting a run. Fire methods may be called concurrently by the runner's
// workers, so hooks themselves must be safe for concurrent use.
type Registry struct {
	hooks []any
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make([]any, 0)}
}

// Register adds a hook to the registry. The hook can implement any
// combination of hook interfaces (BeforeUnitHook, AfterUnitHook, etc.).
//
// Hooks are called in the order they are registered.
func (r *Registry) Register(hook any) *Registry {
	r.hooks = append(r.hooks, hook)
	return r
}

// FireBeforeUnit dispatches a BeforeUnitEvent to all registered
// BeforeUnitHook implementations.
func (r *Registry) FireBeforeUnit(ctx context.Context, event warden.BeforeUnitEvent) {
	for _, h := range r.hooks {
		if hook, ok := h.(warden.BeforeUnitHook); ok {
			hook.OnBeforeUnit(ctx, event)
		}
	}
}

// FireAfterUnit dispatches an AfterUnitEvent to all registered
// AfterUnitHook implementations.
func (r *Registry) FireAfterUnit(ctx context.Context, event warden.AfterUnitEvent) {
	for _, h := range r.hooks {
		if hook, ok := h.(warden.AfterUnitHook); ok {
			hook.OnAfterUnit(ctx, event)
		}
	}
}

// FireRetry dispatches a RetryEvent to all registered RetryHook
// implementations.
func (r *Registry) FireRetry(ctx context.Context, event warden.RetryEvent) {
	for _, h := range r.hooks {
		if hook, ok := h.(warden.RetryHook); ok {
			hook.OnRetry(ctx, event)
		}
	}
}

// FireViolation dispatches a ViolationEvent to all registered
// ViolationHook implementations.
func (r *Registry) FireViolation(ctx context.Context, event warden.ViolationEvent) {
	for _, h := range r.hooks {
		if hook, ok := h.(warden.ViolationHook); ok {
			hook.OnViolation(ctx, event)
		}
	}
}

// FireAbort dispatches an AbortEvent to all registered AbortHook
// implementations.
func (r *Registry) FireAbort(ctx context.Context, event warden.AbortEvent) {
	for _, h := range r.hooks {
		if hook, ok := h.(warden.AbortHook); ok {
			hook.OnAbort(ctx, event)
		}
	}
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int {
	return len(r.hooks)
}
