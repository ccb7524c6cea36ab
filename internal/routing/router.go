// Package routing dispatches classified intents through an ordered handler
// chain. Clarification always sits first and a generic fallback always sits
// last, so the chain is exhaustive: every Route call produces a RouteResult
// unless the fallback itself fails, which is a terminal error.
package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"parley/internal/config"
	"parley/internal/logging"
	"parley/internal/types"
)

// ErrFallbackMissing reports an exhausted chain: no handler accepted the
// intent and no fallback was present to absorb it. This is an invariant
// violation, not a user-input condition.
var ErrFallbackMissing = errors.New("handler chain exhausted without fallback")

// Router invokes handlers strictly in registration order, stopping at the
// first CanHandle()==true. A handler that returns an error or panics is
// logged and treated as "cannot handle"; routing falls through to the next.
type Router struct {
	mu       sync.RWMutex
	chain    []types.Handler
	fallback types.Handler
	metrics  *Metrics
}

// NewRouter builds a router with the reserved clarification handler first
// and the reserved fallback last. Handlers registered later slot in between.
func NewRouter(cfg config.RoutingConfig) *Router {
	r := &Router{
		chain:    []types.Handler{NewClarificationHandler(cfg.ClarificationCutoff)},
		fallback: NewFallbackHandler(),
		metrics:  NewMetrics(),
	}
	logging.Routing("Router created: clarification cutoff=%.2f", cfg.ClarificationCutoff)
	return r
}

// Register appends a handler between clarification and the fallback.
// Registration order is priority order.
func (r *Router) Register(h types.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chain = append(r.chain, h)
	logging.RoutingDebug("Registered handler %q at priority %d", h.Name(), len(r.chain)-1)
}

// Route walks the chain. The returned error is non-nil only for invariant
// violations: a missing or failing fallback.
func (r *Router) Route(ctx context.Context, intent types.Intent, entities map[string]types.Entity, actx types.AdaptiveContext) (types.RouteResult, error) {
	timer := logging.StartTimer(logging.CategoryRouting, "Route")
	defer timer.Stop()

	r.mu.RLock()
	chain := make([]types.Handler, len(r.chain))
	copy(chain, r.chain)
	fallback := r.fallback
	r.mu.RUnlock()

	for _, h := range chain {
		if !h.CanHandle(intent, actx) {
			continue
		}
		result, err := r.invoke(ctx, h, intent, entities, actx)
		if err != nil {
			logging.Get(logging.CategoryRouting).Warn("Handler %q failed, falling through: %v", h.Name(), err)
			continue
		}
		logging.Routing("Routed %s to %q", intent.Category, h.Name())
		return types.RouteResult{HandledBy: h.Name(), Result: result, Confidence: intent.Confidence}, nil
	}

	if fallback == nil {
		return types.RouteResult{}, ErrFallbackMissing
	}
	result, err := r.invoke(ctx, fallback, intent, entities, actx)
	if err != nil {
		return types.RouteResult{}, fmt.Errorf("fallback handler failed: %w", err)
	}
	logging.Routing("Routed %s to fallback", intent.Category)
	return types.RouteResult{HandledBy: fallback.Name(), Result: result, Confidence: intent.Confidence}, nil
}

// invoke runs one handler with panic recovery and metrics recording.
func (r *Router) invoke(ctx context.Context, h types.Handler, intent types.Intent, entities map[string]types.Entity, actx types.AdaptiveContext) (result string, err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler %q panicked: %v", h.Name(), rec)
		}
		r.metrics.Record(h.Name(), time.Since(start), err != nil)
	}()

	return h.Handle(ctx, intent, entities, actx)
}

// Metrics returns the router's per-handler observability counters.
func (r *Router) Metrics() *Metrics {
	return r.metrics
}

// Handlers lists the chain names in priority order, fallback last.
func (r *Router) Handlers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.chain)+1)
	for _, h := range r.chain {
		names = append(names, h.Name())
	}
	if r.fallback != nil {
		names = append(names, r.fallback.Name())
	}
	return names
}
