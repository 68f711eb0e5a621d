package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hrygo/aida/ai/metrics"
	"github.com/hrygo/aida/ai/observability/logging"
)

type compiledRoute struct {
	Route
	guard *guard
}

// Table is an ordered route table. It is safe for concurrent use.
type Table struct {
	routes  []compiledRoute
	metrics metrics.Recorder

	mu       sync.RWMutex
	features Features
}

// TableOption customizes a Table.
type TableOption func(*Table)

// WithMetrics reports dispatches to r.
func WithMetrics(r metrics.Recorder) TableOption {
	return func(t *Table) {
		t.metrics = metrics.OrNop(r)
	}
}

// WithFeatures sets the initial feature switches.
func WithFeatures(features Features) TableOption {
	return func(t *Table) {
		t.features = features.Clone()
	}
}

// NewTable validates the routes and compiles their conditions.
func NewTable(routes []Route, opts ...TableOption) (*Table, error) {
	env, err := newGuardEnv()
	if err != nil {
		return nil, fmt.Errorf("create condition environment: %w", err)
	}

	t := &Table{
		metrics:  metrics.Nop{},
		features: Features{},
	}
	seen := make(map[string]bool, len(routes))
	for _, r := range routes {
		switch {
		case r.Name == "":
			return nil, errors.New("route name is required")
		case seen[r.Name]:
			return nil, fmt.Errorf("duplicate route %q", r.Name)
		case r.Matcher == nil || r.Handler == nil:
			return nil, fmt.Errorf("route %q needs a matcher and a handler", r.Name)
		}
		seen[r.Name] = true

		cr := compiledRoute{Route: r}
		if r.When != "" {
			if cr.guard, err = compileGuard(env, r.When); err != nil {
				return nil, err
			}
		}
		if cr.Capability == "" {
			cr.Capability = "do that"
		}
		t.routes = append(t.routes, cr)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// SetFeature flips a feature switch used by route conditions.
func (t *Table) SetFeature(name string, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.features[name] = enabled
}

// Features returns a copy of the current feature switches.
func (t *Table) Features() Features {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.features.Clone()
}

// Routes returns the route names in dispatch order.
func (t *Table) Routes() []string {
	names := make([]string, len(t.routes))
	for i, r := range t.routes {
		names[i] = r.Name
	}
	return names
}

// Dispatch runs the first route that matches the utterance.
// Handler errors and panics become "Sorry, I couldn't <capability>: <err>".
// It returns false when no route took the utterance.
func (t *Table) Dispatch(ctx context.Context, utterance string) (Result, bool) {
	features := t.Features()

	for _, r := range t.routes {
		if !r.guard.allows(features) {
			continue
		}
		m, ok := r.Matcher.Match(utterance)
		if !ok {
			continue
		}

		routeCtx := logging.WithRoute(ctx, r.Name)
		response, err := r.run(routeCtx, m)
		if errors.Is(err, ErrFallthrough) {
			logging.FromContext(routeCtx).Debug("routing: route declined, trying the next one")
			continue
		}

		t.metrics.RecordRoute(r.Name, err == nil)
		if err != nil {
			logging.FromContext(routeCtx).Warn("routing: handler failed", "error", err)
			return Result{
				Route:    r.Name,
				Response: fmt.Sprintf("Sorry, I couldn't %s: %v", r.Capability, err),
				Err:      err,
			}, true
		}
		logging.FromContext(routeCtx).Debug("routing: handled")
		return Result{Route: r.Name, Response: response}, true
	}
	return Result{}, false
}

func (r compiledRoute) run(ctx context.Context, m Match) (response string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("internal error: %v", rec)
		}
	}()
	return r.Handler(ctx, m)
}
