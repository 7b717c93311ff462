// Package resolver implements dependent-field enrichment: a driver field
// change triggers a fetch whose results are merged into form state, unless a
// newer driver change superseded the request while it was in flight.
package resolver

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-advisory/pkg/form"
)

// EnrichmentSource fetches the dependent values for a driver value. The
// returned map is keyed by form field name.
type EnrichmentSource interface {
	Fetch(ctx context.Context, driverValue string) (map[string]any, error)
}

// SourceFunc adapts a function to the EnrichmentSource interface.
type SourceFunc func(ctx context.Context, driverValue string) (map[string]any, error)

func (f SourceFunc) Fetch(ctx context.Context, driverValue string) (map[string]any, error) {
	return f(ctx, driverValue)
}

// Invalidator is notified when a driver change makes previously displayed
// results stale. The submission guard satisfies it.
type Invalidator interface {
	Invalidate()
}

// token is the resolution request issued for one driver change. Its result
// applies if and only if the sequence number is still the group's latest and
// the driver value is unchanged.
type token struct {
	id          string
	group       string
	seq         uint64
	driverValue string
}

type groupState struct {
	source      EnrichmentSource
	seq         uint64
	driverValue string
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithLogger attaches a structured logger used for staleness discards and
// fetch warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithInvalidator wires the hook that clears displayed results whenever a
// driver field changes.
func WithInvalidator(inv Invalidator) Option {
	return func(r *Resolver) {
		r.invalidator = inv
	}
}

// WithWarnFunc registers a non-blocking warning callback invoked when an
// enrichment fetch fails. The form stays usable; the user can still enter
// values manually.
func WithWarnFunc(fn func(group string, err error)) Option {
	return func(r *Resolver) {
		r.warn = fn
	}
}

// WithAppliedFunc registers a callback invoked after every resolution
// attempt; applied reports whether the result reached form state.
func WithAppliedFunc(fn func(group string, applied bool)) Option {
	return func(r *Resolver) {
		r.applied = fn
	}
}

// Resolver owns the resolution tokens for one form instance. It mutates the
// form state only from resolution completions that pass the staleness check.
type Resolver struct {
	state       *form.State
	logger      *zap.Logger
	invalidator Invalidator
	warn        func(group string, err error)
	applied     func(group string, applied bool)

	mu     sync.Mutex
	groups map[string]*groupState
	wg     sync.WaitGroup
}

// New constructs a Resolver bound to a single form state.
func New(state *form.State, options ...Option) *Resolver {
	r := &Resolver{
		state:  state,
		logger: zap.NewNop(),
		groups: make(map[string]*groupState),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

// Register binds an enrichment source to a dependency group. Driver fields
// name their group in the form model.
func (r *Resolver) Register(group string, source EnrichmentSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.groups[group]; ok {
		state.source = source
		return
	}
	r.groups[group] = &groupState{source: source}
}

// OnDriverChange records the new driver value, invalidates displayed results,
// and issues the enrichment fetch asynchronously. An empty value issues no
// fetch but still supersedes any outstanding request for the group.
func (r *Resolver) OnDriverChange(ctx context.Context, group, newValue string) {
	newValue = strings.TrimSpace(newValue)

	r.mu.Lock()
	state, ok := r.groups[group]
	if !ok {
		state = &groupState{}
		r.groups[group] = state
	}
	state.seq++
	state.driverValue = newValue
	tok := token{
		id:          uuid.NewString(),
		group:       group,
		seq:         state.seq,
		driverValue: newValue,
	}
	source := state.source
	r.mu.Unlock()

	if r.invalidator != nil {
		r.invalidator.Invalidate()
	}

	if newValue == "" || source == nil {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		values, err := source.Fetch(ctx, tok.driverValue)
		r.complete(tok, values, err)
	}()
}

// Flush blocks until every outstanding resolution has completed. Tests and
// shutdown paths use it; interactive callers never need to.
func (r *Resolver) Flush() {
	r.wg.Wait()
}

func (r *Resolver) complete(tok token, values map[string]any, err error) {
	r.mu.Lock()
	state, ok := r.groups[tok.group]
	stale := !ok || state.seq != tok.seq || state.driverValue != tok.driverValue
	if !stale && err == nil {
		// Merge runs exactly once per resolution, under the same lock that
		// guards the staleness check.
		r.state.Merge(values)
	}
	r.mu.Unlock()

	switch {
	case stale:
		// Correct outcome of the staleness guard, never surfaced to the user.
		r.logger.Debug("discarded stale resolution",
			zap.String("group", tok.group),
			zap.String("token", tok.id),
			zap.Uint64("seq", tok.seq))
		r.notifyApplied(tok.group, false)
	case err != nil:
		r.logger.Warn("enrichment fetch failed",
			zap.String("group", tok.group),
			zap.String("token", tok.id),
			zap.Error(err))
		if r.warn != nil {
			r.warn(tok.group, err)
		}
		r.notifyApplied(tok.group, false)
	default:
		r.notifyApplied(tok.group, true)
	}
}

func (r *Resolver) notifyApplied(group string, applied bool) {
	if r.applied != nil {
		r.applied(group, applied)
	}
}
