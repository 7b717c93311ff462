// Package submit serializes the "submit for prediction" action: at most one
// in-flight submission per form, stale results are cleared before a new one
// is issued, and responses that arrive for a superseded submission are
// discarded.
package submit

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-advisory/pkg/form"
	"github.com/goliatone/go-advisory/pkg/ranking"
)

// Predictor issues the prediction fetch for a form snapshot. Implementations
// return *remote.NetworkError for transport failures and *ServerRejected for
// domain-level rejections.
type Predictor interface {
	Predict(ctx context.Context, snapshot map[string]any) (ranking.List, error)
}

// PredictorFunc adapts a function to the Predictor interface.
type PredictorFunc func(ctx context.Context, snapshot map[string]any) (ranking.List, error)

func (f PredictorFunc) Predict(ctx context.Context, snapshot map[string]any) (ranking.List, error) {
	return f(ctx, snapshot)
}

// Option customises a Guard.
type Option func(*Guard)

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithResultFunc registers a callback invoked with every observable Result
// transition. Discarded stale responses produce no callback.
func WithResultFunc(fn func(Result)) Option {
	return func(g *Guard) {
		g.onResult = fn
	}
}

// Guard owns the SubmissionResult of one form instance.
//
// Concurrency policy: cancel-and-replace. A new Submit supersedes the one in
// flight; the superseded response is discarded when it arrives, so at most
// one Pending→terminal transition is observable per submission generation.
type Guard struct {
	model     form.Model
	predictor Predictor
	logger    *zap.Logger
	onResult  func(Result)

	mu         sync.Mutex
	generation uint64
	current    Result
	wg         sync.WaitGroup
}

// New constructs a Guard for the given model.
func New(model form.Model, predictor Predictor, options ...Option) *Guard {
	g := &Guard{
		model:     model,
		predictor: predictor,
		logger:    zap.NewNop(),
		current:   Result{Status: StatusIdle},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(g)
	}
	return g
}

// Submit validates the snapshot and, when valid, issues the prediction fetch.
// A *ValidationError is returned synchronously without any network call. The
// prior result is cleared to Pending before the fetch resolves.
func (g *Guard) Submit(ctx context.Context, snapshot map[string]any) error {
	if issues := form.Validate(g.model, snapshot); issues != nil {
		return &ValidationError{Issues: issues}
	}

	g.mu.Lock()
	g.generation++
	gen := g.generation
	g.current = Result{Status: StatusPending}
	g.mu.Unlock()
	g.notify(Result{Status: StatusPending})

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		list, err := g.predictor.Predict(ctx, snapshot)
		g.complete(gen, list, err)
	}()
	return nil
}

// Invalidate clears the current result and supersedes any in-flight
// submission. The resolver calls it on every driver-field change so stale
// recommendations never linger after inputs change.
func (g *Guard) Invalidate() {
	g.mu.Lock()
	g.generation++
	g.current = Result{Status: StatusIdle}
	g.mu.Unlock()
	g.notify(Result{Status: StatusIdle})
}

// Current returns the result of the latest submission generation.
func (g *Guard) Current() Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Flush blocks until in-flight submissions have completed or been discarded.
func (g *Guard) Flush() {
	g.wg.Wait()
}

func (g *Guard) complete(gen uint64, list ranking.List, err error) {
	g.mu.Lock()
	if gen != g.generation {
		g.mu.Unlock()
		// The form moved on while this submission was in flight. Discarding
		// is the correct outcome, not a failure.
		g.logger.Debug("discarded stale submission result", zap.Uint64("generation", gen))
		return
	}
	var result Result
	if err != nil {
		result = Result{Status: StatusFailure, Err: err}
	} else {
		result = Result{Status: StatusSuccess, List: list}
	}
	g.current = result
	g.mu.Unlock()

	if err != nil {
		g.logger.Warn("submission failed", zap.Error(err))
	}
	g.notify(result)
}

func (g *Guard) notify(result Result) {
	if g.onResult != nil {
		g.onResult(result)
	}
}
