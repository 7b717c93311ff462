// Package workflow drives strictly sequential, server-directed flows such as
// the OTP login. The client never computes the next stage on its own: each
// stage submission's response names the transition.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-advisory/pkg/form"
)

// Stage names one step of a flow.
type Stage string

// StageSpec declares a stage and the form fields it owns. Fields entered in
// one stage remain in the shared state across transitions.
type StageSpec struct {
	Name   Stage
	Fields []string
}

// DecisionKind tags a server transition signal.
type DecisionKind string

const (
	// DecisionAdvance moves to the stage named in Next, keeping entered
	// fields.
	DecisionAdvance DecisionKind = "advance"
	// DecisionComplete terminates the flow and emits the session payload.
	DecisionComplete DecisionKind = "complete"
	// DecisionReject keeps the current stage and surfaces Message; the user
	// may retry.
	DecisionReject DecisionKind = "reject"
)

// Decision is the server's verdict on a stage submission.
type Decision struct {
	Kind    DecisionKind
	Next    Stage
	Message string
	Payload map[string]any
}

// StageSubmitter posts one stage's field subset and maps the response into a
// Decision. Transport failures are returned as errors, not decisions.
type StageSubmitter interface {
	SubmitStage(ctx context.Context, stage Stage, values map[string]any) (Decision, error)
}

// Status is the machine's lifecycle state.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

var (
	// ErrTerminal is returned when an operation is attempted on a finished
	// flow.
	ErrTerminal = errors.New("workflow: flow already terminated")
	// ErrSuperseded is returned when a submission resolved after the user
	// navigated away from the stage that issued it.
	ErrSuperseded = errors.New("workflow: submission superseded")
)

// Option customises a Machine.
type Option func(*Machine)

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithCompleteFunc registers the callback receiving the terminal session
// payload. It is invoked exactly once per completed flow.
func WithCompleteFunc(fn func(payload map[string]any)) Option {
	return func(m *Machine) {
		m.onComplete = fn
	}
}

// Machine advances an ordered set of named stages. All field values live in
// one shared form state so later stages (and retries) see earlier input.
type Machine struct {
	stages    []StageSpec
	state     *form.State
	submitter StageSubmitter
	logger    *zap.Logger

	onComplete func(payload map[string]any)

	mu         sync.Mutex
	current    int
	status     Status
	rejection  string
	generation uint64
}

// New constructs a Machine starting at the first declared stage.
func New(stages []StageSpec, state *form.State, submitter StageSubmitter, options ...Option) (*Machine, error) {
	if len(stages) == 0 {
		return nil, errors.New("workflow: at least one stage is required")
	}
	if state == nil {
		return nil, errors.New("workflow: state is required")
	}
	if submitter == nil {
		return nil, errors.New("workflow: submitter is required")
	}
	m := &Machine{
		stages:    stages,
		state:     state,
		submitter: submitter,
		logger:    zap.NewNop(),
		status:    StatusRunning,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(m)
	}
	return m, nil
}

// Current returns the active stage name.
func (m *Machine) Current() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stages[m.current].Name
}

// Status returns the machine's lifecycle state.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Rejection returns the last server rejection message for the active stage,
// cleared on any successful transition.
func (m *Machine) Rejection() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejection
}

// State exposes the shared form state for field entry.
func (m *Machine) State() *form.State { return m.state }

// Submit posts the current stage's fields and applies the server's decision.
// A transport failure leaves the stage unchanged and returns the error; the
// caller may retry. A decision that resolves after Back() superseded the
// submission is discarded and reported as ErrSuperseded.
func (m *Machine) Submit(ctx context.Context) error {
	m.mu.Lock()
	if m.status != StatusRunning {
		m.mu.Unlock()
		return ErrTerminal
	}
	stage := m.stages[m.current]
	gen := m.generation
	values := make(map[string]any, len(stage.Fields))
	for _, name := range stage.Fields {
		if value, ok := m.state.Get(name); ok {
			values[name] = value
		}
	}
	m.mu.Unlock()

	decision, err := m.submitter.SubmitStage(ctx, stage.Name, values)
	if err != nil {
		// stage unchanged, retryable
		m.logger.Warn("stage submission failed",
			zap.String("stage", string(stage.Name)),
			zap.Error(err))
		return fmt.Errorf("workflow: submit stage %s: %w", stage.Name, err)
	}

	return m.apply(stage.Name, gen, decision)
}

// Back returns to the first stage. It is permitted only while the flow is
// running and supersedes any in-flight submission.
func (m *Machine) Back() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusRunning {
		return ErrTerminal
	}
	m.generation++
	m.current = 0
	m.rejection = ""
	return nil
}

func (m *Machine) apply(from Stage, gen uint64, decision Decision) error {
	m.mu.Lock()
	if m.status != StatusRunning || gen != m.generation {
		m.mu.Unlock()
		m.logger.Debug("discarded superseded stage decision", zap.String("stage", string(from)))
		return ErrSuperseded
	}

	switch decision.Kind {
	case DecisionAdvance:
		idx := m.stageIndex(decision.Next)
		if idx < 0 {
			m.mu.Unlock()
			return fmt.Errorf("workflow: server named unknown stage %q", decision.Next)
		}
		m.generation++
		m.current = idx
		m.rejection = ""
		m.mu.Unlock()
		return nil

	case DecisionComplete:
		m.generation++
		m.status = StatusComplete
		m.rejection = ""
		payload := decision.Payload
		m.mu.Unlock()
		if m.onComplete != nil {
			m.onComplete(payload)
		}
		return nil

	case DecisionReject:
		m.rejection = decision.Message
		m.mu.Unlock()
		return nil

	default:
		m.mu.Unlock()
		return fmt.Errorf("workflow: unknown decision kind %q", decision.Kind)
	}
}

func (m *Machine) stageIndex(name Stage) int {
	for i, spec := range m.stages {
		if spec.Name == name {
			return i
		}
	}
	return -1
}
