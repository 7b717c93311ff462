// Package irrigation is the irrigation planning flow: crop, soil type, field
// size and method in, a watering schedule out. There is no dependent-field
// enrichment here; the form is static.
package irrigation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/goliatone/go-advisory/internal/contracts"
	"github.com/goliatone/go-advisory/pkg/contract"
	"github.com/goliatone/go-advisory/pkg/form"
	"github.com/goliatone/go-advisory/pkg/remote"
	"github.com/goliatone/go-advisory/pkg/render"
)

// OperationID names the planning operation in the service contract.
const OperationID = "planIrrigation"

var validate = validator.New()

type Options struct {
	PlanPath string
	Policy   *bluemonday.Policy
	Logger   *zap.Logger
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{PlanPath: "/irrigation-plan"}
}

func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn(&opts)
	}
	if opts.PlanPath == "" {
		opts.PlanPath = "/irrigation-plan"
	}
	if opts.Policy == nil {
		opts.Policy = bluemonday.StrictPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return opts
}

func WithPlanPath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.PlanPath = path
	}
}

func WithPolicy(policy *bluemonday.Policy) OptionFn {
	return func(o *Options) {
		if o == nil || policy == nil {
			return
		}
		o.Policy = policy
	}
}

func WithLogger(logger *zap.Logger) OptionFn {
	return func(o *Options) {
		if o == nil || logger == nil {
			return
		}
		o.Logger = logger
	}
}

// Plan is a watering schedule. Notes arrive as free text from the planner and
// are sanitised before they are stored.
type Plan struct {
	Frequency   string `json:"frequency"`
	WaterAmount string `json:"waterAmount"`
	Notes       string `json:"notes"`
}

// PanelItems projects the plan for the HTML panel fragment.
func (p Plan) PanelItems() []render.PanelItem {
	items := []render.PanelItem{
		{Label: "Frequency", Value: p.Frequency},
		{Label: "Water per session", Value: p.WaterAmount},
	}
	if p.Notes != "" {
		items = append(items, render.PanelItem{Label: "Notes", Value: p.Notes, Tone: "info"})
	}
	return items
}

// Planner owns the static irrigation form and talks to the planning service.
type Planner struct {
	client remote.Client
	opts   Options

	model form.Model
	state *form.State
}

// New builds a planner against the given backend client.
func New(client remote.Client, fns ...OptionFn) (*Planner, error) {
	if client == nil {
		return nil, errors.New("irrigation: client is required")
	}
	opts := NewOptions(fns...)

	model, err := contract.BuildModel(context.Background(), contracts.Irrigation(), OperationID)
	if err != nil {
		return nil, fmt.Errorf("irrigation: build model: %w", err)
	}
	ui, err := contract.LoadUIConfig(contracts.UIConfig())
	if err != nil {
		return nil, fmt.Errorf("irrigation: load ui config: %w", err)
	}
	ui.Decorate(&model)

	return &Planner{
		client: client,
		opts:   opts,
		model:  model,
		state:  form.NewState(model),
	}, nil
}

// Model returns the decorated form model.
func (p *Planner) Model() form.Model { return p.model }

// State returns the canonical form state.
func (p *Planner) State() *form.State { return p.state }

// Set records a field value.
func (p *Planner) Set(name string, value any) {
	p.state.Set(name, value)
}

type planRequest struct {
	CropType         string  `json:"cropType" validate:"required"`
	SoilType         string  `json:"soilType" validate:"required,oneof=Clay Loam Sandy"`
	FieldSize        float64 `json:"fieldSize" validate:"gt=0"`
	IrrigationMethod string  `json:"irrigationMethod" validate:"required,oneof=Drip Sprinkler Flood"`
}

// request builds and validates the plan request from the current form state.
func (p *Planner) request() (planRequest, error) {
	snapshot := p.state.Snapshot()
	if issues := form.Validate(p.model, snapshot); issues != nil {
		return planRequest{}, fmt.Errorf("irrigation: %s", issuesText(issues))
	}

	size, err := p.state.GetNumber("fieldSize")
	if err != nil {
		return planRequest{}, fmt.Errorf("irrigation: field size: %w", err)
	}
	req := planRequest{
		CropType:         p.state.GetString("cropType"),
		SoilType:         p.state.GetString("soilType"),
		FieldSize:        size,
		IrrigationMethod: p.state.GetString("irrigationMethod"),
	}
	if err := validate.Struct(req); err != nil {
		return planRequest{}, fmt.Errorf("irrigation: plan request: %w", err)
	}
	return req, nil
}

// Plan validates the form and requests a watering schedule. The request is
// synchronous; the planner has no auto-fill or intermediate state to guard.
func (p *Planner) Plan(ctx context.Context) (Plan, error) {
	req, err := p.request()
	if err != nil {
		return Plan{}, err
	}

	raw, err := p.client.Do(ctx, remote.Request{
		Method: http.MethodPost,
		Path:   p.opts.PlanPath,
		Body:   req,
	})
	if err != nil {
		return Plan{}, fmt.Errorf("irrigation: plan: %w", err)
	}

	var plan Plan
	shape := remote.Shape{Keys: []remote.Key{
		{Name: "frequency", Kind: remote.KindString, Required: true},
		{Name: "waterAmount", Kind: remote.KindString, Required: true},
		{Name: "notes", Kind: remote.KindString},
	}}
	if err := remote.DecodeInto(raw, shape, &plan); err != nil {
		return Plan{}, fmt.Errorf("irrigation: decode plan: %w", err)
	}
	plan.Notes = strings.TrimSpace(p.opts.Policy.Sanitize(plan.Notes))
	return plan, nil
}

func issuesText(issues form.Issues) string {
	parts := make([]string, 0, len(issues))
	for field, messages := range issues {
		parts = append(parts, field+": "+strings.Join(messages, "; "))
	}
	return strings.Join(parts, ", ")
}
