// Package fertilizer is the fertilizer recommendation flow: the farmer picks
// a district and crop, district averages auto-fill the soil readings, and a
// prediction returns the top ranked fertilizers with probabilities.
package fertilizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/goliatone/go-advisory/internal/contracts"
	"github.com/goliatone/go-advisory/pkg/contract"
	"github.com/goliatone/go-advisory/pkg/form"
	"github.com/goliatone/go-advisory/pkg/ranking"
	"github.com/goliatone/go-advisory/pkg/remote"
	"github.com/goliatone/go-advisory/pkg/resolver"
	"github.com/goliatone/go-advisory/pkg/submit"
)

const (
	// OperationID names the prediction operation in the service contract.
	OperationID = "predictFertilizer"

	driverField = "district"
	driverGroup = "environmental"
)

var validate = validator.New()

// OptionLists are the dropdown values the recommendation model was trained
// on.
type OptionLists struct {
	Districts []string `json:"districts"`
	Crops     []string `json:"crops"`
}

// Flow owns one fertilizer form instance: model, state, dependency resolver
// and submission guard.
type Flow struct {
	client remote.Client
	opts   Options
	logger *zap.Logger

	model    form.Model
	state    *form.State
	resolver *resolver.Resolver
	guard    *submit.Guard
}

// New builds a flow against the given backend client.
func New(client remote.Client, fns ...OptionFn) (*Flow, error) {
	if client == nil {
		return nil, errors.New("fertilizer: client is required")
	}
	opts := NewOptions(fns...)

	model, err := contract.BuildModel(context.Background(), contracts.Fertilizer(), OperationID)
	if err != nil {
		return nil, fmt.Errorf("fertilizer: build model: %w", err)
	}
	ui, err := contract.LoadUIConfig(contracts.UIConfig())
	if err != nil {
		return nil, fmt.Errorf("fertilizer: load ui config: %w", err)
	}
	ui.Decorate(&model)

	f := &Flow{
		client: client,
		opts:   opts,
		logger: opts.Logger,
		model:  model,
		state:  form.NewState(model),
	}
	f.guard = submit.New(model, submit.PredictorFunc(f.predict), submit.WithLogger(opts.Logger))
	f.resolver = resolver.New(f.state,
		resolver.WithLogger(opts.Logger),
		resolver.WithInvalidator(f.guard),
	)
	f.resolver.Register(driverGroup, resolver.SourceFunc(f.fetchEnvironment))
	return f, nil
}

// Model returns the decorated form model.
func (f *Flow) Model() form.Model { return f.model }

// State returns the canonical form state.
func (f *Flow) State() *form.State { return f.state }

// FetchOptions loads the district and crop lists and attaches them to the
// corresponding form fields as dropdown choices.
func (f *Flow) FetchOptions(ctx context.Context) (OptionLists, error) {
	raw, err := f.client.Do(ctx, remote.Request{Method: http.MethodGet, Path: f.opts.OptionsPath})
	if err != nil {
		return OptionLists{}, fmt.Errorf("fertilizer: fetch options: %w", err)
	}

	var lists OptionLists
	shape := remote.Shape{Keys: []remote.Key{
		{Name: "districts", Kind: remote.KindArray, Required: true},
		{Name: "crops", Kind: remote.KindArray, Required: true},
	}}
	if err := remote.DecodeInto(raw, shape, &lists); err != nil {
		return OptionLists{}, fmt.Errorf("fertilizer: decode options: %w", err)
	}

	f.attachChoices("district", lists.Districts)
	f.attachChoices("crop", lists.Crops)
	return lists, nil
}

// SetDistrict records the district and triggers the environmental
// auto-fill. Earlier in-flight fills for a different district are discarded
// when they land.
func (f *Flow) SetDistrict(ctx context.Context, district string) {
	f.state.Set(driverField, district)
	f.resolver.OnDriverChange(ctx, driverGroup, district)
}

// Set records any non-driver field value.
func (f *Flow) Set(name string, value any) {
	f.state.Set(name, value)
}

// Submit validates the current values and, when they pass, issues the
// prediction. A second Submit supersedes an in-flight one.
func (f *Flow) Submit(ctx context.Context) error {
	return f.guard.Submit(ctx, f.state.Snapshot())
}

// Result reports the current submission state.
func (f *Flow) Result() submit.Result {
	return f.guard.Current()
}

// Flush waits for in-flight enrichment and prediction work. Intended for
// tests and orderly shutdown.
func (f *Flow) Flush() {
	f.resolver.Flush()
	f.guard.Flush()
}

func (f *Flow) attachChoices(name string, choices []string) {
	if len(choices) == 0 {
		return
	}
	for i := range f.model.Fields {
		if f.model.Fields[i].Name == name {
			f.model.Fields[i].Options = append([]string(nil), choices...)
			return
		}
	}
}

type environmentalRequest struct {
	District string `json:"district" validate:"required"`
}

type environmentalData struct {
	Nitrogen    float64 `json:"nitrogen"`
	Phosphorus  float64 `json:"phosphorus"`
	Potassium   float64 `json:"potassium"`
	PH          float64 `json:"ph"`
	Temperature float64 `json:"temperature"`
	Rainfall    float64 `json:"rainfall"`
	SoilColor   string  `json:"soil_color"`
}

func (f *Flow) fetchEnvironment(ctx context.Context, district string) (map[string]any, error) {
	req := environmentalRequest{District: district}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("fertilizer: environmental request: %w", err)
	}

	raw, err := f.client.Do(ctx, remote.Request{
		Method: http.MethodPost,
		Path:   f.opts.EnvironmentalPath,
		Body:   req,
	})
	if err != nil {
		return nil, fmt.Errorf("fertilizer: environmental data for %q: %w", district, err)
	}

	var data environmentalData
	shape := remote.Shape{Keys: []remote.Key{
		{Name: "nitrogen", Kind: remote.KindNumber, Required: true},
		{Name: "phosphorus", Kind: remote.KindNumber, Required: true},
		{Name: "potassium", Kind: remote.KindNumber, Required: true},
		{Name: "ph", Kind: remote.KindNumber, Required: true},
		{Name: "temperature", Kind: remote.KindNumber, Required: true},
		{Name: "rainfall", Kind: remote.KindNumber, Required: true},
		{Name: "soil_color", Kind: remote.KindString, Required: true},
	}}
	if err := remote.DecodeInto(raw, shape, &data); err != nil {
		return nil, fmt.Errorf("fertilizer: decode environmental data: %w", err)
	}

	return map[string]any{
		"nitrogen":    data.Nitrogen,
		"phosphorus":  data.Phosphorus,
		"potassium":   data.Potassium,
		"ph":          data.PH,
		"temperature": data.Temperature,
		"rainfall":    data.Rainfall,
		"soil_color":  data.SoilColor,
	}, nil
}

type predictRequest struct {
	District    string  `json:"district" validate:"required"`
	Crop        string  `json:"crop" validate:"required"`
	SoilColor   string  `json:"soil_color" validate:"required"`
	Nitrogen    float64 `json:"nitrogen" validate:"gte=0"`
	Phosphorus  float64 `json:"phosphorus" validate:"gte=0"`
	Potassium   float64 `json:"potassium" validate:"gte=0"`
	PH          float64 `json:"ph" validate:"gte=0,lte=14"`
	Temperature float64 `json:"temperature"`
	Rainfall    float64 `json:"rainfall" validate:"gte=0"`
}

func (f *Flow) predict(ctx context.Context, snapshot map[string]any) (ranking.List, error) {
	req := predictRequest{
		District:  stringAt(snapshot, "district"),
		Crop:      stringAt(snapshot, "crop"),
		SoilColor: stringAt(snapshot, "soil_color"),
	}
	req.Nitrogen = numberAt(snapshot, "nitrogen")
	req.Phosphorus = numberAt(snapshot, "phosphorus")
	req.Potassium = numberAt(snapshot, "potassium")
	req.PH = numberAt(snapshot, "ph")
	req.Temperature = numberAt(snapshot, "temperature")
	req.Rainfall = numberAt(snapshot, "rainfall")

	if err := validate.Struct(req); err != nil {
		return ranking.List{}, fmt.Errorf("fertilizer: predict request: %w", err)
	}

	raw, err := f.client.Do(ctx, remote.Request{
		Method: http.MethodPost,
		Path:   f.opts.PredictPath,
		Body:   req,
	})
	if err != nil {
		if remote.Rejected(err) {
			netErr, _ := remote.AsNetworkError(err)
			return ranking.List{}, submit.Rejection(f.model, netErr.Message, netErr.Body)
		}
		return ranking.List{}, err
	}

	var payload struct {
		Recommendations json.RawMessage `json:"recommendations"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ranking.List{}, fmt.Errorf("fertilizer: decode prediction: %w", err)
	}
	list, err := ranking.Parse(payload.Recommendations, "fertilizer", "probability", f.logger)
	if err != nil {
		return ranking.List{}, err
	}
	return truncate(list, f.opts.TopN)
}

func truncate(list ranking.List, n int) (ranking.List, error) {
	entries := list.Entries()
	if n <= 0 || len(entries) <= n {
		return list, nil
	}
	return ranking.New(entries[:n])
}

func stringAt(snapshot map[string]any, name string) string {
	if v, ok := snapshot[name].(string); ok {
		return v
	}
	return ""
}

func numberAt(snapshot map[string]any, name string) float64 {
	v, ok := snapshot[name]
	if !ok {
		return 0
	}
	n, err := form.Number(v)
	if err != nil {
		return 0
	}
	return n
}
