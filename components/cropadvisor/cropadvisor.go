// Package cropadvisor is the crop recommendation flow: the form opens with
// region-typical defaults, a device location can refine them, and a
// prediction returns the crops best suited to the field.
package cropadvisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

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
	OperationID = "predictCrop"

	locationGroup = "location"
)

var validate = validator.New()

// Coordinates is a device location fix.
type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Locator is an injected geolocation capability; the library never talks to
// the browser or the OS itself.
type Locator interface {
	Locate(ctx context.Context) (Coordinates, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context) (Coordinates, error)

func (f LocatorFunc) Locate(ctx context.Context) (Coordinates, error) { return f(ctx) }

// Flow owns one crop recommendation form instance.
type Flow struct {
	client  remote.Client
	locator Locator
	opts    Options
	logger  *zap.Logger

	model    form.Model
	state    *form.State
	resolver *resolver.Resolver
	guard    *submit.Guard
}

// New builds a flow against the given backend client. The locator may be nil;
// UseLocation then reports an error and the contract defaults stay in place.
func New(client remote.Client, locator Locator, fns ...OptionFn) (*Flow, error) {
	if client == nil {
		return nil, errors.New("cropadvisor: client is required")
	}
	opts := NewOptions(fns...)

	model, err := contract.BuildModel(context.Background(), contracts.Crop(), OperationID)
	if err != nil {
		return nil, fmt.Errorf("cropadvisor: build model: %w", err)
	}
	ui, err := contract.LoadUIConfig(contracts.UIConfig())
	if err != nil {
		return nil, fmt.Errorf("cropadvisor: load ui config: %w", err)
	}
	ui.Decorate(&model)

	f := &Flow{
		client:  client,
		locator: locator,
		opts:    opts,
		logger:  opts.Logger,
		model:   model,
		state:   form.NewState(model),
	}
	f.guard = submit.New(model, submit.PredictorFunc(f.predict), submit.WithLogger(opts.Logger))
	f.resolver = resolver.New(f.state,
		resolver.WithLogger(opts.Logger),
		resolver.WithInvalidator(f.guard),
	)
	f.resolver.Register(locationGroup, resolver.SourceFunc(f.fetchDefaults))
	return f, nil
}

// Model returns the decorated form model.
func (f *Flow) Model() form.Model { return f.model }

// State returns the canonical form state. It opens seeded with the contract
// defaults, so a prediction works before any location fix.
func (f *Flow) State() *form.State { return f.state }

// UseLocation obtains a location fix and refreshes the form defaults from it.
// The refresh is asynchronous; a newer fix supersedes an in-flight one.
func (f *Flow) UseLocation(ctx context.Context) (Coordinates, error) {
	if f.locator == nil {
		return Coordinates{}, errors.New("cropadvisor: no locator configured")
	}
	coords, err := f.locator.Locate(ctx)
	if err != nil {
		return Coordinates{}, fmt.Errorf("cropadvisor: locate: %w", err)
	}
	if err := validate.Struct(coords); err != nil {
		return Coordinates{}, fmt.Errorf("cropadvisor: location fix: %w", err)
	}
	f.resolver.OnDriverChange(ctx, locationGroup, encodeCoords(coords))
	return coords, nil
}

// Set records a manually entered field value.
func (f *Flow) Set(name string, value any) {
	f.state.Set(name, value)
}

// Submit validates the current values and issues the prediction.
func (f *Flow) Submit(ctx context.Context) error {
	return f.guard.Submit(ctx, f.state.Snapshot())
}

// Result reports the current submission state.
func (f *Flow) Result() submit.Result {
	return f.guard.Current()
}

// Flush waits for in-flight enrichment and prediction work.
func (f *Flow) Flush() {
	f.resolver.Flush()
	f.guard.Flush()
}

func encodeCoords(c Coordinates) string {
	return strconv.FormatFloat(c.Latitude, 'f', 6, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', 6, 64)
}

func decodeCoords(s string) (Coordinates, error) {
	var c Coordinates
	if _, err := fmt.Sscanf(s, "%f,%f", &c.Latitude, &c.Longitude); err != nil {
		return Coordinates{}, fmt.Errorf("cropadvisor: malformed coordinate token %q: %w", s, err)
	}
	return c, nil
}

func (f *Flow) fetchDefaults(ctx context.Context, driverValue string) (map[string]any, error) {
	coords, err := decodeCoords(driverValue)
	if err != nil {
		return nil, err
	}

	raw, err := f.client.Do(ctx, remote.Request{
		Method: http.MethodPost,
		Path:   f.opts.DefaultsPath,
		Body:   coords,
	})
	if err != nil {
		return nil, fmt.Errorf("cropadvisor: defaults for %s: %w", driverValue, err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("cropadvisor: decode defaults: %w", err)
	}

	// Only form fields present in the model are applied; anything else in
	// the payload is dropped.
	values := make(map[string]any, len(payload))
	for name, value := range payload {
		if _, ok := f.model.FieldByName(name); ok {
			values[name] = value
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("cropadvisor: defaults payload carries no known fields")
	}
	return values, nil
}

type predictRequest struct {
	Nitrogen    float64 `json:"Nitrogen" validate:"gte=0"`
	Phosphorus  float64 `json:"Phosphorus" validate:"gte=0"`
	Potassium   float64 `json:"Potassium" validate:"gte=0"`
	PH          float64 `json:"pH" validate:"gte=0,lte=14"`
	Rainfall    float64 `json:"Rainfall" validate:"gte=0"`
	Temperature float64 `json:"Temperature"`
	SoilColor   string  `json:"Soil_color" validate:"required"`
}

func (f *Flow) predict(ctx context.Context, snapshot map[string]any) (ranking.List, error) {
	req := predictRequest{
		SoilColor: stringAt(snapshot, "Soil_color"),
	}
	req.Nitrogen = numberAt(snapshot, "Nitrogen")
	req.Phosphorus = numberAt(snapshot, "Phosphorus")
	req.Potassium = numberAt(snapshot, "Potassium")
	req.PH = numberAt(snapshot, "pH")
	req.Rainfall = numberAt(snapshot, "Rainfall")
	req.Temperature = numberAt(snapshot, "Temperature")

	if err := validate.Struct(req); err != nil {
		return ranking.List{}, fmt.Errorf("cropadvisor: predict request: %w", err)
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
		return ranking.List{}, fmt.Errorf("cropadvisor: decode prediction: %w", err)
	}
	list, err := ranking.Parse(payload.Recommendations, "crop", "probability", f.logger)
	if err != nil {
		return ranking.List{}, err
	}

	entries := list.Entries()
	if f.opts.TopN > 0 && len(entries) > f.opts.TopN {
		return ranking.New(entries[:f.opts.TopN])
	}
	return list, nil
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
