// Package weather is the read-only forecast and alert feed for a coordinate:
// current conditions, a short daily projection with WMO weather-code
// descriptions, and severity-tagged agricultural alerts.
package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/goliatone/go-advisory/pkg/remote"
	"github.com/goliatone/go-advisory/pkg/render"
)

type Options struct {
	ForecastPath string
	AlertsPath   string
	Days         int
	Policy       *bluemonday.Policy
	Logger       *zap.Logger
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{
		ForecastPath: "/weather",
		AlertsPath:   "/get_alerts",
		Days:         5,
	}
}

func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn(&opts)
	}
	if opts.ForecastPath == "" {
		opts.ForecastPath = "/weather"
	}
	if opts.AlertsPath == "" {
		opts.AlertsPath = "/get_alerts"
	}
	if opts.Days <= 0 {
		opts.Days = 5
	}
	if opts.Policy == nil {
		opts.Policy = bluemonday.StrictPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return opts
}

func WithForecastPath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.ForecastPath = path
	}
}

func WithAlertsPath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.AlertsPath = path
	}
}

func WithDays(days int) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Days = days
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

// Current is the present reading at the requested coordinate.
type Current struct {
	Temperature float64
	WeatherCode int
	Condition   string
}

// Day is one projected day.
type Day struct {
	Date        string
	WeatherCode int
	Condition   string
	MaxTemp     float64
	MinTemp     float64
}

// Forecast is the full response of the forecast service, with weather codes
// already mapped to display conditions.
type Forecast struct {
	Current Current
	Daily   []Day
	Advice  string
}

// PanelItems projects the forecast for the HTML panel fragment.
func (f Forecast) PanelItems() []render.PanelItem {
	items := []render.PanelItem{
		{Label: "Now", Value: fmt.Sprintf("%.1f °C, %s", f.Current.Temperature, f.Current.Condition)},
	}
	for _, day := range f.Daily {
		items = append(items, render.PanelItem{
			Label: day.Date,
			Value: fmt.Sprintf("%s, %.0f–%.0f °C", day.Condition, day.MinTemp, day.MaxTemp),
		})
	}
	if f.Advice != "" {
		items = append(items, render.PanelItem{Label: "Advice", Value: f.Advice, Tone: "info"})
	}
	return items
}

// Severity tags an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Alert is one entry of the alert feed.
type Alert struct {
	Severity Severity
	Title    string
	Message  string
}

// Feed talks to the forecast and alert services for one dashboard.
type Feed struct {
	client remote.Client
	opts   Options
	logger *zap.Logger
}

// New builds a feed against the given backend client.
func New(client remote.Client, fns ...OptionFn) (*Feed, error) {
	if client == nil {
		return nil, errors.New("weather: client is required")
	}
	opts := NewOptions(fns...)
	return &Feed{client: client, opts: opts, logger: opts.Logger}, nil
}

type forecastPayload struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
	Daily struct {
		Time        []string  `json:"time"`
		WeatherCode []int     `json:"weather_code"`
		MaxTemp     []float64 `json:"temperature_2m_max"`
		MinTemp     []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
	Advice string `json:"agricultural_advice"`
}

// Forecast fetches current conditions and the daily projection.
func (f *Feed) Forecast(ctx context.Context, lat, lon float64) (Forecast, error) {
	raw, err := f.client.Do(ctx, remote.Request{
		Method: http.MethodGet,
		Path:   f.opts.ForecastPath,
		Query:  coordQuery(lat, lon),
	})
	if err != nil {
		return Forecast{}, fmt.Errorf("weather: forecast: %w", err)
	}

	var payload forecastPayload
	shape := remote.Shape{Keys: []remote.Key{
		{Name: "current", Kind: remote.KindObject, Required: true},
		{Name: "daily", Kind: remote.KindObject, Required: true},
	}}
	if err := remote.DecodeInto(raw, shape, &payload); err != nil {
		return Forecast{}, fmt.Errorf("weather: decode forecast: %w", err)
	}

	forecast := Forecast{
		Current: Current{
			Temperature: payload.Current.Temperature,
			WeatherCode: payload.Current.WeatherCode,
			Condition:   Condition(payload.Current.WeatherCode),
		},
		Advice: strings.TrimSpace(f.opts.Policy.Sanitize(payload.Advice)),
	}

	days := len(payload.Daily.Time)
	if days > f.opts.Days {
		days = f.opts.Days
	}
	for i := 0; i < days; i++ {
		day := Day{Date: payload.Daily.Time[i]}
		if i < len(payload.Daily.WeatherCode) {
			day.WeatherCode = payload.Daily.WeatherCode[i]
			day.Condition = Condition(day.WeatherCode)
		}
		if i < len(payload.Daily.MaxTemp) {
			day.MaxTemp = payload.Daily.MaxTemp[i]
		}
		if i < len(payload.Daily.MinTemp) {
			day.MinTemp = payload.Daily.MinTemp[i]
		}
		forecast.Daily = append(forecast.Daily, day)
	}
	return forecast, nil
}

type alertsPayload struct {
	Alerts []struct {
		Type    string `json:"type"`
		Title   string `json:"title"`
		Message string `json:"message"`
	} `json:"alerts"`
}

// Alerts fetches the severity-tagged alert feed. Unknown severities degrade
// to info rather than dropping the alert.
func (f *Feed) Alerts(ctx context.Context, lat, lon float64) ([]Alert, error) {
	raw, err := f.client.Do(ctx, remote.Request{
		Method: http.MethodGet,
		Path:   f.opts.AlertsPath,
		Query:  coordQuery(lat, lon),
	})
	if err != nil {
		return nil, fmt.Errorf("weather: alerts: %w", err)
	}

	var payload alertsPayload
	shape := remote.Shape{Keys: []remote.Key{
		{Name: "alerts", Kind: remote.KindArray, Required: true},
	}}
	if err := remote.DecodeInto(raw, shape, &payload); err != nil {
		return nil, fmt.Errorf("weather: decode alerts: %w", err)
	}

	alerts := make([]Alert, 0, len(payload.Alerts))
	for _, entry := range payload.Alerts {
		severity := Severity(entry.Type)
		switch severity {
		case SeverityCritical, SeverityWarning, SeverityInfo:
		default:
			f.logger.Debug("weather: unknown alert severity", zap.String("type", entry.Type))
			severity = SeverityInfo
		}
		alerts = append(alerts, Alert{
			Severity: severity,
			Title:    strings.TrimSpace(f.opts.Policy.Sanitize(entry.Title)),
			Message:  strings.TrimSpace(f.opts.Policy.Sanitize(entry.Message)),
		})
	}
	return alerts, nil
}

func coordQuery(lat, lon float64) url.Values {
	return url.Values{
		"lat": []string{strconv.FormatFloat(lat, 'f', 4, 64)},
		"lon": []string{strconv.FormatFloat(lon, 'f', 4, 64)},
	}
}

// Condition maps a WMO weather code to a display condition.
func Condition(code int) string {
	switch {
	case code == 0:
		return "Clear sky"
	case code <= 2:
		return "Partly cloudy"
	case code == 3:
		return "Overcast"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 57:
		return "Drizzle"
	case code >= 61 && code <= 67:
		return "Rain"
	case code >= 71 && code <= 77:
		return "Snow"
	case code >= 80 && code <= 82:
		return "Rain showers"
	case code == 85 || code == 86:
		return "Snow showers"
	case code >= 95:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}
