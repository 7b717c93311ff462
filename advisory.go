// Package advisory assembles the agricultural advisory dashboard: the crop,
// fertilizer and irrigation forms, the OTP login flow, the weather feed and
// the chat bot, each talking to its own backend service. The root facade
// wires shared concerns (HTTP client, logging, sessions, theming) so callers
// construct one Dashboard and use the flows directly.
package advisory

import (
	"fmt"
	"net/http"

	theme "github.com/goliatone/go-theme"
	"go.uber.org/zap"

	"github.com/goliatone/go-advisory/components/agribot"
	"github.com/goliatone/go-advisory/components/authflow"
	"github.com/goliatone/go-advisory/components/cropadvisor"
	"github.com/goliatone/go-advisory/components/fertilizer"
	"github.com/goliatone/go-advisory/components/irrigation"
	"github.com/goliatone/go-advisory/components/weather"
	"github.com/goliatone/go-advisory/pkg/ranking"
	"github.com/goliatone/go-advisory/pkg/remote"
	"github.com/goliatone/go-advisory/pkg/render"
	"github.com/goliatone/go-advisory/pkg/session"
)

// Backends holds the base URL of each advisory service. A zero value for a
// service disables that part of the dashboard.
type Backends struct {
	Fertilizer string
	Crop       string
	Irrigation string
	Auth       string
	Weather    string
	Chat       string
}

// Option configures the dashboard assembly.
type Option func(*config)

type config struct {
	backends   Backends
	httpClient *http.Client
	locator    cropadvisor.Locator
	source     session.Source
	theme      *theme.RendererConfig
	logger     *zap.Logger
}

// WithBackends sets the per-service base URLs.
func WithBackends(b Backends) Option {
	return func(c *config) {
		c.backends = b
	}
}

// WithBaseURL points every service at one host, the common single-backend
// deployment.
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.backends = Backends{
			Fertilizer: baseURL,
			Crop:       baseURL,
			Irrigation: baseURL,
			Auth:       baseURL,
			Weather:    baseURL,
			Chat:       baseURL,
		}
	}
}

// WithHTTPClient shares one *http.Client across all service clients.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// WithLocator injects the geolocation capability used by the crop advisor.
func WithLocator(locator cropadvisor.Locator) Option {
	return func(c *config) {
		c.locator = locator
	}
}

// WithSessionSource injects the persistence behind the session store.
func WithSessionSource(source session.Source) Option {
	return func(c *config) {
		c.source = source
	}
}

// WithTheme applies a go-theme renderer configuration to HTML output.
func WithTheme(cfg *theme.RendererConfig) Option {
	return func(c *config) {
		c.theme = cfg
	}
}

// WithLogger attaches a structured logger shared by every flow.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Dashboard is the assembled advisory front-end state. Fields for disabled
// services are nil.
type Dashboard struct {
	Fertilizer *fertilizer.Flow
	Crop       *cropadvisor.Flow
	Irrigation *irrigation.Planner
	Login      *authflow.Flow
	Weather    *weather.Feed
	Chat       *agribot.Bot

	Sessions *session.Store
	Renderer *render.Renderer
}

// New assembles a dashboard. At least one backend must be configured.
func New(options ...Option) (*Dashboard, error) {
	cfg := config{logger: zap.NewNop()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	if cfg.backends == (Backends{}) {
		return nil, fmt.Errorf("advisory: no backends configured")
	}

	renderer, err := render.New(render.WithTheme(cfg.theme), render.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("advisory: configure renderer: %w", err)
	}

	d := &Dashboard{
		Sessions: session.NewStore(cfg.source),
		Renderer: renderer,
	}

	client := func(baseURL string) (*remote.HTTPClient, error) {
		opts := []remote.Option{remote.WithLogger(cfg.logger)}
		if cfg.httpClient != nil {
			opts = append(opts, remote.WithHTTPClient(cfg.httpClient))
		}
		return remote.New(baseURL, opts...)
	}

	if cfg.backends.Fertilizer != "" {
		rc, err := client(cfg.backends.Fertilizer)
		if err != nil {
			return nil, fmt.Errorf("advisory: fertilizer client: %w", err)
		}
		d.Fertilizer, err = fertilizer.New(rc, fertilizer.WithLogger(cfg.logger))
		if err != nil {
			return nil, err
		}
	}
	if cfg.backends.Crop != "" {
		rc, err := client(cfg.backends.Crop)
		if err != nil {
			return nil, fmt.Errorf("advisory: crop client: %w", err)
		}
		d.Crop, err = cropadvisor.New(rc, cfg.locator, cropadvisor.WithLogger(cfg.logger))
		if err != nil {
			return nil, err
		}
	}
	if cfg.backends.Irrigation != "" {
		rc, err := client(cfg.backends.Irrigation)
		if err != nil {
			return nil, fmt.Errorf("advisory: irrigation client: %w", err)
		}
		d.Irrigation, err = irrigation.New(rc, irrigation.WithLogger(cfg.logger))
		if err != nil {
			return nil, err
		}
	}
	if cfg.backends.Auth != "" {
		rc, err := client(cfg.backends.Auth)
		if err != nil {
			return nil, fmt.Errorf("advisory: auth client: %w", err)
		}
		d.Login, err = authflow.New(rc,
			authflow.WithLogger(cfg.logger),
			authflow.WithSessionStore(d.Sessions),
		)
		if err != nil {
			return nil, err
		}
	}
	if cfg.backends.Weather != "" {
		rc, err := client(cfg.backends.Weather)
		if err != nil {
			return nil, fmt.Errorf("advisory: weather client: %w", err)
		}
		d.Weather, err = weather.New(rc, weather.WithLogger(cfg.logger))
		if err != nil {
			return nil, err
		}
	}
	if cfg.backends.Chat != "" {
		rc, err := client(cfg.backends.Chat)
		if err != nil {
			return nil, fmt.Errorf("advisory: chat client: %w", err)
		}
		d.Chat, err = agribot.New(rc, agribot.WithLogger(cfg.logger))
		if err != nil {
			return nil, err
		}
	}

	return d, nil
}

// RenderRanked renders a ranked recommendation list as a themed HTML
// fragment.
func (d *Dashboard) RenderRanked(title string, list ranking.List) ([]byte, error) {
	return d.Renderer.RankedList(title, list)
}

// RenderPanel renders labelled readings, such as a forecast or an irrigation
// plan, as a themed HTML fragment.
func (d *Dashboard) RenderPanel(title string, items []render.PanelItem) ([]byte, error) {
	return d.Renderer.Panel(title, items)
}
