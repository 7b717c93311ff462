package render

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	theme "github.com/goliatone/go-theme"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/goliatone/go-advisory/pkg/ranking"
)

// ThemeContext is the template-facing view of a go-theme renderer
// configuration. CSSVarsStyle is the precomputed inline style attribute body.
type ThemeContext struct {
	Name         string
	Variant      string
	Partials     map[string]string
	Tokens       map[string]string
	CSSVars      map[string]string
	CSSVarsStyle string
}

// PanelItem is one labelled value in a summary panel, such as a weather
// reading or an irrigation plan line.
type PanelItem struct {
	Label string
	Value string
	Tone  string
}

// Option configures the fragment renderer.
type Option func(*config)

type config struct {
	files  fs.FS
	dir    string
	engine *Engine
	theme  *theme.RendererConfig
	policy *bluemonday.Policy
	logger *zap.Logger
}

// WithTemplatesFS supplies an alternate template bundle.
func WithTemplatesFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.files = files
	}
}

// WithTemplatesDir loads templates from a directory on disk.
func WithTemplatesDir(path string) Option {
	return func(cfg *config) {
		cfg.dir = strings.TrimSpace(path)
	}
}

// WithEngine injects a preconfigured template engine.
func WithEngine(engine *Engine) Option {
	return func(cfg *config) {
		if engine != nil {
			cfg.engine = engine
		}
	}
}

// WithTheme applies a go-theme renderer configuration to every fragment.
func WithTheme(cfg *theme.RendererConfig) Option {
	return func(c *config) {
		c.theme = cfg
	}
}

// WithPolicy overrides the bluemonday policy applied to remote text.
func WithPolicy(policy *bluemonday.Policy) Option {
	return func(cfg *config) {
		if policy != nil {
			cfg.policy = policy
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Renderer turns advisory results into themed HTML fragments.
type Renderer struct {
	engine *Engine
	policy *bluemonday.Policy
	theme  ThemeContext
	logger *zap.Logger
}

// New constructs a fragment renderer. Without options it renders from the
// embedded template bundle with a UGC sanitization policy.
func New(options ...Option) (*Renderer, error) {
	cfg := config{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	engine := cfg.engine
	if engine == nil {
		files := cfg.files
		if files == nil && cfg.dir == "" {
			files = TemplatesFS()
		}
		if cfg.dir != "" && files == nil {
			files = os.DirFS(cfg.dir)
		}
		var err error
		engine, err = NewEngine(WithFS(files), WithExtension(".tpl"))
		if err != nil {
			return nil, fmt.Errorf("render: configure engine: %w", err)
		}
	}

	policy := cfg.policy
	if policy == nil {
		policy = bluemonday.UGCPolicy()
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Renderer{
		engine: engine,
		policy: policy,
		theme:  buildThemeContext(cfg.theme),
		logger: logger,
	}, nil
}

// ContentType reports the MIME type of produced fragments.
func (r *Renderer) ContentType() string {
	return "text/html; charset=utf-8"
}

// RankedList renders an ordered recommendation list. The list order is
// preserved exactly as given.
func (r *Renderer) RankedList(title string, list ranking.List) ([]byte, error) {
	if r == nil || r.engine == nil {
		return nil, errors.New("render: renderer is nil")
	}
	out, err := r.engine.Render("templates/ranked", map[string]any{
		"title": r.policy.Sanitize(title),
		"rows":  list.Rows(),
		"theme": r.theme,
	})
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// Advisory renders free-form advisory text. Each paragraph passes through the
// sanitization policy, so limited markup from the backend survives while
// scripts do not.
func (r *Renderer) Advisory(title string, paragraphs []string) ([]byte, error) {
	if r == nil || r.engine == nil {
		return nil, errors.New("render: renderer is nil")
	}
	clean := make([]string, 0, len(paragraphs))
	for i, p := range paragraphs {
		sanitized := strings.TrimSpace(r.policy.Sanitize(p))
		if sanitized == "" {
			if strings.TrimSpace(p) != "" {
				r.logger.Debug("advisory paragraph dropped by sanitizer", zap.Int("index", i))
			}
			continue
		}
		clean = append(clean, sanitized)
	}
	out, err := r.engine.Render("templates/advisory", map[string]any{
		"title":      r.policy.Sanitize(title),
		"paragraphs": clean,
		"theme":      r.theme,
	})
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// Panel renders labelled readings such as current weather or an irrigation
// plan summary.
func (r *Renderer) Panel(title string, items []PanelItem) ([]byte, error) {
	if r == nil || r.engine == nil {
		return nil, errors.New("render: renderer is nil")
	}
	clean := make([]PanelItem, 0, len(items))
	for _, item := range items {
		clean = append(clean, PanelItem{
			Label: r.policy.Sanitize(item.Label),
			Value: r.policy.Sanitize(item.Value),
			Tone:  strings.TrimSpace(item.Tone),
		})
	}
	out, err := r.engine.Render("templates/panel", map[string]any{
		"title": r.policy.Sanitize(title),
		"items": clean,
		"theme": r.theme,
	})
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

func gaugeFilter(input any, param any) (any, error) {
	confidence, ok := toFloat(input)
	if !ok {
		return nil, fmt.Errorf("gauge: value %v is not numeric", input)
	}
	width := 10
	if param != nil {
		if w, ok := toFloat(param); ok && w > 0 {
			width = int(w)
		}
	}
	return ranking.Bar(confidence, width), nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func buildThemeContext(cfg *theme.RendererConfig) ThemeContext {
	if cfg == nil {
		return ThemeContext{}
	}
	ctx := ThemeContext{
		Name:     cfg.Theme,
		Variant:  cfg.Variant,
		Partials: copyStringMap(cfg.Partials),
		Tokens:   copyStringMap(cfg.Tokens),
		CSSVars:  copyStringMap(cfg.CSSVars),
	}
	ctx.CSSVarsStyle = cssVarsStyle(ctx.CSSVars)
	return ctx
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cssVarsStyle(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		name := key
		if !strings.HasPrefix(name, "--") {
			name = "--" + name
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(vars[key])
		b.WriteString("; ")
	}
	return strings.TrimSpace(b.String())
}
