// Package render produces the HTML fragments the dashboard swaps into the
// page: ranked recommendation lists, advisory text blocks, and forecast
// panels. Templates are pongo2 documents resolved from an embedded bundle,
// themed through go-theme renderer configuration, with all remote text passed
// through a bluemonday policy before it reaches a template.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	gotemplatepkg "github.com/goliatone/go-template"
)

// FilterFunc is the engine-neutral filter signature callers register with.
type FilterFunc func(input any, param any) (any, error)

// EngineOption configures the template engine before construction.
type EngineOption func(*engineConfig)

type engineConfig struct {
	baseDir string
	files   fs.FS
	ext     string
	filters map[string]FilterFunc
	globals map[string]any
}

// WithFS loads templates from an fs.FS, typically the embedded bundle.
func WithFS(files fs.FS) EngineOption {
	return func(cfg *engineConfig) {
		cfg.files = files
	}
}

// WithBaseDir loads templates from a directory on disk, layered over any fs.FS
// source.
func WithBaseDir(dir string) EngineOption {
	return func(cfg *engineConfig) {
		cfg.baseDir = strings.TrimSpace(dir)
	}
}

// WithExtension overrides the default ".tpl" template extension.
func WithExtension(ext string) EngineOption {
	return func(cfg *engineConfig) {
		trimmed := strings.TrimSpace(ext)
		if trimmed == "" {
			return
		}
		if !strings.HasPrefix(trimmed, ".") {
			trimmed = "." + trimmed
		}
		cfg.ext = trimmed
	}
}

// WithFilter registers a custom filter under the given name.
func WithFilter(name string, fn FilterFunc) EngineOption {
	return func(cfg *engineConfig) {
		name = strings.TrimSpace(name)
		if name == "" || fn == nil {
			return
		}
		if cfg.filters == nil {
			cfg.filters = make(map[string]FilterFunc)
		}
		cfg.filters[name] = fn
	}
}

// WithGlobals seeds context values available to every template.
func WithGlobals(data map[string]any) EngineOption {
	return func(cfg *engineConfig) {
		if len(data) == 0 {
			return
		}
		if cfg.globals == nil {
			cfg.globals = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globals[strings.TrimSpace(key)] = value
		}
	}
}

// WithEngineOptions accepts go-template options for callers migrating from
// that engine directly. The pongo2 set covers the same surface, so these are
// currently a no-op.
func WithEngineOptions(_ ...gotemplatepkg.Option) EngineOption {
	return func(*engineConfig) {}
}

// Engine renders pongo2 templates from a cached template set.
type Engine struct {
	mu  sync.RWMutex
	set *pongo2.TemplateSet

	templates map[string]*pongo2.Template
	ext       string
}

// NewEngine builds an Engine from the provided options. At least one template
// source (fs.FS or base dir) is required.
func NewEngine(options ...EngineOption) (*Engine, error) {
	cfg := &engineConfig{ext: ".tpl"}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	if cfg.baseDir == "" && cfg.files == nil {
		return nil, errors.New("render: engine needs a template source")
	}

	var loaders []pongo2.TemplateLoader
	if cfg.baseDir != "" {
		loader, err := pongo2.NewLocalFileSystemLoader(cfg.baseDir)
		if err != nil {
			return nil, fmt.Errorf("render: create local loader: %w", err)
		}
		loaders = append(loaders, loader)
	}
	if cfg.files != nil {
		loaders = append(loaders, pongo2.NewFSLoader(cfg.files))
	}

	engine := &Engine{
		set:       pongo2.NewSet("advisory", loaders...),
		templates: make(map[string]*pongo2.Template),
		ext:       cfg.ext,
	}

	if err := engine.RegisterFilter("gauge", gaugeFilter); err != nil {
		return nil, fmt.Errorf("render: register gauge filter: %w", err)
	}
	for name, fn := range cfg.filters {
		if err := engine.RegisterFilter(name, fn); err != nil {
			return nil, fmt.Errorf("render: register filter %q: %w", name, err)
		}
	}
	if len(cfg.globals) > 0 {
		if engine.set.Globals == nil {
			engine.set.Globals = make(pongo2.Context)
		}
		for key, value := range cfg.globals {
			engine.set.Globals[key] = value
		}
	}

	return engine, nil
}

// Render executes a named template against the given data.
func (e *Engine) Render(name string, data any) (string, error) {
	if e == nil || e.set == nil {
		return "", errors.New("render: engine is nil")
	}
	path := name
	if !strings.HasSuffix(path, e.ext) {
		path += e.ext
	}

	tmpl, err := e.template(path)
	if err != nil {
		return "", err
	}

	ctx, err := toContext(data)
	if err != nil {
		return "", fmt.Errorf("render: convert data for %q: %w", path, err)
	}

	out, err := tmpl.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("render: execute %q: %w", path, err)
	}
	return out, nil
}

// RenderString parses and executes an inline template.
func (e *Engine) RenderString(content string, data any) (string, error) {
	if e == nil || e.set == nil {
		return "", errors.New("render: engine is nil")
	}
	tmpl, err := e.set.FromString(content)
	if err != nil {
		return "", fmt.Errorf("render: parse inline template: %w", err)
	}
	ctx, err := toContext(data)
	if err != nil {
		return "", fmt.Errorf("render: convert data: %w", err)
	}
	out, err := tmpl.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("render: execute inline template: %w", err)
	}
	return out, nil
}

// RegisterFilter exposes a Go function as a pongo2 filter. Registration is
// process-wide; a name that is already registered keeps its existing filter
// and the call returns nil, so engines sharing a process can register the
// same defaults without tripping over each other.
func (e *Engine) RegisterFilter(name string, fn FilterFunc) error {
	if strings.TrimSpace(name) == "" || fn == nil {
		return errors.New("render: filter name and function required")
	}
	if pongo2.FilterExists(name) {
		return nil
	}
	return pongo2.RegisterFilter(name, func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		var paramVal any
		if param != nil {
			paramVal = param.Interface()
		}
		result, err := fn(in.Interface(), paramVal)
		if err != nil {
			return nil, &pongo2.Error{Sender: "filter:" + name, OrigError: err}
		}
		return pongo2.AsValue(result), nil
	})
}

func (e *Engine) template(path string) (*pongo2.Template, error) {
	e.mu.RLock()
	tmpl, ok := e.templates[path]
	e.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if tmpl, ok := e.templates[path]; ok {
		return tmpl, nil
	}
	tmpl, err := e.set.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("render: load template %q: %w", path, err)
	}
	e.templates[path] = tmpl
	return tmpl, nil
}

func toContext(data any) (pongo2.Context, error) {
	switch v := data.(type) {
	case nil:
		return pongo2.Context{}, nil
	case pongo2.Context:
		return v, nil
	case map[string]any:
		return pongo2.Context(v), nil
	}

	// Fall back to a JSON round trip for struct payloads.
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	ctx := map[string]any{}
	if err := json.Unmarshal(raw, &ctx); err != nil {
		return nil, err
	}
	return pongo2.Context(ctx), nil
}
