package fertilizer

import "go.uber.org/zap"

type Options struct {
	OptionsPath       string
	EnvironmentalPath string
	PredictPath       string
	TopN              int
	Logger            *zap.Logger
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{
		OptionsPath:       "/get_form_options",
		EnvironmentalPath: "/get_environmental_data",
		PredictPath:       "/predict",
		TopN:              5,
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
	if opts.OptionsPath == "" {
		opts.OptionsPath = "/get_form_options"
	}
	if opts.EnvironmentalPath == "" {
		opts.EnvironmentalPath = "/get_environmental_data"
	}
	if opts.PredictPath == "" {
		opts.PredictPath = "/predict"
	}
	if opts.TopN <= 0 {
		opts.TopN = 5
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return opts
}

func WithOptionsPath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.OptionsPath = path
	}
}

func WithEnvironmentalPath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.EnvironmentalPath = path
	}
}

func WithPredictPath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.PredictPath = path
	}
}

func WithTopN(n int) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.TopN = n
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
