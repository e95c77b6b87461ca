package reactor

// loopOptions holds configuration resolved from Option values, grounded on
// eventloop's loopOptions/LoopOption shape.
type loopOptions struct {
	logger                  Logger
	strictMicrotaskOrdering bool
}

// Option configures a Loop at construction time.
type Option interface {
	apply(*loopOptions)
}

type optionFunc func(*loopOptions)

func (f optionFunc) apply(o *loopOptions) { f(o) }

// WithLogger attaches a Logger the loop uses for diagnostics (poll errors
// and task panics).
func WithLogger(logger Logger) Option {
	return optionFunc(func(o *loopOptions) {
		if logger != nil {
			o.logger = logger
		}
	})
}

// WithStrictMicrotaskOrdering is reserved for callers layering microtask
// semantics (see syncx/fiber) atop the strand; the reactor itself only
// threads the flag through for those packages to read back via Loop.Strict().
func WithStrictMicrotaskOrdering(enabled bool) Option {
	return optionFunc(func(o *loopOptions) {
		o.strictMicrotaskOrdering = enabled
	})
}

func resolveOptions(opts []Option) *loopOptions {
	cfg := &loopOptions{logger: NewNoopLogger()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(cfg)
	}
	return cfg
}
