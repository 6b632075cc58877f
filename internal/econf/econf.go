// Package econf holds the evaluator's tunable limits. It is a plain
// functional-options struct rather than a file-based config library: the
// evaluator is an embeddable library, not a process with its own config
// surface, so there is no natural home here for something like viper or
// pflag (see DESIGN.md).
package econf

// Config holds the limits an evaluation run is bounded by.
type Config struct {
	// MaxCallDepth bounds the depth of nested function applications
	// (Apply nodes) so runaway recursion through function calls fails
	// with a RuntimeError instead of a host stack overflow. Thunk forces
	// and calls made through eval.Call are not counted.
	MaxCallDepth int
	// MaxImportDepth bounds the recursive import chain.
	MaxImportDepth int
}

// Option configures a Config.
type Option func(*Config)

// Default returns the Config used when no options are given.
func Default() Config {
	return Config{
		MaxCallDepth:   5000,
		MaxImportDepth: 500,
	}
}

func New(opts ...Option) Config {
	c := Default()
	for _, o := range opts {
		o(&c)
	}
	return c
}

func WithMaxCallDepth(n int) Option {
	return func(c *Config) { c.MaxCallDepth = n }
}

func WithMaxImportDepth(n int) Option {
	return func(c *Config) { c.MaxImportDepth = n }
}
