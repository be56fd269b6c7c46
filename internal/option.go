package internal

import (
	"io"

	"github.com/jmhodges/clock"

	"github.com/starford/almanac/internal/notify"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	clock     clock.Clock
	logOutput io.Writer
	app       []notify.AppSurface
	system    notify.SystemSurface
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithClock replaces the wall clock used by schedulers and generators.
func WithClock(clk clock.Clock) Option {
	return func(a *application) {
		a.clock = clk
	}
}

// WithLogOutput sends the JSON log to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithAppSurface adds a surface that receives every in-app alert.
func WithAppSurface(s notify.AppSurface) Option {
	return func(a *application) {
		a.app = append(a.app, s)
	}
}

// WithSystemSurface replaces the OS notification surface.
func WithSystemSurface(s notify.SystemSurface) Option {
	return func(a *application) {
		a.system = s
	}
}
