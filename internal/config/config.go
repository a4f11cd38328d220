// Package config loads akl settings from defaults, an optional config file
// and AKL_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/akl/internal/engine"
	"github.com/roach88/akl/internal/kb"
	"github.com/roach88/akl/internal/render"
)

// Config is the full akl configuration.
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Render   RenderConfig   `mapstructure:"render"`
	Database DatabaseConfig `mapstructure:"database"`
}

// EngineConfig controls the pass coordinator.
type EngineConfig struct {
	MaxPasses int    `mapstructure:"max_passes"`
	Rebind    string `mapstructure:"rebind"`
	Lookups   string `mapstructure:"lookups"`
}

// RenderConfig selects the output renderer.
type RenderConfig struct {
	Style string `mapstructure:"style"`
}

// DatabaseConfig locates the run log. An empty path disables logging.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// Validate checks every field and joins all problems into one error.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.MaxPasses < 1 {
		errs = append(errs, fmt.Errorf("engine.max_passes must be at least 1, got %d", c.Engine.MaxPasses))
	}
	if _, ok := kb.ParseRebindPolicy(c.Engine.Rebind); !ok {
		errs = append(errs, fmt.Errorf("engine.rebind: unknown policy %q (want overwrite or reject)", c.Engine.Rebind))
	}
	if _, ok := engine.ParseLookupPolicy(c.Engine.Lookups); !ok {
		errs = append(errs, fmt.Errorf("engine.lookups: unknown policy %q (want placeholder or strict)", c.Engine.Lookups))
	}
	if c.Render.Style != "" && !slices.Contains(render.Styles, c.Render.Style) {
		errs = append(errs, fmt.Errorf("render.style: unknown style %q (want one of %v)", c.Render.Style, render.Styles))
	}
	return errors.Join(errs...)
}

// CoordinatorOptions converts the engine settings. Call Validate first;
// unknown policy names fall back to the defaults here.
func (c *Config) CoordinatorOptions() []engine.Option {
	rebind, ok := kb.ParseRebindPolicy(c.Engine.Rebind)
	if !ok {
		rebind = kb.RebindOverwrite
	}
	lookups, ok := engine.ParseLookupPolicy(c.Engine.Lookups)
	if !ok {
		lookups = engine.LookupPlaceholder
	}
	return []engine.Option{
		engine.WithMaxPasses(c.Engine.MaxPasses),
		engine.WithRebindPolicy(rebind),
		engine.WithLookupPolicy(lookups),
	}
}
