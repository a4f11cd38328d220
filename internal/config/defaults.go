package config

import (
	"github.com/spf13/viper"

	"github.com/roach88/akl/internal/engine"
)

// EnvPrefix prefixes every environment override: AKL_ENGINE_MAX_PASSES.
const EnvPrefix = "AKL"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Engine defaults
	v.SetDefault("engine.max_passes", engine.DefaultMaxPasses)
	v.SetDefault("engine.rebind", "overwrite")
	v.SetDefault("engine.lookups", "placeholder")

	// Render defaults
	v.SetDefault("render.style", "markdown")

	// Run log defaults (empty: runs are not logged)
	v.SetDefault("database.path", "")
}
