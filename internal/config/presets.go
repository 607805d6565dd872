package config

import (
	"sort"
)

type preset struct {
	Description string
	apply       func(*Config)
}

var presets = map[string]preset{
	"reference": {
		Description: "20 launch angles, R=10, eps_abs=1e-8 out to t=600",
		apply:       func(*Config) {},
	},
	"fine": {
		Description: "tight tolerance for convergence checks",
		apply: func(c *Config) {
			c.Integration.EpsAbs = 1e-11
			c.Integration.MaxRetries = 128
		},
	},
	"coarse": {
		Description: "loose tolerance, capped step size",
		apply: func(c *Config) {
			c.Integration.EpsAbs = 1e-5
			c.Integration.MaxStep = 0.5
		},
	},
	"draggy": {
		Description: "low lift-to-drag ratio, short flights",
		apply: func(c *Config) {
			c.Model.R = 2
		},
	},
	"dense": {
		Description: "200 launch angles at a tenth of the spacing",
		apply: func(c *Config) {
			c.Sweep.Count = 200
			c.Sweep.AngleIncrement = 0.01
		},
	},
}

// GetPreset returns the defaults with the named preset applied, or nil.
func GetPreset(name string) *Config {
	p, ok := presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	p.apply(cfg)
	return cfg
}

func PresetDescription(name string) string {
	return presets[name].Description
}

func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
