package engine

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/aurora-x/aurora-x/internal/aurorax"
)

const interactiveConfigSchemaJSON = `{
  "type": "object",
  "properties": {
    "alpha_up": {"type": "number", "exclusiveMinimum": 0},
    "alpha_down": {"type": "number", "exclusiveMinimum": 0},
    "panic_boost_steps": {"type": "integer", "minimum": 0},
    "success_prob_nerve": {"type": "number", "minimum": 0, "maximum": 1},
    "success_prob_gland": {"type": "number", "minimum": 0, "maximum": 1},
    "success_prob_muscle": {"type": "number", "minimum": 0, "maximum": 1}
  },
  "additionalProperties": true
}`

// InteractiveConfig is the reloadable subset of runtime knobs (spec §6).
// success_prob_* are wired into the Organism's per-class alpha_up_base
// override rather than dropped, per the §9 open question (documented in DESIGN.md).
type InteractiveConfig struct {
	AlphaUp           float64 `json:"alpha_up"`
	AlphaDown         float64 `json:"alpha_down"`
	PanicBoostSteps   int     `json:"panic_boost_steps"`
	SuccessProbNerve  float64 `json:"success_prob_nerve"`
	SuccessProbGland  float64 `json:"success_prob_gland"`
	SuccessProbMuscle float64 `json:"success_prob_muscle"`
}

// DefaultInteractiveConfig matches spec §4.2's stated defaults.
func DefaultInteractiveConfig() InteractiveConfig {
	return InteractiveConfig{
		AlphaUp:         0.10,
		AlphaDown:       0.02,
		PanicBoostSteps: 3,
	}
}

// ConfigLoader polls a JSON file for InteractiveConfig updates, validating
// against a fixed schema and debouncing reload errors by keeping the prior
// config on parse/validation failure (spec §9 design note).
type ConfigLoader struct {
	path   string
	schema *jsonschema.Schema
	logger *slog.Logger
	last   InteractiveConfig
}

// NewConfigLoader compiles the fixed schema and seeds the loader with
// DefaultInteractiveConfig.
func NewConfigLoader(path string, logger *slog.Logger) (*ConfigLoader, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("aurora_interactive_config.json", strings.NewReader(interactiveConfigSchemaJSON)); err != nil {
		return nil, aurorax.Wrap(err, "add interactive config schema resource")
	}
	schema, err := compiler.Compile("aurora_interactive_config.json")
	if err != nil {
		return nil, aurorax.Wrap(err, "compile interactive config schema")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigLoader{
		path:   path,
		schema: schema,
		logger: logger.With("component", "config_loader"),
		last:   DefaultInteractiveConfig(),
	}, nil
}

// Reload reads and validates the config file, returning the previous
// config unchanged (and logging) on any read/parse/validation failure.
func (c *ConfigLoader) Reload() InteractiveConfig {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("config reload: read failed, keeping prior config", "err", err)
		}
		return c.last
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		c.logger.Warn("config reload: invalid json, keeping prior config", "err", err)
		return c.last
	}
	if err := c.schema.Validate(doc); err != nil {
		c.logger.Warn("config reload: schema validation failed, keeping prior config", "err", err)
		return c.last
	}

	var next InteractiveConfig
	if err := json.Unmarshal(raw, &next); err != nil {
		c.logger.Warn("config reload: struct decode failed, keeping prior config", "err", err)
		return c.last
	}
	c.last = next
	return next
}

// Current returns the most recently accepted config without reloading.
func (c *ConfigLoader) Current() InteractiveConfig { return c.last }
