package config

import (
	"fmt"
	"time"

	"github.com/biolumen/lumacq/types"
)

// Config represents a lumacq.yaml configuration file.
// All values are optional and act as defaults for lumacq run flags.
// CLI flags always override config values.
type Config struct {
	Device            string              `yaml:"device"`
	FrequencyHz       float64             `yaml:"frequency_hz"`
	Modes             []string            `yaml:"modes"`
	LineMap           string              `yaml:"line_map"`
	Exposures         map[string]Duration `yaml:"exposures"`
	DeadlineSlack     float64             `yaml:"deadline_slack"`
	OverrideReadiness bool                `yaml:"override_readiness"`
	Output            OutputConfig        `yaml:"output"`
	Archive           ArchiveConfig       `yaml:"archive"`
}

// OutputConfig holds persistence defaults from the config file.
type OutputConfig struct {
	Dir        string `yaml:"dir"`
	Save       *bool  `yaml:"save,omitempty"`
	QueueDepth int    `yaml:"queue_depth"`
}

// ArchiveConfig holds post-run artifact upload defaults.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "700ms", "10s").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "700ms" or "1m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// RunConfig converts the file config into a validated run configuration.
// Zero-valued fields fall back to the run config's own defaults.
func (c *Config) RunConfig() (*types.RunConfig, error) {
	modes := make(types.ModeSet, 0, len(c.Modes))
	for _, s := range c.Modes {
		m, err := types.ParseMode(s)
		if err != nil {
			return nil, err
		}
		modes = append(modes, m)
	}

	var overrides map[types.Mode]time.Duration
	if len(c.Exposures) > 0 {
		overrides = make(map[types.Mode]time.Duration, len(c.Exposures))
		for s, d := range c.Exposures {
			m, err := types.ParseMode(s)
			if err != nil {
				return nil, fmt.Errorf("exposure override: %w", err)
			}
			overrides[m] = d.Duration
		}
	}

	lineMap := types.LineMapName(c.LineMap)
	if c.LineMap == "" {
		lineMap = types.LineMapSharedPort
	}

	save := true
	if c.Output.Save != nil {
		save = *c.Output.Save
	}

	run := &types.RunConfig{
		FrequencyHz:       c.FrequencyHz,
		Modes:             modes,
		ExposureOverrides: overrides,
		LineMap:           lineMap,
		SaveEnabled:       save,
		OutputDir:         c.Output.Dir,
		Device:            c.Device,
		DeadlineSlack:     c.DeadlineSlack,
		QueueDepth:        c.Output.QueueDepth,
		OverrideReadiness: c.OverrideReadiness,
	}
	if err := run.Validate(); err != nil {
		return nil, err
	}
	return run, nil
}
