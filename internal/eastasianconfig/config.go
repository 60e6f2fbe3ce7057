// Package eastasianconfig loads a YAML overlay for spacing.Config, letting
// a batch run of cmd/eastasianspacing share one set of code-point/tolerance
// tunables across many fonts without repeating flags on every invocation.
// CLI flags always take final precedence over anything a config file sets.
package eastasianconfig

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/boxesandglue/textshape/spacing"
)

// File is the decoded shape of a --config YAML document. Every field is a
// pointer or has a zero value meaning "not set", so Apply can tell an
// explicit override from an absent one.
type File struct {
	Language           *string    `yaml:"language"`
	UseInkBounds       *bool      `yaml:"use_ink_bounds"`
	Vertical           *bool      `yaml:"vertical"`
	FullwidthAdvanceText *string  `yaml:"fullwidth_advance_text"`
	FullwidthAdvanceEms  *float64 `yaml:"fullwidth_advance_ems"`
	FullwidthTolerance   *float64 `yaml:"fullwidth_tolerance"`
	TestLevel            *int     `yaml:"test_level"`
	SkipMonospaceASCII   *bool    `yaml:"skip_monospace_ascii"`
	SkipPairs            [][2]rune `yaml:"skip_pairs"`
}

// Load reads and decodes a YAML config file from path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, err
	}
	return f, nil
}

// Apply layers f onto base, returning the merged Config. Only fields f
// actually sets are overridden; base's zero values otherwise survive.
func (f File) Apply(base spacing.Config) spacing.Config {
	cfg := base
	if f.Language != nil {
		cfg = cfg.WithLanguage(spacing.Language(*f.Language))
	}
	if f.UseInkBounds != nil {
		cfg.UseInkBounds = *f.UseInkBounds
	}
	if f.Vertical != nil {
		cfg.Vertical = *f.Vertical
	}
	if f.FullwidthAdvanceText != nil {
		cfg.FullwidthAdvanceText = *f.FullwidthAdvanceText
	}
	if f.FullwidthAdvanceEms != nil {
		cfg.FullwidthAdvanceEms = *f.FullwidthAdvanceEms
	}
	if f.FullwidthTolerance != nil {
		cfg.FullwidthTolerance = *f.FullwidthTolerance
	}
	if f.TestLevel != nil {
		cfg.TestLevel = *f.TestLevel
	}
	if f.SkipMonospaceASCII != nil {
		cfg.SkipMonospaceASCII = *f.SkipMonospaceASCII
	}
	if len(f.SkipPairs) > 0 {
		cfg.SkipPairs = append(append([][2]rune{}, cfg.SkipPairs...), f.SkipPairs...)
	}
	return cfg
}
