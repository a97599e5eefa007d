package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/liamashdown/launchwatch/internal/confidence"
	"github.com/liamashdown/launchwatch/internal/quota"
	"github.com/liamashdown/launchwatch/internal/scoring"
)

// Tuning is the layout of TUNING_FILE. Sections that are omitted keep
// their defaults; a map that is present replaces the default map entirely.
type Tuning struct {
	Scoring    scoring.Config    `yaml:"scoring"`
	Confidence confidence.Config `yaml:"confidence"`
	Quota      quota.Config      `yaml:"quota"`
}

func (c *Config) loadTuning(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read tuning file: %w", err)
	}
	t, err := ParseTuning(data, Tuning{Scoring: c.Scoring, Confidence: c.Confidence, Quota: c.Quota})
	if err != nil {
		return fmt.Errorf("%w: tuning file %s: %v", ErrInvalid, path, err)
	}
	c.Scoring = t.Scoring
	c.Confidence = t.Confidence
	c.Quota = t.Quota
	return nil
}

// ParseTuning decodes a YAML document over base. Unknown keys are errors.
func ParseTuning(data []byte, base Tuning) (Tuning, error) {
	out := base
	defaultMultipliers := base.Scoring.ChainMultipliers
	defaultSplit := base.Quota.ChainSplit
	out.Scoring.ChainMultipliers = nil
	out.Quota.ChainSplit = nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return base, err
	}

	if out.Scoring.ChainMultipliers == nil {
		out.Scoring.ChainMultipliers = defaultMultipliers
	}
	if out.Quota.ChainSplit == nil {
		out.Quota.ChainSplit = defaultSplit
	}
	out.Quota.Location = base.Quota.Location
	return out, nil
}
