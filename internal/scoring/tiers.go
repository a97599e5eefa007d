package scoring

import "math"

// Step awards Points to any value >= Min
type Step struct {
	Min    float64 `yaml:"min"`
	Points float64 `yaml:"points"`
}

// Ladder is an ordered list of steps, highest Min first, evaluated top-down.
// Lower bounds are inclusive. Below the lowest step the award is either zero
// or, with Linear set, degrades proportionally toward zero.
type Ladder struct {
	Steps  []Step `yaml:"steps"`
	Linear bool   `yaml:"linear"`
}

// Points returns the award for v
func (l Ladder) Points(v float64) float64 {
	if math.IsNaN(v) || len(l.Steps) == 0 {
		return 0
	}
	for _, s := range l.Steps {
		if v >= s.Min {
			return s.Points
		}
	}
	if !l.Linear {
		return 0
	}
	lowest := l.Steps[len(l.Steps)-1]
	if lowest.Min <= 0 || v <= 0 {
		return 0
	}
	return v / lowest.Min * lowest.Points
}

// Ceiling awards Points to any value <= Max
type Ceiling struct {
	Max    float64 `yaml:"max"`
	Points float64 `yaml:"points"`
}

// InverseLadder rewards lower values. Steps are ordered lowest Max first and
// upper bounds are inclusive. Above the last ceiling the award of that
// ceiling decays linearly, reaching zero at DecayTo. A DecayTo at or below
// the last ceiling means no award above it.
type InverseLadder struct {
	Steps   []Ceiling `yaml:"steps"`
	DecayTo float64   `yaml:"decay_to"`
}

// Points returns the award for v
func (l InverseLadder) Points(v float64) float64 {
	if math.IsNaN(v) || len(l.Steps) == 0 {
		return 0
	}
	for _, s := range l.Steps {
		if v <= s.Max {
			return s.Points
		}
	}
	last := l.Steps[len(l.Steps)-1]
	if l.DecayTo <= last.Max {
		return 0
	}
	frac := 1 - (v-last.Max)/(l.DecayTo-last.Max)
	return math.Max(0, frac) * last.Points
}

// Band awards Points when Low <= v <= High
type Band struct {
	Low    float64 `yaml:"low"`
	High   float64 `yaml:"high"`
	Points float64 `yaml:"points"`
}

// Bands are checked in order; the first containing band wins
type Bands []Band

// Points returns the award for v
func (b Bands) Points(v float64) float64 {
	for _, band := range b {
		if v >= band.Low && v <= band.High {
			return band.Points
		}
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
