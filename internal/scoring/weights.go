package scoring

import (
	"fmt"
)

// WeightSet defines the relative importance of each cost term. The weights
// are tuning knobs, not a proven lower bound on the remaining races.
type WeightSet struct {
	Depth       float64
	Unraced     float64
	InfoMissing float64
}

// DefaultWeights returns one unit per race run, 50 per competitor never
// raced, and one per unknown pairwise fact.
func DefaultWeights() WeightSet {
	return WeightSet{
		Depth:       1,
		Unraced:     50,
		InfoMissing: 1,
	}
}

// Validate checks that no weight is negative.
func (w WeightSet) Validate() error {
	for name, v := range w.asMap() {
		if v < 0 {
			return fmt.Errorf("negative %s weight: %f", name, v)
		}
	}
	return nil
}

func (w WeightSet) asMap() map[string]float64 {
	return map[string]float64{
		"depth":        w.Depth,
		"unraced":      w.Unraced,
		"info_missing": w.InfoMissing,
	}
}
