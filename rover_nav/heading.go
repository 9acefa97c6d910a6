package rover_nav

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// HeadingConfig controls how the probe displacement is turned into a heading.
type HeadingConfig struct {
	// MinDisplacement rejects probes where the vehicle barely moved, e.g. when
	// the wheels slipped. Zero disables the check.
	MinDisplacement float64 `json:"min_displacement"`
	// Invert negates the displacement, for rigs where the reverse probe must
	// be read as the forward direction.
	Invert bool `json:"invert"`
}

// EstimateOrientation returns the displacement of the vehicle between two
// snapshots taken around a single straight drive command.
func EstimateOrientation(before, after Snapshot) Vector {
	return VectorFrom(before.Vehicle, after.Vehicle)
}

// HeadingEstimator applies HeadingConfig on top of EstimateOrientation.
type HeadingEstimator struct {
	Cfg HeadingConfig
}

// Estimate returns the orientation vector or ErrDegenerateHeading when the
// displacement is shorter than MinDisplacement.
func (h HeadingEstimator) Estimate(before, after Snapshot) (Vector, error) {
	v := EstimateOrientation(before, after)
	if n := r2.Norm(v); n == 0 || n < h.Cfg.MinDisplacement {
		return Vector{}, fmt.Errorf("%w: vehicle moved %.4f (min %.4f)", ErrDegenerateHeading, n, h.Cfg.MinDisplacement)
	}
	if h.Cfg.Invert {
		v = r2.Scale(-1, v)
	}
	return v, nil
}
