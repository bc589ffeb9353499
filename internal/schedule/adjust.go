package schedule

import "math"

// UVBand is one row of the duration-multiplier table: the band applies to any
// UV index up to and including MaxIndex.
type UVBand struct {
	MaxIndex   float64
	Multiplier float64
}

// UVTable is an ordered list of bands with ascending MaxIndex. The last band
// also serves as the open-ended ceiling for indexes above every MaxIndex.
type UVTable []UVBand

// Factor returns the multiplier for the given UV index: the first band whose
// MaxIndex >= uv, or the last band's multiplier if none matches. An empty
// table is a no-op (factor 1).
func (t UVTable) Factor(uv float64) float64 {
	if len(t) == 0 {
		return 1
	}
	for _, band := range t {
		if band.MaxIndex >= uv {
			return band.Multiplier
		}
	}
	return t[len(t)-1].Multiplier
}

// AdjustedDuration scales a base duration (seconds) by the table multiplier
// for the given UV index, rounded to whole seconds.
func AdjustedDuration(baseSeconds int, uv float64, t UVTable) int {
	return int(math.Round(float64(baseSeconds) * t.Factor(uv)))
}
