package terrainmesh

// A ColorStop associates an elevation threshold with an RGB color.
type ColorStop struct {
	Threshold float64
	R         float64
	G         float64
	B         float64
}

// A ColorRamp is an ordered list of color stops defining a piecewise-linear
// gradient over elevations. Thresholds must be strictly increasing.
type ColorRamp []ColorStop

// DefaultColorRamp returns the standard terrain gradient, from water blue at
// elevation 0 through shore, vegetation, and rock to snow white at 1.
func DefaultColorRamp() ColorRamp {
	return ColorRamp{
		{Threshold: 0.0, R: 0.6, G: 0.6, B: 0.95},
		{Threshold: 0.1, R: 0.7, G: 0.8, B: 0.5},
		{Threshold: 0.3, R: 0.4, G: 0.7, B: 0.35},
		{Threshold: 0.5, R: 0.8, G: 0.7, B: 0.5},
		{Threshold: 0.7, R: 0.6, G: 0.5, B: 0.4},
		{Threshold: 0.9, R: 0.8, G: 0.8, B: 0.8},
		{Threshold: 1.0, R: 1.0, G: 1.0, B: 1.0},
	}
}

// Lookup returns the color for value, interpolating linearly between the
// first pair of adjacent stops that brackets it. A value that no pair
// brackets gets the last stop's color, so values above the top stop saturate
// to it and, because every bracket test fails, so do values below the
// bottom stop.
func (r ColorRamp) Lookup(value float64) (float64, float64, float64) {
	for i := 0; i < len(r)-1; i++ {
		stop1, stop2 := r[i], r[i+1]
		if stop1.Threshold <= value && value <= stop2.Threshold {
			t := (value - stop1.Threshold) / (stop2.Threshold - stop1.Threshold)
			return stop1.R + (stop2.R-stop1.R)*t,
				stop1.G + (stop2.G-stop1.G)*t,
				stop1.B + (stop2.B-stop1.B)*t
		}
	}
	last := r[len(r)-1]
	return last.R, last.G, last.B
}
