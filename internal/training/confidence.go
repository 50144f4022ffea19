package training

// Calibrate maps a held-out R² into a bounded confidence in [0.1, 0.9].
// Raw R² is unbounded below and too easily read as a probability; the step
// function compresses it into an interpretable scale while still penalizing
// worse-than-baseline models instead of clipping them to zero.
func Calibrate(r2 float64) float64 {
	switch {
	case r2 < -0.5:
		return 0.1
	case r2 < 0:
		return 0.2
	case r2 < 0.2:
		return 0.4
	case r2 < 0.5:
		return 0.6
	case r2 < 0.7:
		return 0.8
	default:
		return 0.9
	}
}
