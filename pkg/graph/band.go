package graph

// Band is the coarse risk class used for colouring.
type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// BandFor classifies a normalized risk score.
func BandFor(risk float64) Band {
	switch {
	case risk > 0.8:
		return BandHigh
	case risk > 0.5:
		return BandMedium
	default:
		return BandLow
	}
}
