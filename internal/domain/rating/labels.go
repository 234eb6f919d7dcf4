package rating

// Tier thresholds, lower bound inclusive.
const (
	eliteFloor          = 2000.0
	veryAttractiveFloor = 1700.0
	attractiveFloor     = 1400.0
	averageFloor        = 1100.0
	belowAverageFloor   = 800.0
)

// Tier labels a score for display.
func Tier(score float64) string {
	switch {
	case score >= eliteFloor:
		return "Elite"
	case score >= veryAttractiveFloor:
		return "Very Attractive"
	case score >= attractiveFloor:
		return "Attractive"
	case score >= averageFloor:
		return "Average"
	case score >= belowAverageFloor:
		return "Below Average"
	default:
		return "Low"
	}
}

// ImpactDescription returns preview text for an interaction. It has no effect
// on the numeric update.
func ImpactDescription(value int, positive bool) string {
	if positive {
		switch {
		case value >= 9:
			return "Exceptional match - Strong positive impact for both"
		case value >= 8:
			return "Great match - Strong positive impact"
		case value >= 7:
			return "Good match - Positive impact"
		case value >= 6:
			return "Decent match - Moderate positive impact"
		default:
			return "Low-rated match - Slight positive impact"
		}
	}
	switch {
	case value <= 2:
		return "Very poor rating - Significant negative impact"
	case value <= 4:
		return "Poor rating - Negative impact"
	case value == 5:
		return "Average rating - Neutral impact"
	case value <= 7:
		return "Good rating - Slight positive impact"
	default:
		return "Great rating despite no match - Positive impact"
	}
}
