// Package stats summarizes interaction histories and score distributions.
package stats

import (
	"math"

	"github.com/okian/elove/internal/domain/model"
)

const percent = 100.0

// Compute summarizes the interactions a participant gave and received.
// Empty sides yield zero averages and rates.
func Compute(given, received []model.Interaction) model.Stats {
	gCount, gPositive, gAvg := side(given)
	rCount, rPositive, rAvg := side(received)
	return model.Stats{
		GivenCount:        gCount,
		ReceivedCount:     rCount,
		MatchesGiven:      gPositive,
		MatchesReceived:   rPositive,
		AvgValueGiven:     round2(gAvg),
		AvgValueReceived:  round2(rAvg),
		MatchRateGiven:    round2(ratio(gPositive, gCount) * percent),
		MatchRateReceived: round2(ratio(rPositive, rCount) * percent),
	}
}

// Summarize aggregates scores across participants. An empty slice yields zeros.
func Summarize(ps []model.Participant) model.Summary {
	if len(ps) == 0 {
		return model.Summary{}
	}
	hi, lo, sum := math.Inf(-1), math.Inf(1), 0.0
	for _, p := range ps {
		hi = math.Max(hi, p.Score)
		lo = math.Min(lo, p.Score)
		sum += p.Score
	}
	return model.Summary{
		TotalParticipants: len(ps),
		HighestScore:      hi,
		LowestScore:       lo,
		AverageScore:      round2(sum / float64(len(ps))),
	}
}

func side(ins []model.Interaction) (count, positive int, avg float64) {
	if len(ins) == 0 {
		return 0, 0, 0
	}
	total := 0
	for _, in := range ins {
		total += in.Value
		if in.IsPositive {
			positive++
		}
	}
	return len(ins), positive, float64(total) / float64(len(ins))
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func round2(x float64) float64 {
	return math.Round(x*percent) / percent
}
