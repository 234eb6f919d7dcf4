package loadgen

import (
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"
)

// Rating values considered a like when drawing a positive flag.
const (
	minValue          = 1
	maxValue          = 10
	positiveThreshold = 6
)

// Job is one rating submission.
type Job struct {
	FromID   string
	ToID     string
	Value    int
	Positive bool
	Key      string // idempotency key
	Replay   bool   // resend with the same key after acceptance
}

// Plan builds a deterministic rating workload over ids. Every positive
// rating picked for reciprocation gets a positive rating in the opposite
// direction somewhere in the plan.
func Plan(cfg Config, ids []string) []Job {
	rng := rand.New(rand.NewPCG(cfg.Seed, uint64(len(ids))))
	jobs := make([]Job, 0, cfg.Ratings+cfg.Ratings/2)

	for i := 0; i < cfg.Ratings; i++ {
		from := rng.IntN(len(ids))
		to := rng.IntN(len(ids) - 1)
		if to >= from {
			to++
		}
		value := minValue + rng.IntN(maxValue-minValue+1)
		positive := value >= positiveThreshold
		jobs = append(jobs, Job{
			FromID:   ids[from],
			ToID:     ids[to],
			Value:    value,
			Positive: positive,
			Replay:   rng.Float64() < cfg.ReplayRate,
		})
		if positive && rng.Float64() < cfg.ReciprocalRate {
			jobs = append(jobs, Job{
				FromID:   ids[to],
				ToID:     ids[from],
				Value:    positiveThreshold + rng.IntN(maxValue-positiveThreshold+1),
				Positive: true,
			})
		}
	}

	rng.Shuffle(len(jobs), func(i, j int) { jobs[i], jobs[j] = jobs[j], jobs[i] })

	run := uuid.NewString()
	for i := range jobs {
		jobs[i].Key = run + "-" + strconv.Itoa(i)
	}
	return jobs
}

// participantName returns a stable display name for the i-th participant.
func participantName(i int) string {
	return "loadgen-" + strconv.Itoa(i)
}

// participantAge spreads ages over the accepted range.
func participantAge(i int) int {
	return 18 + i%60
}
